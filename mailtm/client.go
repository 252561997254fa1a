// Package mailtm provides a client for Mail.tm-compatible temporary
// mail services.
//
// The client covers the five operations the session layer needs:
// creating an account (address + bearer token), listing messages,
// fetching one message, deleting one message, and deleting the whole
// account. Remote failures are classified into ErrNotFound and
// ErrUnavailable so callers never have to inspect transport details.
package mailtm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"
)

// DefaultBaseURL is the public Mail.tm API endpoint.
const DefaultBaseURL = "https://api.mail.tm"

// Default request behavior.
const (
	DefaultTimeout = 15 * time.Second
	MinTimeout     = time.Second

	usernameLength = 10
	passwordLength = 12
)

// Client issues the remote temporary-mail operations.
type Client interface {
	// Domains lists domains available for address creation.
	Domains(ctx context.Context) ([]Domain, error)
	// CreateAccount creates a new remote mailbox with a random address
	// and returns its credentials, including an authentication token.
	CreateAccount(ctx context.Context) (Account, error)
	// Messages lists the messages currently in the account's mailbox.
	Messages(ctx context.Context, acct Account) ([]MessageSummary, error)
	// Message fetches one message's full content. The message is marked
	// as seen on the remote side on a best-effort basis.
	// Returns ErrNotFound if the message does not exist.
	Message(ctx context.Context, acct Account, messageID string) (*MessageDetail, error)
	// DeleteMessage removes one message from the remote mailbox.
	// Returns ErrNotFound if the message does not exist.
	DeleteMessage(ctx context.Context, acct Account, messageID string) error
	// DeleteAccount removes the remote mailbox and all its messages.
	DeleteAccount(ctx context.Context, acct Account) error
}

// options holds client configuration.
type options struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// Option configures the client.
type Option func(*options)

// WithBaseURL points the client at a different (e.g. self-hosted or
// test) endpoint.
func WithBaseURL(url string) Option {
	return func(o *options) {
		if url != "" {
			o.baseURL = url
		}
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithTimeout bounds each remote call. A hung remote service fails the
// call with ErrUnavailable instead of blocking the caller indefinitely.
// Values below MinTimeout are clamped to MinTimeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d < MinTimeout {
			d = MinTimeout
		}
		o.timeout = d
	}
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// client is the HTTP implementation of Client.
type client struct {
	opts options
}

// Compile-time check
var _ Client = (*client)(nil)

// New creates a Mail.tm API client.
func New(opts ...Option) Client {
	o := options{
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
		timeout:    DefaultTimeout,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &client{opts: o}
}

// hydraList is the collection envelope the API wraps listings in.
type hydraList[T any] struct {
	Member []T `json:"hydra:member"`
}

// Wire representations. The session layer sees the flattened types from
// types.go; nested address objects stay private to this package.

type wireAddress struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

type wireMessage struct {
	ID          string        `json:"id"`
	From        wireAddress   `json:"from"`
	To          []wireAddress `json:"to"`
	Subject     string        `json:"subject"`
	Intro       string        `json:"intro"`
	Text        string        `json:"text"`
	HTML        []string      `json:"html"`
	Seen        bool          `json:"seen"`
	Attachments []struct {
		ID string `json:"id"`
	} `json:"attachments"`
	CreatedAt time.Time `json:"createdAt"`
}

// Domains lists domains available for address creation.
func (c *client) Domains(ctx context.Context) ([]Domain, error) {
	var list hydraList[Domain]
	if err := c.do(ctx, "list domains", http.MethodGet, "/domains", "", nil, http.StatusOK, &list); err != nil {
		return nil, err
	}
	return list.Member, nil
}

// CreateAccount creates a new remote mailbox and authenticates it.
func (c *client) CreateAccount(ctx context.Context) (Account, error) {
	domains, err := c.Domains(ctx)
	if err != nil {
		return Account{}, fmt.Errorf("pick domain: %w", err)
	}
	domain := ""
	for _, d := range domains {
		if d.IsActive {
			domain = d.Domain
			break
		}
	}
	if domain == "" {
		return Account{}, ErrNoDomains
	}

	address := randomString(usernameLength) + "@" + domain
	password := randomString(passwordLength)
	creds := map[string]string{
		"address":  address,
		"password": password,
	}

	var created struct {
		ID      string `json:"id"`
		Address string `json:"address"`
	}
	if err := c.do(ctx, "create account", http.MethodPost, "/accounts", "", creds, http.StatusCreated, &created); err != nil {
		return Account{}, err
	}

	var tok struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, "get token", http.MethodPost, "/token", "", creds, http.StatusOK, &tok); err != nil {
		return Account{}, err
	}

	c.opts.logger.Debug("created remote account", "address", created.Address)
	return Account{
		ID:       created.ID,
		Address:  created.Address,
		Password: password,
		Token:    tok.Token,
	}, nil
}

// Messages lists the messages currently in the account's mailbox.
func (c *client) Messages(ctx context.Context, acct Account) ([]MessageSummary, error) {
	var list hydraList[wireMessage]
	if err := c.do(ctx, "list messages", http.MethodGet, "/messages", acct.Token, nil, http.StatusOK, &list); err != nil {
		return nil, err
	}
	summaries := make([]MessageSummary, 0, len(list.Member))
	for _, m := range list.Member {
		summaries = append(summaries, MessageSummary{
			ID:        m.ID,
			From:      m.From.Address,
			Subject:   m.Subject,
			Intro:     m.Intro,
			IsRead:    m.Seen,
			CreatedAt: m.CreatedAt,
		})
	}
	return summaries, nil
}

// Message fetches one message's full content and marks it seen.
func (c *client) Message(ctx context.Context, acct Account, messageID string) (*MessageDetail, error) {
	var m wireMessage
	if err := c.do(ctx, "fetch message", http.MethodGet, "/messages/"+messageID, acct.Token, nil, http.StatusOK, &m); err != nil {
		return nil, err
	}

	// Mark as seen. Failures here do not fail the fetch; the message
	// content is already in hand.
	if err := c.do(ctx, "mark seen", http.MethodPatch, "/messages/"+messageID, acct.Token,
		map[string]bool{"seen": true}, http.StatusOK, nil); err != nil {
		c.opts.logger.Debug("mark seen failed", "message_id", messageID, "error", err)
	}

	to := ""
	if len(m.To) > 0 {
		to = m.To[0].Address
	}
	html := ""
	if len(m.HTML) > 0 {
		html = m.HTML[0]
	}
	return &MessageDetail{
		ID:              m.ID,
		From:            m.From.Address,
		To:              to,
		Subject:         m.Subject,
		Intro:           m.Intro,
		Text:            m.Text,
		HTML:            html,
		AttachmentCount: len(m.Attachments),
		IsRead:          true,
		CreatedAt:       m.CreatedAt,
	}, nil
}

// DeleteMessage removes one message from the remote mailbox.
func (c *client) DeleteMessage(ctx context.Context, acct Account, messageID string) error {
	return c.do(ctx, "delete message", http.MethodDelete, "/messages/"+messageID, acct.Token, nil, http.StatusNoContent, nil)
}

// DeleteAccount removes the remote mailbox and all its messages.
func (c *client) DeleteAccount(ctx context.Context, acct Account) error {
	return c.do(ctx, "delete account", http.MethodDelete, "/accounts/"+acct.ID, acct.Token, nil, http.StatusNoContent, nil)
}

// do issues one request and decodes the response into out (if non-nil).
// Any status other than wantStatus becomes a StatusError; transport
// errors wrap ErrUnavailable.
func (c *client) do(ctx context.Context, op, method, path, token string, body any, wantStatus int, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.timeout)
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("mailtm: %s: encode body: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.opts.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("mailtm: %s: build request: %w", op, err)
	}
	if body != nil {
		// PATCH endpoints only accept merge-patch.
		if method == http.MethodPatch {
			req.Header.Set("Content-Type", "application/merge-patch+json")
		} else {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.opts.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mailtm: %s: %w: %v", op, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &StatusError{Op: op, StatusCode: resp.StatusCode}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("mailtm: %s: decode response: %w: %v", op, ErrUnavailable, err)
		}
	}
	return nil
}

const randomAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// randomString returns a random lowercase alphanumeric string, the
// shape the remote service expects for usernames and passwords.
func randomString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = randomAlphabet[rand.Intn(len(randomAlphabet))]
	}
	return string(b)
}
