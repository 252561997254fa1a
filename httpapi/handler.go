// Package httpapi exposes the tempmail service over a small REST
// surface. Callers identify themselves with the X-Owner-ID header; the
// API is a thin presenter and maps the service error taxonomy onto
// HTTP status codes.
package httpapi

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pro004/tempmail"
	"github.com/pro004/tempmail/mailtm"
)

// Handler serves the REST API.
type Handler struct {
	svc    tempmail.Service
	mail   mailtm.Client
	logger *slog.Logger
}

// NewHandler creates a handler over a connected service. The mail
// client is only used for the domains listing and may be nil.
func NewHandler(svc tempmail.Service, mail mailtm.Client, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, mail: mail, logger: logger}
}

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error     string `json:"error"`
	Category  string `json:"category"`
	RequestID string `json:"request_id,omitempty"`
}

// SessionResponse describes an owner's active session.
type SessionResponse struct {
	Address   string `json:"address"`
	CreatedAt string `json:"created_at"`
}

// MessageSummaryResponse is one inbox listing entry.
type MessageSummaryResponse struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Subject   string `json:"subject"`
	Intro     string `json:"intro"`
	IsRead    bool   `json:"is_read"`
	CreatedAt string `json:"created_at"`
}

// MessageResponse is a full message.
type MessageResponse struct {
	ID              string `json:"id"`
	From            string `json:"from"`
	To              string `json:"to"`
	Subject         string `json:"subject"`
	Text            string `json:"text,omitempty"`
	HTML            string `json:"html,omitempty"`
	AttachmentCount int    `json:"attachment_count"`
	IsRead          bool   `json:"is_read"`
	CreatedAt       string `json:"created_at"`
}

// statusFromCategory maps the service error taxonomy to HTTP status
// codes. Presenters never inspect transport details.
func statusFromCategory(cat tempmail.FailureCategory) int {
	switch cat {
	case tempmail.CategoryNoActiveSession:
		return fiber.StatusConflict
	case tempmail.CategoryNotFound:
		return fiber.StatusNotFound
	case tempmail.CategoryInvalidArgument:
		return fiber.StatusBadRequest
	case tempmail.CategoryRemoteUnavailable:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// fail writes the error payload for err.
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	cat := tempmail.Category(err)
	status := statusFromCategory(cat)
	if status == fiber.StatusInternalServerError {
		h.logger.Error("unclassified api error",
			"path", c.Path(),
			"error", err)
	}
	return c.Status(status).JSON(ErrorResponse{
		Error:     userMessage(cat),
		Category:  cat.String(),
		RequestID: requestID(c),
	})
}

// userMessage returns presenter language for a failure category.
func userMessage(cat tempmail.FailureCategory) string {
	switch cat {
	case tempmail.CategoryNoActiveSession:
		return "no active mailbox, generate one first"
	case tempmail.CategoryNotFound:
		return "message not found"
	case tempmail.CategoryInvalidArgument:
		return "invalid request"
	case tempmail.CategoryRemoteUnavailable:
		return "mail service temporarily unavailable, try again"
	default:
		return "internal error"
	}
}

// Generate binds the caller to a fresh disposable address.
func (h *Handler) Generate(c *fiber.Ctx) error {
	sess, err := h.svc.Client(owner(c)).Generate(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(SessionResponse{
		Address:   sess.Address,
		CreatedAt: sess.CreatedAt.Format(time.RFC3339),
	})
}

// Active returns the caller's current session.
func (h *Handler) Active(c *fiber.Ctx) error {
	sess, err := h.svc.Client(owner(c)).Active(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(SessionResponse{
		Address:   sess.Address,
		CreatedAt: sess.CreatedAt.Format(time.RFC3339),
	})
}

// Messages lists the caller's inbox, newest first.
func (h *Handler) Messages(c *fiber.Ctx) error {
	msgs, err := h.svc.Client(owner(c)).Messages(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	out := make([]MessageSummaryResponse, len(msgs))
	for i, m := range msgs {
		out[i] = MessageSummaryResponse{
			ID:        m.ID,
			From:      m.From,
			Subject:   m.Subject,
			Intro:     m.Intro,
			IsRead:    m.IsRead,
			CreatedAt: m.CreatedAt.Format(time.RFC3339),
		}
	}
	return c.JSON(out)
}

// Message returns one message in full and marks it read.
func (h *Handler) Message(c *fiber.Ctx) error {
	detail, err := h.svc.Client(owner(c)).Message(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(MessageResponse{
		ID:              detail.ID,
		From:            detail.From,
		To:              detail.To,
		Subject:         detail.Subject,
		Text:            detail.Text,
		HTML:            detail.HTML,
		AttachmentCount: detail.AttachmentCount,
		IsRead:          detail.IsRead,
		CreatedAt:       detail.CreatedAt.Format(time.RFC3339),
	})
}

// DeleteMessage removes one message from the caller's inbox.
func (h *Handler) DeleteMessage(c *fiber.Ctx) error {
	if err := h.svc.Client(owner(c)).DeleteMessage(c.Context(), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DeleteAll destroys the caller's mailbox and clears the binding.
func (h *Handler) DeleteAll(c *fiber.Ctx) error {
	if err := h.svc.Client(owner(c)).DeleteAll(c.Context()); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Domains lists the domains addresses can be created under.
func (h *Handler) Domains(c *fiber.Ctx) error {
	if h.mail == nil {
		return c.JSON([]string{})
	}
	domains, err := h.mail.Domains(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		if d.IsActive {
			out = append(out, d.Domain)
		}
	}
	return c.JSON(out)
}
