package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pro004/tempmail"
	"github.com/pro004/tempmail/directory"
	"github.com/pro004/tempmail/mailtm"
	"github.com/pro004/tempmail/ratelimit"
)

// stubSession implements tempmail.Session with canned results.
type stubSession struct {
	ownerID string

	sess    directory.Session
	sessErr error

	msgs    []mailtm.MessageSummary
	listErr error

	detail   mailtm.MessageDetail
	fetchErr error

	deleteErr    error
	deleteAllErr error
}

func (s *stubSession) OwnerID() string { return s.ownerID }

func (s *stubSession) Active(ctx context.Context) (directory.Session, error) {
	return s.sess, s.sessErr
}

func (s *stubSession) Generate(ctx context.Context) (directory.Session, error) {
	return s.sess, s.sessErr
}

func (s *stubSession) Messages(ctx context.Context) ([]mailtm.MessageSummary, error) {
	return s.msgs, s.listErr
}

func (s *stubSession) Message(ctx context.Context, messageID string) (mailtm.MessageDetail, error) {
	return s.detail, s.fetchErr
}

func (s *stubSession) DeleteMessage(ctx context.Context, messageID string) error {
	return s.deleteErr
}

func (s *stubSession) DeleteAll(ctx context.Context) error {
	return s.deleteAllErr
}

// stubService hands out one shared stubSession for every owner.
type stubService struct {
	session   *stubSession
	connected bool
}

func (s *stubService) IsConnected() bool { return s.connected }

func (s *stubService) Connect(ctx context.Context) error { return nil }

func (s *stubService) Close(ctx context.Context) error { return nil }

func (s *stubService) Events() *tempmail.ServiceEvents { return nil }

func (s *stubService) Sweep(ctx context.Context) (*tempmail.SweepResult, error) {
	return &tempmail.SweepResult{}, nil
}

func (s *stubService) Client(ownerID string) tempmail.Session {
	s.session.ownerID = ownerID
	return s.session
}

func setupApp(t *testing.T, session *stubSession) *fiber.App {
	t.Helper()
	app := fiber.New()
	svc := &stubService{session: session, connected: true}
	SetupRoutes(app, NewHandler(svc, nil, nil), ratelimit.New(nil))
	return app
}

func decode[T any](t *testing.T, body io.Reader) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestGenerateEndpoint(t *testing.T) {
	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	app := setupApp(t, &stubSession{
		sess: directory.Session{Address: "box1@example.test", CreatedAt: created},
	})

	req := httptest.NewRequest("POST", "/api/v1/session/", nil)
	req.Header.Set("X-Owner-ID", "owner1")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	body := decode[SessionResponse](t, resp.Body)
	if body.Address != "box1@example.test" {
		t.Errorf("expected address in response, got %q", body.Address)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}
}

func TestOwnerHeaderRequired(t *testing.T) {
	app := setupApp(t, &stubSession{})

	for _, route := range []struct{ method, path string }{
		{"POST", "/api/v1/session/"},
		{"GET", "/api/v1/session/"},
		{"DELETE", "/api/v1/session/"},
		{"GET", "/api/v1/messages/"},
		{"GET", "/api/v1/messages/m1"},
		{"DELETE", "/api/v1/messages/m1"},
	} {
		req := httptest.NewRequest(route.method, route.path, nil)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("%s %s: %v", route.method, route.path, err)
		}
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Errorf("%s %s: expected 400 without owner header, got %d",
				route.method, route.path, resp.StatusCode)
		}
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		session *stubSession
		method  string
		path    string
		want    int
	}{
		{
			name:    "no active session is conflict",
			session: &stubSession{listErr: tempmail.ErrNoActiveSession},
			method:  "GET", path: "/api/v1/messages/",
			want: fiber.StatusConflict,
		},
		{
			name:    "not found is 404",
			session: &stubSession{fetchErr: tempmail.ErrNotFound},
			method:  "GET", path: "/api/v1/messages/m1",
			want: fiber.StatusNotFound,
		},
		{
			name:    "remote unavailable is bad gateway",
			session: &stubSession{listErr: tempmail.ErrRemoteUnavailable},
			method:  "GET", path: "/api/v1/messages/",
			want: fiber.StatusBadGateway,
		},
		{
			name:    "invalid message id is bad request",
			session: &stubSession{deleteErr: tempmail.ErrInvalidMessageID},
			method:  "DELETE", path: "/api/v1/messages/bad",
			want: fiber.StatusBadRequest,
		},
		{
			name:    "delete all reports lagging remote",
			session: &stubSession{deleteAllErr: tempmail.ErrRemoteUnavailable},
			method:  "DELETE", path: "/api/v1/session/",
			want: fiber.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := setupApp(t, tt.session)
			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.Header.Set("X-Owner-ID", "owner1")
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			if resp.StatusCode != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, resp.StatusCode)
			}
			body := decode[ErrorResponse](t, resp.Body)
			if body.Category == "" {
				t.Error("expected category in error payload")
			}
		})
	}
}

func TestMessagesEndpoint(t *testing.T) {
	app := setupApp(t, &stubSession{
		msgs: []mailtm.MessageSummary{
			{ID: "m2", Subject: "newer"},
			{ID: "m1", Subject: "older"},
		},
	})

	req := httptest.NewRequest("GET", "/api/v1/messages/", nil)
	req.Header.Set("X-Owner-ID", "owner1")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body := decode[[]MessageSummaryResponse](t, resp.Body)
	if len(body) != 2 || body[0].ID != "m2" {
		t.Errorf("unexpected listing: %+v", body)
	}
}

func TestRateLimiting(t *testing.T) {
	app := setupApp(t, &stubSession{
		sess: directory.Session{Address: "box1@example.test"},
	})

	// The generate budget is 5 per minute; the sixth call must be
	// rejected while other owners stay unaffected.
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("POST", "/api/v1/session/", nil)
		req.Header.Set("X-Owner-ID", "heavy")
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		if resp.StatusCode != fiber.StatusCreated {
			t.Fatalf("request %d: expected 201, got %d", i, resp.StatusCode)
		}
	}

	req := httptest.NewRequest("POST", "/api/v1/session/", nil)
	req.Header.Set("X-Owner-ID", "heavy")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}

	other := httptest.NewRequest("POST", "/api/v1/session/", nil)
	other.Header.Set("X-Owner-ID", "light")
	resp, err = app.Test(other)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusCreated {
		t.Errorf("other owner must not share the budget, got %d", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	t.Run("connected", func(t *testing.T) {
		app := setupApp(t, &stubSession{})
		resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Errorf("expected 200, got %d", resp.StatusCode)
		}
	})

	t.Run("disconnected", func(t *testing.T) {
		app := fiber.New()
		svc := &stubService{session: &stubSession{}, connected: false}
		SetupRoutes(app, NewHandler(svc, nil, nil), ratelimit.New(nil))

		resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		if resp.StatusCode != fiber.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", resp.StatusCode)
		}
	})
}
