package tempmail

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pro004/tempmail/mailtm"

	archmemory "github.com/pro004/tempmail/archive/memory"
)

func TestGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("binds a fresh address", func(t *testing.T) {
		svc, _ := setupTestService(t)
		c := svc.Client("owner1")

		sess, err := c.Generate(ctx)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if sess.Address == "" {
			t.Fatal("expected non-empty address")
		}
		if sess.OwnerID != "owner1" {
			t.Errorf("expected owner1, got %q", sess.OwnerID)
		}

		active, err := c.Active(ctx)
		if err != nil {
			t.Fatalf("active: %v", err)
		}
		if active.Address != sess.Address {
			t.Errorf("active address %q does not match generated %q", active.Address, sess.Address)
		}
	})

	t.Run("replaces existing binding", func(t *testing.T) {
		svc, _ := setupTestService(t)
		c := svc.Client("owner1")

		first, err := c.Generate(ctx)
		if err != nil {
			t.Fatalf("first generate: %v", err)
		}
		second, err := c.Generate(ctx)
		if err != nil {
			t.Fatalf("second generate: %v", err)
		}
		if first.Address == second.Address {
			t.Error("expected a different address on regenerate")
		}

		active, err := c.Active(ctx)
		if err != nil {
			t.Fatalf("active: %v", err)
		}
		if active.Address != second.Address {
			t.Errorf("expected active %q, got %q", second.Address, active.Address)
		}
	})

	t.Run("owners are independent", func(t *testing.T) {
		svc, _ := setupTestService(t)
		a := svc.Client("alice")
		b := svc.Client("bob")

		sessA, err := a.Generate(ctx)
		if err != nil {
			t.Fatalf("generate alice: %v", err)
		}
		sessB, err := b.Generate(ctx)
		if err != nil {
			t.Fatalf("generate bob: %v", err)
		}
		if sessA.Address == sessB.Address {
			t.Error("owners must not share addresses")
		}
	})

	t.Run("remote failure keeps old binding", func(t *testing.T) {
		svc, mail := setupTestService(t)
		c := svc.Client("owner1")

		first, err := c.Generate(ctx)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}

		mail.mu.Lock()
		mail.createErr = &mailtm.StatusError{Op: "create account", StatusCode: 503}
		mail.mu.Unlock()

		if _, err := c.Generate(ctx); !errors.Is(err, ErrRemoteUnavailable) {
			t.Fatalf("expected ErrRemoteUnavailable, got %v", err)
		}

		active, err := c.Active(ctx)
		if err != nil {
			t.Fatalf("active after failed regenerate: %v", err)
		}
		if active.Address != first.Address {
			t.Errorf("expected old binding %q to survive, got %q", first.Address, active.Address)
		}
	})
}

func TestSessionExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	svc, mail := setupTestService(t,
		WithTTL(time.Hour),
		WithClock(clock.Now),
	)
	c := svc.Client("owner1")

	if _, err := c.Generate(ctx); err != nil {
		t.Fatalf("generate: %v", err)
	}

	t.Run("valid at exactly the ttl", func(t *testing.T) {
		clock.Advance(time.Hour)
		if _, err := c.Active(ctx); err != nil {
			t.Fatalf("expected session still valid at ttl, got %v", err)
		}
	})

	t.Run("expired one instant past the ttl", func(t *testing.T) {
		clock.Advance(time.Nanosecond)
		if _, err := c.Active(ctx); !errors.Is(err, ErrNoActiveSession) {
			t.Fatalf("expected ErrNoActiveSession, got %v", err)
		}
	})

	t.Run("expired session never reaches the remote", func(t *testing.T) {
		mail.mu.Lock()
		before := mail.listCalls
		mail.mu.Unlock()
		if _, err := c.Messages(ctx); !errors.Is(err, ErrNoActiveSession) {
			t.Fatalf("expected ErrNoActiveSession, got %v", err)
		}
		mail.mu.Lock()
		after := mail.listCalls
		mail.mu.Unlock()
		if after != before {
			t.Error("expired session must not trigger remote calls")
		}
	})

	t.Run("regenerate restarts the clock", func(t *testing.T) {
		if _, err := c.Generate(ctx); err != nil {
			t.Fatalf("regenerate: %v", err)
		}
		clock.Advance(time.Hour)
		if _, err := c.Active(ctx); err != nil {
			t.Fatalf("expected fresh session valid at ttl, got %v", err)
		}
	})
}

func TestMessages(t *testing.T) {
	ctx := context.Background()

	t.Run("no session short-circuits", func(t *testing.T) {
		svc, mail := setupTestService(t)
		c := svc.Client("owner1")

		if _, err := c.Messages(ctx); !errors.Is(err, ErrNoActiveSession) {
			t.Fatalf("expected ErrNoActiveSession, got %v", err)
		}
		if mail.listCalls != 0 {
			t.Error("sessionless list must not reach the remote")
		}
	})

	t.Run("lists newest first", func(t *testing.T) {
		svc, mail := setupTestService(t)
		c := svc.Client("owner1")
		sess, err := c.Generate(ctx)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}

		base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		mail.deliver(sess.Account.ID, mailtm.MessageDetail{ID: "m1", Subject: "first", CreatedAt: base})
		mail.deliver(sess.Account.ID, mailtm.MessageDetail{ID: "m2", Subject: "second", CreatedAt: base.Add(time.Minute)})

		msgs, err := c.Messages(ctx)
		if err != nil {
			t.Fatalf("messages: %v", err)
		}
		if len(msgs) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(msgs))
		}
		if msgs[0].ID != "m2" || msgs[1].ID != "m1" {
			t.Errorf("expected newest first, got %q then %q", msgs[0].ID, msgs[1].ID)
		}
	})

	t.Run("remote failure is reported", func(t *testing.T) {
		svc, mail := setupTestService(t)
		c := svc.Client("owner1")
		if _, err := c.Generate(ctx); err != nil {
			t.Fatalf("generate: %v", err)
		}

		mail.mu.Lock()
		mail.listErr = &mailtm.StatusError{Op: "list messages", StatusCode: 502}
		mail.mu.Unlock()

		_, err := c.Messages(ctx)
		if !errors.Is(err, ErrRemoteUnavailable) {
			t.Fatalf("expected ErrRemoteUnavailable, got %v", err)
		}
		if errors.Is(err, ErrNotFound) {
			t.Error("transient failure must not classify as not-found")
		}
	})
}

func TestMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects invalid ids before any remote call", func(t *testing.T) {
		svc, mail := setupTestService(t)
		c := svc.Client("owner1")
		if _, err := c.Generate(ctx); err != nil {
			t.Fatalf("generate: %v", err)
		}

		for _, id := range []string{"", "all", "a/b", "has space"} {
			if _, err := c.Message(ctx, id); !errors.Is(err, ErrInvalidMessageID) {
				t.Errorf("id %q: expected ErrInvalidMessageID, got %v", id, err)
			}
		}
		if mail.fetchCalls != 0 {
			t.Error("invalid ids must not reach the remote")
		}
	})

	t.Run("fetches full message and marks it read", func(t *testing.T) {
		svc, mail := setupTestService(t)
		c := svc.Client("owner1")
		sess, err := c.Generate(ctx)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		mail.deliver(sess.Account.ID, mailtm.MessageDetail{
			ID: "m1", From: "a@b.test", Subject: "hi", Text: "body",
		})

		detail, err := c.Message(ctx, "m1")
		if err != nil {
			t.Fatalf("message: %v", err)
		}
		if detail.Text != "body" {
			t.Errorf("expected full body, got %q", detail.Text)
		}

		msgs, err := c.Messages(ctx)
		if err != nil {
			t.Fatalf("messages: %v", err)
		}
		if !msgs[0].IsRead {
			t.Error("expected message marked read after view")
		}
	})

	t.Run("missing message is not-found", func(t *testing.T) {
		svc, _ := setupTestService(t)
		c := svc.Client("owner1")
		if _, err := c.Generate(ctx); err != nil {
			t.Fatalf("generate: %v", err)
		}

		_, err := c.Message(ctx, "nope")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if errors.Is(err, ErrRemoteUnavailable) {
			t.Error("not-found must not classify as unavailable")
		}
	})

	t.Run("archived full copy skips the remote", func(t *testing.T) {
		svc, mail := setupTestService(t, WithArchive(archmemory.New()))
		c := svc.Client("owner1")
		sess, err := c.Generate(ctx)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		mail.deliver(sess.Account.ID, mailtm.MessageDetail{
			ID: "m1", Subject: "hi", Text: "body",
		})

		if _, err := c.Message(ctx, "m1"); err != nil {
			t.Fatalf("first fetch: %v", err)
		}
		before := mail.fetchCalls

		detail, err := c.Message(ctx, "m1")
		if err != nil {
			t.Fatalf("second fetch: %v", err)
		}
		if detail.Text != "body" {
			t.Errorf("expected archived body, got %q", detail.Text)
		}
		if mail.fetchCalls != before {
			t.Error("archived message must be served without a remote call")
		}
	})
}

func TestDeleteMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("removes one message", func(t *testing.T) {
		svc, mail := setupTestService(t)
		c := svc.Client("owner1")
		sess, err := c.Generate(ctx)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		mail.deliver(sess.Account.ID, mailtm.MessageDetail{ID: "m1"})
		mail.deliver(sess.Account.ID, mailtm.MessageDetail{ID: "m2"})

		if err := c.DeleteMessage(ctx, "m1"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		msgs, err := c.Messages(ctx)
		if err != nil {
			t.Fatalf("messages: %v", err)
		}
		if len(msgs) != 1 || msgs[0].ID != "m2" {
			t.Errorf("expected only m2 to remain, got %v", msgs)
		}
	})

	t.Run("rejects the reserved all keyword", func(t *testing.T) {
		svc, _ := setupTestService(t)
		c := svc.Client("owner1")
		if _, err := c.Generate(ctx); err != nil {
			t.Fatalf("generate: %v", err)
		}
		if err := c.DeleteMessage(ctx, "all"); !errors.Is(err, ErrInvalidMessageID) {
			t.Fatalf("expected ErrInvalidMessageID, got %v", err)
		}
	})

	t.Run("missing message is not-found", func(t *testing.T) {
		svc, _ := setupTestService(t)
		c := svc.Client("owner1")
		if _, err := c.Generate(ctx); err != nil {
			t.Fatalf("generate: %v", err)
		}
		if err := c.DeleteMessage(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestDeleteAll(t *testing.T) {
	ctx := context.Background()

	t.Run("destroys account and clears binding", func(t *testing.T) {
		svc, mail := setupTestService(t)
		c := svc.Client("owner1")
		if _, err := c.Generate(ctx); err != nil {
			t.Fatalf("generate: %v", err)
		}

		if err := c.DeleteAll(ctx); err != nil {
			t.Fatalf("delete all: %v", err)
		}
		if mail.destroyCalls != 1 {
			t.Errorf("expected 1 destroy call, got %d", mail.destroyCalls)
		}
		if _, err := c.Active(ctx); !errors.Is(err, ErrNoActiveSession) {
			t.Errorf("expected no active session, got %v", err)
		}
	})

	t.Run("no session short-circuits", func(t *testing.T) {
		svc, mail := setupTestService(t)
		c := svc.Client("owner1")
		if err := c.DeleteAll(ctx); !errors.Is(err, ErrNoActiveSession) {
			t.Fatalf("expected ErrNoActiveSession, got %v", err)
		}
		if mail.destroyCalls != 0 {
			t.Error("sessionless delete must not reach the remote")
		}
	})

	t.Run("clears binding even when remote delete fails", func(t *testing.T) {
		svc, mail := setupTestService(t)
		c := svc.Client("owner1")
		if _, err := c.Generate(ctx); err != nil {
			t.Fatalf("generate: %v", err)
		}

		mail.mu.Lock()
		mail.destroyErr = &mailtm.StatusError{Op: "delete account", StatusCode: 503}
		mail.mu.Unlock()

		err := c.DeleteAll(ctx)
		if !errors.Is(err, ErrRemoteUnavailable) {
			t.Fatalf("expected ErrRemoteUnavailable, got %v", err)
		}
		// Binding is gone regardless.
		if _, err := c.Active(ctx); !errors.Is(err, ErrNoActiveSession) {
			t.Errorf("expected cleared binding despite remote failure, got %v", err)
		}
	})

	t.Run("purges the archive", func(t *testing.T) {
		arch := archmemory.New()
		svc, mail := setupTestService(t, WithArchive(arch))
		c := svc.Client("owner1")
		sess, err := c.Generate(ctx)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		mail.deliver(sess.Account.ID, mailtm.MessageDetail{ID: "m1", Text: "body"})
		if _, err := c.Message(ctx, "m1"); err != nil {
			t.Fatalf("fetch: %v", err)
		}

		if err := c.DeleteAll(ctx); err != nil {
			t.Fatalf("delete all: %v", err)
		}
		if msgs, err := arch.List(ctx, sess.Address); err != nil || len(msgs) != 0 {
			t.Errorf("expected empty archive after delete all, got %d msgs, err %v", len(msgs), err)
		}
	})
}
