package tempmail

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestManualSweep(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	svc, _ := setupTestService(t,
		WithTTL(time.Hour),
		WithClock(clock.Now),
	)

	for _, owner := range []string{"a", "b", "c"} {
		if _, err := svc.Client(owner).Generate(ctx); err != nil {
			t.Fatalf("generate %s: %v", owner, err)
		}
	}

	t.Run("nothing expired removes nothing", func(t *testing.T) {
		res, err := svc.Sweep(ctx)
		if err != nil {
			t.Fatalf("sweep: %v", err)
		}
		if res.RemovedCount != 0 {
			t.Errorf("expected 0 removed, got %d", res.RemovedCount)
		}
	})

	t.Run("removes only expired sessions", func(t *testing.T) {
		clock.Advance(time.Hour + time.Minute)
		// Refresh one owner so it survives the sweep.
		if _, err := svc.Client("b").Generate(ctx); err != nil {
			t.Fatalf("regenerate b: %v", err)
		}

		res, err := svc.Sweep(ctx)
		if err != nil {
			t.Fatalf("sweep: %v", err)
		}
		if res.RemovedCount != 2 {
			t.Errorf("expected 2 removed, got %d", res.RemovedCount)
		}

		if _, err := svc.Client("b").Active(ctx); err != nil {
			t.Errorf("refreshed session must survive the sweep: %v", err)
		}
		if _, err := svc.Client("a").Active(ctx); !errors.Is(err, ErrNoActiveSession) {
			t.Errorf("expected swept session gone, got %v", err)
		}
	})

	t.Run("second sweep is a no-op", func(t *testing.T) {
		res, err := svc.Sweep(ctx)
		if err != nil {
			t.Fatalf("sweep: %v", err)
		}
		if res.RemovedCount != 0 {
			t.Errorf("expected idempotent sweep, got %d removed", res.RemovedCount)
		}
	})
}

func TestBackgroundSweeper(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	svc, _ := setupTestService(t,
		WithTTL(time.Minute),
		WithClock(clock.Now),
		WithSweepInterval(MinSweepInterval),
	)

	c := svc.Client("owner1")
	if _, err := c.Generate(ctx); err != nil {
		t.Fatalf("generate: %v", err)
	}

	clock.Advance(2 * time.Minute)

	// The ticker fires every second; the expired entry must disappear
	// without a manual sweep.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if impl, ok := svc.(*service); ok && impl.dir.Len() == 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("background sweeper did not evict the expired session")
}

func TestSweeperStopsOnClose(t *testing.T) {
	svc, err := NewService(
		WithMailClient(newFakeMail()),
		WithSweepInterval(MinSweepInterval),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	ctx := context.Background()
	if err := svc.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	// Close must return promptly with the sweeper goroutine stopped.
	done := make(chan error, 1)
	go func() { done <- svc.Close(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("close: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("close did not return, sweeper likely stuck")
	}
}
