package lifecycle_test

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JaimeStill/hemalyze/pkg/lifecycle"
)

func TestReadiness(t *testing.T) {
	lc := lifecycle.New()
	if lc.Ready() {
		t.Error("should not be ready before WaitForStartup")
	}

	if err := lc.WaitForStartup(); err != nil {
		t.Fatalf("startup: %v", err)
	}
	if !lc.Ready() {
		t.Error("should be ready after WaitForStartup")
	}
}

func TestStartupHooksExecute(t *testing.T) {
	lc := lifecycle.New()

	var count atomic.Int32
	for range 3 {
		lc.OnStartup(func() {
			count.Add(1)
		})
	}
	lc.OnStartupErr(func() error {
		count.Add(1)
		return nil
	})

	if err := lc.WaitForStartup(); err != nil {
		t.Fatalf("startup: %v", err)
	}
	if got := count.Load(); got != 4 {
		t.Errorf("startup hooks: got %d, want 4", got)
	}
}

func TestStartupFailureKeepsUnready(t *testing.T) {
	lc := lifecycle.New()
	errPing := errors.New("ping failed")

	lc.OnStartup(func() {})
	lc.OnStartupErr(func() error { return errPing })

	err := lc.WaitForStartup()
	if !errors.Is(err, errPing) {
		t.Errorf("startup error: got %v, want %v", err, errPing)
	}
	if lc.Ready() {
		t.Error("should not be ready after a failed startup hook")
	}
	if !errors.Is(lc.Err(), errPing) {
		t.Errorf("Err: got %v", lc.Err())
	}
}

func TestShutdown(t *testing.T) {
	t.Run("hooks run after cancellation", func(t *testing.T) {
		lc := lifecycle.New()

		var cleaned atomic.Bool
		lc.OnShutdown(func() {
			<-lc.Context().Done()
			cleaned.Store(true)
		})

		lc.WaitForStartup()

		if err := lc.Shutdown(5 * time.Second); err != nil {
			t.Fatalf("shutdown failed: %v", err)
		}
		if !cleaned.Load() {
			t.Error("shutdown hook did not execute")
		}
		select {
		case <-lc.Context().Done():
		default:
			t.Error("context should be cancelled after shutdown")
		}
	})

	t.Run("timeout", func(t *testing.T) {
		lc := lifecycle.New()
		lc.OnShutdown(func() {
			<-lc.Context().Done()
			time.Sleep(500 * time.Millisecond)
		})

		lc.WaitForStartup()

		if err := lc.Shutdown(50 * time.Millisecond); err == nil {
			t.Error("expected timeout error, got nil")
		}
	})
}
