package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type circuitState struct {
	mu      sync.RWMutex
	resetAt time.Time
}

func (c *circuitState) isOpenWithReset(now time.Time) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resetAt, !c.resetAt.IsZero() && now.Before(c.resetAt)
}

func (c *circuitState) open(resetAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetAt = resetAt
}

// Fallback tries completers in order, skipping any still cooling down from
// a rate limit.
type Fallback struct {
	completers []Completer
	circuits   []*circuitState
	names      []string
	logger     *slog.Logger
}

// NewFallback creates a Fallback over completers named by names.
func NewFallback(completers []Completer, names []string, logger *slog.Logger) *Fallback {
	circuits := make([]*circuitState, len(completers))
	for i := range circuits {
		circuits[i] = &circuitState{}
	}
	return &Fallback{
		completers: completers,
		circuits:   circuits,
		names:      names,
		logger:     logger.With("system", "llm"),
	}
}

func (f *Fallback) Complete(ctx context.Context, req Request) (string, error) {
	now := time.Now()
	var lastErr error
	allRateLimited := true
	var earliestReset time.Time

	for i, c := range f.completers {
		if resetAt, open := f.circuits[i].isOpenWithReset(now); open {
			f.logger.DebugContext(ctx, "skipping provider", "provider", f.names[i], "until", resetAt)
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
			continue
		}

		out, err := c.Complete(ctx, req)
		if err == nil {
			return out, nil
		}

		f.logger.WarnContext(ctx, "provider failed", "provider", f.names[i], "error", err)
		lastErr = err

		var rlErr *RateLimitError
		if errors.As(err, &rlErr) {
			resetAt := now.Add(rlErr.RetryAfter)
			f.circuits[i].open(resetAt)
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
		} else {
			allRateLimited = false
		}

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}

	if lastErr == nil || allRateLimited {
		retryAfter := max(time.Until(earliestReset), time.Second)
		return "", NewRateLimitError("all", errors.New("all providers rate limited"), int(retryAfter.Seconds()))
	}

	return "", fmt.Errorf("all providers failed: %w", lastErr)
}
