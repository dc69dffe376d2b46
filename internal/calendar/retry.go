package calendar

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	gax "github.com/googleapis/gax-go/v2"
	"google.golang.org/api/googleapi"
)

const maxBackoff = 5 * time.Second

// Retrying wraps a Backend and retries idempotent calls on transient failures
// (rate limits, 5xx, network timeouts) with jittered exponential backoff.
// Create is attempted once: a retried insert whose first response was lost
// would duplicate the event.
type Retrying struct {
	next     Backend
	attempts int
	backoff  time.Duration
	logger   *slog.Logger
}

func WithRetry(next Backend, attempts int, backoff time.Duration, logger *slog.Logger) *Retrying {
	if attempts < 1 {
		attempts = 1
	}
	return &Retrying{next: next, attempts: attempts, backoff: backoff, logger: logger}
}

func (r *Retrying) Create(ctx context.Context, req EventRequest) (*Event, error) {
	return r.next.Create(ctx, req)
}

func (r *Retrying) List(ctx context.Context, from, to time.Time) ([]Event, error) {
	var out []Event
	err := r.do(ctx, "list", func() error {
		var err error
		out, err = r.next.List(ctx, from, to)
		return err
	})
	return out, err
}

func (r *Retrying) Get(ctx context.Context, id string) (*Event, error) {
	var out *Event
	err := r.do(ctx, "get", func() error {
		var err error
		out, err = r.next.Get(ctx, id)
		return err
	})
	return out, err
}

func (r *Retrying) Update(ctx context.Context, id string, patch Patch) (*Event, error) {
	var out *Event
	err := r.do(ctx, "update", func() error {
		var err error
		out, err = r.next.Update(ctx, id, patch)
		return err
	})
	return out, err
}

func (r *Retrying) Delete(ctx context.Context, id string) error {
	tried := false
	return r.do(ctx, "delete", func() error {
		err := r.next.Delete(ctx, id)
		// A retried delete that finds nothing means the first attempt landed.
		if tried && errors.Is(err, ErrNotFound) {
			return nil
		}
		tried = true
		return err
	})
}

func (r *Retrying) do(ctx context.Context, op string, fn func() error) error {
	bo := gax.Backoff{Initial: r.backoff, Max: maxBackoff, Multiplier: 2}
	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		if err = fn(); err == nil || !Transient(err) || attempt == r.attempts {
			return err
		}
		pause := bo.Pause()
		r.logger.Warn("calendar call failed, retrying", "op", op, "attempt", attempt, "pause", pause, "error", err)
		if err := gax.Sleep(ctx, pause); err != nil {
			return err
		}
	}
	return err
}

// Transient reports whether err is worth retrying.
func Transient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
