package calendar

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

// flakyBackend fails the first n calls of each kind with err.
type flakyBackend struct {
	*MemoryBackend
	failures int
	err      error
	calls    int
}

func (f *flakyBackend) fail() error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return nil
}

func (f *flakyBackend) Create(ctx context.Context, req EventRequest) (*Event, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.MemoryBackend.Create(ctx, req)
}

func (f *flakyBackend) List(ctx context.Context, from, to time.Time) ([]Event, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.MemoryBackend.List(ctx, from, to)
}

func (f *flakyBackend) Delete(ctx context.Context, id string) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.MemoryBackend.Delete(ctx, id)
}

func TestRetry_ListRecoversFromTransientErrors(t *testing.T) {
	flaky := &flakyBackend{MemoryBackend: NewMemory(), failures: 2, err: &googleapi.Error{Code: 503}}
	r := WithRetry(flaky, 3, time.Millisecond, discardLogger())

	_, err := r.List(context.Background(), time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, flaky.calls)
}

func TestRetry_GivesUpAfterAttempts(t *testing.T) {
	flaky := &flakyBackend{MemoryBackend: NewMemory(), failures: 5, err: &googleapi.Error{Code: 429}}
	r := WithRetry(flaky, 3, time.Millisecond, discardLogger())

	_, err := r.List(context.Background(), time.Now(), time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.Equal(t, 3, flaky.calls)
}

func TestRetry_PermanentErrorsAreNotRetried(t *testing.T) {
	flaky := &flakyBackend{MemoryBackend: NewMemory(), failures: 5, err: &googleapi.Error{Code: 400}}
	r := WithRetry(flaky, 3, time.Millisecond, discardLogger())

	_, err := r.List(context.Background(), time.Now(), time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.Equal(t, 1, flaky.calls)
}

func TestRetry_CreateIsAttemptedOnce(t *testing.T) {
	flaky := &flakyBackend{MemoryBackend: NewMemory(), failures: 1, err: &googleapi.Error{Code: 503}}
	r := WithRetry(flaky, 3, time.Millisecond, discardLogger())

	_, err := r.Create(context.Background(), EventRequest{Summary: "x"})
	require.Error(t, err)
	assert.Equal(t, 1, flaky.calls)
	assert.Equal(t, 0, flaky.Len())
}

func TestRetry_DeleteNotFoundAfterRetryIsSuccess(t *testing.T) {
	mem := NewMemory()
	flaky := &flakyBackend{MemoryBackend: mem, failures: 1, err: &googleapi.Error{Code: 502}}
	r := WithRetry(flaky, 3, time.Millisecond, discardLogger())

	err := r.Delete(context.Background(), "already-gone")
	assert.NoError(t, err)
}

func TestRetry_StopsWhenContextIsDone(t *testing.T) {
	flaky := &flakyBackend{MemoryBackend: NewMemory(), failures: 5, err: &googleapi.Error{Code: 503}}
	r := WithRetry(flaky, 5, time.Hour, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := r.List(ctx, time.Now(), time.Now().Add(time.Hour))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", &googleapi.Error{Code: 429}, true},
		{"server error", fmt.Errorf("list events: %w", &googleapi.Error{Code: 500}), true},
		{"bad request", &googleapi.Error{Code: 400}, false},
		{"not found", ErrNotFound, false},
		{"deadline", context.DeadlineExceeded, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Transient(tt.err))
		})
	}
}
