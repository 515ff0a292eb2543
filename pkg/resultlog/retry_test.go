package resultlog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
)

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second}, // ограничено MaxDelay
	}
	for _, tt := range tests {
		if got := b.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoff_Do(t *testing.T) {
	errBusy := errors.New("busy")

	t.Run("succeeds after retries", func(t *testing.T) {
		calls := 0
		var retried []int
		b := Backoff{Attempts: 3, InitialDelay: time.Millisecond, OnRetry: func(a int, _ error, _ time.Duration) {
			retried = append(retried, a)
		}}
		err := b.Do(context.Background(), func(context.Context) error {
			calls++
			if calls < 3 {
				return errBusy
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []int{1, 2}, retried)
	})

	t.Run("gives up", func(t *testing.T) {
		calls := 0
		err := Backoff{Attempts: 2, InitialDelay: time.Millisecond}.Do(context.Background(), func(context.Context) error {
			calls++
			return errBusy
		})
		assert.ErrorIs(t, err, errBusy)
		assert.Contains(t, err.Error(), "after 2 attempts")
		assert.Equal(t, 2, calls)
	})

	t.Run("single attempt returns error unchanged", func(t *testing.T) {
		err := Backoff{}.Do(context.Background(), func(context.Context) error { return errBusy })
		assert.Equal(t, errBusy, err)
	})

	t.Run("cancelled while waiting", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		b := Backoff{Attempts: 5, InitialDelay: time.Hour, OnRetry: func(int, error, time.Duration) { cancel() }}
		err := b.Do(ctx, func(context.Context) error { return errBusy })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRedisPublisher_RetriesUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	p := NewRedisPublisher(Config{Type: "redis", Address: addr, Name: "x", Retries: 2, RetryDelayMs: 1})
	defer p.Close()
	err := p.Publish(context.Background(), RunResult{Outcome: "aborted"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
}
