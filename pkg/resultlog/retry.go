package resultlog

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Backoff повторяет операцию с экспоненциальной задержкой
type Backoff struct {
	// Attempts - число попыток, включая первую (<= 1 - без повторов)
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Multiplier - множитель задержки (0 - 2.0)
	Multiplier float64
	// Jitter - доля случайного отклонения задержки, 0.0 - 1.0
	Jitter float64
	// OnRetry вызывается перед каждым повтором
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Delay - задержка перед повтором после попытки attempt (с 1)
func (b Backoff) Delay(attempt int) time.Duration {
	m := b.Multiplier
	if m == 0 {
		m = 2.0
	}
	delay := time.Duration(float64(b.InitialDelay) * math.Pow(m, float64(attempt-1)))
	if b.MaxDelay > 0 && delay > b.MaxDelay {
		delay = b.MaxDelay
	}
	if b.Jitter > 0 {
		delay += time.Duration(float64(delay) * b.Jitter * (rand.Float64()*2 - 1))
		if delay < 0 {
			delay = b.InitialDelay
		}
	}
	return delay
}

// Do выполняет fn, пока она не завершится успешно, не кончатся попытки
// или не будет отменен ctx
func (b Backoff) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := b.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt >= attempts {
			break
		}
		delay := b.Delay(attempt)
		if b.OnRetry != nil {
			b.OnRetry(attempt, err, delay)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}
	if attempts == 1 {
		return err
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, err)
}
