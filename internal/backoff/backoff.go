package backoff

import (
	"context"
	"math/rand"
	"time"
)

type Config struct {
	BaseDelay time.Duration // e.g. 100ms
	MaxDelay  time.Duration // e.g. 5s
}

func Default() Config {
	return Config{
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  5 * time.Second,
	}
}

// Delay computes the wait before the given attempt using exponential backoff with full jitter.
// attempt is 1-based (1 => BaseDelay).
func Delay(attempt int, cfg Config, rng *rand.Rand) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = Default().BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = Default().MaxDelay
	}

	// exponential: base * 2^(attempt-1), guarding the shift against overflow
	delay := cfg.MaxDelay
	if attempt <= 32 {
		if d := cfg.BaseDelay << (attempt - 1); d > 0 && d < cfg.MaxDelay {
			delay = d
		}
	}

	// full jitter: random in [0, delay]
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return time.Duration(rng.Int63n(int64(delay) + 1))
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
