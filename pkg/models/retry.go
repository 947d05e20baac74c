package models

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"time"
)

// RetryConfig controls WithRetry.
type RetryConfig struct {
	// MaxRetries is the number of extra attempts after the first one.
	MaxRetries int
	// BaseDelay doubles after each failed attempt.
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	ShouldRetry func(error) bool
	Logger      *slog.Logger
}

// DefaultRetryConfig retries five times with a 1s, 2s, 4s ... backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 5, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

// WithRetry wraps a model so a turn that fails before producing any chunk is
// started again. Once output has been forwarded the failure is returned as is.
func WithRetry(model Model, cfg RetryConfig) Model {
	if model == nil {
		return nil
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &retryModel{next: model, cfg: cfg}
}

type retryModel struct {
	next Model
	cfg  RetryConfig
}

func (r *retryModel) Stream(ctx context.Context, req Request) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
	attempts:
		for attempt := 0; ; attempt++ {
			produced := false
			for c, err := range r.next.Stream(ctx, req) {
				if err != nil {
					if !produced && attempt < r.cfg.MaxRetries && r.shouldRetry(ctx, err) {
						delay := r.backoff(attempt)
						r.cfg.Logger.Warn("model stream failed, retrying",
							"attempt", attempt+1, "max_retries", r.cfg.MaxRetries, "delay", delay, "error", err)
						if sleepErr := sleep(ctx, delay); sleepErr != nil {
							yield(Chunk{}, sleepErr)
							return
						}
						continue attempts
					}
					yield(Chunk{}, err)
					return
				}
				produced = true
				if !yield(c, nil) {
					return
				}
			}
			return
		}
	}
}

func (r *retryModel) shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if r.cfg.ShouldRetry != nil {
		return r.cfg.ShouldRetry(err)
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (r *retryModel) backoff(attempt int) time.Duration {
	d := r.cfg.BaseDelay << attempt
	if d < 0 || (r.cfg.MaxDelay > 0 && d > r.cfg.MaxDelay) {
		d = r.cfg.MaxDelay
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
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
