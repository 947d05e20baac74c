package runtime

import "context"

// runLimiter bounds how many runs execute at once across all sessions.
// A nil limiter admits everything.
type runLimiter struct {
	sem chan struct{}
}

func newRunLimiter(maxRuns int) *runLimiter {
	if maxRuns <= 0 {
		return nil
	}
	return &runLimiter{sem: make(chan struct{}, maxRuns)}
}

func (l *runLimiter) acquire(ctx context.Context) error {
	if l == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case l.sem <- struct{}{}:
		return nil
	}
}

func (l *runLimiter) release() {
	if l == nil {
		return
	}
	<-l.sem
}
