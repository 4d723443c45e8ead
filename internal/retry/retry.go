package retry

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrSkipSleep is returned by a hook that already performed the appropriate
// wait (for example honoring a server-provided retry-after), telling the
// wrapper to skip the backoff sleep for this attempt.
var ErrSkipSleep = errors.New("retry: skip backoff sleep")

// Hook runs after a retryable failure. last reports whether the attempt
// budget is exhausted.
type Hook func(err error, last bool) error

// Options configures a retried operation. Retryable lists the error kinds
// (matched with errors.Is) that consume an attempt; any other failure
// propagates immediately.
type Options struct {
	MaxRetries int
	Retryable  []error
	Hooks      []Hook
}

func (o Options) retryable(err error) bool {
	for _, kind := range o.Retryable {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// backoff is 2^attempt seconds, attempt 0 giving one second.
func backoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

// Do executes op, retrying retryable failures with exponential backoff until
// the attempt budget runs out, then returns the last failure.
func Do(op func() error, opts Options) error {
	return run(context.Background(), op, opts, sleepBlocking)
}

// DoContext behaves like Do but suspends backoff sleeps on the context, so a
// cancelled caller is released mid-wait.
func DoContext(ctx context.Context, op func() error, opts Options) error {
	return run(ctx, op, opts, sleepContext)
}

func run(ctx context.Context, op func() error, opts Options, sleep func(context.Context, time.Duration) error) error {
	var lastErr error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !opts.retryable(lastErr) {
			return lastErr
		}

		last := attempt == opts.MaxRetries
		skip := runHooks(opts.Hooks, lastErr, last)
		if last {
			break
		}
		if skip {
			continue
		}
		if err := sleep(ctx, backoff(attempt)); err != nil {
			return err
		}
	}
	return lastErr
}

func runHooks(hooks []Hook, failure error, last bool) bool {
	skip := false
	for _, hook := range hooks {
		if err := hook(failure, last); err != nil {
			if errors.Is(err, ErrSkipSleep) {
				skip = true
				continue
			}
			log.WithField("error", err).Warn("retry hook failed")
		}
	}
	return skip
}

func sleepBlocking(_ context.Context, d time.Duration) error {
	time.Sleep(d)
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
