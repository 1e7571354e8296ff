// Package sender delivers batches of outbound Telegram messages over a small
// worker pool with per-job retries. One failed recipient never aborts the batch.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/meterbot/core/logger"
	"github.com/m3rciful/meterbot/core/telegram/netutil"
)

// Options controls the behaviour of the dispatcher.
type Options struct {
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
}

// Job is one delivery to one recipient. Run must be safe to call again on retry.
type Job struct {
	Recipient int64
	Run       func(ctx context.Context) error
}

// Summary counts the outcome of a batch.
type Summary struct {
	Sent   int
	Failed int
}

// Dispatcher executes delivery batches.
type Dispatcher struct {
	opts Options
}

// NewDispatcher returns a dispatcher with defaults applied to zero options.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}
	return &Dispatcher{opts: opts}
}

// Deliver runs every job and blocks until the batch is finished or ctx is done.
// Jobs not started before cancellation count as failed.
func (d *Dispatcher) Deliver(ctx context.Context, action string, jobs []Job) Summary {
	var sent, failed atomic.Int64
	queue := make(chan Job)

	var wg sync.WaitGroup
	workers := d.opts.Workers
	if workers > len(jobs) {
		workers = len(jobs)
	}
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := range queue {
				if err := d.run(ctx, action, j); err != nil {
					failed.Add(1)
					continue
				}
				sent.Add(1)
			}
		}()
	}

	enqueued := 0
feed:
	for _, j := range jobs {
		select {
		case <-ctx.Done():
			break feed
		case queue <- j:
			enqueued++
		}
	}
	close(queue)
	wg.Wait()

	failed.Add(int64(len(jobs) - enqueued))
	return Summary{Sent: int(sent.Load()), Failed: int(failed.Load())}
}

func (d *Dispatcher) run(ctx context.Context, action string, j Job) error {
	if j.Run == nil {
		return errors.New("telegram sender: nil run function")
	}
	deadlineCtx, cancel := context.WithTimeout(ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := deadlineCtx.Err(); err != nil {
			lastErr = err
			break
		}
		err := j.Run(deadlineCtx)
		if err == nil {
			if attempt > 1 {
				logger.Info(ctx, "tg.sender", "send.retry.success",
					slog.String("action", action),
					slog.Int64("user_id", j.Recipient),
					slog.Int("attempt", attempt),
				)
			}
			return nil
		}
		lastErr = err
		if !netutil.ShouldRetry(err) || attempt == attempts {
			break
		}

		delay := d.opts.RetryBackoff * time.Duration(attempt)
		if wait, ok := netutil.RetryAfter(err); ok {
			delay = wait
		}
		timer := time.NewTimer(delay)
		select {
		case <-deadlineCtx.Done():
			timer.Stop()
			lastErr = deadlineCtx.Err()
			attempt = attempts
		case <-timer.C:
			logger.Debug(ctx, "tg.sender", "send.retry.backoff",
				slog.String("action", action),
				slog.Int64("user_id", j.Recipient),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
			)
		}
	}

	logger.Error(ctx, "tg.sender", "send.fail",
		slog.String("action", action),
		slog.Int64("user_id", j.Recipient),
		slog.String("err", sanitizeErrorMessage(lastErr)),
		slog.String("error_kind", classifyError(lastErr)),
		slog.Int("attempts", attempts),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return lastErr
}
