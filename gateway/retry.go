package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/arloliu/sensorsim/record"
)

// RetryPolicy configures WithRetry.
type RetryPolicy struct {
	// MaxAttempts is the total number of submissions per operation, including the first.
	// Values below 2 disable retries.
	MaxAttempts uint `yaml:"maxAttempts" env:"SENSORSIM_RETRY_MAX_ATTEMPTS" default:"3"`

	// InitialInterval is the delay before the first retry; later delays grow exponentially.
	InitialInterval time.Duration `yaml:"initialInterval" default:"200ms" validate:"gte=0"`

	// MaxInterval caps the delay between retries.
	MaxInterval time.Duration `yaml:"maxInterval" default:"2s" validate:"gte=0"`
}

// Retrying retries failed gateway operations with exponential backoff.
// After a PartialFailure only the failed records are submitted again.
type Retrying struct {
	next   Gateway
	policy RetryPolicy
	logger *slog.Logger
}

var _ Gateway = (*Retrying)(nil)

// WithRetry wraps g with retries. It returns g unchanged when the policy disables retries.
func WithRetry(g Gateway, policy RetryPolicy, logger *slog.Logger) Gateway {
	if policy.MaxAttempts < 2 {
		return g
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Retrying{next: g, policy: policy, logger: logger}
}

// AppendHistory implements Gateway.
func (r *Retrying) AppendHistory(ctx context.Context, records []record.History) error {
	return retryBatch(ctx, r, OpAppendHistory, records,
		func(h record.History) string { return h.ID },
		r.next.AppendHistory,
	)
}

// UpsertSnapshots implements Gateway.
func (r *Retrying) UpsertSnapshots(ctx context.Context, records []record.Snapshot) error {
	return retryBatch(ctx, r, OpUpsertSnapshots, records,
		func(s record.Snapshot) string { return s.SensorID },
		r.next.UpsertSnapshots,
	)
}

func (r *Retrying) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if r.policy.InitialInterval > 0 {
		b.InitialInterval = r.policy.InitialInterval
	}
	if r.policy.MaxInterval > 0 {
		b.MaxInterval = r.policy.MaxInterval
	}

	return b
}

func retryBatch[T any](
	ctx context.Context,
	r *Retrying,
	op string,
	records []T,
	id func(T) string,
	submit func(context.Context, []T) error,
) error {
	if len(records) == 0 {
		return nil
	}

	pending := records
	attempt := 0

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := submit(ctx, pending)
		if err == nil {
			return struct{}{}, nil
		}
		if !retryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}

		if failed, ok := FailedIDs(err); ok {
			pending = subset(pending, failed, id)
		}
		r.logger.Debug("gateway operation failed, retrying",
			"op", op, "attempt", attempt, "pending", len(pending), "error", err)

		return struct{}{}, err
	},
		backoff.WithBackOff(r.backOff()),
		backoff.WithMaxTries(r.policy.MaxAttempts),
	)
	if err == nil {
		return nil
	}
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}

	// Earlier attempts may have stored part of the batch; report only what is still missing.
	if len(pending) < len(records) && !IsPartial(err) {
		ids := make([]string, len(pending))
		for i, p := range pending {
			ids[i] = id(p)
		}

		return &PartialFailure{Op: op, FailedIDs: ids, Cause: err}
	}

	return err
}

func retryable(err error) bool {
	return !errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded) &&
		!errors.Is(err, ErrClosed)
}

// subset keeps the records whose id is in failed, preserving order.
func subset[T any](records []T, failed []string, id func(T) string) []T {
	want := make(map[string]struct{}, len(failed))
	for _, f := range failed {
		want[f] = struct{}{}
	}

	out := make([]T, 0, len(failed))
	for _, rec := range records {
		if _, ok := want[id(rec)]; ok {
			out = append(out, rec)
		}
	}

	return out
}
