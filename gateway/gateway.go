// Package gateway defines the persistence boundary of the simulator.
//
// A Gateway stores two things per tick: an append-only batch of history records and a batch
// of latest-value snapshots keyed by sensor ID. Both operations are idempotent, independent of
// each other, and best-effort per record:
//
//   - nil means every record in the batch is stored.
//   - a *PartialFailure lists the records that were not stored; the rest were.
//   - any other error means the whole operation failed.
//
// Implementations live in sub-packages (mongostore, pgstore, natsstore). Memory is an in-process
// implementation for tests and dry runs.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/arloliu/sensorsim/record"
)

// Operation names used in errors, logs and telemetry.
const (
	OpAppendHistory   = "append_history"
	OpUpsertSnapshots = "upsert_snapshots"
)

// ErrClosed is returned by gateways used after Close.
var ErrClosed = errors.New("gateway: closed")

// Gateway persists the records produced by one tick.
type Gateway interface {
	// AppendHistory stores records. Appending a record whose ID is already stored is a no-op.
	AppendHistory(ctx context.Context, records []record.History) error

	// UpsertSnapshots overwrites the snapshot of each record's sensor.
	// A record older than the stored snapshot is skipped and counts as stored.
	UpsertSnapshots(ctx context.Context, records []record.Snapshot) error
}

// PartialFailure reports the records of a batch that were not stored.
// FailedIDs holds history record IDs for OpAppendHistory and sensor IDs for OpUpsertSnapshots.
type PartialFailure struct {
	Op        string
	FailedIDs []string
	Cause     error
}

func (e *PartialFailure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d record(s) failed", e.Op, len(e.FailedIDs))
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}

	return b.String()
}

func (e *PartialFailure) Unwrap() error {
	return e.Cause
}

// IsPartial reports whether err is a *PartialFailure.
func IsPartial(err error) bool {
	var pf *PartialFailure
	return errors.As(err, &pf)
}

// FailedIDs returns the ids carried by a *PartialFailure in err.
func FailedIDs(err error) ([]string, bool) {
	var pf *PartialFailure
	if !errors.As(err, &pf) {
		return nil, false
	}

	return pf.FailedIDs, true
}

// NewPartialFailure builds a PartialFailure, or returns nil when no ids failed.
func NewPartialFailure(op string, failed []string, causes ...error) error {
	if len(failed) == 0 {
		return nil
	}

	return &PartialFailure{Op: op, FailedIDs: failed, Cause: errors.Join(causes...)}
}

// Failed returns how many records of a batch of size n were not stored according to err.
func Failed(err error, n int) int {
	if err == nil {
		return 0
	}
	if ids, ok := FailedIDs(err); ok {
		return len(ids)
	}

	return n
}
