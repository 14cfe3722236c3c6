package scheduler

import (
	"time"

	"github.com/arloliu/sensorsim/gateway"
)

// BatchOutcome is the result of one gateway call.
type BatchOutcome struct {
	Submitted int
	Succeeded int
	Failed    int
	// FailedIDs lists the records that were not stored: history ids or sensor ids.
	FailedIDs []string
	// Err is nil, a *gateway.PartialFailure, or the error that failed the whole call.
	Err error
}

// OK reports whether every submitted record was stored.
func (o BatchOutcome) OK() bool {
	return o.Err == nil
}

// Skip is a scenario that produced no records in a tick.
type Skip struct {
	SensorID string
	Err      error
}

// Report summarizes one tick.
type Report struct {
	Seq       uint64
	Tick      time.Time
	Scenarios int
	Skipped   []Skip
	History   BatchOutcome
	Snapshots BatchOutcome
	Duration  time.Duration
}

// OK reports whether every scenario was generated and stored.
func (r Report) OK() bool {
	return len(r.Skipped) == 0 && r.History.OK() && r.Snapshots.OK()
}

func outcomeOf(err error, ids []string) BatchOutcome {
	n := len(ids)
	o := BatchOutcome{Submitted: n, Err: err}

	switch failed, partial := gateway.FailedIDs(err); {
	case err == nil:
	case partial:
		o.FailedIDs = failed
	default:
		o.FailedIDs = ids
	}
	o.Failed = len(o.FailedIDs)
	o.Succeeded = n - o.Failed

	return o
}
