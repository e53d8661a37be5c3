package adapter

import (
	"fmt"

	"github.com/heptiolabs/healthcheck"

	"github.com/nabdio/nabd-go/nabd"
)

// NewHealthHandler builds a healthcheck handler wired to the named
// region. Liveness fails when the region is missing or corrupted;
// readiness additionally fails while the queue's fill level is at or
// above pressureThreshold percent.
func NewHealthHandler(q *nabd.Queue, pressureThreshold int) healthcheck.Handler {
	h := healthcheck.NewHandler()
	h.AddLivenessCheck("region-valid", RegionCheck(q.Name()))
	h.AddReadinessCheck("queue-pressure", PressureCheck(q, pressureThreshold))
	return h
}

// RegionCheck returns a check that diagnoses the named region.
func RegionCheck(name string) healthcheck.Check {
	return func() error {
		diag, err := nabd.Diagnose(name)
		if err != nil {
			return err
		}
		switch diag.State {
		case nabd.StateOK, nabd.StateEmpty:
			return nil
		default:
			return fmt.Errorf("region %s: %s", name, diag.State)
		}
	}
}

// PressureCheck returns a check that fails while the queue is
// pressured at or above threshold percent.
func PressureCheck(q *nabd.Queue, threshold int) healthcheck.Check {
	return func() error {
		if q.IsPressured(threshold) {
			return fmt.Errorf("queue pressured: fill %d%% >= %d%%", q.FillLevel(), threshold)
		}
		return nil
	}
}
