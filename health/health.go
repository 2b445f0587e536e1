// Package health implements the minimal storage-reachability probe: a
// named set of store.Pinger targets, each checked independently so one
// unreachable backend doesn't hide the status of the others.
package health

import (
	"context"
	"time"

	"github.com/libfaes/eventstream/store"
)

// Status is the outcome of probing one named target.
type Status struct {
	Name      string
	Reachable bool
	Error     string
	Latency   time.Duration
}

// Report aggregates every target's Status.
type Report struct {
	Healthy bool
	Targets []Status
}

// Checker probes a fixed set of named store.Pinger targets.
type Checker struct {
	targets map[string]store.Pinger
}

// NewChecker creates a Checker over targets, keyed by the same logical
// store names used elsewhere (config, StoreResolver).
func NewChecker(targets map[string]store.Pinger) *Checker {
	return &Checker{targets: targets}
}

// Check pings every target with ctx and returns the aggregate Report.
// Healthy is true only when every target responded without error.
func (c *Checker) Check(ctx context.Context) Report {
	report := Report{Healthy: true}
	for name, pinger := range c.targets {
		start := time.Now()
		err := pinger.Ping(ctx)
		status := Status{Name: name, Reachable: err == nil, Latency: time.Since(start)}
		if err != nil {
			status.Error = err.Error()
			report.Healthy = false
		}
		report.Targets = append(report.Targets, status)
	}
	return report
}
