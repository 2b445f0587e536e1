// Package migration implements the migration orchestrator: a builder that
// assembles a frozen model.MigrationContext, a saga executor that runs the
// seven-phase copy-transform-and-cutover protocol with compensating
// rollback, a progress tracker, a bulk-migration runner, and a directory
// service for pause/resume/cancel control over in-flight migrations.
package migration

import (
	"time"

	"github.com/libfaes/eventstream/model"
)

// CheckResult is one named check performed during verification.
type CheckResult struct {
	Name    string
	Passed  bool
	Message string
}

// VerificationResult aggregates every check run during the Verify phase.
type VerificationResult struct {
	Valid  bool
	Checks []CheckResult
}

// SourceAnalysis summarizes the source stream for dry-run planning.
type SourceAnalysis struct {
	EventCount             int
	EventTypeDistribution  map[string]int
}

// TransformationFailure records one event that failed transformation
// during dry-run simulation.
type TransformationFailure struct {
	EventName string
	Error     string
}

// TransformationSimulation reports the outcome of dry-run-applying the
// transformer to a sample of source events without writing anything.
type TransformationSimulation struct {
	SampleSize int
	Successful int
	Failed     int
	Failures   []TransformationFailure
}

// Prerequisite is one named precondition checked during dry-run planning.
type Prerequisite struct {
	Name  string
	IsMet bool
}

// RiskSeverity classifies a Risk entry in a MigrationPlan.
type RiskSeverity string

const (
	RiskSeverityHigh   RiskSeverity = "High"
	RiskSeverityMedium RiskSeverity = "Medium"
	RiskSeverityLow    RiskSeverity = "Low"
)

// Risk is one rule-based concern surfaced by dry-run planning.
type Risk struct {
	Category    string
	Severity    RiskSeverity
	Description string
}

// MigrationPlan is the output of a dry-run: what would happen, without
// writing anything.
type MigrationPlan struct {
	SourceAnalysis           SourceAnalysis
	TransformationSimulation TransformationSimulation
	Prerequisites            []Prerequisite
	Risks                    []Risk
	IsFeasible               bool
}

// HasHighSeverityRisk reports whether any risk in the plan is rated High,
// the rule IsFeasible is derived from.
func (p *MigrationPlan) HasHighSeverityRisk() bool {
	for _, r := range p.Risks {
		if r.Severity == RiskSeverityHigh {
			return true
		}
	}
	return false
}

// Statistics is the final tally an executor run produces, dry-run or not.
type Statistics struct {
	TotalEvents             int
	EventsTransformed       int
	TransformationFailures  int
	AverageEventsPerSecond  float64
	TotalBytes              int64
	RolledBack              bool
	SnapshotCreated         bool
	CompletedAt             time.Time
}

// Result is the outcome of one migration run, successful or not.
type Result struct {
	Success             bool
	Status              model.MigrationStatus
	MigrationId         string
	Statistics          Statistics
	VerificationResult  *VerificationResult
	Plan                *MigrationPlan
	Err                 error
}
