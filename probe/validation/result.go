// Package validation implements the storage validation engine: the test
// components that exercise one mounted device with real I/O, the
// orchestrator that sequences them, and the aggregation of their outcomes.
package validation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/driveprobe/driveprobe/probe/device"
)

// Kind names one test component.
type Kind string

const (
	KindPerformance Kind = "performance"
	KindIntegrity   Kind = "integrity"
	KindEndurance   Kind = "endurance"
	KindFault       Kind = "fault"
)

// AllKinds is the canonical execution order for a full suite.
var AllKinds = []Kind{KindPerformance, KindIntegrity, KindEndurance, KindFault}

// ParseKinds resolves a comma separated test selection, with "all"
// expanding to every component.
func ParseKinds(s string) ([]Kind, error) {
	if s == "" || s == "all" {
		return AllKinds, nil
	}
	var kinds []Kind
	for _, part := range strings.Split(s, ",") {
		k := Kind(strings.TrimSpace(part))
		switch k {
		case KindPerformance, KindIntegrity, KindEndurance, KindFault:
			kinds = append(kinds, k)
		default:
			return nil, fmt.Errorf("unknown test kind %q (want performance|integrity|endurance|fault|all)", part)
		}
	}
	return kinds, nil
}

// FaultKind names one injectable fault scenario.
type FaultKind string

const (
	TruncatedWrite      FaultKind = "truncated_write"
	ShortRead           FaultKind = "short_read"
	SimulatedDisconnect FaultKind = "simulated_disconnect"
)

// FailureRecord is diagnostic output only, never consulted for control flow.
type FailureRecord struct {
	Scenario string `json:"scenario"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Detail   string `json:"detail,omitempty"`
}

// Result is one component's outcome. Skipped trials stay out of Total so
// they never dilute the success rate. Immutable once returned by a
// component's Run.
type Result struct {
	Name        string             `json:"test_name"`
	Total       int                `json:"total_tests"`
	Passed      int                `json:"passed"`
	Failed      int                `json:"failed"`
	Skipped     int                `json:"skipped,omitempty"`
	NotRun      bool               `json:"not_run,omitempty"`
	SuccessRate float64            `json:"success_rate"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
	Failures    []FailureRecord    `json:"failures,omitempty"`
}

func newResult(name Kind) *Result {
	return &Result{
		Name:    string(name),
		Metrics: make(map[string]float64),
	}
}

func (r *Result) pass() {
	r.Total++
	r.Passed++
}

func (r *Result) fail(rec FailureRecord) {
	r.Total++
	r.Failed++
	r.Failures = append(r.Failures, rec)
}

func (r *Result) skip() {
	r.Skipped++
}

func (r *Result) finalize() *Result {
	r.SuccessRate = Rate(r.Passed, r.Total)
	return r
}

// MetricNames returns the metric keys in stable order, for rendering.
func (r *Result) MetricNames() []string {
	names := make([]string, 0, len(r.Metrics))
	for name := range r.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Suite is the per-device aggregate handed to the reporting collaborator.
// Field names and nesting are that collaborator's contract.
type Suite struct {
	RunID       string         `json:"run_id"`
	Device      *device.Target `json:"device"`
	StartedAt   time.Time      `json:"started_at"`
	ElapsedMs   int64          `json:"elapsed_ms"`
	Results     []*Result      `json:"results"`
	Total       int            `json:"total_tests"`
	Passed      int            `json:"passed"`
	Failed      int            `json:"failed"`
	SuccessRate float64        `json:"success_rate"`
	Aborted     bool           `json:"aborted,omitempty"`
}
