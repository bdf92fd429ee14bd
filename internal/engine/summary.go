// Package engine applies mailbox rules: it plans server-side searches,
// fetches and confirms candidates, merges the actions every matched
// message needs, and executes them in batches.
package engine

import (
	"sort"
	"time"
)

// RunState tracks a run through its phases. A run that completes lands
// in StateExecuted or, with dry run on, StateDryReported. Only an
// authentication failure aborts.
type RunState string

const (
	StateLoaded      RunState = "LOADED"
	StatePlanned     RunState = "PLANNED"
	StateFetched     RunState = "FETCHED"
	StateAggregated  RunState = "AGGREGATED"
	StateExecuted    RunState = "EXECUTED"
	StateDryReported RunState = "DRY_REPORTED"
	StateAborted     RunState = "ABORTED"
)

// ErrorKind classifies a failure recorded in the summary. Everything
// here is isolated: the run continues past it.
type ErrorKind string

const (
	ErrorRuleValidation       ErrorKind = "rule_validation"
	ErrorUnsupportedCondition ErrorKind = "unsupported_condition"
	ErrorCandidateFetch       ErrorKind = "candidate_fetch"
	ErrorDetailFetch          ErrorKind = "detail_fetch"
	ErrorLabelResolution      ErrorKind = "label_resolution"
	ErrorBatchExecution       ErrorKind = "batch_execution"
)

// RunError is one recorded failure. RuleID, Action and MessageIDs are
// filled when the failure is scoped to them.
type RunError struct {
	Kind       ErrorKind `json:"kind"`
	RuleID     string    `json:"rule_id,omitempty"`
	Action     string    `json:"action,omitempty"`
	MessageIDs []string  `json:"message_ids,omitempty"`
	Message    string    `json:"message"`
}

// RunSummary reports what a run scanned, matched and did. Action counts
// are keyed the way the executor groups work, e.g. "add_label:Receipts"
// or "trash", and count messages, not API calls. In dry run the counts
// are what would have been executed.
type RunSummary struct {
	State           RunState       `json:"state"`
	DryRun          bool           `json:"dry_run"`
	Scanned         int            `json:"total_messages_scanned"`
	Matched         int            `json:"messages_matching_any_rule"`
	MatchedPerRule  map[string]int `json:"matches_per_rule"`
	ActionCounts    map[string]int `json:"actions_planned_or_taken"`
	BudgetExhausted bool           `json:"scan_budget_exhausted,omitempty"`
	Errors          []RunError     `json:"errors,omitempty"`

	StartedAt time.Time     `json:"-"`
	Elapsed   time.Duration `json:"-"`
}

func newRunSummary(dryRun bool) *RunSummary {
	return &RunSummary{
		State:          StateLoaded,
		DryRun:         dryRun,
		MatchedPerRule: make(map[string]int),
		ActionCounts:   make(map[string]int),
		StartedAt:      time.Now(),
	}
}

func (s *RunSummary) recordError(e RunError) {
	s.Errors = append(s.Errors, e)
}

func (s *RunSummary) addActions(key string, n int) {
	if n > 0 {
		s.ActionCounts[key] += n
	}
}

// TotalActions returns the number of message actions counted across all
// action keys.
func (s *RunSummary) TotalActions() int {
	total := 0
	for _, n := range s.ActionCounts {
		total += n
	}
	return total
}

// ActionKeys returns the action count keys in executor dispatch order,
// for stable rendering.
func (s *RunSummary) ActionKeys() []string {
	keys := make([]string, 0, len(s.ActionCounts))
	for k := range s.ActionCounts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := actionRank(keys[i]), actionRank(keys[j])
		if ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})
	return keys
}

// HasErrors reports whether any failure was recorded.
func (s *RunSummary) HasErrors() bool {
	return len(s.Errors) > 0
}
