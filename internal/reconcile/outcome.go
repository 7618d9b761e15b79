package reconcile

import (
	"github.com/cleared-dev/tally/internal/model"
)

// Status is the per-transaction result of a reconciliation pass.
type Status string

const (
	StatusSuccess         Status = "success"
	StatusAlreadyConsumed Status = "already_consumed"
	StatusNoRelevantRules Status = "no_relevant_rules"
	StatusNoRule          Status = "no_rule"
	StatusCreationFailed  Status = "creation_failed"
	StatusMarkFailed      Status = "mark_failed"

	// StatusMatched is reported by Preview only: a rule would be applied.
	StatusMatched Status = "matched"
)

// SourceDescriptionLen caps Outcome.SourceDescription, in runes.
const SourceDescriptionLen = 50

// Outcome records what happened to one transaction.
type Outcome struct {
	TransactionID     string
	SourceDescription string
	Status            Status
	MatchedRule       string
	PostedDescription string
	LedgerEntryID     string
	Error             string

	Polarity         model.Polarity
	ExpectedCategory model.Category
	// TestedRules lists the relevant rules tried, in rank order, when no
	// rule matched.
	TestedRules []string
	// MismatchedRules lists active rules whose pattern matched the
	// description but which could not apply (wrong category or not
	// auto-applied).
	MismatchedRules []string
}

// Failed reports whether the outcome needs user attention.
func (o Outcome) Failed() bool {
	switch o.Status {
	case StatusSuccess, StatusAlreadyConsumed, StatusMatched:
		return false
	default:
		return true
	}
}

// Result is the outcome of one batch. PostedCount counts ledger entries
// created (mark_failed included); ConsumedCount counts transactions marked
// consumed by this run.
type Result struct {
	PostedCount   int
	ConsumedCount int
	Outcomes      []Outcome
}

// Count returns how many outcomes have status s.
func (r *Result) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Pending returns how many outcomes were not already consumed.
func (r *Result) Pending() int {
	return len(r.Outcomes) - r.Count(StatusAlreadyConsumed)
}
