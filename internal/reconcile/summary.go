package reconcile

import (
	"fmt"
	"io"
	"strings"
)

// Summarize renders a batch result for the user: counts, success rate
// and one line per failed transaction with enough detail to fix a rule.
func Summarize(res *Result) string {
	var b strings.Builder
	WriteSummary(&b, res)
	return b.String()
}

// WriteSummary writes Summarize's output to w.
func WriteSummary(w io.Writer, res *Result) {
	pending := res.Pending()
	fmt.Fprintf(w, "Processed:        %d\n", len(res.Outcomes))
	fmt.Fprintf(w, "Already consumed: %d\n", res.Count(StatusAlreadyConsumed))
	fmt.Fprintf(w, "Posted:           %d\n", res.PostedCount)
	fmt.Fprintf(w, "Consumed:         %d\n", res.ConsumedCount)
	if pending > 0 {
		fmt.Fprintf(w, "Success rate:     %.1f%%\n", float64(res.ConsumedCount)*100/float64(pending))
	}

	var failed []Outcome
	for _, o := range res.Outcomes {
		if o.Failed() {
			failed = append(failed, o)
		}
	}
	if len(failed) == 0 {
		return
	}

	fmt.Fprintf(w, "\nNeeds attention (%d):\n", len(failed))
	for _, o := range failed {
		fmt.Fprintf(w, "  [%s] %q (%s, expected %s)", o.Status, o.SourceDescription, o.Polarity, o.ExpectedCategory)
		if o.MatchedRule != "" {
			fmt.Fprintf(w, " rule %q", o.MatchedRule)
		}
		if o.Error != "" {
			fmt.Fprintf(w, ": %s", o.Error)
		}
		fmt.Fprintln(w)
		if len(o.TestedRules) > 0 {
			fmt.Fprintf(w, "      tested: %s\n", strings.Join(o.TestedRules, ", "))
		}
		if len(o.MismatchedRules) > 0 {
			fmt.Fprintf(w, "      pattern matched but not applicable: %s\n", strings.Join(o.MismatchedRules, ", "))
		}
	}
}
