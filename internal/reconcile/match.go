package reconcile

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cleared-dev/tally/internal/model"
)

// Relevant returns the rules that may apply to a transaction of polarity p:
// active, auto-applied and targeting p's category.
func Relevant(rules []model.Rule, p model.Polarity) []model.Rule {
	want := p.Category()
	var out []model.Rule
	for _, r := range rules {
		if r.Active && r.AutoApply && r.TargetCategory == want {
			out = append(out, r)
		}
	}
	return out
}

// Rank orders rules by specificity: patterned rules before catch-alls,
// longer cleaned patterns first. Equal ranks keep their input order.
func Rank(rules []model.Rule) []model.Rule {
	ranked := append([]model.Rule(nil), rules...)
	sort.SliceStable(ranked, func(i, j int) bool {
		li := utf8.RuneCountInString(model.CleanPattern(ranked[i].MatchPattern))
		lj := utf8.RuneCountInString(model.CleanPattern(ranked[j].MatchPattern))
		return li > lj
	})
	return ranked
}

// Matches reports whether r applies to description: an empty cleaned
// pattern matches anything, otherwise it must be a substring of the
// upper-cased description.
func Matches(r model.Rule, description string) bool {
	pattern := model.CleanPattern(r.MatchPattern)
	if pattern == "" {
		return true
	}
	return strings.Contains(strings.ToUpper(description), pattern)
}

// FirstMatch walks ranked and returns the first rule that matches.
func FirstMatch(ranked []model.Rule, description string) (model.Rule, bool) {
	for _, r := range ranked {
		if Matches(r, description) {
			return r, true
		}
	}
	return model.Rule{}, false
}

// FormatDescription turns a raw bank description into a posted one:
// whitespace collapsed, the first letter of every word title-cased, capped
// at model.MaxDescriptionLen runes. Punctuation such as "-", "/" or "*"
// starts a new word.
func FormatDescription(raw string) string {
	lower := strings.Join(strings.Fields(strings.ToLower(raw)), " ")
	var b strings.Builder
	b.Grow(len(lower))
	inWord := false
	for _, r := range lower {
		if !inWord && unicode.IsLetter(r) {
			r = unicode.ToTitle(r)
		}
		inWord = isWordRune(r)
		b.WriteRune(r)
	}
	return model.Truncate(b.String(), model.MaxDescriptionLen)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// PostedDescription picks the ledger description for txn under rule r.
func PostedDescription(r model.Rule, txn model.BankTransaction) string {
	if r.UseOriginalDescription {
		return FormatDescription(txn.Description)
	}
	return r.TargetDescription
}
