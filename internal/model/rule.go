package model

// Rule maps bank descriptions to a ledger category. An empty MatchPattern
// matches every description.
type Rule struct {
	ID                     string
	OwnerID                string
	Name                   string
	MatchPattern           string
	TargetDescription      string
	TargetCategory         Category
	AutoApply              bool
	Active                 bool
	UseOriginalDescription bool
}

// IsCatchAll reports whether the rule has no textual pattern.
func (r Rule) IsCatchAll() bool {
	return CleanPattern(r.MatchPattern) == ""
}
