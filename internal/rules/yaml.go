package rules

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/tally/internal/model"
)

// DefaultPath is the rules file location relative to the project root.
const DefaultPath = "rules/reconciliation-rules.yaml"

// File is the on-disk rules document.
type File struct {
	Rules []FileRule `yaml:"rules"`
}

// FileRule is one rule in the rules file. Active defaults to true when
// omitted.
type FileRule struct {
	Name                   string `yaml:"name"`
	Pattern                string `yaml:"pattern"`
	Description            string `yaml:"description"`
	Category               string `yaml:"category"`
	AutoApply              bool   `yaml:"auto_apply"`
	Active                 *bool  `yaml:"active,omitempty"`
	UseOriginalDescription bool   `yaml:"use_original_description"`
}

// ReadRules decodes a rules file.
func ReadRules(r io.Reader) ([]model.Rule, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("parsing rules file: %w", err)
	}

	out := make([]model.Rule, 0, len(f.Rules))
	for i, fr := range f.Rules {
		category, err := model.ParseCategory(fr.Category)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i+1, fr.Name, err)
		}
		active := true
		if fr.Active != nil {
			active = *fr.Active
		}
		out = append(out, model.Rule{
			Name:                   fr.Name,
			MatchPattern:           fr.Pattern,
			TargetDescription:      fr.Description,
			TargetCategory:         category,
			AutoApply:              fr.AutoApply,
			Active:                 active,
			UseOriginalDescription: fr.UseOriginalDescription,
		})
	}
	return out, nil
}

// WriteRules encodes rules as a rules file.
func WriteRules(w io.Writer, rules []model.Rule) error {
	f := File{Rules: make([]FileRule, len(rules))}
	for i, r := range rules {
		active := r.Active
		f.Rules[i] = FileRule{
			Name:                   r.Name,
			Pattern:                r.MatchPattern,
			Description:            r.TargetDescription,
			Category:               string(r.TargetCategory),
			AutoApply:              r.AutoApply,
			Active:                 &active,
			UseOriginalDescription: r.UseOriginalDescription,
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encoding rules file: %w", err)
	}
	return enc.Close()
}
