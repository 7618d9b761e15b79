package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tally/internal/id"
	"github.com/cleared-dev/tally/internal/model"
)

// ValidationError describes a single rejected field.
type ValidationError struct {
	Field       string
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Description)
}

// ErrInvalidEntry is wrapped by PostEntry implementations when Validate
// rejects the params.
var ErrInvalidEntry = errors.New("ledger: invalid entry")

// Invalid joins verrs into an error wrapping ErrInvalidEntry, or returns nil.
func Invalid(verrs []ValidationError) error {
	if len(verrs) == 0 {
		return nil
	}
	msgs := make([]string, len(verrs))
	for i, ve := range verrs {
		msgs[i] = ve.Error()
	}
	return fmt.Errorf("%w: validation failed: %s", ErrInvalidEntry, strings.Join(msgs, "; "))
}

var hundred = decimal.NewFromInt(100)

// Validate checks params before anything is written.
func Validate(p PostParams) []ValidationError {
	var errs []ValidationError

	if p.Description == "" {
		errs = append(errs, ValidationError{Field: "description", Description: "must not be empty"})
	}
	if p.Amount.IsNegative() {
		errs = append(errs, ValidationError{Field: "amount", Description: fmt.Sprintf("%s must not be negative", p.Amount)})
	} else if !p.Amount.Mul(hundred).Equal(p.Amount.Mul(hundred).Floor()) {
		errs = append(errs, ValidationError{Field: "amount", Description: fmt.Sprintf("%s has more than 2 decimal places", p.Amount)})
	}
	if !p.Category.Valid() {
		errs = append(errs, ValidationError{Field: "category", Description: fmt.Sprintf("unknown category %q", p.Category)})
	}

	year, month, err := id.ParseMonth(p.MonthBucket)
	switch {
	case err != nil:
		errs = append(errs, ValidationError{Field: "month_bucket", Description: err.Error()})
	case p.Date.Year() != year || int(p.Date.Month()) != month:
		errs = append(errs, ValidationError{
			Field:       "month_bucket",
			Description: fmt.Sprintf("date %s not in %s", p.Date.Format(model.DateFormat), p.MonthBucket),
		})
	}
	return errs
}

// ValidateMonth checks that entry IDs in one month file are unique and
// contiguous from 1.
func ValidateMonth(entries []model.LedgerEntry) []ValidationError {
	var errs []ValidationError
	seen := make(map[int]bool)
	for _, e := range entries {
		_, _, seq, err := id.ParseEntryID(e.ID)
		if err != nil {
			errs = append(errs, ValidationError{Field: "entry_id", Description: err.Error()})
			continue
		}
		if seen[seq] {
			errs = append(errs, ValidationError{Field: "entry_id", Description: fmt.Sprintf("duplicate entry %s", e.ID)})
		}
		seen[seq] = true
	}
	for i := 1; i <= len(seen); i++ {
		if !seen[i] {
			errs = append(errs, ValidationError{Field: "entry_id", Description: fmt.Sprintf("missing sequence %d in 1..%d", i, len(seen))})
		}
	}
	return errs
}
