package model

import "fmt"

// Polarity is the direction of a bank movement.
type Polarity string

const (
	PolarityCredit Polarity = "credit"
	PolarityDebit  Polarity = "debit"
)

// Category is the ledger side a posted entry lands on.
type Category string

const (
	CategoryIncome  Category = "income"
	CategoryExpense Category = "expense"
)

// Category returns the only ledger category a transaction of this polarity
// may be posted to: credit -> income, debit -> expense.
func (p Polarity) Category() Category {
	if p == PolarityCredit {
		return CategoryIncome
	}
	return CategoryExpense
}

// Valid reports whether p is one of the two known polarities.
func (p Polarity) Valid() bool {
	return p == PolarityCredit || p == PolarityDebit
}

// Valid reports whether c is one of the two ledger categories.
func (c Category) Valid() bool {
	return c == CategoryIncome || c == CategoryExpense
}

// ParsePolarity converts a stored string to a Polarity.
func ParsePolarity(s string) (Polarity, error) {
	p := Polarity(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown polarity %q", s)
	}
	return p, nil
}

// ParseCategory converts a stored string to a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}
