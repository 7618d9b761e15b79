// Package ledger posts income and expense entries into per-owner monthly
// CSV files under <root>/ledger.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tally/internal/id"
	"github.com/cleared-dev/tally/internal/model"
)

// ErrDuplicateTransaction is returned when the bank transaction already has
// an entry, which keeps posting at most once under concurrent runs.
var ErrDuplicateTransaction = errors.New("ledger: bank transaction already posted")

// PostParams holds the fields of a new ledger entry.
type PostParams struct {
	Date              time.Time
	Description       string
	Amount            decimal.Decimal
	Category          model.Category
	MonthBucket       string
	BankTransactionID string
}

// Poster creates ledger entries. The reconciliation engine depends only on this.
type Poster interface {
	PostEntry(ctx context.Context, ownerID string, p PostParams) (*model.LedgerEntry, error)
}

// Ledger is a Poster that can also read a month back.
type Ledger interface {
	Poster
	ReadMonth(ctx context.Context, ownerID, month string) ([]model.LedgerEntry, error)
}

// Service is the file-backed Ledger.
type Service struct {
	root string
	mu   sync.Mutex
	now  func() time.Time
}

var _ Ledger = (*Service)(nil)

// NewService creates a ledger Service writing under root/ledger.
func NewService(root string) *Service {
	return &Service{root: root, now: time.Now}
}

// PostEntry validates p, assigns the next sequence of its month and appends
// the entry to that month's ledger.csv.
func (s *Service) PostEntry(ctx context.Context, ownerID string, p PostParams) (*model.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := Invalid(Validate(p)); err != nil {
		return nil, err
	}
	year, month, _ := id.ParseMonth(p.MonthBucket)

	path, err := s.monthPath(ownerID, year, month)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if p.BankTransactionID != "" {
		for _, e := range existing {
			if e.BankTransactionID == p.BankTransactionID {
				return nil, fmt.Errorf("posting %s: %w (entry %s)", p.BankTransactionID, ErrDuplicateTransaction, e.ID)
			}
		}
	}
	seq, err := nextSeq(existing)
	if err != nil {
		return nil, err
	}

	entry := model.LedgerEntry{
		ID:                id.FormatEntryID(year, month, seq),
		OwnerID:           ownerID,
		Date:              p.Date,
		Description:       p.Description,
		Amount:            p.Amount,
		Category:          p.Category,
		MonthBucket:       p.MonthBucket,
		BankTransactionID: p.BankTransactionID,
		CreatedAt:         s.now().UTC().Truncate(time.Second),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger dir: %w", err)
	}

	isNew := false
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		isNew = true
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	defer f.Close()

	if isNew {
		if _, err := fmt.Fprintln(f, Header); err != nil {
			return nil, fmt.Errorf("writing header: %w", err)
		}
	}
	if err := AppendEntries(f, []model.LedgerEntry{entry}); err != nil {
		return nil, fmt.Errorf("appending entry: %w", err)
	}
	return &entry, nil
}

// ReadMonth reads every entry of a "YYYY-MM" month for the owner.
func (s *Service) ReadMonth(ctx context.Context, ownerID, month string) ([]model.LedgerEntry, error) {
	year, m, err := id.ParseMonth(month)
	if err != nil {
		return nil, err
	}
	path, err := s.monthPath(ownerID, year, m)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return readFile(path)
}

// NextEntrySeq returns the next available sequence number for a month.
func (s *Service) NextEntrySeq(ownerID string, year, month int) (int, error) {
	path, err := s.monthPath(ownerID, year, month)
	if err != nil {
		return 0, err
	}
	entries, err := readFile(path)
	if err != nil {
		return 0, err
	}
	return nextSeq(entries)
}

func nextSeq(entries []model.LedgerEntry) (int, error) {
	if verrs := ValidateMonth(entries); len(verrs) > 0 {
		return 0, fmt.Errorf("ledger month is inconsistent: %v", verrs[0])
	}
	return len(entries) + 1, nil
}

func readFile(path string) ([]model.LedgerEntry, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", path, err)
	}
	defer f.Close()

	entries, err := ReadEntries(f)
	if err != nil {
		return nil, fmt.Errorf("reading ledger %s: %w", path, err)
	}
	return entries, nil
}

func (s *Service) monthPath(ownerID string, year, month int) (string, error) {
	if ownerID == "" || ownerID == "." || ownerID == ".." || strings.ContainsAny(ownerID, `/\`) {
		return "", fmt.Errorf("invalid owner ID %q", ownerID)
	}
	return filepath.Join(s.root, "ledger", ownerID, fmt.Sprintf("%04d", year), fmt.Sprintf("%02d", month), "ledger.csv"), nil
}

// Totals sums income and expense amounts of entries.
func Totals(entries []model.LedgerEntry) (income, expense decimal.Decimal) {
	for _, e := range entries {
		switch e.Category {
		case model.CategoryIncome:
			income = income.Add(e.Amount)
		case model.CategoryExpense:
			expense = expense.Add(e.Amount)
		}
	}
	return income, expense
}
