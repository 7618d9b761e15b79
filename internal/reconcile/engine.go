// Package reconcile turns pending bank transactions into ledger entries by
// matching them against the owner's rules.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cleared-dev/tally/internal/ledger"
	"github.com/cleared-dev/tally/internal/logging"
	"github.com/cleared-dev/tally/internal/metrics"
	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/store"
)

// ErrNoRelevantRules is returned, along with the result, when a batch has
// pending transactions and none of them has a single relevant rule.
var ErrNoRelevantRules = errors.New("reconcile: no relevant rules for any pending transaction")

// RuleSource supplies the owner's active rules.
type RuleSource interface {
	ListActive(ctx context.Context, ownerID string) ([]model.Rule, error)
}

// Engine reconciles bank transactions.
type Engine struct {
	rules   RuleSource
	ledger  ledger.Poster
	txns    store.TransactionStore
	metrics metrics.Collector
	logger  *logging.Logger
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics sets the metrics collector.
func WithMetrics(c metrics.Collector) Option {
	return func(e *Engine) { e.metrics = metrics.OrNoOp(c) }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.logger = logging.OrNop(l).Named("reconcile") }
}

// NewEngine creates an Engine.
func NewEngine(rules RuleSource, poster ledger.Poster, txns store.TransactionStore, opts ...Option) *Engine {
	e := &Engine{
		rules:   rules,
		ledger:  poster,
		txns:    txns,
		metrics: metrics.NoOp{},
		logger:  logging.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reconcile processes txns in order. Per-transaction failures are reported
// in the result, never as an error. The error is non-nil when rules cannot
// be loaded, when ctx is canceled (the partial result is returned), or
// ErrNoRelevantRules.
func (e *Engine) Reconcile(ctx context.Context, ownerID string, txns []model.BankTransaction) (*Result, error) {
	start := e.now()
	rules, err := e.rules.ListActive(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}

	log := e.logger.With(zap.String("owner", ownerID))
	log.Info("reconciliation started", zap.Int("transactions", len(txns)), zap.Int("rules", len(rules)))

	res := &Result{Outcomes: make([]Outcome, 0, len(txns))}
	for _, txn := range txns {
		if err := ctx.Err(); err != nil {
			e.finish(log, res, start)
			return res, err
		}
		out := e.reconcileOne(ctx, log, ownerID, rules, txn)
		switch out.Status {
		case StatusSuccess:
			res.PostedCount++
			res.ConsumedCount++
		case StatusMarkFailed:
			res.PostedCount++
		}
		e.metrics.RecordOutcome(string(out.Status))
		res.Outcomes = append(res.Outcomes, out)
	}

	e.finish(log, res, start)

	pending := res.Pending()
	if pending > 0 && res.Count(StatusNoRelevantRules) == pending {
		return res, fmt.Errorf("reconciling %d pending transactions: %w", pending, ErrNoRelevantRules)
	}
	return res, nil
}

// ReconcileSelected runs Reconcile on the transactions whose IDs are in ids.
func (e *Engine) ReconcileSelected(ctx context.Context, ownerID string, ids []string, txns []model.BankTransaction) (*Result, error) {
	return e.Reconcile(ctx, ownerID, Select(ids, txns))
}

// Select returns the transactions whose IDs are in ids, keeping txns order.
func Select(ids []string, txns []model.BankTransaction) []model.BankTransaction {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []model.BankTransaction
	for _, txn := range txns {
		if want[txn.ID] {
			out = append(out, txn)
		}
	}
	return out
}

func (e *Engine) finish(log *logging.Logger, res *Result, start time.Time) {
	elapsed := e.now().Sub(start)
	e.metrics.RecordRun(elapsed, res.PostedCount)
	log.Info("reconciliation finished",
		zap.Int("processed", len(res.Outcomes)),
		zap.Int("posted", res.PostedCount),
		zap.Int("consumed", res.ConsumedCount),
		zap.Duration("elapsed", elapsed),
	)
}

func (e *Engine) reconcileOne(ctx context.Context, log *logging.Logger, ownerID string, rules []model.Rule, txn model.BankTransaction) Outcome {
	out, rule, ok := match(rules, txn)
	if !ok {
		log.Debug("transaction not matched",
			zap.String("txn", txn.ID),
			zap.String("status", string(out.Status)),
			zap.String("polarity", string(txn.Polarity)),
		)
		return out
	}

	out.PostedDescription = PostedDescription(rule, txn)
	entry, err := e.ledger.PostEntry(ctx, ownerID, ledger.PostParams{
		Date:              txn.Date,
		Description:       out.PostedDescription,
		Amount:            txn.Amount,
		Category:          rule.TargetCategory,
		MonthBucket:       txn.MonthBucket(),
		BankTransactionID: txn.ID,
	})
	if err != nil || entry == nil {
		out.Status = StatusCreationFailed
		out.Error = "ledger entry not created"
		if err != nil {
			out.Error = err.Error()
		}
		log.Warn("ledger entry not created", zap.String("txn", txn.ID), zap.String("rule", rule.Name), zap.Error(err))
		return out
	}
	out.LedgerEntryID = entry.ID

	if err := e.txns.MarkConsumed(ctx, ownerID, txn.ID, entry.ID); err != nil {
		out.Status = StatusMarkFailed
		out.Error = err.Error()
		log.Error("ledger entry orphaned: transaction not marked consumed",
			zap.String("txn", txn.ID),
			zap.String("entry", entry.ID),
			zap.Error(err),
		)
		return out
	}

	out.Status = StatusSuccess
	log.Debug("transaction reconciled",
		zap.String("txn", txn.ID),
		zap.String("rule", rule.Name),
		zap.String("entry", entry.ID),
	)
	return out
}

// match runs the matching steps for txn. When ok is false, out carries the
// final status.
func match(rules []model.Rule, txn model.BankTransaction) (out Outcome, rule model.Rule, ok bool) {
	out = Outcome{
		TransactionID:     txn.ID,
		SourceDescription: model.Truncate(txn.Description, SourceDescriptionLen),
		Polarity:          txn.Polarity,
		ExpectedCategory:  txn.Polarity.Category(),
	}
	if txn.Consumed {
		out.Status = StatusAlreadyConsumed
		return out, model.Rule{}, false
	}

	relevant := Relevant(rules, txn.Polarity)
	if len(relevant) == 0 {
		out.Status = StatusNoRelevantRules
		out.MismatchedRules = mismatched(rules, txn)
		return out, model.Rule{}, false
	}

	ranked := Rank(relevant)
	rule, found := FirstMatch(ranked, txn.Description)
	if !found {
		out.Status = StatusNoRule
		out.TestedRules = make([]string, len(ranked))
		for i, r := range ranked {
			out.TestedRules[i] = r.Name
		}
		out.MismatchedRules = mismatched(rules, txn)
		return out, model.Rule{}, false
	}
	out.MatchedRule = rule.Name
	return out, rule, true
}

func mismatched(rules []model.Rule, txn model.BankTransaction) []string {
	want := txn.Polarity.Category()
	var names []string
	for _, r := range rules {
		if r.IsCatchAll() || !Matches(r, txn.Description) {
			continue
		}
		if r.TargetCategory != want || !r.AutoApply {
			names = append(names, r.Name)
		}
	}
	return names
}

// Preview reports the rule each transaction would use without posting
// anything or marking anything consumed.
func (e *Engine) Preview(ctx context.Context, ownerID string, txns []model.BankTransaction) (*Result, error) {
	rules, err := e.rules.ListActive(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}
	res := &Result{Outcomes: make([]Outcome, 0, len(txns))}
	for _, txn := range txns {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		out, rule, ok := match(rules, txn)
		if ok {
			out.Status = StatusMatched
			out.PostedDescription = PostedDescription(rule, txn)
		}
		res.Outcomes = append(res.Outcomes, out)
	}
	return res, nil
}
