package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/cleared-dev/tally/internal/config"
	"github.com/cleared-dev/tally/internal/importer"
	"github.com/cleared-dev/tally/internal/ledger"
	"github.com/cleared-dev/tally/internal/logging"
	"github.com/cleared-dev/tally/internal/metrics"
	"github.com/cleared-dev/tally/internal/reconcile"
	"github.com/cleared-dev/tally/internal/resilience"
	"github.com/cleared-dev/tally/internal/rules"
	"github.com/cleared-dev/tally/internal/statements"
	"github.com/cleared-dev/tally/internal/store"
	"github.com/cleared-dev/tally/internal/store/filestore"
	"github.com/cleared-dev/tally/internal/store/memory"
	"github.com/cleared-dev/tally/internal/store/postgres"
)

// app holds the services one command invocation works with.
type app struct {
	root   string
	cfg    *config.Config
	logger *logging.Logger

	store      store.Store
	ledger     *resilience.BreakerLedger
	rules      *rules.Service
	statements *statements.Manager
	registry   *importer.Registry
	engine     *reconcile.Engine

	gatherer *prometheus.Registry
	pg       *postgres.Store
}

// openApp loads <root>/tally.yaml and wires the configured backends.
func openApp(ctx context.Context, root string) (*app, error) {
	cfg, err := config.Load(filepath.Join(root, config.FileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s not found in %s: run 'tally init' first", config.FileName, root)
		}
		return nil, err
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	a := &app{root: root, cfg: cfg, logger: logger}

	var collector metrics.Collector = metrics.NoOp{}
	if cfg.Metrics.Enabled {
		prom := metrics.NewPrometheus(cfg.Metrics.Namespace)
		a.gatherer = prometheus.NewRegistry()
		if err := prom.Register(a.gatherer); err != nil {
			return nil, fmt.Errorf("registering metrics: %w", err)
		}
		collector = prom
	}

	openPostgres := func() (*postgres.Store, error) {
		if a.pg != nil {
			return a.pg, nil
		}
		s, err := postgres.Open(ctx, cfg.Storage.Postgres)
		if err != nil {
			return nil, err
		}
		a.pg = s
		return s, nil
	}

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		a.store = memory.New()
	case config.BackendPostgres:
		s, err := openPostgres()
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store = s
	default:
		s, err := filestore.New(root)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store = s
	}

	var next ledger.Ledger
	switch cfg.LedgerBackend() {
	case config.BackendPostgres:
		s, err := openPostgres()
		if err != nil {
			a.Close()
			return nil, err
		}
		next = s
	default:
		next = ledger.NewService(root)
	}
	a.ledger = resilience.NewBreakerLedger("ledger", next, cfg.Ledger.Breaker, collector, logger)

	a.rules = rules.NewService(a.store, logger)
	a.statements = statements.NewManager(a.store, logger)
	a.registry = importer.DefaultRegistry(logger)
	a.engine = reconcile.NewEngine(a.rules, a.ledger, a.store,
		reconcile.WithMetrics(collector),
		reconcile.WithLogger(logger),
	)

	logger.Debug("app opened",
		zap.String("root", root),
		zap.String("owner", cfg.Owner),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("ledger", cfg.LedgerBackend()),
	)
	return a, nil
}

func (a *app) owner() string { return a.cfg.Owner }

// flushMetrics writes the gathered metrics to the configured textfile.
func (a *app) flushMetrics() error {
	if a.gatherer == nil || a.cfg.Metrics.Textfile == "" {
		return nil
	}
	path := a.path(a.cfg.Metrics.Textfile)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, a.gatherer); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}

// Close releases backends and flushes the logger.
func (a *app) Close() error {
	var err error
	switch {
	case a.pg != nil:
		err = a.pg.Close()
	case a.store != nil:
		err = a.store.Close()
	}
	a.pg, a.store = nil, nil
	_ = a.logger.Sync()
	return err
}

// path resolves p against the project root unless it is absolute.
func (a *app) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(a.root, p)
}
