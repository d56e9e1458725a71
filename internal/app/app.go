package app

import (
	"context"
	"log/slog"

	"timeledger/internal/adapter/sqlstore"
	"timeledger/internal/config"
	"timeledger/internal/migrate"
	"timeledger/internal/ports"
	"timeledger/internal/usecase"
)

// Engine groups the use cases sharing one store.
type Engine struct {
	Codes      *usecase.ActivityCodeRegistry
	Projects   *usecase.ProjectLedger
	Validator  *usecase.TimeEntryValidator
	Entries    *usecase.TimeEntryService
	Timesheets *usecase.TimesheetWorkflow
	Sweep      *usecase.SweepUseCase
}

// NewEngine wires every use case to the repositories of store.
func NewEngine(log *slog.Logger, store ports.Store, now usecase.Clock, newID usecase.IDFunc) *Engine {
	codes := &usecase.ActivityCodeRegistry{
		Log:     log,
		Codes:   store.ActivityCodes(),
		Entries: store.TimeEntries(),
		Now:     now,
		NewID:   newID,
	}
	ledger := &usecase.ProjectLedger{
		Log:      log,
		Projects: store.Projects(),
		Codes:    store.ActivityCodes(),
		Entries:  store.TimeEntries(),
		Now:      now,
		NewID:    newID,
	}
	validator := &usecase.TimeEntryValidator{
		Log:      log,
		Projects: store.Projects(),
		Codes:    store.ActivityCodes(),
		Entries:  store.TimeEntries(),
	}
	entries := &usecase.TimeEntryService{
		Log:        log,
		Validator:  validator,
		Entries:    store.TimeEntries(),
		Timesheets: store.Timesheets(),
		Codes:      store.ActivityCodes(),
		Now:        now,
		NewID:      newID,
	}
	sheets := &usecase.TimesheetWorkflow{
		Log:        log,
		Timesheets: store.Timesheets(),
		Entries:    store.TimeEntries(),
		Projects:   store.Projects(),
		Service:    entries,
		Now:        now,
		NewID:      newID,
	}
	sweep := &usecase.SweepUseCase{
		Log:      log,
		Codes:    codes,
		Ledger:   ledger,
		Projects: store.Projects(),
	}
	return &Engine{
		Codes:      codes,
		Projects:   ledger,
		Validator:  validator,
		Entries:    entries,
		Timesheets: sheets,
		Sweep:      sweep,
	}
}

// App wires adapters and use cases.
type App struct {
	log     *slog.Logger
	store   *sqlstore.Store
	engine  *Engine
	tenants []string
}

func New(ctx context.Context, log *slog.Logger, cfg config.Config) (*App, error) {
	store, err := Open(ctx, log, cfg)
	if err != nil {
		return nil, err
	}
	return &App{
		log:     log,
		store:   store,
		engine:  NewEngine(log, store, nil, nil),
		tenants: cfg.Sweep.Tenants,
	}, nil
}

// Open connects the configured store and applies migrations before it is
// used.
func Open(ctx context.Context, log *slog.Logger, cfg config.Config) (*sqlstore.Store, error) {
	dialect, err := sqlstore.ParseDialect(cfg.Store.Driver)
	if err != nil {
		return nil, err
	}
	var store *sqlstore.Store
	switch dialect {
	case sqlstore.MySQL:
		store, err = sqlstore.OpenMySQL(ctx, cfg.Store.MySQLDSN, log)
	default:
		store, err = sqlstore.OpenSQLite(ctx, cfg.Store.SQLitePath, log)
	}
	if err != nil {
		return nil, err
	}
	if err := migrate.Run(ctx, store.DB(), string(dialect), log); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// Engine exposes the wired use cases.
func (a *App) Engine() *Engine { return a.engine }

// RunOnce sweeps the configured tenants.
func (a *App) RunOnce(ctx context.Context) ([]usecase.TenantReport, error) {
	return a.engine.Sweep.Run(ctx, a.tenants)
}

func (a *App) Close() error { return a.store.Close() }
