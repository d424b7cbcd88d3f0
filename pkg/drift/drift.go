// Package drift is the public entry point for the migration engine.
// It wires the repository, autodetector, graph, and executor together
// behind one client so callers never assemble the pipeline by hand.
package drift

import (
	"context"
	"fmt"
	"time"

	"github.com/eleven-am/drift/internal/autodetect"
	"github.com/eleven-am/drift/internal/executor"
	"github.com/eleven-am/drift/internal/logger"
	"github.com/eleven-am/drift/internal/migration"
	"github.com/eleven-am/drift/internal/operation"
	"github.com/eleven-am/drift/internal/schema"
	"github.com/eleven-am/drift/internal/sqlgen"
	"github.com/eleven-am/drift/internal/verify"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Config collects everything a client needs to operate.
type Config struct {
	DatabaseURL     string
	Driver          string
	MigrationsDir   string
	HistoryTable    string
	SchemaFile      string
	RenameThreshold float64
	MaxConnections  int
	Debug           bool
}

func NewConfig() *Config {
	return &Config{
		Driver:          "postgres",
		MigrationsDir:   "./migrations",
		HistoryTable:    executor.DefaultHistoryTable,
		SchemaFile:      "./schema.json",
		RenameThreshold: autodetect.DefaultRenameThreshold,
		MaxConnections:  10,
	}
}

// MigrationRef identifies one migration across the facade boundary.
type MigrationRef struct {
	App  string
	Name string
}

func (r MigrationRef) String() string {
	return r.App + "." + r.Name
}

func refOf(key migration.Key) MigrationRef {
	return MigrationRef{App: key.App, Name: key.Name}
}

func refsOf(keys []migration.Key) []MigrationRef {
	refs := make([]MigrationRef, len(keys))
	for i, key := range keys {
		refs[i] = refOf(key)
	}
	return refs
}

// Client is a connected migration engine.
type Client struct {
	cfg      *Config
	db       *sqlx.DB
	dialect  sqlgen.Dialect
	repo     *migration.Repository
	recorder *executor.Recorder
	locker   executor.Locker
	registry *operation.Registry
	log      logger.Logger
}

func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	dialect, err := sqlgen.ByName(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(cfg.Driver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	db.SetConnMaxLifetime(10 * time.Minute)
	db.SetMaxOpenConns(cfg.MaxConnections)

	var locker executor.Locker
	if cfg.Driver == "postgres" {
		locker = executor.NewAdvisoryLock(db)
	} else {
		locker = executor.NewLocalLock()
	}

	if cfg.Debug {
		logger.SetLevel("debug")
	}

	return &Client{
		cfg:      cfg,
		db:       db,
		dialect:  dialect,
		repo:     migration.NewRepository(cfg.MigrationsDir),
		recorder: executor.NewRecorder(db, cfg.HistoryTable),
		locker:   locker,
		registry: operation.NewRegistry(),
		log:      logger.CLI(),
	}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Registry exposes the RunCode registry so callers can register code
// migrations before running Migrate.
func (c *Client) Registry() *operation.Registry {
	return c.registry
}

// MakeMigrationsOptions controls migration generation.
type MakeMigrationsOptions struct {
	App    string
	Name   string
	DryRun bool
}

// Generated describes one migration file produced by MakeMigrations.
type Generated struct {
	Ref         MigrationRef
	Path        string
	Operations  []string
	UnsafeNotes []string
}

// MakeMigrations diffs the schema file against the state the existing
// migration files replay to, and writes one migration per changed app.
func (c *Client) MakeMigrations(_ context.Context, opts MakeMigrationsOptions) ([]Generated, error) {
	existing, err := c.repo.Load()
	if err != nil {
		return nil, err
	}
	from, err := migration.ReplayState(existing)
	if err != nil {
		return nil, err
	}
	to, err := schema.LoadSnapshot(c.cfg.SchemaFile)
	if err != nil {
		return nil, err
	}

	detector := autodetect.NewDetector()
	if c.cfg.RenameThreshold > 0 {
		detector.RenameThreshold = c.cfg.RenameThreshold
	}
	ops, err := detector.Detect(from, to)
	if err != nil {
		return nil, err
	}
	if len(ops) == 0 {
		return nil, nil
	}

	groups, apps, err := migration.GroupByApp(ops)
	if err != nil {
		return nil, err
	}
	if opts.App != "" {
		group, ok := groups[opts.App]
		if !ok {
			return nil, nil
		}
		groups = map[string][]operation.Operation{opts.App: group}
		apps = []string{opts.App}
	}

	names := make(map[string]string, len(apps))
	for _, app := range apps {
		suffix := opts.Name
		if suffix == "" {
			suffix = autodetect.SuggestName(groups[app])
		}
		name, err := c.repo.NextName(app, suffix)
		if err != nil {
			return nil, err
		}
		names[app] = name
	}

	latest, err := c.repo.LatestKeys()
	if err != nil {
		return nil, err
	}
	migrations, err := migration.Assemble(groups, names, latest)
	if err != nil {
		return nil, err
	}

	var out []Generated
	for _, m := range migrations {
		g := Generated{
			Ref:         refOf(m.Key()),
			UnsafeNotes: autodetect.UnsafeNotes(m.Operations),
		}
		for _, op := range m.Operations {
			g.Operations = append(g.Operations, op.Describe())
		}
		if !opts.DryRun {
			path, err := c.repo.Save(m)
			if err != nil {
				return nil, err
			}
			g.Path = path
		}
		out = append(out, g)
	}
	return out, nil
}

// MigrateOptions controls a forward run.
type MigrateOptions struct {
	Target *MigrationRef
	Fake   bool
	DryRun bool
}

// MigrateResult reports what a forward run did. Statements is only
// populated on dry runs.
type MigrateResult struct {
	Applied    []MigrationRef
	Skipped    []MigrationRef
	Statements []string
}

// Migrate applies every unapplied migration, in graph order, up to the
// target when one is given.
func (c *Client) Migrate(ctx context.Context, opts MigrateOptions) (*MigrateResult, error) {
	plan, err := c.plan()
	if err != nil {
		return nil, err
	}

	var target *migration.Key
	if opts.Target != nil {
		key := migration.NewKey(opts.Target.App, opts.Target.Name)
		target = &key
	}

	if opts.DryRun {
		return c.dryRun(ctx, plan, target)
	}

	exec := executor.New(c.db, c.dialect, c.recorder, c.locker, c.registry)
	report, err := exec.Apply(ctx, plan, executor.Options{Target: target, Fake: opts.Fake})
	result := &MigrateResult{}
	if report != nil {
		result.Applied = refsOf(report.Applied)
		result.Skipped = refsOf(report.Skipped)
	}
	return result, err
}

func (c *Client) dryRun(ctx context.Context, plan []*migration.Migration, target *migration.Key) (*MigrateResult, error) {
	if err := c.recorder.EnsureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := c.recorder.Applied(ctx)
	if err != nil {
		return nil, err
	}

	result := &MigrateResult{}
	for _, m := range plan {
		key := m.Key()
		if _, ok := applied[key]; ok {
			result.Skipped = append(result.Skipped, refOf(key))
		} else {
			statements, err := sqlgen.TranslateAll(c.dialect, m.Operations)
			if err != nil {
				return nil, err
			}
			result.Statements = append(result.Statements, statements...)
			result.Applied = append(result.Applied, refOf(key))
		}
		if target != nil && key == *target {
			break
		}
	}
	return result, nil
}

// RollbackOptions controls a backward run.
type RollbackOptions struct {
	Target *MigrationRef
	Fake   bool
}

// RollbackResult reports what a backward run reversed.
type RollbackResult struct {
	Unapplied []MigrationRef
}

// Rollback unapplies migrations after the target, or every applied
// migration when no target is given.
func (c *Client) Rollback(ctx context.Context, opts RollbackOptions) (*RollbackResult, error) {
	plan, err := c.plan()
	if err != nil {
		return nil, err
	}

	var target *migration.Key
	if opts.Target != nil {
		key := migration.NewKey(opts.Target.App, opts.Target.Name)
		target = &key
	}

	exec := executor.New(c.db, c.dialect, c.recorder, c.locker, c.registry)
	report, err := exec.Unapply(ctx, plan, executor.Options{Target: target, Fake: opts.Fake})
	result := &RollbackResult{}
	if report != nil {
		result.Unapplied = refsOf(report.Unapplied)
	}
	return result, err
}

// Status is one row of ShowMigrations output, in apply order.
type Status struct {
	Ref       MigrationRef
	Applied   bool
	AppliedAt *time.Time
}

// ShowMigrations lists every known migration with its applied state.
func (c *Client) ShowMigrations(ctx context.Context) ([]Status, error) {
	plan, err := c.plan()
	if err != nil {
		return nil, err
	}
	if err := c.recorder.EnsureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := c.recorder.Applied(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]Status, 0, len(plan))
	for _, m := range plan {
		s := Status{Ref: refOf(m.Key())}
		if at, ok := applied[m.Key()]; ok {
			s.Applied = true
			s.AppliedAt = &at
		}
		statuses = append(statuses, s)
	}
	return statuses, nil
}

// VerifyResult reports schema drift between the live database and the
// applied migrations.
type VerifyResult struct {
	InSync      bool
	Changes     []string
	Destructive []string
	Statements  []string
}

// Verify inspects the live database and compares it against the state
// the applied migrations replay to. Postgres only.
func (c *Client) Verify(ctx context.Context) (*VerifyResult, error) {
	if c.cfg.Driver != "postgres" {
		return nil, fmt.Errorf("verify requires a postgres database, got %q", c.cfg.Driver)
	}

	plan, err := c.plan()
	if err != nil {
		return nil, err
	}
	if err := c.recorder.EnsureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := c.recorder.Applied(ctx)
	if err != nil {
		return nil, err
	}

	var appliedPlan []*migration.Migration
	for _, m := range plan {
		if _, ok := applied[m.Key()]; ok {
			appliedPlan = append(appliedPlan, m)
		}
	}
	expected, err := migration.ReplayState(appliedPlan)
	if err != nil {
		return nil, err
	}

	v := verify.New(c.db, c.cfg.DatabaseURL, c.cfg.HistoryTable)
	checked, err := v.Check(ctx, expected)
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{InSync: checked.InSync(), Statements: checked.Statements}
	for _, change := range checked.Changes {
		result.Changes = append(result.Changes, change.Summary)
		if change.Destructive {
			result.Destructive = append(result.Destructive, change.Summary)
		}
	}
	return result, nil
}

// plan loads every migration file and linearizes the dependency graph.
func (c *Client) plan() ([]*migration.Migration, error) {
	migrations, err := c.repo.Load()
	if err != nil {
		return nil, err
	}
	graph, err := migration.BuildGraph(migrations)
	if err != nil {
		return nil, err
	}
	return graph.Plan()
}
