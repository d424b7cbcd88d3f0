// Package verify compares the schema the migration files promise
// against what the live database actually contains.
//
// The expected state is materialized in a temporary database on the
// same server, then both sides are inspected with atlas and diffed.
// Any difference means the database has drifted, usually because
// someone changed it by hand or skipped a migration.
package verify

import (
	"context"
	"fmt"

	"ariga.io/atlas/sql/migrate"
	"ariga.io/atlas/sql/postgres"
	atlasschema "ariga.io/atlas/sql/schema"
	"github.com/eleven-am/drift/internal/autodetect"
	"github.com/eleven-am/drift/internal/logger"
	"github.com/eleven-am/drift/internal/schema"
	"github.com/eleven-am/drift/internal/sqlgen"
	"github.com/jmoiron/sqlx"
)

// Change is one detected difference between the live database and the
// expected schema.
type Change struct {
	Summary     string
	Destructive bool
}

// Result is the outcome of one drift check. Statements are the SQL that
// would bring the live database back in line with the migration files.
type Result struct {
	Changes    []Change
	Statements []string
}

func (r *Result) InSync() bool {
	return len(r.Changes) == 0
}

// Verifier runs drift checks against one postgres database.
type Verifier struct {
	db           *sqlx.DB
	url          string
	historyTable string
	temp         *tempDBManager
	log          logger.Logger
}

func New(db *sqlx.DB, url, historyTable string) *Verifier {
	return &Verifier{
		db:           db,
		url:          url,
		historyTable: historyTable,
		temp:         newTempDBManager(url),
		log:          logger.DB(),
	}
}

// Check inspects the live database and diffs it against expected.
func (v *Verifier) Check(ctx context.Context, expected *schema.State) (*Result, error) {
	ddl, err := renderDDL(expected)
	if err != nil {
		return nil, fmt.Errorf("failed to render expected schema: %w", err)
	}

	tempDB, cleanup, err := v.temp.Create(ctx)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	for _, stmt := range ddl {
		if _, err := tempDB.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to build expected schema in temp database: %w", err)
		}
	}

	liveDriver, err := postgres.Open(v.db.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open live inspection driver: %w", err)
	}
	liveRealm, err := liveDriver.InspectRealm(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect live schema: %w", err)
	}

	wantDriver, err := postgres.Open(tempDB)
	if err != nil {
		return nil, fmt.Errorf("failed to open expected inspection driver: %w", err)
	}
	wantRealm, err := wantDriver.InspectRealm(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect expected schema: %w", err)
	}

	changes, err := liveDriver.RealmDiff(liveRealm, wantRealm)
	if err != nil {
		return nil, fmt.Errorf("failed to diff schemas: %w", err)
	}
	changes = v.withoutHistoryTable(changes)

	result := &Result{}
	if len(changes) == 0 {
		return result, nil
	}

	for _, change := range changes {
		result.Changes = append(result.Changes, Change{
			Summary:     describeChange(change),
			Destructive: isDestructiveChange(change),
		})
	}

	result.Statements, err = planSQL(ctx, liveDriver, changes)
	if err != nil {
		return nil, err
	}

	v.log.Warn("schema drift detected", "changes", len(result.Changes))
	return result, nil
}

// renderDDL turns a schema state into CREATE statements by diffing it
// against the empty state. The detector orders creations so inline
// foreign keys always reference an existing table.
func renderDDL(expected *schema.State) ([]string, error) {
	ops, err := autodetect.NewDetector().Detect(schema.NewState(), expected)
	if err != nil {
		return nil, err
	}
	return sqlgen.TranslateAll(sqlgen.Postgres{}, ops)
}

// withoutHistoryTable drops changes that touch the migration history
// table. It exists only on the live side and is never drift.
func (v *Verifier) withoutHistoryTable(changes []atlasschema.Change) []atlasschema.Change {
	kept := changes[:0]
	for _, change := range changes {
		if tableOf(change) == v.historyTable {
			continue
		}
		kept = append(kept, change)
	}
	return kept
}

func tableOf(change atlasschema.Change) string {
	switch c := change.(type) {
	case *atlasschema.AddTable:
		return c.T.Name
	case *atlasschema.DropTable:
		return c.T.Name
	case *atlasschema.ModifyTable:
		return c.T.Name
	default:
		return ""
	}
}

func planSQL(ctx context.Context, driver migrate.Driver, changes []atlasschema.Change) ([]string, error) {
	plan, err := driver.PlanChanges(ctx, "", changes)
	if err != nil {
		return nil, fmt.Errorf("failed to plan repair statements: %w", err)
	}
	statements := make([]string, len(plan.Changes))
	for i, change := range plan.Changes {
		statements[i] = change.Cmd
	}
	return statements, nil
}

func isDestructiveChange(change atlasschema.Change) bool {
	switch c := change.(type) {
	case *atlasschema.DropTable, *atlasschema.DropColumn, *atlasschema.DropIndex, *atlasschema.DropForeignKey:
		return true
	case *atlasschema.ModifyTable:
		for _, sub := range c.Changes {
			if isDestructiveChange(sub) {
				return true
			}
		}
	}
	return false
}

func describeChange(change atlasschema.Change) string {
	switch c := change.(type) {
	case *atlasschema.AddTable:
		return fmt.Sprintf("missing table %s", c.T.Name)
	case *atlasschema.DropTable:
		return fmt.Sprintf("unexpected table %s", c.T.Name)
	case *atlasschema.ModifyTable:
		return fmt.Sprintf("table %s differs (%d changes)", c.T.Name, len(c.Changes))
	case *atlasschema.AddSchema:
		return fmt.Sprintf("missing schema %s", c.S.Name)
	case *atlasschema.DropSchema:
		return fmt.Sprintf("unexpected schema %s", c.S.Name)
	default:
		return fmt.Sprintf("change %T", change)
	}
}
