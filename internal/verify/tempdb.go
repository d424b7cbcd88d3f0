package verify

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// tempDBManager creates throwaway databases on the same server as the
// target database. The expected schema is materialized there so atlas
// can inspect it the same way it inspects the live one.
type tempDBManager struct {
	baseURL string
}

func newTempDBManager(baseURL string) *tempDBManager {
	return &tempDBManager{baseURL: baseURL}
}

// Create provisions a fresh database and returns a connection to it
// plus a cleanup that drops it. The caller must invoke cleanup even on
// error paths.
func (m *tempDBManager) Create(ctx context.Context) (*sql.DB, func(), error) {
	name := fmt.Sprintf("drift_verify_%d", time.Now().UnixNano())

	admin, err := sql.Open("postgres", m.baseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect for temp database creation: %w", err)
	}

	if _, err := admin.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %s", quoteIdentifier(name))); err != nil {
		admin.Close()
		return nil, nil, fmt.Errorf("failed to create temp database %s: %w", name, err)
	}

	tempDB, err := sql.Open("postgres", m.buildTempDBURL(name))
	if err != nil {
		dropDatabase(admin, name)
		admin.Close()
		return nil, nil, fmt.Errorf("failed to connect to temp database %s: %w", name, err)
	}
	if err := tempDB.PingContext(ctx); err != nil {
		tempDB.Close()
		dropDatabase(admin, name)
		admin.Close()
		return nil, nil, fmt.Errorf("failed to ping temp database %s: %w", name, err)
	}

	cleanup := func() {
		tempDB.Close()
		dropDatabase(admin, name)
		admin.Close()
	}
	return tempDB, cleanup, nil
}

func dropDatabase(admin *sql.DB, name string) {
	_, _ = admin.Exec(fmt.Sprintf("DROP DATABASE IF EXISTS %s", quoteIdentifier(name)))
}

// buildTempDBURL swaps the database path of the base URL for the temp
// database name, preserving credentials and query parameters.
func (m *tempDBManager) buildTempDBURL(name string) string {
	base := m.baseURL
	query := ""
	if idx := strings.Index(base, "?"); idx != -1 {
		query = base[idx:]
		base = base[:idx]
	}

	// The database path starts after the host portion, which follows
	// the scheme's double slash.
	schemeEnd := strings.Index(base, "://")
	if schemeEnd == -1 {
		return base + "/" + name + query
	}
	hostStart := schemeEnd + len("://")
	if slash := strings.Index(base[hostStart:], "/"); slash != -1 {
		base = base[:hostStart+slash]
	}
	return base + "/" + name + query
}

func quoteIdentifier(name string) string {
	return fmt.Sprintf(`"%s"`, strings.ReplaceAll(name, `"`, `""`))
}
