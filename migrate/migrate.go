// Package migrate implements the fluxdb versioned migration engine.
//
// Migrations are plain versioned SQL payloads. Applied versions are
// recorded in the __migrations__ ledger table; on every run the engine
// creates the ledger if absent, skips versions already recorded, and
// applies the remaining migrations in ascending version order, appending
// one ledger row per applied version.
//
// Migration SQL is assumed non-destructive to already-migrated state: the
// engine provides idempotency through the ledger, not at the SQL level. If
// a migration fails mid-way, its ledger row is not written and the next run
// retries it; authors using bare CREATE TABLE (without IF NOT EXISTS) should
// be aware a partially applied migration may fail differently on retry.
package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/syssam/fluxdb/dialect"
	sqldialect "github.com/syssam/fluxdb/dialect/sql"
)

// LedgerTable is the reserved table tracking applied migration versions.
const LedgerTable = "__migrations__"

const createLedger = "CREATE TABLE IF NOT EXISTS " + LedgerTable +
	" (version INTEGER PRIMARY KEY, applied_at TEXT DEFAULT CURRENT_TIMESTAMP)"

// Migration is one versioned schema change. SQL may contain one or more
// statements.
type Migration struct {
	Version int64
	Name    string
	SQL     string
}

// Run applies all pending migrations over the given connection.
//
// The input order is irrelevant: migrations are sorted ascending by version
// before application. Duplicate versions are rejected up front. Gaps in
// version numbers are permitted and have no special meaning.
//
// Returns the number of migrations applied on this run.
func Run(ctx context.Context, conn dialect.ExecQuerier, migrations []Migration) (int, error) {
	ms := make([]Migration, len(migrations))
	copy(ms, migrations)
	slices.SortFunc(ms, func(a, b Migration) int {
		return int(a.Version - b.Version)
	})
	for i := 1; i < len(ms); i++ {
		if ms[i].Version == ms[i-1].Version {
			return 0, fmt.Errorf("migrate: duplicate version %d", ms[i].Version)
		}
	}
	for _, m := range ms {
		if m.Version <= 0 {
			return 0, fmt.Errorf("migrate: invalid version %d (must be positive)", m.Version)
		}
	}
	if err := conn.Exec(ctx, createLedger, []any{}, nil); err != nil {
		return 0, fmt.Errorf("migrate: create ledger: %w", err)
	}
	applied, err := Applied(ctx, conn)
	if err != nil {
		return 0, err
	}
	seen := make(map[int64]struct{}, len(applied))
	for _, v := range applied {
		seen[v] = struct{}{}
	}
	n := 0
	for _, m := range ms {
		if _, ok := seen[m.Version]; ok {
			continue
		}
		slog.Debug("applying migration", "version", m.Version, "name", m.Name)
		if err := conn.Exec(ctx, m.SQL, []any{}, nil); err != nil {
			return n, fmt.Errorf("migrate: version %d (%s): %w", m.Version, m.Name, err)
		}
		// The ledger row is written only after the migration SQL
		// succeeded; a failed migration is retried on the next run.
		if err := conn.Exec(ctx, "INSERT INTO "+LedgerTable+" (version) VALUES (?)", []any{m.Version}, nil); err != nil {
			return n, fmt.Errorf("migrate: record version %d: %w", m.Version, err)
		}
		n++
	}
	return n, nil
}

// Applied returns the versions recorded in the ledger, ascending.
// It returns an empty slice if the ledger table does not exist yet.
func Applied(ctx context.Context, conn dialect.ExecQuerier) ([]int64, error) {
	rows := &sqldialect.Rows{}
	err := conn.Query(ctx,
		"SELECT version FROM "+LedgerTable+" ORDER BY version",
		[]any{}, rows,
	)
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return nil, nil
		}
		return nil, fmt.Errorf("migrate: read ledger: %w", err)
	}
	defer rows.Close()
	var versions []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("migrate: scan ledger: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("migrate: read ledger: %w", err)
	}
	return versions, nil
}
