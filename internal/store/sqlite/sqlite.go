// Package sqlite implements core.Store on SQLite through mattn/go-sqlite3.
//
// The schema is embedded and applied by Migrate through golang-migrate. Inventory writes use the
// same optimistic version column as the Postgres store: inserting version 1
// when no row exists, and updating only while the stored version still
// matches.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/JonMunkholm/supplysync/internal/core"
)

// maxInParams keeps IN lists below SQLite's bound-variable limit.
const maxInParams = 500

// Open opens the database at path with WAL, foreign keys and a busy
// timeout. An in-memory path (":memory:") is pinned to one connection so
// every query sees the same database.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return db, nil
}

// OpenWithMigrations opens path and brings its schema up to date.
func OpenWithMigrations(path string) (*sql.DB, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// dbtx is satisfied by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is a core.Store backed by one SQLite database.
type Store struct {
	db *sql.DB
	q  dbtx
}

var (
	_ core.Store      = (*Store)(nil)
	_ core.Transactor = (*Store)(nil)
)

// New wraps an open database. The schema must already be migrated.
func New(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// InTx runs fn inside a transaction. Nested calls reuse the outer one.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx core.Store) error) error {
	if _, nested := s.q.(*sql.Tx); nested {
		return fn(ctx, s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(ctx, &Store{db: s.db, q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// UpsertLocation creates or updates a location. An empty name keeps the
// stored one.
func (s *Store) UpsertLocation(ctx context.Context, id, name string, active bool) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO locations (id, name, active) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET name = COALESCE(NULLIF(excluded.name, ''), locations.name), active = excluded.active`,
		id, name, active)
	if err != nil {
		return fmt.Errorf("upsert location %q: %w", id, err)
	}
	return nil
}

func (s *Store) IsActive(ctx context.Context, locationID string) (bool, error) {
	var active bool
	err := s.q.QueryRowContext(ctx, "SELECT active FROM locations WHERE id = ?", locationID).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query location: %w", err)
	}
	return active, nil
}

func (s *Store) FindBySKUs(ctx context.Context, skus []string) (map[string]core.Supply, error) {
	out := make(map[string]core.Supply, len(skus))
	for start := 0; start < len(skus); start += maxInParams {
		chunk := skus[start:min(start+maxInParams, len(skus))]
		args := make([]any, len(chunk))
		for i, sku := range chunk {
			args[i] = strings.ToLower(sku)
		}

		rows, err := s.q.QueryContext(ctx,
			`SELECT id, sku, name, category, unit_cost_cents FROM supplies
			 WHERE lower(sku) IN (`+placeholders(len(chunk))+`)`, args...)
		if err != nil {
			return nil, fmt.Errorf("query supplies: %w", err)
		}
		for rows.Next() {
			var sup core.Supply
			if err := rows.Scan(&sup.ID, &sup.SKU, &sup.Name, &sup.Category, &sup.UnitCostCents); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan supply: %w", err)
			}
			out[strings.ToLower(sup.SKU)] = sup
		}
		if err := rows.Close(); err != nil {
			return nil, err
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate supplies: %w", err)
		}
	}
	return out, nil
}

func (s *Store) CreateSupply(ctx context.Context, ns core.NewSupply) (core.Supply, error) {
	sup := core.Supply{
		ID:            uuid.NewString(),
		SKU:           ns.SKU,
		Name:          ns.Name,
		Category:      ns.Category,
		UnitCostCents: ns.UnitCostCents,
	}
	_, err := s.q.ExecContext(ctx,
		"INSERT INTO supplies (id, sku, name, category, unit_cost_cents) VALUES (?, ?, ?, ?, ?)",
		sup.ID, sup.SKU, sup.Name, sup.Category, sup.UnitCostCents)
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
			return core.Supply{}, fmt.Errorf("sku %q: %w", ns.SKU, core.ErrDuplicateSKU)
		}
		return core.Supply{}, fmt.Errorf("insert supply: %w", err)
	}
	return sup, nil
}

func (s *Store) QtyOnHand(ctx context.Context, locationID string, supplyIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(supplyIDs))
	for start := 0; start < len(supplyIDs); start += maxInParams {
		chunk := supplyIDs[start:min(start+maxInParams, len(supplyIDs))]
		args := make([]any, 0, len(chunk)+1)
		args = append(args, locationID)
		for _, id := range chunk {
			args = append(args, id)
		}

		rows, err := s.q.QueryContext(ctx,
			`SELECT supply_id, qty_on_hand FROM inventory
			 WHERE location_id = ? AND supply_id IN (`+placeholders(len(chunk))+`)`, args...)
		if err != nil {
			return nil, fmt.Errorf("query inventory: %w", err)
		}
		for rows.Next() {
			var id string
			var qty int
			if err := rows.Scan(&id, &qty); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan inventory: %w", err)
			}
			out[id] = qty
		}
		if err := rows.Close(); err != nil {
			return nil, err
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate inventory: %w", err)
		}
	}
	return out, nil
}

func (s *Store) InventoryRecord(ctx context.Context, supplyID, locationID string) (core.InventoryRecord, error) {
	if err := s.requireSupply(ctx, supplyID); err != nil {
		return core.InventoryRecord{}, err
	}

	rec := core.InventoryRecord{SupplyID: supplyID, LocationID: locationID}
	err := s.q.QueryRowContext(ctx,
		"SELECT qty_on_hand, version FROM inventory WHERE supply_id = ? AND location_id = ?",
		supplyID, locationID).Scan(&rec.QtyOnHand, &rec.Version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return rec, nil
	case err != nil:
		return core.InventoryRecord{}, fmt.Errorf("query inventory record: %w", err)
	}
	rec.Exists = true
	return rec, nil
}

func (s *Store) SetQtyOnHand(ctx context.Context, supplyID, locationID string, qty int, expectedVersion int64) (int64, error) {
	if err := core.ValidateQuantity(qty); err != nil {
		return 0, err
	}
	if err := s.requireSupply(ctx, supplyID); err != nil {
		return 0, err
	}

	var (
		res sql.Result
		err error
	)
	if expectedVersion == 0 {
		res, err = s.q.ExecContext(ctx, `
			INSERT INTO inventory (supply_id, location_id, qty_on_hand, version) VALUES (?, ?, ?, 1)
			ON CONFLICT (supply_id, location_id) DO NOTHING`,
			supplyID, locationID, qty)
	} else {
		res, err = s.q.ExecContext(ctx, `
			UPDATE inventory SET qty_on_hand = ?, version = version + 1, updated_at = datetime('now')
			WHERE supply_id = ? AND location_id = ? AND version = ?`,
			qty, supplyID, locationID, expectedVersion)
	}
	if err != nil {
		return 0, fmt.Errorf("write inventory: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("write inventory: %w", err)
	}
	if n == 0 {
		return 0, core.ErrVersionConflict
	}
	return expectedVersion + 1, nil
}

func (s *Store) requireSupply(ctx context.Context, supplyID string) error {
	var one int
	err := s.q.QueryRowContext(ctx, "SELECT 1 FROM supplies WHERE id = ?", supplyID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("supply %q: %w", supplyID, core.ErrSupplyNotFound)
	}
	if err != nil {
		return fmt.Errorf("query supply: %w", err)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
