// Package postgres implements core.Store on PostgreSQL through pgx.
//
// Each applied row runs in its own transaction (InTx). Inventory writes are
// optimistic: a row is inserted with version 1 when none exists, otherwise
// updated only while its version still matches what the caller read.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/supplysync/internal/config"
	"github.com/JonMunkholm/supplysync/internal/core"
)

//go:embed schema.sql
var schema string

// Postgres error codes.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Connect builds a pool from cfg and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// Migrate creates the tables when they do not exist.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Store is a core.Store backed by a pgx pool.
type Store struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
	q    *Queries
}

var (
	_ core.Store      = (*Store)(nil)
	_ core.Transactor = (*Store)(nil)
)

// NewStore wraps pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: New(pool)}
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// InTx runs fn in a transaction. Inside an existing transaction it uses a
// savepoint, so a failing inner call rolls back only its own writes.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx core.Store) error) error {
	var (
		tx  pgx.Tx
		err error
	)
	if s.tx != nil {
		tx, err = s.tx.Begin(ctx)
	} else {
		tx, err = s.pool.Begin(ctx)
	}
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &Store{pool: s.pool, tx: tx, q: s.q.WithTx(tx)}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// UpsertLocation creates or updates a location. An empty name keeps the
// stored one.
func (s *Store) UpsertLocation(ctx context.Context, id, name string, active bool) error {
	if err := s.q.UpsertLocation(ctx, id, name, active); err != nil {
		return fmt.Errorf("upsert location %q: %w", id, err)
	}
	return nil
}

func (s *Store) IsActive(ctx context.Context, locationID string) (bool, error) {
	active, err := s.q.LocationActive(ctx, locationID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query location: %w", err)
	}
	return active, nil
}

func (s *Store) FindBySKUs(ctx context.Context, skus []string) (map[string]core.Supply, error) {
	lower := make([]string, len(skus))
	for i, sku := range skus {
		lower[i] = strings.ToLower(sku)
	}

	rows, err := s.q.FindSuppliesBySkus(ctx, lower)
	if err != nil {
		return nil, fmt.Errorf("query supplies: %w", err)
	}

	out := make(map[string]core.Supply, len(rows))
	for _, r := range rows {
		out[strings.ToLower(r.Sku)] = core.Supply{
			ID:            uuidString(r.ID),
			SKU:           r.Sku,
			Name:          r.Name,
			Category:      r.Category,
			UnitCostCents: r.UnitCostCents,
		}
	}
	return out, nil
}

func (s *Store) CreateSupply(ctx context.Context, ns core.NewSupply) (core.Supply, error) {
	id := uuid.New()
	err := s.q.InsertSupply(ctx, InsertSupplyParams{
		ID:            pgtype.UUID{Bytes: id, Valid: true},
		Sku:           ns.SKU,
		Name:          ns.Name,
		Category:      ns.Category,
		UnitCostCents: ns.UnitCostCents,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
			return core.Supply{}, fmt.Errorf("sku %q: %w", ns.SKU, core.ErrDuplicateSKU)
		}
		return core.Supply{}, fmt.Errorf("insert supply: %w", err)
	}
	return core.Supply{
		ID:            id.String(),
		SKU:           ns.SKU,
		Name:          ns.Name,
		Category:      ns.Category,
		UnitCostCents: ns.UnitCostCents,
	}, nil
}

func (s *Store) QtyOnHand(ctx context.Context, locationID string, supplyIDs []string) (map[string]int, error) {
	ids := make([]pgtype.UUID, 0, len(supplyIDs))
	for _, id := range supplyIDs {
		if u, ok := parseUUID(id); ok {
			ids = append(ids, u)
		}
	}
	out := make(map[string]int, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := s.q.QtyOnHand(ctx, locationID, ids)
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	for _, r := range rows {
		out[uuidString(r.SupplyID)] = int(r.QtyOnHand)
	}
	return out, nil
}

func (s *Store) InventoryRecord(ctx context.Context, supplyID, locationID string) (core.InventoryRecord, error) {
	id, err := s.requireSupply(ctx, supplyID)
	if err != nil {
		return core.InventoryRecord{}, err
	}

	rec := core.InventoryRecord{SupplyID: supplyID, LocationID: locationID}
	row, err := s.q.GetInventory(ctx, id, locationID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return rec, nil
	case err != nil:
		return core.InventoryRecord{}, fmt.Errorf("query inventory record: %w", err)
	}
	rec.QtyOnHand = int(row.QtyOnHand)
	rec.Version = row.Version
	rec.Exists = true
	return rec, nil
}

func (s *Store) SetQtyOnHand(ctx context.Context, supplyID, locationID string, qty int, expectedVersion int64) (int64, error) {
	// qty_on_hand is an integer column; never narrow silently.
	if err := core.ValidateQuantity(qty); err != nil {
		return 0, err
	}
	id, err := s.requireSupply(ctx, supplyID)
	if err != nil {
		return 0, err
	}

	var n int64
	if expectedVersion == 0 {
		n, err = s.q.InsertInventory(ctx, id, locationID, int32(qty))
	} else {
		n, err = s.q.UpdateInventory(ctx, id, locationID, int32(qty), expectedVersion)
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation {
			return 0, fmt.Errorf("write inventory: %s: %w", pgErr.ConstraintName, err)
		}
		return 0, fmt.Errorf("write inventory: %w", err)
	}
	if n == 0 {
		return 0, core.ErrVersionConflict
	}
	return expectedVersion + 1, nil
}

func (s *Store) requireSupply(ctx context.Context, supplyID string) (pgtype.UUID, error) {
	id, ok := parseUUID(supplyID)
	if !ok {
		return pgtype.UUID{}, fmt.Errorf("supply %q: %w", supplyID, core.ErrSupplyNotFound)
	}
	exists, err := s.q.SupplyExists(ctx, id)
	if err != nil {
		return pgtype.UUID{}, fmt.Errorf("query supply: %w", err)
	}
	if !exists {
		return pgtype.UUID{}, fmt.Errorf("supply %q: %w", supplyID, core.ErrSupplyNotFound)
	}
	return id, nil
}

func parseUUID(s string) (pgtype.UUID, bool) {
	u, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{}, false
	}
	return pgtype.UUID{Bytes: u, Valid: true}, true
}

func uuidString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}
