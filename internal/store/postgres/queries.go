package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Queries holds the typed statements used by Store.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

type SupplyRow struct {
	ID            pgtype.UUID
	Sku           string
	Name          string
	Category      string
	UnitCostCents int64
}

const findSuppliesBySkus = `
SELECT id, sku, name, category, unit_cost_cents FROM supplies
WHERE lower(sku) = ANY($1::text[])
`

func (q *Queries) FindSuppliesBySkus(ctx context.Context, lowerSkus []string) ([]SupplyRow, error) {
	rows, err := q.db.Query(ctx, findSuppliesBySkus, lowerSkus)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (SupplyRow, error) {
		var s SupplyRow
		err := r.Scan(&s.ID, &s.Sku, &s.Name, &s.Category, &s.UnitCostCents)
		return s, err
	})
}

const insertSupply = `
INSERT INTO supplies (id, sku, name, category, unit_cost_cents)
VALUES ($1, $2, $3, $4, $5)
`

type InsertSupplyParams struct {
	ID            pgtype.UUID
	Sku           string
	Name          string
	Category      string
	UnitCostCents int64
}

func (q *Queries) InsertSupply(ctx context.Context, arg InsertSupplyParams) error {
	_, err := q.db.Exec(ctx, insertSupply, arg.ID, arg.Sku, arg.Name, arg.Category, arg.UnitCostCents)
	return err
}

const supplyExists = `SELECT EXISTS(SELECT 1 FROM supplies WHERE id = $1)`

func (q *Queries) SupplyExists(ctx context.Context, id pgtype.UUID) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, supplyExists, id).Scan(&exists)
	return exists, err
}

const qtyOnHand = `
SELECT supply_id, qty_on_hand FROM inventory
WHERE location_id = $1 AND supply_id = ANY($2::uuid[])
`

type QtyRow struct {
	SupplyID  pgtype.UUID
	QtyOnHand int32
}

func (q *Queries) QtyOnHand(ctx context.Context, locationID string, supplyIDs []pgtype.UUID) ([]QtyRow, error) {
	rows, err := q.db.Query(ctx, qtyOnHand, locationID, supplyIDs)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[QtyRow])
}

const getInventory = `
SELECT qty_on_hand, version FROM inventory
WHERE supply_id = $1 AND location_id = $2
`

type InventoryRow struct {
	QtyOnHand int32
	Version   int64
}

func (q *Queries) GetInventory(ctx context.Context, supplyID pgtype.UUID, locationID string) (InventoryRow, error) {
	var r InventoryRow
	err := q.db.QueryRow(ctx, getInventory, supplyID, locationID).Scan(&r.QtyOnHand, &r.Version)
	return r, err
}

const insertInventory = `
INSERT INTO inventory (supply_id, location_id, qty_on_hand, version)
VALUES ($1, $2, $3, 1)
ON CONFLICT (supply_id, location_id) DO NOTHING
`

func (q *Queries) InsertInventory(ctx context.Context, supplyID pgtype.UUID, locationID string, qty int32) (int64, error) {
	tag, err := q.db.Exec(ctx, insertInventory, supplyID, locationID, qty)
	return tag.RowsAffected(), err
}

const updateInventory = `
UPDATE inventory SET qty_on_hand = $3, version = version + 1, updated_at = now()
WHERE supply_id = $1 AND location_id = $2 AND version = $4
`

func (q *Queries) UpdateInventory(ctx context.Context, supplyID pgtype.UUID, locationID string, qty int32, version int64) (int64, error) {
	tag, err := q.db.Exec(ctx, updateInventory, supplyID, locationID, qty, version)
	return tag.RowsAffected(), err
}

const locationActive = `SELECT active FROM locations WHERE id = $1`

func (q *Queries) LocationActive(ctx context.Context, id string) (bool, error) {
	var active bool
	err := q.db.QueryRow(ctx, locationActive, id).Scan(&active)
	return active, err
}

const upsertLocation = `
INSERT INTO locations (id, name, active) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE
SET name = COALESCE(NULLIF(EXCLUDED.name, ''), locations.name), active = EXCLUDED.active
`

func (q *Queries) UpsertLocation(ctx context.Context, id, name string, active bool) error {
	_, err := q.db.Exec(ctx, upsertLocation, id, name, active)
	return err
}
