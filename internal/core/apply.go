package core

// apply.go commits a finalized row set.
//
// Rows are independent: a failing row is recorded in ApplyResult.Errors and
// the batch continues. Inventory writes are absolute sets guarded by an
// optimistic version check, so re-applying the same request is a no-op.
//
// With Parallelism > 1 rows are partitioned by inventory key (existing
// supply id, or SKU for rows that create a supply). Partitions run
// concurrently; rows inside a partition keep file order, so the later of
// two rows for the same supply still wins.

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/supplysync/internal/logging"
)

// SupplyDefaults are the catalog fields an import cannot supply itself.
type SupplyDefaults struct {
	Category      string
	UnitCostCents int64
}

// ApplyEngine commits ApplyRequests against a Store.
type ApplyEngine struct {
	Store    Store
	Defaults SupplyDefaults

	// Parallelism is the number of inventory keys committed at once.
	// Values <= 1 apply rows strictly in order.
	Parallelism int

	// VersionRetries bounds re-reads after an ErrVersionConflict.
	VersionRetries int

	// RowTimeout bounds the store calls of one row; 0 means no limit.
	RowTimeout time.Duration
}

type rowOutcome int

const (
	outcomeSkipped rowOutcome = iota
	outcomeUpdated
	outcomeCreated // created a supply and set its inventory
	outcomeFailed
)

// accumulator collects row outcomes from any number of goroutines.
type accumulator struct {
	mu     sync.Mutex
	stats  ApplyStats
	errors []ApplyRowError
}

func (a *accumulator) record(row ApplyRequestRow, outcome rowOutcome, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch outcome {
	case outcomeSkipped:
		a.stats.RowsSkipped++
	case outcomeCreated:
		a.stats.SuppliesCreated++
		a.stats.InventoryUpdated++
	case outcomeUpdated:
		a.stats.InventoryUpdated++
	case outcomeFailed:
		a.stats.ErrorsCount++
		a.errors = append(a.errors, ApplyRowError{Row: row.RowIndex, SKU: row.SKU, Error: err.Error()})
	}
}

func (a *accumulator) result() ApplyResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	errs := slices.Clone(a.errors)
	slices.SortStableFunc(errs, func(x, y ApplyRowError) int { return cmp.Compare(x.Row, y.Row) })
	if errs == nil {
		errs = []ApplyRowError{}
	}
	return ApplyResult{Stats: a.stats, Errors: errs}
}

// createdSupplies remembers supplies created earlier in the same apply so a
// repeated new SKU updates the first one instead of failing on a duplicate.
type createdSupplies struct {
	mu  sync.Mutex
	ids map[string]string // lower-cased sku -> supply id
}

func (c *createdSupplies) get(sku string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.ids[strings.ToLower(sku)]
	return id, ok
}

func (c *createdSupplies) put(sku, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids[strings.ToLower(sku)] = id
}

// Apply validates the location and request shape, then commits every row.
// Fatal errors (*LocationInvalidError, *RequestError) are returned before
// any mutation. Once rows start committing, cancellation of ctx no longer
// stops the batch.
func (e *ApplyEngine) Apply(ctx context.Context, req ApplyRequest) (ApplyResult, error) {
	if err := e.checkLocation(ctx, req.LocationID); err != nil {
		return ApplyResult{}, err
	}
	if err := validateApplyRequest(req); err != nil {
		return ApplyResult{}, err
	}

	log := logging.WithImport(ctx, req.ImportID, req.LocationID, req.Filename).With(clientAttrs(ctx)...)
	log.Info("apply started", "rows", len(req.Rows), "parallelism", max(e.Parallelism, 1))
	start := time.Now()

	ctx = context.WithoutCancel(ctx)
	acc := &accumulator{}
	created := &createdSupplies{ids: make(map[string]string)}

	if e.Parallelism <= 1 {
		for _, row := range req.Rows {
			e.commit(ctx, req.LocationID, row, created, acc)
		}
	} else {
		e.applyPartitioned(ctx, req, created, acc)
	}

	res := acc.result()
	log.Info("apply completed",
		"supplies_created", res.Stats.SuppliesCreated,
		"inventory_updated", res.Stats.InventoryUpdated,
		"rows_skipped", res.Stats.RowsSkipped,
		"errors", res.Stats.ErrorsCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (e *ApplyEngine) applyPartitioned(ctx context.Context, req ApplyRequest, created *createdSupplies, acc *accumulator) {
	var order []string
	parts := make(map[string][]ApplyRequestRow)
	for _, row := range req.Rows {
		k := partitionKey(row)
		if _, ok := parts[k]; !ok {
			order = append(order, k)
		}
		parts[k] = append(parts[k], row)
	}

	var g errgroup.Group
	g.SetLimit(e.Parallelism)
	for _, k := range order {
		rows := parts[k]
		g.Go(func() error {
			for _, row := range rows {
				e.commit(ctx, req.LocationID, row, created, acc)
			}
			return nil
		})
	}
	// row failures are recorded, never returned
	_ = g.Wait()
}

// partitionKey identifies the inventory record a row writes. Rows that
// create a supply are keyed by SKU so repeats serialize behind the create.
func partitionKey(row ApplyRequestRow) string {
	if !row.createsSupply() {
		return "id:" + *row.ExistingSupplyID
	}
	return "sku:" + strings.ToLower(strings.TrimSpace(row.SKU))
}

func (e *ApplyEngine) checkLocation(ctx context.Context, locationID string) error {
	if strings.TrimSpace(locationID) == "" {
		return &LocationInvalidError{}
	}
	active, err := e.Store.IsActive(ctx, locationID)
	if err != nil {
		return fmt.Errorf("check location %q: %w", locationID, err)
	}
	if !active {
		return &LocationInvalidError{LocationID: locationID}
	}
	return nil
}

func validateApplyRequest(req ApplyRequest) error {
	var problems []string
	seen := make(map[int]struct{}, len(req.Rows))
	for _, row := range req.Rows {
		if _, dup := seen[row.RowIndex]; dup {
			problems = append(problems, fmt.Sprintf("rowIndex %d appears more than once", row.RowIndex))
			continue
		}
		seen[row.RowIndex] = struct{}{}
	}
	if len(problems) > 0 {
		return &RequestError{Problems: problems}
	}
	return nil
}

// commit runs one row to completion and records its outcome.
func (e *ApplyEngine) commit(ctx context.Context, locationID string, row ApplyRequestRow, created *createdSupplies, acc *accumulator) {
	if !row.Included {
		acc.record(row, outcomeSkipped, nil)
		return
	}

	if e.RowTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.RowTimeout)
		defer cancel()
	}

	outcome, err := e.commitRow(ctx, locationID, row, created)
	if err != nil {
		logging.FromContext(ctx).Warn("apply row failed",
			"row", row.RowIndex, "sku", row.SKU, "location_id", locationID, "error", err)
		acc.record(row, outcomeFailed, err)
		return
	}
	acc.record(row, outcome, nil)
}

func (e *ApplyEngine) commitRow(ctx context.Context, locationID string, row ApplyRequestRow, created *createdSupplies) (rowOutcome, error) {
	if err := ValidateQuantity(row.Quantity); err != nil {
		return outcomeFailed, err
	}

	if !row.createsSupply() {
		err := e.inTx(ctx, func(ctx context.Context, s Store) error {
			return e.setQty(ctx, s, *row.ExistingSupplyID, locationID, row.Quantity)
		})
		return outcomeUpdated, err
	}

	sku := strings.TrimSpace(row.SKU)
	if sku == "" {
		return outcomeFailed, errors.New("cannot create a supply without a SKU")
	}

	if id, ok := created.get(sku); ok {
		err := e.inTx(ctx, func(ctx context.Context, s Store) error {
			return e.setQty(ctx, s, id, locationID, row.Quantity)
		})
		return outcomeUpdated, err
	}

	name := strings.TrimSpace(row.Name)
	if name == "" {
		name = sku
	}

	var supply Supply
	err := e.inTx(ctx, func(ctx context.Context, s Store) error {
		var err error
		supply, err = s.CreateSupply(ctx, NewSupply{
			SKU:           sku,
			Name:          name,
			Category:      e.Defaults.Category,
			UnitCostCents: e.Defaults.UnitCostCents,
		})
		if err != nil {
			return fmt.Errorf("create supply: %w", err)
		}
		return e.setQty(ctx, s, supply.ID, locationID, row.Quantity)
	})
	if errors.Is(err, ErrDuplicateSKU) {
		// Created since the file was parsed, for example by an earlier
		// apply of the same request. Set the quantity on that supply.
		return e.updateBySKU(ctx, locationID, sku, row.Quantity, created)
	}
	if err != nil {
		return outcomeFailed, err
	}
	created.put(sku, supply.ID)
	return outcomeCreated, nil
}

// updateBySKU sets qty on the catalog supply for sku. It runs in a fresh
// transaction since a failed insert aborts the one it ran in.
func (e *ApplyEngine) updateBySKU(ctx context.Context, locationID, sku string, qty int, created *createdSupplies) (rowOutcome, error) {
	found, err := e.Store.FindBySKUs(ctx, []string{sku})
	if err != nil {
		return outcomeFailed, fmt.Errorf("find supply %q: %w", sku, err)
	}
	supply, ok := found[strings.ToLower(sku)]
	if !ok {
		return outcomeFailed, fmt.Errorf("sku %q: %w", sku, ErrSupplyNotFound)
	}

	err = e.inTx(ctx, func(ctx context.Context, s Store) error {
		return e.setQty(ctx, s, supply.ID, locationID, qty)
	})
	if err != nil {
		return outcomeFailed, err
	}
	created.put(sku, supply.ID)
	return outcomeUpdated, nil
}

// inTx runs fn in a transaction when the store supports one.
func (e *ApplyEngine) inTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error {
	if tx, ok := e.Store.(Transactor); ok {
		return tx.InTx(ctx, fn)
	}
	return fn(ctx, e.Store)
}

// setQty writes an absolute qty_on_hand with a version check, re-reading
// and retrying when a concurrent writer wins. An unchanged quantity is not
// written.
func (e *ApplyEngine) setQty(ctx context.Context, inv Inventory, supplyID, locationID string, qty int) error {
	for attempt := 0; ; attempt++ {
		rec, err := inv.InventoryRecord(ctx, supplyID, locationID)
		if err != nil {
			return fmt.Errorf("read inventory: %w", err)
		}
		if rec.Exists && rec.QtyOnHand == qty {
			return nil
		}

		_, err = inv.SetQtyOnHand(ctx, supplyID, locationID, qty, rec.Version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrVersionConflict) || attempt >= e.VersionRetries {
			return fmt.Errorf("set inventory: %w", err)
		}
	}
}
