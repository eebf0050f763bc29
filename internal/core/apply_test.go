package core_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/supplysync/internal/core"
	"github.com/JonMunkholm/supplysync/internal/store/memory"
)

func idPtr(s string) *string { return &s }

// seededStore holds BOX-1 (s1) at 40 in the active location L1.
func seededStore() *memory.Store {
	st := memory.New()
	st.AddLocation("L1", true)
	st.AddLocation("L-OFF", false)
	st.AddSupply("s1", "BOX-1", "Box")
	st.SeedQty("s1", "L1", 40)
	return st
}

func boxRequest() core.ApplyRequest {
	return core.ApplyRequest{
		ImportID:   "imp-1",
		Filename:   "supplies.csv",
		FileType:   core.FileTypeCSV,
		LocationID: "L1",
		Rows: []core.ApplyRequestRow{
			{RowIndex: 1, SKU: "BOX-1", Name: "Box", Quantity: 50, ExistingSupplyID: idPtr("s1"), Included: true},
			{RowIndex: 2, SKU: "BOX-NEW", Name: "New box", Quantity: 10, Included: true, IsNew: true},
		},
	}
}

func TestApply_UpdatesAndCreates(t *testing.T) {
	st := seededStore()
	e := &core.ApplyEngine{Store: st, Defaults: core.SupplyDefaults{Category: "packing"}}

	res, err := e.Apply(context.Background(), boxRequest())
	require.NoError(t, err)

	assert.Equal(t, core.ApplyStats{SuppliesCreated: 1, InventoryUpdated: 2}, res.Stats)
	assert.Empty(t, res.Errors)
	assert.NotNil(t, res.Errors)

	q, _ := st.Qty("s1", "L1")
	assert.Equal(t, 50, q)

	created, ok := st.SupplyBySKU("BOX-NEW")
	require.True(t, ok)
	assert.Equal(t, "New box", created.Name)
	assert.Equal(t, "packing", created.Category)
	q, ok = st.Qty(created.ID, "L1")
	require.True(t, ok)
	assert.Equal(t, 10, q)
}

func TestApply_ExcludedRowsAreSkipped(t *testing.T) {
	st := seededStore()
	req := boxRequest()
	for i := range req.Rows {
		req.Rows[i].Included = false
	}

	res, err := (&core.ApplyEngine{Store: st}).Apply(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, core.ApplyStats{RowsSkipped: 2}, res.Stats)
	q, _ := st.Qty("s1", "L1")
	assert.Equal(t, 40, q)
	_, ok := st.SupplyBySKU("BOX-NEW")
	assert.False(t, ok)
}

func TestApply_Idempotent(t *testing.T) {
	st := seededStore()
	e := &core.ApplyEngine{Store: st}
	ctx := context.Background()

	_, err := e.Apply(ctx, boxRequest())
	require.NoError(t, err)
	created, ok := st.SupplyBySKU("BOX-NEW")
	require.True(t, ok)

	// the identical request again, BOX-NEW still marked new
	res, err := e.Apply(ctx, boxRequest())
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	assert.Equal(t, core.ApplyStats{InventoryUpdated: 2}, res.Stats)
	assert.Len(t, st.Supplies(), 2)

	q, _ := st.Qty("s1", "L1")
	assert.Equal(t, 50, q)
	q, _ = st.Qty(created.ID, "L1")
	assert.Equal(t, 10, q)
}

func TestApply_NewSKUCreatedAfterParse(t *testing.T) {
	st := seededStore()
	st.AddSupply("s9", "box-new", "Added by hand")
	st.SeedQty("s9", "L1", 3)

	res, err := (&core.ApplyEngine{Store: st}).Apply(context.Background(), boxRequest())
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	assert.Equal(t, core.ApplyStats{InventoryUpdated: 2}, res.Stats)

	q, _ := st.Qty("s9", "L1")
	assert.Equal(t, 10, q)
	assert.Len(t, st.Supplies(), 2)
}

func TestApply_QuantityOutOfRange(t *testing.T) {
	st := seededStore()
	req := boxRequest()
	req.Rows[0].Quantity = 4294967346 // 50 once truncated to 32 bits

	res, err := (&core.ApplyEngine{Store: st}).Apply(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, core.ApplyStats{SuppliesCreated: 1, InventoryUpdated: 1, ErrorsCount: 1}, res.Stats)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 1, res.Errors[0].Row)
	assert.Contains(t, res.Errors[0].Error, "quantity exceeds maximum")

	q, _ := st.Qty("s1", "L1")
	assert.Equal(t, 40, q)
}

func TestApply_RowErrorsAreIsolated(t *testing.T) {
	st := seededStore()
	req := core.ApplyRequest{
		LocationID: "L1",
		Rows: []core.ApplyRequestRow{
			{RowIndex: 3, SKU: "GONE", Quantity: 1, ExistingSupplyID: idPtr("deleted"), Included: true},
			{RowIndex: 1, SKU: "BOX-1", Quantity: 41, ExistingSupplyID: idPtr("s1"), Included: true},
			{RowIndex: 2, SKU: "", Quantity: 4, Included: true, IsNew: true},
			{RowIndex: 4, SKU: "NEG", Quantity: -2, Included: true, IsNew: true},
			{RowIndex: 5, SKU: "SKIP", Quantity: 1, Included: false, IsNew: true},
		},
	}

	res, err := (&core.ApplyEngine{Store: st}).Apply(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, core.ApplyStats{InventoryUpdated: 1, RowsSkipped: 1, ErrorsCount: 3}, res.Stats)
	require.Len(t, res.Errors, 3)
	assert.Equal(t, []int{2, 3, 4}, []int{res.Errors[0].Row, res.Errors[1].Row, res.Errors[2].Row},
		"errors are ordered by row")
	assert.Contains(t, res.Errors[0].Error, "without a SKU")
	assert.Contains(t, res.Errors[1].Error, "supply not found")
	assert.Equal(t, "GONE", res.Errors[1].SKU)
	assert.Contains(t, res.Errors[2].Error, "non-negative")

	q, _ := st.Qty("s1", "L1")
	assert.Equal(t, 41, q)

	// every submitted row lands in exactly one bucket
	s := res.Stats
	assert.Equal(t, len(req.Rows), s.InventoryUpdated+s.RowsSkipped+s.ErrorsCount)
}

func TestApply_FatalErrors(t *testing.T) {
	st := seededStore()
	e := &core.ApplyEngine{Store: st}
	ctx := context.Background()

	for _, loc := range []string{"", "  ", "L-OFF", "L-MISSING"} {
		req := boxRequest()
		req.LocationID = loc
		_, err := e.Apply(ctx, req)

		var le *core.LocationInvalidError
		require.ErrorAs(t, err, &le, "location %q", loc)
		assert.True(t, core.IsFatal(err))
	}

	req := boxRequest()
	req.Rows[1].RowIndex = 1
	_, err := e.Apply(ctx, req)
	var re *core.RequestError
	require.ErrorAs(t, err, &re)
	assert.True(t, core.IsFatal(err))

	q, _ := st.Qty("s1", "L1")
	assert.Equal(t, 40, q, "fatal errors happen before any mutation")
	_, ok := st.SupplyBySKU("BOX-NEW")
	assert.False(t, ok)
}

func TestApply_RepeatedNewSKUCreatesOnce(t *testing.T) {
	for _, parallelism := range []int{1, 4} {
		t.Run(fmt.Sprintf("parallelism=%d", parallelism), func(t *testing.T) {
			st := seededStore()
			req := core.ApplyRequest{
				LocationID: "L1",
				Rows: []core.ApplyRequestRow{
					{RowIndex: 1, SKU: "TAPE-5", Quantity: 3, Included: true, IsNew: true},
					{RowIndex: 2, SKU: "tape-5", Quantity: 7, Included: true, IsNew: true},
				},
			}

			res, err := (&core.ApplyEngine{Store: st, Parallelism: parallelism}).Apply(context.Background(), req)
			require.NoError(t, err)

			assert.Equal(t, core.ApplyStats{SuppliesCreated: 1, InventoryUpdated: 2}, res.Stats)
			sup, ok := st.SupplyBySKU("TAPE-5")
			require.True(t, ok)
			q, _ := st.Qty(sup.ID, "L1")
			assert.Equal(t, 7, q, "the later row wins")
		})
	}
}

func TestApply_ParallelMatchesSequential(t *testing.T) {
	build := func() (*memory.Store, core.ApplyRequest) {
		st := memory.New()
		st.AddLocation("L1", true)
		req := core.ApplyRequest{LocationID: "L1"}
		for i := 1; i <= 40; i++ {
			id := fmt.Sprintf("s%02d", i)
			st.AddSupply(id, "SKU-"+id, "Supply "+id)
			st.SeedQty(id, "L1", i)
			req.Rows = append(req.Rows, core.ApplyRequestRow{
				RowIndex: i, SKU: "SKU-" + id, Quantity: i * 2, ExistingSupplyID: idPtr(id), Included: i%5 != 0,
			})
		}
		// the same supply twice: the later row must win in both modes
		req.Rows = append(req.Rows, core.ApplyRequestRow{
			RowIndex: 41, SKU: "SKU-s01", Quantity: 500, ExistingSupplyID: idPtr("s01"), Included: true,
		})
		return st, req
	}

	seqStore, req := build()
	seq, err := (&core.ApplyEngine{Store: seqStore}).Apply(context.Background(), req)
	require.NoError(t, err)

	parStore, req := build()
	par, err := (&core.ApplyEngine{Store: parStore, Parallelism: 8}).Apply(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, seq, par)
	for _, sup := range seqStore.Supplies() {
		want, _ := seqStore.Qty(sup.ID, "L1")
		got, _ := parStore.Qty(sup.ID, "L1")
		assert.Equal(t, want, got, sup.SKU)
	}
	q, _ := parStore.Qty("s01", "L1")
	assert.Equal(t, 500, q)
}

// racingStore loses the first version check of every write, as if another
// writer committed between the read and the write.
type racingStore struct {
	*memory.Store
	conflicts atomic.Int32
	limit     int32
}

func (r *racingStore) SetQtyOnHand(ctx context.Context, supplyID, locationID string, qty int, expected int64) (int64, error) {
	if r.conflicts.Add(1) <= r.limit {
		return 0, core.ErrVersionConflict
	}
	return r.Store.SetQtyOnHand(ctx, supplyID, locationID, qty, expected)
}

func TestApply_RetriesVersionConflicts(t *testing.T) {
	st := &racingStore{Store: seededStore(), limit: 2}
	req := boxRequest()
	req.Rows = req.Rows[:1]

	res, err := (&core.ApplyEngine{Store: st, VersionRetries: 3}).Apply(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.InventoryUpdated)
	q, _ := st.Qty("s1", "L1")
	assert.Equal(t, 50, q)

	st = &racingStore{Store: seededStore(), limit: 10}
	res, err = (&core.ApplyEngine{Store: st, VersionRetries: 1}).Apply(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Error, core.ErrVersionConflict.Error())
}

// failingLocations reports a store outage on IsActive.
type failingLocations struct{ *memory.Store }

func (failingLocations) IsActive(context.Context, string) (bool, error) {
	return false, errors.New("connection refused")
}

func TestApply_LocationLookupFailure(t *testing.T) {
	_, err := (&core.ApplyEngine{Store: failingLocations{seededStore()}}).Apply(context.Background(), boxRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	var le *core.LocationInvalidError
	assert.False(t, errors.As(err, &le))
}

func TestApply_IgnoresCancellationOnceStarted(t *testing.T) {
	st := seededStore()
	ctx, cancel := context.WithCancel(context.Background())

	// cancel as soon as the first row reads its record
	res, err := (&core.ApplyEngine{Store: &cancelOnRead{Store: st, cancel: cancel}}).Apply(ctx, boxRequest())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stats.InventoryUpdated)
}

type cancelOnRead struct {
	*memory.Store
	cancel context.CancelFunc
}

func (c *cancelOnRead) InventoryRecord(ctx context.Context, supplyID, locationID string) (core.InventoryRecord, error) {
	c.cancel()
	if err := ctx.Err(); err != nil {
		return core.InventoryRecord{}, err
	}
	return c.Store.InventoryRecord(ctx, supplyID, locationID)
}
