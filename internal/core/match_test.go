package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/supplysync/internal/core"
	"github.com/JonMunkholm/supplysync/internal/store/memory"
)

func TestSnapshotCatalog_CaseInsensitive(t *testing.T) {
	st := memory.New()
	st.AddSupply("s1", "BOX-1", "Box")

	rows := []core.ParsedRow{{SKU: "box-1"}, {SKU: "BOX-1"}, {SKU: ""}, {SKU: "nope"}}
	snap, err := core.SnapshotCatalog(context.Background(), st, rows)
	require.NoError(t, err)

	sup, ok := snap.Lookup("Box-1")
	require.True(t, ok)
	assert.Equal(t, "s1", sup.ID)

	_, ok = snap.Lookup("nope")
	assert.False(t, ok)
	_, ok = snap.Lookup("")
	assert.False(t, ok)
}

func TestSkuMatcher_Match(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	st.AddSupply("s1", "BOX-1", "Shipping box")
	st.AddSupply("s2", "TAPE", "Tape")
	st.SeedQty("s1", "L1", 40)
	st.SeedQty("s1", "L2", 999)

	rows := []core.ParsedRow{
		{RowIndex: 1, SKU: "box-1", Quantity: 50},
		{RowIndex: 2, SKU: "BOX-NEW", Quantity: 10},
		{RowIndex: 3, SKU: "TAPE", Quantity: 3},
		{RowIndex: 4, SKU: "BOX-1", Quantity: 55},
	}
	snap, err := core.SnapshotCatalog(ctx, st, rows)
	require.NoError(t, err)

	out, err := core.SkuMatcher{Inventory: st}.Match(ctx, rows, snap, "L1")
	require.NoError(t, err)

	assert.Equal(t, 3, out.Matched)
	assert.Equal(t, 1, out.New)

	r := out.Rows[0]
	require.NotNil(t, r.ExistingSupplyID)
	assert.Equal(t, "s1", *r.ExistingSupplyID)
	assert.Equal(t, "Shipping box", *r.ExistingSupplyName)
	assert.False(t, r.IsNew)

	assert.True(t, out.Rows[1].IsNew)
	assert.Nil(t, out.Rows[1].ExistingSupplyID)

	assert.Equal(t, "s1", *out.Rows[3].ExistingSupplyID, "repeated SKUs resolve to the same supply")

	assert.Equal(t, map[string]int{"s1": 40, "s2": 0}, out.ExistingInventory,
		"levels come from the target location; no record means zero")

	assert.Nil(t, rows[0].ExistingSupplyID, "input rows are not modified")
}
