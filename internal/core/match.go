package core

import (
	"context"
	"fmt"
	"strings"
)

// CatalogSnapshot maps lower-cased SKU to its catalog entry.
type CatalogSnapshot map[string]Supply

// Lookup finds sku case-insensitively.
func (c CatalogSnapshot) Lookup(sku string) (Supply, bool) {
	if sku == "" {
		return Supply{}, false
	}
	s, ok := c[strings.ToLower(sku)]
	return s, ok
}

// SnapshotCatalog loads the catalog entries for every distinct SKU in rows.
func SnapshotCatalog(ctx context.Context, catalog Catalog, rows []ParsedRow) (CatalogSnapshot, error) {
	seen := make(map[string]struct{}, len(rows))
	skus := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.SKU == "" {
			continue
		}
		key := strings.ToLower(r.SKU)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		skus = append(skus, r.SKU)
	}
	if len(skus) == 0 {
		return CatalogSnapshot{}, nil
	}

	found, err := catalog.FindBySKUs(ctx, skus)
	if err != nil {
		return nil, fmt.Errorf("find supplies by sku: %w", err)
	}
	snap := make(CatalogSnapshot, len(found))
	for k, s := range found {
		snap[strings.ToLower(k)] = s
	}
	return snap, nil
}

// MatchOutcome is the classified row set plus the inventory levels used for
// diff display.
type MatchOutcome struct {
	Rows              []ParsedRow
	ExistingInventory map[string]int
	Matched           int
	New               int
}

// SkuMatcher classifies candidate rows against a catalog snapshot.
type SkuMatcher struct {
	Inventory Inventory
}

// Match sets the match fields of every row and loads qty_on_hand at
// locationID for the matched supplies. Rows sharing a SKU resolve to the
// same supply. The input slice is not modified.
func (m SkuMatcher) Match(ctx context.Context, rows []ParsedRow, snap CatalogSnapshot, locationID string) (MatchOutcome, error) {
	out := MatchOutcome{
		Rows:              make([]ParsedRow, len(rows)),
		ExistingInventory: map[string]int{},
	}

	var ids []string
	for i, r := range rows {
		if s, ok := snap.Lookup(r.SKU); ok {
			id, name := s.ID, s.Name
			r.ExistingSupplyID = &id
			r.ExistingSupplyName = &name
			r.IsNew = false
			out.Matched++
			if _, dup := out.ExistingInventory[id]; !dup {
				out.ExistingInventory[id] = 0
				ids = append(ids, id)
			}
		} else {
			r.ExistingSupplyID = nil
			r.ExistingSupplyName = nil
			r.IsNew = true
			out.New++
		}
		out.Rows[i] = r
	}

	if len(ids) == 0 || m.Inventory == nil {
		return out, nil
	}

	levels, err := m.Inventory.QtyOnHand(ctx, locationID, ids)
	if err != nil {
		return MatchOutcome{}, fmt.Errorf("load inventory levels: %w", err)
	}
	for id, qty := range levels {
		if _, ok := out.ExistingInventory[id]; ok {
			out.ExistingInventory[id] = qty
		}
	}
	return out, nil
}
