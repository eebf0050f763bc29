// Package memory provides an in-process implementation of core.Store.
//
// It backs the engine tests and the CLI's --dry-run mode, and is selected by
// a memory:// DATABASE_URL. Versions follow the same optimistic rules as the
// SQL stores so apply behaves identically against every backend.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/JonMunkholm/supplysync/internal/core"
)

type invKey struct {
	supplyID   string
	locationID string
}

type invRecord struct {
	qty     int
	version int64
}

// Store is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	supplies  map[string]core.Supply // by id
	bySKU     map[string]string      // lower-cased sku -> id
	locations map[string]bool        // id -> active
	inventory map[invKey]invRecord
}

var _ core.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		supplies:  map[string]core.Supply{},
		bySKU:     map[string]string{},
		locations: map[string]bool{},
		inventory: map[invKey]invRecord{},
	}
}

// AddLocation registers a location.
func (s *Store) AddLocation(id string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locations[id] = active
}

// AddSupply seeds a catalog entry with a caller-chosen id.
func (s *Store) AddSupply(id, sku, name string) core.Supply {
	s.mu.Lock()
	defer s.mu.Unlock()
	sup := core.Supply{ID: id, SKU: sku, Name: name}
	s.supplies[id] = sup
	s.bySKU[strings.ToLower(sku)] = id
	return sup
}

// SeedQty sets qty_on_hand without a version check, bumping the version as
// a manual adjustment would.
func (s *Store) SeedQty(supplyID, locationID string, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := invKey{supplyID, locationID}
	rec := s.inventory[k]
	s.inventory[k] = invRecord{qty: qty, version: rec.version + 1}
}

// Qty returns qty_on_hand and whether a record exists.
func (s *Store) Qty(supplyID, locationID string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.inventory[invKey{supplyID, locationID}]
	return rec.qty, ok
}

// SupplyBySKU looks a supply up case-insensitively.
func (s *Store) SupplyBySKU(sku string) (core.Supply, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.bySKU[strings.ToLower(sku)]
	if !ok {
		return core.Supply{}, false
	}
	return s.supplies[id], true
}

// Supplies returns every catalog entry ordered by SKU.
func (s *Store) Supplies() []core.Supply {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Supply, 0, len(s.supplies))
	for _, sup := range s.supplies {
		out = append(out, sup)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out
}

func (s *Store) FindBySKUs(_ context.Context, skus []string) (map[string]core.Supply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]core.Supply)
	for _, sku := range skus {
		key := strings.ToLower(sku)
		if id, ok := s.bySKU[key]; ok {
			out[key] = s.supplies[id]
		}
	}
	return out, nil
}

func (s *Store) CreateSupply(_ context.Context, ns core.NewSupply) (core.Supply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(ns.SKU)
	if _, exists := s.bySKU[key]; exists {
		return core.Supply{}, fmt.Errorf("sku %q: %w", ns.SKU, core.ErrDuplicateSKU)
	}
	sup := core.Supply{
		ID:            uuid.NewString(),
		SKU:           ns.SKU,
		Name:          ns.Name,
		Category:      ns.Category,
		UnitCostCents: ns.UnitCostCents,
	}
	s.supplies[sup.ID] = sup
	s.bySKU[key] = sup.ID
	return sup, nil
}

func (s *Store) QtyOnHand(_ context.Context, locationID string, supplyIDs []string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(supplyIDs))
	for _, id := range supplyIDs {
		if rec, ok := s.inventory[invKey{id, locationID}]; ok {
			out[id] = rec.qty
		}
	}
	return out, nil
}

func (s *Store) InventoryRecord(_ context.Context, supplyID, locationID string) (core.InventoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.supplies[supplyID]; !ok {
		return core.InventoryRecord{}, fmt.Errorf("supply %q: %w", supplyID, core.ErrSupplyNotFound)
	}
	rec, ok := s.inventory[invKey{supplyID, locationID}]
	return core.InventoryRecord{
		SupplyID:   supplyID,
		LocationID: locationID,
		QtyOnHand:  rec.qty,
		Version:    rec.version,
		Exists:     ok,
	}, nil
}

func (s *Store) SetQtyOnHand(_ context.Context, supplyID, locationID string, qty int, expectedVersion int64) (int64, error) {
	if err := core.ValidateQuantity(qty); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.supplies[supplyID]; !ok {
		return 0, fmt.Errorf("supply %q: %w", supplyID, core.ErrSupplyNotFound)
	}
	k := invKey{supplyID, locationID}
	rec := s.inventory[k]
	if rec.version != expectedVersion {
		return 0, core.ErrVersionConflict
	}
	next := invRecord{qty: qty, version: rec.version + 1}
	s.inventory[k] = next
	return next.version, nil
}

func (s *Store) IsActive(_ context.Context, locationID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.locations[locationID], nil
}

// UpsertLocation registers or updates a location. The name is not kept.
func (s *Store) UpsertLocation(_ context.Context, id, _ string, active bool) error {
	s.AddLocation(id, active)
	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
