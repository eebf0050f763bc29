// Package admin provides administrative operations on import locations.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Timeout is the maximum duration of one administrative operation.
const Timeout = 30 * time.Second

// LocationStore is the subset of a store backend admin needs.
type LocationStore interface {
	UpsertLocation(ctx context.Context, id, name string, active bool) error
	IsActive(ctx context.Context, locationID string) (bool, error)
}

// Location is one location to register.
type Location struct {
	ID     string
	Name   string
	Active bool
}

// Locations manages which locations may receive imports.
type Locations struct {
	Store LocationStore
}

type locationFn func(ctx context.Context) error

// Register creates or updates every location in order, stopping at the
// first failure.
func (l *Locations) Register(ctx context.Context, locs ...Location) error {
	steps := make([]locationFn, 0, len(locs))
	for _, loc := range locs {
		if strings.TrimSpace(loc.ID) == "" {
			return errors.New("location id is required")
		}
		steps = append(steps, func(ctx context.Context) error {
			if err := l.Store.UpsertLocation(ctx, loc.ID, loc.Name, loc.Active); err != nil {
				return fmt.Errorf("register location %q: %w", loc.ID, err)
			}
			return nil
		})
	}
	return l.run(ctx, steps)
}

// Deactivate stops a location from receiving imports. Its inventory is
// kept. An unknown id is an error.
func (l *Locations) Deactivate(ctx context.Context, id string) error {
	return l.run(ctx, []locationFn{func(ctx context.Context) error {
		active, err := l.Store.IsActive(ctx, id)
		if err != nil {
			return fmt.Errorf("check location %q: %w", id, err)
		}
		if !active {
			return fmt.Errorf("location %q is unknown or already inactive", id)
		}
		return l.Store.UpsertLocation(ctx, id, "", false)
	}})
}

func (l *Locations) run(ctx context.Context, steps []locationFn) error {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	for _, step := range steps {
		if err := step(ctx); err != nil {
			return err
		}
	}
	return nil
}
