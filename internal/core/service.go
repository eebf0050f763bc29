package core

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/supplysync/internal/config"
	"github.com/JonMunkholm/supplysync/internal/logging"
)

// Service is the entry point used by the HTTP handlers and the CLI.
// It owns no reconciliation state between calls: Parse returns a
// ParseResult and Apply takes the complete edited row set.
type Service struct {
	store        Store
	ingester     FileIngester
	engine       *ApplyEngine
	limiter      *ImportLimiter
	guard        *ApplyGuard
	maxFileSize  int64
	parseTimeout time.Duration
}

// NewService wires the pipeline components from cfg.
func NewService(store Store, cfg *config.Config) *Service {
	return &Service{
		store:    store,
		ingester: FileIngester{MaxHeaderSearchRows: cfg.Upload.MaxHeaderSearchRows},
		engine: &ApplyEngine{
			Store: store,
			Defaults: SupplyDefaults{
				Category:      cfg.Catalog.DefaultCategory,
				UnitCostCents: cfg.Catalog.DefaultUnitCostCents,
			},
			Parallelism:    cfg.Apply.Parallelism,
			VersionRetries: cfg.Apply.VersionRetries,
			RowTimeout:     cfg.Apply.RowTimeout,
		},
		limiter:      NewImportLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		guard:        NewApplyGuard(),
		maxFileSize:  cfg.Upload.MaxFileSize,
		parseTimeout: cfg.Upload.ParseTimeout,
	}
}

// Limiter exposes the import limiter for shutdown draining and health.
func (s *Service) Limiter() *ImportLimiter { return s.limiter }

// ParseRequest is one uploaded file. FileType is the declared type (an
// extension or MIME type); when empty or unknown it is inferred.
type ParseRequest struct {
	Filename   string
	FileType   string
	Data       []byte
	LocationID string
}

// Parse ingests, validates and matches one file against the catalog and
// the inventory at the target location. Fatal errors are *FormatError,
// *LocationInvalidError and ErrTooManyImports.
func (s *Service) Parse(ctx context.Context, req ParseRequest) (*ParseResult, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	if s.parseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.parseTimeout)
		defer cancel()
	}

	importID := uuid.NewString()
	log := logging.WithImport(ctx, importID, req.LocationID, req.Filename).With(clientAttrs(ctx)...)
	start := time.Now()

	if err := s.engine.checkLocation(ctx, req.LocationID); err != nil {
		return nil, err
	}

	if s.maxFileSize > 0 && int64(len(req.Data)) > s.maxFileSize {
		return nil, formatErrorf("file too large: %d bytes, maximum is %d", len(req.Data), s.maxFileSize)
	}

	ft := ParseFileType(req.FileType)
	if ft == "" {
		var err error
		if ft, err = detectFileType(req.Filename, req.Data); err != nil {
			return nil, err
		}
	}

	in, err := s.ingester.Ingest(req.Data, ft)
	if err != nil {
		return nil, err
	}

	validated := RowValidator{Columns: in.Columns}.Validate(in)

	snap, err := SnapshotCatalog(ctx, s.store, validated.Rows)
	if err != nil {
		return nil, err
	}
	matched, err := SkuMatcher{Inventory: s.store}.Match(ctx, validated.Rows, snap, req.LocationID)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		ImportID:          importID,
		Filename:          req.Filename,
		FileType:          ft,
		LocationID:        req.LocationID,
		Rows:              matched.Rows,
		Warnings:          validated.Warnings,
		ExistingInventory: matched.ExistingInventory,
		Stats: ParseStats{
			TotalRows:       len(matched.Rows),
			EmptyRows:       in.EmptyRows,
			MatchedSupplies: matched.Matched,
			NewSupplies:     matched.New,
			DuplicateSKUs:   validated.DuplicateSKUs,
		},
	}
	for _, r := range matched.Rows {
		if !r.HasWarnings() {
			result.Stats.ValidRows++
		}
	}
	if result.Warnings == nil {
		result.Warnings = []string{}
	}
	if result.Stats.DuplicateSKUs == nil {
		result.Stats.DuplicateSKUs = []string{}
	}

	log.Info("parse completed",
		"file_type", ft,
		"header_row", in.HeaderRow,
		"rows", result.Stats.TotalRows,
		"valid", result.Stats.ValidRows,
		"matched", result.Stats.MatchedSupplies,
		"new", result.Stats.NewSupplies,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// Apply commits req. A second apply for the same ImportID while the first
// is running fails with ErrApplyInProgress.
func (s *Service) Apply(ctx context.Context, req ApplyRequest) (ApplyResult, error) {
	release, err := s.guard.Begin(req.ImportID)
	if err != nil {
		return ApplyResult{}, err
	}
	defer release()

	if err := s.limiter.Acquire(ctx); err != nil {
		return ApplyResult{}, err
	}
	defer s.limiter.Release()

	return s.engine.Apply(ctx, req)
}
