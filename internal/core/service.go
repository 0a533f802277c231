package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/csvimport/internal/logging"
)

// DefaultBatchTimeout bounds a single batch once it has been dispatched.
var DefaultBatchTimeout = 5 * time.Minute

// Service is the entry point for import sessions: it creates them from an
// uploaded file, runs their batches and removes them.
type Service struct {
	Registry *Registry
	Records  RecordStore
	Configs  ConfigStore
	Importer *BatchImporter
	Limiter  *BatchLimiter

	UploadDir    string
	BatchTimeout time.Duration
}

// ServiceOptions configures NewService.
type ServiceOptions struct {
	UploadDir     string
	Attachments   AttachmentSink
	MaxConcurrent int
	MaxWait       time.Duration
	BatchTimeout  time.Duration
}

// NewService wires the importer and limiter around the given stores.
func NewService(reg *Registry, records RecordStore, configs ConfigStore, opts ServiceOptions) (*Service, error) {
	if opts.UploadDir == "" {
		return nil, fmt.Errorf("upload dir is required")
	}
	if err := os.MkdirAll(opts.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = DefaultBatchTimeout
	}

	return &Service{
		Registry: reg,
		Records:  records,
		Configs:  configs,
		Importer: &BatchImporter{
			Registry:    reg,
			Records:     records,
			Attachments: opts.Attachments,
		},
		Limiter:      NewBatchLimiter(opts.MaxConcurrent, opts.MaxWait),
		UploadDir:    opts.UploadDir,
		BatchTimeout: opts.BatchTimeout,
	}, nil
}

// CreateImportRequest carries the choices made when an import is set up.
type CreateImportRequest struct {
	SchemaID                string
	ParentID                int64
	FileName                string
	Delimiter               rune
	Enclosure               rune
	Policy                  DuplicatePolicy
	CreateMissingReferences bool
	ColumnFields            []string // nil suggests a mapping from the header
	MaxRows                 int
	BatchSize               int
}

// ImportSummary describes an import session to clients.
type ImportSummary struct {
	Config       *ImportConfig `json:"config"`
	NumEmptyRows int           `json:"numEmptyRows"`
	Coverage     float64       `json:"coverage"`
}

// CreateImport stores the uploaded file, analyzes it in one pass and
// persists the resulting ImportConfig. Nothing is imported yet.
func (s *Service) CreateImport(ctx context.Context, req CreateImportRequest, file io.Reader) (*ImportSummary, error) {
	schema, ok := s.Registry.Get(req.SchemaID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSchema, req.SchemaID)
	}

	id := uuid.New().String()
	ctx = logging.ContextWithImport(ctx, id)
	logger := logging.WithFields(ctx, "schema", req.SchemaID, "parent", req.ParentID)

	path := filepath.Join(s.UploadDir, id+".csv")
	if err := writeUpload(path, file); err != nil {
		return nil, err
	}

	cfg := &ImportConfig{
		ID:                      id,
		SchemaID:                req.SchemaID,
		ParentID:                req.ParentID,
		FilePath:                path,
		FileName:                req.FileName,
		Delimiter:               req.Delimiter,
		Enclosure:               req.Enclosure,
		Policy:                  req.Policy,
		CreateMissingReferences: req.CreateMissingReferences,
		MaxRows:                 req.MaxRows,
		BatchSize:               req.BatchSize,
		CreatedAt:               time.Now().UTC(),
	}

	// Reject unusable separators before trying to parse with them
	if err := cfg.validateSeparators(); err != nil {
		os.Remove(path)
		return nil, err
	}

	analysis, err := CSVAnalyzer{Delimiter: cfg.Delimiter, Enclosure: cfg.Enclosure, BatchSize: cfg.BatchSize}.Analyze(path)
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	cfg.ApplyAnalysis(analysis)

	cfg.ColumnFields = req.ColumnFields
	if cfg.ColumnFields == nil {
		cfg.ColumnFields = SuggestMapping(schema, cfg.Header)
	}

	if err := cfg.Validate(); err != nil {
		os.Remove(path)
		return nil, err
	}
	if _, err := NewColumnPlan(schema, cfg.ColumnFields); err != nil {
		os.Remove(path)
		return nil, err
	}

	if err := s.Configs.Save(ctx, cfg); err != nil {
		os.Remove(path)
		return nil, err
	}

	logger.Info("import created",
		"file", cfg.FileName,
		"rows", cfg.NumRows,
		"data_rows", cfg.NumDataRows,
		"batches", cfg.NumBatches,
	)

	return &ImportSummary{
		Config:       cfg,
		NumEmptyRows: analysis.NumEmptyRows,
		Coverage:     MappingCoverage(schema, cfg.ColumnFields),
	}, nil
}

func writeUpload(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("store upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("store upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("store upload: %w", err)
	}
	return nil
}

// GetImport loads an import session.
func (s *Service) GetImport(ctx context.Context, id string) (*ImportConfig, error) {
	return s.Configs.Load(ctx, id)
}

// DeleteImport ends an import session and removes its source file.
func (s *Service) DeleteImport(ctx context.Context, id string) error {
	ctx = logging.ContextWithImport(ctx, id)
	cfg, err := s.Configs.Load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Configs.Delete(ctx, id); err != nil {
		return err
	}
	if err := os.Remove(cfg.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.FromContext(ctx).Warn("remove import source", "path", cfg.FilePath, "error", err)
	}
	return nil
}

// ImportBatch runs batch start of import id and builds the progress
// response. Once dispatched, the batch runs to completion even if the
// caller goes away; only BatchTimeout bounds it.
func (s *Service) ImportBatch(ctx context.Context, id string, start int) (BatchResponse, error) {
	ctx = logging.ContextWithImport(ctx, id)
	cfg, err := s.Configs.Load(ctx, id)
	if err != nil {
		return BatchResponse{}, err
	}
	if err := cfg.CheckBatchIndex(start); err != nil {
		return BatchResponse{}, err
	}

	if err := s.Limiter.Acquire(ctx); err != nil {
		return BatchResponse{}, err
	}
	defer s.Limiter.Release()

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.BatchTimeout)
	defer cancel()

	res, err := s.Importer.RunBatch(runCtx, cfg, start)
	if err != nil {
		return BatchResponse{}, err
	}
	return NewBatchResponse(cfg, res), nil
}

// Schemas returns every registered schema.
func (s *Service) Schemas() []Schema {
	return s.Registry.All()
}

// Export writes the records of schemaID under parentID as CSV.
func (s *Service) Export(ctx context.Context, w io.Writer, parentID int64, schemaID string) error {
	schema, ok := s.Registry.Get(schemaID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSchema, schemaID)
	}
	return ExportCSV(ctx, w, s.Records, schema, parentID)
}

// WaitForBatches blocks until every dispatched batch has finished or ctx ends.
func (s *Service) WaitForBatches(ctx context.Context) error {
	return s.Limiter.WaitForDrain(ctx)
}
