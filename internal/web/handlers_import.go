package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/csvimport/internal/core"
	"github.com/JonMunkholm/csvimport/internal/logging"
)

var (
	errFileTooLarge = errors.New("file too large")
	errNoFile       = errors.New("no file provided")
)

// createImportForm holds the multipart fields of POST /api/imports.
type createImportForm struct {
	Schema        string `validate:"required,max=64"`
	Parent        int64  `validate:"gte=0"`
	Delimiter     string `validate:"len=1"`
	Enclosure     string `validate:"len=1"`
	Policy        string `validate:"oneof=skip create_unique modify"`
	CreateMissing bool
	Mapping       []string `validate:"omitempty,dive,max=64"`
	MaxRows       int      `validate:"gte=0"`
	BatchSize     int      `validate:"gte=0"`
}

// importResponse is returned when an import session is created or read.
type importResponse struct {
	ID           string   `json:"id"`
	SchemaID     string   `json:"schema"`
	ParentID     int64    `json:"parent"`
	FileName     string   `json:"fileName"`
	Policy       string   `json:"policy"`
	Header       []string `json:"header"`
	Mapping      []string `json:"mapping"`
	NumRows      int      `json:"numRows"`
	NumDataRows  int      `json:"numDataRows"`
	NumEmptyRows *int     `json:"numEmptyRows,omitempty"`
	NumBatches   int      `json:"numBatches"`
	BatchSize    int      `json:"batchSize"`
	MaxRows      int      `json:"maxRows"`
	Coverage     *float64 `json:"coverage,omitempty"`
}

func newImportResponse(cfg *core.ImportConfig) importResponse {
	return importResponse{
		ID:          cfg.ID,
		SchemaID:    cfg.SchemaID,
		ParentID:    cfg.ParentID,
		FileName:    cfg.FileName,
		Policy:      string(cfg.Policy),
		Header:      cfg.Header,
		Mapping:     cfg.ColumnFields,
		NumRows:     cfg.NumRows,
		NumDataRows: cfg.NumDataRows,
		NumBatches:  cfg.NumBatches,
		BatchSize:   cfg.BatchSize,
		MaxRows:     cfg.MaxRows,
	}
}

// handleCreateImport stores an uploaded CSV file and sets up an import
// session for it. No rows are imported until the first batch request.
func (s *Server) handleCreateImport(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = fmt.Errorf("%w: limit is %d bytes", errFileTooLarge, tooLarge.Limit)
		} else {
			err = fmt.Errorf("invalid form: %w", err)
		}
		s.badRequest(w, r, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.badRequest(w, r, errNoFile)
		return
	}
	defer file.Close()

	form, err := s.parseCreateForm(r)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}

	delim, _ := utf8.DecodeRuneInString(form.Delimiter)
	encl, _ := utf8.DecodeRuneInString(form.Enclosure)

	req := core.CreateImportRequest{
		SchemaID:                form.Schema,
		ParentID:                form.Parent,
		FileName:                header.Filename,
		Delimiter:               delim,
		Enclosure:               encl,
		Policy:                  core.DuplicatePolicy(form.Policy),
		CreateMissingReferences: form.CreateMissing,
		ColumnFields:            form.Mapping,
		MaxRows:                 form.MaxRows,
		BatchSize:               form.BatchSize,
	}

	summary, err := s.service.CreateImport(r.Context(), req, file)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	resp := newImportResponse(summary.Config)
	resp.NumEmptyRows = &summary.NumEmptyRows
	resp.Coverage = &summary.Coverage
	writeJSON(w, http.StatusCreated, resp)
}

// parseCreateForm reads and validates the form fields, applying defaults for
// the ones left out.
func (s *Server) parseCreateForm(r *http.Request) (*createImportForm, error) {
	form := &createImportForm{
		Schema:    strings.TrimSpace(r.FormValue("schema")),
		Delimiter: r.FormValue("delimiter"),
		Enclosure: r.FormValue("enclosure"),
		Policy:    strings.ToLower(strings.TrimSpace(r.FormValue("policy"))),
	}
	if form.Delimiter == "" {
		form.Delimiter = ","
	}
	if form.Delimiter == `\t` {
		form.Delimiter = "\t"
	}
	if form.Enclosure == "" {
		form.Enclosure = `"`
	}
	if form.Policy == "" {
		form.Policy = string(core.PolicySkip)
	}

	var err error
	if form.Parent, err = formInt64(r, "parent"); err != nil {
		return nil, err
	}
	if form.CreateMissing, err = formBool(r, "createMissingReferences"); err != nil {
		return nil, err
	}
	maxRows, err := formInt64(r, "maxRows")
	if err != nil {
		return nil, err
	}
	form.MaxRows = int(maxRows)

	if v := r.FormValue("batchSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid batchSize %q", v)
		}
		form.BatchSize = n
	} else {
		form.BatchSize = s.cfg.Upload.BatchSize
		// A capped import runs in a single batch
		if form.MaxRows > 0 && form.BatchSize < form.MaxRows {
			form.BatchSize = form.MaxRows
		}
	}

	if v := r.FormValue("mapping"); v != "" {
		if err := json.Unmarshal([]byte(v), &form.Mapping); err != nil {
			return nil, errors.New("invalid mapping format, must be a JSON string array")
		}
	}

	if err := s.validate.Struct(form); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return form, nil
}

func formInt64(r *http.Request, key string) (int64, error) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, nil
}

func formBool(r *http.Request, key string) (bool, error) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q", key, v)
	}
	return b, nil
}

// handleGetImport returns the summary of an import session.
func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.service.GetImport(r.Context(), chi.URLParam(r, "importID"))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, newImportResponse(cfg))
}

// handleDeleteImport ends an import session.
func (s *Server) handleDeleteImport(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteImport(r.Context(), chi.URLParam(r, "importID")); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleImportBatch runs one batch of an import. Request-level failures are
// reported as {"error": "..."} with status 200 so clients only branch on the
// body.
func (s *Server) handleImportBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "importID")
	ctx := logging.ContextWithImport(r.Context(), id)

	start, err := strconv.Atoi(r.URL.Query().Get("start"))
	if err != nil {
		start = -1
	}

	resp, err := s.service.ImportBatch(ctx, id, start)
	if err != nil {
		logging.FromContext(ctx).Warn("batch request failed", "start", start, "error", err)
		writeJSON(w, http.StatusOK, core.ErrorResponse{Error: core.ProtocolMessage(err)})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleListSchemas lists the registered schemas.
func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"schemas": s.service.Schemas()})
}

// handleExport streams the records of one schema under a parent as CSV.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	parentID, err := strconv.ParseInt(chi.URLParam(r, "parentID"), 10, 64)
	if err != nil || parentID < 0 {
		s.badRequest(w, r, errors.New("invalid parent id"))
		return
	}
	schemaID := r.URL.Query().Get("schema")
	if schemaID == "" {
		s.badRequest(w, r, errors.New("missing schema"))
		return
	}
	if _, ok := s.service.Registry.Get(schemaID); !ok {
		s.respondError(w, r, fmt.Errorf("%w: %s", core.ErrUnknownSchema, schemaID), 0)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_%d.csv"`, schemaID, parentID))

	tw := &trackingWriter{w: w}
	if err := s.service.Export(r.Context(), tw, parentID, schemaID); err != nil {
		if !tw.wrote {
			w.Header().Del("Content-Disposition")
			s.respondError(w, r, err, 0)
			return
		}
		// Headers are gone once rows are written
		logging.FromContext(r.Context()).Error("export failed",
			"parent", parentID,
			"schema", schemaID,
			"error", err,
		)
	}
}

// trackingWriter records whether anything reached the response body.
type trackingWriter struct {
	w     io.Writer
	wrote bool
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	t.wrote = true
	return t.w.Write(p)
}
