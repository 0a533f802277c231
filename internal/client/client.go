// Package client talks to the import API and drives an import batch by
// batch until it completes.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/csvimport/internal/core"
	"github.com/JonMunkholm/csvimport/internal/logging"
)

// busyMessage is the batch error returned while all batch slots are taken.
const busyMessage = "System busy"

// ProtocolError is a request-level failure reported in a batch response.
type ProtocolError struct {
	Start   int
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("batch %d: %s", e.Start, e.Message)
}

// Busy reports whether the server had no free batch slot.
func (e *ProtocolError) Busy() bool {
	return e.Message == busyMessage
}

// APIError is a non-2xx answer from any other endpoint.
type APIError struct {
	Status  int
	Message string
	Code    string
	// RetryAfter is the server's Retry-After hint, zero when absent.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (HTTP %d, code %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

// RateLimited reports whether the request was refused by the rate limiter.
func (e *APIError) RateLimited() bool {
	return e.Status == http.StatusTooManyRequests
}

// Client calls the import API.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client

	// BusyRetries and BusyDelay control how often a batch is retried when
	// the server is busy.
	BusyRetries int
	BusyDelay   time.Duration
}

// New returns a client for the API at baseURL.
func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		APIKey:      apiKey,
		HTTP:        &http.Client{Timeout: 10 * time.Minute},
		BusyRetries: 5,
		BusyDelay:   2 * time.Second,
	}
}

// CreateOptions are the form fields of a new import.
type CreateOptions struct {
	Schema                  string
	Parent                  int64
	Delimiter               string
	Enclosure               string
	Policy                  string
	CreateMissingReferences bool
	Mapping                 []string
	MaxRows                 int
	BatchSize               *int
}

// Import describes an import session.
type Import struct {
	ID           string   `json:"id"`
	SchemaID     string   `json:"schema"`
	ParentID     int64    `json:"parent"`
	FileName     string   `json:"fileName"`
	Policy       string   `json:"policy"`
	Header       []string `json:"header"`
	Mapping      []string `json:"mapping"`
	NumRows      int      `json:"numRows"`
	NumDataRows  int      `json:"numDataRows"`
	NumEmptyRows int      `json:"numEmptyRows"`
	NumBatches   int      `json:"numBatches"`
	BatchSize    int      `json:"batchSize"`
	MaxRows      int      `json:"maxRows"`
	Coverage     float64  `json:"coverage"`
}

// CreateImport uploads a CSV file and sets up an import session.
func (c *Client) CreateImport(ctx context.Context, opts CreateOptions, fileName string, file io.Reader) (*Import, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fields := map[string]string{
		"schema":                  opts.Schema,
		"parent":                  strconv.FormatInt(opts.Parent, 10),
		"delimiter":               opts.Delimiter,
		"enclosure":               opts.Enclosure,
		"policy":                  opts.Policy,
		"createMissingReferences": strconv.FormatBool(opts.CreateMissingReferences),
		"maxRows":                 strconv.Itoa(opts.MaxRows),
	}
	if opts.BatchSize != nil {
		fields["batchSize"] = strconv.Itoa(*opts.BatchSize)
	}
	if opts.Mapping != nil {
		data, err := json.Marshal(opts.Mapping)
		if err != nil {
			return nil, fmt.Errorf("encode mapping: %w", err)
		}
		fields["mapping"] = string(data)
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return nil, err
		}
	}

	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, file); err != nil {
		return nil, fmt.Errorf("read %s: %w", fileName, err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/imports", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var imp Import
	if err := c.do(req, http.StatusCreated, &imp); err != nil {
		return nil, err
	}
	return &imp, nil
}

// GetImport reads an import session.
func (c *Client) GetImport(ctx context.Context, id string) (*Import, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/imports/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	var imp Import
	if err := c.do(req, http.StatusOK, &imp); err != nil {
		return nil, err
	}
	return &imp, nil
}

// DeleteImport ends an import session.
func (c *Client) DeleteImport(ctx context.Context, id string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/imports/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	return c.do(req, http.StatusNoContent, nil)
}

type batchEnvelope struct {
	core.BatchResponse
	Error string `json:"error"`
}

// Batch runs one batch. A request-level failure is returned as a
// *ProtocolError.
func (c *Client) Batch(ctx context.Context, id string, start int) (*core.BatchResponse, error) {
	path := "/api/imports/" + url.PathEscape(id) + "/batch?start=" + strconv.Itoa(start)
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var env batchEnvelope
	if err := c.do(req, http.StatusOK, &env); err != nil {
		return nil, err
	}
	if env.Error != "" {
		return nil, &ProtocolError{Start: start, Message: env.Error}
	}
	return &env.BatchResponse, nil
}

// Export downloads the records of schema under parent as CSV into w.
func (c *Client) Export(ctx context.Context, parent int64, schema string, w io.Writer) error {
	path := "/api/parents/" + strconv.FormatInt(parent, 10) + "/export?schema=" + url.QueryEscape(schema)
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

// Totals accumulates the counters of every batch of a drive.
type Totals struct {
	core.Counters
	Batches   int
	Truncated bool
	Errors    []core.RowError
	Elapsed   time.Duration
}

// Progress is called after every finished batch.
type Progress func(start int, resp *core.BatchResponse)

// Drive requests batches from start until the server reports the import
// done. Cancelling ctx stops before the next batch; the batch in flight
// still completes on the server.
func (c *Client) Drive(ctx context.Context, id string, start int, progress Progress) (*Totals, error) {
	logger := logging.FromContext(logging.ContextWithImport(ctx, id))
	began := time.Now()
	totals := &Totals{}

	for {
		if err := ctx.Err(); err != nil {
			totals.Elapsed = time.Since(began)
			return totals, err
		}

		resp, err := c.batchWithRetry(ctx, id, start)
		if err != nil {
			totals.Elapsed = time.Since(began)
			return totals, err
		}

		totals.add(resp)
		if progress != nil {
			progress(start, resp)
		}
		logger.Debug("batch finished", "start", start, "counter", resp.Counter)

		if resp.Done(start) {
			// An empty source also reports zero batches
			totals.Truncated = resp.NumBatches == 0 && resp.CSVNumRows > 0
			totals.Elapsed = time.Since(began)
			return totals, nil
		}
		start++
	}
}

// batchWithRetry retries a batch while the server is busy or rate limited,
// up to BusyRetries times.
func (c *Client) batchWithRetry(ctx context.Context, id string, start int) (*core.BatchResponse, error) {
	for attempt := 0; ; attempt++ {
		resp, err := c.Batch(ctx, id, start)
		if err == nil || attempt >= c.BusyRetries {
			return resp, err
		}
		delay, ok := c.retryDelay(err)
		if !ok {
			return nil, err
		}
		logging.FromContext(ctx).Debug("batch retry", "start", start, "attempt", attempt+1, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// retryDelay reports whether err is worth retrying and how long to wait.
func (c *Client) retryDelay(err error) (time.Duration, bool) {
	var perr *ProtocolError
	if errors.As(err, &perr) && perr.Busy() {
		return c.BusyDelay, true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RateLimited() {
		return max(c.BusyDelay, apiErr.RetryAfter), true
	}
	return 0, false
}

func (t *Totals) add(resp *core.BatchResponse) {
	t.Batches++
	t.Imported += resp.Imported
	t.Skipped += resp.Skipped
	t.Created += resp.Created
	t.Modified += resp.Modified
	t.Failed += resp.Failed
	if room := core.MaxReportedRowErrors - len(t.Errors); room > 0 {
		errs := resp.Errors
		if len(errs) > room {
			errs = errs[:room]
		}
		t.Errors = append(t.Errors, errs...)
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, want int, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	var retryAfter time.Duration
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		retryAfter = time.Duration(secs) * time.Second
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data)), RetryAfter: retryAfter}
	}
	msg := body.Message
	if msg == "" {
		msg = body.Error
	}
	return &APIError{Status: resp.StatusCode, Message: msg, Code: body.Code, RetryAfter: retryAfter}
}
