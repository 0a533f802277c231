package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// KeyPrefix starts every key the Attacher produces.
const KeyPrefix = "records/"

var (
	// ErrLocatorNotAllowed is returned for local paths outside SourceRoot.
	ErrLocatorNotAllowed = errors.New("attachment locator not allowed")

	// ErrTooLarge is returned for attachments over MaxBytes.
	ErrTooLarge = errors.New("attachment too large")
)

// Attacher copies attachment locators (local paths or http(s) URLs) into an
// ObjectStore under a key derived from the record, field and locator.
// Keys are deterministic, so importing the same row again overwrites the
// same object instead of adding one.
type Attacher struct {
	Store ObjectStore

	// SourceRoot confines local paths. Relative paths are resolved against
	// it; absolute paths must lie inside it. Empty disables local paths.
	SourceRoot string

	// Client fetches URL locators. nil uses a client with a 30s timeout.
	Client *http.Client

	// MaxBytes limits a single attachment; 0 means unlimited.
	MaxBytes int64
}

// Attach implements core.AttachmentSink.
func (a *Attacher) Attach(ctx context.Context, recordID int64, field, locator string) (string, error) {
	// A key from a previous import or an export round trip is kept as is
	if strings.HasPrefix(locator, KeyPrefix) {
		ok, err := a.Store.Exists(ctx, locator)
		if err != nil {
			return "", err
		}
		if ok {
			return locator, nil
		}
	}

	source := locator
	if !isURL(locator) {
		p, err := a.localPath(locator)
		if err != nil {
			return "", err
		}
		source = p
	}

	key := ObjectKey(recordID, field, source)
	body, size, contentType, err := a.open(ctx, source)
	if err != nil {
		return "", err
	}
	defer body.Close()

	var r io.Reader = body
	var capped *cappedReader
	if a.MaxBytes > 0 {
		if size > a.MaxBytes {
			return "", fmt.Errorf("attachment %s: %w (%d bytes)", locator, ErrTooLarge, size)
		}
		capped = &cappedReader{r: body, left: a.MaxBytes}
		r = capped
	}

	// Stored again on every import, so a changed source replaces the object
	if err := a.Store.Put(ctx, key, r, size, contentType); err != nil {
		if capped != nil && capped.over {
			return "", fmt.Errorf("attachment %s: %w (over %d bytes)", locator, ErrTooLarge, a.MaxBytes)
		}
		return "", err
	}
	return key, nil
}

// cappedReader fails with ErrTooLarge once more than left bytes arrive, so
// a body of unknown length is never stored cut short.
type cappedReader struct {
	r    io.Reader
	left int64
	over bool
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.over {
		return 0, ErrTooLarge
	}
	if int64(len(p)) > c.left+1 {
		p = p[:c.left+1]
	}
	n, err := c.r.Read(p)
	c.left -= int64(n)
	if c.left < 0 {
		c.over = true
		return 0, ErrTooLarge
	}
	return n, err
}

// ObjectKey derives the storage key of an attachment:
//
//	records/<record id>/<field>/<locator hash>-<file name>
//
// source is a URL or a resolved local path. The hash keeps two sources with
// the same file name apart.
func ObjectKey(recordID int64, field, source string) string {
	base := source
	if i := strings.IndexAny(base, "?#"); i >= 0 && isURL(source) {
		base = base[:i]
	}
	base = path.Base(filepath.ToSlash(base))
	if base == "." || base == "/" || base == "" {
		base = "file"
	}
	sum := sha256.Sum256([]byte(source))
	return KeyPrefix + strconv.FormatInt(recordID, 10) + "/" + field + "/" + hex.EncodeToString(sum[:4]) + "-" + base
}

func isURL(locator string) bool {
	return strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://")
}

// open returns the content of a URL or of a local path already resolved by
// localPath, its size (-1 if unknown) and content type.
func (a *Attacher) open(ctx context.Context, source string) (io.ReadCloser, int64, string, error) {
	if isURL(source) {
		return a.fetch(ctx, source)
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, 0, "", fmt.Errorf("open %s: %w", source, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, "", fmt.Errorf("stat %s: %w", source, err)
	}
	return f, info.Size(), mime.TypeByExtension(filepath.Ext(source)), nil
}

func (a *Attacher) localPath(locator string) (string, error) {
	if a.SourceRoot == "" {
		return "", fmt.Errorf("%w: %s", ErrLocatorNotAllowed, locator)
	}
	root, err := filepath.Abs(a.SourceRoot)
	if err != nil {
		return "", err
	}
	p := locator
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	p = filepath.Clean(p)
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrLocatorNotAllowed, locator)
	}
	return p, nil
}

func (a *Attacher) fetch(ctx context.Context, url string) (io.ReadCloser, int64, string, error) {
	client := a.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, "", fmt.Errorf("fetch %s: %w", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, "", fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	return resp.Body, resp.ContentLength, resp.Header.Get("Content-Type"), nil
}
