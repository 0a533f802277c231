package core

// reader.go implements the delimited-text record parser shared by the
// analyzer and the batch importer.
//
// encoding/csv cannot be used here: its quote character is fixed to '"',
// while imports configure the enclosure per file. Parsing rules:
//
//   - records end at LF or CRLF outside an enclosure (a lone CR is data)
//   - an empty line is a record with a single empty field
//   - a field that starts with the enclosure runs to the next single
//     enclosure; a doubled enclosure is a literal enclosure character
//   - there is no escape character; text after a closing enclosure is
//     kept verbatim
//   - EOF inside an enclosure is a ParseError

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// RecordReader reads one record at a time and tracks the byte offset of the
// next record so callers can build a seek index.
type RecordReader struct {
	r         *bufio.Reader
	delimiter rune
	enclosure rune

	offset int64 // bytes consumed from the start of the file
	line   int   // number of the last record returned (1-based)

	field strings.Builder
}

// NewRecordReader creates a reader positioned at the start of a file.
// A leading UTF-8 BOM is skipped.
func NewRecordReader(r io.Reader, delimiter, enclosure rune) *RecordReader {
	rr := newRecordReaderAt(r, delimiter, enclosure, 0, 0)
	if head, err := rr.r.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = rr.r.Discard(len(utf8BOM))
		rr.offset = int64(len(utf8BOM))
	}
	return rr
}

// newRecordReaderAt creates a reader whose underlying stream has already been
// positioned at offset, the start of record line+1.
func newRecordReaderAt(r io.Reader, delimiter, enclosure rune, offset int64, line int) *RecordReader {
	return &RecordReader{
		r:         bufio.NewReader(NewStreamingUTF8Sanitizer(r)),
		delimiter: delimiter,
		enclosure: enclosure,
		offset:    offset,
		line:      line,
	}
}

// Offset returns the byte offset at which the next record starts.
func (rr *RecordReader) Offset() int64 {
	return rr.offset
}

// Line returns the 1-based number of the record most recently returned.
func (rr *RecordReader) Line() int {
	return rr.line
}

// Read returns the next record. It returns io.EOF when no records remain.
func (rr *RecordReader) Read() ([]string, error) {
	var fields []string
	rr.field.Reset()

	startLine := rr.line + 1
	enclosed := false
	fieldStart := true
	consumed := false

	for {
		c, size, err := rr.r.ReadRune()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("read record %d: %w", startLine, err)
			}
			if enclosed {
				return nil, &ParseError{Line: startLine, Err: errUnterminatedEnclosure}
			}
			if !consumed {
				return nil, io.EOF
			}
			rr.line++
			return append(fields, rr.field.String()), nil
		}
		rr.offset += int64(size)
		consumed = true

		if enclosed {
			if c != rr.enclosure {
				rr.field.WriteRune(c)
				continue
			}
			next, nsize, err := rr.r.ReadRune()
			if err == nil && next == rr.enclosure {
				rr.offset += int64(nsize)
				rr.field.WriteRune(c)
				continue
			}
			if err == nil {
				_ = rr.r.UnreadRune()
			}
			enclosed = false
			continue
		}

		switch {
		case c == rr.enclosure && fieldStart:
			enclosed = true
			fieldStart = false
		case c == rr.delimiter:
			fields = append(fields, rr.field.String())
			rr.field.Reset()
			fieldStart = true
		case c == '\n':
			rr.line++
			return append(fields, rr.field.String()), nil
		case c == '\r':
			next, nsize, err := rr.r.ReadRune()
			if err == nil && next == '\n' {
				rr.offset += int64(nsize)
				rr.line++
				return append(fields, rr.field.String()), nil
			}
			if err == nil {
				_ = rr.r.UnreadRune()
			}
			rr.field.WriteRune(c)
			fieldStart = false
		default:
			rr.field.WriteRune(c)
			fieldStart = false
		}
	}
}

// sourceFile is an open import source positioned for record reading.
type sourceFile struct {
	*RecordReader
	file *os.File
}

func (s *sourceFile) Close() error {
	return s.file.Close()
}

// openSource opens path and positions a RecordReader at offset, which must be
// 0 or the start of record line+1 as recorded by a previous pass.
func openSource(path string, delimiter, enclosure rune, offset int64, line int) (*sourceFile, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
		}
		return nil, fmt.Errorf("open source: %w", err)
	}

	if offset <= 0 {
		return &sourceFile{RecordReader: NewRecordReader(f, delimiter, enclosure), file: f}, nil
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("seek source to %d: %w", offset, err)
	}
	return &sourceFile{RecordReader: newRecordReaderAt(f, delimiter, enclosure, offset, line), file: f}, nil
}

// isBlankRecord reports whether a record carries no data: zero fields or a
// single empty field.
func isBlankRecord(row []string) bool {
	return len(row) == 0 || (len(row) == 1 && row[0] == "")
}
