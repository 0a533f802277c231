package core

// streaming.go provides the byte-level input cleanup applied before parsing.
//
// StreamingUTF8Sanitizer replaces invalid UTF-8 bytes one-for-one with '?',
// so byte offsets observed by the RecordReader remain valid file offsets.
// That property is what makes the persisted batch offset index usable.

import (
	"io"
	"unicode/utf8"
)

// StreamingUTF8Sanitizer wraps an io.Reader and replaces invalid UTF-8 bytes
// with '?' on the fly, using O(buffer_size) memory.
type StreamingUTF8Sanitizer struct {
	reader io.Reader

	// Leftover bytes from previous read that may form a multi-byte sequence
	pending []byte
}

// NewStreamingUTF8Sanitizer creates a new streaming UTF-8 sanitizer.
func NewStreamingUTF8Sanitizer(r io.Reader) *StreamingUTF8Sanitizer {
	return &StreamingUTF8Sanitizer{
		reader:  r,
		pending: make([]byte, 0, utf8.UTFMax),
	}
}

// Read implements io.Reader.
func (s *StreamingUTF8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	offset := 0
	if len(s.pending) > 0 {
		offset = copy(p, s.pending)
		s.pending = s.pending[:0]
	}

	n, err := s.reader.Read(p[offset:])
	n += offset

	if n == 0 {
		return 0, err
	}

	if isAllASCII(p[:n]) {
		return n, err
	}

	return s.sanitize(p[:n], err == io.EOF), err
}

// isAllASCII returns true if all bytes are ASCII (< 128).
func isAllASCII(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 {
			return false
		}
	}
	return true
}

// sanitize rewrites data in place and returns the number of bytes ready to
// hand out. Unless atEOF, a trailing incomplete sequence is held back in
// pending for the next call.
func (s *StreamingUTF8Sanitizer) sanitize(data []byte, atEOF bool) int {
	if !atEOF {
		if trailing := incompleteTrailingBytes(data); trailing > 0 {
			s.pending = append(s.pending, data[len(data)-trailing:]...)
			data = data[:len(data)-trailing]
		}
	}

	if utf8.Valid(data) {
		return len(data)
	}

	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			data[i] = '?'
		}
		i += size
	}
	return len(data)
}

// incompleteTrailingBytes returns the number of bytes at the end of data
// that start a multi-byte UTF-8 sequence not yet complete.
func incompleteTrailingBytes(data []byte) int {
	for i := 1; i <= 3 && i <= len(data); i++ {
		b := data[len(data)-i]
		if b >= 0xC0 {
			if i < runeLen(b) {
				return i
			}
			return 0
		}
		// Anything but a continuation byte ends the search
		if b&0xC0 != 0x80 {
			return 0
		}
	}
	return 0
}

// runeLen returns the expected length of a UTF-8 sequence starting with byte b.
func runeLen(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b < 0xC0:
		return 0 // continuation byte
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}
