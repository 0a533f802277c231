package core

import (
	"errors"
	"reflect"
	"testing"
)

func TestCSVAnalyzer_Analyze(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		batchSize int
		wantAll   int
		wantRows  int
		wantEmpty int
		wantHead  []string
	}{
		{
			name:     "header only",
			input:    "name,title\n",
			wantAll:  1,
			wantRows: 0,
			wantHead: []string{"name", "title"},
		},
		{
			name:     "empty file",
			input:    "",
			wantAll:  0,
			wantRows: 0,
		},
		{
			name:      "empty rows counted",
			input:     "name,title\na,A\n\n,B\nc,C\n",
			wantAll:   5,
			wantRows:  4,
			wantEmpty: 2,
			wantHead:  []string{"name", "title"},
		},
		{
			name:     "multiline record is one row",
			input:    "name,note\na,\"x\ny\"\nb,z\n",
			wantAll:  3,
			wantRows: 2,
			wantHead: []string{"name", "note"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSource(t, tt.input)
			got, err := CSVAnalyzer{Delimiter: ',', Enclosure: '"', BatchSize: tt.batchSize}.Analyze(path)
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if got.NumAllRows != tt.wantAll {
				t.Errorf("NumAllRows = %d, want %d", got.NumAllRows, tt.wantAll)
			}
			if got.NumRows() != tt.wantRows {
				t.Errorf("NumRows() = %d, want %d", got.NumRows(), tt.wantRows)
			}
			if got.NumEmptyRows != tt.wantEmpty {
				t.Errorf("NumEmptyRows = %d, want %d", got.NumEmptyRows, tt.wantEmpty)
			}
			if !reflect.DeepEqual(got.Header, tt.wantHead) {
				t.Errorf("Header = %q, want %q", got.Header, tt.wantHead)
			}
		})
	}
}

func TestCSVAnalyzer_BatchOffsets(t *testing.T) {
	// header (11 bytes), then five 4-byte rows
	input := "name,title\na,A\nb,B\nc,C\nd,D\ne,E\n"
	path := writeSource(t, input)

	tests := []struct {
		batchSize int
		want      []int64
	}{
		{0, nil},
		{1, []int64{11, 15, 19, 23, 27}},
		{2, []int64{11, 19, 27}},
		{5, []int64{11}},
		{10, []int64{11}},
	}

	for _, tt := range tests {
		got, err := CSVAnalyzer{Delimiter: ',', Enclosure: '"', BatchSize: tt.batchSize}.Analyze(path)
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if !reflect.DeepEqual(got.BatchOffsets, tt.want) {
			t.Errorf("batchSize %d: BatchOffsets = %v, want %v", tt.batchSize, got.BatchOffsets, tt.want)
		}
	}
}

func TestCSVAnalyzer_HeaderOnlyHasNoOffsets(t *testing.T) {
	path := writeSource(t, "name,title\n")
	got, err := CSVAnalyzer{Delimiter: ',', Enclosure: '"', BatchSize: 2}.Analyze(path)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(got.BatchOffsets) != 0 {
		t.Errorf("BatchOffsets = %v, want none", got.BatchOffsets)
	}
}

func TestCSVAnalyzer_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := AnalyzeFile("/nonexistent/file.csv", ',', '"')
		if !errors.Is(err, ErrSourceNotFound) {
			t.Errorf("error = %v, want ErrSourceNotFound", err)
		}
	})

	t.Run("unterminated enclosure", func(t *testing.T) {
		path := writeSource(t, "name,title\na,\"broken\n")
		_, err := AnalyzeFile(path, ',', '"')
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("error = %v, want *ParseError", err)
		}
		if pe.Line != 2 {
			t.Errorf("Line = %d, want 2", pe.Line)
		}
	})
}
