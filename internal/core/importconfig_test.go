package core

import (
	"errors"
	"strings"
	"testing"
)

func validConfig() *ImportConfig {
	return &ImportConfig{
		ID:           "cfg",
		SchemaID:     "contact",
		ParentID:     1,
		FilePath:     "/tmp/source.csv",
		Delimiter:    ',',
		Enclosure:    '"',
		Policy:       PolicySkip,
		ColumnFields: []string{"title"},
	}
}

func TestImportConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *ImportConfig)
		wantErr string
	}{
		{"valid", func(c *ImportConfig) {}, ""},
		{"missing schema", func(c *ImportConfig) { c.SchemaID = "" }, "schema is required"},
		{"zero parent", func(c *ImportConfig) { c.ParentID = 0 }, "parent must be a positive id"},
		{"missing file", func(c *ImportConfig) { c.FilePath = "" }, "source file is required"},
		{"newline delimiter", func(c *ImportConfig) { c.Delimiter = '\n' }, "delimiter"},
		{"zero enclosure", func(c *ImportConfig) { c.Enclosure = 0 }, "enclosure"},
		{"same separators", func(c *ImportConfig) { c.Enclosure = ',' }, "must differ"},
		{"unknown policy", func(c *ImportConfig) { c.Policy = "merge" }, "unknown duplicate policy"},
		{"negative max rows", func(c *ImportConfig) { c.MaxRows = -1 }, "max rows"},
		{"negative batch size", func(c *ImportConfig) { c.BatchSize = -1 }, "batch size must be non-negative"},
		{"batch smaller than max rows", func(c *ImportConfig) { c.BatchSize, c.MaxRows = 5, 10 }, "must be 0 or >= max rows"},
		{"batch equal to max rows", func(c *ImportConfig) { c.BatchSize, c.MaxRows = 10, 10 }, ""},
		{"unbatched with max rows", func(c *ImportConfig) { c.BatchSize, c.MaxRows = 0, 10 }, ""},
		{"nothing mapped", func(c *ImportConfig) { c.ColumnFields = []string{"", ""} }, "at least one column"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate() error = %v, want ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestImportConfig_ValidateReportsAll(t *testing.T) {
	c := validConfig()
	c.SchemaID = ""
	c.ParentID = 0
	err := c.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	for _, want := range []string{"schema is required", "parent must be a positive id"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestImportConfig_Window(t *testing.T) {
	tests := []struct {
		name      string
		numRows   int
		batchSize int
		batch     int
		want      BatchWindow
	}{
		{"first batch", 10, 3, 0, BatchWindow{2, 4}},
		{"middle batch", 10, 3, 1, BatchWindow{5, 7}},
		{"last partial batch", 10, 3, 3, BatchWindow{11, 11}},
		{"past the end", 10, 3, 4, BatchWindow{14, 11}},
		{"exact fit", 6, 3, 1, BatchWindow{5, 7}},
		{"unbatched", 10, 0, 0, BatchWindow{2, 11}},
		{"unbatched past the end", 10, 0, 1, BatchWindow{12, 11}},
		{"no rows", 0, 3, 0, BatchWindow{2, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &ImportConfig{NumRows: tt.numRows, BatchSize: tt.batchSize}
			c.NumBatches = batchCount(tt.numRows, tt.batchSize)
			if got := c.Window(tt.batch); got != tt.want {
				t.Errorf("Window(%d) = %+v, want %+v", tt.batch, got, tt.want)
			}
		})
	}
}

// Every data row lies in exactly one window, and windows appear in order.
func TestImportConfig_WindowsPartitionRows(t *testing.T) {
	for numRows := 0; numRows <= 25; numRows++ {
		for batchSize := 0; batchSize <= 7; batchSize++ {
			c := &ImportConfig{NumRows: numRows, BatchSize: batchSize}
			c.NumBatches = batchCount(numRows, batchSize)

			seen := make(map[int]int)
			prevStop := 1
			for b := 0; b < c.NumBatches; b++ {
				w := c.Window(b)
				if !w.Empty() && w.RowStart != prevStop+1 {
					t.Fatalf("rows=%d size=%d batch %d starts at %d, want %d", numRows, batchSize, b, w.RowStart, prevStop+1)
				}
				for line := w.RowStart; line <= w.RowStop; line++ {
					seen[line]++
				}
				if !w.Empty() {
					prevStop = w.RowStop
				}
			}
			for line := 2; line <= numRows+1; line++ {
				if seen[line] != 1 {
					t.Fatalf("rows=%d size=%d: line %d covered %d times", numRows, batchSize, line, seen[line])
				}
			}
			if !c.Window(c.NumBatches).Empty() && batchSize > 0 {
				t.Fatalf("rows=%d size=%d: window at NumBatches not empty", numRows, batchSize)
			}
		}
	}
}

func TestBatchCount(t *testing.T) {
	tests := []struct {
		rows, size, want int
	}{
		{0, 0, 1},
		{10, 0, 1},
		{0, 5, 0},
		{1, 5, 1},
		{5, 5, 1},
		{6, 5, 2},
		{11, 5, 3},
	}
	for _, tt := range tests {
		if got := batchCount(tt.rows, tt.size); got != tt.want {
			t.Errorf("batchCount(%d, %d) = %d, want %d", tt.rows, tt.size, got, tt.want)
		}
	}
}

func TestImportConfig_CheckBatchIndex(t *testing.T) {
	c := &ImportConfig{NumBatches: 3}
	for _, start := range []int{0, 1, 2, 3} {
		if err := c.CheckBatchIndex(start); err != nil {
			t.Errorf("CheckBatchIndex(%d) error = %v", start, err)
		}
	}
	for _, start := range []int{-1, 4, 100} {
		if err := c.CheckBatchIndex(start); !errors.Is(err, ErrStartOutOfRange) {
			t.Errorf("CheckBatchIndex(%d) error = %v, want ErrStartOutOfRange", start, err)
		}
	}
}

func TestImportConfig_ApplyAnalysis(t *testing.T) {
	c := &ImportConfig{BatchSize: 2}
	c.ApplyAnalysis(&Analysis{
		NumAllRows:   6,
		NumEmptyRows: 1,
		Header:       []string{"name"},
		BatchOffsets: []int64{5, 9, 13},
	})

	if c.NumRows != 5 || c.NumDataRows != 4 || c.NumBatches != 3 {
		t.Errorf("NumRows, NumDataRows, NumBatches = %d, %d, %d; want 5, 4, 3", c.NumRows, c.NumDataRows, c.NumBatches)
	}
	if got := c.batchOffset(1); got != 9 {
		t.Errorf("batchOffset(1) = %d, want 9", got)
	}
	if got := c.batchOffset(3); got != 0 {
		t.Errorf("batchOffset(3) = %d, want 0", got)
	}
}
