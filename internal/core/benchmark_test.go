package core

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// BenchmarkParseNumber measures number parsing, run for every number cell.
func BenchmarkParseNumber(b *testing.B) {
	cells := []string{"123", "-456.78", "$1,234.56", "(123.45)", "1,234,567.89", "€1234.56"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, c := range cells {
			ParseNumber(c)
		}
	}
}

func BenchmarkParseDate(b *testing.B) {
	cells := []string{"2024-01-15", "01/15/2024", "Jan 15, 2024", "20240115", "1/5/24"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, c := range cells {
			ParseDate(c)
		}
	}
}

// BenchmarkCleanCell benchmarks cell cleanup.
func BenchmarkCleanCell(b *testing.B) {
	testCases := []string{
		"simple",
		`  "quoted"  `,
		`="12345"`,
		"'leading",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			CleanCell(tc)
		}
	}
}

func BenchmarkSlugify(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Slugify("Ærøskøbing Straße & Café Nº 5")
	}
}

// ============================================================================
// Parsing Benchmarks
// ============================================================================

// BenchmarkRecordReader measures raw parsing throughput.
func BenchmarkRecordReader(b *testing.B) {
	data := generateTestCSV(10000)
	b.SetBytes(int64(len(data)))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rr := NewRecordReader(bytes.NewReader(data), ',', '"')
		for {
			if _, err := rr.Read(); err == io.EOF {
				break
			} else if err != nil {
				b.Fatal(err)
			}
		}
	}
}

// BenchmarkCSVParsing_Comparison compares against encoding/csv on the same
// input. encoding/csv is faster but cannot change its quote character.
func BenchmarkCSVParsing_Comparison(b *testing.B) {
	data := generateTestCSV(10000)

	b.Run("RecordReader", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			rr := NewRecordReader(bytes.NewReader(data), ',', '"')
			for {
				if _, err := rr.Read(); err != nil {
					break
				}
			}
		}
	})

	b.Run("encoding/csv", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			r := csv.NewReader(bytes.NewReader(data))
			for {
				if _, err := r.Read(); err != nil {
					break
				}
			}
		}
	})
}

func BenchmarkAnalyze(b *testing.B) {
	path := filepath.Join(b.TempDir(), "bench.csv")
	if err := os.WriteFile(path, generateTestCSV(10000), 0o644); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := (CSVAnalyzer{Delimiter: ',', Enclosure: '"', BatchSize: 500}).Analyze(path); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkColumnPlanBuild measures mapping one row into a candidate.
func BenchmarkColumnPlanBuild(b *testing.B) {
	schema := Schema{
		ID: "contact",
		Fields: []FieldSpec{
			{Name: "title", Type: FieldTitle},
			{Name: "email", Type: FieldText},
			{Name: "joined", Type: FieldDate},
			{Name: "amount", Type: FieldNumber},
			{Name: "status", Type: FieldOption, Options: []string{"active", "inactive"}},
		},
	}
	plan, err := NewColumnPlan(schema, []string{"", "title", "email", "joined", "amount", "status"})
	if err != nil {
		b.Fatal(err)
	}
	row := []string{"1001", "John Doe", "john@example.com", "2024-01-15", "$1,234.56", "Active"}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		plan.Build(2, row)
	}
}

// ============================================================================
// Helper Functions
// ============================================================================

// generateTestCSV generates CSV data with the specified number of rows.
func generateTestCSV(rows int) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	// Header
	w.Write([]string{"ID", "Name", "Email", "Date", "Amount", "Status"})

	// Data rows
	for i := 0; i < rows; i++ {
		w.Write([]string{
			strconv.Itoa(1000 + i),
			"John Doe",
			"john@example.com",
			"2024-01-15",
			"$1,234.56",
			"active",
		})
	}
	w.Flush()

	return buf.Bytes()
}
