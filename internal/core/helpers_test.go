package core

import (
	"os"
	"path/filepath"
	"testing"
)

// writeSource writes content to a temp file and returns its path.
func writeSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func companySchema() Schema {
	return Schema{
		ID: "company",
		Fields: []FieldSpec{
			{Name: "title", Type: FieldTitle},
			{Name: "website", Type: FieldText},
		},
	}
}

func contactSchema() Schema {
	return Schema{
		ID: "contact",
		Fields: []FieldSpec{
			{Name: "title", Type: FieldTitle, Label: "Full Name"},
			{Name: "email", Type: FieldText},
			{Name: "age", Type: FieldNumber},
			{Name: "birthday", Type: FieldDate},
			{Name: "active", Type: FieldBool},
			{Name: "status", Type: FieldOption, Options: []string{"Lead", "Customer"}},
			{Name: "password", Type: FieldPassword},
			{Name: "photo", Type: FieldAttachment, MaxItems: 1},
			{Name: "documents", Type: FieldAttachment},
			{Name: "company", Type: FieldReference, RefSchemaID: "company", CreateParentID: 1, CreateSchemaID: "company"},
		},
	}
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	reg.MustRegister(companySchema())
	reg.MustRegister(contactSchema())
	return reg
}

// analyzedConfig builds a validated config for content, analyzed the way
// the service does it.
func analyzedConfig(t *testing.T, content string, columnFields []string, policy DuplicatePolicy, batchSize, maxRows int) *ImportConfig {
	t.Helper()
	cfg := &ImportConfig{
		ID:           "test-import",
		SchemaID:     "contact",
		ParentID:     10,
		FilePath:     writeSource(t, content),
		Delimiter:    ',',
		Enclosure:    '"',
		Policy:       policy,
		ColumnFields: columnFields,
		BatchSize:    batchSize,
		MaxRows:      maxRows,
	}
	a, err := CSVAnalyzer{Delimiter: ',', Enclosure: '"', BatchSize: batchSize}.Analyze(cfg.FilePath)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	cfg.ApplyAnalysis(a)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	return cfg
}
