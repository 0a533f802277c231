package core

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Registry holds the schemas records can be imported into.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]Schema
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]Schema)}
}

// Register validates and adds a schema.
// Returns an error if a schema with the same id is already registered.
func (r *Registry) Register(s Schema) error {
	if err := s.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.schemas[s.ID]; exists {
		return fmt.Errorf("schema already registered: %s", s.ID)
	}
	r.schemas[s.ID] = s
	return nil
}

// MustRegister is Register for static definitions; it panics on error.
func (r *Registry) MustRegister(s Schema) {
	if err := r.Register(s); err != nil {
		panic(err)
	}
}

// Get returns a schema by id.
// Returns false if not found.
func (r *Registry) Get(id string) (Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.schemas[id]
	return s, ok
}

// All returns all registered schemas sorted by id.
func (r *Registry) All() []Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Schema, 0, len(r.schemas))
	for _, s := range r.schemas {
		result = append(result, s)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result
}

// Count returns the number of registered schemas.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.schemas)
}

// schemaFile is the on-disk layout of a schema definition file.
type schemaFile struct {
	Schemas []Schema `yaml:"schemas"`
}

// LoadSchemas reads a YAML schema file and registers every schema in it.
func (r *Registry) LoadSchemas(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read schema file: %w", err)
	}
	return r.LoadSchemaYAML(data)
}

// LoadSchemaYAML registers the schemas in a YAML document.
func (r *Registry) LoadSchemaYAML(data []byte) error {
	var file schemaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse schema file: %w", err)
	}
	if len(file.Schemas) == 0 {
		return fmt.Errorf("schema file defines no schemas")
	}

	for _, s := range file.Schemas {
		if err := r.Register(s); err != nil {
			return err
		}
	}
	return nil
}
