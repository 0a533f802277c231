package core

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryRecordStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryRecordStore()

	rec := &Record{ParentID: 1, SchemaID: "contact", Name: "ada", Title: "Ada", Fields: map[string]any{"tags": []string{"a"}}}
	if err := s.Create(ctx, rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if rec.ID != 1 || rec.CreatedAt.IsZero() {
		t.Errorf("Create() did not assign id and timestamps: %+v", rec)
	}

	if err := s.Create(ctx, &Record{ParentID: 1, SchemaID: "contact", Name: "ada"}); err == nil {
		t.Error("duplicate Create() expected error")
	}
	if err := s.Create(ctx, &Record{ParentID: 2, SchemaID: "contact", Name: "ada"}); err != nil {
		t.Errorf("Create() under another parent error = %v", err)
	}

	t.Run("copies are isolated", func(t *testing.T) {
		got, _ := s.FindOne(ctx, RecordQuery{ID: rec.ID})
		got.Fields["tags"].([]string)[0] = "mutated"
		got.Title = "mutated"
		again, _ := s.FindOne(ctx, RecordQuery{ID: rec.ID})
		if again.Title != "Ada" || again.Fields["tags"].([]string)[0] != "a" {
			t.Errorf("stored record changed through a copy: %+v", again)
		}
	})

	t.Run("find", func(t *testing.T) {
		tests := []struct {
			name   string
			q      RecordQuery
			wantID int64
		}{
			{"by name", RecordQuery{Name: "ada"}, 1},
			{"by name and parent", RecordQuery{ParentID: 2, Name: "ada"}, 2},
			{"by title", RecordQuery{Title: "Ada"}, 1},
			{"schema mismatch", RecordQuery{ID: 1, SchemaID: "company"}, 0},
			{"unknown id", RecordQuery{ID: 99}, 0},
		}
		for _, tt := range tests {
			got, err := s.FindOne(ctx, tt.q)
			if err != nil {
				t.Fatalf("%s: FindOne() error = %v", tt.name, err)
			}
			var id int64
			if got != nil {
				id = got.ID
			}
			if id != tt.wantID {
				t.Errorf("%s: FindOne() id = %d, want %d", tt.name, id, tt.wantID)
			}
		}

		if _, err := s.FindOne(ctx, RecordQuery{ParentID: 1}); err == nil {
			t.Error("FindOne() without id, name or title expected error")
		}
	})

	t.Run("update", func(t *testing.T) {
		got, _ := s.FindOne(ctx, RecordQuery{ID: 1})
		got.Title = "Ada L."
		got.Fields["email"] = "ada@example.com"
		if err := s.Update(ctx, got); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if err := s.UpdateFields(ctx, 1, map[string]any{"age": 36.0}); err != nil {
			t.Fatalf("UpdateFields() error = %v", err)
		}

		stored, _ := s.FindOne(ctx, RecordQuery{ID: 1})
		if stored.Title != "Ada L." || stored.Fields["email"] != "ada@example.com" || stored.Fields["age"] != 36.0 {
			t.Errorf("stored = %+v", stored)
		}
		if !stored.CreatedAt.Equal(rec.CreatedAt) {
			t.Error("Update() changed CreatedAt")
		}

		if err := s.Update(ctx, &Record{ID: 99}); err == nil {
			t.Error("Update() of unknown record expected error")
		}
		if err := s.UpdateFields(ctx, 99, nil); err == nil {
			t.Error("UpdateFields() of unknown record expected error")
		}
	})

	t.Run("list", func(t *testing.T) {
		if err := s.Create(ctx, &Record{ParentID: 1, SchemaID: "company", Name: "acme"}); err != nil {
			t.Fatal(err)
		}
		all, _ := s.ListByParent(ctx, 1, "")
		contacts, _ := s.ListByParent(ctx, 1, "contact")
		if len(all) != 2 || len(contacts) != 1 || contacts[0].Name != "ada" {
			t.Errorf("ListByParent() all=%d contacts=%v", len(all), contacts)
		}
		if all[0].ID > all[1].ID {
			t.Error("ListByParent() not ordered by id")
		}
	})
}

func TestMemoryConfigStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryConfigStore()

	if _, err := s.Load(ctx, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Load() error = %v, want ErrSessionNotFound", err)
	}

	cfg := &ImportConfig{ID: "a", SchemaID: "contact", NumBatches: 3}
	if err := s.Save(ctx, cfg); err != nil {
		t.Fatal(err)
	}
	cfg.NumBatches = 99

	got, err := s.Load(ctx, "a")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.NumBatches != 3 {
		t.Errorf("NumBatches = %d, want the saved value 3", got.NumBatches)
	}

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(ctx, "a"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second Delete() error = %v, want ErrSessionNotFound", err)
	}
}
