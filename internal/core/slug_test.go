package core

import (
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Ada Lovelace", "ada-lovelace"},
		{"  Padded  ", "padded"},
		{"Crème Brûlée", "creme-brulee"},
		{"Straße", "strasse"},
		{"Ærøskøbing", "aeroskobing"},
		{"Łódź", "lodz"},
		{"a -- b", "a-b"},
		{"--leading and trailing--", "leading-and-trailing"},
		{"Q3 2024 Report", "q3-2024-report"},
		{"!!!", ""},
		{"", ""},
		{"日本語", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Slugify(tt.input); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSlugify_Truncates(t *testing.T) {
	got := Slugify(strings.Repeat("ab ", 100))
	if len(got) > MaxNameLength {
		t.Errorf("len = %d, want <= %d", len(got), MaxNameLength)
	}
	if strings.HasSuffix(got, "-") {
		t.Errorf("truncated slug %q ends with '-'", got)
	}
}
