package model

import "testing"

func TestModuleID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"src/main.tsx", "/src/main.tsx"},
		{"/src/main.tsx", "/src/main.tsx"},
		{`src\ui\Dialog.tsx`, "/src/ui/Dialog.tsx"},
		{"index.html", "/index.html"},
	}
	for _, tt := range tests {
		if got := ModuleID(tt.in); got != tt.want {
			t.Errorf("ModuleID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStripQueryAndPaths(t *testing.T) {
	t.Parallel()

	id := "/src/data/pokemon.json?raw"
	if got := StripQuery(id); got != "/src/data/pokemon.json" {
		t.Errorf("StripQuery = %q", got)
	}
	if got := RelPath(id); got != "src/data/pokemon.json" {
		t.Errorf("RelPath = %q", got)
	}
	if got := Base(id); got != "pokemon.json" {
		t.Errorf("Base = %q", got)
	}
	if got := StripQuery("/src/main.tsx"); got != "/src/main.tsx" {
		t.Errorf("StripQuery without query = %q", got)
	}
}

func TestEntryIsAPI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		entry Entry
		want  bool
	}{
		{Entry{Name: "apiStrength", Path: "api/strength.html"}, true},
		{Entry{Name: "strength", Path: "api/strength.html"}, true},
		{Entry{Name: "apiPreview", Path: "preview.html"}, true},
		{Entry{Name: "reserchEn", Path: "index.html"}, false},
		{Entry{Name: "ivJa", Path: "iv/ja.html"}, false},
	}
	for _, tt := range tests {
		if got := tt.entry.IsAPI(); got != tt.want {
			t.Errorf("%+v.IsAPI() = %v, want %v", tt.entry, got, tt.want)
		}
	}
	if got := (Entry{Path: "api/strength.html"}).ID(); got != "/api/strength.html" {
		t.Errorf("ID = %q", got)
	}
}
