package toon

import (
	"strings"
	"testing"

	"github.com/phobologic/chunkplan/internal/model"
)

func TestEncodeValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", `""`},
		{"simple", "hello", "hello"},
		{"leading space", " hello", `" hello"`},
		{"trailing space", "hello ", `"hello "`},
		{"newline", "a\nb", `"a\nb"`},
		{"tab", "a\tb", `"a\tb"`},
		{"carriage return", "a\rb", `"a\rb"`},
		{"true keyword", "true", `"true"`},
		{"True keyword", "True", `"True"`},
		{"false keyword", "false", `"false"`},
		{"null keyword", "null", `"null"`},
		{"integer", "42", "42"},
		{"negative integer", "-1", "-1"},
		{"float", "3.14", "3.14"},
		{"zero", "0", "0"},
		{"leading zero invalid", "01", "01"},
		{"comma", "a,b", `"a,b"`},
		{"colon", "a:b", `"a:b"`},
		{"quote", `a"b`, `"a\"b"`},
		{"backslash", `a\b`, `"a\\b"`},
		{"bracket", "a[b", `"a[b"`},
		{"brace", "a{b", `"a{b"`},
		{"dash prefix", "-foo", `"-foo"`},
		{"module id", "/src/util/strength.ts", "/src/util/strength.ts"},
		{"scoped package", "/node_modules/@mui/material", "/node_modules/@mui/material"},
		{"query suffix", "/src/data/pokemon.json?raw", "/src/data/pokemon.json?raw"},
		{"group name", "api-i18n-core", "api-i18n-core"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := encodeValue(tt.in)
			if got != tt.want {
				t.Errorf("encodeValue(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEncode(t *testing.T) {
	t.Parallel()

	p := &model.Plan{
		Project:  "pokesleep",
		Base:     "/pokesleep-tool/",
		Strategy: "reachability",
		Source:   "scan",
		Entries: []model.EntryOutput{
			{Name: "reserchEn", Source: "index.html", Output: "assets/reserchEn-1a2b3c4d.js", Document: "index.html"},
			{Name: "apiStrength", Source: "api/strength.html", API: true, Output: "api/apiStrength-5e6f7a8b.js", Document: "api/strength.html"},
		},
		Groups: []model.GroupSummary{
			{Group: "api-util", Modules: 2, API: true, File: "assets/api-util-0011aabb.js"},
			{Group: "react", Modules: 1, File: "assets/react-99ff00ee.js"},
		},
		Modules: []model.Assignment{
			{ID: "/src/util/strength.ts", Group: "api-util", API: true, Rank: 0.5},
			{ID: "/src/main.tsx", Group: model.NoGroup, Rank: 0.25},
		},
		Imports: []model.Import{
			{From: "/src/main.tsx", To: "/src/util/strength.ts"},
		},
	}

	want := []string{
		"project: pokesleep",
		"base: /pokesleep-tool/",
		"strategy: reachability",
		"source: scan",
		"entries[2]{name,source,api,output,document}:",
		"  reserchEn,index.html,false,assets/reserchEn-1a2b3c4d.js,index.html",
		"  apiStrength,api/strength.html,true,api/apiStrength-5e6f7a8b.js,api/strength.html",
		"groups[2]{group,modules,api,file}:",
		"  api-util,2,true,assets/api-util-0011aabb.js",
		"  react,1,false,assets/react-99ff00ee.js",
		"modules[2]{id,group,api,rank}:",
		"  /src/util/strength.ts,api-util,true,0.5000",
		`  /src/main.tsx,"",false,0.2500`,
		"imports[1]{from,to}:",
		"  /src/main.tsx,/src/util/strength.ts",
	}

	lines := strings.Split(Encode(p), "\n")
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(want), strings.Join(lines, "\n"))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestEncodeEmpty(t *testing.T) {
	t.Parallel()

	got := Encode(&model.Plan{Project: "empty"})
	if !strings.Contains(got, "entries[0]{name,source,api,output,document}:") {
		t.Errorf("expected empty entries section, got:\n%s", got)
	}
	if !strings.Contains(got, "modules[0]{id,group,api,rank}:") {
		t.Errorf("expected empty modules section, got:\n%s", got)
	}
	if !strings.Contains(got, `base: ""`) {
		t.Errorf("expected quoted empty base, got:\n%s", got)
	}
	if strings.Contains(got, "imports[") {
		t.Errorf("imports section should be omitted when empty, got:\n%s", got)
	}
}
