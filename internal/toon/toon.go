// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/phobologic/chunkplan/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts a Plan into TOON format.
func Encode(p *model.Plan) string {
	var parts []string

	parts = append(parts, field("project", p.Project))
	parts = append(parts, field("base", p.Base))
	parts = append(parts, field("strategy", p.Strategy))
	parts = append(parts, field("source", p.Source))

	var entryRows [][]any
	for i := range p.Entries {
		e := &p.Entries[i]
		entryRows = append(entryRows, []any{e.Name, e.Source, e.API, e.Output, e.Document})
	}
	parts = append(parts, formatTabular("entries", []string{"name", "source", "api", "output", "document"}, entryRows))

	var groupRows [][]any
	for i := range p.Groups {
		g := &p.Groups[i]
		groupRows = append(groupRows, []any{g.Group, g.Modules, g.API, g.File})
	}
	parts = append(parts, formatTabular("groups", []string{"group", "modules", "api", "file"}, groupRows))

	var moduleRows [][]any
	for i := range p.Modules {
		m := &p.Modules[i]
		moduleRows = append(moduleRows, []any{m.ID, m.Group, m.API, m.Rank})
	}
	parts = append(parts, formatTabular("modules", []string{"id", "group", "api", "rank"}, moduleRows))

	if len(p.Imports) > 0 {
		var importRows [][]any
		for i := range p.Imports {
			importRows = append(importRows, []any{p.Imports[i].From, p.Imports[i].To})
		}
		parts = append(parts, formatTabular("imports", []string{"from", "to"}, importRows))
	}

	return strings.Join(parts, "\n")
}

func field(name, value string) string {
	return fmt.Sprintf("%s: %s", name, encodeValue(value))
}

func formatTabular(name string, columns []string, rows [][]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeCell(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

// encodeCell renders booleans and numbers as bare literals and everything else
// as a string value.
func encodeCell(cell any) string {
	switch v := cell.(type) {
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case float64:
		return fmt.Sprintf("%.4f", v)
	case string:
		return encodeValue(v)
	default:
		return encodeValue(fmt.Sprint(v))
	}
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
