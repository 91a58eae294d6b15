// Package input implements the external row-parser contract of §6: consume a
// path plus format-specific options, yield a finite ordered sequence of rows.
package input

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"batchrun/pkg/core"
)

// Parser is one format's row source; every implementation satisfies
// core.RowSource directly via Rows.
type Parser interface {
	core.RowSource
}

// FieldMapping maps a parsed record's raw key to one of the row's standard
// semantic fields. An empty entry falls back to the field's snake_case name
// (candidate_text, reference, source, prompt, content_type, language); ID has
// no fallback and is synthesized when unmapped. Keys not claimed by a
// standard field become arbitrary named Fields entries.
type FieldMapping struct {
	CandidateText string
	Reference     string
	Source        string
	Prompt        string
	ContentType   string
	Language      string
	ID            string
}

func (m FieldMapping) candidateKey() string {
	if m.CandidateText != "" {
		return m.CandidateText
	}
	return "candidate_text"
}

// Resolve picks a concrete Parser for path, using format when it is not
// "auto"; "auto" resolves by file extension (.csv -> delimited, .json/.jsonl
// -> structured), per §6.
func Resolve(path, format string, mapping FieldMapping, delimitedOpts DelimitedOptions) (Parser, error) {
	resolved := format
	if resolved == "" || resolved == "auto" {
		detected, err := detectFormat(path)
		if err != nil {
			return nil, err
		}
		resolved = detected
	}

	switch resolved {
	case "delimited", "csv":
		delimitedOpts.Path = path
		delimitedOpts.Mapping = mapping
		return NewDelimitedParser(delimitedOpts), nil
	case "structured", "json", "jsonl":
		return NewStructuredParser(StructuredOptions{Path: path, Mapping: mapping, JSONLines: resolved == "jsonl"}), nil
	default:
		return nil, fmt.Errorf("input: unknown format %q", resolved)
	}
}

func detectFormat(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv":
		return "delimited", nil
	case ".json":
		return "structured", nil
	case ".jsonl", ".ndjson":
		return "jsonl", nil
	default:
		return "", errors.New("input: cannot auto-detect format from extension, pass format explicitly")
	}
}

// rowID synthesizes a stable identifier of the form row-<zero-based-index>
// when a record supplies none, per §3.
func rowID(explicit string, index int) string {
	if explicit != "" {
		return explicit
	}
	return fmt.Sprintf("row-%d", index)
}

func buildRow(index int, fields map[string]string, mapping FieldMapping) core.Row {
	row := core.Row{Index: index}
	named := make(map[string]string, len(fields))
	for k, v := range fields {
		named[k] = v
	}

	take := func(want string, dst *string) {
		if want == "" {
			return
		}
		if v, ok := named[want]; ok {
			*dst = v
			delete(named, want)
		}
	}

	key := func(mapped, fallback string) string {
		if mapped != "" {
			return mapped
		}
		return fallback
	}

	take(mapping.candidateKey(), &row.CandidateText)
	take(key(mapping.Reference, "reference"), &row.Reference)
	take(key(mapping.Source, "source"), &row.Source)
	take(key(mapping.Prompt, "prompt"), &row.Prompt)
	take(key(mapping.ContentType, "content_type"), &row.ContentType)
	take(key(mapping.Language, "language"), &row.Language)

	explicitID := ""
	if mapping.ID != "" {
		if v, ok := named[mapping.ID]; ok {
			explicitID = v
			delete(named, mapping.ID)
		}
	}
	row.ID = rowID(explicitID, index)

	if len(named) > 0 {
		row.Fields = named
	}
	return row
}
