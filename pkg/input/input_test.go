package input_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"batchrun/pkg/input"

	"github.com/stretchr/testify/require"
)

func TestDelimitedParserMapsHeaderColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.csv")
	require.NoError(t, os.WriteFile(path, []byte("candidate_text,reference\nhello,world\nfoo,bar\n"), 0o644))

	p := input.NewDelimitedParser(input.DelimitedOptions{Path: path, HasHeader: true})
	rows, err := p.Rows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "hello", rows[0].CandidateText)
	require.Equal(t, "world", rows[0].Reference)
	require.Equal(t, "row-0", rows[0].ID)
	require.Equal(t, 1, rows[1].Index)
}

func TestDelimitedParserWithoutHeaderUsesPositionalColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.csv")
	require.NoError(t, os.WriteFile(path, []byte("hello,world\nfoo,bar\n"), 0o644))

	p := input.NewDelimitedParser(input.DelimitedOptions{Path: path})
	rows, err := p.Rows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "hello", rows[0].Fields["col_0"])
	require.Equal(t, "bar", rows[1].Fields["col_1"])
}

func TestStructuredParserResolvesRootArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"candidate_text":"a","topic":"science"},{"candidate_text":"b"}]`), 0o644))

	p := input.NewStructuredParser(input.StructuredOptions{Path: path})
	rows, err := p.Rows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "a", rows[0].CandidateText)
	require.Equal(t, "science", rows[0].Fields["topic"])
}

func TestStructuredParserResolvesDottedPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"data":{"items":[{"candidate_text":"a"}]}}`), 0o644))

	p := input.NewStructuredParser(input.StructuredOptions{Path: path, ArrayPath: "data.items"})
	rows, err := p.Rows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "a", rows[0].CandidateText)
}

func TestStructuredParserJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"candidate_text\":\"a\"}\n{\"candidate_text\":\"b\"}\n"), 0o644))

	p := input.NewStructuredParser(input.StructuredOptions{Path: path, JSONLines: true})
	rows, err := p.Rows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestResolveAutoDetectsByExtension(t *testing.T) {
	p, err := input.Resolve("data.csv", "auto", input.FieldMapping{}, input.DelimitedOptions{})
	require.NoError(t, err)
	require.IsType(t, &input.DelimitedParser{}, p)

	p, err = input.Resolve("data.json", "auto", input.FieldMapping{}, input.DelimitedOptions{})
	require.NoError(t, err)
	require.IsType(t, &input.StructuredParser{}, p)
}

func TestResolveRejectsUnknownFormat(t *testing.T) {
	_, err := input.Resolve("data.bin", "auto", input.FieldMapping{}, input.DelimitedOptions{})
	require.Error(t, err)
}
