package input

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"batchrun/pkg/core"
)

var errRootNotArray = errors.New("input: document root is not an array and no array path was given")

// StructuredOptions configures a structured-document parser per §6: the
// root is either an array, or a dotted path resolves to an array, each
// element a keyed aggregate. JSONLines selects newline-delimited records
// instead of a single JSON document.
type StructuredOptions struct {
	Path      string
	Mapping   FieldMapping
	ArrayPath string
	JSONLines bool
}

// StructuredParser parses a JSON or JSON-Lines document into rows.
type StructuredParser struct {
	opts StructuredOptions
}

func NewStructuredParser(opts StructuredOptions) *StructuredParser {
	return &StructuredParser{opts: opts}
}

func (p *StructuredParser) Rows(ctx context.Context) ([]core.Row, error) {
	if p.opts.JSONLines {
		return p.parseLines(ctx)
	}
	return p.parseDocument(ctx)
}

func (p *StructuredParser) parseDocument(ctx context.Context) ([]core.Row, error) {
	data, err := os.ReadFile(p.opts.Path)
	if err != nil {
		return nil, fmt.Errorf("input: read structured source: %w", err)
	}

	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("input: parse structured source: %w", err)
	}

	elements, err := resolveArray(root, p.opts.ArrayPath)
	if err != nil {
		return nil, err
	}

	rows := make([]core.Row, 0, len(elements))
	for i, el := range elements {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		obj, ok := el.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("input: structured element %d is not a keyed aggregate", i)
		}
		rows = append(rows, buildRow(i, stringify(obj), p.opts.Mapping))
	}
	return rows, nil
}

func (p *StructuredParser) parseLines(ctx context.Context) ([]core.Row, error) {
	f, err := os.Open(p.opts.Path)
	if err != nil {
		return nil, fmt.Errorf("input: open structured source: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, 1024*1024)

	var rows []core.Row
	index := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			return nil, fmt.Errorf("input: parse line %d: %w", index, err)
		}
		rows = append(rows, buildRow(index, stringify(obj), p.opts.Mapping))
		index++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("input: scan structured source: %w", err)
	}
	return rows, nil
}

// resolveArray returns root itself if it is an array, or walks a dotted path
// to find one, per §6.
func resolveArray(root any, path string) ([]any, error) {
	if path == "" {
		if arr, ok := root.([]any); ok {
			return arr, nil
		}
		return nil, errRootNotArray
	}

	current := root
	for _, segment := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("input: path segment %q is not a keyed aggregate", segment)
		}
		next, ok := obj[segment]
		if !ok {
			return nil, fmt.Errorf("input: path segment %q not found", segment)
		}
		current = next
	}
	arr, ok := current.([]any)
	if !ok {
		return nil, fmt.Errorf("input: resolved path %q is not an array", path)
	}
	return arr, nil
}

func stringify(obj map[string]any) map[string]string {
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		switch vv := v.(type) {
		case string:
			out[k] = vv
		case nil:
			out[k] = ""
		default:
			b, _ := json.Marshal(vv)
			out[k] = string(b)
		}
	}
	return out
}
