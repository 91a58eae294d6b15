package input

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"batchrun/pkg/core"
)

// DelimitedOptions configures a delimited-text parser per §6: configurable
// field separator, header presence, and empty-line skipping. The quote
// character is always the double quote and is not configurable.
type DelimitedOptions struct {
	Path          string
	Mapping       FieldMapping
	Separator     rune
	HasHeader     bool
	SkipEmptyLine bool
}

// DelimitedParser parses a delimited-text file into rows.
type DelimitedParser struct {
	opts DelimitedOptions
}

func NewDelimitedParser(opts DelimitedOptions) *DelimitedParser {
	if opts.Separator == 0 {
		opts.Separator = ','
	}
	return &DelimitedParser{opts: opts}
}

// Rows returns the file's records as rows, grounded on the teacher's
// bufio-based streaming reads but collecting into a bulk slice, matching
// §6's "finite ordered sequence" framing.
func (p *DelimitedParser) Rows(ctx context.Context) ([]core.Row, error) {
	f, err := os.Open(p.opts.Path)
	if err != nil {
		return nil, fmt.Errorf("input: open delimited source: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = p.opts.Separator
	reader.FieldsPerRecord = -1

	var header []string
	var rows []core.Row
	index := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("input: read delimited record: %w", err)
		}
		if p.opts.SkipEmptyLine && len(record) == 1 && record[0] == "" {
			continue
		}
		if header == nil && p.opts.HasHeader {
			header = record
			continue
		}

		fields := make(map[string]string, len(record))
		for i, v := range record {
			key := fmt.Sprintf("col_%d", i)
			if header != nil && i < len(header) {
				key = header[i]
			}
			fields[key] = v
		}
		rows = append(rows, buildRow(index, fields, p.opts.Mapping))
		index++
	}

	return rows, nil
}
