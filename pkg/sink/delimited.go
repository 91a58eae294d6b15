package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"batchrun/pkg/core"
)

// DelimitedConfig configures DelimitedSink.
type DelimitedConfig struct {
	Path             string
	AppendToExisting bool
	FlattenOutcomes  bool
	Filter           Filter
	Separator        rune
}

// DelimitedSink streams RowResults to a delimited-text file, one record per
// row, with a header row written exactly once.
type DelimitedSink struct {
	cfg DelimitedConfig

	file    *os.File
	writer  *csv.Writer
	header  []string
	skipHdr bool
}

func NewDelimitedSink(cfg DelimitedConfig) *DelimitedSink {
	return &DelimitedSink{cfg: cfg}
}

// Initialize prepares the destination: append mode against an existing file
// skips header emission; otherwise the file is truncated.
func (s *DelimitedSink) Initialize(ctx context.Context) error {
	existed := false
	if s.cfg.AppendToExisting {
		if _, err := os.Stat(s.cfg.Path); err == nil {
			existed = true
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if s.cfg.AppendToExisting {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(s.cfg.Path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("sink: open delimited destination: %w", err)
	}
	s.file = f
	s.writer = csv.NewWriter(f)
	if s.cfg.Separator != 0 {
		s.writer.Comma = s.cfg.Separator
	}
	s.skipHdr = existed
	return nil
}

// ExportResult writes one projected row, emitting the header first if this
// is the first non-appended record.
func (s *DelimitedSink) ExportResult(ctx context.Context, result core.RowResult) error {
	kvs, err := s.projectRow(result)
	if err != nil {
		return err
	}

	if s.header == nil {
		s.header = make([]string, len(kvs))
		for i, kv := range kvs {
			s.header[i] = kv.Key
		}
		if !s.skipHdr {
			if err := s.writer.Write(s.header); err != nil {
				return fmt.Errorf("sink: write header: %w", err)
			}
		}
	}

	record := make([]string, len(kvs))
	for i, kv := range kvs {
		record[i] = fmt.Sprintf("%v", kv.Value)
	}
	if err := s.writer.Write(record); err != nil {
		return fmt.Errorf("sink: write record: %w", err)
	}
	s.writer.Flush()
	return s.writer.Error()
}

func (s *DelimitedSink) projectRow(result core.RowResult) ([]KV, error) {
	if s.cfg.FlattenOutcomes || len(result.Outcomes) <= 1 {
		return project(result, s.cfg.Filter), nil
	}
	kvs := project(result, s.cfg.Filter)
	blob, err := resultsAsJSON(result.Outcomes)
	if err != nil {
		return nil, err
	}
	filtered := kvs[:0]
	for _, kv := range kvs {
		if len(kv.Key) >= 4 && kv.Key[:4] == "eval" {
			continue
		}
		filtered = append(filtered, kv)
	}
	filtered = append(filtered, KV{Key: "results", Value: blob})
	return filtered, nil
}

// Finalize closes the file. Delimited destinations have no closing marker.
func (s *DelimitedSink) Finalize(ctx context.Context) error {
	if s.writer != nil {
		s.writer.Flush()
	}
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}
