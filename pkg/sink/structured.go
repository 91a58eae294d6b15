package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"batchrun/pkg/core"
)

// StructuredConfig configures StructuredSink.
type StructuredConfig struct {
	Path   string
	Filter Filter
}

// StructuredSink streams RowResults as a JSON array, one comma-separated
// projection at a time between an opening and closing bracket.
type StructuredSink struct {
	cfg StructuredConfig

	file    *os.File
	writer  *bufio.Writer
	wroteAny bool
}

func NewStructuredSink(cfg StructuredConfig) *StructuredSink {
	return &StructuredSink{cfg: cfg}
}

// Initialize truncates the destination and writes the opening bracket.
func (s *StructuredSink) Initialize(ctx context.Context) error {
	f, err := os.OpenFile(s.cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("sink: open structured destination: %w", err)
	}
	s.file = f
	s.writer = bufio.NewWriter(f)
	if _, err := s.writer.WriteString("["); err != nil {
		return fmt.Errorf("sink: write opening bracket: %w", err)
	}
	return nil
}

// ExportResult writes one projection, preceded by a comma unless it is the
// first element.
func (s *StructuredSink) ExportResult(ctx context.Context, result core.RowResult) error {
	kvs := project(result, s.cfg.Filter)
	obj := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		obj[kv.Key] = kv.Value
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("sink: marshal projection: %w", err)
	}

	if s.wroteAny {
		if _, err := s.writer.WriteString(","); err != nil {
			return fmt.Errorf("sink: write separator: %w", err)
		}
	}
	s.wroteAny = true
	if _, err := s.writer.Write(b); err != nil {
		return fmt.Errorf("sink: write projection: %w", err)
	}
	return s.writer.Flush()
}

// Finalize writes the closing bracket and closes the file.
func (s *StructuredSink) Finalize(ctx context.Context) error {
	if s.writer != nil {
		if _, err := s.writer.WriteString("]"); err != nil {
			return fmt.Errorf("sink: write closing bracket: %w", err)
		}
		if err := s.writer.Flush(); err != nil {
			return err
		}
	}
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}
