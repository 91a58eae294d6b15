package reporter

import (
	"encoding/json"
	"io"

	"batchrun/pkg/core"
)

type JSONReporter struct {
	Writer  io.Writer
	Pretty  bool
	Compact bool
}

func (r JSONReporter) Report(result core.BatchResult) error {
	encoder := json.NewEncoder(r.Writer)
	if r.Pretty && !r.Compact {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(result)
}
