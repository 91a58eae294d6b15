package state

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"time"

	"batchrun/pkg/core"
)

// writeBundle persists a snapshot as a zip bundle: header.json plus one
// results/<n>.json per accumulated row. The raw zip.FileHeader/CRC32 writing
// is adapted from the teacher's Inspect-AI-compatible eval log writer,
// repurposed here for a resumable batch snapshot instead of an external log
// format.
func writeBundle(path string, snapshot core.StateSnapshot) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("state: create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.zip.tmp")
	if err != nil {
		return fmt.Errorf("state: create temp bundle: %w", err)
	}
	tmpPath := tmp.Name()

	zw := zip.NewWriter(tmp)

	header := jsonSnapshot{
		BatchID:          snapshot.BatchID,
		StartedAt:        snapshot.StartedAt.UnixMilli(),
		LastUpdateTime:   snapshot.LastUpdateTime.UnixMilli(),
		InputConfig:      snapshot.InputConfig,
		EvaluatorNames:   snapshot.EvaluatorNames,
		TotalRows:        snapshot.TotalRows,
		ProcessedIndices: snapshot.ProcessedIndices(),
		LatestProgress:   snapshot.LatestProgress,
	}
	if err := writeZipJSON(zw, "header.json", header); err != nil {
		zw.Close()
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}

	for i, result := range snapshot.Results {
		name := fmt.Sprintf("results/%d.json", i)
		if err := writeZipJSON(zw, name, result); err != nil {
			zw.Close()
			tmp.Close()
			os.Remove(tmpPath)
			return err
		}
	}

	if err := zw.Close(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("state: close zip writer: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("state: close temp bundle: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("state: rename temp bundle: %w", err)
	}
	return nil
}

// writeZipJSON writes data as one raw, uncompressed (Store method) zip entry
// with an explicit CRC32, avoiding the streaming data-descriptor bit so
// readers can trust the header's size/checksum fields up front.
func writeZipJSON(w *zip.Writer, name string, data any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("state: encode %s: %w", name, err)
	}

	payload := buf.Bytes()
	size := uint64(len(payload))
	fh := &zip.FileHeader{
		Name:               name,
		Method:             zip.Store,
		UncompressedSize64: size,
		CompressedSize64:   size,
		UncompressedSize:   uint32(size),
		CompressedSize:     uint32(size),
		CRC32:              crc32.ChecksumIEEE(payload),
	}
	fh.SetModTime(time.Unix(0, 0))
	fh.Flags &^= 0x8

	entry, err := w.CreateRaw(fh)
	if err != nil {
		return fmt.Errorf("state: create zip entry %s: %w", name, err)
	}
	if _, err := entry.Write(payload); err != nil {
		return fmt.Errorf("state: write zip entry %s: %w", name, err)
	}
	return nil
}

func readBundle(path string) (core.StateSnapshot, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return core.StateSnapshot{}, fmt.Errorf("state: open bundle: %w", err)
	}
	defer zr.Close()

	var header jsonSnapshot
	results := make(map[int]core.RowResult)

	for _, f := range zr.File {
		if f.Name == "header.json" {
			if err := readZipJSON(f, &header); err != nil {
				return core.StateSnapshot{}, err
			}
			continue
		}
		var idx int
		if n, err := fmt.Sscanf(f.Name, "results/%d.json", &idx); err != nil || n != 1 {
			continue
		}
		var result core.RowResult
		if err := readZipJSON(f, &result); err != nil {
			return core.StateSnapshot{}, err
		}
		results[idx] = result
	}

	ordered := make([]core.RowResult, 0, len(results))
	processed := make(map[int]struct{}, len(header.ProcessedIndices))
	for _, idx := range header.ProcessedIndices {
		processed[idx] = struct{}{}
	}
	for i := 0; i < len(results); i++ {
		if r, ok := results[i]; ok {
			ordered = append(ordered, r)
		}
	}

	return core.StateSnapshot{
		BatchID:        header.BatchID,
		StartedAt:      timeFromUnixMilli(header.StartedAt),
		LastUpdateTime: timeFromUnixMilli(header.LastUpdateTime),
		InputConfig:    header.InputConfig,
		EvaluatorNames: header.EvaluatorNames,
		TotalRows:      header.TotalRows,
		ProcessedRows:  processed,
		Results:        ordered,
		LatestProgress: header.LatestProgress,
	}, nil
}

func readZipJSON(f *zip.File, out any) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("state: open zip entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("state: read zip entry %s: %w", f.Name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("state: unmarshal zip entry %s: %w", f.Name, err)
	}
	return nil
}
