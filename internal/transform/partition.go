package transform

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// WriteDay serializes one day's bucket as gzip-compressed newline-delimited
// JSON at {outDir}/{year}/{YYYY-MM-DD}.json.gz. Empty buckets still produce
// a (valid, empty) file so downstream consumers see one file per day.
// Record order is input-arrival order. The same bucket written twice yields
// byte-identical decompressed content at the same path.
func WriteDay(records []Record, day time.Time, outDir string) (string, error) {
	yearDir := filepath.Join(outDir, strconv.Itoa(day.Year()))
	if err := os.MkdirAll(yearDir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", yearDir, err)
	}
	path := filepath.Join(yearDir, day.Format(dayLayout)+".json.gz")
	if err := writeNDJSON(path, records); err != nil {
		return "", err
	}
	return path, nil
}

// WriteMerged writes the whole joined stream for one day as a single
// {outDir}/{YYYY-MM-DD}.json.gz file (the daily-merge output).
func WriteMerged(records []Record, day time.Time, outDir string) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", outDir, err)
	}
	path := filepath.Join(outDir, day.Format(dayLayout)+".json.gz")
	if err := writeNDJSON(path, records); err != nil {
		return "", err
	}
	return path, nil
}

// writeNDJSON writes to a temporary file in the destination directory and
// renames it into place, so a failure mid-write never leaves a truncated
// file visible to downstream readers.
func writeNDJSON(path string, records []Record) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	gz, err := gzip.NewWriterLevel(tmp, gzip.BestCompression)
	if err != nil {
		tmp.Close()
		return err
	}
	enc := json.NewEncoder(gz)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			gz.Close()
			tmp.Close()
			return fmt.Errorf("encode record for %s: %w", path, err)
		}
	}
	if err := gz.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), path)
}
