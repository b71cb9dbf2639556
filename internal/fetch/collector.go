package fetch

import (
	"compress/gzip"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Collector stages the two raw collections for one day: the full device
// directory and the day's message stream. Each payload is fetched through
// the retry loop first and written to disk exactly once afterwards, so a
// retried attempt can never double-append to a staging file.
type Collector struct {
	Base    string
	Token   string
	Fetcher *Fetcher
}

// Collect fetches both collections and writes them as gzip-compressed JSON
// under outDir. Returned paths are
// {outDir}/devices/{day}.json.gz and {outDir}/messages/{day}.json.gz.
// There is no transactional guarantee across the two fetches: a failure on
// messages leaves the devices file on disk.
func (c *Collector) Collect(ctx context.Context, day time.Time, outDir string) (string, string, error) {
	date := day.Format("2006-01-02")
	devicesPath := filepath.Join(outDir, "devices", date+".json.gz")
	messagesPath := filepath.Join(outDir, "messages", date+".json.gz")

	for _, dir := range []string{filepath.Dir(devicesPath), filepath.Dir(messagesPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", "", fmt.Errorf("create staging dir %s: %w", dir, err)
		}
	}

	devices, err := c.Fetcher.Fetch(ctx, "devices", DevicesURL(c.Base, c.Token))
	if err != nil {
		return "", "", err
	}
	if err := writeGzip(devicesPath, devices); err != nil {
		return "", "", err
	}
	log.Printf("saved devices payload (%d bytes) to %s", len(devices), devicesPath)

	messages, err := c.Fetcher.Fetch(ctx, "messages", MessagesURL(c.Base, c.Token, day))
	if err != nil {
		return "", "", err
	}
	if err := writeGzip(messagesPath, messages); err != nil {
		return "", "", err
	}
	log.Printf("saved messages payload (%d bytes) to %s", len(messages), messagesPath)

	return devicesPath, messagesPath, nil
}

// writeGzip replaces path with the gzip-compressed payload. Truncation, not
// append: reruns for the same day overwrite rather than duplicate.
func writeGzip(path string, payload []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	gz, err := gzip.NewWriterLevel(f, gzip.BestCompression)
	if err != nil {
		f.Close()
		return err
	}
	if _, err := gz.Write(payload); err != nil {
		gz.Close()
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := gz.Close(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}
