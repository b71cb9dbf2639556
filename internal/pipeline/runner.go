package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/GlobalFishingWatch/pipe-vms-brazil/internal/blob"
	"github.com/GlobalFishingWatch/pipe-vms-brazil/internal/config"
	"github.com/GlobalFishingWatch/pipe-vms-brazil/internal/fetch"
)

// Runner wires the pipeline stages together. Every run is atomic at the run
// level: any fatal condition aborts the whole run and nothing downstream is
// triggered.
type Runner struct {
	Cfg     config.Config
	Store   blob.Store
	Fetcher *fetch.Fetcher
}

func NewRunner(cfg config.Config, store blob.Store) *Runner {
	return &Runner{
		Cfg:     cfg,
		Store:   store,
		Fetcher: fetch.NewFetcher(cfg.MaxRetries, cfg.RetryDelay),
	}
}

// Result summarizes one completed run, for logging, the manifest, and the
// downstream load job.
type Result struct {
	RunID       string    `json:"run_id"`
	Mode        string    `json:"mode"`
	Date        string    `json:"date,omitempty"`
	Year        int       `json:"year,omitempty"`
	CutoffDay   string    `json:"cutoff_day,omitempty"`
	Devices     int       `json:"devices"`
	Messages    int       `json:"messages"`
	Joined      int       `json:"joined"`
	Orphans     int       `json:"orphans"`
	DaysWritten int       `json:"days_written"`
	WroteOutput bool      `json:"wrote_output"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

func newResult(mode string) Result {
	return Result{
		RunID:     uuid.NewString(),
		Mode:      mode,
		StartedAt: time.Now().UTC(),
	}
}

// writeManifest stages the run manifest locally and uploads it under
// _runs/{run_id}/ for lineage.
func (r *Runner) writeManifest(ctx context.Context, workDir string, res Result, upload bool) error {
	dir := filepath.Join(workDir, "_runs", res.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, "manifest.json")
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if !upload {
		return nil
	}
	if _, err := r.Store.UploadGlob(ctx, path, "_runs/"+res.RunID); err != nil {
		return fmt.Errorf("upload manifest: %w", err)
	}
	log.Printf("manifest written for run %s", res.RunID)
	return nil
}
