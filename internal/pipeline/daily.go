package pipeline

import (
	"context"
	"fmt"
	"log"
	"path"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/GlobalFishingWatch/pipe-vms-brazil/internal/fetch"
	"github.com/GlobalFishingWatch/pipe-vms-brazil/internal/metrics"
	"github.com/GlobalFishingWatch/pipe-vms-brazil/internal/transform"
)

// FetchDay pulls the device directory and one day of positions from the
// API, stages both locally as gzip JSON, and uploads them under
// {remotePrefix}/devices/ and {remotePrefix}/messages/.
func (r *Runner) FetchDay(ctx context.Context, day time.Time, workDir, remotePrefix string) (Result, error) {
	timer := prometheus.NewTimer(metrics.RunDurationSeconds.WithLabelValues("fetch"))
	defer timer.ObserveDuration()
	metrics.CurrentRunsGauge.Inc()
	defer metrics.CurrentRunsGauge.Dec()

	res := newResult("fetch")
	res.Date = day.Format("2006-01-02")
	log.Printf("run %s: fetching day %s", res.RunID, res.Date)

	collector := &fetch.Collector{Base: r.Cfg.EndpointBase, Token: r.Cfg.Token, Fetcher: r.Fetcher}
	devicesPath, messagesPath, err := collector.Collect(ctx, day, workDir)
	if err != nil {
		metrics.RunsTotal.WithLabelValues("fetch", "failure").Inc()
		return res, err
	}

	if _, err := r.Store.UploadGlob(ctx, devicesPath, path.Join(remotePrefix, "devices")); err != nil {
		metrics.RunsTotal.WithLabelValues("fetch", "failure").Inc()
		return res, err
	}
	if _, err := r.Store.UploadGlob(ctx, messagesPath, path.Join(remotePrefix, "messages")); err != nil {
		metrics.RunsTotal.WithLabelValues("fetch", "failure").Inc()
		return res, err
	}

	res.WroteOutput = true
	res.FinishedAt = time.Now().UTC()
	if err := r.writeManifest(ctx, workDir, res, true); err != nil {
		metrics.RunsTotal.WithLabelValues("fetch", "failure").Inc()
		return res, err
	}
	metrics.RunsTotal.WithLabelValues("fetch", "success").Inc()
	log.Printf("run %s done in %s", res.RunID, res.FinishedAt.Sub(res.StartedAt))
	return res, nil
}

// PrepareDay downloads the staged collections for one day, joins messages
// to devices, and writes the merged day file, uploading it under
// remoteOut. The two staged objects are expected at
// {remoteIn}/devices/{date}.json.gz and {remoteIn}/messages/{date}.json.gz.
func (r *Runner) PrepareDay(ctx context.Context, day time.Time, remoteIn, remoteOut, workDir string) (Result, error) {
	timer := prometheus.NewTimer(metrics.RunDurationSeconds.WithLabelValues("prepare"))
	defer timer.ObserveDuration()
	metrics.CurrentRunsGauge.Inc()
	defer metrics.CurrentRunsGauge.Dec()

	res := newResult("prepare")
	res.Date = day.Format("2006-01-02")
	log.Printf("run %s: preparing day %s", res.RunID, res.Date)

	fail := func(err error) (Result, error) {
		metrics.RunsTotal.WithLabelValues("prepare", "failure").Inc()
		return res, err
	}

	name := res.Date + ".json.gz"
	devicesPath := filepath.Join(workDir, "devices_"+name)
	messagesPath := filepath.Join(workDir, "messages_"+name)
	if err := r.Store.Download(ctx, path.Join(remoteIn, "devices", name), devicesPath); err != nil {
		return fail(err)
	}
	if err := r.Store.Download(ctx, path.Join(remoteIn, "messages", name), messagesPath); err != nil {
		return fail(err)
	}

	records, stats, err := r.join(devicesPath, messagesPath, &res)
	if err != nil {
		return fail(err)
	}

	merged, err := transform.WriteMerged(records, day, workDir)
	if err != nil {
		return fail(err)
	}
	metrics.RowsWrittenTotal.WithLabelValues(fmt.Sprintf("%04d", day.Year())).Add(float64(len(records)))
	log.Printf("merged %d records (of %d messages, %d orphans) into %s",
		stats.Joined, stats.Messages, stats.Orphans, merged)

	if _, err := r.Store.UploadGlob(ctx, merged, remoteOut); err != nil {
		return fail(err)
	}

	// The day file was published even when the join produced no rows;
	// downstream expects one loaded file per day, so the load job still
	// has to fire.
	res.WroteOutput = true
	res.FinishedAt = time.Now().UTC()
	if err := r.writeManifest(ctx, workDir, res, true); err != nil {
		return fail(err)
	}
	metrics.RunsTotal.WithLabelValues("prepare", "success").Inc()
	log.Printf("run %s done in %s", res.RunID, res.FinishedAt.Sub(res.StartedAt))
	return res, nil
}

// join loads both staged collections and performs the inner join, filling
// the run counts on res.
func (r *Runner) join(devicesPath, messagesPath string, res *Result) ([]transform.Record, transform.Stats, error) {
	devices, err := transform.LoadDevices(devicesPath)
	if err != nil {
		return nil, transform.Stats{}, err
	}
	messages, err := transform.LoadMessages(messagesPath)
	if err != nil {
		return nil, transform.Stats{}, err
	}
	records, stats, err := transform.Join(devices, messages)
	if err != nil {
		return nil, stats, err
	}
	metrics.RowsJoinedTotal.Add(float64(stats.Joined))
	metrics.OrphanMessagesTotal.Add(float64(stats.Orphans))
	res.Devices = stats.Devices
	res.Messages = stats.Messages
	res.Joined = stats.Joined
	res.Orphans = stats.Orphans
	log.Printf("total devices read %d, messages read %d, merged %d, orphans dropped %d",
		stats.Devices, stats.Messages, stats.Joined, stats.Orphans)
	return records, stats, nil
}
