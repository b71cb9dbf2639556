package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/GlobalFishingWatch/pipe-vms-brazil/internal/metrics"
	"github.com/GlobalFishingWatch/pipe-vms-brazil/internal/pipeline"
)

// RunRequest is one pipeline invocation published by the scheduler.
type RunRequest struct {
	Mode       string `json:"mode"` // fetch, prepare, backfill
	Date       string `json:"date,omitempty"`
	Year       int    `json:"year,omitempty"`
	Input      string `json:"input,omitempty"`
	Output     string `json:"output,omitempty"`
	CutoffDay  string `json:"cutoff_day,omitempty"`
	SkipUpload bool   `json:"skip_upload,omitempty"`
}

// Validate checks the request against its mode before any work starts.
func (r *RunRequest) Validate() error {
	switch r.Mode {
	case "fetch", "prepare":
		if _, err := time.Parse("2006-01-02", r.Date); err != nil {
			return fmt.Errorf("mode %s needs date in YYYY-MM-DD, got %q", r.Mode, r.Date)
		}
	case "backfill":
		if r.Year < 2000 || r.Year > 2100 {
			return fmt.Errorf("backfill needs a plausible year, got %d", r.Year)
		}
		if r.Input == "" {
			return fmt.Errorf("backfill needs an input directory")
		}
		if r.CutoffDay != "" {
			if _, err := time.Parse("2006-01-02", r.CutoffDay); err != nil {
				return fmt.Errorf("bad cutoff_day %q", r.CutoffDay)
			}
		}
	default:
		return fmt.Errorf("unknown mode %q", r.Mode)
	}
	return nil
}

// LoadJob is the handoff to the warehouse-load stage, published only after
// a run that actually wrote output.
type LoadJob struct {
	Type  string `json:"type"` // "load"
	RunID string `json:"run_id"`
	Mode  string `json:"mode"`
	Date  string `json:"date,omitempty"`
	Year  int    `json:"year,omitempty"`
}

// Dial connects to RabbitMQ with a linear-retry loop.
func Dial(url string) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	for i := 0; i < 10; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		time.Sleep(time.Second * time.Duration(1+i))
	}
	return nil, err
}

// PublishLoadJob publishes a persistent load job to a durable queue.
func PublishLoadJob(url, queue string, job LoadJob) error {
	conn, err := amqp.Dial(url)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return err
	}

	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return ch.Publish(
		"", queue, false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// Worker consumes run requests and drives the pipeline.
type Worker struct {
	Runner *pipeline.Runner
	// Publish overrides the load-job handoff; nil means publish to
	// RabbitMQ per the configuration.
	Publish func(job LoadJob) error
}

func (w *Worker) publishLoad(job LoadJob) error {
	if w.Publish != nil {
		return w.Publish(job)
	}
	return PublishLoadJob(w.Runner.Cfg.RabbitURL, w.Runner.Cfg.LoadQueue, job)
}

// Run blocks consuming the fetch queue. Malformed requests are logged,
// counted, and acked; run failures are reported but do not stop the worker
// (the scheduler owns workflow-level retry).
func (w *Worker) Run(ctx context.Context) error {
	cfg := w.Runner.Cfg
	conn, err := Dial(cfg.RabbitURL)
	if err != nil {
		return fmt.Errorf("rabbit: %w", err)
	}
	defer conn.Close()
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbit channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(cfg.FetchQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(cfg.FetchQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	log.Printf("Worker up. Waiting for runs on queue %q", cfg.FetchQueue)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("queue channel closed")
			}
			metrics.QueueMessagesProcessed.Inc()
			w.handle(ctx, d)
		}
	}
}

func (w *Worker) handle(ctx context.Context, d amqp.Delivery) {
	defer d.Ack(false)

	var req RunRequest
	if err := json.Unmarshal(d.Body, &req); err != nil {
		log.Printf("bad run request json: %v", err)
		metrics.RunsTotal.WithLabelValues("invalid", "failure").Inc()
		return
	}
	if err := req.Validate(); err != nil {
		log.Printf("invalid run request: %v", err)
		metrics.RunsTotal.WithLabelValues("invalid", "failure").Inc()
		return
	}

	res, err := w.dispatch(ctx, req)
	if err != nil {
		log.Printf("run failed (mode=%s): %v", req.Mode, err)
		return
	}
	if res.WroteOutput {
		job := LoadJob{Type: "load", RunID: res.RunID, Mode: res.Mode, Date: res.Date, Year: res.Year}
		if err := w.publishLoad(job); err != nil {
			log.Printf("publish load job failed: %v", err)
		} else {
			log.Printf("published load job run=%s -> queue=%s", res.RunID, w.Runner.Cfg.LoadQueue)
		}
	}
}

func (w *Worker) dispatch(ctx context.Context, req RunRequest) (pipeline.Result, error) {
	workDir, err := os.MkdirTemp("", "vmspipe-*")
	if err != nil {
		return pipeline.Result{}, err
	}
	defer os.RemoveAll(workDir)

	switch req.Mode {
	case "fetch":
		day, _ := time.Parse("2006-01-02", req.Date)
		return w.Runner.FetchDay(ctx, day, workDir, req.Output)
	case "prepare":
		day, _ := time.Parse("2006-01-02", req.Date)
		return w.Runner.PrepareDay(ctx, day, req.Input, req.Output, workDir)
	default: // backfill, already validated
		var cutoff time.Time
		if req.CutoffDay != "" {
			cutoff, _ = time.Parse("2006-01-02", req.CutoffDay)
		}
		return w.Runner.Backfill(ctx, pipeline.BackfillParams{
			Year:         req.Year,
			DevicesPath:  filepath.Join(req.Input, "Devices.txt"),
			MessagesPath: filepath.Join(req.Input, fmt.Sprintf("%d.json", req.Year)),
			OutDir:       workDir,
			RemotePrefix: req.Output,
			Cutoff:       cutoff,
			SkipUpload:   req.SkipUpload,
		})
	}
}
