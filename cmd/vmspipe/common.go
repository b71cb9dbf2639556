package main

import (
	"context"
	"time"

	"github.com/GlobalFishingWatch/pipe-vms-brazil/internal/blob"
	"github.com/GlobalFishingWatch/pipe-vms-brazil/internal/config"
	"github.com/GlobalFishingWatch/pipe-vms-brazil/internal/pipeline"
)

// newRunner builds a Runner from the environment, letting command flags
// override the retry policy. Commands that run fully locally pass
// needStore=false so they never block on the object-store dial loop.
func newRunner(ctx context.Context, maxRetries, retryDelaySeconds int, needStore bool) (*pipeline.Runner, error) {
	cfg := config.FromEnv()
	if maxRetries > 0 {
		cfg.MaxRetries = maxRetries
	}
	if retryDelaySeconds > 0 {
		cfg.RetryDelay = time.Duration(retryDelaySeconds) * time.Second
	}
	var store blob.Store
	if needStore {
		s, err := blob.NewMinioStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store = s
	}
	return pipeline.NewRunner(cfg, store), nil
}

func parseDay(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}
