package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/GlobalFishingWatch/pipe-vms-brazil/internal/pipeline"
)

var (
	backfillYear       int
	backfillInput      string
	backfillOutput     string
	backfillLocalDir   string
	backfillDevices    string
	backfillMessages   string
	backfillCutoff     string
	backfillSkipUpload bool
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Partition a bulk historical year export into day files",
	Long: `Joins a whole year of bulk-export positions against the device
directory and writes one gzip NDJSON file per calendar day (empty days
included), uploading each day file. --cutoff makes interrupted backfills
resumable without reprocessing already-uploaded days.`,
	RunE: runBackfill,
}

func init() {
	rootCmd.AddCommand(backfillCmd)
	backfillCmd.Flags().IntVarP(&backfillYear, "year", "y", 0, "year to backfill")
	backfillCmd.Flags().StringVarP(&backfillInput, "input", "i", "", "local directory holding the bulk exports")
	backfillCmd.Flags().StringVarP(&backfillOutput, "output", "o", "", "remote prefix for the day files")
	backfillCmd.Flags().StringVar(&backfillLocalDir, "local-dir", "prepare_data", "local directory for produced day files")
	backfillCmd.Flags().StringVar(&backfillDevices, "devices", "", "device export path (default {input}/Devices.txt)")
	backfillCmd.Flags().StringVar(&backfillMessages, "messages", "", "message export path (default {input}/{year}.json)")
	backfillCmd.Flags().StringVar(&backfillCutoff, "cutoff", "", "last day to process, inclusive (YYYY-MM-DD)")
	backfillCmd.Flags().BoolVar(&backfillSkipUpload, "skip-upload", false, "write day files locally without uploading")
	backfillCmd.MarkFlagRequired("year")
	backfillCmd.MarkFlagRequired("input")
}

func runBackfill(cmd *cobra.Command, args []string) error {
	var cutoff time.Time
	if backfillCutoff != "" {
		var err error
		cutoff, err = parseDay(backfillCutoff)
		if err != nil {
			return fmt.Errorf("bad --cutoff: %w", err)
		}
		if cutoff.Year() != backfillYear {
			return fmt.Errorf("--cutoff %s is outside year %d", backfillCutoff, backfillYear)
		}
	}

	devices := backfillDevices
	if devices == "" {
		devices = filepath.Join(backfillInput, "Devices.txt")
	}
	messages := backfillMessages
	if messages == "" {
		messages = filepath.Join(backfillInput, fmt.Sprintf("%d.json", backfillYear))
	}

	// A --skip-upload backfill is fully local; it must not require a
	// reachable object store.
	runner, err := newRunner(cmd.Context(), 0, 0, !backfillSkipUpload)
	if err != nil {
		return err
	}
	_, err = runner.Backfill(cmd.Context(), pipeline.BackfillParams{
		Year:         backfillYear,
		DevicesPath:  devices,
		MessagesPath: messages,
		OutDir:       backfillLocalDir,
		RemotePrefix: backfillOutput,
		Cutoff:       cutoff,
		SkipUpload:   backfillSkipUpload,
	})
	return err
}
