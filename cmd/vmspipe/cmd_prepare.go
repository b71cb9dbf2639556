package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	prepareDate   string
	prepareInput  string
	prepareOutput string
)

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Join one day's staged collections into the merged day file",
	Long: `Downloads the staged device and message files for one day, joins
messages to their owning device, reformats timestamps, and uploads the
merged gzip NDJSON day file.`,
	RunE: runPrepare,
}

func init() {
	rootCmd.AddCommand(prepareCmd)
	prepareCmd.Flags().StringVarP(&prepareDate, "date", "d", "", "day to prepare (YYYY-MM-DD)")
	prepareCmd.Flags().StringVarP(&prepareInput, "input", "i", "", "remote prefix holding the staged files")
	prepareCmd.Flags().StringVarP(&prepareOutput, "output", "o", "", "remote prefix for the merged file")
	prepareCmd.MarkFlagRequired("date")
}

func runPrepare(cmd *cobra.Command, args []string) error {
	day, err := parseDay(prepareDate)
	if err != nil {
		return fmt.Errorf("bad --date: %w", err)
	}
	runner, err := newRunner(cmd.Context(), 0, 0, true)
	if err != nil {
		return err
	}

	workDir, err := os.MkdirTemp("", "vmspipe-prepare-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(workDir)

	_, err = runner.PrepareDay(cmd.Context(), day, prepareInput, prepareOutput, workDir)
	return err
}
