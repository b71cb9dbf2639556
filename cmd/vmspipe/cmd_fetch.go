package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	fetchDate       string
	fetchOutput     string
	fetchMaxRetries int
	fetchRetryDelay int
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download one day of VMS positions and the device directory",
	Long: `Fetches the full device directory and the positional messages for one
day from the Brazil API, stages both as gzip JSON, and uploads them to the
object store under {output}/devices/ and {output}/messages/.`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().StringVarP(&fetchDate, "date", "d", "", "day to query (YYYY-MM-DD)")
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "remote prefix for the staged files")
	fetchCmd.Flags().IntVar(&fetchMaxRetries, "max-retries", 0, "API retry attempts (default from env, 3)")
	fetchCmd.Flags().IntVar(&fetchRetryDelay, "retry-delay", 0, "seconds between API retries (default from env, 5)")
	fetchCmd.MarkFlagRequired("date")
}

func runFetch(cmd *cobra.Command, args []string) error {
	day, err := parseDay(fetchDate)
	if err != nil {
		return fmt.Errorf("bad --date: %w", err)
	}
	runner, err := newRunner(cmd.Context(), fetchMaxRetries, fetchRetryDelay, true)
	if err != nil {
		return err
	}

	workDir, err := os.MkdirTemp("", "vmspipe-fetch-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(workDir)

	_, err = runner.FetchDay(cmd.Context(), day, workDir, fetchOutput)
	return err
}
