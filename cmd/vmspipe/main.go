package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vmspipe",
	Short: "Brazil VMS fetch-merge-partition pipeline",
	Long: `vmspipe pulls vessel-tracking positions and device metadata from the
Brazilian national maritime authority API, joins messages to their owning
device, and stages day-partitioned gzip NDJSON files for warehouse loading.`,
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}
