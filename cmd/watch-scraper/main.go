package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "watch-scraper",
	Short: "Watch price and specification scraper",
	Long: `Visits a fixed catalog of watch model pages with a headless browser and
records a price snapshot, a specification snapshot and a run summary.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
