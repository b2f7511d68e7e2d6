// Command extract runs local clinical documents through the extraction
// pipeline and prints the results as JSON.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile string
	noAudit    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "extract [flags] FILE...",
	Short: "Extract structured clinical data from documents",
	Long: `extract runs PDFs, images and text files through OCR, redaction,
classification and structured extraction, and prints one JSON result per file.

Examples:
  # Single-pass extraction
  extract pathology.pdf

  # Quality-gated extraction with a lower threshold
  extract --reliability --threshold 0.9 report.png notes.txt`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runExtract,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: search ./config.yaml, ./config, /etc/tumor-board-extractor)")
	rootCmd.PersistentFlags().BoolVar(&noAudit, "no-audit", false, "do not store runs in the audit store")

	rootCmd.Flags().BoolVar(&reliabilityFlag, "reliability", false, "run the quality-gated extraction loop")
	rootCmd.Flags().Float64Var(&thresholdFlag, "threshold", 0, "quality threshold override, between 0 and 1")
	rootCmd.Flags().IntVar(&maxIterationsFlag, "max-iterations", 0, "maximum extraction attempts override")
	rootCmd.Flags().BoolVar(&historyFlag, "history", false, "include the iteration history in the output")

	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(runsCmd)
}
