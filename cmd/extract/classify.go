package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/classifier"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/config"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
)

var classifyJSON bool

func init() {
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "Output results as JSON")
}

var classifyCmd = &cobra.Command{
	Use:   "classify FILE...",
	Short: "Classify text documents without calling the oracle",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := classifier.New(config.NewLogger(domain.LoggingConfig{Level: "error", Output: "stderr"}))

		results := make(map[string]domain.DocumentClassification, len(args))
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			results[path] = c.ClassifyDocument(string(data))
		}

		if classifyJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "FILE\tTYPE\tCONFIDENCE\tCOMPOSITE\tCONTENT")
		for _, path := range args {
			r := results[path]
			fmt.Fprintf(w, "%s\t%s\t%.2f\t%t\t%v\n", path, r.PrimaryType, r.PrimaryConfidence, r.IsComposite, r.ContainsContent)
		}
		return w.Flush()
	},
}
