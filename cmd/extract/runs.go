package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/audit"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/config"
)

var (
	runsLimit  int
	runsOffset int
	exportPath string
)

func init() {
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsExportCmd)

	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum number of runs to list")
	runsListCmd.Flags().IntVar(&runsOffset, "offset", 0, "Number of runs to skip")
	runsExportCmd.Flags().StringVarP(&exportPath, "output", "o", "", "Write the export to a file instead of stdout")
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect stored extraction runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := commandContext(cmd)
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.List(ctx, runsLimit, runsOffset)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tFILE\tTYPE\tSCORE\tITERATIONS\tSTOPPED\tCREATED")
		for _, run := range runs {
			r := run.Result
			fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%d\t%s\t%s\n",
				r.DocumentID, r.Filename, r.ClassifiedType, r.ReliabilityLoop.FinalScore,
				r.ReliabilityLoop.Iterations, r.ReliabilityLoop.StoppedReason, run.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

var runsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every stored run as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := commandContext(cmd)
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		out := cmd.OutOrStdout()
		if exportPath != "" {
			f, err := os.Create(exportPath)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		return store.ExportJSON(ctx, out)
	},
}

func openStore(ctx context.Context) (audit.Store, error) {
	configManager, err := config.NewManagerFromFile(configFile)
	if err != nil {
		return nil, err
	}
	cfg := configManager.GetConfig()
	cfg.Logging.Output = "stderr"
	store, err := audit.Open(ctx, cfg.Audit, config.NewLogger(cfg.Logging))
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("audit store is disabled (audit.driver=%q)", cfg.Audit.Driver)
	}
	return store, nil
}
