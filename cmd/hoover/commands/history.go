package commands

import (
	"errors"
	"fmt"

	"hoover/pkg/app"
	"hoover/pkg/exporter"
	"hoover/pkg/ledger"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recorded runs, or the objects shipped by one run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		repo, closeDB, err := app.OpenLedger(ctx)
		if err != nil {
			return fmt.Errorf("failed to open ledger: %w", err)
		}
		defer closeDB()

		// 单次运行详情
		if len(args) > 0 {
			run, err := repo.GetRun(ctx, args[0])
			if errors.Is(err, ledger.ErrRunNotFound) {
				return fmt.Errorf("no run with id %s", args[0])
			}
			if err != nil {
				return err
			}
			return exporter.PrintRun(run, out)
		}

		runs, err := repo.ListRuns(ctx, historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs recorded yet.")
			return nil
		}
		return exporter.PrintRuns(runs, out)
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show")
	rootCmd.AddCommand(historyCmd)
}
