package commands

import (
	"fmt"
	"time"

	"hoover/pkg/app"
	"hoover/pkg/core"

	"github.com/spf13/cobra"
)

var shipType string

var shipCmd = &cobra.Command{
	Use:   "ship <path>...",
	Short: "Compress, checksum and send files (or directories) through the configured tube",
	Long: `Each file is encoded (compressed and checksummed) and sent with its header.
Directories are walked recursively, honoring .hooverignore. After the last file
a manifest listing every shipped object is sent as well.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		// 1. 组装依赖
		a, err := app.NewApp(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize hoover: %w", err)
		}
		defer a.Close()

		if shipType != "" {
			a.Config.Ship.DefaultType = shipType
		}
		s, err := a.NewShipper()
		if err != nil {
			return err
		}
		s.Progress = func(h core.Header) {
			fmt.Fprintf(out, "✅ %s (%s, %d bytes)\n", h.Filename, h.Hash.Short(), h.Size)
		}

		// 2. 发送
		fmt.Fprintf(out, "📦 Shipping to %s\n", a.Tube.Destination())
		res, err := s.Ship(ctx, args)
		if err != nil {
			if res != nil {
				return fmt.Errorf("run %s aborted after %d files: %w", res.RunID, len(res.Headers), err)
			}
			return err
		}

		// 3. 汇总
		fmt.Fprintf(out, "\nRun %s: %d shipped, %d skipped, %d bytes in %s\n",
			res.RunID, len(res.Headers), len(res.Skipped), res.Bytes, res.Elapsed.Round(time.Millisecond))
		fmt.Fprintf(out, "Manifest: %s\n", res.Manifest.Filename)
		return nil
	},
}

func init() {
	shipCmd.Flags().StringVarP(&shipType, "type", "t", "", "type tag for files that match no type rule")
	rootCmd.AddCommand(shipCmd)
}
