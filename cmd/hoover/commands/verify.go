package commands

import (
	"bytes"
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"hoover/pkg/codec"
	"hoover/pkg/collector"
	"hoover/pkg/exporter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var verifyDir string

var verifyCmd = &cobra.Command{
	Use:   "verify <manifest>",
	Short: "Check that every object listed in a manifest arrived intact",
	Long: `Files are looked up by name in --dir (default: the manifest's directory) and
its immediate subdirectories, so the per-type layout of hoover-collector works too.
Absolute directories from collect.type_dirs are searched last.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		newHasher, err := codec.NewHasherFactory(viper.GetString("codec.hash"))
		if err != nil {
			return err
		}

		// 1. 还原清单
		var data bytes.Buffer
		if _, _, err := exporter.DecodeWith(cmd.Context(), args[0], &data, newHasher); err != nil {
			return fmt.Errorf("read manifest: %w", err)
		}

		dir := verifyDir
		if dir == "" {
			dir = filepath.Dir(args[0])
		}

		// 2. 逐项检查
		outside := collector.OutsideDirs(viper.GetStringMapString("collect.type_dirs"))
		report, err := collector.VerifyManifest(dir, data.Bytes(), newHasher, outside...)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintf(tw, "STATUS\tFILE\tPROBLEM\n")
		for _, f := range report.Files {
			status := "ok"
			if !f.OK {
				status = "FAIL"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", status, f.Filename, f.Problem)
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		if n := report.Failed(); n > 0 {
			return fmt.Errorf("%d of %d files failed verification", n, len(report.Files))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nAll %d files verified.\n", len(report.Files))
		return nil
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyDir, "dir", "", "directory holding the shipped files")
	rootCmd.AddCommand(verifyCmd)
}
