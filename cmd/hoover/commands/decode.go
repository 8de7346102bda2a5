package commands

import (
	"fmt"
	"io"
	"os"

	"hoover/pkg/codec"
	"hoover/pkg/exporter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	decodeOutput string
	decodeExpect string
)

var decodeCmd = &cobra.Command{
	Use:   "decode <file>",
	Short: "Decompress a shipped object and print the digest of the original bytes",
	Long:  `The compression is inferred from the file name suffix (.gz, .zst, .lz4). Output goes to stdout unless -o is given.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		newHasher, err := codec.NewHasherFactory(viper.GetString("codec.hash"))
		if err != nil {
			return err
		}

		var w io.Writer = cmd.OutOrStdout()
		if decodeOutput != "" {
			f, err := os.Create(decodeOutput)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}

		hash, n, err := exporter.DecodeWith(cmd.Context(), args[0], w, newHasher)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s  %d bytes\n", hash, n)

		if decodeExpect != "" && string(hash) != decodeExpect {
			return fmt.Errorf("digest mismatch: expected %s, got %s", decodeExpect, hash)
		}
		return nil
	},
}

func init() {
	decodeCmd.Flags().StringVarP(&decodeOutput, "output", "o", "", "write decoded bytes to this file")
	decodeCmd.Flags().StringVar(&decodeExpect, "expect", "", "fail unless the decoded digest equals this value")
	rootCmd.AddCommand(decodeCmd)
}
