package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newSplitCommand() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "split [file]",
		Short: "Split rendered output into files",
		Long: `Read text from a file or standard input and split it at marker lines of the
form ">> path comment". Each section is written to its path, resolved
against the output directory; text before the first marker goes to standard
output.`,
		Example: `  # Split template output into the current directory
  vnflcm render -t inventory | vnflcm split

  # Split a file into build/
  vnflcm split rendered.txt --path build/`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if len(args) == 1 && args[0] != "-" {
				data, err = os.ReadFile(args[0])
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}

			info, err := os.Stat(outDir)
			if err != nil || !info.IsDir() {
				return fmt.Errorf("invalid path: %s is not a directory", outDir)
			}

			return writeSplit(cmd.OutOrStdout(), cmd.ErrOrStderr(), outDir, string(data))
		},
	}

	cmd.Flags().StringVarP(&outDir, "path", "p", ".", "directory the sections are written to")

	return cmd
}
