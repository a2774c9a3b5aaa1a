package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfroyo/vnflcm/pkg/engine"
)

var (
	// Global flags
	configPath  string
	contextName string
	verbose     bool
	jsonOutput  bool
)

// Exit codes.
const (
	exitFailure = 1
	exitInvalid = 2
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

// ExitCode maps a command error to the process exit status. Rejected
// descriptors and batches exit with 2.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, errInvalid) || engine.IsValidationError(err) {
		return exitInvalid
	}
	return exitFailure
}

// errInvalid marks validation failures already reported to the user.
var errInvalid = errors.New("validation failed")

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vnflcm",
		Short: "vnflcm - VNF lifecycle engine",
		Long: `vnflcm keeps a versioned canonical model of VNF deployments and turns
descriptor changes into ordered, policy-checked action plans.

Features:
  - TOSCA-style descriptors in YAML or CUE
  - Versioned models with synthesized security rules
  - Deltas and action plans between any two versions
  - Rego policies in advisory or enforcing mode
  - Plan execution through dry-run or hook actuators
  - Starlark templates and output splitting`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default vnflcm.yaml)")
	rootCmd.PersistentFlags().StringVar(&contextName, "context", "", "model context (default from config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newKeygenCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newApplyCommand())
	rootCmd.AddCommand(newDiffCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newRenderCommand())
	rootCmd.AddCommand(newSplitCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newServeMetricsCommand())

	return rootCmd
}
