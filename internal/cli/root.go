// Package cli implements the ppos command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	flagLogLevel  string
	flagLogFormat string
)

// ExitError carries a non-zero kernel exit code out of Execute.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("kernel exited with status %d", e.Code)
}

// NewRootCmd creates the root cobra command for the ppos CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ppos",
		Short:         "ppos runs cooperative task scenarios on a user-space kernel",
		Long:          "ppos boots a single-processor task kernel with priority aging and tick preemption, and runs a demo scenario as its main task.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (trace, debug, info, warn, error); overrides config")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format (text, json); overrides config")

	root.AddCommand(
		newRunCmd(),
		newScenariosCmd(),
	)

	return root
}
