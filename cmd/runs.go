package cmd

import (
	"github.com/spf13/cobra"

	"ctxprobe.dev/pkg/ctxprobe/internal/domain"
)

// runsCmd represents the runs command.
var runsCmd = newRunsCmd()

func newRunsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs [repo]",
		Short: "List recorded mutation runs",
		Long:  "Runs lists every recorded mutation run of the repository, newest first.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return workflow.Runs(cmd.Context(), domain.RunsArgs{Repo: repoArg(args)})
		},
	}
}

func init() {
	rootCmd.AddCommand(runsCmd)
}
