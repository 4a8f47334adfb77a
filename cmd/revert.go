package cmd

import (
	"github.com/spf13/cobra"

	"ctxprobe.dev/pkg/ctxprobe/internal/domain"
)

var revertRunFlag string

// revertCmd represents the revert command.
var revertCmd = newRevertCmd()

func newRevertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revert [repo]",
		Short: "Restore files mutated by a recorded run",
		Long: `Revert restores every file backed up by the given run to its pristine
content. Backups are checksum-verified before restoring; a corrupt backup
fails that file without blocking the rest.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return workflow.Revert(cmd.Context(), domain.RevertArgs{
				Repo:  repoArg(args),
				RunID: revertRunFlag,
			})
		},
	}

	cmd.Flags().StringVarP(&revertRunFlag, runFlagName, "r", "", "run id to revert (see 'ctxprobe runs')")
	cobra.CheckErr(cmd.MarkFlagRequired(runFlagName))

	return cmd
}

func init() {
	rootCmd.AddCommand(revertCmd)
}
