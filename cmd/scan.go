package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ctxprobe.dev/pkg/ctxprobe/internal/domain"
)

var scanIncludePatterns []string

// scanCmd represents the scan command.
var scanCmd = newScanCmd()

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [repo]",
		Short: "Classify repository files into context layers",
		Long: `Scan walks the repository and classifies every regular file into context
layers by path rules and content markers. Symlinks are never followed;
binary and oversized files are classified by path only; unreadable files are
reported as issues without failing the scan.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return workflow.Scan(cmd.Context(), domain.ScanArgs{
				Repo:    repoArg(args),
				Include: scanIncludePatterns,
				Exclude: viper.GetStringSlice(excludeConfigKey),
			})
		},
	}

	cmd.Flags().StringArrayVar(&scanIncludePatterns, includeFlagName, nil, "only include files matching glob (can be repeated)")

	return cmd
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
