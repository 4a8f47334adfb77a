package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ctxprobe.dev/pkg/ctxprobe/internal/domain"
	m "ctxprobe.dev/pkg/ctxprobe/internal/model"
)

var templatesCategoriesFlag []string
var templatesLayerFlag string

// templatesCmd represents the templates command.
var templatesCmd = newTemplatesCmd()

func newTemplatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List mutation templates grouped by category",
		Long: `Templates lists the mutation template catalog. Without --templates the
built-in set is shown; with it, the given YAML rules file is loaded and
validated first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return workflow.Templates(cmd.Context(), domain.TemplatesArgs{
				RulesPath:  m.Path(viper.GetString(templatesConfigKey)),
				Categories: templatesCategoriesFlag,
				Layer:      templatesLayerFlag,
			})
		},
	}

	cmd.Flags().StringSliceVarP(&templatesCategoriesFlag, categoriesFlagName, "c", nil, "filter templates by category (can be repeated)")
	cmd.Flags().StringVarP(&templatesLayerFlag, layerFlagName, "l", "", "filter templates by layer")

	return cmd
}

func init() {
	rootCmd.AddCommand(templatesCmd)
}
