package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ctxprobe.dev/pkg/ctxprobe/internal/domain"
	m "ctxprobe.dev/pkg/ctxprobe/internal/model"
)

var mutateCategoriesFlag []string
var mutateIntensityFlag string
var mutateStrategyFlag string
var mutateSeedFlag int64
var mutateLayersFlag []string
var mutateLayerLevelFlag int
var mutateDryRunFlag bool

// mutateCmd represents the mutate command.
var mutateCmd = newMutateCmd()

func newMutateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mutate [repo]",
		Short: "Plan and apply context mutations",
		Long: `Mutate scans the repository, plans a bounded mutation set with the chosen
strategy and applies it. Every touched file is backed up first, so the run
can be reverted byte-exactly with 'ctxprobe revert'.

With --dry-run the plan is displayed and nothing is written.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var seed *int64
			if cmd.Flags().Changed(seedFlagName) {
				value := mutateSeedFlag
				seed = &value
			}

			return workflow.Mutate(cmd.Context(), domain.MutateArgs{
				Repo:       repoArg(args),
				RulesPath:  m.Path(viper.GetString(templatesConfigKey)),
				Categories: mutateCategoriesFlag,
				Intensity:  viper.GetString(intensityConfigKey),
				Strategy:   viper.GetString(strategyConfigKey),
				Seed:       seed,
				Layers:     mutateLayersFlag,
				LayerLevel: mutateLayerLevelFlag,
				Exclude:    viper.GetStringSlice(excludeConfigKey),
				DryRun:     mutateDryRunFlag,
			})
		},
	}

	configureMutateFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(mutateCmd)
}

func configureMutateFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&mutateCategoriesFlag, categoriesFlagName, "c", nil, "restrict templates to these categories (can be repeated)")

	cmd.Flags().StringVarP(&mutateIntensityFlag, intensityFlagName, "i", viper.GetString(intensityConfigKey), "mutation intensity: subtle, normal or strong")
	bindFlagToConfig(cmd.Flags().Lookup(intensityFlagName), intensityConfigKey)

	cmd.Flags().StringVarP(&mutateStrategyFlag, strategyFlagName, "s", viper.GetString(strategyConfigKey), "planning strategy: heuristic or genetic")
	bindFlagToConfig(cmd.Flags().Lookup(strategyFlagName), strategyConfigKey)

	cmd.Flags().Int64Var(&mutateSeedFlag, seedFlagName, 0, "random seed for the genetic strategy (required with --strategy genetic)")
	cmd.Flags().StringSliceVar(&mutateLayersFlag, layersFlagName, nil, "restrict mutations to these layers (can be repeated)")
	cmd.Flags().IntVar(&mutateLayerLevelFlag, layerLevelFlagName, 0, "cumulative layer level 1-7 (1 = ai_instructions only)")
	cmd.Flags().BoolVar(&mutateDryRunFlag, dryRunFlagName, false, "display the plan without applying it")
}
