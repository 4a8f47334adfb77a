// Package cmd provides the root command and CLI setup for ctxprobe.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"ctxprobe.dev/pkg/ctxprobe/internal/adapter"
	"ctxprobe.dev/pkg/ctxprobe/internal/controller"
	"ctxprobe.dev/pkg/ctxprobe/internal/domain"
	m "ctxprobe.dev/pkg/ctxprobe/internal/model"
)

var fsAdapter adapter.RepoFSAdapter
var runStore adapter.RunStore
var catalogStore adapter.CatalogStore
var scanner domain.LayerScanner
var executor domain.Executor
var payloadSource domain.PayloadSource
var workflow domain.Workflow
var ui controller.UI

// templatesPathFlag is a root-level flag selecting the rules file shared by
// commands that load the template catalog.
var templatesPathFlag string

// excludePatterns filters scanned files for applicable commands.
var excludePatterns []string

// verboseFlag raises the log level to debug.
var verboseFlag bool

// logFileFlag overrides the log file location.
var logFileFlag string

func init() {
	configureRootFlags(rootCmd)

	// Initialize shared dependencies.
	ui = controller.NewUI(rootCmd, controller.IsTTY(os.Stdout))
	fsAdapter = adapter.NewLocalRepoFSAdapter()
	runStore = adapter.NewLocalRunStore(fsAdapter)
	catalogStore = adapter.NewYAMLCatalogStore(fsAdapter)
	scanner = domain.NewLayerScanner(fsAdapter)
	executor = domain.NewExecutor(fsAdapter, runStore)
	payloadSource = domain.NewLiteralPayloadSource()
	workflow = domain.NewWorkflow(
		fsAdapter,
		runStore,
		catalogStore,
		ui,
		scanner,
		executor,
		payloadSource,
	)
}

const rootLongDescription = `ctxprobe classifies a repository's files into context layers (agent
instructions, documentation, configuration, infrastructure, templates,
tooling, code metadata), plans a bounded set of context mutations against
them, applies the plan with per-file backups and reverts it byte-exactly.

Every apply is recorded as a run under .ctxprobe/runs/<run-id> in the
target repository, including a manifest and pristine file snapshots.`

// rootCmd represents the base command when called without any subcommands.
var rootCmd = baseRootCmd()

func baseRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ctxprobe",
		Short: "Layer-aware context mutation tool",
		Long:  rootLongDescription,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			configureLogger(logFileFlag, verboseFlag || viper.GetBool(logVerboseKey))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		StringVarP(
			&templatesPathFlag, templatesFlagName, "t",
			viper.GetString(templatesConfigKey),
			"path to a YAML mutation template rules file (default: built-in templates)",
		)
	bindFlagToConfig(cmd.PersistentFlags().Lookup(templatesFlagName), templatesConfigKey)

	cmd.PersistentFlags().StringArrayVarP(&excludePatterns, excludeFlagName, "x", viper.GetStringSlice(excludeConfigKey), "exclude files matching glob (can be repeated)")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(excludeFlagName), excludeConfigKey)

	cmd.PersistentFlags().BoolVarP(&verboseFlag, verboseFlagName, "v", viper.GetBool(logVerboseKey), "enable debug logging")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(verboseFlagName), logVerboseKey)

	cmd.PersistentFlags().StringVar(&logFileFlag, logFileFlagName, viper.GetString(logFilenameKey), "log file location")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(logFileFlagName), logFilenameKey)
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// repoArg resolves the optional positional repo path, defaulting to the
// current directory.
func repoArg(args []string) m.Path {
	if len(args) > 0 {
		return m.Path(args[0])
	}

	return m.Path(".")
}
