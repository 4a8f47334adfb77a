package cmd

import (
	"runtime/debug"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the ctxprobe build version",
		Long:  "Prints the ctxprobe version, the VCS revision when the build recorded one and the Go toolchain that built the binary.",
		Run: func(cmd *cobra.Command, _ []string) {
			info, ok := debug.ReadBuildInfo()
			if !ok {
				cmd.Println("ctxprobe (unknown build)")
				return
			}

			version := info.Main.Version
			if version == "" {
				version = "(devel)"
			}

			cmd.Printf("ctxprobe %s\n", version)
			cmd.Printf("go: %s\n", info.GoVersion)

			for _, setting := range info.Settings {
				if setting.Key == "vcs.revision" && setting.Value != "" {
					cmd.Printf("revision: %s\n", setting.Value)
				}
			}
		},
	}
}

// versionCmd represents the version command.
var versionCmd = newVersionCmd()

func init() {
	rootCmd.AddCommand(versionCmd)
}
