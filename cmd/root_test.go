package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "ctxprobe.dev/pkg/ctxprobe/internal/model"
)

func TestBaseRootCmd(t *testing.T) {
	cmd := baseRootCmd()
	assert.Equal(t, "ctxprobe", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
	assert.Equal(t, rootLongDescription, cmd.Long)
}

func TestRootCmd_HelpOutput(t *testing.T) {
	cmd := baseRootCmd()
	output := &bytes.Buffer{}
	cmd.SetOut(output)
	cmd.SetErr(&bytes.Buffer{})

	cmd.SetArgs([]string{})
	err := cmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, output.String(), "Usage:")
	assert.Contains(t, output.String(), "context layers")
}

func TestInit(t *testing.T) {
	// Test that init() created all the necessary instances
	assert.NotNil(t, ui)
	assert.NotNil(t, fsAdapter)
	assert.NotNil(t, runStore)
	assert.NotNil(t, catalogStore)
	assert.NotNil(t, scanner)
	assert.NotNil(t, executor)
	assert.NotNil(t, payloadSource)
	assert.NotNil(t, workflow)
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, sub := range rootCmd.Commands() {
		names[sub.Name()] = true
	}

	for _, want := range []string{"scan", "templates", "mutate", "revert", "runs", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	flags := rootCmd.PersistentFlags()

	for _, name := range []string{templatesFlagName, excludeFlagName, verboseFlagName, logFileFlagName} {
		assert.NotNil(t, flags.Lookup(name), "missing persistent flag %s", name)
	}

	assert.Equal(t, "t", flags.Lookup(templatesFlagName).Shorthand)
	assert.Equal(t, "x", flags.Lookup(excludeFlagName).Shorthand)
	assert.Equal(t, "v", flags.Lookup(verboseFlagName).Shorthand)
}

func TestRepoArg(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want m.Path
	}{
		{"defaults to the current directory", nil, m.Path(".")},
		{"uses the positional path", []string{"/tmp/repo"}, m.Path("/tmp/repo")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, repoArg(tt.args))
		})
	}
}
