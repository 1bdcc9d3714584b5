package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"fit", "runs", "show"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "sedfit", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestFitCommand_Flags(t *testing.T) {
	for _, name := range []string{"grid", "manifest", "catalog", "workers", "seed", "buffered", "limit"} {
		assert.NotNil(t, fitCmd.Flags().Lookup(name), "fit command should have --%s flag", name)
	}

	flag := fitCmd.Flags().Lookup("manifest")
	require.NotNil(t, flag)
	assert.Equal(t, "grid.yaml", flag.DefValue)
}

func TestRunsCommand_Flags(t *testing.T) {
	flag := runsCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "50", flag.DefValue)
	assert.NotNil(t, runsCmd.Flags().Lookup("status"))
}

func TestShowCommand_Flags(t *testing.T) {
	assert.NotNil(t, showCmd.Flags().Lookup("run"))
	assert.NotNil(t, showCmd.Flags().Lookup("index"))
}
