package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, sub := range rootCmd.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["solve"])
	assert.True(t, names["config"])
}

func TestSolveRequiresTask(t *testing.T) {
	// Flag lookups must not panic before any app setup happens.
	require.NotNil(t, solveCmd.Flags().Lookup("image"))
	require.NotNil(t, solveCmd.Flags().Lookup("trace"))
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}
