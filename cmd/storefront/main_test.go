package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommands(t *testing.T) {
	root := rootCmd()

	for _, name := range []string{"serve", "migrate", "verify", "dedup", "version"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestSlugCommandsRequireOneArg(t *testing.T) {
	root := rootCmd()

	for _, name := range []string{"verify", "dedup"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Error(t, cmd.Args(cmd, nil))
		assert.Error(t, cmd.Args(cmd, []string{"a", "b"}))
		assert.NoError(t, cmd.Args(cmd, []string{"nova"}))
	}
}
