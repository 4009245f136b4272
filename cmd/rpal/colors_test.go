package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestColorizeWrapsOnlyWhenEnabled(t *testing.T) {
	require.Equal(t, "text", Colorize("text", ColorRed, false))
	require.Equal(t, ColorRed+"text"+ColorReset, Colorize("text", ColorRed, true))
}

func TestShouldUseColorHonorsNoColorFlag(t *testing.T) {
	require.False(t, ShouldUseColor(true))
}

func TestShouldUseColorHonorsNoColorEnvVar(t *testing.T) {
	old, had := os.LookupEnv("NO_COLOR")
	require.NoError(t, os.Setenv("NO_COLOR", "1"))
	defer func() {
		if had {
			os.Setenv("NO_COLOR", old)
		} else {
			os.Unsetenv("NO_COLOR")
		}
	}()
	require.False(t, ShouldUseColor(false))
}
