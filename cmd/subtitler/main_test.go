package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"subtitler/internal/cli"
)

func TestShouldPrintUsageHint(t *testing.T) {
	t.Parallel()

	require.True(t, shouldPrintUsageHint(errors.New("unknown command \"bad\" for \"subtitler\"")))
	require.True(t, shouldPrintUsageHint(errors.New("unknown flag: --oops")))
	require.True(t, shouldPrintUsageHint(errors.New("accepts 1 arg(s), received 0")))
	require.False(t, shouldPrintUsageHint(errors.New("load config \"subtitler.toml\": permission denied")))
	require.False(t, shouldPrintUsageHint(nil))
}

func TestHelpHintTarget(t *testing.T) {
	t.Parallel()

	root := cli.NewRootCmd()
	require.Equal(t, "subtitler", helpHintTarget(root, []string{"--badflag"}))
	require.Equal(t, "subtitler", helpHintTarget(root, []string{"badcmd"}))
	require.Equal(t, "subtitler serve", helpHintTarget(root, []string{"serve"}))
	require.Equal(t, "subtitler serve", helpHintTarget(root, []string{"serve", "--bind"}))
}
