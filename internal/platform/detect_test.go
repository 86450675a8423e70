package platform

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveModelDirHonorsOverride(t *testing.T) {
	t.Parallel()

	dir, err := ResolveModelDir("/opt/models/")
	require.NoError(t, err)
	require.Equal(t, filepath.Clean("/opt/models"), dir)
}

func TestDefaultDataDirLinux(t *testing.T) {
	t.Parallel()

	dir, err := defaultDataDirFor("linux", "/home/sam", "")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/home/sam", ".local", "share", "subtitler"), dir)

	dir, err = defaultDataDirFor("linux", "/home/sam", "/home/sam/xdg")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/home/sam/xdg", "subtitler"), dir)
}

func TestDefaultDataDirDarwin(t *testing.T) {
	t.Parallel()

	dir, err := defaultDataDirFor("darwin", "/Users/sam", "")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/Users/sam", "Library", "Application Support", "subtitler"), dir)
}

func TestDefaultDataDirUnsupported(t *testing.T) {
	t.Parallel()

	_, err := defaultDataDirFor("plan9", "/home/sam", "")
	require.Error(t, err)

	_, err = defaultDataDirFor("linux", "", "")
	require.Error(t, err)
}
