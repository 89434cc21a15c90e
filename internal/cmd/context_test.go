package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContext(t *testing.T) {
	newCmd := func(run func(*Context, []string) error) *cobra.Command {
		return NewCommand(&cobra.Command{Use: "testcmd"}, []commandLineFlag{hostFlag, portFlag}, run)
	}

	t.Run("FlagsOverrideFile", func(t *testing.T) {
		home := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte("server:\n  host: 0.0.0.0\n  port: 9000\n"), 0600))

		var got *Context
		c := newCmd(func(ctx *Context, _ []string) error {
			got = ctx
			return nil
		})
		c.SetArgs([]string{"--home", home, "--quiet", "--port", "9100"})
		c.SetContext(context.Background())
		require.NoError(t, c.Execute())

		require.NotNil(t, got)
		assert.Equal(t, "0.0.0.0", got.Config.Server.Host)
		assert.Equal(t, 9100, got.Config.Server.Port)
		assert.True(t, got.Quiet)
		assert.Equal(t, filepath.Join(home, "data", "settings"), got.Config.Settings.Dir)
	})

	t.Run("DefaultsWithoutFile", func(t *testing.T) {
		var got *Context
		c := newCmd(func(ctx *Context, _ []string) error {
			got = ctx
			return nil
		})
		c.SetArgs([]string{"--home", t.TempDir(), "--quiet"})
		c.SetContext(context.Background())
		require.NoError(t, c.Execute())

		require.NotNil(t, got)
		assert.Equal(t, "127.0.0.1", got.Config.Server.Host)
		assert.Equal(t, 8080, got.Config.Server.Port)
		assert.True(t, got.Config.Scheduler.Enabled)
	})

	t.Run("InvalidConfig", func(t *testing.T) {
		home := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte("settings:\n  backend: floppy\n"), 0600))

		c := newCmd(func(*Context, []string) error { return nil })
		c.SetArgs([]string{"--home", home, "--quiet"})
		c.SetContext(context.Background())
		assert.Error(t, c.Execute())
	})
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "-", maskKey(""))
	assert.Equal(t, "***", maskKey("abc"))
	assert.Equal(t, "****7890", maskKey("12347890"))
}
