package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fallrisk/super-serial/internal/config"
	"github.com/fallrisk/super-serial/internal/metric"
	"github.com/fallrisk/super-serial/internal/profile"
	"github.com/fallrisk/super-serial/internal/serialcfg"
)

func newFlagCommand(f *serialFlags) *cobra.Command {
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	f.register(cmd.Flags())
	return cmd
}

func TestSerialFlags_Resolve(t *testing.T) {
	defaults := serialcfg.CLIArgs{Baud: 9600, DataBits: 7, StopBits: 2, Parity: "e", FlowControl: "h"}

	t.Run("unset flags take defaults", func(t *testing.T) {
		var f serialFlags
		cmd := newFlagCommand(&f)
		require.NoError(t, cmd.ParseFlags([]string{"-p", "/dev/ttyUSB0"}))

		args := f.resolve(cmd, defaults)
		assert.Equal(t, "/dev/ttyUSB0", args.Port)
		assert.Equal(t, 9600, args.Baud)
		assert.Equal(t, 7, args.DataBits)
		assert.Equal(t, 2.0, args.StopBits)
		assert.Equal(t, "e", args.Parity)
		assert.Equal(t, "h", args.FlowControl)
	})

	t.Run("set flags win", func(t *testing.T) {
		var f serialFlags
		cmd := newFlagCommand(&f)
		require.NoError(t, cmd.ParseFlags([]string{"-p", "COM4", "-b", "57600", "--stop-bits", "1.5", "--parity", "o", "--fc", "s"}))

		args := f.resolve(cmd, defaults)
		assert.Equal(t, 57600, args.Baud)
		assert.Equal(t, 7, args.DataBits)
		assert.Equal(t, 1.5, args.StopBits)
		assert.Equal(t, "o", args.Parity)
		assert.Equal(t, "s", args.FlowControl)
	})
}

func withApp(t *testing.T) {
	t.Helper()
	cfg := config.Default()
	cfg.Profiles.Path = filepath.Join(t.TempDir(), "connections.json")

	saved := app
	app.config = cfg
	app.logger = zap.NewNop()
	app.metrics = metric.NewRegistry()
	t.Cleanup(func() { app = saved })
}

func TestConnectSettings(t *testing.T) {
	withApp(t)

	p, err := profile.New("bench", serialcfg.RawConfig{
		Port:        "/dev/ttyACM0",
		Baud:        19200,
		DataBits:    8,
		StopBits:    decimal.NewFromInt(1),
		Parity:      "NONE",
		FlowControl: "HARDWARE",
	})
	require.NoError(t, err)
	require.NoError(t, newProfileStore().Save([]profile.Profile{p}, app.config.Profiles.Path))

	defer func() { connectProfile = "" }()

	t.Run("profile", func(t *testing.T) {
		connectFlags = serialFlags{}
		cmd := newFlagCommand(&connectFlags)
		require.NoError(t, cmd.ParseFlags(nil))
		connectProfile = "bench"

		raw, err := connectSettings(cmd)
		require.NoError(t, err)
		assert.Equal(t, "/dev/ttyACM0", raw.Port)
		assert.Equal(t, 19200, raw.Baud)
		assert.Equal(t, "HARDWARE", raw.FlowControl)
	})

	t.Run("port overrides profile", func(t *testing.T) {
		connectFlags = serialFlags{}
		cmd := newFlagCommand(&connectFlags)
		require.NoError(t, cmd.ParseFlags([]string{"--port", "/dev/ttyUSB3"}))
		connectProfile = "bench"

		raw, err := connectSettings(cmd)
		require.NoError(t, err)
		assert.Equal(t, "/dev/ttyUSB3", raw.Port)
		assert.Equal(t, 19200, raw.Baud)
	})

	t.Run("unknown profile", func(t *testing.T) {
		connectFlags = serialFlags{}
		cmd := newFlagCommand(&connectFlags)
		require.NoError(t, cmd.ParseFlags(nil))
		connectProfile = "missing"

		_, err := connectSettings(cmd)
		assert.ErrorIs(t, err, profile.ErrNotFound)
	})

	t.Run("no port", func(t *testing.T) {
		connectFlags = serialFlags{}
		cmd := newFlagCommand(&connectFlags)
		require.NoError(t, cmd.ParseFlags(nil))
		connectProfile = ""

		_, err := connectSettings(cmd)
		assert.Error(t, err)
	})
}

func TestUpdateProfiles(t *testing.T) {
	withApp(t)

	p, err := profile.New("a", serialcfg.FromCLI(serialcfg.CLIArgs{Port: "/dev/ttyS0", Baud: 9600, DataBits: 8, StopBits: 1, Parity: "n", FlowControl: "n"}))
	require.NoError(t, err)

	require.NoError(t, updateProfiles(func(c *profile.Collection) error {
		c.Put(p)
		return nil
	}))
	require.NoError(t, updateProfiles(func(c *profile.Collection) error {
		return c.Rename("a", "b")
	}))

	loaded, err := newProfileStore().Load(app.config.Profiles.Path)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "b", loaded[0].Name)

	err = updateProfiles(func(c *profile.Collection) error {
		return c.Rename("nope", "c")
	})
	assert.ErrorIs(t, err, profile.ErrNotFound)
}

func TestLoadPreferences(t *testing.T) {
	withApp(t)

	app.config.Preferences.Path = ""
	assert.Equal(t, config.DefaultPreferences(), loadPreferences(app.config, zap.NewNop()))

	app.config.Preferences.Path = filepath.Join(t.TempDir(), "preferences.json")
	assert.Equal(t, config.DefaultPreferences(), loadPreferences(app.config, zap.NewNop()))

	require.NoError(t, os.WriteFile(app.config.Preferences.Path, []byte(`{
    // echo what I type
    "local_echo": true,
    "prompt_on_quit": false
}`), 0644))
	prefs := loadPreferences(app.config, zap.NewNop())
	assert.True(t, prefs.LocalEcho)
	assert.False(t, prefs.PromptOnQuit)
}
