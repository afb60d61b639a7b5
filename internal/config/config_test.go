package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	wd, wdErr := os.Getwd()
	require.NoError(t, wdErr)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "super-serial", cfg.App.Name)
	assert.Equal(t, "127.0.0.1:8086", cfg.GetServerAddr())
	assert.Equal(t, time.Second, cfg.Link.PollInterval)
	assert.Equal(t, 100*time.Millisecond, cfg.Link.ReadWindow)
	assert.Equal(t, "connections.json", cfg.Profiles.Path)

	args := cfg.Link.CLIDefaults()
	assert.Equal(t, 115200, args.Baud)
	assert.Equal(t, 8, args.DataBits)
	assert.Equal(t, 1.0, args.StopBits)
	assert.Equal(t, "n", args.Parity)
	assert.Equal(t, "n", args.FlowControl)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9000"
logging:
  level: debug
  output: stdout
link:
  poll_interval: 250ms
  defaults:
    baud: 9600
    stop_bits: 1.5
    parity: e
profiles:
  path: /tmp/profiles.yaml
`), 0644))
	t.Setenv("SUPER_SERIAL_SERVER_HOST", "0.0.0.0")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.GetServerAddr())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 250*time.Millisecond, cfg.Link.PollInterval)
	assert.Equal(t, 9600, cfg.Link.Defaults.Baud)
	assert.Equal(t, 1.5, cfg.Link.Defaults.StopBits)
	assert.Equal(t, "e", cfg.Link.Defaults.Parity)
	assert.Equal(t, "/tmp/profiles.yaml", cfg.Profiles.Path)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad level", "logging:\n  level: loud\n"},
		{"bad format", "logging:\n  format: xml\n"},
		{"bad environment", "app:\n  environment: moon\n"},
		{"zero poll interval", "link:\n  poll_interval: 0s\n"},
		{"empty profiles path", "profiles:\n  path: \"\"\n"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(test.yaml), 0644))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 4096, cfg.Link.ReadBufferSize)
	assert.True(t, cfg.Preferences.Watch)
	assert.True(t, cfg.IsDebugEnabled())
	assert.False(t, cfg.IsProduction())
}

func TestStripLineComments(t *testing.T) {
	in := `{
    // the font
    "font_face": "Consolas", // trailing
    "url": "http://example.com/x",
    "quote": "say \"//hi\""
}`
	out := string(StripLineComments([]byte(in)))

	assert.NotContains(t, out, "the font")
	assert.NotContains(t, out, "trailing")
	assert.Contains(t, out, `"http://example.com/x"`)
	assert.Contains(t, out, `"say \"//hi\""`)
}

func TestLoadPreferences(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preferences.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
    // Font used by the terminal
    "font_face": "Consolas",
    "font_size": 14
}`), 0644))

	prefs, err := LoadPreferences(path)
	require.NoError(t, err)
	assert.Equal(t, "Consolas", prefs.FontFace)
	assert.Equal(t, 14, prefs.FontSize)
	assert.True(t, prefs.PromptOnQuit, "missing keys keep defaults")
	assert.False(t, prefs.LocalEcho)

	require.NoError(t, os.WriteFile(path, []byte(`{"local_echo": true} // toggled from the menu`), 0644))
	prefs, err = LoadPreferences(path)
	require.NoError(t, err)
	assert.True(t, prefs.LocalEcho)

	require.NoError(t, os.WriteFile(path, []byte(`{"font_size": 0}`), 0644))
	_, err = LoadPreferences(path)
	assert.Error(t, err)

	_, err = LoadPreferences(filepath.Join(t.TempDir(), "none.json"))
	assert.Error(t, err)
}

func TestWatchPreferences(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "preferences.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"font_size": 12}`), 0644))

	var mu sync.Mutex
	var got []Preferences
	w, err := WatchPreferences(path, zap.NewNop(), func(p Preferences) {
		mu.Lock()
		got = append(got, p)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer w.Close()

	// a broken version is skipped
	require.NoError(t, os.WriteFile(path, []byte(`{"font_size": `), 0644))
	time.Sleep(300 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte(`{"font_size": 20, "prompt_on_quit": false}`), 0644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0 && got[len(got)-1].FontSize == 20
	}, 3*time.Second, 20*time.Millisecond)

	mu.Lock()
	for _, p := range got {
		assert.NotZero(t, p.FontSize)
	}
	assert.False(t, got[len(got)-1].PromptOnQuit)
	mu.Unlock()

	// unrelated files in the directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{}`), 0644))

	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}
