package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	return dir
}

func newFlags(t *testing.T, dir string, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse(append([]string{"--env-file", filepath.Join(dir, "missing.env")}, args...)))
	return flags
}

func TestLoad_Defaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load(newFlags(t, dir))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data", "dojo-trainer", "dojo.db"), cfg.DB.Path)
	assert.Equal(t, filepath.Join(dir, "config", "dojo-trainer"), cfg.ConfigDir)
	assert.Equal(t, 10*time.Second, cfg.Player.ReadyCountdown)
	assert.Equal(t, 10, cfg.Player.RepetitionCap)
	assert.Equal(t, time.Second, cfg.Player.Tick)
	assert.Equal(t, 5, cfg.Matcher.Threshold)
	assert.False(t, cfg.Wrist.Mock)
	assert.Equal(t, 3*time.Second, cfg.Wrist.RemoteTimeout)
}

func TestLoad_Precedence(t *testing.T) {
	dir := isolate(t)

	cfgDir := filepath.Join(dir, "config", "dojo-trainer")
	require.NoError(t, os.MkdirAll(cfgDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "config.toml"), []byte(`
[player]
repetition_cap = 6
ready_countdown = "3s"

[matcher]
threshold = 2

[wrist]
mock_port = 9000
`), 0o644))

	envFile := filepath.Join(dir, "dojo.env")
	require.NoError(t, os.WriteFile(envFile, []byte("DOJO_MATCHER_THRESHOLD=3\n"), 0o644))
	t.Setenv("DOJO_WRIST_MOCK_PORT", "9100")
	t.Cleanup(func() { os.Unsetenv("DOJO_MATCHER_THRESHOLD") })

	flags := newFlags(t, dir, "--env-file", envFile, "--repetition-cap", "4", "--mock-wrist")
	cfg, err := Load(flags)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Player.RepetitionCap, "flag beats file")
	assert.Equal(t, 3*time.Second, cfg.Player.ReadyCountdown, "file beats default")
	assert.Equal(t, 3, cfg.Matcher.Threshold, ".env beats file")
	assert.Equal(t, 9100, cfg.Wrist.MockPort, "env beats file")
	assert.True(t, cfg.Wrist.Mock)
}

func TestLoad_ExplicitConfigFileMustExist(t *testing.T) {
	dir := isolate(t)

	_, err := Load(newFlags(t, dir, "--config", filepath.Join(dir, "nope.toml")))
	assert.ErrorContains(t, err, "reading config")
}

func TestLoad_Validation(t *testing.T) {
	dir := isolate(t)

	_, err := Load(newFlags(t, dir, "--repetition-cap=-1"))
	assert.ErrorContains(t, err, "repetition_cap")

	t.Setenv("DOJO_PLAYER_TICK", "0s")
	_, err = Load(newFlags(t, dir))
	assert.ErrorContains(t, err, "player.tick")
}

func TestLoad_NilFlags(t *testing.T) {
	isolate(t)
	t.Chdir(t.TempDir())

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Player.RepetitionCap)
}
