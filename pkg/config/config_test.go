package config

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeuchat/pkg/ids"
)

func TestParseBootstrap(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	b, err := ParseBootstrap([]string{"42", "abcd", "2007", dir})
	require.NoError(t, err)
	assert.Equal(t, ids.ID(42), b.ServerID)
	assert.Equal(t, "abcd", b.Secret.String())
	assert.Equal(t, 2007, b.Port)
	assert.Empty(t, b.RelayAddr)

	b, err = ParseBootstrap([]string{"42", "abcd", "2007", dir, "relay.local:2008"})
	require.NoError(t, err)
	assert.Equal(t, "relay.local:2008", b.RelayAddr)

	cases := map[string][]string{
		"too few":        {"42", "abcd", "2007"},
		"too many":       {"42", "abcd", "2007", dir, "r:1", "extra"},
		"bad id":         {"x", "abcd", "2007", dir},
		"null id":        {"0", "abcd", "2007", dir},
		"bad secret":     {"42", "zz", "2007", dir},
		"empty secret":   {"42", "", "2007", dir},
		"bad port":       {"42", "abcd", "port", dir},
		"port range":     {"42", "abcd", "70000", dir},
		"missing dir":    {"42", "abcd", "2007", filepath.Join(dir, "absent")},
		"file not dir":   {"42", "abcd", "2007", file},
		"relay no colon": {"42", "abcd", "2007", dir, "relay"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseBootstrap(args); err == nil {
				t.Fatalf("expected error for %v", args)
			}
		})
	}
}

func TestLoadParsesHumanValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codeuchat.yaml")
	body := `
server:
  host: 127.0.0.1
  conn_timeout: 250ms
wal:
  threshold: 9
  flush_interval: 2
sensor:
  enabled: true
  min_free_disk: 1GiB
  max_heap: "1048576"
backup:
  enabled: true
  cron: "*/5 * * * *"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 250*time.Millisecond, cfg.Server.ConnTimeout.Duration())
	assert.Equal(t, 9, cfg.WAL.Threshold)
	assert.Equal(t, 2*time.Second, cfg.WAL.FlushInterval.Duration())
	assert.Equal(t, int64(1<<30), cfg.Sensor.MinFreeDisk.Int64())
	assert.Equal(t, int64(1<<20), cfg.Sensor.MaxHeap.Int64())
	assert.True(t, cfg.Backup.Enabled)

	require.NoError(t, os.WriteFile(path, []byte("wal:\n  flush_interval: soon\n"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("CODEUCHAT_WAL_THRESHOLD", "12")
	t.Setenv("CODEUCHAT_RELAY_POLL", "750ms")
	t.Setenv("CODEUCHAT_BACKUP_ENABLED", "yes")
	t.Setenv("CODEUCHAT_SENSOR_MIN_FREE_DISK", "10MB")
	t.Setenv("CODEUCHAT_METRICS_ADDR", ":9100")

	cfg := &Config{}
	used, err := ApplyEnv(cfg)
	require.NoError(t, err)
	assert.True(t, used)
	assert.Equal(t, 12, cfg.WAL.Threshold)
	assert.Equal(t, 750*time.Millisecond, cfg.Relay.Poll.Duration())
	assert.True(t, cfg.Backup.Enabled)
	assert.Equal(t, int64(10_000_000), cfg.Sensor.MinFreeDisk.Int64())
	assert.Equal(t, ":9100", cfg.Metrics.Address)

	t.Setenv("CODEUCHAT_RELAY_BATCH", "many")
	_, err = ApplyEnv(&Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CODEUCHAT_RELAY_BATCH")
}

func TestDefaultsAndValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5, cfg.WAL.Threshold)
	assert.Equal(t, 20*time.Second, cfg.WAL.FlushInterval.Duration())
	assert.Equal(t, 5*time.Second, cfg.Relay.Poll.Duration())
	assert.Equal(t, 32, cfg.Relay.Batch)
	assert.Equal(t, GeneratorRandom, cfg.Server.IDGenerator)

	cfg.Backup.Enabled = true
	cfg.Backup.Cron = "every day"
	cfg.Server.IDGenerator = "uuid"
	cfg.Logging.Format = "xml"
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"backup.cron", "server.id_generator", "logging.format"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestResolveLayers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("wal:\n  threshold: 3\nrelay:\n  batch: 8\n"), 0o600))
	t.Setenv("CODEUCHAT_RELAY_BATCH", "16")

	flags, err := ParseFlags([]string{"-config", path, "7", "ff", "0", dir}, io.Discard)
	require.NoError(t, err)
	eff, err := Resolve(flags)
	require.NoError(t, err)
	assert.Equal(t, []string{"defaults", "file", "env"}, eff.Source)
	assert.Equal(t, 3, eff.Config.WAL.Threshold)
	assert.Equal(t, 16, eff.Config.Relay.Batch)
	assert.Equal(t, ids.ID(7), eff.Bootstrap.ServerID)
	assert.NotEmpty(t, eff.Summary())

	flags, err = ParseFlags([]string{"-config", filepath.Join(dir, "missing.yaml"), "7", "ff", "0", dir}, io.Discard)
	require.NoError(t, err)
	_, err = Resolve(flags)
	assert.True(t, errors.Is(err, os.ErrNotExist), "explicit config must exist: %v", err)

	_, err = Resolve(Flags{Args: []string{"7", "ff"}})
	assert.ErrorIs(t, err, ErrUsage)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CODEUCHAT_TEST_DOTENV=loaded\n"), 0o600))
	t.Setenv("CODEUCHAT_TEST_DOTENV", "")
	os.Unsetenv("CODEUCHAT_TEST_DOTENV")

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "absent.env")))
	assert.Equal(t, "loaded", os.Getenv("CODEUCHAT_TEST_DOTENV"))
}
