package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"codeuchat/pkg/ids"
	"codeuchat/pkg/relay"
)

const envPrefix = "CODEUCHAT_"

var ErrUsage = errors.New("usage: codeuchat [flags] <server-id> <secret-hex> <port> <data-dir> [relay-host:port]")

// Bootstrap holds the positional startup arguments.
type Bootstrap struct {
	ServerID  ids.ID
	Secret    relay.Secret
	Port      int
	DataDir   string
	RelayAddr string
}

// Flags holds parsed command-line flags, the remaining positional args and
// which flags were set explicitly.
type Flags struct {
	Config string
	Args   []string
	Set    map[string]bool
}

// ParseFlags parses args (without the program name) into a dedicated flag set.
func ParseFlags(args []string, output io.Writer) (Flags, error) {
	fs := flag.NewFlagSet("codeuchat", flag.ContinueOnError)
	fs.SetOutput(output)
	cfgPath := fs.String("config", "", "path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return Flags{Config: *cfgPath, Args: fs.Args(), Set: set}, nil
}

// ParseBootstrap validates the positional arguments. The data directory
// must already exist.
func ParseBootstrap(args []string) (Bootstrap, error) {
	if len(args) != 4 && len(args) != 5 {
		return Bootstrap{}, ErrUsage
	}
	var b Bootstrap
	id, err := ids.Parse(args[0])
	if err != nil || id.IsNull() {
		return b, fmt.Errorf("invalid server id %q: %w", args[0], ErrUsage)
	}
	b.ServerID = id
	if b.Secret, err = relay.ParseSecret(args[1]); err != nil {
		return b, fmt.Errorf("invalid secret: %w", err)
	}
	port, err := strconv.Atoi(args[2])
	if err != nil || port < 0 || port > 65535 {
		return b, fmt.Errorf("invalid port %q: %w", args[2], ErrUsage)
	}
	b.Port = port
	fi, err := os.Stat(args[3])
	if err != nil {
		return b, fmt.Errorf("data dir: %w", err)
	}
	if !fi.IsDir() {
		return b, fmt.Errorf("data dir %s is not a directory", args[3])
	}
	b.DataDir = args[3]
	if len(args) == 5 {
		if !strings.Contains(args[4], ":") {
			return b, fmt.Errorf("invalid relay address %q: want host:port", args[4])
		}
		b.RelayAddr = args[4]
	}
	return b, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env")
// without overriding variables already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ResolveConfigPath prefers an explicit flag, then CODEUCHAT_CONFIG. An
// empty result means no config file.
func ResolveConfigPath(flagVal string, flagSet bool) string {
	if flagSet {
		return flagVal
	}
	if v := os.Getenv(envPrefix + "CONFIG"); v != "" {
		return v
	}
	return flagVal
}

// Load reads a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &c, nil
}

// ApplyEnv overrides cfg with CODEUCHAT_* variables and reports whether any
// were present.
func ApplyEnv(cfg *Config) (bool, error) {
	used := false
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			*dst = strings.TrimSpace(v)
			used = true
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = n
			used = true
		}
	}
	dur := func(key string, dst *Duration) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			d, err := ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = d
			used = true
		}
	}
	size := func(key string, dst *SizeBytes) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			s, err := ParseSize(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = s
			used = true
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "1", "true", "yes":
				*dst = true
			default:
				*dst = false
			}
			used = true
		}
	}

	str("HOST", &cfg.Server.Host)
	dur("CONN_TIMEOUT", &cfg.Server.ConnTimeout)
	str("ID_GENERATOR", &cfg.Server.IDGenerator)
	num("WAL_THRESHOLD", &cfg.WAL.Threshold)
	dur("WAL_FLUSH_INTERVAL", &cfg.WAL.FlushInterval)
	dur("RELAY_POLL", &cfg.Relay.Poll)
	num("RELAY_BATCH", &cfg.Relay.Batch)
	dur("RELAY_TIMEOUT", &cfg.Relay.Timeout)
	boolean("BACKUP_ENABLED", &cfg.Backup.Enabled)
	str("BACKUP_CRON", &cfg.Backup.Cron)
	num("BACKUP_KEEP", &cfg.Backup.Keep)
	boolean("SENSOR_ENABLED", &cfg.Sensor.Enabled)
	dur("SENSOR_INTERVAL", &cfg.Sensor.Interval)
	size("SENSOR_MIN_FREE_DISK", &cfg.Sensor.MinFreeDisk)
	size("SENSOR_MAX_HEAP", &cfg.Sensor.MaxHeap)
	str("METRICS_ADDR", &cfg.Metrics.Address)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)

	return used, errors.Join(errs...)
}
