package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the optional file/env configuration of a chat server. Identity
// and data location come from the bootstrap arguments instead.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	WAL     WALConfig     `yaml:"wal"`
	Relay   RelayConfig   `yaml:"relay"`
	Backup  BackupConfig  `yaml:"backup"`
	Sensor  SensorConfig  `yaml:"sensor"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	// Host the chat listener binds to; the port is a bootstrap argument.
	Host        string   `yaml:"host"`
	ConnTimeout Duration `yaml:"conn_timeout"`
	// IDGenerator is "random" or "snowflake".
	IDGenerator string `yaml:"id_generator"`
}

type WALConfig struct {
	Threshold     int      `yaml:"threshold"`
	FlushInterval Duration `yaml:"flush_interval"`
}

type RelayConfig struct {
	Poll    Duration `yaml:"poll"`
	Batch   int      `yaml:"batch"`
	Timeout Duration `yaml:"timeout"`
}

// BackupConfig schedules copies of the transaction log into state/backups.
type BackupConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
	Keep    int    `yaml:"keep"`
}

type SensorConfig struct {
	Enabled     bool      `yaml:"enabled"`
	Interval    Duration  `yaml:"interval"`
	MinFreeDisk SizeBytes `yaml:"min_free_disk"`
	MaxHeap     SizeBytes `yaml:"max_heap"`
}

// MetricsConfig enables the prometheus endpoint when Address is set.
type MetricsConfig struct {
	Address string `yaml:"address"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text|json
}

// SizeBytes is a byte count read from strings like "512MB" or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	v, err := ParseSize(node.Value)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s SizeBytes) Int64() int64 { return int64(s) }

func (s SizeBytes) String() string { return humanize.IBytes(uint64(s)) }

// ParseSize accepts humanized sizes and plain byte counts. Empty is zero.
func ParseSize(raw string) (SizeBytes, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return SizeBytes(i), nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		return SizeBytes(v), nil
	}
	return 0, fmt.Errorf("invalid size value: %q", raw)
}

// Duration reads "250ms" style strings or plain numbers of seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	v, err := ParseDuration(node.Value)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func ParseDuration(raw string) (Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		return Duration(td), nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return Duration(time.Duration(f * float64(time.Second))), nil
	}
	return 0, fmt.Errorf("invalid duration value: %q", raw)
}
