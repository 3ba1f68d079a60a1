package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

const (
	GeneratorRandom    = "random"
	GeneratorSnowflake = "snowflake"
)

// Defaults returns a config with every default filled in.
func Defaults() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Server.ConnTimeout <= 0 {
		c.Server.ConnTimeout = Duration(10 * time.Second)
	}
	if c.Server.IDGenerator == "" {
		c.Server.IDGenerator = GeneratorRandom
	}
	if c.WAL.Threshold <= 0 {
		c.WAL.Threshold = 5
	}
	if c.WAL.FlushInterval <= 0 {
		c.WAL.FlushInterval = Duration(20 * time.Second)
	}
	if c.Relay.Poll <= 0 {
		c.Relay.Poll = Duration(5 * time.Second)
	}
	if c.Relay.Batch <= 0 {
		c.Relay.Batch = 32
	}
	if c.Relay.Timeout <= 0 {
		c.Relay.Timeout = Duration(3 * time.Second)
	}
	if c.Backup.Cron == "" {
		c.Backup.Cron = "0 3 * * *"
	}
	if c.Backup.Keep <= 0 {
		c.Backup.Keep = 7
	}
	if c.Sensor.Interval <= 0 {
		c.Sensor.Interval = Duration(30 * time.Second)
	}
	if c.Sensor.MinFreeDisk <= 0 {
		c.Sensor.MinFreeDisk = 256 << 20
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	switch c.Server.IDGenerator {
	case GeneratorRandom, GeneratorSnowflake:
	default:
		errs = append(errs, fmt.Errorf("server.id_generator: unknown generator %q", c.Server.IDGenerator))
	}
	if c.Relay.Batch > 256 {
		errs = append(errs, fmt.Errorf("relay.batch: %d exceeds 256", c.Relay.Batch))
	}
	if c.Backup.Enabled && !gronx.New().IsValid(c.Backup.Cron) {
		errs = append(errs, fmt.Errorf("backup.cron: invalid expression %q", c.Backup.Cron))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: want text or json, got %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}
