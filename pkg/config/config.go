// Package config resolves the chat server configuration from bootstrap
// arguments, an optional YAML file and CODEUCHAT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
)

// Effective is the merged result handed to the application.
type Effective struct {
	Config    *Config
	Bootstrap Bootstrap
	// Source lists the layers that contributed: "defaults", "file", "env".
	Source []string
	Path   string
}

// Resolve layers file and env over the defaults. An explicitly requested
// config file must exist; a file only named by default may be absent.
func Resolve(flags Flags) (*Effective, error) {
	boot, err := ParseBootstrap(flags.Args)
	if err != nil {
		return nil, err
	}
	eff := &Effective{Config: &Config{}, Bootstrap: boot, Source: []string{"defaults"}}

	path := ResolveConfigPath(flags.Config, flags.Set["config"])
	if path != "" {
		cfg, err := Load(path)
		switch {
		case err == nil:
			eff.Config = cfg
			eff.Path = path
			eff.Source = append(eff.Source, "file")
		case errors.Is(err, os.ErrNotExist) && !flags.Set["config"]:
		default:
			return nil, fmt.Errorf("config file: %w", err)
		}
	}

	used, err := ApplyEnv(eff.Config)
	if err != nil {
		return nil, err
	}
	if used {
		eff.Source = append(eff.Source, "env")
	}
	eff.Config.ApplyDefaults()
	if err := eff.Config.Validate(); err != nil {
		return nil, err
	}
	return eff, nil
}

// Summary renders the durability-relevant settings for the startup banner.
func (e *Effective) Summary() []string {
	c := e.Config
	b := e.Bootstrap
	relay := "disabled"
	if b.RelayAddr != "" {
		relay = fmt.Sprintf("%s (poll %s, batch %d)", b.RelayAddr, c.Relay.Poll, c.Relay.Batch)
	}
	backup := "disabled"
	if c.Backup.Enabled {
		backup = fmt.Sprintf("%q keep %d", c.Backup.Cron, c.Backup.Keep)
	}
	metrics := "disabled"
	if c.Metrics.Address != "" {
		metrics = c.Metrics.Address
	}
	return []string{
		fmt.Sprintf("server id: %s", b.ServerID),
		fmt.Sprintf("listen: %s:%d", c.Server.Host, b.Port),
		fmt.Sprintf("data dir: %s", b.DataDir),
		fmt.Sprintf("id generator: %s", c.Server.IDGenerator),
		fmt.Sprintf("wal: flush every %s or %s pending", c.WAL.FlushInterval, humanize.Comma(int64(c.WAL.Threshold))),
		fmt.Sprintf("relay: %s", relay),
		fmt.Sprintf("backups: %s", backup),
		fmt.Sprintf("metrics: %s", metrics),
		fmt.Sprintf("sources: %v", e.Source),
	}
}
