// Package app wires the chat server together and owns its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"

	"codeuchat/pkg/config"
	"codeuchat/pkg/controller"
	"codeuchat/pkg/ids"
	"codeuchat/pkg/logger"
	"codeuchat/pkg/relay"
	"codeuchat/pkg/sensor"
	"codeuchat/pkg/server"
	"codeuchat/pkg/state"
	"codeuchat/pkg/store"
	"codeuchat/pkg/telemetry"
	"codeuchat/pkg/timeline"
	"codeuchat/pkg/wal"
)

type App struct {
	eff     *config.Effective
	version string
	paths   state.Paths
	log     *slog.Logger

	tl     *timeline.Timeline
	ctrl   *controller.Controller
	wal    *wal.Log
	srv    *server.Server
	reg    *prometheus.Registry
	backup *wal.Backup
	sensor *sensor.Sensor

	replay *wal.ReplayStats

	ready chan struct{}
	addr  net.Addr
}

// New prepares the data directory, replays the transaction log into a fresh
// store and builds every component. Nothing runs until Run.
func New(eff *config.Effective, version string) (*App, error) {
	cfg := eff.Config
	boot := eff.Bootstrap

	paths, err := state.EnsureStateDirs(boot.DataDir)
	if err != nil {
		return nil, err
	}

	gen, err := newGenerator(cfg.Server.IDGenerator, boot.ServerID)
	if err != nil {
		return nil, err
	}
	ctrl := controller.New(store.New(), gen, logger.Component("controller"))

	stats, err := wal.Replay(paths.WAL, ctrl, logger.Component("wal"))
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", paths.WAL, err)
	}

	var r relay.Relay = relay.NoOp{}
	if boot.RelayAddr != "" {
		r = relay.NewRemote(boot.RelayAddr, relay.WithTimeout(cfg.Relay.Timeout.Duration()))
	}

	a := &App{
		eff:     eff,
		version: version,
		paths:   paths,
		log:     logger.Component("app"),
		tl:      timeline.New(logger.Component("timeline")),
		ctrl:    ctrl,
		wal:     wal.Open(paths.WAL, cfg.WAL.Threshold, logger.Component("wal")),
		reg:     telemetry.NewRegistry(),
		replay:  stats,
		ready:   make(chan struct{}),
	}
	a.srv = server.New(server.Config{
		ServerID:      boot.ServerID,
		Secret:        boot.Secret,
		Version:       version,
		ConnTimeout:   cfg.Server.ConnTimeout.Duration(),
		FlushInterval: cfg.WAL.FlushInterval.Duration(),
		RelayPoll:     cfg.Relay.Poll.Duration(),
		RelayBatch:    cfg.Relay.Batch,
		RelayTimeout:  cfg.Relay.Timeout.Duration(),
		RelayCursor:   stats.RelayCursor,
	}, a.tl, ctrl, a.wal, r, telemetry.NewChat(a.reg), logger.Component("server"))

	if cfg.Backup.Enabled {
		a.backup = &wal.Backup{
			Source: paths.WAL,
			Dir:    paths.Backups,
			Cron:   cfg.Backup.Cron,
			Keep:   cfg.Backup.Keep,
			Log:    logger.Component("backup"),
		}
	}
	if cfg.Sensor.Enabled {
		a.sensor = sensor.New(paths.Root, sensor.Limits{
			MinFreeDisk: uint64(cfg.Sensor.MinFreeDisk.Int64()),
			MaxHeap:     uint64(cfg.Sensor.MaxHeap.Int64()),
		}, logger.Component("sensor"))
	}
	a.registerGauges()
	a.logSummary()
	return a, nil
}

func newGenerator(kind string, server ids.ID) (ids.Generator, error) {
	switch kind {
	case config.GeneratorSnowflake:
		return ids.NewSnowflake(server)
	case config.GeneratorRandom, "":
		return ids.NewRandom(server, time.Now()), nil
	default:
		return nil, fmt.Errorf("unknown id generator %q", kind)
	}
}

func (a *App) registerGauges() {
	telemetry.Gauge(a.reg, "codeuchat_timeline_pending_tasks", "Tasks waiting on the timeline.", func() float64 {
		return float64(a.tl.Len())
	})
	telemetry.Gauge(a.reg, "codeuchat_timeline_panics_total", "Timeline tasks that panicked.", func() float64 {
		return float64(a.tl.Stats().Panicked)
	})
	telemetry.Gauge(a.reg, "codeuchat_wal_pending_commands", "Commands queued for the next log flush.", func() float64 {
		return float64(a.wal.Pending())
	})
	telemetry.Gauge(a.reg, "codeuchat_wal_written_commands", "Commands written to the log since start.", func() float64 {
		return float64(a.wal.Written())
	})
	telemetry.Gauge(a.reg, "codeuchat_wal_flush_failures", "Failed log flushes since start.", func() float64 {
		return float64(a.wal.Failures())
	})
	if a.sensor != nil {
		telemetry.Gauge(a.reg, "codeuchat_disk_free_bytes", "Free bytes on the data volume at the last sample.", func() float64 {
			return float64(a.sensor.Last().DiskFree)
		})
	}
}

func (a *App) logSummary() {
	cfg := a.eff.Config
	logger.LogConfigSummary("config_summary", a.eff.Summary())
	logger.LogConfigSummary("config_durability_summary", []string{
		fmt.Sprintf("loss_window: %s", cfg.WAL.FlushInterval),
		fmt.Sprintf("commands_at_risk: %s", humanize.Comma(int64(cfg.WAL.Threshold-1))),
		fmt.Sprintf("replayed_lines: %s", humanize.Comma(a.replay.Lines)),
		fmt.Sprintf("replayed_applied: %s", humanize.Comma(a.replay.Applied)),
		fmt.Sprintf("replay_malformed: %s", humanize.Comma(a.replay.Malformed)),
		fmt.Sprintf("replay_rejected: %s", humanize.Comma(a.replay.Rejected)),
	})
}

// Ready is closed once the chat listener is bound.
func (a *App) Ready() <-chan struct{} { return a.ready }

// Addr is the bound chat address; valid after Ready.
func (a *App) Addr() net.Addr { return a.addr }

// Run serves until ctx is done or a listener fails, then drains and
// flushes the log.
func (a *App) Run(ctx context.Context) error {
	cfg := a.eff.Config
	ln, err := net.Listen("tcp", net.JoinHostPort(cfg.Server.Host, fmt.Sprint(a.eff.Bootstrap.Port)))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	a.addr = ln.Addr()
	close(a.ready)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 3)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.tl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("timeline: %w", err)
		}
	}()

	a.srv.Start(ctx)
	a.scheduleBackup(time.Now())
	a.scheduleSensor()

	if addr := cfg.Metrics.Address; addr != "" {
		mln, err := net.Listen("tcp", addr)
		if err != nil {
			cancel()
			wg.Wait()
			ln.Close()
			return fmt.Errorf("metrics listen: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := telemetry.Serve(ctx, mln, telemetry.MetricsHandler(a.reg), logger.Component("metrics")); err != nil {
				errCh <- fmt.Errorf("metrics: %w", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.srv.Serve(ctx, ln); err != nil {
			errCh <- fmt.Errorf("serve: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		a.log.Error("component_failed", "error", runErr)
	}
	cancel()
	wg.Wait()
	a.srv.Wait()
	return errors.Join(runErr, a.Shutdown())
}

// Shutdown writes whatever the log still holds. The timeline must no
// longer be running.
func (a *App) Shutdown() error {
	if err := a.wal.Flush(); err != nil {
		a.log.Error("wal_final_flush_failed", "pending", a.wal.Pending(), "error", err)
		return err
	}
	a.log.Info("shutdown_complete", "wal_written", a.wal.Written())
	return nil
}

func (a *App) scheduleBackup(now time.Time) {
	if a.backup == nil {
		return
	}
	next, err := a.backup.Next(now)
	if err != nil {
		a.log.Error("backup_schedule_failed", "cron", a.backup.Cron, "error", err)
		return
	}
	a.tl.ScheduleIn(time.Until(next), func() {
		if err := a.wal.Flush(); err != nil {
			a.log.Error("backup_flush_failed", "error", err)
		}
		if _, err := a.backup.Run(time.Now()); err != nil {
			a.log.Error("backup_failed", "error", err)
		}
		a.scheduleBackup(next)
	})
}

func (a *App) scheduleSensor() {
	if a.sensor == nil {
		return
	}
	interval := a.eff.Config.Sensor.Interval.Duration()
	var tick timeline.Task
	tick = func() {
		a.sensor.Check(time.Now())
		a.tl.ScheduleIn(interval, tick)
	}
	a.tl.ScheduleNow(tick)
}
