// Package server accepts client connections, dispatches requests to the
// controller on the timeline, journals mutations and exchanges bundles
// with the relay.
package server

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"codeuchat/pkg/controller"
	"codeuchat/pkg/ids"
	"codeuchat/pkg/relay"
	"codeuchat/pkg/telemetry"
	"codeuchat/pkg/timeline"
	"codeuchat/pkg/wal"
	"codeuchat/pkg/wire"
)

type Config struct {
	ServerID ids.ID
	Secret   relay.Secret
	Version  string

	ConnTimeout   time.Duration
	FlushInterval time.Duration
	RelayPoll     time.Duration
	RelayBatch    int
	RelayTimeout  time.Duration

	// RelayCursor is the last bundle id applied before a restart, as
	// recovered by wal.Replay.
	RelayCursor ids.ID
}

func (c *Config) applyDefaults() {
	if c.ConnTimeout <= 0 {
		c.ConnTimeout = 10 * time.Second
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 20 * time.Second
	}
	if c.RelayPoll <= 0 {
		c.RelayPoll = 5 * time.Second
	}
	if c.RelayBatch <= 0 {
		c.RelayBatch = relay.DefaultBatch
	}
	if c.RelayTimeout <= 0 {
		c.RelayTimeout = relay.DefaultTimeout
	}
	if c.Version == "" {
		c.Version = "dev"
	}
}

// exec runs on the timeline and writes the complete response.
type exec func(w *wire.Writer)

// handler decodes the request body off the timeline and returns the work
// to schedule.
type handler func(r *wire.Reader) exec

type Server struct {
	cfg     Config
	tl      *timeline.Timeline
	ctrl    *controller.Controller
	wal     *wal.Log
	relay   relay.Relay
	log     *slog.Logger
	metrics *telemetry.Chat

	handlers map[wire.Code]handler
	start    time.Time

	// lastSeen is the relay cursor. Timeline only.
	lastSeen ids.ID

	baseCtx context.Context
	wg      sync.WaitGroup
}

// New wires a server. A nil relay disables federation and a nil metrics
// set records into a private registry.
func New(cfg Config, tl *timeline.Timeline, ctrl *controller.Controller, log *wal.Log, r relay.Relay, metrics *telemetry.Chat, logger *slog.Logger) *Server {
	cfg.applyDefaults()
	if r == nil {
		r = relay.NoOp{}
	}
	if metrics == nil {
		metrics = telemetry.NewChat(prometheus.NewRegistry())
	}
	s := &Server{
		cfg:     cfg,
		tl:      tl,
		ctrl:    ctrl,
		wal:     log,
		relay:   r,
		log:     logger,
		metrics: metrics,
		start:   time.Now(),
		baseCtx: context.Background(),

		lastSeen: cfg.RelayCursor,
	}
	s.handlers = s.routes()
	return s
}

// Start schedules the recurring WAL flush and relay poll. ctx bounds the
// relay goroutines started later.
func (s *Server) Start(ctx context.Context) {
	s.baseCtx = ctx
	s.tl.ScheduleIn(s.cfg.FlushInterval, s.flushTask)
	if _, off := s.relay.(relay.NoOp); !off {
		s.tl.ScheduleNow(s.pollTask)
	}
}

// Serve accepts connections until ctx is done or ln fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	s.log.Info("server_listening", "addr", ln.Addr().String(), "server_id", s.cfg.ServerID)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.Handle(ctx, conn)
		}()
	}
}

// Handle answers exactly one request on conn and closes it.
func (s *Server) Handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(s.cfg.ConnTimeout))

	r := wire.NewReader(conn)
	code := r.Code()
	if err := r.Err(); err != nil {
		s.log.Warn("request_read_failed", "remote", conn.RemoteAddr().String(), "error", err)
		return
	}

	var run exec
	if h, ok := s.handlers[code]; ok {
		run = h(r)
		if err := r.Err(); err != nil {
			s.log.Warn("request_decode_failed", "code", code.String(), "error", err)
			run = nil
		}
	} else {
		s.log.Warn("unknown_request", "code", int32(code))
	}

	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	done := false
	start := time.Now()
	err := s.tl.Do(ctx, func() {
		if run == nil {
			w.Code(wire.NoMessage)
		} else {
			run(w)
		}
		done = true
	})
	if err != nil {
		s.log.Warn("request_abandoned", "code", code.String(), "error", err)
		return
	}
	s.metrics.ObserveRequest(code.String(), time.Since(start))
	if !done {
		buf.Reset()
		w = wire.NewWriter(&buf)
		w.Code(wire.NoMessage)
	}
	if err := w.Flush(); err != nil {
		s.log.Error("response_encode_failed", "code", code.String(), "error", err)
		return
	}
	if _, err := conn.Write(buf.Bytes()); err != nil {
		s.log.Warn("response_write_failed", "code", code.String(), "error", err)
	}
}

// Wait blocks until in-flight connections and relay calls finish.
func (s *Server) Wait() {
	s.wg.Wait()
}

// journal queues a committed mutation. A failed flush keeps the command
// queued for the next attempt.
func (s *Server) journal(cmd wal.Command) {
	if s.wal == nil {
		return
	}
	if err := s.wal.Append(cmd); err != nil {
		s.log.Error("wal_append_failed", "op", cmd.Op(), "error", err)
	}
}

func (s *Server) flushTask() {
	if s.wal == nil {
		return
	}
	if err := s.wal.Flush(); err != nil {
		s.log.Error("wal_periodic_flush_failed", "error", err)
	}
	s.tl.ScheduleIn(s.cfg.FlushInterval, s.flushTask)
}

// Flush writes pending log commands. Call from outside the timeline.
func (s *Server) Flush(ctx context.Context) error {
	if s.wal == nil {
		return nil
	}
	var ferr error
	if err := s.tl.Do(ctx, func() { ferr = s.wal.Flush() }); err != nil {
		return err
	}
	return ferr
}
