// Package service is the relay: servers publish bundles for their own
// messages and page through everyone's bundles by id.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"

	"codeuchat/pkg/ids"
	"codeuchat/pkg/relay"
	"codeuchat/pkg/telemetry"
)

type Config struct {
	RPS   float64
	Burst int
}

type Service struct {
	store    *BundleStore
	teams    Teams
	limiters *limiterPool
	log      *slog.Logger
	metrics  serviceMetrics
	reg      *prometheus.Registry
}

type serviceMetrics struct {
	requests *prometheus.CounterVec
	bundles  prometheus.Counter
}

func New(store *BundleStore, teams Teams, cfg Config, reg *prometheus.Registry, log *slog.Logger) *Service {
	s := &Service{
		store:    store,
		teams:    teams,
		limiters: newLimiterPool(cfg.RPS, cfg.Burst),
		log:      log,
		reg:      reg,
		metrics: serviceMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "relay_requests_total",
				Help: "Relay API requests, by route and status.",
			}, []string{"route", "status"}),
			bundles: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "relay_bundles_written_total",
				Help: "Bundles accepted since start.",
			}),
		},
	}
	reg.MustRegister(s.metrics.requests, s.metrics.bundles)
	return s
}

// Handler routes the relay API, /metrics and /healthz.
func (s *Service) Handler() fasthttp.RequestHandler {
	metrics := telemetry.MetricsHandler(s.reg)
	return func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case relay.BundlesPath:
			switch {
			case ctx.IsPost():
				s.write(ctx)
			case ctx.IsGet():
				s.read(ctx)
			default:
				ctx.Error("method not allowed", fasthttp.StatusMethodNotAllowed)
			}
			s.metrics.requests.WithLabelValues(string(ctx.Method()), strconv.Itoa(ctx.Response.StatusCode())).Inc()
		case "/metrics":
			metrics(ctx)
		case "/healthz":
			ctx.SetContentType("application/json")
			ctx.SetBodyString(`{"status":"ok"}`)
		default:
			ctx.Error("not found", fasthttp.StatusNotFound)
		}
	}
}

// authorize checks team credentials and the team's rate limit, writing the
// error response itself when it returns false.
func (s *Service) authorize(ctx *fasthttp.RequestCtx) (ids.ID, bool) {
	team, err := ids.Parse(string(ctx.Request.Header.Peek(relay.HeaderTeamID)))
	if err != nil {
		ctx.Error("bad team id", fasthttp.StatusUnauthorized)
		return ids.Null, false
	}
	secret, err := relay.ParseSecret(string(ctx.Request.Header.Peek(relay.HeaderTeamSecret)))
	if err != nil || !s.teams.Authenticate(team, secret) {
		s.log.Warn("relay_auth_failed", "team", team, "remote", ctx.RemoteAddr().String())
		ctx.Error("unauthorized", fasthttp.StatusUnauthorized)
		return ids.Null, false
	}
	if !s.limiters.allow(team) {
		ctx.Error("rate limited", fasthttp.StatusTooManyRequests)
		return ids.Null, false
	}
	return team, true
}

func (s *Service) write(ctx *fasthttp.RequestCtx) {
	team, ok := s.authorize(ctx)
	if !ok {
		return
	}
	var req relay.WriteRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		ctx.Error("invalid bundle: "+err.Error(), fasthttp.StatusBadRequest)
		return
	}
	if req.User.ID.IsNull() || req.Conversation.ID.IsNull() || req.Message.ID.IsNull() {
		ctx.Error("bundle components need ids", fasthttp.StatusBadRequest)
		return
	}
	b, err := s.store.Append(team, req)
	if err != nil {
		s.log.Error("bundle_write_failed", "team", team, "error", err)
		ctx.Error("storage failure", fasthttp.StatusInternalServerError)
		return
	}
	s.metrics.bundles.Inc()
	s.log.Debug("bundle_written", "id", b.ID, "team", team, "message", b.Message.ID)
	writeJSON(ctx, fasthttp.StatusCreated, b)
}

func (s *Service) read(ctx *fasthttp.RequestCtx) {
	if _, ok := s.authorize(ctx); !ok {
		return
	}
	args := ctx.QueryArgs()
	root := ids.Null
	if v := args.Peek("root"); len(v) > 0 {
		r, err := ids.Parse(string(v))
		if err != nil {
			ctx.Error("bad root", fasthttp.StatusBadRequest)
			return
		}
		root = r
	}
	limit := relay.DefaultBatch
	if v := args.Peek("limit"); len(v) > 0 {
		n, err := strconv.Atoi(string(v))
		if err != nil || n <= 0 {
			ctx.Error("bad limit", fasthttp.StatusBadRequest)
			return
		}
		limit = n
	}
	if limit > relay.MaxBatch {
		limit = relay.MaxBatch
	}
	bundles, err := s.store.After(root, limit)
	if err != nil {
		s.log.Error("bundle_read_failed", "root", root, "error", err)
		ctx.Error("storage failure", fasthttp.StatusInternalServerError)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, relay.ReadResponse{Bundles: bundles})
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		ctx.Error("encode failure", fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(data)
}

// SweepLimiters drops idle rate limiters every interval until ctx is done.
func (s *Service) SweepLimiters(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.limiters.sweep(now); n > 0 {
				s.log.Debug("limiters_swept", "count", n)
			}
		}
	}
}
