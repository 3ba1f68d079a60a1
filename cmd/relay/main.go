package main

import (
	"context"
	"flag"
	"net"
	"os"
	"time"

	"codeuchat/pkg/config"
	"codeuchat/pkg/logger"
	"codeuchat/pkg/relay/service"
	"codeuchat/pkg/state/shutdown"
	"codeuchat/pkg/telemetry"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		logger.Error("dotenv_load_failed", "error", err)
		os.Exit(1)
	}

	addr := flag.String("addr", ":2008", "listen address")
	db := flag.String("db", "./relay-data", "pebble directory for stored bundles")
	teamsPath := flag.String("teams", "./teams.yaml", "YAML file of team ids and secrets")
	rps := flag.Float64("rps", 20, "requests per second allowed per team")
	burst := flag.Int("burst", 40, "burst allowed per team")
	node := flag.Int64("node", 1, "snowflake node id for bundle ids")
	level := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Parse()

	logger.Init(*level, "text")
	defer logger.Sync()
	log := logger.Component("relay")

	teams, err := service.LoadTeams(*teamsPath)
	if err != nil {
		shutdown.Abort("", "load teams", err)
	}
	store, err := service.OpenBundleStore(*db, *node, logger.Component("bundles"))
	if err != nil {
		shutdown.Abort("", "open bundle store", err)
	}
	defer store.Close()

	reg := telemetry.NewRegistry()
	svc := service.New(store, teams, service.Config{RPS: *rps, Burst: *burst}, reg, log)

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		shutdown.Abort("", "listen", err)
	}

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()
	go svc.SweepLimiters(ctx, time.Minute)

	log.Info("relay_starting", "addr", ln.Addr().String(), "db", *db, "teams", len(teams))
	if err := telemetry.Serve(ctx, ln, svc.Handler(), log); err != nil {
		log.Error("relay_stopped", "error", err)
		cancel()
		store.Close()
		logger.Sync()
		os.Exit(1)
	}
	log.Info("relay_stopped")
}
