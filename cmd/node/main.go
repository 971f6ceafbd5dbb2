package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"chordring/internal/bootstrap"
	"chordring/internal/bootstrap/register"
	"chordring/internal/config"
	"chordring/internal/domain"
	"chordring/internal/logger"
	zapfactory "chordring/internal/logger/zap"
	"chordring/internal/node"
	"chordring/internal/ring"
	"chordring/internal/storage"
	"chordring/internal/telemetry"
	"chordring/internal/transport"
)

var defaultConfigPath = "config/node/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %q: %v", *configPath, err)
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.ValidateConfig(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	var lgr logger.Logger
	if cfg.Logger.Active {
		zapLog, err := zapfactory.New(cfg.Logger)
		if err != nil {
			log.Fatalf("failed to initialize logger: %v", err)
		}
		defer func() { _ = zapLog.Sync() }()
		lgr = zapfactory.NewZapAdapter(zapLog)
	} else {
		lgr = logger.NopLogger{}
	}
	cfg.LogConfig(lgr)

	lis, advertised, err := transport.Listen(cfg.Ring.Mode, cfg.Node.Bind, cfg.Node.Host, cfg.Node.Port)
	if err != nil {
		lgr.Error("failed to initialize listener", logger.F("err", err.Error()))
		os.Exit(1)
	}
	lgr.Debug("listener bound", logger.F("advertised", advertised))

	space, err := domain.NewSpace(cfg.Ring.IDBits)
	if err != nil {
		lgr.Error("failed to initialize identifier space", logger.F("err", err.Error()))
		os.Exit(1)
	}

	var id domain.ID
	if cfg.Node.ID == "" {
		id = space.NewIDFromString(advertised)
	} else {
		id, err = space.FromHexString(cfg.Node.ID)
		if err != nil {
			lgr.Error("invalid node id in configuration", logger.F("err", err.Error()))
			os.Exit(1)
		}
	}
	host, port, err := splitAdvertised(advertised)
	if err != nil {
		lgr.Error("invalid advertised address", logger.F("advertised", advertised), logger.F("err", err.Error()))
		os.Exit(1)
	}
	self := domain.NodeRef{ID: id, IP: host, Port: port}
	lgr = lgr.Named("node").With(logger.FNode("self", self))
	lgr.Info("node initializing")

	shutdownTracer := telemetry.InitTracer(cfg.Telemetry, "chordring-node", id)
	defer shutdownTracer(context.Background())

	rt := ring.New(self, space, ring.WithLogger(lgr.Named("ring")))
	pool := transport.NewPool(transport.WithPoolLogger(lgr.Named("pool")))
	store := storage.NewMemory(lgr.Named("storage"))
	n := node.New(rt, pool, store, cfg.Ring.HopLimit, cfg.Ring.RPCTimeout, node.WithLogger(lgr))

	srv := transport.New(lis, n.Dispatch, transport.WithLogger(lgr.Named("server")))
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve() }()
	lgr.Debug("server started")

	var disc bootstrap.Bootstrap
	switch cfg.Bootstrap.Mode {
	case "init":
		disc = bootstrap.NewStaticBootstrap(nil)
	case "static":
		disc = bootstrap.NewStaticBootstrap(cfg.Bootstrap.Peers)
	case "dns":
		var registrar register.Registrar
		if cfg.Bootstrap.Register.Enabled {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			registrar, err = register.NewRegistrar(ctx, cfg.Bootstrap.Register)
			cancel()
			if err != nil {
				lgr.Error("failed to initialize registrar", logger.F("err", err.Error()))
				srv.Stop()
				os.Exit(1)
			}
		}
		disc = bootstrap.NewDNSBootstrap(cfg.Bootstrap, lgr.Named("bootstrap"), registrar)
	default:
		lgr.Error("unsupported bootstrap mode", logger.F("mode", cfg.Bootstrap.Mode))
		srv.Stop()
		os.Exit(1)
	}

	discCtx, discCancel := context.WithTimeout(context.Background(), 10*time.Second)
	peers, err := disc.Discover(discCtx)
	discCancel()
	if err != nil {
		lgr.Error("failed to resolve bootstrap peers", logger.F("err", err.Error()))
		srv.Stop()
		os.Exit(1)
	}
	lgr.Info("resolved bootstrap peers", logger.F("peers", peers))

	if len(peers) == 0 {
		n.CreateRing()
	} else {
		joinCtx, joinCancel := context.WithTimeout(context.Background(), cfg.Ring.RPCTimeout*time.Duration(cfg.Ring.HopLimit+2))
		err := n.Join(joinCtx, peers[0])
		joinCancel()
		if err != nil {
			lgr.Error("failed to join ring", logger.F("err", err.Error()))
			srv.Stop()
			os.Exit(1)
		}
	}

	regCtx, regCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := disc.Register(regCtx, self); err != nil {
		lgr.Warn("failed to register node", logger.F("err", err.Error()))
	} else {
		lgr.Info("node registered")
	}
	regCancel()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := disc.Deregister(ctx, self); err != nil {
			lgr.Warn("failed to deregister node", logger.F("err", err.Error()))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		lgr.Info("shutdown signal received, departing the ring")
		departCtx, departCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := n.Depart(departCtx); err != nil {
			lgr.Warn("graceful depart failed", logger.F("err", err.Error()))
		}
		departCancel()
		if err := srv.Stop(); err != nil {
			lgr.Warn("server stop failed", logger.F("err", err.Error()))
		}
		pool.Close()
	case err := <-serveErr:
		lgr.Error("server terminated unexpectedly", logger.F("err", err.Error()))
		pool.Close()
		os.Exit(1)
	}
}

func splitAdvertised(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, err
	}
	return host, port, nil
}
