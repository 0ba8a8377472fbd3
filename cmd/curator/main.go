package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/ambiguity"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/citation"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/indexer/embedding"
	searchhandler "github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/searcher/retriever"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/session"
	sessionhandler "github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/session/handler"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	tracing.SetEnabled(cfg.Tracing.Enabled)
	m := metrics.Default()
	slog.Info("starting curator", "port", cfg.Server.Port, "data_dir", cfg.Indexer.DataDir)

	holder, err := indexer.OpenHolder(cfg.Indexer.DataDir, m)
	if err != nil {
		slog.Error("failed to load index", "error", err)
		os.Exit(1)
	}
	snap := holder.Current()
	slog.Info("index loaded", "generation", snap.Generation, "chunks", snap.Chunks.Len(), "dense", snap.DenseAvailable())

	emb, err := embedding.New(cfg.Embedding)
	switch {
	case errors.Is(err, embedding.ErrDisabled):
		slog.Warn("embedding provider disabled, retrieval runs lexical-only")
		emb = nil
	case err != nil:
		slog.Error("failed to create embedder", "error", err)
		os.Exit(1)
	}

	tracker := citation.New(cfg.Session.CitationCap, cfg.Session.ExcerptLength)
	r, err := retriever.New(holder, emb, cfg.Retrieval,
		retriever.WithMetrics(m),
		retriever.WithCitations(tracker),
	)
	if err != nil {
		slog.Error("failed to create retriever", "error", err)
		os.Exit(1)
	}
	r.Attach(holder)

	classifier := ambiguity.New(cfg.Session.AmbiguityMinSupport, cfg.Session.MaxItems, tracker)
	machine := session.NewMachine(r, classifier, cfg.Retrieval.TopK, session.WithMachineMetrics(m))

	checker := health.NewChecker()
	var store session.Store
	switch cfg.Session.Store {
	case "redis":
		client, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Error("failed to connect to redis", "addr", cfg.Redis.Addr, "error", err)
			os.Exit(1)
		}
		defer client.Close()
		redisStore := session.NewRedisStore(client, cfg.Session.IdleTTL)
		store = redisStore
		checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
			if err := client.Ping(ctx); err != nil {
				return health.Down(err)
			}
			n, err := redisStore.Count(ctx)
			if err != nil {
				return health.Degraded(err.Error())
			}
			return health.Up(fmt.Sprintf("%s, %d sessions", cfg.Redis.Addr, n))
		})
	default:
		mem := session.NewMemoryStore(cfg.Session.IdleTTL)
		defer mem.Close()
		store = mem
	}
	sessions := session.NewService(machine, store, session.WithServiceMetrics(m))
	slog.Info("session store ready", "store", cfg.Session.Store, "idle_ttl", cfg.Session.IdleTTL)

	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		snap := holder.Current()
		if snap.Chunks.Len() == 0 {
			return health.Degraded("index is empty")
		}
		return health.Up(fmt.Sprintf("generation %d, %d chunks", snap.Generation, snap.Chunks.Len()))
	})
	checker.Register("retrieval", func(ctx context.Context) health.ComponentHealth {
		st := r.Status()
		if st.Degraded {
			return health.Degraded(fmt.Sprintf("serving %s, circuit %s", st.Mode, st.CircuitState))
		}
		return health.Up(string(st.Mode))
	})

	rpc := grpc.NewServer(cfg.Server.RequestTimeout)
	rpc.Observe(func(method, code string) {
		m.RPCRequestsTotal.WithLabelValues(method, code).Inc()
	})
	sessionhandler.New(sessions).Register(rpc)
	searchhandler.New(r, cfg.Retrieval.TopK, cfg.Retrieval.CandidatePool).Register(rpc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(cfg.Kafka.Brokers) > 0 {
		kc := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexRebuilt, consumer.HandleMessage(holder, cfg.Indexer.DataDir))
		reloads := consumer.New(kc)
		go func() {
			if err := reloads.Start(ctx); err != nil {
				slog.Error("reload consumer error", "error", err)
			}
		}()
		slog.Info("listening for index rebuilds", "topic", cfg.Kafka.Topics.IndexRebuilt, "group", cfg.Kafka.ConsumerGroup)
	}
	go reloadOnHangup(ctx, holder)

	shutdownOps := func(context.Context) error { return nil }
	if cfg.Metrics.Enabled {
		shutdownOps = metrics.StartServer(cfg.Metrics.Port,
			metrics.Route{Pattern: "/health/live", Handler: checker.LiveHandler()},
			metrics.Route{Pattern: "/health/ready", Handler: checker.ReadyHandler()},
		)
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		rpc.Stop()
		if err := shutdownOps(shutdownCtx); err != nil {
			slog.Error("ops server shutdown error", "error", err)
		}
	}()

	if err := rpc.Serve(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
		slog.Error("rpc server error", "error", err)
		os.Exit(1)
	}
	<-stopped
	slog.Info("curator stopped")
}

// reloadOnHangup reloads the index on SIGHUP, for deployments without
// Kafka.
func reloadOnHangup(ctx context.Context, holder *indexer.Holder) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			reloadCtx, cancel := context.WithTimeout(ctx, time.Minute)
			changed, err := holder.Reload(reloadCtx)
			cancel()
			if err != nil {
				slog.Error("index reload failed", "error", err)
				continue
			}
			slog.Info("index reload requested", "swapped", changed, "generation", holder.Current().Generation)
		}
	}
}
