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

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/indexer/embedding"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	corpusPath := flag.String("corpus", "", "corpus directory (defaults to indexer.corpusDir)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	tracing.SetEnabled(cfg.Tracing.Enabled)

	corpus := cfg.Indexer.CorpusDir
	if *corpusPath != "" {
		corpus = *corpusPath
	}
	slog.Info("starting index rebuild", "corpus", corpus, "data_dir", cfg.Indexer.DataDir)

	opts := []indexer.Option{indexer.WithMetrics(metrics.Default())}

	emb, err := embedding.New(cfg.Embedding)
	switch {
	case errors.Is(err, embedding.ErrDisabled):
		slog.Warn("embedding provider disabled, building lexical-only index")
	case err != nil:
		slog.Error("failed to create embedder", "error", err)
		os.Exit(1)
	default:
		opts = append(opts, indexer.WithEmbedder(emb, cfg.Retrieval.ExternalTimeout))
		slog.Info("dense index enabled", "model", emb.Model(), "dimensions", emb.Dimensions())
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexRebuilt)
		defer producer.Close()
		opts = append(opts, indexer.WithPublisher(producer))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.Host != "" {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, document catalog disabled", "error", err)
		} else {
			defer db.Close()
			cat := catalog.New(db)
			if err := cat.EnsureSchema(ctx); err != nil {
				slog.Error("failed to create catalog schema", "error", err)
				os.Exit(1)
			}
			opts = append(opts, indexer.WithCatalog(cat))
		}
	}

	report, err := indexer.NewBuilder(cfg.Indexer, opts...).Rebuild(ctx, corpus)
	if err != nil {
		slog.Error("index rebuild failed", "error", err)
		os.Exit(1)
	}
	if !report.DenseAvailable && emb != nil {
		slog.Warn("generation committed lexical-only", "reason", report.DenseError)
	}
	fmt.Printf("generation %d: %d documents, %d chunks (%d embedded, %d reused) in %s\n",
		report.Generation, report.Documents, report.Chunks, report.Embedded, report.Reused, report.Duration)
}
