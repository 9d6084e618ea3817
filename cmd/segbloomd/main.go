// Command segbloomd serves segment Bloom filters over HTTP.
//
// Usage:
//
//	segbloomd                           # defaults: ./2011.csv on 127.0.0.1:7878
//	segbloomd -config segbloomd.yaml    # load configuration from YAML
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hupe1980/segbloom"
	"github.com/hupe1980/segbloom/blobstore"
	minioblob "github.com/hupe1980/segbloom/blobstore/minio"
	s3blob "github.com/hupe1980/segbloom/blobstore/s3"
	"github.com/hupe1980/segbloom/config"
	"github.com/hupe1980/segbloom/promcollector"
	"github.com/hupe1980/segbloom/server"
)

func main() {
	configPath := flag.String("config", "", "path to segbloomd.yaml config file")
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "segbloomd: config: %v\n", err)
			os.Exit(1)
		}
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "segbloomd: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("segbloomd: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *segbloom.Logger) error {
	store, err := newStore(ctx, cfg.Source, logger.Logger)
	if err != nil {
		return fmt.Errorf("source store: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	metrics, err := promcollector.New(reg)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	compression, err := cfg.Bloom.ParseCompression()
	if err != nil {
		return err
	}

	svc, err := segbloom.New(store, cfg.Source.Name,
		segbloom.WithExpectedItems(cfg.Bloom.ExpectedItems),
		segbloom.WithFalsePositiveRate(cfg.Bloom.FalsePositiveRate),
		segbloom.WithMaxLineBytes(cfg.Bloom.MaxLineBytes),
		segbloom.WithCompression(compression),
		segbloom.WithResourceLimits(cfg.ResourceLimits()),
		segbloom.WithMetricsCollector(metrics),
		segbloom.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	if err := promcollector.RegisterStats(reg, svc); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.New(svc, server.WithLogger(logger.Logger), server.WithGatherer(reg)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	settings := svc.Settings()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("segbloomd listening",
			"addr", cfg.Listen,
			"source_kind", cfg.Source.Kind,
			"source", cfg.Source.Name,
			"expected_items", settings.ExpectedItems,
			"false_positive_rate", settings.FalsePositiveRate,
			"max_line_bytes", settings.MaxLineBytes,
			"compression", settings.Compression,
			"max_concurrent_builds", settings.Limits.MaxConcurrentBuilds,
			"memory_limit_bytes", settings.Limits.MemoryLimitBytes,
			"source_bytes_per_sec", settings.Limits.SourceBytesPerSec,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("segbloomd shutting down", "timeout", cfg.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	// Builds started by requests keep running after their request ends.
	if err := svc.Wait(shutdownCtx); err != nil {
		logger.Warn("abandoning in-flight segment builds", "building", svc.Stats().Building, "error", err)
	}

	return nil
}

func newLogger(cfg config.LogConfig) (*segbloom.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(cfg.Format, "json") {
		return segbloom.NewJSONLogger(level), nil
	}
	return segbloom.NewTextLogger(level), nil
}

func newStore(ctx context.Context, cfg config.SourceConfig, logger *slog.Logger) (blobstore.Store, error) {
	switch cfg.Kind {
	case config.SourceS3:
		opts := []s3blob.Option{
			s3blob.WithPrefix(cfg.Prefix),
			s3blob.WithRegion(cfg.Region),
			s3blob.WithSpoolDir(cfg.SpoolDir),
		}
		if cfg.PartSizeMB > 0 {
			opts = append(opts, s3blob.WithPartSize(cfg.PartSizeBytes(), cfg.Concurrency))
		}
		return s3blob.New(ctx, cfg.Bucket, opts...)

	case config.SourceMinIO:
		client, err := minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
			Secure: cfg.UseSSL,
			Region: cfg.Region,
		})
		if err != nil {
			return nil, err
		}
		return minioblob.NewStore(client, cfg.Bucket, cfg.Prefix), nil

	default:
		return blobstore.NewLocalStore("", blobstore.WithLocalLogger(logger)), nil
	}
}
