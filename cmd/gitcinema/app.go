package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	apperrors "github.com/rohankatakam/gitcinema/internal/errors"
	"github.com/rohankatakam/gitcinema/internal/github"
	"github.com/rohankatakam/gitcinema/internal/ingestion"
	"github.com/rohankatakam/gitcinema/internal/models"
	"github.com/rohankatakam/gitcinema/internal/retrieval"
	"github.com/rohankatakam/gitcinema/internal/storage"
	"github.com/rohankatakam/gitcinema/internal/telemetry"
	"github.com/rohankatakam/gitcinema/internal/timeline"
)

// app holds the components one command invocation works with
type app struct {
	logger   *logrus.Logger
	store    storage.Store
	metrics  *telemetry.Metrics
	pipeline *ingestion.Pipeline
	engine   *retrieval.Engine
	timeline *timeline.Aggregator
}

func newApp(ctx context.Context) (*app, error) {
	metrics := telemetry.NewMetrics()

	store, err := storage.Open(ctx, cfg, logger.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	client, err := github.NewClient(
		cfg.GitHub.Token,
		cfg.GitHub.RateLimit,
		&http.Client{Timeout: 30 * time.Second},
		logger.Logger,
		github.WithBaseURL(cfg.GitHub.BaseURL),
		github.WithMetrics(metrics),
	)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}

	return &app{
		logger:   logger.Logger,
		store:    store,
		metrics:  metrics,
		pipeline: ingestion.NewPipeline(client, store, logger.Logger, metrics, ingestion.OptionsFromConfig(cfg)),
		engine:   retrieval.NewEngine(client, store, logger.Logger, metrics, retrieval.OptionsFromConfig(cfg)),
		timeline: timeline.NewAggregator(
			timeline.WithFallbackCommits(cfg.Timeline.FallbackCommits),
			timeline.WithJitterSeed(cfg.Timeline.JitterSeed),
		),
	}, nil
}

// Close releases the store and flushes metrics when requested
func (a *app) Close() {
	if metricsOut != "" {
		if err := prometheus.WriteToTextfile(metricsOut, a.metrics.Registry); err != nil {
			a.logger.WithError(err).Warn("Failed to write metrics")
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.WithError(err).Warn("Failed to close store")
	}
}

// withApp runs fn against a freshly wired app
func withApp(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// parseRepo accepts a repository URL or an owner/name pair
func parseRepo(arg string) (models.RepositoryID, error) {
	if repo, err := github.ParseRepoURL(arg); err == nil {
		return repo, nil
	}
	repo, err := github.ParseRepoURL("https://github.com/" + strings.Trim(strings.TrimSpace(arg), "/"))
	if err != nil {
		return models.RepositoryID{}, apperrors.ValidationErrorf("invalid repository %q: want owner/name or a GitHub URL", arg)
	}
	return repo, nil
}
