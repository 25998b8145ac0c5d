package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/rohankatakam/gitcinema/internal/config"
	apperrors "github.com/rohankatakam/gitcinema/internal/errors"
	"github.com/rohankatakam/gitcinema/internal/filecache"
	"github.com/rohankatakam/gitcinema/internal/github"
	"github.com/rohankatakam/gitcinema/internal/models"
	"github.com/rohankatakam/gitcinema/internal/sentiment"
	"github.com/rohankatakam/gitcinema/internal/storage"
	"github.com/rohankatakam/gitcinema/internal/telemetry"
)

// unknownAuthor is used when a commit carries no author name
const unknownAuthor = "Unknown"

// Source is the hosting API as used by the pipeline
type Source interface {
	ListCommits(ctx context.Context, repo models.RepositoryID, limit int) ([]models.Commit, error)
	GetTree(ctx context.Context, repo models.RepositoryID, commitSHA string) ([]models.TreeEntry, error)
	GetFileContent(ctx context.Context, repo models.RepositoryID, path string) (string, error)
	GetReadme(ctx context.Context, repo models.RepositoryID) (string, error)
}

// Options bound the work done for one repository
type Options struct {
	CommitLimit      int
	MaxCoreFiles     int
	FetchConcurrency int
}

// OptionsFromConfig reads the pipeline bounds from configuration
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		CommitLimit:      cfg.GitHub.CommitLimit,
		MaxCoreFiles:     cfg.Ingestion.MaxCoreFiles,
		FetchConcurrency: cfg.Ingestion.FetchConcurrency,
	}
}

// Pipeline turns a repository URL into a persisted AnalysisRecord. Once a
// record exists the pipeline never contacts the hosting API for it again.
type Pipeline struct {
	source  Source
	store   storage.Store
	files   *filecache.Fetcher
	logger  *logrus.Logger
	metrics *telemetry.Metrics
	opts    Options

	// in-flight analyses keyed by owner/name
	inflight singleflight.Group
	now      func() time.Time
}

// NewPipeline creates a new ingestion pipeline
func NewPipeline(
	source Source,
	store storage.Store,
	logger *logrus.Logger,
	metrics *telemetry.Metrics,
	opts Options,
) *Pipeline {
	if opts.CommitLimit <= 0 {
		opts.CommitLimit = 100
	}
	if opts.MaxCoreFiles <= 0 {
		opts.MaxCoreFiles = 10
	}
	return &Pipeline{
		source:  source,
		store:   store,
		files:   filecache.NewFetcher(source, store, logger, metrics, opts.FetchConcurrency),
		logger:  logger,
		metrics: metrics,
		opts:    opts,
		now:     time.Now,
	}
}

// Analyze returns the analysis record for the repository at url, ingesting
// it on the first request. Concurrent requests for one repository share a
// single ingestion, which runs to completion even if the caller that started
// it is cancelled.
func (p *Pipeline) Analyze(ctx context.Context, url string) (*models.AnalysisRecord, error) {
	repo, err := github.ParseRepoURL(url)
	if err != nil {
		return nil, err
	}

	record, err := p.cached(ctx, repo)
	if err != nil {
		p.metrics.Analysis("failed")
		return nil, apperrors.AnalysisFailed(err, repo.String())
	}
	if record != nil {
		p.metrics.Analysis("cached")
		return record, nil
	}

	// The flight outlives any one caller: a caller that gives up stops
	// waiting, the others still get the record.
	flightCtx := context.WithoutCancel(ctx)
	ch := p.inflight.DoChan(repo.String(), func() (interface{}, error) {
		return p.ingest(flightCtx, repo, strings.TrimSpace(url))
	})

	select {
	case <-ctx.Done():
		p.metrics.Analysis("failed")
		return nil, apperrors.AnalysisFailed(ctx.Err(), repo.String())
	case res := <-ch:
		if res.Err != nil {
			p.metrics.Analysis("failed")
			return nil, res.Err
		}
		return res.Val.(*models.AnalysisRecord), nil
	}
}

// AttachNarrative stores the presentation layer's narrative on an existing
// record. The blob must be JSON; its shape is not inspected.
func (p *Pipeline) AttachNarrative(ctx context.Context, repo models.RepositoryID, narrative []byte) error {
	if !json.Valid(narrative) {
		return apperrors.ValidationErrorf("narrative for %s is not valid JSON", repo)
	}

	compact, err := json.Marshal(json.RawMessage(narrative))
	if err != nil {
		return apperrors.ValidationErrorf("narrative for %s: %v", repo, err)
	}

	if err := p.store.AttachNarrative(ctx, repo, compact); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.NotAnalyzed(repo.String())
		}
		return err
	}

	p.logger.WithField("repo", repo.String()).Info("Attached narrative")
	return nil
}

// cached returns the stored record, or nil on a miss
func (p *Pipeline) cached(ctx context.Context, repo models.RepositoryID) (*models.AnalysisRecord, error) {
	record, err := p.store.GetAnalysis(ctx, repo)
	switch {
	case err == nil:
		p.metrics.CacheLookup("analysis", true)
		return record, nil
	case errors.Is(err, storage.ErrNotFound):
		p.metrics.CacheLookup("analysis", false)
		return nil, nil
	default:
		return nil, err
	}
}

func (p *Pipeline) ingest(ctx context.Context, repo models.RepositoryID, sourceURL string) (*models.AnalysisRecord, error) {
	// A flight that finished between our lookup and joining the group has
	// already written the record.
	if record, err := p.store.GetAnalysis(ctx, repo); err == nil {
		return record, nil
	}

	startTime := time.Now()
	log := p.logger.WithField("repo", repo.String())
	log.Info("Starting repository analysis")

	// Phase 1: commits, newest first
	commits, err := p.source.ListCommits(ctx, repo, p.opts.CommitLimit)
	if err != nil {
		return nil, apperrors.AnalysisFailed(err, repo.String())
	}
	if len(commits) == 0 {
		return nil, apperrors.AnalysisFailed(
			apperrors.NotFoundf("repository %s has no commits", repo), repo.String())
	}
	sort.SliceStable(commits, func(i, j int) bool {
		return commits[i].AuthoredAt.After(commits[j].AuthoredAt)
	})

	// Phase 2: tree at the newest commit
	tree, err := p.source.GetTree(ctx, repo, commits[0].SHA)
	if err != nil {
		return nil, apperrors.AnalysisFailed(err, repo.String())
	}
	filePaths := make([]string, 0, len(tree))
	for _, entry := range tree {
		if entry.Kind == models.TreeEntryBlob {
			filePaths = append(filePaths, entry.Path)
		}
	}

	// Phase 3: optional README
	readme, err := p.source.GetReadme(ctx, repo)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.AnalysisFailed(ctx.Err(), repo.String())
		}
		if errors.Is(err, apperrors.ErrNotFound) {
			log.Debug("No README found")
		} else {
			log.WithError(err).Warn("README fetch failed, continuing without it")
			p.metrics.SkippedFile("readme")
		}
		readme = ""
	}

	// Phase 4: core files, fetched concurrently and persisted one by one
	coreFiles, err := p.files.Fetch(ctx, repo, selectCoreFiles(filePaths, p.opts.MaxCoreFiles), false, "core")
	if err != nil {
		return nil, apperrors.AnalysisFailed(err, repo.String())
	}

	// Phase 5: derived fields
	record := &models.AnalysisRecord{
		RepositoryID:    repo,
		SourceURL:       sourceURL,
		TotalCommits:    len(commits),
		Commits:         classify(commits),
		FilePaths:       filePaths,
		Readme:          readme,
		PackageManifest: packageManifest(coreFiles),
		CoreFiles:       coreFiles,
		AnalyzedAt:      p.now().UTC(),
	}
	record.Contributors = countContributors(record.Commits)
	record.Metrics = computeMetrics(record.Commits)

	// Phase 6: the single write
	if err := p.store.PutAnalysis(ctx, record); err != nil {
		return nil, apperrors.AnalysisFailed(err, repo.String())
	}
	p.metrics.Analysis("ingested")

	log.WithFields(logrus.Fields{
		"duration":   time.Since(startTime).String(),
		"commits":    record.TotalCommits,
		"files":      len(record.FilePaths),
		"core_files": len(record.CoreFiles),
	}).Info("Repository analysis completed")

	return record, nil
}

func classify(commits []models.Commit) []models.Commit {
	out := make([]models.Commit, len(commits))
	for i, c := range commits {
		if strings.TrimSpace(c.Author) == "" {
			c.Author = unknownAuthor
		}
		c.AuthoredAt = c.AuthoredAt.UTC()
		c.Sentiment = sentiment.Classify(c.Message)
		out[i] = c
	}
	return out
}

// countContributors orders authors by commit count, then by name
func countContributors(commits []models.Commit) []models.ContributorCount {
	counts := make(map[string]int)
	for _, c := range commits {
		counts[c.Author]++
	}

	contributors := make([]models.ContributorCount, 0, len(counts))
	for name, count := range counts {
		contributors = append(contributors, models.ContributorCount{Name: name, Count: count})
	}
	sort.Slice(contributors, func(i, j int) bool {
		if contributors[i].Count != contributors[j].Count {
			return contributors[i].Count > contributors[j].Count
		}
		return contributors[i].Name < contributors[j].Name
	})
	return contributors
}

func computeMetrics(commits []models.Commit) models.Metrics {
	var m models.Metrics
	for _, c := range commits {
		msg := strings.ToLower(c.Message)
		if strings.Contains(msg, "refactor") {
			m.RefactorCount++
		}
		if strings.Contains(msg, "fix") {
			m.BugFixCount++
		}
	}
	// No diff statistics are fetched, so churn stays at zero
	m.ChurnRate = 0
	return m
}

// packageManifest returns the root package.json in compact form, or nil when
// it is absent or not valid JSON
func packageManifest(files []models.StoredFile) json.RawMessage {
	for _, f := range files {
		if f.Path != "package.json" {
			continue
		}
		if !json.Valid([]byte(f.Content)) {
			return nil
		}
		compact, err := json.Marshal(json.RawMessage(f.Content))
		if err != nil {
			return nil
		}
		return compact
	}
	return nil
}
