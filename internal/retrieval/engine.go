// Package retrieval selects the files of an analyzed repository that are
// relevant to a free-text question and assembles them into a context bundle.
// Ranking is lexical: case-folded substring matches of question keywords
// against file names and paths.
package retrieval

import (
	"context"
	"errors"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/gitcinema/internal/config"
	apperrors "github.com/rohankatakam/gitcinema/internal/errors"
	"github.com/rohankatakam/gitcinema/internal/filecache"
	"github.com/rohankatakam/gitcinema/internal/models"
	"github.com/rohankatakam/gitcinema/internal/storage"
	"github.com/rohankatakam/gitcinema/internal/telemetry"
)

// Options are the ranking and presentation budgets
type Options struct {
	TopK             int
	MinKeywordLength int
	MaxFileChars     int
	MaxTreeEntries   int
	MaxReadmeChars   int
	FetchConcurrency int
}

// DefaultOptions returns the standard budgets
func DefaultOptions() Options {
	return Options{
		TopK:             8,
		MinKeywordLength: 3,
		MaxFileChars:     5000,
		MaxTreeEntries:   500,
		MaxReadmeChars:   3000,
		FetchConcurrency: 4,
	}
}

// OptionsFromConfig reads the budgets from configuration
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TopK:             cfg.Retrieval.TopK,
		MinKeywordLength: cfg.Retrieval.MinKeywordLength,
		MaxFileChars:     cfg.Retrieval.MaxFileChars,
		MaxTreeEntries:   cfg.Retrieval.MaxTreeEntries,
		MaxReadmeChars:   cfg.Retrieval.MaxReadmeChars,
		FetchConcurrency: cfg.Ingestion.FetchConcurrency,
	}
}

// Engine answers context requests against analyzed repositories
type Engine struct {
	store   storage.Store
	files   *filecache.Fetcher
	logger  *logrus.Logger
	metrics *telemetry.Metrics
	opts    Options
}

// NewEngine creates a retrieval engine
func NewEngine(source filecache.ContentSource, store storage.Store, logger *logrus.Logger, metrics *telemetry.Metrics, opts Options) *Engine {
	return &Engine{
		store:   store,
		files:   filecache.NewFetcher(source, store, logger, metrics, opts.FetchConcurrency),
		logger:  logger,
		metrics: metrics,
		opts:    opts,
	}
}

// RetrieveContext ranks the repository's files against question and returns
// the context bundle. Stored copies of ranked files are reused; missing ones
// are fetched and persisted. A file that cannot be fetched is omitted.
func (e *Engine) RetrieveContext(ctx context.Context, repo models.RepositoryID, question string) (*models.ContextBundle, error) {
	record, err := e.Record(ctx, repo)
	if err != nil {
		return nil, err
	}

	keywords := Keywords(question, e.opts.MinKeywordLength)
	ranked := Rank(record.FilePaths, keywords, e.opts.TopK)

	paths := make([]string, len(ranked))
	scores := make(map[string]int, len(ranked))
	for i, r := range ranked {
		paths[i] = r.Path
		scores[r.Path] = r.Score
	}

	fetched, err := e.files.Fetch(ctx, repo, paths, true, "relevant")
	if err != nil {
		return nil, err
	}

	bundle := &models.ContextBundle{
		RepositoryID:    repo,
		Keywords:        keywords,
		PackageManifest: record.PackageManifest,
		CoreFiles:       make([]models.ContextFile, 0, len(record.CoreFiles)),
		RelevantFiles:   make([]models.ContextFile, 0, len(fetched)),
	}

	bundle.FileTree = record.FilePaths
	if e.opts.MaxTreeEntries > 0 && len(bundle.FileTree) > e.opts.MaxTreeEntries {
		bundle.FileTree = slices.Clone(record.FilePaths[:e.opts.MaxTreeEntries])
		bundle.TreeTruncated = true
	}
	bundle.Readme, _ = truncate(record.Readme, e.opts.MaxReadmeChars)

	for _, f := range record.CoreFiles {
		bundle.CoreFiles = append(bundle.CoreFiles, e.present(f, 0))
	}
	for _, f := range fetched {
		bundle.RelevantFiles = append(bundle.RelevantFiles, e.present(f, scores[f.Path]))
	}

	e.logger.WithFields(logrus.Fields{
		"repo":     repo.String(),
		"keywords": len(keywords),
		"ranked":   len(ranked),
		"returned": len(bundle.RelevantFiles),
	}).Debug("Retrieved context")

	return bundle, nil
}

// GetFile returns the full content of one file of an analyzed repository,
// fetching and persisting it on first use.
func (e *Engine) GetFile(ctx context.Context, repo models.RepositoryID, path string) (*models.StoredFile, error) {
	record, err := e.Record(ctx, repo)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(record.FilePaths, path) {
		return nil, apperrors.NotFoundf("file %s is not part of %s", path, repo)
	}
	return e.files.Get(ctx, repo, path, true)
}

// Record returns the stored analysis of repo, or NotAnalyzed when there is none
func (e *Engine) Record(ctx context.Context, repo models.RepositoryID) (*models.AnalysisRecord, error) {
	record, err := e.store.GetAnalysis(ctx, repo)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NotAnalyzed(repo.String())
		}
		return nil, err
	}
	return record, nil
}

func (e *Engine) present(f models.StoredFile, score int) models.ContextFile {
	content, truncated := truncate(f.Content, e.opts.MaxFileChars)
	return models.ContextFile{
		Path:      f.Path,
		Language:  f.Language,
		Score:     score,
		Content:   content,
		Truncated: truncated,
	}
}
