// Package filecache fetches individual repository files from the hosting API
// and keeps each one as a StoredFile. Fetches of several paths run
// concurrently and a failed path is left out of the result instead of
// failing its siblings.
package filecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/src-d/enry/v2"
	"golang.org/x/sync/errgroup"

	"github.com/rohankatakam/gitcinema/internal/models"
	"github.com/rohankatakam/gitcinema/internal/storage"
	"github.com/rohankatakam/gitcinema/internal/telemetry"
)

// ContentSource fetches one decoded file
type ContentSource interface {
	GetFileContent(ctx context.Context, repo models.RepositoryID, path string) (string, error)
}

// Fetcher fetches and persists files
type Fetcher struct {
	source      ContentSource
	store       storage.Store
	logger      *logrus.Logger
	metrics     *telemetry.Metrics
	concurrency int
	now         func() time.Time
}

// NewFetcher creates a fetcher issuing at most concurrency remote calls at once
func NewFetcher(source ContentSource, store storage.Store, logger *logrus.Logger, metrics *telemetry.Metrics, concurrency int) *Fetcher {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Fetcher{
		source:      source,
		store:       store,
		logger:      logger,
		metrics:     metrics,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Fetch returns the files it could obtain, in the order of paths. With
// reuse set, a stored copy is returned without a remote call. Only a
// cancelled context fails the whole call.
func (f *Fetcher) Fetch(ctx context.Context, repo models.RepositoryID, paths []string, reuse bool, stage string) ([]models.StoredFile, error) {
	slots := make([]*models.StoredFile, len(paths))

	var g errgroup.Group
	g.SetLimit(f.concurrency)
	for i, p := range paths {
		g.Go(func() error {
			file, err := f.Get(ctx, repo, p, reuse)
			if err != nil {
				if ctx.Err() == nil {
					f.logger.WithError(err).WithFields(logrus.Fields{
						"repo":  repo.String(),
						"path":  p,
						"stage": stage,
					}).Warn("Skipping file")
					f.metrics.SkippedFile(stage)
				}
				return nil
			}
			slots[i] = file
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	files := make([]models.StoredFile, 0, len(paths))
	for _, file := range slots {
		if file != nil {
			files = append(files, *file)
		}
	}
	return files, nil
}

// Get returns one file, from the store when reuse is set and a copy exists,
// otherwise from the remote source. Fetched files are persisted before
// they are returned.
func (f *Fetcher) Get(ctx context.Context, repo models.RepositoryID, p string, reuse bool) (*models.StoredFile, error) {
	if reuse {
		stored, err := f.store.GetFile(ctx, repo, p)
		switch {
		case err == nil:
			f.metrics.CacheLookup("file", true)
			return stored, nil
		case !errors.Is(err, storage.ErrNotFound):
			return nil, err
		}
		f.metrics.CacheLookup("file", false)
	}

	content, err := f.source.GetFileContent(ctx, repo, p)
	if err != nil {
		return nil, err
	}

	file := NewStoredFile(repo, p, content, f.now())
	if err := f.store.PutFile(ctx, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

// NewStoredFile builds the stored form of a fetched file
func NewStoredFile(repo models.RepositoryID, p, content string, fetchedAt time.Time) models.StoredFile {
	sum := sha256.Sum256([]byte(content))
	return models.StoredFile{
		RepositoryID: repo,
		Path:         p,
		Content:      content,
		Language:     Language(p, content),
		Size:         int64(len(content)),
		ContentHash:  hex.EncodeToString(sum[:]),
		FetchedAt:    fetchedAt.UTC(),
	}
}

// Language detects the programming language of a file, by name first and by
// content when the name is ambiguous. Unknown files get "".
func Language(p, content string) string {
	name := path.Base(p)
	if lang := enry.GetLanguage(name, nil); lang != "" {
		return lang
	}
	if content == "" {
		return ""
	}
	return enry.GetLanguage(name, []byte(content))
}
