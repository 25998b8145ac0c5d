package storage

import (
	"context"
	"encoding/json"

	apperrors "github.com/rohankatakam/gitcinema/internal/errors"
	"github.com/rohankatakam/gitcinema/internal/models"
)

// ErrNotFound is returned by lookups that match nothing
var ErrNotFound = apperrors.ErrNotFound

// Store is the durable repository cache. Writes are insert-or-replace keyed
// by repository identifier (analyses) or by (repository, path) (files).
type Store interface {
	// Analysis operations
	GetAnalysis(ctx context.Context, repo models.RepositoryID) (*models.AnalysisRecord, error)
	PutAnalysis(ctx context.Context, record *models.AnalysisRecord) error
	AttachNarrative(ctx context.Context, repo models.RepositoryID, narrative json.RawMessage) error

	// File operations
	GetFile(ctx context.Context, repo models.RepositoryID, path string) (*models.StoredFile, error)
	PutFile(ctx context.Context, file *models.StoredFile) error
	ListFilesByRepo(ctx context.Context, repo models.RepositoryID) ([]*models.StoredFile, error)

	// Close connection
	Close() error
}

// encodeRecord serializes a record without its narrative, which is kept
// alongside the document so it can be replaced on its own.
func encodeRecord(record *models.AnalysisRecord) ([]byte, error) {
	doc := *record
	doc.Narrative = nil
	return json.Marshal(&doc)
}

func decodeRecord(data []byte, narrative []byte) (*models.AnalysisRecord, error) {
	var record models.AnalysisRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	if len(narrative) > 0 {
		record.Narrative = json.RawMessage(narrative)
	}
	return &record, nil
}

func fileKey(repo models.RepositoryID, path string) string {
	return repo.String() + "\x00" + path
}
