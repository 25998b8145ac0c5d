package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	apperrors "github.com/rohankatakam/gitcinema/internal/errors"
	"github.com/rohankatakam/gitcinema/internal/models"
)

// sqlStore holds the queries shared by the SQLite and PostgreSQL stores.
// Queries are written with ? placeholders and rebound per driver.
type sqlStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

type analysisRow struct {
	ID        string         `db:"id"`
	RepoURL   string         `db:"repo_url"`
	Data      string         `db:"data"`
	Narrative sql.NullString `db:"narrative"`
}

type fileRow struct {
	RepoID      string    `db:"repo_id"`
	Path        string    `db:"path"`
	Content     string    `db:"content"`
	Language    string    `db:"language"`
	Size        int64     `db:"size"`
	ContentHash string    `db:"content_hash"`
	FetchedAt   time.Time `db:"fetched_at"`
}

func (r *fileRow) toModel() (*models.StoredFile, error) {
	repo, err := models.ParseRepositoryID(r.RepoID)
	if err != nil {
		return nil, err
	}
	return &models.StoredFile{
		RepositoryID: repo,
		Path:         r.Path,
		Content:      r.Content,
		Language:     r.Language,
		Size:         r.Size,
		ContentHash:  r.ContentHash,
		FetchedAt:    r.FetchedAt.UTC(),
	}, nil
}

// Close closes the database connection
func (s *sqlStore) Close() error {
	return s.db.Close()
}

// Analysis operations

func (s *sqlStore) GetAnalysis(ctx context.Context, repo models.RepositoryID) (*models.AnalysisRecord, error) {
	var row analysisRow
	query := s.db.Rebind(`SELECT id, repo_url, data, narrative FROM analyses WHERE id = ?`)

	if err := s.db.GetContext(ctx, &row, query, repo.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, apperrors.StorageErrorf(err, "get analysis %s", repo)
	}

	var narrative []byte
	if row.Narrative.Valid {
		narrative = []byte(row.Narrative.String)
	}
	record, err := decodeRecord([]byte(row.Data), narrative)
	if err != nil {
		return nil, apperrors.StorageErrorf(err, "decode analysis %s", repo)
	}
	return record, nil
}

func (s *sqlStore) PutAnalysis(ctx context.Context, record *models.AnalysisRecord) error {
	data, err := encodeRecord(record)
	if err != nil {
		return apperrors.StorageErrorf(err, "encode analysis %s", record.RepositoryID)
	}

	var narrative sql.NullString
	if len(record.Narrative) > 0 {
		narrative = sql.NullString{String: string(record.Narrative), Valid: true}
	}

	query := s.db.Rebind(`
		INSERT INTO analyses (id, repo_url, data, narrative, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			repo_url = excluded.repo_url,
			data = excluded.data,
			narrative = excluded.narrative,
			updated_at = excluded.updated_at
	`)
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, query,
		record.RepositoryID.String(), record.SourceURL, string(data), narrative, now, now)
	if err != nil {
		return apperrors.StorageErrorf(err, "save analysis %s", record.RepositoryID)
	}

	s.logger.WithFields(logrus.Fields{
		"repo":  record.RepositoryID.String(),
		"bytes": len(data),
	}).Debug("Saved analysis record")
	return nil
}

func (s *sqlStore) AttachNarrative(ctx context.Context, repo models.RepositoryID, narrative json.RawMessage) error {
	query := s.db.Rebind(`UPDATE analyses SET narrative = ?, updated_at = ? WHERE id = ?`)

	res, err := s.db.ExecContext(ctx, query, string(narrative), time.Now().UTC(), repo.String())
	if err != nil {
		return apperrors.StorageErrorf(err, "attach narrative %s", repo)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.StorageErrorf(err, "attach narrative %s", repo)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// File operations

func (s *sqlStore) GetFile(ctx context.Context, repo models.RepositoryID, path string) (*models.StoredFile, error) {
	var row fileRow
	query := s.db.Rebind(`
		SELECT repo_id, path, content, language, size, content_hash, fetched_at
		FROM files WHERE repo_id = ? AND path = ?
	`)

	if err := s.db.GetContext(ctx, &row, query, repo.String(), path); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, apperrors.StorageErrorf(err, "get file %s:%s", repo, path)
	}
	file, err := row.toModel()
	if err != nil {
		return nil, apperrors.StorageErrorf(err, "decode file %s:%s", repo, path)
	}
	return file, nil
}

func (s *sqlStore) PutFile(ctx context.Context, file *models.StoredFile) error {
	query := s.db.Rebind(`
		INSERT INTO files (repo_id, path, content, language, size, content_hash, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (repo_id, path) DO UPDATE SET
			content = excluded.content,
			language = excluded.language,
			size = excluded.size,
			content_hash = excluded.content_hash,
			fetched_at = excluded.fetched_at
	`)

	_, err := s.db.ExecContext(ctx, query,
		file.RepositoryID.String(), file.Path, file.Content, file.Language,
		file.Size, file.ContentHash, file.FetchedAt.UTC())
	if err != nil {
		return apperrors.StorageErrorf(err, "save file %s:%s", file.RepositoryID, file.Path)
	}
	return nil
}

func (s *sqlStore) ListFilesByRepo(ctx context.Context, repo models.RepositoryID) ([]*models.StoredFile, error) {
	var rows []fileRow
	query := s.db.Rebind(`
		SELECT repo_id, path, content, language, size, content_hash, fetched_at
		FROM files WHERE repo_id = ? ORDER BY path
	`)

	if err := s.db.SelectContext(ctx, &rows, query, repo.String()); err != nil {
		return nil, apperrors.StorageErrorf(err, "list files %s", repo)
	}

	files := make([]*models.StoredFile, 0, len(rows))
	for i := range rows {
		file, err := rows[i].toModel()
		if err != nil {
			return nil, apperrors.StorageErrorf(err, "decode file %s:%s", repo, rows[i].Path)
		}
		files = append(files, file)
	}
	return files, nil
}
