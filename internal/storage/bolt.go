package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	apperrors "github.com/rohankatakam/gitcinema/internal/errors"
	"github.com/rohankatakam/gitcinema/internal/models"
)

var (
	analysesBucket = []byte("analyses")
	filesBucket    = []byte("files")
)

// BoltStore implements storage in a single bbolt file. Analyses are stored
// as one JSON document per repository; files are keyed "owner/name\x00path"
// so a prefix scan lists one repository's files in path order.
type BoltStore struct {
	db     *bolt.DB
	logger *logrus.Logger
}

// NewBoltStore opens (or creates) the bbolt database at path
func NewBoltStore(path string, logger *logrus.Logger) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{analysesBucket, filesBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &BoltStore{db: db, logger: logger}, nil
}

// Close closes the database file
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) GetAnalysis(ctx context.Context, repo models.RepositoryID) (*models.AnalysisRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var record models.AnalysisRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(analysesBucket).Get([]byte(repo.String()))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &record)
	})
	if err != nil {
		if err == ErrNotFound {
			return nil, err
		}
		return nil, apperrors.StorageErrorf(err, "get analysis %s", repo)
	}
	return &record, nil
}

func (s *BoltStore) PutAnalysis(ctx context.Context, record *models.AnalysisRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return apperrors.StorageErrorf(err, "encode analysis %s", record.RepositoryID)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(analysesBucket).Put([]byte(record.RepositoryID.String()), data)
	})
	if err != nil {
		return apperrors.StorageErrorf(err, "save analysis %s", record.RepositoryID)
	}
	return nil
}

func (s *BoltStore) AttachNarrative(ctx context.Context, repo models.RepositoryID, narrative json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := []byte(repo.String())
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(analysesBucket)
		data := b.Get(key)
		if data == nil {
			return ErrNotFound
		}
		var record models.AnalysisRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return err
		}
		record.Narrative = narrative
		updated, err := json.Marshal(&record)
		if err != nil {
			return err
		}
		return b.Put(key, updated)
	})
	if err != nil {
		if err == ErrNotFound {
			return err
		}
		return apperrors.StorageErrorf(err, "attach narrative %s", repo)
	}
	return nil
}

func (s *BoltStore) GetFile(ctx context.Context, repo models.RepositoryID, path string) (*models.StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var file models.StoredFile
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(filesBucket).Get([]byte(fileKey(repo, path)))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &file)
	})
	if err != nil {
		if err == ErrNotFound {
			return nil, err
		}
		return nil, apperrors.StorageErrorf(err, "get file %s:%s", repo, path)
	}
	return &file, nil
}

func (s *BoltStore) PutFile(ctx context.Context, file *models.StoredFile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(file)
	if err != nil {
		return apperrors.StorageErrorf(err, "encode file %s:%s", file.RepositoryID, file.Path)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(filesBucket).Put([]byte(fileKey(file.RepositoryID, file.Path)), data)
	})
	if err != nil {
		return apperrors.StorageErrorf(err, "save file %s:%s", file.RepositoryID, file.Path)
	}
	return nil
}

func (s *BoltStore) ListFilesByRepo(ctx context.Context, repo models.RepositoryID) ([]*models.StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte(fileKey(repo, ""))
	files := make([]*models.StoredFile, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(filesBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var file models.StoredFile
			if err := json.Unmarshal(v, &file); err != nil {
				return fmt.Errorf("decode %q: %w", k, err)
			}
			files = append(files, &file)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.StorageErrorf(err, "list files %s", repo)
	}
	return files, nil
}
