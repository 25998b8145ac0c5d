package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/gitcinema/internal/models"
)

const keyPrefix = "gitcinema:"

// CachedStore puts a redis read-through copy in front of a durable Store.
// The durable store stays authoritative: redis failures are logged and the
// call falls through.
type CachedStore struct {
	Store
	redis  *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// NewRedisClient connects to redis and verifies connectivity
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address missing")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	// Fail fast on startup
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// NewCachedStore wraps inner with a redis cache using the given TTL
func NewCachedStore(inner Store, client *redis.Client, ttl time.Duration, logger *logrus.Logger) *CachedStore {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &CachedStore{Store: inner, redis: client, ttl: ttl, logger: logger}
}

func analysisKey(repo models.RepositoryID) string {
	return keyPrefix + "analysis:" + repo.String()
}

func fileCacheKey(repo models.RepositoryID, path string) string {
	return keyPrefix + "file:" + repo.String() + ":" + path
}

func (s *CachedStore) GetAnalysis(ctx context.Context, repo models.RepositoryID) (*models.AnalysisRecord, error) {
	key := analysisKey(repo)
	var record models.AnalysisRecord
	if s.load(ctx, key, &record) {
		return &record, nil
	}

	fresh, err := s.Store.GetAnalysis(ctx, repo)
	if err != nil {
		return nil, err
	}
	s.save(ctx, key, fresh)
	return fresh, nil
}

func (s *CachedStore) PutAnalysis(ctx context.Context, record *models.AnalysisRecord) error {
	if err := s.Store.PutAnalysis(ctx, record); err != nil {
		return err
	}
	s.save(ctx, analysisKey(record.RepositoryID), record)
	return nil
}

func (s *CachedStore) AttachNarrative(ctx context.Context, repo models.RepositoryID, narrative json.RawMessage) error {
	if err := s.Store.AttachNarrative(ctx, repo, narrative); err != nil {
		return err
	}
	s.evict(ctx, analysisKey(repo))
	return nil
}

func (s *CachedStore) GetFile(ctx context.Context, repo models.RepositoryID, path string) (*models.StoredFile, error) {
	key := fileCacheKey(repo, path)
	var file models.StoredFile
	if s.load(ctx, key, &file) {
		return &file, nil
	}

	fresh, err := s.Store.GetFile(ctx, repo, path)
	if err != nil {
		return nil, err
	}
	s.save(ctx, key, fresh)
	return fresh, nil
}

func (s *CachedStore) PutFile(ctx context.Context, file *models.StoredFile) error {
	if err := s.Store.PutFile(ctx, file); err != nil {
		return err
	}
	s.save(ctx, fileCacheKey(file.RepositoryID, file.Path), file)
	return nil
}

// Close closes the redis client and the durable store
func (s *CachedStore) Close() error {
	if err := s.redis.Close(); err != nil {
		s.logger.WithError(err).Warn("Failed to close redis client")
	}
	return s.Store.Close()
}

func (s *CachedStore) load(ctx context.Context, key string, dest interface{}) bool {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.WithError(err).WithField("key", key).Warn("Redis read failed, using durable store")
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Discarding undecodable cache entry")
		s.evict(ctx, key)
		return false
	}
	return true
}

func (s *CachedStore) save(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Failed to encode cache entry")
		return
	}
	if err := s.redis.Set(ctx, key, data, s.ttl).Err(); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Redis write failed")
	}
}

func (s *CachedStore) evict(ctx context.Context, key string) {
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Redis delete failed")
	}
}
