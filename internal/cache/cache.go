// Package cache provides Redis caching for file metadata and per-file
// annotation lists, and the revoked-token blacklist.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pdf-annotator/backend/internal/config"
	"github.com/pdf-annotator/backend/internal/models"
)

const (
	// Cache key prefixes
	fileKeyPrefix        = "file:"
	annotationsKeyPrefix = "annotations:"
	jtiKeyPrefix         = "jti:"

	// Default TTL for cached items
	defaultTTL = 5 * time.Minute
)

// Cache defines the caching operations. Cache errors degrade to misses;
// the database stays authoritative.
type Cache interface {
	// GetFile retrieves cached file metadata, nil on miss.
	GetFile(ctx context.Context, id string) (*models.File, error)

	// SetFile caches file metadata.
	SetFile(ctx context.Context, f *models.File) error

	// GetAnnotations retrieves a file's cached annotation list.
	GetAnnotations(ctx context.Context, fileID string) ([]models.Annotation, bool, error)

	// SetAnnotations caches a file's annotation list.
	SetAnnotations(ctx context.Context, fileID string, annotations []models.Annotation) error

	// InvalidateFile drops the file's metadata and annotation entries.
	InvalidateFile(ctx context.Context, fileID string) error

	// Revoke blacklists a token id until its natural expiry.
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error

	// IsRevoked reports whether a token id has been blacklisted.
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// Close closes the cache connection.
	Close() error
}

// RedisCache implements Cache using Redis.
type RedisCache struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// cachedFile restores the fields File's API serialization hides. The
// handler enforces ownership on cache hits, so UserID in particular must
// survive the round trip.
type cachedFile struct {
	models.File
	UserID     string    `json:"userId"`
	MIME       string    `json:"mime,omitempty"`
	StorageKey string    `json:"storageKey,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func marshalFile(f *models.File) ([]byte, error) {
	return json.Marshal(cachedFile{
		File:       *f,
		UserID:     f.UserID,
		MIME:       f.MIME,
		StorageKey: f.StorageKey,
		UpdatedAt:  f.UpdatedAt,
	})
}

func unmarshalFile(data []byte) (*models.File, error) {
	var cf cachedFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, err
	}
	f := cf.File
	f.UserID = cf.UserID
	f.MIME = cf.MIME
	f.StorageKey = cf.StorageKey
	f.UpdatedAt = cf.UpdatedAt
	return &f, nil
}

// NewRedisCache creates a new Redis cache.
func NewRedisCache(cfg *config.Config, logger *zap.Logger) (Cache, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Connected to Redis cache")

	return &RedisCache{client: client, logger: logger, ttl: defaultTTL}, nil
}

// GetFile retrieves cached file metadata.
func (c *RedisCache) GetFile(ctx context.Context, id string) (*models.File, error) {
	key := fileKeyPrefix + id

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil // Cache miss
	}
	if err != nil {
		c.logger.Warn("Failed to get from cache", zap.String("key", key), zap.Error(err))
		return nil, nil // Treat errors as cache miss
	}

	f, err := unmarshalFile(data)
	if err != nil {
		c.logger.Warn("Failed to unmarshal cached file", zap.Error(err))
		return nil, nil
	}

	c.logger.Debug("Cache hit", zap.String("key", key))
	return f, nil
}

// SetFile caches file metadata.
func (c *RedisCache) SetFile(ctx context.Context, f *models.File) error {
	key := fileKeyPrefix + f.ID

	data, err := marshalFile(f)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to set cache", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// GetAnnotations retrieves a file's cached annotation list.
func (c *RedisCache) GetAnnotations(ctx context.Context, fileID string) ([]models.Annotation, bool, error) {
	key := annotationsKeyPrefix + fileID

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil // Cache miss
	}
	if err != nil {
		c.logger.Warn("Failed to get annotations from cache", zap.Error(err))
		return nil, false, nil
	}

	var annotations []models.Annotation
	if err := json.Unmarshal(data, &annotations); err != nil {
		c.logger.Warn("Failed to unmarshal cached annotations", zap.Error(err))
		return nil, false, nil
	}

	c.logger.Debug("Cache hit", zap.String("key", key))
	return annotations, true, nil
}

// SetAnnotations caches a file's annotation list.
func (c *RedisCache) SetAnnotations(ctx context.Context, fileID string, annotations []models.Annotation) error {
	key := annotationsKeyPrefix + fileID

	data, err := json.Marshal(annotations)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to set annotations cache", zap.Error(err))
		return err
	}

	c.logger.Debug("Cached annotations", zap.String("file_id", fileID), zap.Int("count", len(annotations)))
	return nil
}

// InvalidateFile drops the file's cached metadata and annotations.
func (c *RedisCache) InvalidateFile(ctx context.Context, fileID string) error {
	if err := c.client.Del(ctx, fileKeyPrefix+fileID, annotationsKeyPrefix+fileID).Err(); err != nil {
		c.logger.Warn("Failed to invalidate cache", zap.String("file_id", fileID), zap.Error(err))
		return err
	}
	return nil
}

// Revoke blacklists a token id until its natural expiry.
func (c *RedisCache) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil // already expired
	}
	return c.client.Set(ctx, jtiKeyPrefix+jti, "1", ttl).Err()
}

// IsRevoked reports whether a token id has been blacklisted.
func (c *RedisCache) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := c.client.Get(ctx, jtiKeyPrefix+jti).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		c.logger.Warn("Failed to check blacklist", zap.Error(err))
		return false, err
	}
	return true, nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	c.logger.Info("Closing Redis connection")
	return c.client.Close()
}
