package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/stream-queue-system/pkg/models"
)

type MetadataResolver interface {
	Resolve(ctx context.Context, videoID string) (*models.Metadata, error)
}

// MetadataCache serves video metadata from Redis and falls through to the
// wrapped resolver on a miss. Cache errors never fail a lookup.
type MetadataCache struct {
	client *redis.Client
	next   MetadataResolver
	ttl    time.Duration
}

func NewMetadataCache(client *redis.Client, next MetadataResolver, ttl time.Duration) *MetadataCache {
	return &MetadataCache{client: client, next: next, ttl: ttl}
}

func metadataKey(videoID string) string {
	return fmt.Sprintf("metadata:youtube:%s", videoID)
}

func (c *MetadataCache) Resolve(ctx context.Context, videoID string) (*models.Metadata, error) {
	key := metadataKey(videoID)

	cached, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var meta models.Metadata
		if err := json.Unmarshal(cached, &meta); err == nil {
			return &meta, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		log.Warn().Err(err).Str("video_id", videoID).Msg("metadata cache read failed")
	}

	meta, err := c.next.Resolve(ctx, videoID)
	if err != nil {
		return nil, err
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return meta, nil
	}
	if err := c.client.Set(ctx, key, metaJSON, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("video_id", videoID).Msg("failed to cache metadata")
	}
	return meta, nil
}
