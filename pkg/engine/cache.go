package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clinforge-ai/platform/pkg/common/models"
	"github.com/redis/go-redis/v9"
)

// StatusCache keeps the latest run status per study in Redis so pollers
// don't hit Postgres on every request.
type StatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStatusCache(client *redis.Client, ttl time.Duration) *StatusCache {
	return &StatusCache{client: client, ttl: ttl}
}

func statusKey(studyCode string) string {
	return fmt.Sprintf("derivation:status:%s", studyCode)
}

func (c *StatusCache) Set(ctx context.Context, status models.RunStatus) error {
	if c == nil || c.client == nil {
		return nil
	}
	payload, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, statusKey(status.StudyID), payload, c.ttl).Err()
}

func (c *StatusCache) Get(ctx context.Context, studyCode string) (models.RunStatus, bool, error) {
	if c == nil || c.client == nil {
		return models.RunStatus{}, false, nil
	}
	payload, err := c.client.Get(ctx, statusKey(studyCode)).Bytes()
	if err == redis.Nil {
		return models.RunStatus{}, false, nil
	}
	if err != nil {
		return models.RunStatus{}, false, err
	}
	var status models.RunStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		return models.RunStatus{}, false, err
	}
	return status, true, nil
}
