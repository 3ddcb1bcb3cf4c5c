package redisstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"snippetd/internal/models"
)

const (
	jobKeyPrefix  = "snippetd:job:"
	recentJobsKey = "snippetd:jobs:recent"
	recentMaxLen  = 1000
)

// RedisJobArchive stores each job snapshot as a JSON value and keeps a
// capped recency list of ids for ListRecent.
type RedisJobArchive struct {
	client *redis.Client
}

func NewRedisJobArchive(client *redis.Client) *RedisJobArchive {
	return &RedisJobArchive{client: client}
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}

func (a *RedisJobArchive) Insert(ctx context.Context, view models.JobView) error {
	if err := a.write(ctx, view); err != nil {
		return err
	}

	pipe := a.client.TxPipeline()
	pipe.LPush(ctx, recentJobsKey, view.ID)
	pipe.LTrim(ctx, recentJobsKey, 0, recentMaxLen-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("index job %s: %w", view.ID, err)
	}
	return nil
}

func (a *RedisJobArchive) UpdateStatus(ctx context.Context, view models.JobView) error {
	return a.write(ctx, view)
}

func (a *RedisJobArchive) write(ctx context.Context, view models.JobView) error {
	body, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", view.ID, err)
	}
	if err := a.client.Set(ctx, jobKey(view.ID), body, 0).Err(); err != nil {
		return fmt.Errorf("store job %s: %w", view.ID, err)
	}
	return nil
}

func (a *RedisJobArchive) ListRecent(ctx context.Context, limit int) ([]models.JobView, error) {
	if limit < 1 {
		limit = 50
	}

	ids, err := a.client.LRange(ctx, recentJobsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list recent jobs: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = jobKey(id)
	}

	values, err := a.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch recent jobs: %w", err)
	}

	views := make([]models.JobView, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // evicted between LRange and MGet
		}
		var view models.JobView
		if err := json.Unmarshal([]byte(raw), &view); err != nil {
			return nil, fmt.Errorf("unmarshal job: %w", err)
		}
		views = append(views, view)
	}
	return views, nil
}

func (a *RedisJobArchive) Close() error {
	return a.client.Close()
}
