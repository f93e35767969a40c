package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/ivanychev/otodom-monitoring/internal/core/domain"
)

const recencyField = "recency_ts"

// Формат хранения таймстемпов в хешах Redis.
const timeFormat = time.RFC3339Nano

// RedisFlatStorageAdapter реализует FlatStoragePort поверх Redis: по
// одному хешу на объявление, ключ — namespace:filter:url. Bulk-операции
// идут через pipeline, чтобы укладываться в один раундтрип.
type RedisFlatStorageAdapter struct {
	client    *redis.Client
	namespace string
}

// NewRedisFlatStorageAdapter создает адаптер и проверяет соединение.
func NewRedisFlatStorageAdapter(ctx context.Context, client *redis.Client, namespace string) (*RedisFlatStorageAdapter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if namespace == "" {
		return nil, fmt.Errorf("redis namespace is required")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &RedisFlatStorageAdapter{client: client, namespace: namespace}, nil
}

func (a *RedisFlatStorageAdapter) key(filterName, url string) string {
	return a.namespace + ":" + filterName + ":" + url
}

// LookupMany достаёт recency-метки батчем через один pipeline.
func (a *RedisFlatStorageAdapter) LookupMany(ctx context.Context, urls []string, filterName string) (map[string]time.Time, error) {
	found := make(map[string]time.Time, len(urls))
	if len(urls) == 0 {
		return found, nil
	}

	pipe := a.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(urls))
	for i, url := range urls {
		cmds[i] = pipe.HGet(ctx, a.key(filterName, url), recencyField)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to bulk-lookup flats: %w", err)
	}

	for i, cmd := range cmds {
		raw, err := cmd.Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read recency for %s: %w", urls[i], err)
		}
		if raw == "" {
			continue
		}
		ts, err := time.Parse(timeFormat, raw)
		if err != nil {
			return nil, fmt.Errorf("corrupted recency %q for %s: %w", raw, urls[i], err)
		}
		found[urls[i]] = domain.NaiveUTC(ts)
	}
	return found, nil
}

// InsertMany пишет батч одним pipeline: delete + hset на каждую запись,
// чтобы в хеше не оставалось полей от прежней версии.
func (a *RedisFlatStorageAdapter) InsertMany(ctx context.Context, flats []domain.Flat, filterName string) error {
	if len(flats) == 0 {
		return nil
	}
	pipe := a.client.TxPipeline()
	for _, f := range flats {
		key := a.key(filterName, f.URL)
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, flatToFields(f))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert flats: %w", err)
	}
	return nil
}

// DeleteMany удаляет записи батчем.
func (a *RedisFlatStorageAdapter) DeleteMany(ctx context.Context, urls []string, filterName string) error {
	if len(urls) == 0 {
		return nil
	}
	keys := make([]string, len(urls))
	for i, url := range urls {
		keys[i] = a.key(filterName, url)
	}
	if err := a.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete flats: %w", err)
	}
	return nil
}

// CountInScope обходит ключи фильтра курсором SCAN.
func (a *RedisFlatStorageAdapter) CountInScope(ctx context.Context, filterName string) (int, error) {
	pattern := a.namespace + ":" + filterName + ":*"
	var cursor uint64
	count := 0
	for {
		keys, next, err := a.client.Scan(ctx, cursor, pattern, 0).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to scan flats in scope: %w", err)
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}

// flatToFields кодирует запись в поля хеша. Отсутствующие значения
// сохраняются пустыми строками (hgetall их всё равно вернёт).
func flatToFields(f domain.Flat) map[string]interface{} {
	fields := map[string]interface{}{
		"url":              f.URL,
		"found_ts":         f.FoundTS.UTC().Format(timeFormat),
		"title":            f.Title,
		"picture_url":      f.PictureURL,
		"summary_location": f.SummaryLocation,
		"price":            "",
		"created_at":       formatOptionalTime(f.CreatedAt),
		"pushed_up_at":     formatOptionalTime(f.PushedUpAt),
		recencyField:       formatOptionalTime(f.RecencyTimestamp()),
		"geohash":          f.Geohash,
	}
	if f.Price != nil {
		fields["price"] = strconv.FormatInt(*f.Price, 10)
	}
	return fields
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return domain.NaiveUTC(*t).Format(timeFormat)
}
