package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivanychev/otodom-monitoring/internal/core/domain"
)

// PostgresFlatStorageAdapter реализует FlatStoragePort поверх PostgreSQL.
// Записи ключуются парой (filter_name, url); recency_ts хранится в UTC.
type PostgresFlatStorageAdapter struct {
	pool *pgxpool.Pool
}

// NewPostgresFlatStorageAdapter создает новый экземпляр адаптера.
func NewPostgresFlatStorageAdapter(pool *pgxpool.Pool) (*PostgresFlatStorageAdapter, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}
	return &PostgresFlatStorageAdapter{pool: pool}, nil
}

// EnsureSchema создает таблицу при первом запуске.
func (a *PostgresFlatStorageAdapter) EnsureSchema(ctx context.Context) error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS flats (
		filter_name      text        NOT NULL,
		url              text        NOT NULL,
		found_ts         timestamptz NOT NULL,
		title            text,
		picture_url      text,
		summary_location text,
		price            bigint,
		created_at       timestamptz,
		pushed_up_at     timestamptz,
		recency_ts       timestamptz,
		geohash          text,
		PRIMARY KEY (filter_name, url)
	)`
	if _, err := a.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to ensure the flats table: %w", err)
	}
	return nil
}

// LookupMany возвращает recency timestamp для каждого найденного URL.
// Один запрос на весь батч.
func (a *PostgresFlatStorageAdapter) LookupMany(ctx context.Context, urls []string, filterName string) (map[string]time.Time, error) {
	found := make(map[string]time.Time, len(urls))
	if len(urls) == 0 {
		return found, nil
	}

	rows, err := a.pool.Query(ctx,
		`SELECT url, recency_ts FROM flats WHERE filter_name = $1 AND url = ANY($2)`,
		filterName, urls,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to look up flats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var url string
		var recency *time.Time
		if err := rows.Scan(&url, &recency); err != nil {
			return nil, fmt.Errorf("failed to scan a flat row: %w", err)
		}
		if recency != nil {
			found[url] = domain.NaiveUTC(*recency)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate flat rows: %w", err)
	}
	return found, nil
}

// InsertMany вставляет батч одним pgx.Batch-раундтрипом.
func (a *PostgresFlatStorageAdapter) InsertMany(ctx context.Context, flats []domain.Flat, filterName string) error {
	if len(flats) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, f := range flats {
		batch.Queue(
			`INSERT INTO flats (
				filter_name, url, found_ts, title, picture_url, summary_location,
				price, created_at, pushed_up_at, recency_ts, geohash
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			filterName, f.URL, f.FoundTS, f.Title, f.PictureURL, f.SummaryLocation,
			f.Price, f.CreatedAt, f.PushedUpAt, f.RecencyTimestamp(), f.Geohash,
		)
	}
	results := a.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range flats {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert flats: %w", err)
		}
	}
	return nil
}

// DeleteMany удаляет записи перед повторной вставкой обновлённых версий.
func (a *PostgresFlatStorageAdapter) DeleteMany(ctx context.Context, urls []string, filterName string) error {
	if len(urls) == 0 {
		return nil
	}
	if _, err := a.pool.Exec(ctx,
		`DELETE FROM flats WHERE filter_name = $1 AND url = ANY($2)`,
		filterName, urls,
	); err != nil {
		return fmt.Errorf("failed to delete flats: %w", err)
	}
	return nil
}

// CountInScope — сколько записей накоплено под фильтром.
func (a *PostgresFlatStorageAdapter) CountInScope(ctx context.Context, filterName string) (int, error) {
	var count int
	err := a.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM flats WHERE filter_name = $1`, filterName,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count flats in scope: %w", err)
	}
	return count, nil
}
