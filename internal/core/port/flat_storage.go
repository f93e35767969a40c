package port

import (
	"context"
	"time"

	"github.com/ivanychev/otodom-monitoring/internal/core/domain"
)

// FlatStoragePort — хранилище ранее увиденных объявлений. Записи ключуются
// парой (url, filterName). Контракт — точечный bulk-lookup плюс массовые
// вставка/удаление; частичного обновления записи у хранилища нет, update
// моделируется как delete + insert.
type FlatStoragePort interface {
	// LookupMany возвращает recency timestamp для каждого найденного URL
	// одним запросом к хранилищу. Отсутствующие URL в карте не появляются.
	LookupMany(ctx context.Context, urls []string, filterName string) (map[string]time.Time, error)

	InsertMany(ctx context.Context, flats []domain.Flat, filterName string) error

	DeleteMany(ctx context.Context, urls []string, filterName string) error

	CountInScope(ctx context.Context, filterName string) (int, error)
}
