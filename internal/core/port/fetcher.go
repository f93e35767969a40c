package port

import (
	"context"
	"time"

	"github.com/ivanychev/otodom-monitoring/internal/core/domain"
)

// ListingFetcherPort — один сетевой запрос за страницей выдачи.
// Повторы на транзиентных ошибках — забота реализации (retry policy),
// все остальные статусы возвращаются как *domain.FetchError.
type ListingFetcherPort interface {
	FetchPage(ctx context.Context, pageURL string) (domain.RawPage, error)
}

// PageParserPort — парсер страниц конкретного провайдера. У каждой
// категории источника своя реализация; выбирается на этапе конфигурации,
// а не по типу страницы в рантайме.
type PageParserPort interface {
	// IsEmpty — страница с явным маркером "нет результатов". Это
	// нормальное терминальное состояние пагинации, не ошибка.
	IsEmpty(page domain.RawPage) bool
	// Parse извлекает объявления из встроенного пейлоада страницы.
	Parse(page domain.RawPage, filter domain.FlatFilter, now time.Time) ([]domain.Flat, error)
}

// DetailFetcherPort — загрузка и разбор страницы одного объявления.
type DetailFetcherPort interface {
	FetchDetails(ctx context.Context, offerURL string) (*domain.FlatDetails, error)
}
