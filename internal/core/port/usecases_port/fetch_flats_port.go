package usecases_port

import (
	"context"
	"time"

	"github.com/ivanychev/otodom-monitoring/internal/core/domain"
)

// FetchFlatsUsecasePort — прогон пагинации: все страницы выдачи одного
// фильтра, дедупликация по URL с сохранением первого вхождения.
type FetchFlatsUsecasePort interface {
	Execute(ctx context.Context, filter domain.FlatFilter, now time.Time) ([]domain.Flat, error)
}
