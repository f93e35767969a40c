package usecases_port

import (
	"context"
	"time"

	"github.com/ivanychev/otodom-monitoring/internal/core/domain"
)

// SyncFlatsUsecasePort — полный цикл одного фильтра: пагинация, диффинг
// против хранилища, оповещения и write-back.
type SyncFlatsUsecasePort interface {
	Execute(ctx context.Context, filter domain.FlatFilter, now time.Time) (domain.CycleReport, error)
}
