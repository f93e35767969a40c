package port

import (
	"context"

	"github.com/ivanychev/otodom-monitoring/internal/core/domain"
)

// NotifierPort — канал оповещений. Ядро не знает транспорта: Telegram,
// RabbitMQ и их комбинация подключаются адаптерами.
type NotifierPort interface {
	NotifyNew(ctx context.Context, flat domain.Flat, filterName string) error
	NotifyUpdated(ctx context.Context, flat domain.Flat, filterName string) error
	// NotifySummary отправляется после write-back, когда известен итоговый
	// размер скоупа.
	NotifySummary(ctx context.Context, report domain.CycleReport) error
	// NotifyError — ровно одно сообщение на упавший цикл. Если ошибка
	// реализует domain.Diagnostic, полезная нагрузка прикладывается файлом.
	NotifyError(ctx context.Context, runErr error) error
	// NotifyText — служебные сообщения вне цикла: стартовый репорт,
	// ежедневный health-чек.
	NotifyText(ctx context.Context, text string) error
}

// BatchDumperPort сбрасывает батчи объявлений в JSON-файлы (WAL для
// офлайн-разбора и восстановления базы).
type BatchDumperPort interface {
	DumpFetched(flats []domain.Flat, filterName string, nowUnix int64) error
	DumpNew(flats []domain.Flat, filterName string, nowUnix int64) error
	DumpUpdated(flats []domain.Flat, filterName string, nowUnix int64) error
}
