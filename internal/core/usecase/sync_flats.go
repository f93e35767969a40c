package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/ivanychev/otodom-monitoring/internal/contextkeys"
	"github.com/ivanychev/otodom-monitoring/internal/core/domain"
	"github.com/ivanychev/otodom-monitoring/internal/core/port"
	"github.com/ivanychev/otodom-monitoring/internal/core/port/usecases_port"
)

// SyncFlatsUsecase — цикл одного фильтра целиком: пагинация, классификация
// против хранилища, оповещения и write-back.
type SyncFlatsUsecase struct {
	fetchFlats    usecases_port.FetchFlatsUsecasePort
	storage       port.FlatStoragePort
	notifier      port.NotifierPort
	dumper        port.BatchDumperPort
	detailFetcher port.DetailFetcherPort // nil, если обогащение выключено
	sendReport    bool
}

func NewSyncFlatsUsecase(
	fetchFlats usecases_port.FetchFlatsUsecasePort,
	storage port.FlatStoragePort,
	notifier port.NotifierPort,
	dumper port.BatchDumperPort,
	detailFetcher port.DetailFetcherPort,
	sendReport bool,
) (*SyncFlatsUsecase, error) {
	if fetchFlats == nil || storage == nil || notifier == nil || dumper == nil {
		return nil, fmt.Errorf("sync flats usecase: fetchFlats, storage, notifier and dumper are required")
	}
	return &SyncFlatsUsecase{
		fetchFlats:    fetchFlats,
		storage:       storage,
		notifier:      notifier,
		dumper:        dumper,
		detailFetcher: detailFetcher,
		sendReport:    sendReport,
	}, nil
}

// ClassifyFlats делит свежий батч на новые и обновлённые объявления по
// персистентным recency-меткам. Правило: нет в хранилище — новое; свежая
// метка СТРОГО больше сохранённой — обновлённое; равная или меньшая (или
// отсутствующая у свежей записи) — без изменений, запись отбрасывается.
// Функция чистая: два вызова на одном батче без write-back между ними дают
// одинаковый результат.
func ClassifyFlats(fresh []domain.Flat, persisted map[string]time.Time) (newFlats, updatedFlats []domain.Flat) {
	for _, f := range fresh {
		saved, ok := persisted[f.URL]
		if !ok {
			newFlats = append(newFlats, f)
			continue
		}
		recency := f.RecencyTimestamp()
		if recency != nil && recency.After(domain.NaiveUTC(saved)) {
			updatedFlats = append(updatedFlats, f)
		}
	}
	return newFlats, updatedFlats
}

// Execute выполняет цикл фильтра. Любая ошибка обрывает цикл целиком:
// частичной записи результатов не бывает, следующий тик планировщика
// начнёт пагинацию заново с первой страницы.
func (u *SyncFlatsUsecase) Execute(ctx context.Context, filter domain.FlatFilter, now time.Time) (domain.CycleReport, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "SyncFlatsUsecase",
		"filter":    filter.Name(),
	})
	report := domain.CycleReport{FilterName: filter.Name(), StartedAt: now}

	flats, err := u.fetchFlats.Execute(ctx, filter, now)
	if err != nil {
		return report, err
	}
	report.FetchedCount = len(flats)
	logger.Info("Fetched flats", port.Fields{"count": len(flats)})

	if err := u.dumper.DumpFetched(flats, filter.Name(), now.Unix()); err != nil {
		logger.Warn("Failed to dump fetched flats", port.Fields{"error": err.Error()})
	}

	urls := make([]string, len(flats))
	for i, f := range flats {
		urls[i] = f.URL
	}
	// Один bulk-запрос на весь батч: и быстрее, и поверхность отказа —
	// одна операция.
	persisted, err := u.storage.LookupMany(ctx, urls, filter.Name())
	if err != nil {
		return report, fmt.Errorf("failed to look up persisted flats: %w", err)
	}

	newFlats, updatedFlats := ClassifyFlats(flats, persisted)
	report.NewCount = len(newFlats)
	report.UpdatedCount = len(updatedFlats)
	logger.Info("Classified flats", port.Fields{"new": len(newFlats), "updated": len(updatedFlats)})

	newFlats = u.enrich(ctx, logger, newFlats)

	if err := u.dumper.DumpNew(newFlats, filter.Name(), now.Unix()); err != nil {
		logger.Warn("Failed to dump new flats", port.Fields{"error": err.Error()})
	}
	if err := u.dumper.DumpUpdated(updatedFlats, filter.Name(), now.Unix()); err != nil {
		logger.Warn("Failed to dump updated flats", port.Fields{"error": err.Error()})
	}

	// Сначала оповещения, потом write-back: если отправка упала, при
	// следующем цикле объявление снова классифицируется как новое и
	// оповещение не потеряется.
	for _, f := range newFlats {
		if err := u.notifier.NotifyNew(ctx, f, filter.Name()); err != nil {
			return report, fmt.Errorf("failed to notify about a new flat %s: %w", f.URL, err)
		}
	}
	for _, f := range updatedFlats {
		if err := u.notifier.NotifyUpdated(ctx, f, filter.Name()); err != nil {
			return report, fmt.Errorf("failed to notify about an updated flat %s: %w", f.URL, err)
		}
	}

	if err := u.storage.InsertMany(ctx, newFlats, filter.Name()); err != nil {
		return report, fmt.Errorf("failed to insert new flats: %w", err)
	}
	// Частичного update у хранилища нет: обновлённые записи перезаписываются
	// через delete + insert.
	updatedURLs := make([]string, len(updatedFlats))
	for i, f := range updatedFlats {
		updatedURLs[i] = f.URL
	}
	if err := u.storage.DeleteMany(ctx, updatedURLs, filter.Name()); err != nil {
		return report, fmt.Errorf("failed to delete stale flats: %w", err)
	}
	if err := u.storage.InsertMany(ctx, updatedFlats, filter.Name()); err != nil {
		return report, fmt.Errorf("failed to reinsert updated flats: %w", err)
	}

	total, err := u.storage.CountInScope(ctx, filter.Name())
	if err != nil {
		return report, fmt.Errorf("failed to count flats in scope: %w", err)
	}
	report.TotalInScope = total
	report.FinishedAt = time.Now()

	// SEND_REPORT=false отключает итоговую сводку цикла; оповещения о
	// конкретных объявлениях отправляются в любом случае.
	if u.sendReport {
		if err := u.notifier.NotifySummary(ctx, report); err != nil {
			return report, fmt.Errorf("failed to send the cycle summary: %w", err)
		}
	}
	return report, nil
}

// enrich подтягивает детали страницы объявления (координаты → geohash)
// для новых объявлений. Обогащение — best effort: его отказ не может
// уронить цикл.
func (u *SyncFlatsUsecase) enrich(ctx context.Context, logger port.LoggerPort, flats []domain.Flat) []domain.Flat {
	if u.detailFetcher == nil {
		return flats
	}
	enriched := make([]domain.Flat, 0, len(flats))
	for _, f := range flats {
		details, err := u.detailFetcher.FetchDetails(ctx, f.URL)
		if err != nil {
			logger.Warn("Failed to enrich a flat with details", port.Fields{
				"url":   f.URL,
				"error": err.Error(),
			})
			enriched = append(enriched, f)
			continue
		}
		f.Geohash = details.Geohash
		enriched = append(enriched, f)
	}
	return enriched
}
