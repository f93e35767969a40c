package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/ivanychev/otodom-monitoring/internal/contextkeys"
	"github.com/ivanychev/otodom-monitoring/internal/core/domain"
	"github.com/ivanychev/otodom-monitoring/internal/core/port"
)

// Страниц больше сотни выдача Otodom не отдаёт; предохранитель от
// бесконечной пагинации при поломке маркера пустой страницы.
const defaultPageHardLimit = 100

// FetchFlatsUsecase — драйвер пагинации: рендерит запрос для страниц
// 1..N, качает и парсит их, пока не встретит пустую страницу. Между
// страницами — блокирующая пауза вежливости, чтобы не словить троттлинг.
type FetchFlatsUsecase struct {
	fetcher       port.ListingFetcherPort
	parser        port.PageParserPort
	pageDelay     time.Duration
	pageHardLimit int
}

func NewFetchFlatsUsecase(
	fetcher port.ListingFetcherPort,
	parser port.PageParserPort,
	pageDelay time.Duration,
	pageHardLimit int,
) (*FetchFlatsUsecase, error) {
	if fetcher == nil || parser == nil {
		return nil, fmt.Errorf("fetch flats usecase: fetcher and parser are required")
	}
	if pageHardLimit <= 0 {
		pageHardLimit = defaultPageHardLimit
	}
	return &FetchFlatsUsecase{
		fetcher:       fetcher,
		parser:        parser,
		pageDelay:     pageDelay,
		pageHardLimit: pageHardLimit,
	}, nil
}

// Execute возвращает объявления со всех страниц выдачи фильтра,
// дедуплицированные по URL с сохранением первого вхождения.
func (u *FetchFlatsUsecase) Execute(ctx context.Context, filter domain.FlatFilter, now time.Time) ([]domain.Flat, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "FetchFlatsUsecase",
		"filter":    filter.Name(),
	})

	var flats []domain.Flat
	for pageIdx := 1; pageIdx <= u.pageHardLimit; pageIdx++ {
		// Пауза перед каждым запросом, включая первый: предыдущий фильтр
		// мог закончить работу только что.
		time.Sleep(u.pageDelay)

		pageURL, err := filter.RenderRequest(pageIdx)
		if err != nil {
			return nil, err
		}
		logger.Info("Querying listing page", port.Fields{"url": pageURL, "page": pageIdx})

		page, err := u.fetcher.FetchPage(ctx, pageURL)
		if err != nil {
			return nil, err
		}

		if u.parser.IsEmpty(page) {
			logger.Info("Reached an empty page, stopping pagination", port.Fields{"page": pageIdx})
			break
		}

		parsed, err := u.parser.Parse(page, filter, now)
		if err != nil {
			return nil, err
		}
		if len(parsed) == 0 {
			// Страница не помечена как пустая, но распарсилась в ноль
			// объявлений — это баг парсера, а не конец выдачи.
			return nil, &domain.PaginationInvariantError{Filter: filter.Name(), Page: pageIdx, URL: pageURL}
		}
		flats = append(flats, parsed...)
	}

	deduped := dedupeByURL(flats)
	logger.Info("Finished pagination", port.Fields{
		"fetched": len(flats),
		"unique":  len(deduped),
	})
	return deduped, nil
}

// dedupeByURL убирает дубликаты (одно объявление может попасть и в
// основную, и в промо-выдачу соседних страниц), сохраняя первый увиденный
// экземпляр и порядок.
func dedupeByURL(flats []domain.Flat) []domain.Flat {
	seen := make(map[string]struct{}, len(flats))
	deduped := make([]domain.Flat, 0, len(flats))
	for _, f := range flats {
		if _, ok := seen[f.URL]; ok {
			continue
		}
		seen[f.URL] = struct{}{}
		deduped = append(deduped, f)
	}
	return deduped
}
