package otodomfetcher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/PuerkitoBio/goquery"

	"github.com/ivanychev/otodom-monitoring/internal/constants"
	"github.com/ivanychev/otodom-monitoring/internal/core/domain"
)

// Структуры встроенного пейлоада __NEXT_DATA__. Описано только то, что
// реально используется: Otodom регулярно добавляет поля.
type nextData struct {
	Props struct {
		PageProps struct {
			Data json.RawMessage `json:"data"`
		} `json:"pageProps"`
	} `json:"props"`
}

type listingData struct {
	SearchAds               adGroup  `json:"searchAds"`
	SearchAdsRandomPromoted *adGroup `json:"searchAdsRandomPromoted"`
}

type adGroup struct {
	Items []listingItem `json:"items"`
}

type listingItem struct {
	ID                 int64           `json:"id"`
	Slug               string          `json:"slug"`
	Title              string          `json:"title"`
	AreaInSquareMeters float64         `json:"areaInSquareMeters"`
	TotalPrice         *itemPrice      `json:"totalPrice"`
	Images             []itemImage     `json:"images"`
	Location           json.RawMessage `json:"location"`
	DateCreated        string          `json:"dateCreated"`
	PushedUpAt         string          `json:"pushedUpAt"`
}

type itemPrice struct {
	Value float64 `json:"value"`
}

type itemImage struct {
	Medium string `json:"medium"`
	Large  string `json:"large"`
	Small  string `json:"small"`
}

type itemLocation struct {
	ReverseGeocoding *struct {
		Locations []struct {
			FullName string `json:"fullName"`
		} `json:"locations"`
	} `json:"reverseGeocoding"`
}

// OtodomListingParser извлекает объявления со страницы выдачи Otodom.
// Реализует port.PageParserPort; для других провайдеров заводится свой
// парсер, выбор происходит на этапе конфигурации.
type OtodomListingParser struct {
	locationPolicy domain.LocationPolicy
	warnFn         func(msg string, err error)
	warsaw         *time.Location
}

// NewOtodomListingParser — конструктор. warnFn — колбэк для нефатальных
// аномалий записи (немой по умолчанию); политика локации решает судьбу
// объявлений без географии.
func NewOtodomListingParser(locationPolicy domain.LocationPolicy, warnFn func(msg string, err error)) (*OtodomListingParser, error) {
	if warnFn == nil {
		warnFn = func(string, error) {}
	}
	// Otodom публикует dateCreated в варшавском локальном времени.
	warsaw, err := time.LoadLocation(constants.OtodomTimezone)
	if err != nil {
		return nil, fmt.Errorf("otodom parser: failed to load %s tz: %w", constants.OtodomTimezone, err)
	}
	return &OtodomListingParser{
		locationPolicy: locationPolicy,
		warnFn:         warnFn,
		warsaw:         warsaw,
	}, nil
}

// IsEmpty — на странице есть явный маркер "нет результатов". Это валидное
// терминальное состояние, а не ошибка.
func (p *OtodomListingParser) IsEmpty(page domain.RawPage) bool {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return false
	}
	return doc.Find(`[data-cy="no-search-results"]`).Length() > 0
}

// Parse реализует контракт парсера страниц (см. port.PageParserPort):
// достаёт __NEXT_DATA__, сливает основную и промо-выдачу, применяет
// страховочный фильтр и собирает доменные записи.
func (p *OtodomListingParser) Parse(page domain.RawPage, filter domain.FlatFilter, now time.Time) ([]domain.Flat, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, &domain.MalformedPageError{URL: page.URL, RawBody: page.Body}
	}

	payloadText := doc.Find("script#__NEXT_DATA__").Text()
	if payloadText == "" {
		return nil, &domain.MalformedPageError{URL: page.URL, RawBody: page.Body}
	}

	var payload nextData
	if err := json.Unmarshal([]byte(payloadText), &payload); err != nil {
		return nil, &domain.MalformedPageError{URL: page.URL, RawBody: page.Body}
	}

	rawData := bytes.TrimSpace(payload.Props.PageProps.Data)
	if len(rawData) == 0 || bytes.Equal(rawData, []byte("null")) || bytes.Equal(rawData, []byte("{}")) {
		// Секция с объявлениями пуста — апстрим сменил контракт. Весь
		// пейлоад уезжает в диагностику.
		return nil, &domain.EmptyDataError{URL: page.URL, Payload: []byte(payloadText)}
	}

	var data listingData
	if err := json.Unmarshal(rawData, &data); err != nil {
		return nil, &domain.EmptyDataError{URL: page.URL, Payload: []byte(payloadText)}
	}

	// Основная выдача первой, промо — следом; дубликаты по id провайдера
	// отбрасываются с сохранением первого вхождения.
	merged := data.SearchAds.Items
	if data.SearchAdsRandomPromoted != nil {
		merged = append(merged, data.SearchAdsRandomPromoted.Items...)
	}
	seen := make(map[int64]struct{}, len(merged))

	var flats []domain.Flat
	for _, item := range merged {
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}

		var price *int64
		if item.TotalPrice != nil {
			v := int64(item.TotalPrice.Value)
			price = &v
		}
		if !filter.MatchesResidual(price, item.AreaInSquareMeters) {
			continue
		}

		summaryLocation, err := p.summaryLocation(item)
		if err != nil {
			if p.locationPolicy == domain.LocationPolicySkip {
				p.warnFn(fmt.Sprintf("skipping item %d without location", item.ID), err)
				continue
			}
			return nil, err
		}

		flats = append(flats, domain.Flat{
			URL:             domain.OfferURL(item.Slug),
			FoundTS:         now,
			Title:           item.Title,
			PictureURL:      pickImageURL(item.Images),
			SummaryLocation: summaryLocation,
			Price:           price,
			CreatedAt:       p.parseItemTime(item.DateCreated, item.ID),
			PushedUpAt:      p.parseItemTime(item.PushedUpAt, item.ID),
		})
	}
	return flats, nil
}

// summaryLocation собирает человекочитаемую локацию: сегменты обратного
// геокодинга в обратном порядке (от крупного к мелкому), через пробел.
// Полное отсутствие секции location — отдельное, различимое состояние.
func (p *OtodomListingParser) summaryLocation(item listingItem) (string, error) {
	if len(bytes.TrimSpace(item.Location)) == 0 || bytes.Equal(bytes.TrimSpace(item.Location), []byte("null")) {
		return "", &domain.LocationUnavailableError{ItemID: item.ID}
	}
	var loc itemLocation
	if err := json.Unmarshal(item.Location, &loc); err != nil {
		return "", &domain.LocationUnavailableError{ItemID: item.ID}
	}
	if loc.ReverseGeocoding == nil {
		return "", nil
	}
	segments := loc.ReverseGeocoding.Locations
	names := make([]string, 0, len(segments))
	for i := len(segments) - 1; i >= 0; i-- {
		names = append(names, segments[i].FullName)
	}
	return strings.Join(names, " "), nil
}

// parseItemTime разбирает дату объявления максимально терпимо: кривой
// апстрим-формат или невозможная календарная дата (вроде 1999-02-29)
// превращаются в отсутствие значения, а не в падение батча.
func (p *OtodomListingParser) parseItemTime(s string, itemID int64) *time.Time {
	t, err := parseOtodomTime(s, p.warsaw)
	if err != nil {
		p.warnFn(fmt.Sprintf("item %d carries an unparsable date %q", itemID, s), err)
	}
	return t
}

var otodomTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// parseOtodomTime возвращает (nil, nil) для пустых строк и невозможных
// календарных дат, (nil, err) для прочего мусора.
func parseOtodomTime(s string, loc *time.Location) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var lastErr error
	for _, layout := range otodomTimeLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			utc := domain.NaiveUTC(t)
			return &utc, nil
		}
		// Даты вида `1999-02-29 00:00:01` апстрим отдаёт регулярно.
		if strings.Contains(err.Error(), "day out of range") {
			return nil, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// pickImageURL выбирает самую полезную картинку: medium → large → small.
func pickImageURL(images []itemImage) string {
	if len(images) == 0 {
		return ""
	}
	first := images[0]
	switch {
	case first.Medium != "":
		return first.Medium
	case first.Large != "":
		return first.Large
	case first.Small != "":
		return first.Small
	}
	return ""
}
