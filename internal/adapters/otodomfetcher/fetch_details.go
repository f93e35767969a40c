package otodomfetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcloughlin/geohash"

	"github.com/ivanychev/otodom-monitoring/internal/contextkeys"
	"github.com/ivanychev/otodom-monitoring/internal/core/domain"
	"github.com/ivanychev/otodom-monitoring/internal/core/port"
)

// Точности geohash в 8 символов (~±19 м) хватает, чтобы различать дома.
const geohashPrecision = 8

// Пейлоад страницы одного объявления.
type adNextData struct {
	Props struct {
		PageProps struct {
			Ad *adPayload `json:"ad"`
		} `json:"pageProps"`
	} `json:"props"`
}

type adPayload struct {
	URL             string             `json:"url"`
	Title           string             `json:"title"`
	CreatedAt       string             `json:"createdAt"`
	ModifiedAt      string             `json:"modifiedAt"`
	Characteristics []adCharacteristic `json:"characteristics"`
	Images          []itemImage        `json:"images"`
	Location        *struct {
		Coordinates *struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"coordinates"`
	} `json:"location"`
}

type adCharacteristic struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// FetchDetails качает страницу объявления и извлекает из её пейлоада
// характеристики и координаты. Координаты сворачиваются в geohash,
// который и сохраняется с записью.
func (a *OtodomFetcherAdapter) FetchDetails(ctx context.Context, offerURL string) (*domain.FlatDetails, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "OtodomFetcherAdapter(FetchDetails)",
	})
	logger.Debug("Fetching offer details", port.Fields{"url": offerURL})

	page, err := a.FetchPage(ctx, offerURL)
	if err != nil {
		return nil, err
	}
	return parseDetailsPage(page)
}

func parseDetailsPage(page domain.RawPage) (*domain.FlatDetails, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, &domain.MalformedPageError{URL: page.URL, RawBody: page.Body}
	}
	payloadText := doc.Find("script#__NEXT_DATA__").Text()
	if payloadText == "" {
		return nil, &domain.MalformedPageError{URL: page.URL, RawBody: page.Body}
	}
	var payload adNextData
	if err := json.Unmarshal([]byte(payloadText), &payload); err != nil {
		return nil, &domain.MalformedPageError{URL: page.URL, RawBody: page.Body}
	}
	ad := payload.Props.PageProps.Ad
	if ad == nil {
		return nil, &domain.EmptyDataError{URL: page.URL, Payload: []byte(payloadText)}
	}

	characteristics := make(map[string]string, len(ad.Characteristics))
	for _, c := range ad.Characteristics {
		characteristics[c.Key] = c.Value
	}

	details := &domain.FlatDetails{
		URL:          ad.URL,
		Title:        ad.Title,
		Area:         characteristicFloat(characteristics, "m"),
		BuildYear:    characteristicInt(characteristics, "build_year"),
		BuildingType: characteristics["building_type"],
		FloorNo:      characteristics["floor_no"],
		Price:        characteristicFloat(characteristics, "price"),
		PricePerM2:   characteristicFloat(characteristics, "price_per_m"),
		CreatedAt:    parseDetailTime(ad.CreatedAt),
		ModifiedAt:   parseDetailTime(ad.ModifiedAt),
	}
	if details.URL == "" {
		details.URL = page.URL
	}
	if ad.Location != nil && ad.Location.Coordinates != nil {
		coords := ad.Location.Coordinates
		details.Latitude = coords.Latitude
		details.Longitude = coords.Longitude
		details.Geohash = geohash.EncodeWithPrecision(coords.Latitude, coords.Longitude, geohashPrecision)
	}
	return details, nil
}

func characteristicFloat(characteristics map[string]string, key string) float64 {
	v, err := strconv.ParseFloat(characteristics[key], 64)
	if err != nil {
		return 0
	}
	return v
}

func characteristicInt(characteristics map[string]string, key string) int {
	v, err := strconv.Atoi(characteristics[key])
	if err != nil {
		return 0
	}
	return v
}

// Страница объявления отдаёт createdAt/modifiedAt уже в ISO с зоной.
func parseDetailTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	utc := domain.NaiveUTC(t)
	return &utc
}
