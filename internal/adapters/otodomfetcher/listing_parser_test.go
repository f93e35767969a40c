package otodomfetcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ivanychev/otodom-monitoring/internal/core/domain"
)

func mustParser(t *testing.T, policy domain.LocationPolicy) *OtodomListingParser {
	t.Helper()
	parser, err := NewOtodomListingParser(policy, nil)
	if err != nil {
		t.Fatalf("NewOtodomListingParser failed: %v", err)
	}
	return parser
}

func listingPage(t *testing.T, data interface{}) domain.RawPage {
	t.Helper()
	payload := map[string]interface{}{
		"props": map[string]interface{}{
			"pageProps": map[string]interface{}{"data": data},
		},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal the fixture: %v", err)
	}
	body := fmt.Sprintf(
		`<html><body><script id="__NEXT_DATA__" type="application/json">%s</script></body></html>`,
		raw,
	)
	return domain.RawPage{URL: "https://www.otodom.pl/pl/oferty/test", StatusCode: 200, Body: []byte(body)}
}

func listingItemFixture(id int64, slug string) map[string]interface{} {
	return map[string]interface{}{
		"id":                 id,
		"slug":               slug,
		"title":              "Mieszkanie " + slug,
		"areaInSquareMeters": 55.0,
		"totalPrice":         map[string]interface{}{"value": 3200.0},
		"images": []map[string]interface{}{
			{"medium": "https://img.example.com/m.jpg", "large": "https://img.example.com/l.jpg"},
		},
		"location": map[string]interface{}{
			"reverseGeocoding": map[string]interface{}{
				"locations": []map[string]interface{}{
					{"fullName": "Ochota"},
					{"fullName": "Warszawa"},
				},
			},
		},
		"dateCreated": "2024-03-01 12:00:00",
	}
}

func searchData(primary, promoted []map[string]interface{}) map[string]interface{} {
	data := map[string]interface{}{
		"searchAds": map[string]interface{}{"items": primary},
	}
	if promoted != nil {
		data["searchAdsRandomPromoted"] = map[string]interface{}{"items": promoted}
	}
	return data
}

func permissiveFilter() domain.FlatFilter {
	return domain.NewFlatFilter("test").RentAFlat().InWarsaw()
}

func TestIsEmptyDetectsNoResultsMarker(t *testing.T) {
	parser := mustParser(t, domain.LocationPolicyFail)

	empty := domain.RawPage{Body: []byte(`<html><body><div data-cy="no-search-results">Brak wyników</div></body></html>`)}
	if !parser.IsEmpty(empty) {
		t.Error("expected the no-results page to be empty")
	}

	nonEmpty := listingPage(t, searchData([]map[string]interface{}{listingItemFixture(1, "a")}, nil))
	if parser.IsEmpty(nonEmpty) {
		t.Error("a page with listings must not be considered empty")
	}
}

func TestParseReturnsMalformedPageErrorWithRawBody(t *testing.T) {
	parser := mustParser(t, domain.LocationPolicyFail)
	body := []byte(`<html><body>no payload here</body></html>`)

	_, err := parser.Parse(domain.RawPage{URL: "https://x", Body: body}, permissiveFilter(), time.Now())
	var malformed *domain.MalformedPageError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected a MalformedPageError, got %v", err)
	}
	if string(malformed.DiagnosticPayload()) != string(body) {
		t.Error("the raw body must be attached to the error for diagnostics")
	}
}

func TestParseReturnsEmptyDataErrorOnEmptyDataSection(t *testing.T) {
	parser := mustParser(t, domain.LocationPolicyFail)

	for _, data := range []interface{}{nil, map[string]interface{}{}} {
		_, err := parser.Parse(listingPage(t, data), permissiveFilter(), time.Now())
		var emptyErr *domain.EmptyDataError
		if !errors.As(err, &emptyErr) {
			t.Errorf("data=%v: expected an EmptyDataError, got %v", data, err)
		}
	}
}

func TestParseMergesPromotedAndDeduplicatesByID(t *testing.T) {
	parser := mustParser(t, domain.LocationPolicyFail)

	duplicate := listingItemFixture(1, "primary-slug")
	promotedDup := listingItemFixture(1, "promoted-slug")
	promotedNew := listingItemFixture(2, "promoted-only")

	page := listingPage(t, searchData(
		[]map[string]interface{}{duplicate},
		[]map[string]interface{}{promotedDup, promotedNew},
	))
	flats, err := parser.Parse(page, permissiveFilter(), time.Now())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(flats) != 2 {
		t.Fatalf("expected 2 flats after dedupe, got %d", len(flats))
	}
	// Первое вхождение (из основной выдачи) выигрывает у промо-дубликата.
	if flats[0].URL != domain.OfferURL("primary-slug") {
		t.Errorf("expected the primary item to win, got %s", flats[0].URL)
	}
	if flats[1].URL != domain.OfferURL("promoted-only") {
		t.Errorf("expected the promoted-only item second, got %s", flats[1].URL)
	}
}

func TestParseComposesFields(t *testing.T) {
	parser := mustParser(t, domain.LocationPolicyFail)
	now := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

	page := listingPage(t, searchData([]map[string]interface{}{listingItemFixture(7, "slug-7")}, nil))
	flats, err := parser.Parse(page, permissiveFilter(), now)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(flats) != 1 {
		t.Fatalf("expected 1 flat, got %d", len(flats))
	}

	flat := flats[0]
	if flat.URL != "https://www.otodom.pl/pl/oferta/slug-7" {
		t.Errorf("unexpected URL: %s", flat.URL)
	}
	if !flat.FoundTS.Equal(now) {
		t.Errorf("FoundTS must be the cycle timestamp, got %v", flat.FoundTS)
	}
	if flat.PictureURL != "https://img.example.com/m.jpg" {
		t.Errorf("medium image must win, got %s", flat.PictureURL)
	}
	// Сегменты reverseGeocoding в обратном порядке: от крупного к мелкому.
	if flat.SummaryLocation != "Warszawa Ochota" {
		t.Errorf("unexpected location: %q", flat.SummaryLocation)
	}
	if flat.Price == nil || *flat.Price != 3200 {
		t.Errorf("unexpected price: %v", flat.Price)
	}
	if flat.CreatedAt == nil {
		t.Fatal("expected CreatedAt to be parsed")
	}
	// 2024-03-01 12:00 по Варшаве (CET, +1) — это 11:00 UTC.
	wantCreated := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)
	if !flat.CreatedAt.Equal(wantCreated) {
		t.Errorf("CreatedAt: got %v, want %v", flat.CreatedAt, wantCreated)
	}
}

func TestParseImagePriority(t *testing.T) {
	tests := []struct {
		name   string
		images []itemImage
		want   string
	}{
		{"medium wins", []itemImage{{Medium: "m", Large: "l", Small: "s"}}, "m"},
		{"large when no medium", []itemImage{{Large: "l", Small: "s"}}, "l"},
		{"small as the last resort", []itemImage{{Small: "s"}}, "s"},
		{"no images", nil, ""},
		{"only the first image matters", []itemImage{{}, {Medium: "m2"}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pickImageURL(tt.images); got != tt.want {
				t.Errorf("pickImageURL = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseAppliesResidualFilter(t *testing.T) {
	parser := mustParser(t, domain.LocationPolicyFail)
	strict := domain.NewFlatFilter("strict").RentAFlat().InWarsaw().WithMaxPrice(3000)

	cheap := listingItemFixture(1, "cheap")
	cheap["totalPrice"] = map[string]interface{}{"value": 2500.0}
	expensive := listingItemFixture(2, "expensive")
	expensive["totalPrice"] = map[string]interface{}{"value": 9000.0}

	page := listingPage(t, searchData([]map[string]interface{}{cheap, expensive}, nil))
	flats, err := parser.Parse(page, strict, time.Now())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(flats) != 1 || flats[0].URL != domain.OfferURL("cheap") {
		t.Errorf("the residual filter must drop the expensive promo item, got %v", flats)
	}
}

func TestParseLocationPolicy(t *testing.T) {
	noLocation := listingItemFixture(5, "no-location")
	noLocation["location"] = nil
	withLocation := listingItemFixture(6, "with-location")
	page := func() domain.RawPage {
		return listingPage(t, searchData([]map[string]interface{}{noLocation, withLocation}, nil))
	}

	t.Run("fail policy aborts the batch", func(t *testing.T) {
		parser := mustParser(t, domain.LocationPolicyFail)
		_, err := parser.Parse(page(), permissiveFilter(), time.Now())
		var locErr *domain.LocationUnavailableError
		if !errors.As(err, &locErr) {
			t.Fatalf("expected a LocationUnavailableError, got %v", err)
		}
		if locErr.ItemID != 5 {
			t.Errorf("expected the error to name item 5, got %d", locErr.ItemID)
		}
	})

	t.Run("skip policy drops the item and warns", func(t *testing.T) {
		var warned int
		parser, err := NewOtodomListingParser(domain.LocationPolicySkip, func(string, error) { warned++ })
		if err != nil {
			t.Fatalf("NewOtodomListingParser failed: %v", err)
		}
		flats, err := parser.Parse(page(), permissiveFilter(), time.Now())
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if len(flats) != 1 || flats[0].URL != domain.OfferURL("with-location") {
			t.Errorf("expected only the located item, got %v", flats)
		}
		if warned == 0 {
			t.Error("expected a warning about the skipped item")
		}
	})
}

func TestParseMissingReverseGeocodingIsEmptyLocation(t *testing.T) {
	parser := mustParser(t, domain.LocationPolicyFail)
	item := listingItemFixture(8, "bare-location")
	item["location"] = map[string]interface{}{}

	page := listingPage(t, searchData([]map[string]interface{}{item}, nil))
	flats, err := parser.Parse(page, permissiveFilter(), time.Now())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(flats) != 1 || flats[0].SummaryLocation != "" {
		t.Errorf("a location without reverseGeocoding must render as empty, got %v", flats)
	}
}

func TestParseOtodomTime(t *testing.T) {
	warsaw, err := time.LoadLocation("Europe/Warsaw")
	if err != nil {
		t.Fatalf("failed to load the Warsaw tz: %v", err)
	}

	t.Run("impossible calendar dates are silently absent", func(t *testing.T) {
		got, err := parseOtodomTime("1999-02-29 00:00:01", warsaw)
		if err != nil || got != nil {
			t.Errorf("got (%v, %v), want (nil, nil)", got, err)
		}
	})

	t.Run("empty string is absent", func(t *testing.T) {
		got, err := parseOtodomTime("", warsaw)
		if err != nil || got != nil {
			t.Errorf("got (%v, %v), want (nil, nil)", got, err)
		}
	})

	t.Run("garbage is an error", func(t *testing.T) {
		got, err := parseOtodomTime("tomorrow-ish", warsaw)
		if err == nil || got != nil {
			t.Errorf("got (%v, %v), want (nil, error)", got, err)
		}
	})

	t.Run("supported layouts", func(t *testing.T) {
		for _, s := range []string{
			"2024-03-01 12:00:00",
			"2024-03-01T12:00:00",
			"2024-03-01",
		} {
			got, err := parseOtodomTime(s, warsaw)
			if err != nil || got == nil {
				t.Errorf("%q: got (%v, %v), want a timestamp", s, got, err)
				continue
			}
			if got.Location() != time.UTC {
				t.Errorf("%q: parsed time must be normalized to UTC", s)
			}
		}
	})
}
