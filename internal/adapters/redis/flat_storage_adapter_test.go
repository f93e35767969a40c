package redis

import (
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/ivanychev/otodom-monitoring/internal/core/domain"
)

// flatFromFields разбирает хеш обратно в запись, зеркально к flatToFields.
func flatFromFields(fields map[string]string) (domain.Flat, error) {
	foundTS, err := time.Parse(timeFormat, fields["found_ts"])
	if err != nil {
		return domain.Flat{}, fmt.Errorf("corrupted found_ts %q: %w", fields["found_ts"], err)
	}
	f := domain.Flat{
		URL:             fields["url"],
		FoundTS:         foundTS,
		Title:           fields["title"],
		PictureURL:      fields["picture_url"],
		SummaryLocation: fields["summary_location"],
		Geohash:         fields["geohash"],
	}
	if raw := fields["price"]; raw != "" {
		price, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return domain.Flat{}, fmt.Errorf("corrupted price %q: %w", raw, err)
		}
		f.Price = &price
	}
	if f.CreatedAt, err = parseOptionalTime(fields["created_at"]); err != nil {
		return domain.Flat{}, err
	}
	if f.PushedUpAt, err = parseOptionalTime(fields["pushed_up_at"]); err != nil {
		return domain.Flat{}, err
	}
	return f, nil
}

func parseOptionalTime(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(timeFormat, raw)
	if err != nil {
		return nil, fmt.Errorf("corrupted timestamp %q: %w", raw, err)
	}
	utc := domain.NaiveUTC(t)
	return &utc, nil
}

func fieldsToStrings(t *testing.T, fields map[string]interface{}) map[string]string {
	t.Helper()
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		s, ok := v.(string)
		if !ok {
			t.Fatalf("field %s is not a string: %T", k, v)
		}
		out[k] = s
	}
	return out
}

func TestFlatFieldsRoundTrip(t *testing.T) {
	price := int64(3200)
	created := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)
	pushedUp := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)

	original := domain.Flat{
		URL:             "https://www.otodom.pl/pl/oferta/slug-1",
		FoundTS:         time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC),
		Title:           "Mieszkanie na Ochocie",
		PictureURL:      "https://img.example.com/m.jpg",
		SummaryLocation: "Warszawa Ochota",
		Price:           &price,
		CreatedAt:       &created,
		PushedUpAt:      &pushedUp,
		Geohash:         "u3qcnhhx",
	}

	restored, err := flatFromFields(fieldsToStrings(t, flatToFields(original)))
	if err != nil {
		t.Fatalf("flatFromFields failed: %v", err)
	}

	if restored.URL != original.URL ||
		restored.Title != original.Title ||
		restored.PictureURL != original.PictureURL ||
		restored.SummaryLocation != original.SummaryLocation ||
		restored.Geohash != original.Geohash {
		t.Errorf("scalar fields did not survive the round trip: %+v", restored)
	}
	if !restored.FoundTS.Equal(original.FoundTS) {
		t.Errorf("FoundTS: got %v, want %v", restored.FoundTS, original.FoundTS)
	}
	if restored.Price == nil || *restored.Price != price {
		t.Errorf("Price: got %v", restored.Price)
	}
	if restored.CreatedAt == nil || !restored.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt: got %v", restored.CreatedAt)
	}
	if restored.PushedUpAt == nil || !restored.PushedUpAt.Equal(pushedUp) {
		t.Errorf("PushedUpAt: got %v", restored.PushedUpAt)
	}
}

func TestFlatFieldsRoundTripWithAbsentValues(t *testing.T) {
	original := domain.Flat{
		URL:     "https://www.otodom.pl/pl/oferta/slug-2",
		FoundTS: time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC),
	}

	restored, err := flatFromFields(fieldsToStrings(t, flatToFields(original)))
	if err != nil {
		t.Fatalf("flatFromFields failed: %v", err)
	}
	if restored.Price != nil || restored.CreatedAt != nil || restored.PushedUpAt != nil {
		t.Errorf("absent values must stay absent: %+v", restored)
	}
}

func TestFlatFieldsRecencyMatchesDomainRule(t *testing.T) {
	created := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)
	pushedUp := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)
	flat := domain.Flat{
		URL:        "https://www.otodom.pl/pl/oferta/slug-3",
		FoundTS:    time.Now().UTC(),
		CreatedAt:  &created,
		PushedUpAt: &pushedUp,
	}

	fields := fieldsToStrings(t, flatToFields(flat))
	stored, err := time.Parse(timeFormat, fields[recencyField])
	if err != nil {
		t.Fatalf("stored recency does not parse: %v", err)
	}
	if !stored.Equal(pushedUp) {
		t.Errorf("recency field: got %v, want the pushed-up timestamp %v", stored, pushedUp)
	}
}
