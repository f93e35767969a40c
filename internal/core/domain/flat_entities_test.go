package domain

import (
	"testing"
	"time"
)

func TestRecencyTimestampPrefersPushedUp(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	pushedUp := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		flat Flat
		want *time.Time
	}{
		{"pushed up wins over created", Flat{CreatedAt: &created, PushedUpAt: &pushedUp}, &pushedUp},
		{"created alone", Flat{CreatedAt: &created}, &created},
		{"pushed up alone", Flat{PushedUpAt: &pushedUp}, &pushedUp},
		{"no timestamps", Flat{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.flat.RecencyTimestamp()
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("RecencyTimestamp() = %v, want %v", got, tt.want)
			}
			if got != nil && !got.Equal(*tt.want) {
				t.Errorf("RecencyTimestamp() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecencyTimestampNormalizesToUTC(t *testing.T) {
	warsaw := time.FixedZone("CET", 3600)
	local := time.Date(2024, 3, 1, 13, 0, 0, 0, warsaw)
	flat := Flat{CreatedAt: &local}

	got := flat.RecencyTimestamp()
	if got == nil {
		t.Fatal("expected a timestamp")
	}
	if got.Location() != time.UTC {
		t.Errorf("expected a UTC timestamp, got location %v", got.Location())
	}
	want := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNaiveUTCIsIdempotent(t *testing.T) {
	warsaw := time.FixedZone("CEST", 2*3600)
	local := time.Date(2024, 7, 1, 14, 0, 0, 0, warsaw)

	once := NaiveUTC(local)
	twice := NaiveUTC(once)
	if !once.Equal(twice) || once != twice {
		t.Errorf("NaiveUTC is not idempotent: %v vs %v", once, twice)
	}
}
