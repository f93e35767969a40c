package domain

import (
	"errors"
	"net/url"
	"strings"
	"testing"
)

func TestRenderRequestIsDeterministic(t *testing.T) {
	filter := NewFlatFilter("warsaw").
		RentAFlat().
		InWarsaw().
		WithInternet().
		WithAirConditioning().
		WithMaxPrice(4000).
		WithMinArea(40).
		WithMinimumBuildYear(2008)

	first, err := filter.RenderRequest(1)
	if err != nil {
		t.Fatalf("RenderRequest failed: %v", err)
	}
	second, err := filter.RenderRequest(1)
	if err != nil {
		t.Fatalf("RenderRequest failed: %v", err)
	}
	if first != second {
		t.Errorf("expected identical URLs, got:\n%s\n%s", first, second)
	}
}

func TestRenderRequestComposesExpectedParams(t *testing.T) {
	filter := NewFlatFilter("warsaw").
		RentAFlat().
		InWarsaw().
		InDistrict("dzielnice_6-40-117").
		WithInternet().
		WithAirConditioning().
		WithMinPrice(2000).
		WithMaxPrice(4000).
		WithMinArea(40).
		WithMaxArea(90).
		WithMinimumBuildYear(2008)

	rendered, err := filter.RenderRequest(3)
	if err != nil {
		t.Fatalf("RenderRequest failed: %v", err)
	}
	parsed, err := url.Parse(rendered)
	if err != nil {
		t.Fatalf("rendered URL does not parse: %v", err)
	}
	if parsed.Path != "/pl/oferty/wynajem/mieszkanie/warszawa" {
		t.Errorf("unexpected path: %s", parsed.Path)
	}

	q := parsed.Query()
	expected := map[string]string{
		"distanceRadius":        "0",
		"limit":                 "36",
		"market":                "ALL",
		"ownerTypeSingleSelect": "ALL",
		"viewType":              "listing",
		"lang":                  "pl",
		"page":                  "3",
		"extras":                "[AIR_CONDITIONING]",
		"media":                 "[INTERNET]",
		"locations":             "[cities_6-26,dzielnice_6-40-117]",
		"buildYearMin":          "2008",
		"priceMin":              "2000",
		"priceMax":              "4000",
		"areaMin":               "40",
		"areaMax":               "90",
	}
	for key, want := range expected {
		if got := q.Get(key); got != want {
			t.Errorf("param %s: got %q, want %q", key, got, want)
		}
	}

	criteria := q["searchingCriteria"]
	want := []string{"wynajem", "mieszkanie", "warszawa"}
	if len(criteria) != len(want) {
		t.Fatalf("searchingCriteria: got %v, want %v", criteria, want)
	}
	for i := range want {
		if criteria[i] != want[i] {
			t.Errorf("searchingCriteria[%d]: got %q, want %q", i, criteria[i], want[i])
		}
	}
}

func TestRenderRequestRequiresCategory(t *testing.T) {
	_, err := NewFlatFilter("nameless").InWarsaw().RenderRequest(1)
	var confErr *ConfigurationError
	if !errors.As(err, &confErr) {
		t.Fatalf("expected a ConfigurationError, got %v", err)
	}
}

func TestRenderRequestRejectsZeroPage(t *testing.T) {
	filter := NewFlatFilter("warsaw").RentAFlat().InWarsaw()
	for _, pageIdx := range []int{0, -1} {
		_, err := filter.RenderRequest(pageIdx)
		var confErr *ConfigurationError
		if !errors.As(err, &confErr) {
			t.Errorf("page %d: expected a ConfigurationError, got %v", pageIdx, err)
		}
	}
}

func TestFilterBuilderDoesNotMutateReceiver(t *testing.T) {
	base := NewFlatFilter("base").RentAFlat().InWarsaw()
	baseURL, err := base.RenderRequest(1)
	if err != nil {
		t.Fatalf("RenderRequest failed: %v", err)
	}

	derived := base.WithAirConditioning().WithMaxPrice(3000).InDistrict("dzielnice_6-40-117")
	derivedURL, err := derived.RenderRequest(1)
	if err != nil {
		t.Fatalf("RenderRequest failed: %v", err)
	}
	if derivedURL == baseURL {
		t.Fatal("derived filter rendered the same URL as the base one")
	}

	afterURL, err := base.RenderRequest(1)
	if err != nil {
		t.Fatalf("RenderRequest failed: %v", err)
	}
	if afterURL != baseURL {
		t.Errorf("base filter changed after deriving a variant:\nbefore: %s\nafter:  %s", baseURL, afterURL)
	}
}

func TestDescribeAccumulatesConstraints(t *testing.T) {
	filter := NewFlatFilter("warsaw").
		RentAFlat().
		InWarsaw().
		WithMaxPrice(4000)

	lines := filter.Describe()
	joined := strings.Join(lines, "\n")
	for _, want := range []string{"renting a flat", "in city warszawa", "with max price 4000"} {
		if !strings.Contains(joined, want) {
			t.Errorf("description %q is missing %q", joined, want)
		}
	}
}

func TestMatchesResidual(t *testing.T) {
	price := func(v int64) *int64 { return &v }
	filter := NewFlatFilter("warsaw").RentAFlat().WithMinPrice(2000).WithMaxPrice(4000).WithMinArea(40).WithMaxArea(90)

	tests := []struct {
		name   string
		price  *int64
		areaM2 float64
		want   bool
	}{
		{"inside all bounds", price(3000), 60, true},
		{"price too high", price(5000), 60, false},
		{"price too low", price(1000), 60, false},
		{"area too small", price(3000), 30, false},
		{"area too large", price(3000), 120, false},
		{"missing price is not a violation", nil, 60, true},
		{"missing area is not a violation", price(3000), 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filter.MatchesResidual(tt.price, tt.areaM2); got != tt.want {
				t.Errorf("MatchesResidual(%v, %v) = %v, want %v", tt.price, tt.areaM2, got, tt.want)
			}
		})
	}
}

func TestFilterRegistry(t *testing.T) {
	registry := FilterRegistry{}
	if err := registry.Register(NewFlatFilter("warsaw").RentAFlat()); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := registry.Register(NewFlatFilter("warsaw").BuyAFlat()); err == nil {
		t.Error("expected an error on a duplicate filter name")
	}
	if err := registry.Register(NewFlatFilter("")); err == nil {
		t.Error("expected an error on an empty filter name")
	}

	selected, err := registry.Select([]string{"warsaw"})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if len(selected) != 1 || selected[0].Name() != "warsaw" {
		t.Errorf("unexpected selection: %v", selected)
	}

	if _, err := registry.Select([]string{"krakow"}); err == nil {
		t.Error("expected an error for an unknown filter name")
	}
}

func TestOfferURL(t *testing.T) {
	got := OfferURL("mieszkanie-w-centrum-ID4abc")
	want := "https://www.otodom.pl/pl/oferta/mieszkanie-w-centrum-ID4abc"
	if got != want {
		t.Errorf("OfferURL: got %q, want %q", got, want)
	}
}
