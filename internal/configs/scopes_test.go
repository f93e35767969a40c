package configs

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/ivanychev/otodom-monitoring/internal/core/domain"
)

func writeScopesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scopes.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write the scopes file: %v", err)
	}
	return path
}

func TestLoadScopesFileRegistersFilters(t *testing.T) {
	path := writeScopesFile(t, `[
		{
			"name": "krakow_rent",
			"deal": "rent",
			"city": {"slug": "krakow", "token": "cities_6-38"},
			"internet": true,
			"price_max": 3500,
			"area_min": 35
		},
		{
			"name": "warsaw_cheap_buy",
			"deal": "buy",
			"price_max": 600000
		}
	]`)

	registry := domain.FilterRegistry{}
	if err := LoadScopesFile(path, registry); err != nil {
		t.Fatalf("LoadScopesFile failed: %v", err)
	}

	selected, err := registry.Select([]string{"krakow_rent", "warsaw_cheap_buy"})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	rendered, err := selected[0].RenderRequest(1)
	if err != nil {
		t.Fatalf("RenderRequest failed: %v", err)
	}
	parsed, err := url.Parse(rendered)
	if err != nil {
		t.Fatalf("rendered URL does not parse: %v", err)
	}
	if parsed.Path != "/pl/oferty/wynajem/mieszkanie/krakow" {
		t.Errorf("unexpected path: %s", parsed.Path)
	}
	q := parsed.Query()
	if q.Get("priceMax") != "3500" || q.Get("areaMin") != "35" || q.Get("media") != "[INTERNET]" {
		t.Errorf("unexpected query: %s", parsed.RawQuery)
	}

	// Город не задан — фильтр по умолчанию варшавский.
	rendered, err = selected[1].RenderRequest(1)
	if err != nil {
		t.Fatalf("RenderRequest failed: %v", err)
	}
	parsed, err = url.Parse(rendered)
	if err != nil {
		t.Fatalf("rendered URL does not parse: %v", err)
	}
	if parsed.Path != "/pl/oferty/sprzedaz/mieszkanie/warszawa" {
		t.Errorf("unexpected path: %s", parsed.Path)
	}
}

func TestLoadScopesFileRejectsInvalidPayload(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing required deal", `[{"name": "broken"}]`},
		{"unknown deal value", `[{"name": "broken", "deal": "lease"}]`},
		{"unknown extra property", `[{"name": "broken", "deal": "rent", "color": "red"}]`},
		{"not an array", `{"name": "broken", "deal": "rent"}`},
		{"not a json", `definitely not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScopesFile(t, tt.content)
			if err := LoadScopesFile(path, domain.FilterRegistry{}); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestLoadScopesFileMissingFile(t *testing.T) {
	err := LoadScopesFile(filepath.Join(t.TempDir(), "absent.json"), domain.FilterRegistry{})
	if err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLoadScopesFileDuplicateAgainstRegistry(t *testing.T) {
	path := writeScopesFile(t, `[{"name": "warsaw_rent", "deal": "rent"}]`)
	registry, err := DefaultFilterRegistry()
	if err != nil {
		t.Fatalf("DefaultFilterRegistry failed: %v", err)
	}
	if err := LoadScopesFile(path, registry); err == nil {
		t.Error("expected a collision with the built-in warsaw_rent filter")
	}
}

func TestDefaultFilterRegistryIsSelectable(t *testing.T) {
	registry, err := DefaultFilterRegistry()
	if err != nil {
		t.Fatalf("DefaultFilterRegistry failed: %v", err)
	}
	filters, err := registry.Select([]string{"warsaw_rent", "warsaw_rent_ochota", "warsaw_buy"})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	for _, f := range filters {
		if _, err := f.RenderRequest(1); err != nil {
			t.Errorf("filter %s does not render: %v", f.Name(), err)
		}
	}
}
