package configs

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ivanychev/otodom-monitoring/internal/core/domain"
)

// scopesSchema описывает формат файла SCOPES_FILE. Файл — это массив
// описаний фильтров поиска, собираемых поверх встроенного реестра.
const scopesSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "Otodom search scopes",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["name", "deal"],
    "additionalProperties": false,
    "properties": {
      "name": {"type": "string", "minLength": 1},
      "deal": {"type": "string", "enum": ["rent", "buy"]},
      "city": {
        "type": "object",
        "required": ["slug", "token"],
        "additionalProperties": false,
        "properties": {
          "slug": {"type": "string", "minLength": 1},
          "token": {"type": "string", "minLength": 1}
        }
      },
      "districts": {
        "type": "array",
        "items": {"type": "string", "minLength": 1}
      },
      "air_conditioning": {"type": "boolean"},
      "internet": {"type": "boolean"},
      "price_min": {"type": "integer", "minimum": 0},
      "price_max": {"type": "integer", "minimum": 0},
      "area_min": {"type": "integer", "minimum": 0},
      "area_max": {"type": "integer", "minimum": 0},
      "build_year_min": {"type": "integer", "minimum": 1800}
    }
  }
}`

// scopeSpec — одна запись файла SCOPES_FILE после прохождения валидации.
type scopeSpec struct {
	Name string `json:"name"`
	Deal string `json:"deal"`
	City *struct {
		Slug  string `json:"slug"`
		Token string `json:"token"`
	} `json:"city"`
	Districts       []string `json:"districts"`
	AirConditioning bool     `json:"air_conditioning"`
	Internet        bool     `json:"internet"`
	PriceMin        int64    `json:"price_min"`
	PriceMax        int64    `json:"price_max"`
	AreaMin         int      `json:"area_min"`
	AreaMax         int      `json:"area_max"`
	BuildYearMin    int      `json:"build_year_min"`
}

// LoadScopesFile читает JSON-файл с фильтрами, валидирует его по схеме и
// регистрирует собранные фильтры в переданном реестре.
func LoadScopesFile(path string, registry domain.FilterRegistry) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read scopes file %s: %w", path, err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("scopes.json", strings.NewReader(scopesSchema)); err != nil {
		return fmt.Errorf("failed to add scopes schema resource: %w", err)
	}
	schema, err := compiler.Compile("scopes.json")
	if err != nil {
		return fmt.Errorf("failed to compile scopes schema: %w", err)
	}

	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("scopes file %s is not a valid JSON: %w", path, err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("scopes file %s failed schema validation: %w", path, err)
	}

	var specs []scopeSpec
	if err := json.Unmarshal(raw, &specs); err != nil {
		return fmt.Errorf("failed to decode scopes file %s: %w", path, err)
	}

	for _, spec := range specs {
		if err := registry.Register(buildFilter(spec)); err != nil {
			return err
		}
	}
	return nil
}

func buildFilter(spec scopeSpec) domain.FlatFilter {
	f := domain.NewFlatFilter(spec.Name)
	switch spec.Deal {
	case "rent":
		f = f.RentAFlat()
	case "buy":
		f = f.BuyAFlat()
	}
	if spec.City != nil {
		f = f.InCity(spec.City.Slug, spec.City.Token)
	} else {
		f = f.InWarsaw()
	}
	for _, district := range spec.Districts {
		f = f.InDistrict(district)
	}
	if spec.AirConditioning {
		f = f.WithAirConditioning()
	}
	if spec.Internet {
		f = f.WithInternet()
	}
	if spec.PriceMin > 0 {
		f = f.WithMinPrice(spec.PriceMin)
	}
	if spec.PriceMax > 0 {
		f = f.WithMaxPrice(spec.PriceMax)
	}
	if spec.AreaMin > 0 {
		f = f.WithMinArea(spec.AreaMin)
	}
	if spec.AreaMax > 0 {
		f = f.WithMaxArea(spec.AreaMax)
	}
	if spec.BuildYearMin > 0 {
		f = f.WithMinimumBuildYear(spec.BuildYearMin)
	}
	return f
}
