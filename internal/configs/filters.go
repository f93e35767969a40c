package configs

import (
	"github.com/ivanychev/otodom-monitoring/internal/core/domain"
)

// DefaultFilterRegistry возвращает реестр встроенных фильтров поиска.
// Фильтры, загруженные из SCOPES_FILE, добавляются поверх этих.
func DefaultFilterRegistry() (domain.FilterRegistry, error) {
	registry := domain.FilterRegistry{}

	builtins := []domain.FlatFilter{
		domain.NewFlatFilter("warsaw_rent").
			RentAFlat().
			InWarsaw().
			WithInternet().
			WithAirConditioning().
			WithMaxPrice(4000).
			WithMinArea(40).
			WithMinimumBuildYear(2008),

		domain.NewFlatFilter("warsaw_rent_ochota").
			RentAFlat().
			InWarsaw().
			InDistrict("dzielnice_6-26-39").
			WithInternet().
			WithMaxPrice(4500).
			WithMinArea(38),

		domain.NewFlatFilter("warsaw_buy").
			BuyAFlat().
			InWarsaw().
			WithMinArea(50).
			WithMinimumBuildYear(2010),
	}

	for _, f := range builtins {
		if err := registry.Register(f); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
