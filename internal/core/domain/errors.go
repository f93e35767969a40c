package domain

import (
	"fmt"
)

// Diagnostic — ошибки, которые несут с собой полезную нагрузку для
// офлайн-разбора (сырой HTML, извлечённый JSON). Нотификатор прикладывает
// её к сообщению об ошибке отдельным файлом.
type Diagnostic interface {
	DiagnosticFilename() string
	DiagnosticPayload() []byte
}

// ConfigurationError — фильтр собран некорректно или конфигурация
// противоречива. Фатальна до любого сетевого вызова.
type ConfigurationError struct {
	Filter string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Filter == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error in filter %q: %s", e.Filter, e.Reason)
}

// FetchError — невосстановимая сетевая ошибка: не-транзиентный статус или
// исчерпанные повторы.
type FetchError struct {
	URL        string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s (status %d, %d attempts): %v", e.URL, e.StatusCode, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// MalformedPageError — на странице вообще нет встроенного JSON-пейлоада.
// Значит, апстрим сменил разметку; тело страницы сохраняем для разбора.
type MalformedPageError struct {
	URL     string
	RawBody []byte
}

func (e *MalformedPageError) Error() string {
	return fmt.Sprintf("page %s has no embedded data payload (%d bytes of html)", e.URL, len(e.RawBody))
}

func (e *MalformedPageError) DiagnosticFilename() string { return "page.html" }
func (e *MalformedPageError) DiagnosticPayload() []byte  { return e.RawBody }

// EmptyDataError — пейлоад есть, но секция с объявлениями пуста. Это не
// "нет результатов" (для него есть явный маркер), а смена контракта
// апстрима.
type EmptyDataError struct {
	URL     string
	Payload []byte
}

func (e *EmptyDataError) Error() string {
	return fmt.Sprintf("the listing data section of %s is empty", e.URL)
}

func (e *EmptyDataError) DiagnosticFilename() string { return "page_next_data.json" }
func (e *EmptyDataError) DiagnosticPayload() []byte  { return e.Payload }

// PaginationInvariantError — страница не помечена как пустая, но парсер не
// извлёк ни одного объявления. Это регрессия парсера, а не конец выдачи,
// поэтому глотать её нельзя.
type PaginationInvariantError struct {
	Filter string
	Page   int
	URL    string
}

func (e *PaginationInvariantError) Error() string {
	return fmt.Sprintf(
		"filter %q: page %d (%s) is not empty but parsed to zero flats, looks like a parser regression",
		e.Filter, e.Page, e.URL,
	)
}

// LocationUnavailableError — у объявления нет обязательной секции локации.
// Политика обработки (пропустить объявление или уронить цикл) настраивается.
type LocationUnavailableError struct {
	ItemID int64
}

func (e *LocationUnavailableError) Error() string {
	return fmt.Sprintf("listing item %d carries no location data", e.ItemID)
}

// LocationPolicy определяет, что делать с объявлением без локации.
type LocationPolicy string

const (
	// LocationPolicyFail — уронить весь цикл (поведение по умолчанию).
	LocationPolicyFail LocationPolicy = "fail"
	// LocationPolicySkip — пропустить объявление, залогировав warning.
	LocationPolicySkip LocationPolicy = "skip"
)

// ParseLocationPolicy валидирует строку из конфигурации.
func ParseLocationPolicy(s string) (LocationPolicy, error) {
	switch LocationPolicy(s) {
	case LocationPolicyFail, LocationPolicySkip:
		return LocationPolicy(s), nil
	case "":
		return LocationPolicyFail, nil
	default:
		return "", &ConfigurationError{Reason: fmt.Sprintf("unknown location policy %q, want %q or %q", s, LocationPolicyFail, LocationPolicySkip)}
	}
}
