package domain

import "time"

// Flat — одно объявление, извлечённое со страницы выдачи Otodom.
// URL служит идентификатором объявления в рамках одного фильтра.
type Flat struct {
	URL             string     `json:"url"`
	FoundTS         time.Time  `json:"found_ts"`
	Title           string     `json:"title,omitempty"`
	PictureURL      string     `json:"picture_url,omitempty"`
	SummaryLocation string     `json:"summary_location,omitempty"`
	Price           *int64     `json:"price,omitempty"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
	PushedUpAt      *time.Time `json:"pushed_up_at,omitempty"`

	// Geohash заполняется при обогащении деталями (см. FlatDetails).
	Geohash string `json:"geohash,omitempty"`
}

// RecencyTimestamp возвращает момент последнего изменения объявления:
// pushed_up_at, если оно есть, иначе created_at. Это единственный сигнал,
// по которому детектор изменений решает "обновилось или нет".
// Значение нормализовано к naive UTC (см. NaiveUTC). nil — если источник
// не сообщил ни одной даты.
func (f Flat) RecencyTimestamp() *time.Time {
	var ts *time.Time
	switch {
	case f.PushedUpAt != nil:
		ts = f.PushedUpAt
	case f.CreatedAt != nil:
		ts = f.CreatedAt
	default:
		return nil
	}
	normalized := NaiveUTC(*ts)
	return &normalized
}

// NaiveUTC приводит время к UTC без смещения. Повторная нормализация
// уже нормализованного значения — no-op, поэтому сравнение персистентных
// и свежих меток всегда корректно.
func NaiveUTC(t time.Time) time.Time {
	return t.UTC()
}

// FlatList — контейнер для JSON-дампов батчей (WAL-файлы в data/json).
type FlatList struct {
	Flats []Flat `json:"flats"`
}

// FlatDetails — данные со страницы самого объявления (а не выдачи).
// Используются для обогащения новых объявлений перед сохранением.
type FlatDetails struct {
	URL          string     `json:"url"`
	Title        string     `json:"title,omitempty"`
	Area         float64    `json:"area,omitempty"`
	BuildYear    int        `json:"build_year,omitempty"`
	BuildingType string     `json:"building_type,omitempty"`
	FloorNo      string     `json:"floor_no,omitempty"`
	Price        float64    `json:"price,omitempty"`
	PricePerM2   float64    `json:"price_per_m2,omitempty"`
	Latitude     float64    `json:"latitude,omitempty"`
	Longitude    float64    `json:"longitude,omitempty"`
	Geohash      string     `json:"geohash,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	ModifiedAt   *time.Time `json:"modified_at,omitempty"`
}

// RawPage — сырой ответ источника: тело страницы плюс минимум метаданных,
// которых хватает парсеру и диагностике.
type RawPage struct {
	URL        string
	StatusCode int
	Body       []byte
}

// CycleReport — итог одного цикла fetch-diff-persist для одного фильтра.
type CycleReport struct {
	FilterName   string    `json:"filter_name"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	FetchedCount int       `json:"fetched_count"`
	NewCount     int       `json:"new_count"`
	UpdatedCount int       `json:"updated_count"`
	TotalInScope int       `json:"total_in_scope"`
}
