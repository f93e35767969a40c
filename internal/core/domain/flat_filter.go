package domain

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const (
	listingBaseURL = "https://www.otodom.pl/pl/oferty"
	offerBaseURL   = "https://www.otodom.pl/pl/oferta"

	// Otodom отдаёт максимум 36 объявлений на страницу.
	pageSize = 36
)

// FlatFilter — именованный, неизменяемый набор критериев поиска.
// Каждый метод With*/In* возвращает НОВОЕ значение фильтра, не трогая
// исходное: после регистрации в реестре фильтр никогда не мутируется.
type FlatFilter struct {
	name        string
	category    string // например "wynajem/mieszkanie"
	citySlug    string // сегмент пути, например "warszawa"
	cityToken   string // токен для locations, например "cities_6-26"
	districts   []string
	extras      []string
	media       []string
	priceMin    int64
	priceMax    int64
	areaMin     int
	areaMax     int
	minYear     int
	description []string
}

// NewFlatFilter создает пустой фильтр с именем. Имя — это query scope,
// под которым записи хранятся и репортятся.
func NewFlatFilter(name string) FlatFilter {
	return FlatFilter{name: name}
}

func (f FlatFilter) Name() string { return f.name }

// clone делает глубокую копию: слайсы нельзя разделять между вариантами,
// иначе append на копии испортит оригинал.
func (f FlatFilter) clone() FlatFilter {
	c := f
	c.districts = append([]string(nil), f.districts...)
	c.extras = append([]string(nil), f.extras...)
	c.media = append([]string(nil), f.media...)
	c.description = append([]string(nil), f.description...)
	return c
}

func (f FlatFilter) describedAs(line string) FlatFilter {
	f.description = append(f.description, line)
	return f
}

// RentAFlat — базовая категория: аренда квартиры.
func (f FlatFilter) RentAFlat() FlatFilter {
	c := f.clone()
	c.category = "wynajem/mieszkanie"
	return c.describedAs("renting a flat")
}

// BuyAFlat — покупка квартиры.
func (f FlatFilter) BuyAFlat() FlatFilter {
	c := f.clone()
	c.category = "sprzedaz/mieszkanie"
	return c.describedAs("buying a flat")
}

// InCity задает город: slug для пути и токен для параметра locations.
func (f FlatFilter) InCity(slug, token string) FlatFilter {
	c := f.clone()
	c.citySlug = slug
	c.cityToken = token
	return c.describedAs(fmt.Sprintf("in city %s", slug))
}

// InWarsaw — наиболее используемый город, поэтому шорткат.
func (f FlatFilter) InWarsaw() FlatFilter {
	return f.InCity("warszawa", "cities_6-26")
}

// InDistrict добавляет токен района (например "dzielnice_6-40-117").
func (f FlatFilter) InDistrict(token string) FlatFilter {
	c := f.clone()
	c.districts = append(c.districts, token)
	return c.describedAs(fmt.Sprintf("in district %s", token))
}

func (f FlatFilter) WithAirConditioning() FlatFilter {
	c := f.clone()
	c.extras = appendUnique(c.extras, "AIR_CONDITIONING")
	return c.describedAs("with air conditioning")
}

func (f FlatFilter) WithInternet() FlatFilter {
	c := f.clone()
	c.media = appendUnique(c.media, "INTERNET")
	return c.describedAs("with internet")
}

func (f FlatFilter) WithMaxPrice(price int64) FlatFilter {
	c := f.clone()
	c.priceMax = price
	return c.describedAs(fmt.Sprintf("with max price %d", price))
}

func (f FlatFilter) WithMinPrice(price int64) FlatFilter {
	c := f.clone()
	c.priceMin = price
	return c.describedAs(fmt.Sprintf("with min price %d", price))
}

func (f FlatFilter) WithMinArea(area int) FlatFilter {
	c := f.clone()
	c.areaMin = area
	return c.describedAs(fmt.Sprintf("with min area %d m2", area))
}

func (f FlatFilter) WithMaxArea(area int) FlatFilter {
	c := f.clone()
	c.areaMax = area
	return c.describedAs(fmt.Sprintf("with max area %d m2", area))
}

func (f FlatFilter) WithMinimumBuildYear(year int) FlatFilter {
	c := f.clone()
	c.minYear = year
	return c.describedAs(fmt.Sprintf("built after %d", year))
}

// Describe возвращает накопленный человекочитаемый список ограничений.
// Используется только для отчётов оператору, не для матчинга.
func (f FlatFilter) Describe() []string {
	return append([]string(nil), f.description...)
}

// RenderRequest собирает URL страницы выдачи для 1-базного номера страницы.
// Для одного и того же фильтра и страницы результат побайтно стабилен:
// net/url сортирует ключи, а множественные значения кодируются в порядке
// добавления.
func (f FlatFilter) RenderRequest(pageIdx int) (string, error) {
	if f.category == "" {
		return "", &ConfigurationError{Filter: f.name, Reason: "filter category is not set (call RentAFlat/BuyAFlat first)"}
	}
	if pageIdx < 1 {
		return "", &ConfigurationError{Filter: f.name, Reason: fmt.Sprintf("page index must be 1-based, got %d", pageIdx)}
	}

	citySlug := f.citySlug
	if citySlug == "" {
		citySlug = "cala-polska"
	}
	u, err := url.Parse(listingBaseURL + "/" + f.category + "/" + citySlug)
	if err != nil {
		return "", &ConfigurationError{Filter: f.name, Reason: fmt.Sprintf("malformed listing URL: %v", err)}
	}

	q := u.Query()
	q.Set("distanceRadius", "0")
	q.Set("limit", strconv.Itoa(pageSize))
	q.Set("market", "ALL")
	q.Set("ownerTypeSingleSelect", "ALL")
	q.Set("viewType", "listing")
	q.Set("lang", "pl")
	q.Set("page", strconv.Itoa(pageIdx))
	q.Set("extras", bracketList(f.extras))
	q.Set("media", bracketList(f.media))
	if f.cityToken != "" {
		locations := append([]string{f.cityToken}, f.districts...)
		q.Set("locations", bracketList(locations))
	}
	for _, criteria := range strings.Split(f.category, "/") {
		q.Add("searchingCriteria", criteria)
	}
	q.Add("searchingCriteria", citySlug)
	if f.minYear != 0 {
		q.Set("buildYearMin", strconv.Itoa(f.minYear))
	}
	if f.priceMin != 0 {
		q.Set("priceMin", strconv.FormatInt(f.priceMin, 10))
	}
	if f.priceMax != 0 {
		q.Set("priceMax", strconv.FormatInt(f.priceMax, 10))
	}
	if f.areaMin != 0 {
		q.Set("areaMin", strconv.Itoa(f.areaMin))
	}
	if f.areaMax != 0 {
		q.Set("areaMax", strconv.Itoa(f.areaMax))
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// MatchesResidual — страховочный фильтр поверх того, что уже закодировано
// в URL: выдача Otodom иногда подмешивает промо-объявления, не подходящие
// под критерии. Отсутствующая цена (nil) не считается нарушением ценовых
// границ.
func (f FlatFilter) MatchesResidual(price *int64, areaM2 float64) bool {
	if price != nil {
		if f.priceMax != 0 && *price > f.priceMax {
			return false
		}
		if f.priceMin != 0 && *price < f.priceMin {
			return false
		}
	}
	if areaM2 != 0 {
		if f.areaMin != 0 && areaM2 < float64(f.areaMin) {
			return false
		}
		if f.areaMax != 0 && areaM2 > float64(f.areaMax) {
			return false
		}
	}
	return true
}

// OfferURL строит канонический URL объявления по его slug.
func OfferURL(slug string) string {
	return offerBaseURL + "/" + slug
}

// bracketList рендерит множество значений в формат Otodom: "[A,B]".
// Значения сортируются, чтобы URL был детерминированным.
func bracketList(values []string) string {
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	return "[" + strings.Join(sorted, ",") + "]"
}

func appendUnique(values []string, v string) []string {
	for _, existing := range values {
		if existing == v {
			return values
		}
	}
	return append(values, v)
}

// FilterRegistry — реестр именованных фильтров. Собирается один раз на
// старте процесса и дальше только читается.
type FilterRegistry map[string]FlatFilter

// Register добавляет фильтр; коллизия имён — ошибка конфигурации.
func (r FilterRegistry) Register(f FlatFilter) error {
	if f.Name() == "" {
		return &ConfigurationError{Reason: "cannot register a filter without a name"}
	}
	if _, ok := r[f.Name()]; ok {
		return &ConfigurationError{Filter: f.Name(), Reason: "filter with this name is already registered"}
	}
	r[f.Name()] = f
	return nil
}

// Select возвращает фильтры по именам, падая на неизвестном имени.
func (r FilterRegistry) Select(names []string) ([]FlatFilter, error) {
	selected := make([]FlatFilter, 0, len(names))
	for _, name := range names {
		f, ok := r[name]
		if !ok {
			known := make([]string, 0, len(r))
			for n := range r {
				known = append(known, n)
			}
			sort.Strings(known)
			return nil, &ConfigurationError{
				Filter: name,
				Reason: fmt.Sprintf("unknown filter, known filters: %s", strings.Join(known, ", ")),
			}
		}
		selected = append(selected, f)
	}
	return selected, nil
}
