package filestorage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ivanychev/otodom-monitoring/internal/core/domain"
)

// BatchDumperAdapter пишет каждый батч объявлений в JSON-файл под
// data/json. Эти файлы — WAL: по ним разбираются инциденты и из них можно
// восстановить базу (см. команду load-from-wal).
type BatchDumperAdapter struct {
	jsonPath string
}

// NewBatchDumperAdapter создает каталоги данных при необходимости.
func NewBatchDumperAdapter(basePath string) (*BatchDumperAdapter, error) {
	jsonPath := filepath.Join(basePath, "data", "json")
	if err := os.MkdirAll(jsonPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create the dump directory %s: %w", jsonPath, err)
	}
	return &BatchDumperAdapter{jsonPath: jsonPath}, nil
}

func (a *BatchDumperAdapter) DumpFetched(flats []domain.Flat, filterName string, nowUnix int64) error {
	return a.dump("fetched", flats, filterName, nowUnix)
}

func (a *BatchDumperAdapter) DumpNew(flats []domain.Flat, filterName string, nowUnix int64) error {
	return a.dump("new", flats, filterName, nowUnix)
}

func (a *BatchDumperAdapter) DumpUpdated(flats []domain.Flat, filterName string, nowUnix int64) error {
	return a.dump("updated", flats, filterName, nowUnix)
}

func (a *BatchDumperAdapter) dump(kind string, flats []domain.Flat, filterName string, nowUnix int64) error {
	if flats == nil {
		flats = []domain.Flat{}
	}
	body, err := json.MarshalIndent(domain.FlatList{Flats: flats}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal the %s flat list: %w", kind, err)
	}
	name := fmt.Sprintf("%s_flat_list_%s_%d.json", kind, filterName, nowUnix)
	if err := os.WriteFile(filepath.Join(a.jsonPath, name), body, 0o644); err != nil {
		return fmt.Errorf("failed to write the %s dump: %w", kind, err)
	}
	return nil
}

// LoadDumpedFlats читает один WAL-файл обратно. Используется при
// восстановлении базы из дампов.
func LoadDumpedFlats(path string) ([]domain.Flat, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read the dump %s: %w", path, err)
	}
	var list domain.FlatList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("failed to parse the dump %s: %w", path, err)
	}
	return list.Flats, nil
}

// ListFetchedDumps возвращает пути fetched-файлов одного фильтра. Имена
// фильтров бывают префиксами друг друга (warsaw_rent и warsaw_rent_ochota),
// поэтому после glob проверяем, что хвост имени — это чистый таймстемп.
func (a *BatchDumperAdapter) ListFetchedDumps(filterName string) ([]string, error) {
	prefix := fmt.Sprintf("fetched_flat_list_%s_", filterName)
	matches, err := filepath.Glob(filepath.Join(a.jsonPath, prefix+"*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob dumps: %w", err)
	}
	paths := make([]string, 0, len(matches))
	for _, p := range matches {
		rest := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(p), prefix), ".json")
		if _, err := strconv.ParseInt(rest, 10, 64); err != nil {
			continue
		}
		paths = append(paths, p)
	}
	return paths, nil
}
