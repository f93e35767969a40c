package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ivanychev/otodom-monitoring/internal/core/domain"
	"github.com/ivanychev/otodom-monitoring/internal/core/port"
)

// StatusStore хранит итог последнего цикла по каждому фильтру.
// Обновляется пайплайном, читается REST-ручкой.
type StatusStore struct {
	mu      sync.RWMutex
	reports map[string]domain.CycleReport
}

func NewStatusStore() *StatusStore {
	return &StatusStore{reports: make(map[string]domain.CycleReport)}
}

func (s *StatusStore) Record(report domain.CycleReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.FilterName] = report
}

func (s *StatusStore) Snapshot() []domain.CycleReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reports := make([]domain.CycleReport, 0, len(s.reports))
	for _, r := range s.reports {
		reports = append(reports, r)
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].FilterName < reports[j].FilterName })
	return reports
}

// Server — маленькая read-only смотровая площадка процесса: liveness и
// статистика последних циклов.
type Server struct {
	httpServer *http.Server
	logger     port.LoggerPort
}

func NewServer(listenPort string, status *StatusStore, baseLogger port.LoggerPort) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	// Ручки только на чтение, поэтому CORS максимально простой: любой
	// дашборд может дергать /status без preflight-танцев.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"cycles": status.Snapshot(),
		})
	})

	return &Server{
		httpServer: &http.Server{
			Addr:    ":" + listenPort,
			Handler: r,
		},
		logger: baseLogger.WithFields(port.Fields{"component": "rest_server"}),
	}
}

// Start запускает HTTP-сервер
func (s *Server) Start() error {
	s.logger.Info("Starting REST API server", port.Fields{"address": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("Could not start server", err, nil)
		return fmt.Errorf("could not start server: %w", err)
	}
	return nil
}

// Stop корректно останавливает сервер
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping REST API server...", nil)
	return s.httpServer.Shutdown(ctx)
}
