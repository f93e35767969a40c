package internal

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fluent/fluent-logger-golang/fluent"
	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivanychev/otodom-monitoring/internal/adapters/filestorage"
	logger_adapter "github.com/ivanychev/otodom-monitoring/internal/adapters/logger"
	notifier_adapter "github.com/ivanychev/otodom-monitoring/internal/adapters/notifier"
	"github.com/ivanychev/otodom-monitoring/internal/adapters/otodomfetcher"
	postgres_adapter "github.com/ivanychev/otodom-monitoring/internal/adapters/postgres"
	rabbitmq_adapter "github.com/ivanychev/otodom-monitoring/internal/adapters/rabbitmq"
	redis_adapter "github.com/ivanychev/otodom-monitoring/internal/adapters/redis"
	"github.com/ivanychev/otodom-monitoring/internal/adapters/rest"
	"github.com/ivanychev/otodom-monitoring/internal/adapters/telegram"
	"github.com/ivanychev/otodom-monitoring/internal/configs"
	"github.com/ivanychev/otodom-monitoring/internal/contextkeys"
	"github.com/ivanychev/otodom-monitoring/internal/core/domain"
	"github.com/ivanychev/otodom-monitoring/internal/core/port"
	"github.com/ivanychev/otodom-monitoring/internal/core/port/usecases_port"
	"github.com/ivanychev/otodom-monitoring/internal/core/usecase"
)

// App – структура приложения
type App struct {
	config       *configs.AppConfig
	dbPool       *pgxpool.Pool
	redisClient  *goredis.Client
	amqpNotifier *rabbitmq_adapter.FlatEventsPublisher
	fluentClient *fluent.Fluent
	logger       port.LoggerPort
	baseLogger   port.LoggerPort

	filters  []domain.FlatFilter
	notifier port.NotifierPort
	syncer   usecases_port.SyncFlatsUsecasePort
	storage  port.FlatStoragePort
	dumper   *filestorage.BatchDumperAdapter

	statusStore *rest.StatusStore
	restServer  *rest.Server
}

// NewApp создает новый экземпляр приложения.
// Это "Composition Root", где все зависимости создаются и связываются.
func NewApp() (*App, error) {
	appConfig, err := configs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading application configuration: %w", err)
	}

	// --- 1. ИНИЦИАЛИЗАЦИЯ ЛОГГЕРОВ ---
	var activeLoggers []port.LoggerPort

	slogCfg := logger_adapter.SlogConfig{
		Level:    parseLogLevel(appConfig.StdoutLogger.Level),
		IsJSON:   false, // текстовый формат
		UseColor: true,
	}
	stdoutLogger := logger_adapter.NewSlogAdapter(slogCfg)
	activeLoggers = append(activeLoggers, stdoutLogger)

	var fluentClient *fluent.Fluent
	if appConfig.FluentBit.Enabled {
		fluentClient, err = logger_adapter.NewFluentClient(logger_adapter.FluentConfig{
			Host:      appConfig.FluentBit.Host,
			Port:      appConfig.FluentBit.Port,
			TagPrefix: appConfig.AppName,
		})
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit client", err, nil)
			return nil, fmt.Errorf("failed to create fluentbit client: %w", err)
		}

		fluentAdapter, err := logger_adapter.NewFluentLoggerAdapter(fluentClient, parseLogLevel(appConfig.FluentBit.Level))
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit adapter", err, nil)
			fluentClient.Close()
			return nil, err
		}
		activeLoggers = append(activeLoggers, fluentAdapter)
	}

	multiLogger, err := logger_adapter.NewMultiloggerAdapter(activeLoggers...)
	if err != nil {
		return nil, fmt.Errorf("failed to create multi-logger: %w", err)
	}

	// --- 2. БАЗОВЫЙ ЛОГГЕР ПРИЛОЖЕНИЯ С КОНТЕКСТОМ ---
	baseLogger := multiLogger.WithFields(port.Fields{
		"service_name": appConfig.AppName,
	})
	appLogger := baseLogger.WithFields(port.Fields{"component": "app"})
	appLogger.Info("Logger system initialized", port.Fields{
		"active_loggers": len(activeLoggers), "fluent_enabled": appConfig.FluentBit.Enabled,
	})

	// --- 3. РЕЕСТР ФИЛЬТРОВ ---
	registry, err := configs.DefaultFilterRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to build the default filter registry: %w", err)
	}
	if appConfig.Fetch.ScopesFile != "" {
		if err := configs.LoadScopesFile(appConfig.Fetch.ScopesFile, registry); err != nil {
			appLogger.Error("Failed to load the scopes file", err, port.Fields{"path": appConfig.Fetch.ScopesFile})
			return nil, err
		}
		appLogger.Info("Scopes file loaded", port.Fields{"path": appConfig.Fetch.ScopesFile})
	}
	filters, err := registry.Select(appConfig.Fetch.FilterNames)
	if err != nil {
		return nil, err
	}

	// --- 4. ХРАНИЛИЩЕ ---
	var (
		storage     port.FlatStoragePort
		dbPool      *pgxpool.Pool
		redisClient *goredis.Client
	)
	switch appConfig.Storage.Backend {
	case "postgres":
		dbPool, err = postgres_adapter.NewClient(context.Background(), postgres_adapter.Config{
			DatabaseURL: appConfig.Storage.DatabaseURL,
			MaxConns:    int32(appConfig.Storage.PostgresMaxConns),
		})
		if err != nil {
			appLogger.Error("Failed to connect to PostgreSQL", err, nil)
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		appLogger.Info("Successfully connected to PostgreSQL pool!", nil)

		pgStorage, err := postgres_adapter.NewPostgresFlatStorageAdapter(dbPool)
		if err != nil {
			dbPool.Close()
			return nil, err
		}
		if err := pgStorage.EnsureSchema(context.Background()); err != nil {
			appLogger.Error("Failed to ensure the flats schema", err, nil)
			dbPool.Close()
			return nil, err
		}
		storage = pgStorage
	case "redis":
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:     appConfig.Storage.RedisAddr,
			Password: appConfig.Storage.RedisPassword,
			DB:       appConfig.Storage.RedisDB,
		})
		redisStorage, err := redis_adapter.NewRedisFlatStorageAdapter(context.Background(), redisClient, appConfig.Storage.RedisNamespace)
		if err != nil {
			appLogger.Error("Failed to connect to Redis", err, nil)
			_ = redisClient.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		appLogger.Info("Successfully connected to Redis!", nil)
		storage = redisStorage
	}

	closeStorage := func() {
		if dbPool != nil {
			dbPool.Close()
		}
		if redisClient != nil {
			_ = redisClient.Close()
		}
	}

	// --- 5. ФЕТЧЕР И ПАРСЕР ---
	fetcherAdapter, err := otodomfetcher.NewOtodomFetcherAdapter(otodomfetcher.DefaultRetryPolicy())
	if err != nil {
		appLogger.Error("Failed to create Otodom Fetcher Adapter", err, nil)
		closeStorage()
		return nil, fmt.Errorf("failed to initialize otodom fetcher: %w", err)
	}
	parserLogger := baseLogger.WithFields(port.Fields{"component": "listing_parser"})
	listingParser, err := otodomfetcher.NewOtodomListingParser(appConfig.Fetch.LocationPolicy, func(msg string, err error) {
		parserLogger.Warn(msg, port.Fields{"error": err.Error()})
	})
	if err != nil {
		closeStorage()
		return nil, fmt.Errorf("failed to initialize the listing parser: %w", err)
	}
	appLogger.Info("Otodom Fetcher Adapter initialized.", nil)

	// --- 6. ОПОВЕЩЕНИЯ ---
	var notifiers []port.NotifierPort
	if appConfig.Telegram.Enabled {
		channelID, err := telegram.ResolveChannelID(appConfig.Telegram.ChannelID)
		if err != nil {
			closeStorage()
			return nil, err
		}
		telegramLogger := baseLogger.WithFields(port.Fields{"component": "telegram_notifier"})
		telegramNotifier, err := telegram.NewTelegramNotifier(appConfig.Telegram.BotToken, channelID, telegramLogger)
		if err != nil {
			closeStorage()
			return nil, fmt.Errorf("failed to initialize the telegram notifier: %w", err)
		}
		notifiers = append(notifiers, telegramNotifier)
	}
	var amqpNotifier *rabbitmq_adapter.FlatEventsPublisher
	if appConfig.RabbitMQ.Enabled {
		amqpLogger := baseLogger.WithFields(port.Fields{"component": "rabbitmq_publisher"})
		amqpNotifier, err = rabbitmq_adapter.NewFlatEventsPublisher(appConfig.RabbitMQ.URL, appConfig.RabbitMQ.Exchange, amqpLogger)
		if err != nil {
			appLogger.Error("Failed to create the RabbitMQ publisher", err, port.Fields{"url": appConfig.RabbitMQ.URL})
			closeStorage()
			return nil, fmt.Errorf("failed to create the rabbitmq publisher: %w", err)
		}
		notifiers = append(notifiers, amqpNotifier)
		appLogger.Info("RabbitMQ Event Publisher initialized.", nil)
	}
	notifier, err := notifier_adapter.NewMultiNotifier(notifiers...)
	if err != nil {
		closeStorage()
		return nil, err
	}

	// --- 7. ДАМПЕР БАТЧЕЙ ---
	dumper, err := filestorage.NewBatchDumperAdapter(appConfig.DataPath)
	if err != nil {
		closeStorage()
		return nil, fmt.Errorf("failed to initialize the batch dumper: %w", err)
	}

	// --- 8. USE CASES (ядро бизнес-логики) ---
	fetchFlats, err := usecase.NewFetchFlatsUsecase(fetcherAdapter, listingParser, appConfig.Fetch.PageDelay, appConfig.Fetch.PageHardLimit)
	if err != nil {
		closeStorage()
		return nil, err
	}
	var detailFetcher port.DetailFetcherPort
	if appConfig.Fetch.EnrichDetails {
		detailFetcher = fetcherAdapter
	}
	syncer, err := usecase.NewSyncFlatsUsecase(fetchFlats, storage, notifier, dumper, detailFetcher, appConfig.Fetch.SendReport)
	if err != nil {
		closeStorage()
		return nil, err
	}
	appLogger.Info("All use cases initialized.", nil)

	// --- 9. REST-СТАТУС ---
	statusStore := rest.NewStatusStore()
	restServer := rest.NewServer(appConfig.Rest.Port, statusStore, baseLogger)

	application := &App{
		config:       appConfig,
		dbPool:       dbPool,
		redisClient:  redisClient,
		amqpNotifier: amqpNotifier,
		fluentClient: fluentClient,
		logger:       appLogger,
		baseLogger:   baseLogger,
		filters:      filters,
		notifier:     notifier,
		syncer:       syncer,
		storage:      storage,
		dumper:       dumper,
		statusStore:  statusStore,
		restServer:   restServer,
	}
	return application, nil
}

// RunOnce прогоняет один цикл по всем активным фильтрам и завершается.
func (a *App) RunOnce() error {
	defer a.closeResources()
	a.reportLaunch(context.Background())
	a.runCycle(context.Background())
	return nil
}

// RestoreFromDumps перечитывает fetched-дампы указанного фильтра из
// каталога данных и заливает их в его scope хранилища. Дампы других
// фильтров не трогаются. Дубликаты перезаписываются (delete + insert),
// поэтому повторный прогон безопасен.
func (a *App) RestoreFromDumps(filterName string) error {
	defer a.closeResources()
	ctx := context.Background()

	paths, err := a.dumper.ListFetchedDumps(filterName)
	if err != nil {
		return err
	}
	a.logger.Info("Restoring flats from dumps", port.Fields{"files": len(paths), "filter": filterName})

	total := 0
	for _, path := range paths {
		flats, err := filestorage.LoadDumpedFlats(path)
		if err != nil {
			return err
		}
		urls := make([]string, len(flats))
		for i, f := range flats {
			urls[i] = f.URL
		}
		if err := a.storage.DeleteMany(ctx, urls, filterName); err != nil {
			return err
		}
		if err := a.storage.InsertMany(ctx, flats, filterName); err != nil {
			return err
		}
		total += len(flats)
	}
	a.logger.Info("Dump restore finished", port.Fields{"flats": total})
	return nil
}

// Run запускает все компоненты приложения и управляет их жизненным циклом.
func (a *App) Run() error {
	appCtx, cancelApp := context.WithCancel(context.Background())

	var wg sync.WaitGroup

	defer func() {
		a.logger.Info("Shutdown sequence initiated...", nil)

		a.logger.Info("Waiting for background processes to finish...", nil)
		wg.Wait()
		a.logger.Info("All background processes finished.", nil)

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := a.restServer.Stop(shutdownCtx); err != nil {
			a.logger.Error("Error stopping the REST server", err, nil)
		}

		a.closeResources()
		a.logger.Info("Application shut down gracefully.", nil)
	}()

	a.logger.Info("Application is starting...", nil)
	a.reportLaunch(appCtx)

	serverErrors := make(chan error, 1)
	go func() {
		if err := a.restServer.Start(); err != nil {
			serverErrors <- err
		}
	}()

	// Планировщик циклов: первый прогон сразу, дальше — по тикеру.
	wg.Add(1)
	go func() {
		defer wg.Done()
		interval := time.Duration(a.config.Fetch.IntervalMinutes) * time.Minute
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		a.runCycle(appCtx)
		for {
			select {
			case <-appCtx.Done():
				return
			case <-ticker.C:
				a.runCycle(appCtx)
			}
		}
	}()

	// Ежедневное сообщение, что бот жив.
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-appCtx.Done():
				return
			case <-ticker.C:
				a.reportHealth(appCtx)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	a.logger.Info("Application running. Waiting for signals or a server error...", nil)
	select {
	case receivedSignal := <-quit:
		a.logger.Warn("Received signal, shutting down", port.Fields{"signal": receivedSignal.String()})
	case err := <-serverErrors:
		a.logger.Error("A critical component failed, shutting down", err, nil)
	case <-appCtx.Done():
		a.logger.Warn("Context was cancelled unexpectedly, shutting down", nil)
	}

	cancelApp()
	return nil
}

// runCycle прогоняет все активные фильтры последовательно. Ошибка цикла
// одного фильтра репортится и не мешает остальным.
func (a *App) runCycle(ctx context.Context) {
	for _, filter := range a.filters {
		if ctx.Err() != nil {
			return
		}
		cycleID := uuid.NewString()
		cycleLogger := a.baseLogger.WithFields(port.Fields{
			"cycle_id": cycleID,
			"filter":   filter.Name(),
		})
		cycleCtx := contextkeys.ContextWithLogger(ctx, cycleLogger)
		cycleCtx = contextkeys.ContextWithCycleID(cycleCtx, cycleID)

		report, err := a.syncer.Execute(cycleCtx, filter, time.Now())
		if err != nil {
			cycleLogger.Error("Filter cycle failed", err, nil)
			if notifyErr := a.notifier.NotifyError(cycleCtx, err); notifyErr != nil {
				cycleLogger.Error("Failed to report the cycle error", notifyErr, nil)
			}
			continue
		}
		a.statusStore.Record(report)
		cycleLogger.Info("Filter cycle finished", port.Fields{
			"fetched": report.FetchedCount,
			"new":     report.NewCount,
			"updated": report.UpdatedCount,
			"total":   report.TotalInScope,
		})
	}
}

// reportLaunch отправляет стартовое сообщение со списком активных фильтров.
func (a *App) reportLaunch(ctx context.Context) {
	if !a.config.Fetch.SendReport {
		return
	}
	lines := []string{fmt.Sprintf("Hey there, Zabka reporting! Launching bot at %s. Active filters:", time.Now().Format(time.RFC3339))}
	for _, f := range a.filters {
		lines = append(lines, f.Describe()...)
	}
	msg := strings.Join(lines, "\n")
	a.logger.Info("Reporting launch", port.Fields{"filters": len(a.filters)})
	if err := a.notifier.NotifyText(ctx, msg); err != nil {
		a.logger.Warn("Failed to send the launch report", port.Fields{"error": err.Error()})
	}
}

// reportHealth шлёт ежедневный health-чек в канал.
func (a *App) reportHealth(ctx context.Context) {
	if !a.config.Fetch.SendReport {
		return
	}
	a.logger.Info("Sending the daily health report", nil)
	msg := fmt.Sprintf("Hey, I'm alive, current time is %s", time.Now().Format(time.RFC3339))
	if err := a.notifier.NotifyText(ctx, msg); err != nil {
		a.logger.Warn("Failed to send the health report", port.Fields{"error": err.Error()})
	}
}

func (a *App) closeResources() {
	if a.amqpNotifier != nil {
		if err := a.amqpNotifier.Close(); err != nil {
			a.logger.Error("Error closing the RabbitMQ publisher", err, nil)
		}
	}
	if a.dbPool != nil {
		a.dbPool.Close()
		a.logger.Info("PostgreSQL pool closed.", nil)
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Error("Error closing the Redis client", err, nil)
		}
	}
	if a.fluentClient != nil {
		a.logger.Info("Closing Fluent Bit connection...", nil)
		if err := a.fluentClient.Close(); err != nil {
			log.Printf("App: Error closing fluent client: %v\n", err)
		}
	}
}

func parseLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		// Возвращаем безопасное значение по умолчанию и логируем предупреждение
		log.Printf("Warning: Unknown log level '%s'. Defaulting to 'info'.", levelStr)
		return slog.LevelInfo
	}
}
