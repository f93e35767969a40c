package configs

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ivanychev/otodom-monitoring/internal/core/domain"
)

// StorageConfig — выбор и параметры бэкенда хранилища.
type StorageConfig struct {
	// Backend: "postgres" или "redis".
	Backend          string
	DatabaseURL      string
	PostgresMaxConns int
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisNamespace   string
}

type TelegramConfig struct {
	Enabled   bool
	BotToken  string
	ChannelID string // численный ID или имя из реестра каналов
}

type RabbitMQConfig struct {
	Enabled  bool
	URL      string
	Exchange string
}

type FetchConfig struct {
	// Имена активных фильтров (через запятую в FILTER_NAMES).
	FilterNames     []string
	IntervalMinutes int
	PageDelay       time.Duration
	PageHardLimit   int
	SendReport      bool
	EnrichDetails   bool
	LocationPolicy  domain.LocationPolicy
	// Необязательный JSON-файл с дополнительными фильтрами.
	ScopesFile string
}

type RESTConfig struct {
	Port string
}

type StdoutLogConfig struct {
	Level string
}

type FluentBitConfig struct {
	Enabled bool
	Host    string
	Port    int
	Level   string
}

// AppConfig хранит всю конфигурацию приложения
type AppConfig struct {
	AppName      string
	DataPath     string
	Storage      StorageConfig
	Telegram     TelegramConfig
	RabbitMQ     RabbitMQConfig
	Fetch        FetchConfig
	Rest         RESTConfig
	StdoutLogger StdoutLogConfig
	FluentBit    FluentBitConfig
}

// LoadConfig загружает конфигурацию из переменных окружения.
// .env — необязательный, его отсутствие не ошибка.
func LoadConfig(envPath ...string) (*AppConfig, error) {
	var err error
	if len(envPath) > 0 {
		err = godotenv.Load(envPath[0])
	} else {
		err = godotenv.Load()
	}
	if err != nil {
		log.Printf("Info: could not load .env file (path: %v): %v\n", envPath, err)
	}

	cfg := &AppConfig{}

	cfg.AppName = getEnvAsString("APP_NAME", "otodom-monitoring")
	cfg.DataPath = getEnvAsString("DATA_PATH", ".")

	cfg.Storage.Backend = getEnvAsString("STORAGE_BACKEND", "postgres")
	switch cfg.Storage.Backend {
	case "postgres":
		cfg.Storage.DatabaseURL = os.Getenv("DATABASE_URL")
		cfg.Storage.PostgresMaxConns = getEnvAsInt("POSTGRES_MAX_CONNS", 4)
		if cfg.Storage.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is required for the postgres backend")
		}
	case "redis":
		cfg.Storage.RedisAddr = getEnvAsString("REDIS_ADDR", "localhost:6379")
		cfg.Storage.RedisPassword = os.Getenv("REDIS_PASSWORD")
		cfg.Storage.RedisDB = getEnvAsInt("REDIS_DB", 0)
		cfg.Storage.RedisNamespace = getEnvAsString("REDIS_NAMESPACE", cfg.AppName)
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q, want postgres or redis", cfg.Storage.Backend)
	}

	cfg.Telegram.Enabled = getEnvAsBool("TELEGRAM_ENABLED", true)
	if cfg.Telegram.Enabled {
		cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
		if cfg.Telegram.BotToken == "" {
			return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable is required when telegram is enabled")
		}
		cfg.Telegram.ChannelID = os.Getenv("TELEGRAM_CHANNEL_ID")
		if cfg.Telegram.ChannelID == "" {
			return nil, fmt.Errorf("TELEGRAM_CHANNEL_ID environment variable is required when telegram is enabled")
		}
	}

	cfg.RabbitMQ.Enabled = getEnvAsBool("RABBITMQ_ENABLED", false)
	if cfg.RabbitMQ.Enabled {
		cfg.RabbitMQ.URL = os.Getenv("RABBITMQ_URL")
		if cfg.RabbitMQ.URL == "" {
			return nil, fmt.Errorf("RABBITMQ_URL environment variable is required when rabbitmq is enabled")
		}
		cfg.RabbitMQ.Exchange = getEnvAsString("RABBITMQ_EXCHANGE", "otodom.flats")
	}
	if !cfg.Telegram.Enabled && !cfg.RabbitMQ.Enabled {
		return nil, fmt.Errorf("at least one notification channel (telegram or rabbitmq) must be enabled")
	}

	filterNames := getEnvAsString("FILTER_NAMES", "")
	if filterNames == "" {
		return nil, fmt.Errorf("FILTER_NAMES environment variable is required (comma-separated filter names)")
	}
	for _, name := range strings.Split(filterNames, ",") {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			cfg.Fetch.FilterNames = append(cfg.Fetch.FilterNames, trimmed)
		}
	}

	cfg.Fetch.IntervalMinutes = getEnvAsInt("FETCH_INTERVAL_MINUTES", 15)
	cfg.Fetch.PageDelay = time.Duration(getEnvAsInt("PAGE_DELAY_SECONDS", 3)) * time.Second
	cfg.Fetch.PageHardLimit = getEnvAsInt("PAGE_HARD_LIMIT", 100)
	cfg.Fetch.SendReport = getEnvAsBool("SEND_REPORT", true)
	cfg.Fetch.EnrichDetails = getEnvAsBool("ENRICH_DETAILS", false)
	cfg.Fetch.ScopesFile = os.Getenv("SCOPES_FILE")

	policy, err := domain.ParseLocationPolicy(os.Getenv("LOCATION_POLICY"))
	if err != nil {
		return nil, err
	}
	cfg.Fetch.LocationPolicy = policy

	cfg.Rest.Port = getEnvAsString("PORT", "8080")
	cfg.StdoutLogger.Level = getEnvAsString("STDOUT_LOG_LEVEL", "debug")

	cfg.FluentBit.Enabled = getEnvAsBool("FLUENTBIT_ENABLED", false)
	if cfg.FluentBit.Enabled {
		cfg.FluentBit.Host = os.Getenv("FLUENTBIT_HOST")
		if cfg.FluentBit.Host == "" {
			log.Println("WARNING: FLUENTBIT_ENABLED is true, but FLUENTBIT_HOST is not set. Disabling Fluent Bit.")
			cfg.FluentBit.Enabled = false
		}
		cfg.FluentBit.Port = getEnvAsInt("FLUENTBIT_PORT", 24224)
		cfg.FluentBit.Level = getEnvAsString("FLUENTBIT_LOG_LEVEL", "info")
	}

	return cfg, nil
}

func getEnvAsString(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt читает переменную окружения как int или возвращает значение
// по умолчанию. Логирует ошибку, если переменная есть, но не парсится.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valueInt, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: environment variable %s (value: %s) could not be parsed as int: %v. Using default value: %d\n", key, valueStr, err, defaultValue)
		return defaultValue
	}
	return valueInt
}

// getEnvAsBool читает переменную окружения как bool или возвращает значение по умолчанию
func getEnvAsBool(key string, defaultValue bool) bool {
	valStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valBool, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("Warning: environment variable %s (value: %s) could not be parsed as bool: %v. Using default value: %t\n", key, valStr, err, defaultValue)
		return defaultValue
	}
	return valBool
}
