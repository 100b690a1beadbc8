package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const defaultContextURL = "https://uri.etsi.org/ngsi-ld/v1/ngsi-ld-core-context.jsonld"

type AppConfig struct {
	Port string `validate:"required,numeric"`

	OpenWeatherAPIKey  string `validate:"required"`
	OpenWeatherBaseURL string `validate:"omitempty,url"`
	OpenWeatherLang    string
	OpenWeatherUnits   string  `validate:"oneof=standard metric imperial"`
	ProviderRatePerSec float64 `validate:"gte=0"`

	// ForecastDays is the cnt parameter of the daily forecast call.
	ForecastDays int `validate:"gte=1,lte=16"`
	// AirForecastMaxSlots caps hourly air quality forecast entities (0 = all).
	AirForecastMaxSlots int `validate:"gte=0"`

	BrokerURL        string `validate:"required,url"`
	BrokerHealthURL  string `validate:"omitempty,url"`
	BrokerToken      string
	BrokerTenant     string
	BrokerContextURL string        `validate:"omitempty,url"`
	BrokerBatchSize  int           `validate:"gte=1,lte=1000"`
	BrokerBatchDelay time.Duration `validate:"gte=0"`
	BrokerMaxConns   int           `validate:"gte=1"`

	HTTPTimeout time.Duration `validate:"gt=0"`

	// NotifyURL is this service's webhook as seen from the broker.
	NotifyURL string `validate:"required,url"`

	// Either a database or a stations file must be configured.
	DatabaseURL        string `validate:"required_without=StationsFile"`
	StationsFile       string
	PersistDeduplicate bool

	RedisAddr     string
	RedisPassword string

	// FetchInterval controls how often the ingestion cycle runs.
	FetchInterval time.Duration `validate:"gte=1m"`
	RunOnStartup  bool

	LogLevel string
}

var validate = validator.New()

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{
		Port:                getenvDefault("PORT", "8080"),
		OpenWeatherAPIKey:   strings.TrimSpace(os.Getenv("OPENWEATHER_API_KEY")),
		OpenWeatherBaseURL:  os.Getenv("OPENWEATHER_BASE_URL"),
		OpenWeatherLang:     getenvDefault("OPENWEATHER_LANG", "vi"),
		OpenWeatherUnits:    getenvDefault("OPENWEATHER_UNITS", "metric"),
		ForecastDays:        getenvInt("FORECAST_DAYS", 7),
		AirForecastMaxSlots: getenvInt("AIR_FORECAST_MAX_SLOTS", 0),
		BrokerURL:           strings.TrimRight(getenvDefault("BROKER_URL", "http://localhost:1026/ngsi-ld/v1"), "/"),
		BrokerHealthURL:     os.Getenv("BROKER_HEALTH_URL"),
		BrokerToken:         os.Getenv("BROKER_TOKEN"),
		BrokerTenant:        os.Getenv("BROKER_TENANT"),
		BrokerContextURL:    getenvDefault("BROKER_CONTEXT_URL", defaultContextURL),
		BrokerBatchSize:     getenvInt("BROKER_BATCH_SIZE", 50),
		BrokerMaxConns:      getenvInt("BROKER_MAX_CONNS", 50),
		NotifyURL:           os.Getenv("NOTIFY_URL"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		StationsFile:        os.Getenv("STATIONS_FILE"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		LogLevel:            getenvDefault("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.ProviderRatePerSec, err = getenvFloat("PROVIDER_RATE_PER_SEC", 1); err != nil {
		return nil, err
	}
	if cfg.BrokerBatchDelay, err = getenvDuration("BROKER_BATCH_DELAY", "100ms"); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.FetchInterval, err = getenvDuration("FETCH_INTERVAL", "1h"); err != nil {
		return nil, err
	}
	if cfg.PersistDeduplicate, err = getenvBool("PERSIST_DEDUPLICATE", true); err != nil {
		return nil, err
	}
	if cfg.RunOnStartup, err = getenvBool("RUN_ON_STARTUP", false); err != nil {
		return nil, err
	}

	if cfg.NotifyURL == "" {
		cfg.NotifyURL = "http://localhost:" + cfg.Port + "/notify"
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
