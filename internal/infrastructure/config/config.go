package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	domainerrors "github.com/osintwatch/conflict-ingest/internal/domain/errors"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	LLM      LLMConfig      `koanf:"llm"`
	Search   SearchConfig   `koanf:"search"`
	News     NewsConfig     `koanf:"news"`
	Geocode  GeocodeConfig  `koanf:"geocode"`

	Pipeline PipelineConfig `koanf:"pipeline"`
	Alerts   AlertConfig    `koanf:"alerts"`

	// ConflictZones seeds broad-round query generation.
	ConflictZones []string `koanf:"conflict_zones"`

	// SpoolDir receives serialized batches that failed persistence twice.
	SpoolDir string `koanf:"spool_dir"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	ServiceKey      string        `koanf:"service_key"`
	AnonKey         string        `koanf:"anon_key"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"gt=0"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL          string        `koanf:"url"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	PoolSize     int           `koanf:"pool_size"`
	MinIdleConns int           `koanf:"min_idle_conns"`
	MaxRetries   int           `koanf:"max_retries"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// Enabled reports whether a Redis tier is configured; the pipeline runs
// with in-memory dedup and rate limiting when it is not.
func (r RedisConfig) Enabled() bool {
	return r.URL != ""
}

type LLMConfig struct {
	APIKey        string        `koanf:"api_key"`
	Model         string        `koanf:"model"`
	MaxConcurrent int           `koanf:"max_concurrent" validate:"gt=0"`
	Timeout       time.Duration `koanf:"timeout"`
	MaxTokens     int           `koanf:"max_tokens" validate:"gt=0"`
}

type SearchConfig struct {
	APIKey      string        `koanf:"api_key"`
	EngineID    string        `koanf:"engine_id"`
	Endpoint    string        `koanf:"endpoint"`
	WindowHours int           `koanf:"window_hours" validate:"gt=0"`
	Timeout     time.Duration `koanf:"timeout"`
}

type NewsConfig struct {
	APIKey   string        `koanf:"api_key"`
	Endpoint string        `koanf:"endpoint"`
	Timeout  time.Duration `koanf:"timeout"`
}

// GeocodeConfig points at the fallback geocoding service. An empty
// endpoint disables the external strategy; the curated mappings still
// resolve known hotspots.
type GeocodeConfig struct {
	Endpoint string        `koanf:"endpoint"`
	Timeout  time.Duration `koanf:"timeout"`
}

type PipelineConfig struct {
	MaxConcurrentRequests int           `koanf:"max_concurrent_requests" validate:"gt=0"`
	BatchSize             int           `koanf:"batch_size" validate:"gt=0"`
	DedupWindow           time.Duration `koanf:"dedup_window" validate:"gt=0"`
	RetryAttempts         int           `koanf:"retry_attempts" validate:"gte=0"`
	RetryBaseDelayMS      int           `koanf:"retry_base_delay_ms" validate:"gt=0"`
	InterBatchDelayMS     int           `koanf:"inter_batch_delay_ms" validate:"gte=200"`
	RelevanceThreshold    float64       `koanf:"relevance_threshold" validate:"gte=0,lte=1"`
	SimilarityThreshold   float64       `koanf:"similarity_threshold" validate:"gte=0,lte=1"`
	SecondRoundEnabled    bool          `koanf:"second_round_enabled"`
	MaxArticlesPerRun     int           `koanf:"max_articles_per_run" validate:"gt=0"`
	RequireLocation       bool          `koanf:"require_location"`
}

func (p PipelineConfig) RetryBaseDelay() time.Duration {
	return time.Duration(p.RetryBaseDelayMS) * time.Millisecond
}

func (p PipelineConfig) InterBatchDelay() time.Duration {
	return time.Duration(p.InterBatchDelayMS) * time.Millisecond
}

type AlertConfig struct {
	MinSeverity   string `koanf:"min_severity"`
	MinScore      int    `koanf:"min_score" validate:"gte=1,lte=10"`
	MinCasualties int    `koanf:"min_casualties" validate:"gte=0"`
	WebhookURL    string `koanf:"webhook_url"`
}

// specEnvKeys maps the flat environment keys of the deployment contract
// onto the koanf tree. Anything else comes in through the OSINT_ prefix.
var specEnvKeys = map[string]string{
	"DB_URL":                  "database.url",
	"DB_SERVICE_KEY":          "database.service_key",
	"DB_ANON_KEY":             "database.anon_key",
	"REDIS_URL":               "redis.url",
	"LLM_API_KEY":             "llm.api_key",
	"LLM_MODEL":               "llm.model",
	"SEARCH_API_KEY":          "search.api_key",
	"SEARCH_ENGINE_ID":        "search.engine_id",
	"NEWS_API_KEY":            "news.api_key",
	"MAX_CONCURRENT_REQUESTS": "pipeline.max_concurrent_requests",
	"BATCH_SIZE":              "pipeline.batch_size",
	"RELEVANCE_THRESHOLD":     "pipeline.relevance_threshold",
	"SIMILARITY_THRESHOLD":    "pipeline.similarity_threshold",
	"RETRY_ATTEMPTS":          "pipeline.retry_attempts",
	"RETRY_BASE_DELAY_MS":     "pipeline.retry_base_delay_ms",
	"ALERT_MIN_SCORE":         "alerts.min_score",
	"ALERT_WEBHOOK_URL":       "alerts.webhook_url",
	"LOG_LEVEL":               "log_level",
}

// configFile is the optional on-disk override layer, relative to the
// working directory.
const configFile = "configs/config.yaml"

func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// Config file is optional, but a present file must parse.
	if _, err := os.Stat(configFile); err == nil {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading %s: %w", configFile, err)
		}
	}

	// Flat contract keys (DB_URL, LLM_API_KEY, ...).
	if err := k.Load(env.Provider("", ".", func(s string) string {
		return specEnvKeys[s]
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	// Prefixed overrides for everything else, OSINT_PIPELINE_BATCH_SIZE style.
	if err := k.Load(env.Provider("OSINT_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "OSINT_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func defaults() *Config {
	return &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		LLM: LLMConfig{
			Model:         "claude-sonnet-4-20250514",
			MaxConcurrent: 4,
			Timeout:       60 * time.Second,
			MaxTokens:     4096,
		},
		Search: SearchConfig{
			Endpoint:    "https://www.googleapis.com/customsearch/v1",
			WindowHours: 24,
			Timeout:     15 * time.Second,
		},
		News: NewsConfig{
			Endpoint: "https://newsapi.org/v2/everything",
			Timeout:  15 * time.Second,
		},
		Geocode: GeocodeConfig{
			Endpoint: "https://nominatim.openstreetmap.org/search",
			Timeout:  10 * time.Second,
		},
		Pipeline: PipelineConfig{
			MaxConcurrentRequests: 8,
			BatchSize:             50,
			DedupWindow:           24 * time.Hour,
			RetryAttempts:         3,
			RetryBaseDelayMS:      500,
			InterBatchDelayMS:     200,
			RelevanceThreshold:    0.3,
			SimilarityThreshold:   0.7,
			SecondRoundEnabled:    true,
			MaxArticlesPerRun:     400,
			RequireLocation:       true,
		},
		Alerts: AlertConfig{
			MinSeverity:   "high",
			MinScore:      7,
			MinCasualties: 10,
		},
		ConflictZones: []string{
			"Ukraine", "Gaza", "Sudan", "Myanmar", "Sahel",
			"Yemen", "Syria", "Somalia", "Nagorno-Karabakh",
		},
		SpoolDir: "spool",
	}
}

// mandatoryCredentials are the external credentials without which the
// pipeline cannot run a cycle.
var mandatoryCredentials = []struct {
	key   string
	value func(*Config) string
}{
	{"DB_URL", func(c *Config) string { return c.Database.URL }},
	{"DB_SERVICE_KEY", func(c *Config) string { return c.Database.ServiceKey }},
	{"LLM_API_KEY", func(c *Config) string { return c.LLM.APIKey }},
	{"SEARCH_API_KEY", func(c *Config) string { return c.Search.APIKey }},
	{"SEARCH_ENGINE_ID", func(c *Config) string { return c.Search.EngineID }},
	{"NEWS_API_KEY", func(c *Config) string { return c.News.APIKey }},
}

// Validate reports every missing mandatory credential at once, then
// checks the tunables' ranges.
func (c *Config) Validate() error {
	var missing []string
	for _, cred := range mandatoryCredentials {
		if strings.TrimSpace(cred.value(c)) == "" {
			missing = append(missing, cred.key)
		}
	}
	if len(missing) > 0 {
		return domainerrors.NewConfigError(missing...)
	}

	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
