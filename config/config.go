package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"rental-parser/models"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port     int
	LogLevel string

	UpstreamURL   string
	SubmitTimeout time.Duration
	PostgresDSN   string
	RawCSVPath    string

	MaxRetries     int
	RetryBaseDelay time.Duration

	CardDelay        time.Duration
	PageDelay        time.Duration
	NavTimeout       time.Duration
	DetailNavTimeout time.Duration
	NavSettle        time.Duration
	ScrollSettle     time.Duration
	PlateauStable    int

	ChromeBin string
	Headless  bool

	Sources map[models.Source]SourceConfig
}

// SourceConfig holds the per-marketplace crawl limits.
type SourceConfig struct {
	BaseURL       string `yaml:"base_url"`
	MaxPages      int    `yaml:"max_pages"`
	PerPageCap    int    `yaml:"per_page_cap"`
	MaxScrolls    int    `yaml:"max_scrolls"`
	EnrichDetails *bool  `yaml:"enrich_details"`
}

// Enrich reports whether detail-page enrichment is switched on.
func (s SourceConfig) Enrich() bool {
	return s.EnrichDetails != nil && *s.EnrichDetails
}

func enabled(v bool) *bool { return &v }

// DefaultSources are the limits each marketplace is crawled with unless overridden.
func DefaultSources() map[models.Source]SourceConfig {
	return map[models.Source]SourceConfig{
		models.SourceCian: {
			BaseURL:       "https://www.cian.ru/cat.php?deal_type=rent&engine_version=2&max_commission=0&offer_type=flat&region=1&type=4",
			MaxPages:      3,
			PerPageCap:    50,
			MaxScrolls:    10,
			EnrichDetails: enabled(false),
		},
		models.SourceAvito: {
			BaseURL:       "https://www.avito.ru/moskva/kvartiry/sdam/na_dlitelnyy_srok/bez_komissii-ASgBAgICA0SSA8gQ8AeQUp74DgI",
			MaxPages:      5,
			PerPageCap:    100,
			MaxScrolls:    5,
			EnrichDetails: enabled(true),
		},
		models.SourceYandex: {
			BaseURL:       "https://realty.yandex.ru/moskva/snyat/kvartira/bez-komissii/",
			MaxPages:      3,
			PerPageCap:    50,
			MaxScrolls:    5,
			EnrichDetails: enabled(false),
		},
	}
}

// Load reads the .env file and returns a populated Config struct.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	upstream := getEnv("UPSTREAM_API_URL", getEnv("DJANGO_API_URL", "http://localhost:8000/api"))

	cfg := &Config{
		Port:     getEnvInt("PORT", 3000),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		UpstreamURL:   strings.TrimRight(upstream, "/"),
		SubmitTimeout: getEnvDuration("SUBMIT_TIMEOUT", 60*time.Second),
		PostgresDSN:   getEnv("POSTGRES_DSN", ""),
		RawCSVPath:    getEnv("RAW_CSV_PATH", ""),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		RetryBaseDelay: getEnvMillis("RETRY_BASE_DELAY_MS", 2000),

		CardDelay:        getEnvMillis("CARD_DELAY_MS", 200),
		PageDelay:        getEnvMillis("PAGE_DELAY_MS", 2000),
		NavTimeout:       getEnvDuration("NAV_TIMEOUT", 60*time.Second),
		DetailNavTimeout: getEnvDuration("DETAIL_NAV_TIMEOUT", 30*time.Second),
		NavSettle:        getEnvMillis("NAV_SETTLE_MS", 3000),
		ScrollSettle:     getEnvMillis("SCROLL_SETTLE_MS", 2000),
		PlateauStable:    getEnvInt("PLATEAU_STABLE", 2),

		ChromeBin: getEnv("CHROME_BIN", ""),
		Headless:  getEnvBool("HEADLESS", true),

		Sources: DefaultSources(),
	}

	if path := getEnv("SOURCES_FILE", ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read sources file %q: %w", path, err)
		}
		if err := LoadSources(cfg.Sources, data); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// LoadSources merges YAML overrides keyed by source name into sources.
// Zero values in the YAML leave the existing setting untouched.
func LoadSources(sources map[models.Source]SourceConfig, data []byte) error {
	var overrides map[string]SourceConfig
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("config: parse sources: %w", err)
	}

	for name, o := range overrides {
		src, err := models.ParseSource(name)
		if err != nil {
			return fmt.Errorf("config: sources: %w", err)
		}
		cur := sources[src]
		if o.BaseURL != "" {
			cur.BaseURL = o.BaseURL
		}
		if o.MaxPages > 0 {
			cur.MaxPages = o.MaxPages
		}
		if o.PerPageCap > 0 {
			cur.PerPageCap = o.PerPageCap
		}
		if o.MaxScrolls > 0 {
			cur.MaxScrolls = o.MaxScrolls
		}
		if o.EnrichDetails != nil {
			cur.EnrichDetails = o.EnrichDetails
		}
		sources[src] = cur
	}
	return nil
}

// Addr is the listen address for the control surface.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvMillis(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Millisecond
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
