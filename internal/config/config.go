package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone data for TIMEZONE on minimal images

	"github.com/joho/godotenv"

	applog "bodega/internal/log"
)

type Config struct {
	Port         string
	DBDSN        string
	LogFile      string
	LogLevel     string
	TemplatesDir string
	CookieSecure bool
	SessionIdle  time.Duration

	TimeZone string
	Location *time.Location

	AdminUsername string
	AdminPassword string
	SeedDemo      bool

	Invoice InvoiceConfig
}

// InvoiceConfig configures the external invoicing partner. The token is
// never logged.
type InvoiceConfig struct {
	Enabled       bool
	BaseURL       string
	Token         string
	Timeout       time.Duration
	SeriesFactura string
	SeriesBoleta  string
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func boolenv(key string, def bool) bool {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func durenv(key string, def time.Duration) time.Duration {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	// bare integers are seconds
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

func Load() Config {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg := Config{
		Port:          getenv("PORT", "8080"),
		DBDSN:         getenv("DB_DSN", "bodega.db"), // sqlite file in project root
		LogFile:       getenv("LOG_FILE", ""),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		TemplatesDir:  getenv("TEMPLATES_DIR", "./web/templates"),
		CookieSecure:  boolenv("COOKIE_SECURE", false),
		SessionIdle:   durenv("SESSION_IDLE", 12*time.Hour),
		TimeZone:      getenv("TIMEZONE", "America/Lima"),
		AdminUsername: getenv("ADMIN_USERNAME", "admin"),
		AdminPassword: getenv("ADMIN_PASSWORD", ""),
		SeedDemo:      boolenv("SEED_DEMO", false),
		Invoice: InvoiceConfig{
			Enabled:       boolenv("INVOICE_ENABLED", false),
			BaseURL:       strings.TrimRight(getenv("INVOICE_BASE_URL", ""), "/"),
			Token:         getenv("INVOICE_TOKEN", ""),
			Timeout:       durenv("INVOICE_TIMEOUT", 10*time.Second),
			SeriesFactura: getenv("INVOICE_SERIES_FACTURA", "F001"),
			SeriesBoleta:  getenv("INVOICE_SERIES_BOLETA", "B001"),
		},
	}

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		applog.Warn(nil, "config.timezone.fallback", err, map[string]any{"timezone": cfg.TimeZone})
		loc = time.UTC
		cfg.TimeZone = "UTC"
	}
	cfg.Location = loc

	if cfg.Invoice.Enabled && (cfg.Invoice.BaseURL == "" || cfg.Invoice.Token == "") {
		applog.Warn(nil, "config.invoice.disabled", fmt.Errorf("INVOICE_ENABLED without INVOICE_BASE_URL/INVOICE_TOKEN"), nil)
		cfg.Invoice.Enabled = false
	}

	applog.Info(nil, "config.load", map[string]any{
		"port": cfg.Port, "db_dsn": cfg.DBDSN, "log_file": cfg.LogFile,
		"timezone": cfg.TimeZone, "invoice_enabled": cfg.Invoice.Enabled,
	})
	return cfg
}
