// Package config loads the service settings from the environment, after an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSupabase = "supabase"
)

type Config struct {
	Port int

	StoreBackend string
	DatabaseURL  string
	AutoMigrate  bool

	SupabaseURL        string
	SupabaseServiceKey string

	// AMQPURL enables cross-instance cache invalidation when set.
	AMQPURL    string
	InstanceID string
	CacheTTL   time.Duration

	AdminToken  string
	CORSOrigins []string
	PublicRPS   float64
	PublicBurst int
	// TrustedProxies lists the CIDRs whose X-Forwarded-For is believed.
	TrustedProxies []string

	MailHost      string
	MailPort      int
	MailUser      string
	MailPass      string
	MailFrom      string
	MailNotifyTo  string
	MailLookupURL string

	ContactRateLimit  int
	ContactRateWindow time.Duration

	QueueLeaseDuration time.Duration
	LeaseReapInterval  time.Duration

	LogLevel string
}

// Load reads .env (when envFile exists) and then the process environment.
// Variables already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var errs []error
	cfg := &Config{
		Port:               envInt("PORT", 8080, &errs),
		StoreBackend:       strings.ToLower(envString("STORE_BACKEND", BackendMemory)),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		AutoMigrate:        envBool("AUTO_MIGRATE", false, &errs),
		SupabaseURL:        os.Getenv("SUPABASE_URL"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
		AMQPURL:            os.Getenv("AMQP_URL"),
		InstanceID:         envString("INSTANCE_ID", uuid.NewString()),
		CacheTTL:           envDuration("CACHE_TTL", 5*time.Minute, &errs),
		AdminToken:         os.Getenv("ADMIN_API_TOKEN"),
		CORSOrigins:        envList("CORS_ORIGINS", []string{"http://localhost:5173"}),
		PublicRPS:          envFloat("PUBLIC_RPS", 2, &errs),
		PublicBurst:        envInt("PUBLIC_BURST", 10, &errs),
		TrustedProxies:     envList("TRUSTED_PROXIES", nil),
		MailHost:           os.Getenv("MAIL_HOST"),
		MailPort:           envInt("MAIL_PORT", 587, &errs),
		MailUser:           os.Getenv("MAIL_USER"),
		MailPass:           os.Getenv("MAIL_PASS"),
		MailFrom:           os.Getenv("MAIL_FROM"),
		MailNotifyTo:       os.Getenv("MAIL_NOTIFY_TO"),
		MailLookupURL:      os.Getenv("MAIL_LOOKUP_URL"),
		ContactRateLimit:   envInt("CONTACT_RATE_LIMIT", 10, &errs),
		ContactRateWindow:  envDuration("CONTACT_RATE_WINDOW", 60*time.Minute, &errs),
		QueueLeaseDuration: envDuration("QUEUE_LEASE_DURATION", 10*time.Minute, &errs),
		LeaseReapInterval:  envDuration("LEASE_REAP_INTERVAL", time.Minute, &errs),
		LogLevel:           envString("LOG_LEVEL", "info"),
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=%s", c.StoreBackend)
		}
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required when STORE_BACKEND=%s", c.StoreBackend)
		}
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q: want memory, postgres or supabase", c.StoreBackend)
	}

	if c.ContactRateLimit < 1 {
		return fmt.Errorf("CONTACT_RATE_LIMIT must be positive")
	}
	if c.ContactRateWindow < time.Minute {
		return fmt.Errorf("CONTACT_RATE_WINDOW must be at least 1m")
	}
	return nil
}

// NewLogger builds the JSON logger every component receives.
func NewLogger(level string) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	log.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	log.SetLevel(lvl)
	return log, nil
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return n
}

func envFloat(key string, def float64, errs *[]error) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return f
}

func envBool(key string, def bool, errs *[]error) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return b
}

func envDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return d
}

func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
