package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreFirestore = "firestore"
	StoreSQLite    = "sqlite"

	AuthTelegram = "telegram"
	AuthFirebase = "firebase"
)

type Config struct {
	Port      string
	LogLevel  string
	LogFormat string
	ProjectID string
	Region    string

	StoreBackend string
	SQLitePath   string

	AuthProvider           string
	TelegramBotToken       string
	TelegramBotTokenSecret string
	TelegramAuthMaxAge     time.Duration

	InviteBaseURL  string
	LedgerTimezone string

	VertexModel string
	AIMaxHops   int
	AITTL       time.Duration

	AMQPURL      string
	AMQPExchange string

	MetricsEnabled bool

	CORSAllowedOrigins []string

	problems []string
}

func New() *Config {
	c := &Config{
		Port:                   envOr("PORT", "8080"),
		LogLevel:               os.Getenv("LOGLEVEL"),
		LogFormat:              envOr("LOGFORMAT", "cloudrun"),
		ProjectID:              os.Getenv("PROJECTID"),
		Region:                 os.Getenv("REGION"),
		StoreBackend:           strings.ToLower(envOr("STORE_BACKEND", StoreFirestore)),
		SQLitePath:             envOr("SQLITE_PATH", "data/ledger.db"),
		AuthProvider:           strings.ToLower(envOr("AUTH_PROVIDER", AuthTelegram)),
		TelegramBotToken:       os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramBotTokenSecret: os.Getenv("TELEGRAM_BOT_TOKEN_SECRET"),
		InviteBaseURL:          os.Getenv("INVITE_BASE_URL"),
		LedgerTimezone:         envOr("LEDGER_TIMEZONE", "UTC"),
		VertexModel:            os.Getenv("VERTEXMODEL"),
		AMQPURL:                os.Getenv("AMQP_URL"),
		AMQPExchange:           envOr("AMQP_EXCHANGE", "ledger.events"),
		CORSAllowedOrigins:     list(envOr("CORS_ALLOWED_ORIGINS", "*")),
	}

	c.TelegramAuthMaxAge = c.duration("TELEGRAM_AUTH_MAX_AGE", 24*time.Hour)
	c.AITTL = c.duration("AITTL", 24*time.Hour)
	c.AIMaxHops = c.integer("AI_MAX_HOPS", 4)
	c.MetricsEnabled = c.boolean("METRICS_ENABLED", true)
	return c
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	problems := append([]string(nil), c.problems...)

	switch c.StoreBackend {
	case StoreFirestore:
		if c.ProjectID == "" {
			problems = append(problems, "PROJECTID is required for the firestore backend")
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			problems = append(problems, "SQLITE_PATH is required for the sqlite backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("STORE_BACKEND %q must be firestore or sqlite", c.StoreBackend))
	}

	switch c.AuthProvider {
	case AuthTelegram:
		if c.TelegramBotToken == "" && c.TelegramBotTokenSecret == "" {
			problems = append(problems, "TELEGRAM_BOT_TOKEN or TELEGRAM_BOT_TOKEN_SECRET is required for telegram auth")
		}
		if c.TelegramBotToken == "" && c.TelegramBotTokenSecret != "" && c.ProjectID == "" {
			problems = append(problems, "PROJECTID is required to read TELEGRAM_BOT_TOKEN_SECRET")
		}
	case AuthFirebase:
	default:
		problems = append(problems, fmt.Sprintf("AUTH_PROVIDER %q must be telegram or firebase", c.AuthProvider))
	}

	if _, err := time.LoadLocation(c.LedgerTimezone); err != nil {
		problems = append(problems, fmt.Sprintf("LEDGER_TIMEZONE %q is not a known time zone", c.LedgerTimezone))
	}
	if c.VertexModel != "" && (c.ProjectID == "" || c.Region == "") {
		problems = append(problems, "PROJECTID and REGION are required when VERTEXMODEL is set")
	}
	if len(c.CORSAllowedOrigins) == 0 {
		problems = append(problems, "CORS_ALLOWED_ORIGINS must name at least one origin or *")
	}
	if c.AIMaxHops < 1 {
		problems = append(problems, "AI_MAX_HOPS must be at least 1")
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration: " + strings.Join(problems, "; "))
}

// Location returns the ledger time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.LedgerTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// list splits a comma-separated value, dropping blanks.
func list(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func (c *Config) duration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		c.problems = append(c.problems, fmt.Sprintf("%s %q is not a duration", key, raw))
		return fallback
	}
	return d
}

func (c *Config) integer(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		c.problems = append(c.problems, fmt.Sprintf("%s %q is not an integer", key, raw))
		return fallback
	}
	return n
}

func (c *Config) boolean(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		c.problems = append(c.problems, fmt.Sprintf("%s %q is not a boolean", key, raw))
		return fallback
	}
	return b
}
