// Package config loads the runtime configuration from the environment.
// Values are read once at startup; a .env file, when present, is loaded
// by the caller through godotenv before Load is invoked.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pion/webrtc/v4"
)

// MatchPolicy selects the compatibility predicate used during the queue scan.
type MatchPolicy string

const (
	MatchPolicyAny    MatchPolicy = "any"
	MatchPolicyGender MatchPolicy = "gender"
)

type Config struct {
	HTTPAddr string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret  string
	SessionTTL time.Duration

	MatchPolicy    MatchPolicy
	SendBufferSize int
	PersistWorkers int
	StatsInterval  time.Duration

	ICEServers []webrtc.ICEServer

	LocalesDir string

	TelegramBotToken    string
	TelegramAdminChatID int64

	Log LogConfig
}

type LogConfig struct {
	Level      string
	Format     string // "console" or "json"
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Load reads the configuration using os.LookupEnv.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom reads the configuration through lookup, which lets tests supply
// an isolated environment.
func LoadFrom(lookup func(string) (string, bool)) (*Config, error) {
	cfg, err := read(lookup)
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadForAdmin reads the configuration for the admin CLI, which only talks
// to the stores and does not need the gateway settings.
func LoadForAdmin() (*Config, error) {
	return read(os.LookupEnv)
}

func read(lookup func(string) (string, bool)) (*Config, error) {
	env := envReader{lookup: lookup}

	cfg := &Config{
		HTTPAddr:       env.str("HTTP_ADDR", ":8080"),
		DatabaseURL:    env.str("DATABASE_URL", ""),
		RedisAddr:      env.str("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  env.str("REDIS_PASSWORD", ""),
		RedisDB:        env.int("REDIS_DB", 0),
		JWTSecret:      env.str("JWT_SECRET", ""),
		SessionTTL:     env.duration("SESSION_TTL", 24*time.Hour),
		MatchPolicy:    MatchPolicy(strings.ToLower(env.str("MATCH_POLICY", string(MatchPolicyAny)))),
		SendBufferSize: env.int("SEND_BUFFER_SIZE", 256),
		PersistWorkers: env.int("PERSIST_WORKERS", 8),
		StatsInterval:  env.duration("STATS_INTERVAL", 10*time.Second),
		LocalesDir:     env.str("LOCALES_DIR", "internal/localization/locales"),

		TelegramBotToken:    env.str("TELEGRAM_BOT_TOKEN", ""),
		TelegramAdminChatID: int64(env.int("TELEGRAM_ADMIN_CHAT_ID", 0)),

		Log: LogConfig{
			Level:      env.str("LOG_LEVEL", "info"),
			Format:     env.str("LOG_FORMAT", "console"),
			File:       env.str("LOG_FILE", ""),
			MaxSizeMB:  env.int("LOG_MAX_SIZE_MB", 100),
			MaxBackups: env.int("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: env.int("LOG_MAX_AGE_DAYS", 14),
		},
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			env.str("DB_HOST", "localhost"),
			env.str("DB_USER", "postgres"),
			env.str("DB_PASSWORD", "postgres"),
			env.str("DB_NAME", "omechat"),
			env.str("DB_PORT", "5432"),
		)
	}

	iceServers, err := ParseICEServers(
		env.str("ICE_SERVERS_JSON", ""),
		env.str("STUN_URLS", ""),
		env.str("TURN_URLS", ""),
		env.str("TURN_USERNAME", ""),
		env.str("TURN_CREDENTIAL", ""),
	)
	if err != nil {
		env.errs = append(env.errs, err)
	}
	cfg.ICEServers = iceServers

	var loadErr error
	for _, err := range env.errs {
		loadErr = errors.CombineErrors(loadErr, err)
	}
	if loadErr != nil {
		return nil, loadErr
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.MatchPolicy {
	case MatchPolicyAny, MatchPolicyGender:
	default:
		return errors.Newf("MATCH_POLICY: unknown policy %q (expected any, gender)", c.MatchPolicy)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if c.SendBufferSize <= 0 {
		return errors.Newf("SEND_BUFFER_SIZE: must be positive, got %d", c.SendBufferSize)
	}
	if c.PersistWorkers <= 0 {
		return errors.Newf("PERSIST_WORKERS: must be positive, got %d", c.PersistWorkers)
	}
	if c.StatsInterval <= 0 {
		return errors.Newf("STATS_INTERVAL: must be positive, got %s", c.StatsInterval)
	}
	return nil
}

// TelegramEnabled reports whether moderation alerts should be sent.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramAdminChatID != 0
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) str(key, def string) string {
	if v, ok := e.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (e *envReader) int(key string, def int) int {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		e.errs = append(e.errs, errors.Wrapf(err, "%s", key))
		return def
	}
	return v
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		e.errs = append(e.errs, errors.Wrapf(err, "%s", key))
		return def
	}
	return v
}
