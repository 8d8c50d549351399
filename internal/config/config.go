// Package config resolves CLI configuration from defaults, a .env file, the
// environment and command-line flags, in increasing priority.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/and161185/petflix/internal/notify"
	"github.com/and161185/petflix/internal/retry"
	"github.com/and161185/petflix/internal/session"
	"github.com/and161185/petflix/internal/tokenstore"
)

// Defaults.
const (
	DefaultAPIURL      = "http://localhost:8080"
	DefaultEnvFile     = ".env"
	DefaultRedisPrefix = "petflix:"
	DefaultTimeout     = 30 * time.Second
)

// Config is the resolved CLI configuration.
type Config struct {
	APIURL    string
	ConfigDir string

	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration

	SessionTTL     time.Duration
	PollInterval   time.Duration
	NotifyInterval time.Duration
	Timeout        time.Duration

	RedisAddr   string
	RedisPrefix string

	SentryDSN string
	Env       string
	Debug     bool

	// Args holds the positional arguments left after flag parsing.
	Args []string
}

// Load resolves configuration for the process.
func Load(args []string) (*Config, error) {
	return load(args, os.LookupEnv, os.Stderr)
}

type lookupFunc func(string) (string, bool)

func load(args []string, lookup lookupFunc, usageOut io.Writer) (*Config, error) {
	envFile := DefaultEnvFile
	if v, ok := lookup("PETFLIX_ENV_FILE"); ok && strings.TrimSpace(v) != "" {
		envFile = strings.TrimSpace(v)
	}
	dotenv, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: read %s: %w", envFile, err)
	}
	e := env{lookup: lookup, file: dotenv}

	ro := retry.DefaultOptions()
	cfg := &Config{
		APIURL:         e.str("PETFLIX_API_URL", DefaultAPIURL),
		ConfigDir:      e.str("PETFLIX_CONFIG_DIR", ""),
		MaxRetries:     e.int("PETFLIX_MAX_RETRIES", ro.MaxRetries),
		InitialDelay:   e.duration("PETFLIX_INITIAL_DELAY", ro.InitialDelay),
		MaxDelay:       e.duration("PETFLIX_MAX_DELAY", ro.MaxDelay),
		SessionTTL:     e.duration("PETFLIX_SESSION_TTL", session.DefaultTTL),
		PollInterval:   e.duration("PETFLIX_POLL_INTERVAL", session.DefaultPollInterval),
		NotifyInterval: e.duration("PETFLIX_NOTIFY_INTERVAL", notify.DefaultInterval),
		Timeout:        e.duration("PETFLIX_TIMEOUT", DefaultTimeout),
		RedisAddr:      e.str("PETFLIX_REDIS_ADDR", ""),
		RedisPrefix:    e.str("PETFLIX_REDIS_PREFIX", DefaultRedisPrefix),
		SentryDSN:      e.str("SENTRY_DSN", ""),
		Env:            e.str("APP_ENV", "development"),
		Debug:          e.bool("PETFLIX_DEBUG", false),
	}

	flags := flag.NewFlagSet("petflix", flag.ContinueOnError)
	flags.SetOutput(usageOut)
	flags.StringVar(&cfg.APIURL, "api", cfg.APIURL, "API base URL")
	flags.StringVar(&cfg.ConfigDir, "config-dir", cfg.ConfigDir, "token directory (default $XDG_CONFIG_HOME/petflix)")
	flags.IntVar(&cfg.MaxRetries, "retries", cfg.MaxRetries, "max retries per request")
	flags.DurationVar(&cfg.InitialDelay, "initial-delay", cfg.InitialDelay, "first retry delay")
	flags.DurationVar(&cfg.MaxDelay, "max-delay", cfg.MaxDelay, "retry delay cap")
	flags.DurationVar(&cfg.SessionTTL, "session-ttl", cfg.SessionTTL, "session cache TTL")
	flags.DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "token presence poll interval")
	flags.DurationVar(&cfg.NotifyInterval, "notify-interval", cfg.NotifyInterval, "notification poll interval")
	flags.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "per-command timeout")
	flags.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "share the token through redis at HOST:PORT")
	flags.StringVar(&cfg.RedisPrefix, "redis-prefix", cfg.RedisPrefix, "redis key prefix")
	flags.BoolVar(&cfg.Debug, "debug", cfg.Debug, "development logging")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	cfg.Args = flags.Args()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: api url %q must be an absolute http(s) URL", c.APIURL)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("config: retries must be >= 0, got %d", c.MaxRetries)
	}
	if c.InitialDelay <= 0 || c.MaxDelay < c.InitialDelay {
		return fmt.Errorf("config: need 0 < initial-delay <= max-delay, got %s/%s", c.InitialDelay, c.MaxDelay)
	}
	return nil
}

// RetryOptions returns the retry policy for the API client.
func (c *Config) RetryOptions() retry.Options {
	o := retry.DefaultOptions()
	o.MaxRetries = c.MaxRetries
	o.InitialDelay = c.InitialDelay
	o.MaxDelay = c.MaxDelay
	return o
}

// Redis returns the redis token store settings; ok is false when redis is not configured.
func (c *Config) Redis() (tokenstore.RedisConfig, bool) {
	if c.RedisAddr == "" {
		return tokenstore.RedisConfig{}, false
	}
	return tokenstore.RedisConfig{Addr: c.RedisAddr, KeyPrefix: c.RedisPrefix}, true
}

// env resolves a key from the process environment first and the .env file second.
type env struct {
	lookup lookupFunc
	file   map[string]string
}

func (e env) raw(name string) string {
	if v, ok := e.lookup(name); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(e.file[name])
}

func (e env) str(name, fallback string) string {
	if v := e.raw(name); v != "" {
		return v
	}
	return fallback
}

func (e env) int(name string, fallback int) int {
	v := e.raw(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func (e env) duration(name string, fallback time.Duration) time.Duration {
	v := e.raw(name)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func (e env) bool(name string, fallback bool) bool {
	switch strings.ToLower(e.raw(name)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
