package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrMissing is returned when a required setting is absent.
var ErrMissing = errors.New("required configuration missing")

// Config holds all configuration for the application
type Config struct {
	GitHubToken string
	GraphQLURL  string
	APIURL      string
	DatabaseURL string
	RedisURL    string
	LogLevel    string

	IssueLabel string
	PRLabel    string

	PageCeiling    int
	PageSize       int
	MaxRetries     int
	PollInterval   time.Duration
	RequestTimeout time.Duration
	RunDeadline    time.Duration

	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
}

// NewConfig creates a new Config instance
func NewConfig() *Config {
	return &Config{}
}

func setDefaults() {
	viper.SetDefault("GITHUB_GRAPHQL_URL", "https://api.github.com/graphql")
	viper.SetDefault("GITHUB_API_URL", "https://api.github.com/")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("ISSUE_LABEL", "hacktoberfest")
	viper.SetDefault("PR_LABEL", "hacktoberfest-accepted")
	viper.SetDefault("PAGE_CEILING", 10)
	viper.SetDefault("PAGE_SIZE", 100)
	viper.SetDefault("MAX_RETRIES", 3)
	viper.SetDefault("POLL_INTERVAL", "3600s")
	viper.SetDefault("REQUEST_TIMEOUT", "30s")
	viper.SetDefault("RUN_DEADLINE", "10m")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 10)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME", "5m")
}

// Load loads configuration from environment variables and an optional .env file
func (c *Config) Load(envFile string) error {
	setDefaults()
	viper.AutomaticEnv()

	if envFile != "" {
		viper.SetConfigFile(envFile)
		viper.SetConfigType("env")
		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	c.GitHubToken = viper.GetString("GITHUB_TOKEN")
	if c.GitHubToken == "" {
		return fmt.Errorf("%w: GITHUB_TOKEN is required", ErrMissing)
	}

	c.DatabaseURL = viper.GetString("DATABASE_URL")
	if c.DatabaseURL == "" {
		return fmt.Errorf("%w: DATABASE_URL is required", ErrMissing)
	}
	if _, err := DriverName(c.DatabaseURL); err != nil {
		return err
	}

	c.GraphQLURL = viper.GetString("GITHUB_GRAPHQL_URL")
	c.APIURL = viper.GetString("GITHUB_API_URL")
	c.RedisURL = viper.GetString("REDIS_URL")
	c.LogLevel = viper.GetString("LOG_LEVEL")
	c.IssueLabel = viper.GetString("ISSUE_LABEL")
	c.PRLabel = viper.GetString("PR_LABEL")

	c.PageCeiling = viper.GetInt("PAGE_CEILING")
	if c.PageCeiling < 1 {
		c.PageCeiling = 1
	}
	c.PageSize = viper.GetInt("PAGE_SIZE")
	if c.PageSize < 1 || c.PageSize > 100 {
		c.PageSize = 100
	}
	c.MaxRetries = viper.GetInt("MAX_RETRIES")
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}

	var err error
	if c.PollInterval, err = duration("POLL_INTERVAL"); err != nil {
		return err
	}
	if c.RequestTimeout, err = duration("REQUEST_TIMEOUT"); err != nil {
		return err
	}
	if c.RunDeadline, err = duration("RUN_DEADLINE"); err != nil {
		return err
	}
	if c.DBConnMaxLifetime, err = duration("DB_CONN_MAX_LIFETIME"); err != nil {
		return err
	}

	c.DBMaxOpenConns = viper.GetInt("DB_MAX_OPEN_CONNS")
	c.DBMaxIdleConns = viper.GetInt("DB_MAX_IDLE_CONNS")
	if c.DBMaxIdleConns > c.DBMaxOpenConns {
		c.DBMaxIdleConns = c.DBMaxOpenConns
	}

	return nil
}

// duration parses a duration setting. Bare integers are read as seconds.
func duration(key string) (time.Duration, error) {
	raw := strings.TrimSpace(viper.GetString(key))
	if raw == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	secs := viper.GetInt(key)
	if secs <= 0 {
		return 0, fmt.Errorf("invalid %s value %q", key, raw)
	}
	return time.Duration(secs) * time.Second, nil
}

// DriverName maps a DATABASE_URL scheme to a registered sql driver name.
func DriverName(databaseURL string) (string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	switch u.Scheme {
	case "postgres", "postgresql":
		return "postgres", nil
	case "mysql":
		return "mysql", nil
	default:
		return "", fmt.Errorf("unsupported DATABASE_URL scheme %q", u.Scheme)
	}
}
