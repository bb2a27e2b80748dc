package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string
	Environment    string
	AllowedOrigins []string
	PublicDir      string
	Log            LogConfig
	Recordings     RecordingsConfig
	Redis          RedisConfig
}

type LogConfig struct {
	Level  slog.Level
	Format string
}

type RecordingsConfig struct {
	Dir string
	// Ext is the extension given to uploads when it is not derived from the
	// uploaded file name.
	Ext            string
	Extensions     []string
	DeriveExt      bool
	MaxUploadBytes int64
}

// RedisConfig configures the optional presence mirror. An empty Host disables it.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Load reads configuration from the environment, optionally layered over the
// file named by CONFIG_FILE.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("PORT", "3000")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("PUBLIC_DIR", "public")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "")
	v.SetDefault("RECORDINGS_DIR", "recordings")
	v.SetDefault("RECORDING_EXT", "webm")
	v.SetDefault("RECORDING_EXTENSIONS", "webm")
	v.SetDefault("RECORDING_DERIVE_EXT", false)
	v.SetDefault("MAX_UPLOAD_BYTES", int64(1<<30))
	v.SetDefault("REDIS_HOST", "")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	level, err := parseLevel(v.GetString("LOG_LEVEL"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:           strings.TrimSpace(v.GetString("PORT")),
		Environment:    v.GetString("ENVIRONMENT"),
		AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),
		PublicDir:      v.GetString("PUBLIC_DIR"),
		Log: LogConfig{
			Level:  level,
			Format: strings.ToLower(v.GetString("LOG_FORMAT")),
		},
		Recordings: RecordingsConfig{
			Dir:            v.GetString("RECORDINGS_DIR"),
			Ext:            normalizeExt(v.GetString("RECORDING_EXT")),
			DeriveExt:      v.GetBool("RECORDING_DERIVE_EXT"),
			MaxUploadBytes: v.GetInt64("MAX_UPLOAD_BYTES"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
	}
	for _, ext := range splitList(v.GetString("RECORDING_EXTENSIONS")) {
		cfg.Recordings.Extensions = append(cfg.Recordings.Extensions, normalizeExt(ext))
	}

	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
		if cfg.IsProduction() {
			cfg.Log.Format = "json"
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 0 || port > 65535 {
		return fmt.Errorf("invalid PORT %q", c.Port)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid LOG_FORMAT %q (expected text or json)", c.Log.Format)
	}
	if c.Recordings.Dir == "" {
		return fmt.Errorf("RECORDINGS_DIR must not be empty")
	}
	if c.Recordings.Ext == "" {
		return fmt.Errorf("RECORDING_EXT must not be empty")
	}
	if c.Recordings.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.Recordings.MaxUploadBytes)
	}

	// The default extension is always listable.
	found := false
	for _, ext := range c.Recordings.Extensions {
		if ext == c.Recordings.Ext {
			found = true
			break
		}
	}
	if !found {
		c.Recordings.Extensions = append(c.Recordings.Extensions, c.Recordings.Ext)
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// NewLogger builds the process logger from the log settings.
func NewLogger(cfg *Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.Log.Level,
	}

	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
