// Package config loads service settings from the environment and an
// optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/analysis"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/ratelimit"
)

// FileEnv names the variable holding the YAML config path.
const FileEnv = "NEUROTRACK_CONFIG"

var ErrInvalid = errors.New("invalid configuration")

// Config is the full service configuration.
type Config struct {
	Port           string
	DataDir        string
	DBFile         string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	CacheTTL       time.Duration
	LogLevel       string
	RequestTimeout time.Duration
	AllowedOrigins []string
	MaxUploadBytes int64
	RetentionDays  int
	RateLimit      ratelimit.Config
	Analysis       analysis.Config
}

// fileConfig is the YAML layout. Only the analysis section is read from
// the file; deployment settings stay in the environment.
type fileConfig struct {
	Analysis struct {
		SamplingRate float64         `yaml:"sampling_rate"`
		Bands        []analysis.Band `yaml:"bands"`
	} `yaml:"analysis"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port:           "8080",
		DataDir:        "./data",
		DBFile:         "neurotrack.db",
		CacheTTL:       10 * time.Minute,
		LogLevel:       "info",
		RequestTimeout: 30 * time.Second,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		MaxUploadBytes: 64 << 20,
		RetentionDays:  365,
		RateLimit:      ratelimit.DefaultConfig(),
		Analysis:       analysis.DefaultConfig(),
	}
}

// Load reads the process environment.
func Load() (Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom builds a Config from defaults, then the YAML file named by
// NEUROTRACK_CONFIG, then individual variables.
func LoadFrom(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	env := envReader{lookup: lookup}

	if path, ok := lookup(FileEnv); ok && path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}

	cfg.Port = env.getString("PORT", cfg.Port)
	cfg.DataDir = env.getString("DATA_DIR", cfg.DataDir)
	cfg.DBFile = env.getString("DB_FILE", cfg.DBFile)
	cfg.RedisAddr = env.getString("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = env.getString("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = env.getInt("REDIS_DB", cfg.RedisDB)
	cfg.CacheTTL = env.getDuration("CACHE_TTL", cfg.CacheTTL)
	cfg.LogLevel = env.getString("LOG_LEVEL", cfg.LogLevel)
	cfg.RequestTimeout = env.getDuration("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.AllowedOrigins = env.getList("ALLOWED_ORIGINS", cfg.AllowedOrigins)
	cfg.MaxUploadBytes = int64(env.getInt("MAX_UPLOAD_BYTES", int(cfg.MaxUploadBytes)))
	cfg.RetentionDays = env.getInt("RETENTION_DAYS", cfg.RetentionDays)
	cfg.RateLimit.IPLimitPerMin = env.getInt("IP_LIMIT_PER_MIN", cfg.RateLimit.IPLimitPerMin)
	cfg.RateLimit.AnalysisLimitPerMin = env.getInt("ANALYSIS_LIMIT_PER_MIN", cfg.RateLimit.AnalysisLimitPerMin)
	cfg.RateLimit.ImportLimitPerMin = env.getInt("IMPORT_LIMIT_PER_MIN", cfg.RateLimit.ImportLimitPerMin)
	cfg.Analysis.SamplingRate = env.getFloat("SAMPLING_RATE", cfg.Analysis.SamplingRate)

	if err := errors.Join(env.errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("%w: config file %s: %v", ErrInvalid, path, err)
	}

	if fc.Analysis.SamplingRate != 0 {
		c.Analysis.SamplingRate = fc.Analysis.SamplingRate
	}
	if len(fc.Analysis.Bands) > 0 {
		c.Analysis.Bands = fc.Analysis.Bands
	}
	return nil
}

// Validate checks value ranges. Analysis errors also match
// analysis.ErrInvalidConfig.
func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, fmt.Errorf("%w: PORT is empty", ErrInvalid))
	}
	if c.DBFile == "" {
		errs = append(errs, fmt.Errorf("%w: DB_FILE is empty", ErrInvalid))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("%w: CACHE_TTL must be positive", ErrInvalid))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: REQUEST_TIMEOUT must be positive", ErrInvalid))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("%w: MAX_UPLOAD_BYTES must be positive", ErrInvalid))
	}
	if c.RetentionDays <= 0 {
		errs = append(errs, fmt.Errorf("%w: RETENTION_DAYS must be positive", ErrInvalid))
	}
	if c.RateLimit.IPLimitPerMin <= 0 || c.RateLimit.AnalysisLimitPerMin <= 0 || c.RateLimit.ImportLimitPerMin <= 0 {
		errs = append(errs, fmt.Errorf("%w: rate limits must be positive", ErrInvalid))
	}
	if err := c.Analysis.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) raw(key string) (string, bool) {
	value, ok := e.lookup(key)
	value = strings.TrimSpace(value)
	return value, ok && value != ""
}

func (e *envReader) getString(key, def string) string {
	if value, ok := e.raw(key); ok {
		return value
	}
	return def
}

func (e *envReader) getInt(key string, def int) int {
	value, ok := e.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalid, key, value))
		return def
	}
	return n
}

func (e *envReader) getFloat(key string, def float64) float64 {
	value, ok := e.raw(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%w: %s=%q is not a number", ErrInvalid, key, value))
		return def
	}
	return f
}

func (e *envReader) getDuration(key string, def time.Duration) time.Duration {
	value, ok := e.raw(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%w: %s=%q is not a duration", ErrInvalid, key, value))
		return def
	}
	return d
}

func (e *envReader) getList(key string, def []string) []string {
	value, ok := e.raw(key)
	if !ok {
		return def
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
