package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/utils"
)

const (
	DefaultListenAddr             = ":8080"
	DefaultFormatsTimeout         = 30 * time.Second
	DefaultDownloadTimeout        = 0 // 0 means no timeout (infinite)
	DefaultMaxConcurrentDownloads = 3
	DefaultTaskTTL                = time.Hour
	DefaultRateLimit              = 5.0
	DefaultRateBurst              = 10
)

type Config struct {
	ListenAddr   string
	DownloadPath string
	LogLevel     string
	YTDLPPath    string
	FFmpegPath   string
	Proxy        string

	DownloadSettings DownloadConfig
	APISettings      APIConfig
}

type DownloadConfig struct {
	MaxConcurrentDownloads int
	FormatsTimeout         time.Duration
	DownloadTimeout        time.Duration
	TaskTTL                time.Duration
}

type APIConfig struct {
	// RateLimit is requests per second per client IP; 0 disables limiting.
	RateLimit float64
	RateBurst int
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func NewConfig() (*Config, error) {
	config := &Config{
		ListenAddr:   getEnv("LISTEN_ADDR", DefaultListenAddr),
		DownloadPath: getEnv("DOWNLOAD_PATH", filepath.Join(os.TempDir(), "youtube-downloader-api")),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		YTDLPPath:    getEnv("YTDLP_PATH", "yt-dlp"),
		FFmpegPath:   getEnv("FFMPEG_PATH", "ffmpeg"),
		Proxy:        getEnv("PROXY", ""),

		DownloadSettings: DownloadConfig{
			MaxConcurrentDownloads: getEnvInt("MAX_CONCURRENT_DOWNLOADS", DefaultMaxConcurrentDownloads),
			FormatsTimeout:         getEnvDuration("FORMATS_TIMEOUT", DefaultFormatsTimeout),
			DownloadTimeout:        getEnvDuration("DOWNLOAD_TIMEOUT", DefaultDownloadTimeout),
			TaskTTL:                getEnvDuration("TASK_TTL", DefaultTaskTTL),
		},

		APISettings: APIConfig{
			RateLimit: getEnvFloat("API_RATE_LIMIT", DefaultRateLimit),
			RateBurst: getEnvInt("API_RATE_BURST", DefaultRateBurst),
		},
	}

	if err := config.validate(); err != nil {
		return nil, utils.WrapError(err, "configuration validation failed", nil)
	}

	return config, nil
}

func (c *Config) validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDownloadSettings(); err != nil {
		return err
	}
	return c.validateAPISettings()
}

func (c *Config) validatePaths() error {
	if c.ListenAddr == "" {
		return utils.WrapError(utils.ErrConfigurationError, "LISTEN_ADDR must not be empty", nil)
	}
	if c.DownloadPath == "" {
		return utils.WrapError(utils.ErrConfigurationError, "DOWNLOAD_PATH must not be empty", nil)
	}
	if c.YTDLPPath == "" {
		return utils.WrapError(utils.ErrConfigurationError, "YTDLP_PATH must not be empty", nil)
	}
	return nil
}

func (c *Config) validateDownloadSettings() error {
	if c.DownloadSettings.MaxConcurrentDownloads <= 0 {
		return utils.WrapError(utils.ErrConfigurationError, "MAX_CONCURRENT_DOWNLOADS must be positive", map[string]any{
			"value": c.DownloadSettings.MaxConcurrentDownloads,
		})
	}
	if c.DownloadSettings.FormatsTimeout <= 0 {
		return utils.WrapError(utils.ErrConfigurationError, "FORMATS_TIMEOUT must be positive", map[string]any{
			"value": c.DownloadSettings.FormatsTimeout.String(),
		})
	}
	if c.DownloadSettings.DownloadTimeout < 0 {
		return utils.WrapError(utils.ErrConfigurationError, "DOWNLOAD_TIMEOUT must not be negative", map[string]any{
			"value": c.DownloadSettings.DownloadTimeout.String(),
		})
	}
	if c.DownloadSettings.TaskTTL <= 0 {
		return utils.WrapError(utils.ErrConfigurationError, "TASK_TTL must be positive", map[string]any{
			"value": c.DownloadSettings.TaskTTL.String(),
		})
	}
	return nil
}

func (c *Config) validateAPISettings() error {
	if c.APISettings.RateLimit < 0 {
		return utils.WrapError(utils.ErrConfigurationError, "API_RATE_LIMIT must not be negative", map[string]any{
			"value": c.APISettings.RateLimit,
		})
	}
	if c.APISettings.RateLimit > 0 && c.APISettings.RateBurst <= 0 {
		return utils.WrapError(utils.ErrConfigurationError, "API_RATE_BURST must be positive when rate limiting is enabled", map[string]any{
			"value": c.APISettings.RateBurst,
		})
	}
	return nil
}
