package cfg

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Settings struct {
	FeedURL        string
	TelegramToken  string
	TelegramChatID string
	DryRun         bool

	ScanInterval   time.Duration
	FetchTimeout   time.Duration
	ErrorBackoff   time.Duration
	LiquidityFloor float64
	PairCap        int
	ScoreThreshold int
	ProbThreshold  int

	ModelPath       string
	MinTrainingRows int

	DataPath      string
	MetricsPort   int
	DashboardPort int
}

type ConfigFile struct {
	Telegram struct {
		Token  string `yaml:"token"`
		ChatID string `yaml:"chatID"`
	} `yaml:"telegram"`

	Feed struct {
		URL            string  `yaml:"url"`
		FetchTimeout   string  `yaml:"fetchTimeout"`
		PairCap        int     `yaml:"pairCap"`
		LiquidityFloor float64 `yaml:"liquidityFloor"`
	} `yaml:"feed"`

	Scan struct {
		Interval       string `yaml:"interval"`
		ErrorBackoff   string `yaml:"errorBackoff"`
		ScoreThreshold int    `yaml:"scoreThreshold"`
		ProbThreshold  int    `yaml:"probThreshold"`
		DryRun         bool   `yaml:"dryRun"`
	} `yaml:"scan"`

	ML struct {
		ModelPath       string `yaml:"modelPath"`
		MinTrainingRows int    `yaml:"minTrainingRows"`
	} `yaml:"ml"`

	System struct {
		DataPath      string `yaml:"dataPath"`
		MetricsPort   int    `yaml:"metricsPort"`
		DashboardPort int    `yaml:"dashboardPort"`
	} `yaml:"system"`
}

func Load() (Settings, error) {
	// Try to load from YAML file first
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	interval, err := time.ParseDuration(config.Scan.Interval)
	if err != nil {
		interval = 30 * time.Second
	}

	fetchTimeout, err := time.ParseDuration(config.Feed.FetchTimeout)
	if err != nil {
		fetchTimeout = 10 * time.Second
	}

	backoff, err := time.ParseDuration(config.Scan.ErrorBackoff)
	if err != nil {
		backoff = 5 * time.Second
	}

	settings := Settings{
		FeedURL:         getEnvOrDefault("FEED_URL", config.Feed.URL),
		TelegramToken:   getEnvOrDefault("TELEGRAM_TOKEN", config.Telegram.Token),
		TelegramChatID:  getEnvOrDefault("TELEGRAM_CHAT_ID", config.Telegram.ChatID),
		DryRun:          getBoolFromEnvOrConfig("DRY_RUN", config.Scan.DryRun),
		ScanInterval:    interval,
		FetchTimeout:    fetchTimeout,
		ErrorBackoff:    backoff,
		LiquidityFloor:  getFloatFromEnvOrConfig("LIQUIDITY_FLOOR", config.Feed.LiquidityFloor),
		PairCap:         getIntFromEnvOrConfig("PAIR_CAP", config.Feed.PairCap),
		ScoreThreshold:  getIntFromEnvOrConfig("SCORE_THRESHOLD", config.Scan.ScoreThreshold),
		ProbThreshold:   getIntFromEnvOrConfig("PROB_THRESHOLD", config.Scan.ProbThreshold),
		ModelPath:       getEnvOrDefault("MODEL_PATH", config.ML.ModelPath),
		MinTrainingRows: getIntFromEnvOrConfig("MIN_TRAINING_ROWS", config.ML.MinTrainingRows),
		DataPath:        getEnvOrDefault("DATA_PATH", config.System.DataPath),
		MetricsPort:     getIntFromEnvOrConfig("METRICS_PORT", config.System.MetricsPort),
		DashboardPort:   getIntFromEnvOrConfig("DASHBOARD_PORT", config.System.DashboardPort),
	}
	applyDefaults(&settings)

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		FeedURL:         getEnvOrDefault("FEED_URL", ""),
		TelegramToken:   os.Getenv("TELEGRAM_TOKEN"),
		TelegramChatID:  os.Getenv("TELEGRAM_CHAT_ID"),
		DryRun:          getBoolOrDefault("DRY_RUN", false),
		ScanInterval:    getDurationOrDefault("SCAN_INTERVAL", 30*time.Second),
		FetchTimeout:    getDurationOrDefault("FETCH_TIMEOUT", 10*time.Second),
		ErrorBackoff:    getDurationOrDefault("ERROR_BACKOFF", 5*time.Second),
		LiquidityFloor:  getFloatOrDefault("LIQUIDITY_FLOOR", 20000),
		PairCap:         getIntOrDefault("PAIR_CAP", 80),
		ScoreThreshold:  getIntOrDefault("SCORE_THRESHOLD", 70),
		ProbThreshold:   getIntOrDefault("PROB_THRESHOLD", 60),
		ModelPath:       getEnvOrDefault("MODEL_PATH", "model.json"),
		MinTrainingRows: getIntOrDefault("MIN_TRAINING_ROWS", 20),
		DataPath:        getEnvOrDefault("DATA_PATH", "data"),
		MetricsPort:     getIntOrDefault("METRICS_PORT", 8080),
		DashboardPort:   getIntOrDefault("DASHBOARD_PORT", 5000),
	}
	applyDefaults(&settings)

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// applyDefaults fills zero-valued fields the YAML path may leave unset.
func applyDefaults(s *Settings) {
	if s.FeedURL == "" {
		s.FeedURL = "https://api.dexscreener.com/latest/dex/pairs"
	}
	if s.LiquidityFloor == 0 {
		s.LiquidityFloor = 20000
	}
	if s.PairCap == 0 {
		s.PairCap = 80
	}
	if s.ScoreThreshold == 0 {
		s.ScoreThreshold = 70
	}
	if s.ProbThreshold == 0 {
		s.ProbThreshold = 60
	}
	if s.ModelPath == "" {
		s.ModelPath = "model.json"
	}
	if s.MinTrainingRows == 0 {
		s.MinTrainingRows = 20
	}
	if s.DataPath == "" {
		s.DataPath = "data"
	}
	if s.MetricsPort == 0 {
		s.MetricsPort = 8080
	}
	if s.DashboardPort == 0 {
		s.DashboardPort = 5000
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		// plain seconds, the way the legacy deployment set SCAN_INTERVAL
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	return configValue
}

func getFloatFromEnvOrConfig(key string, configValue float64) float64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseFloat(env, 64); err == nil {
			return val
		}
	}
	return configValue
}

func getBoolFromEnvOrConfig(key string, configValue bool) bool {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseBool(env); err == nil {
			return val
		}
	}
	return configValue
}

// validateSettings performs validation of configuration values. Missing
// Telegram credentials abort startup only when the process is expected to
// deliver alerts.
func validateSettings(settings *Settings) error {
	if !settings.DryRun && (settings.TelegramToken == "" || settings.TelegramChatID == "") {
		return fmt.Errorf("TELEGRAM_TOKEN and TELEGRAM_CHAT_ID are required unless DRY_RUN is set")
	}

	if settings.FeedURL == "" {
		return fmt.Errorf("feed URL cannot be empty")
	}

	if settings.ScanInterval < time.Second || settings.ScanInterval > time.Hour {
		return fmt.Errorf("scan interval must be between 1s and 1h, got %v", settings.ScanInterval)
	}
	if settings.FetchTimeout < time.Second || settings.FetchTimeout > time.Minute {
		return fmt.Errorf("fetch timeout must be between 1s and 1m, got %v", settings.FetchTimeout)
	}
	if settings.ErrorBackoff < time.Second || settings.ErrorBackoff > settings.ScanInterval {
		return fmt.Errorf("error backoff must be between 1s and the scan interval, got %v", settings.ErrorBackoff)
	}

	if settings.LiquidityFloor < 0 {
		return fmt.Errorf("liquidity floor cannot be negative, got %f", settings.LiquidityFloor)
	}
	if settings.PairCap <= 0 || settings.PairCap > 1000 {
		return fmt.Errorf("pair cap must be between 1 and 1000, got %d", settings.PairCap)
	}
	if settings.ScoreThreshold < 0 {
		return fmt.Errorf("score threshold cannot be negative, got %d", settings.ScoreThreshold)
	}
	if settings.ProbThreshold < 0 || settings.ProbThreshold > 100 {
		return fmt.Errorf("probability threshold must be between 0 and 100, got %d", settings.ProbThreshold)
	}
	if settings.MinTrainingRows < 2 {
		return fmt.Errorf("minimum training rows must be at least 2, got %d", settings.MinTrainingRows)
	}

	if settings.MetricsPort < 1024 || settings.MetricsPort > 65535 {
		return fmt.Errorf("metrics port must be between 1024 and 65535, got %d", settings.MetricsPort)
	}
	if settings.DashboardPort < 1024 || settings.DashboardPort > 65535 {
		return fmt.Errorf("dashboard port must be between 1024 and 65535, got %d", settings.DashboardPort)
	}
	if settings.DashboardPort == settings.MetricsPort {
		return fmt.Errorf("dashboard port and metrics port must differ, got %d for both", settings.MetricsPort)
	}

	return nil
}
