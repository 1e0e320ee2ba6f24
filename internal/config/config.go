package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	DefaultSpoonacularURL = "https://api.spoonacular.com"
	DefaultWeeklyPlanPath = "random_meal_plan.json"
	DefaultCustomPlanPath = "custom_meal_plan.json"
	DefaultPort           = "5000"
	DefaultTimeout        = 15 * time.Second
	DefaultStartupRetries = 3
	DefaultLogLevel       = "info"
)

// Config holds the configuration for the application.
type Config struct {
	SpoonacularAPIKey  string
	SpoonacularBaseURL string

	WeeklyPlanPath string
	CustomPlanPath string

	Port            string
	UpstreamTimeout time.Duration
	// StartupRetries counts retries after the first failed plan generation.
	StartupRetries  int
	LogLevel        logrus.Level
}

// fileConfig models the optional YAML file named by MEAL_PLANNER_CONFIG.
// The API key is deliberately absent.
type fileConfig struct {
	SpoonacularBaseURL string `yaml:"spoonacular_base_url"`
	WeeklyPlanPath     string `yaml:"weekly_plan_path"`
	CustomPlanPath     string `yaml:"custom_plan_path"`
	Port               string `yaml:"port"`
	UpstreamTimeout    string `yaml:"upstream_timeout"`
	StartupRetries     int    `yaml:"startup_retries"`
	LogLevel           string `yaml:"log_level"`
}

// LoadDotEnv loads variables from the given .env files (".env" when none are
// given) into the process environment. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// NewFromEnv creates a new Config object from environment variables, using the
// YAML file in MEAL_PLANNER_CONFIG (if set) for defaults.
func NewFromEnv() (*Config, error) {
	fc := fileConfig{}
	if path := os.Getenv("MEAL_PLANNER_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	timeoutStr := lookup("UPSTREAM_TIMEOUT", fc.UpstreamTimeout, "")
	timeout := DefaultTimeout
	if timeoutStr != "" {
		d, err := time.ParseDuration(timeoutStr)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("UPSTREAM_TIMEOUT must be a positive duration, got %q", timeoutStr)
		}
		timeout = d
	}

	retries := DefaultStartupRetries
	if fc.StartupRetries != 0 {
		retries = fc.StartupRetries
	}
	if s := os.Getenv("STARTUP_RETRIES"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("STARTUP_RETRIES must be an integer, got %q", s)
		}
		retries = n
	}
	if retries < 1 {
		return nil, fmt.Errorf("STARTUP_RETRIES must be at least 1, got %d", retries)
	}

	levelStr := lookup("LOG_LEVEL", fc.LogLevel, DefaultLogLevel)
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL is invalid: %w", err)
	}

	return &Config{
		// Not validated: an empty key surfaces as upstream authentication failures.
		SpoonacularAPIKey:  os.Getenv("SPOONACULAR_API_KEY"),
		SpoonacularBaseURL: lookup("SPOONACULAR_BASE_URL", fc.SpoonacularBaseURL, DefaultSpoonacularURL),
		WeeklyPlanPath:     lookup("WEEKLY_PLAN_PATH", fc.WeeklyPlanPath, DefaultWeeklyPlanPath),
		CustomPlanPath:     lookup("CUSTOM_PLAN_PATH", fc.CustomPlanPath, DefaultCustomPlanPath),
		Port:               lookup("PORT", fc.Port, DefaultPort),
		UpstreamTimeout:    timeout,
		StartupRetries:     retries,
		LogLevel:           level,
	}, nil
}

// lookup returns the environment value for key, then the file value, then def.
func lookup(key, fileValue, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if fileValue != "" {
		return fileValue
	}
	return def
}
