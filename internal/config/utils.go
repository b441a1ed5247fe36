package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load builds the configuration from defaults, the optional YAML file named
// by CONFIG_FILE, and finally the environment.
func Load(logger *log.Logger) (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := readFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	cfg.BotToken = getEnv(logger, "TOKEN", cfg.BotToken, parseString)
	cfg.HTTPAddr = getEnv(logger, "HTTP_ADDR", cfg.HTTPAddr, parseString)
	cfg.CatalogFile = getEnv(logger, "CATALOG_FILE", cfg.CatalogFile, parseString)
	cfg.AssetsDir = getEnv(logger, "ASSETS_DIR", cfg.AssetsDir, parseString)
	cfg.FontsDir = getEnv(logger, "FONTS_DIR", cfg.FontsDir, parseString)
	cfg.TempDir = getEnv(logger, "TEMP_DIR", cfg.TempDir, parseString)
	cfg.WatermarkURL = getEnv(logger, "WATERMARK_URL", cfg.WatermarkURL, parseString)

	cfg.MaxFileSize = getEnv(logger, "MAX_FILE_SIZE", cfg.MaxFileSize, parseInt)
	cfg.Prefetch = getEnv(logger, "PREFETCH", cfg.Prefetch, parsePositive)
	cfg.FetchTimeout = getEnv(logger, "FETCH_TIMEOUT", cfg.FetchTimeout, time.ParseDuration)
	cfg.PremiumKeys = getEnv(logger, "PREMIUM_KEYS", cfg.PremiumKeys, parseList)

	if cfg.HTTPAddr == "" && cfg.BotToken == "" {
		return nil, errors.New("nothing to run: set HTTP_ADDR or TOKEN")
	}
	return &cfg, nil
}

func readFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func getEnv[T any](logger *log.Logger, key string, defaultValue T, parser func(string) (T, error)) T {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	parsed, err := parser(val)
	if err != nil {
		logger.Printf("[WARN]: invalid value for %s (%s). Using default: %v\n", key, val, defaultValue)
		return defaultValue
	}

	return parsed
}

func parseString(val string) (string, error) {
	return val, nil
}

func parseInt(val string) (int64, error) {
	return strconv.ParseInt(val, 10, 64)
}

// parseList splits a comma separated value, dropping empty items.
func parseList(val string) ([]string, error) {
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("empty list")
	}
	return out, nil
}

func parsePositive(val string) (int, error) {
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("%d is not positive", n)
	}
	return n, nil
}
