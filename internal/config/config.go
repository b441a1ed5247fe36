package config

import "time"

type Config struct {
	BotToken     string        `yaml:"bot_token"`
	HTTPAddr     string        `yaml:"http_addr"`
	CatalogFile  string        `yaml:"catalog_file"`
	AssetsDir    string        `yaml:"assets_dir"`
	FontsDir     string        `yaml:"fonts_dir"`
	TempDir      string        `yaml:"temp_dir"`
	WatermarkURL string        `yaml:"watermark_url"`
	MaxFileSize  int64         `yaml:"max_file_size"`
	Prefetch     int           `yaml:"prefetch"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	PremiumKeys  []string      `yaml:"premium_keys"`
}

func defaults() Config {
	return Config{
		HTTPAddr:     ":8080",
		CatalogFile:  "./data/catalog.yaml",
		AssetsDir:    "./assets",
		FontsDir:     "./assets/fonts",
		TempDir:      "./temp",
		MaxFileSize:  10 * 1024 * 1024,
		Prefetch:     4,
		FetchTimeout: 15 * time.Second,
	}
}
