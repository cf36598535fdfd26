package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Port    int    `yaml:"port"`
		DataDir string `yaml:"data_dir"`
	} `yaml:"app"`

	Source struct {
		URL            string  `yaml:"url"`
		Pages          int     `yaml:"pages"`
		TimeoutSeconds int     `yaml:"timeout_seconds"`
		HostRatePerSec float64 `yaml:"host_rate_per_sec"`
		HostBurst      int     `yaml:"host_burst"`
	} `yaml:"source"`

	Polling struct {
		IntervalMinutes int `yaml:"interval_minutes"`
	} `yaml:"polling"`

	Cache struct {
		TTLSeconds int `yaml:"ttl_seconds"`
	} `yaml:"cache"`

	API struct {
		DefaultPageSize int `yaml:"default_page_size"`
		MaxPageSize     int `yaml:"max_page_size"`
		RequestsPerMin  int `yaml:"requests_per_min"`
		Burst           int `yaml:"burst"`
		SearchResultCap int `yaml:"search_result_cap"`
	} `yaml:"api"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Port == 0 {
		cfg.App.Port = 5000
	}
	if cfg.Source.URL == "" {
		cfg.Source.URL = "https://news.ycombinator.com/jobs"
	}
	if cfg.Source.Pages == 0 {
		cfg.Source.Pages = 1
	}
	if cfg.Source.TimeoutSeconds == 0 {
		cfg.Source.TimeoutSeconds = 10
	}
	if cfg.Source.HostRatePerSec == 0 {
		cfg.Source.HostRatePerSec = 1.0
	}
	if cfg.Source.HostBurst == 0 {
		cfg.Source.HostBurst = 2
	}
	if cfg.Polling.IntervalMinutes == 0 {
		cfg.Polling.IntervalMinutes = 30
	}
	if cfg.Cache.TTLSeconds == 0 {
		cfg.Cache.TTLSeconds = 300
	}
	if cfg.API.DefaultPageSize == 0 {
		cfg.API.DefaultPageSize = 30
	}
	if cfg.API.MaxPageSize == 0 {
		cfg.API.MaxPageSize = 100
	}
	if cfg.API.RequestsPerMin == 0 {
		cfg.API.RequestsPerMin = 30
	}
	if cfg.API.Burst == 0 {
		cfg.API.Burst = 10
	}
	if cfg.API.SearchResultCap == 0 {
		cfg.API.SearchResultCap = 50
	}
}

// OverlayEnv applies environment overrides on top of the file config.
// Hosting platforms inject PORT and friends instead of editing yaml.
func OverlayEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.App.Port = p
		}
	}
	if v := os.Getenv("SOURCE_URL"); v != "" {
		cfg.Source.URL = v
	}
	if v := os.Getenv("SCRAPE_INTERVAL"); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			cfg.Polling.IntervalMinutes = m
		}
	}
	if v := os.Getenv("CACHE_TIMEOUT"); v != "" {
		if s, err := strconv.Atoi(v); err == nil {
			cfg.Cache.TTLSeconds = s
		}
	}
}
