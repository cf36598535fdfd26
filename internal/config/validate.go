package config

import (
	"errors"
	"net/url"
	"strings"
)

func Validate(cfg Config) error {
	var errs []string

	if cfg.App.Port <= 0 || cfg.App.Port > 65535 {
		errs = append(errs, "app.port must be 1..65535")
	}

	if strings.TrimSpace(cfg.Source.URL) == "" {
		errs = append(errs, "source.url is required")
	} else if u, err := url.Parse(cfg.Source.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, "source.url must be an absolute http(s) URL")
	}
	if cfg.Source.Pages < 1 || cfg.Source.Pages > 10 {
		errs = append(errs, "source.pages must be 1..10")
	}
	if cfg.Source.TimeoutSeconds <= 0 {
		errs = append(errs, "source.timeout_seconds must be > 0")
	}
	if cfg.Source.HostRatePerSec <= 0 {
		errs = append(errs, "source.host_rate_per_sec must be > 0")
	}

	if cfg.Polling.IntervalMinutes <= 0 {
		errs = append(errs, "polling.interval_minutes must be > 0")
	}
	if cfg.Cache.TTLSeconds <= 0 {
		errs = append(errs, "cache.ttl_seconds must be > 0")
	}

	if cfg.API.DefaultPageSize <= 0 {
		errs = append(errs, "api.default_page_size must be > 0")
	}
	if cfg.API.MaxPageSize < cfg.API.DefaultPageSize {
		errs = append(errs, "api.max_page_size must be >= api.default_page_size")
	}
	if cfg.API.RequestsPerMin <= 0 {
		errs = append(errs, "api.requests_per_min must be > 0")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n- " + strings.Join(errs, "\n- "))
	}
	return nil
}
