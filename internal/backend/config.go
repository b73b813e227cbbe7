package backend

import (
	"log/slog"
	"net/http"

	"passbook/internal/api"
	"passbook/internal/config"
	"passbook/internal/metrics"
)

// APIConfig converts the application config to the PIN client's config.
func APIConfig(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) api.Config {
	return api.Config{
		BaseURL:  cfg.APIURL,
		Timeout:  cfg.HTTPTimeout,
		PageSize: cfg.PageSize,
		CacheTTL: cfg.CacheTTL,
		Logger:   logger,
		Metrics:  m,
	}
}

func familyHTTPClient(cfg *config.Config) *http.Client {
	return &http.Client{Timeout: cfg.HTTPTimeout}
}
