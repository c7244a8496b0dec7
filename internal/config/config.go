package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/matcher"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/repo"
)

type Config struct {
	ListenAddress      string   `env:"LISTEN_ADDRESS, default=:8080"`
	AdminListenAddress string   `env:"ADMIN_LISTEN_ADDRESS, default=:8081"`
	AllowedOrigins     []string `env:"ALLOWED_ORIGINS, default=*"`
	MongoDBURL         string   `env:"MONGO_URL"`
	MongoDatabaseName  string   `env:"MONGO_DATABASE, default=logcat"`
	EventsServiceUrl   string   `env:"EVENTS_SERVICE_URL"`

	MatchCase                 bool     `env:"FILTER_MATCH_CASE, default=false"`
	ProjectApplicationIDs     []string `env:"PROJECT_APPLICATION_IDS"`
	DefaultFilter             string   `env:"DEFAULT_FILTER, default=package:mine"`
	MostRecentlyUsedIsDefault bool     `env:"MOST_RECENTLY_USED_FILTER_IS_DEFAULT, default=false"`
	HistorySize               int      `env:"FILTER_HISTORY_SIZE, default=20"`

	AutomationScript   string        `env:"AUTOMATION_SCRIPT"`
	AutomationInterval time.Duration `env:"AUTOMATION_INTERVAL, default=1m"`
}

func LoadConfig(ctx context.Context) (*Config, error) {
	return LoadConfigFrom(ctx, envconfig.OsLookuper())
}

// LoadConfigFrom is like LoadConfig but reads values from l.
func LoadConfigFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	}); err != nil {
		return nil, fmt.Errorf("failed to parse configuration from environment: %w", err)
	}

	if cfg.HistorySize < 0 {
		return nil, fmt.Errorf("invalid FILTER_HISTORY_SIZE %d", cfg.HistorySize)
	}

	return &cfg, nil
}

// MatchOptions returns the filter evaluation settings.
func (cfg *Config) MatchOptions() matcher.Options {
	return matcher.Options{
		MatchCase:             cfg.MatchCase,
		ProjectApplicationIDs: cfg.ProjectApplicationIDs,
	}
}

// RepoOptions returns the settings for storage backends.
func (cfg *Config) RepoOptions() repo.Options {
	return repo.Options{
		Match:       cfg.MatchOptions(),
		HistorySize: cfg.HistorySize,
	}
}
