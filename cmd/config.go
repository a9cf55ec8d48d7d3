package cmd

import (
	"fmt"
	"time"

	"tenant-clone/internal/pool"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Source   SourceConfig   `mapstructure:"source"`
	Tenant   TenantConfig   `mapstructure:"tenant"`
	Pool     pool.Options   `mapstructure:"pool"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
}

type ServerConfig struct {
	pool.ServerConfig `mapstructure:",squash"`
	Driver            string `mapstructure:"driver"`
	MaintenanceDB     string `mapstructure:"maintenance_db"`
}

type SourceConfig struct {
	Code   string `mapstructure:"code"`
	Schema string `mapstructure:"schema"`
}

type TenantConfig struct {
	Suffix string `mapstructure:"suffix"`
}

type SyncConfig struct {
	Workers          int           `mapstructure:"workers"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
}

type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
}

func setDefaults() {
	viper.SetDefault("server.driver", "postgres")
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 5432)
	viper.SetDefault("server.user", "postgres")
	viper.SetDefault("server.password", "")
	viper.SetDefault("server.sslmode", "disable")
	viper.SetDefault("server.maintenance_db", "postgres")

	viper.SetDefault("source.code", "FP")
	viper.SetDefault("source.schema", "public")
	viper.SetDefault("tenant.suffix", "_database")

	viper.SetDefault("pool.max_open_conns", 4)
	viper.SetDefault("pool.max_idle_conns", 2)
	viper.SetDefault("pool.conn_max_lifetime", 30*time.Minute)

	viper.SetDefault("sync.workers", 4)
	viper.SetDefault("sync.statement_timeout", 30*time.Second)
	viper.SetDefault("schedule.cron", "@every 1h")
}

// LoadConfig reads the merged flag/env/file configuration.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Source.Code == "" {
		return nil, fmt.Errorf("source.code is required (via flag or config)")
	}
	if cfg.Server.Host == "" {
		return nil, fmt.Errorf("server.host is required (via flag or config)")
	}
	if cfg.Sync.Workers < 1 {
		return nil, fmt.Errorf("sync.workers must be at least 1, got %d", cfg.Sync.Workers)
	}
	return &cfg, nil
}
