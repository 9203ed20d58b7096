package postgres

import "github.com/eventpass/api/internal/platform/config"

func configWithDSN(dsn string) config.DatabaseConfig {
	return config.DatabaseConfig{DSN: dsn, MaxOpenConns: 2}
}
