package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds environment-driven configuration.
type Config struct {
	Store struct {
		Driver     string // mysql or sqlite (default)
		MySQLDSN   string // e.g., user:pass@tcp(host:3306)/timeledger?parseTime=true
		SQLitePath string // default: timeledger.db
	}
	Sweep struct {
		Tenants  []string
		Timezone string // e.g., UTC (default), Europe/Berlin
	}
	HTTP struct {
		Addr string // empty disables the trigger server
	}
}

// Load reads configuration from environment variables. When TIMELEDGER_CONFIG
// names a YAML file its values are used as defaults below the environment.
func Load() (Config, error) {
	v := viper.New()
	v.SetDefault("store_driver", "sqlite")
	v.SetDefault("sqlite_path", "timeledger.db")
	v.SetDefault("sweep_tz", "UTC")
	for _, key := range []string{"store_driver", "mysql_dsn", "sqlite_path", "sweep_tenants", "sweep_tz", "http_addr"} {
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return Config{}, err
		}
	}
	if err := v.BindEnv("config_file", "TIMELEDGER_CONFIG"); err != nil {
		return Config{}, err
	}
	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	var cfg Config
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(v.GetString("store_driver")))
	cfg.Store.MySQLDSN = v.GetString("mysql_dsn")
	cfg.Store.SQLitePath = v.GetString("sqlite_path")
	switch cfg.Store.Driver {
	case "mysql":
		if cfg.Store.MySQLDSN == "" {
			return cfg, errors.New("MYSQL_DSN is required when STORE_DRIVER=mysql")
		}
	case "sqlite":
		if cfg.Store.SQLitePath == "" {
			return cfg, errors.New("SQLITE_PATH must not be empty")
		}
	default:
		return cfg, fmt.Errorf("STORE_DRIVER must be mysql or sqlite, got %q", cfg.Store.Driver)
	}

	cfg.Sweep.Tenants = splitList(v.GetString("sweep_tenants"))
	cfg.Sweep.Timezone = v.GetString("sweep_tz")
	if _, err := time.LoadLocation(cfg.Sweep.Timezone); err != nil {
		return cfg, fmt.Errorf("SWEEP_TZ: %w", err)
	}

	cfg.HTTP.Addr = v.GetString("http_addr")
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
