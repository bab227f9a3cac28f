package config

import (
	"log"

	"github.com/spf13/viper"

	"github.com/garagehub/shopload/internal/db"
)

// LoaderConfig holds pipeline tuning knobs. BatchSize is a performance
// parameter only; correctness never depends on it.
type LoaderConfig struct {
	BatchSize            int
	VerifyChecksums      bool
	ReportDir            string
	MigrationsPath       string
	StagingRetentionDays int
}

// ServerConfig holds the HTTP trigger service settings.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// Config is the full service configuration.
type Config struct {
	DB     db.Config
	Loader LoaderConfig
	Server ServerConfig
}

// Default returns the built-in configuration, used when no config.yaml or
// environment overrides are present.
func Default() Config {
	return Config{
		DB: db.DefaultConfig(),
		Loader: LoaderConfig{
			BatchSize:            500,
			VerifyChecksums:      true,
			ReportDir:            "./reports",
			MigrationsPath:       "./migrations",
			StagingRetentionDays: 90,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
		},
	}
}

// Load reads config.yaml from configPath (optional) and applies environment
// overrides with the SHOPLOAD prefix, e.g. SHOPLOAD_DATABASE_HOST.
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("SHOPLOAD")

	for _, key := range []string{
		"database.host", "database.port", "database.user", "database.password",
		"database.dbname", "database.sslmode",
		"loader.batch_size", "loader.verify_checksums", "loader.report_dir",
		"loader.migrations_path", "loader.staging_retention_days",
		"server.addr",
	} {
		if err := v.BindEnv(key); err != nil {
			return cfg, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		log.Println("no config.yaml found, using defaults and env vars")
	}

	if v.IsSet("database.host") {
		cfg.DB.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.DB.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.DB.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.DB.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.DB.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.DB.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("loader.batch_size") {
		cfg.Loader.BatchSize = v.GetInt("loader.batch_size")
	}
	if v.IsSet("loader.verify_checksums") {
		cfg.Loader.VerifyChecksums = v.GetBool("loader.verify_checksums")
	}
	if v.IsSet("loader.report_dir") {
		cfg.Loader.ReportDir = v.GetString("loader.report_dir")
	}
	if v.IsSet("loader.migrations_path") {
		cfg.Loader.MigrationsPath = v.GetString("loader.migrations_path")
	}
	if v.IsSet("loader.staging_retention_days") {
		cfg.Loader.StagingRetentionDays = v.GetInt("loader.staging_retention_days")
	}
	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("server.allowed_origins") {
		cfg.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}

	return cfg, nil
}
