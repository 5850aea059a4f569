package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

type Config struct {
	Env    string
	DB     db
	Server server
	Logger logger
	Sync   syncOpts
}

type db struct {
	DatabaseURI string `env:"DATABASE_URI"`
	Migrations  string `env:"MIGRATIONS_PATH"`
}

type server struct {
	RunAddress string `env:"RUN_ADDRESS"`
}

type logger struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

type syncOpts struct {
	// ChangesPageSize caps how many records a single changes
	// request may return.
	ChangesPageSize int `env:"SYNC_PAGE_SIZE"`
}

// MustLoad reads configuration from the environment, optionally seeded
// from a .env file. It panics on invalid configuration because the
// server cannot run without a database.
func MustLoad() *Config {
	for _, p := range []string{".env", "../.env"} {
		if _, err := os.Stat(p); err == nil {
			if err := godotenv.Load(p); err != nil {
				log.Printf("failed to load %s: %v", p, err)
			}
			break
		}
	}

	viper.AutomaticEnv()
	viper.SetDefault("APP_ENV", EnvLocal)
	viper.SetDefault("RUN_ADDRESS", "localhost:8080")
	viper.SetDefault("MIGRATIONS_PATH", "migrations")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("SYNC_PAGE_SIZE", 500)

	config := Config{
		Env: viper.GetString("APP_ENV"),
		DB: db{
			DatabaseURI: viper.GetString("DATABASE_URI"),
			Migrations:  viper.GetString("MIGRATIONS_PATH"),
		},
		Server: server{RunAddress: viper.GetString("RUN_ADDRESS")},
		Logger: logger{LogLevel: viper.GetString("LOG_LEVEL")},
		Sync:   syncOpts{ChangesPageSize: viper.GetInt("SYNC_PAGE_SIZE")},
	}

	if config.DB.DatabaseURI == "" {
		panic("DATABASE_URI is required")
	}

	return &config
}
