package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerAddress = "localhost:8080"
	defaultLogLevel      = "info"
	defaultEnv           = "local"
	defaultConfigDir     = ".gymkeeper"
)

type Config struct {
	Env             string `mapstructure:"app_env"`
	ServerAddress   string `mapstructure:"server_address"`
	LogLevel        string `mapstructure:"log_level"`
	ConfigDir       string `mapstructure:"config_dir"`
	TokenPath       string `mapstructure:"token_path"`
	DataPath        string `mapstructure:"data_path"`
	SyncInterval    int    `mapstructure:"sync_interval_seconds"`
	RequestTimeout  int    `mapstructure:"request_timeout_seconds"`
	MaxSyncAttempts int    `mapstructure:"max_sync_attempts"`
	ProbeInterval   int    `mapstructure:"probe_interval_seconds"`
	EnableTLS       bool   `mapstructure:"enable_tls"`
	CACertPath      string `mapstructure:"ca_cert_path"`
}

// MustLoad loads the client configuration from the environment, with an
// optional .env file next to the binary or one directory up.
func MustLoad() *Config {
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		envPath = "../.env"
	}

	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			fmt.Printf("failed to load .env file: %v\n", err)
		}
	}

	viper.AutomaticEnv()

	viper.SetDefault("APP_ENV", defaultEnv)
	viper.SetDefault("SERVER_ADDRESS", defaultServerAddress)
	viper.SetDefault("LOG_LEVEL", defaultLogLevel)
	viper.SetDefault("CONFIG_DIR", defaultConfigDir)
	viper.SetDefault("SYNC_INTERVAL_SECONDS", 300)
	viper.SetDefault("REQUEST_TIMEOUT_SECONDS", 10)
	viper.SetDefault("MAX_SYNC_ATTEMPTS", 5)
	viper.SetDefault("PROBE_INTERVAL_SECONDS", 15)
	viper.SetDefault("ENABLE_TLS", false)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	configDir := viper.GetString("CONFIG_DIR")
	if configDir == defaultConfigDir {
		configDir = filepath.Join(homeDir, configDir)
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		fmt.Printf("failed to create config directory: %v\n", err)
	}

	tokenPath := filepath.Join(configDir, "token")

	dataPath := viper.GetString("DATA_PATH")
	if dataPath == "" {
		dataPath = filepath.Join(configDir, "gymkeeper.db")
	}

	config := &Config{
		Env:             viper.GetString("APP_ENV"),
		ServerAddress:   viper.GetString("SERVER_ADDRESS"),
		LogLevel:        viper.GetString("LOG_LEVEL"),
		ConfigDir:       configDir,
		TokenPath:       tokenPath,
		DataPath:        dataPath,
		SyncInterval:    viper.GetInt("SYNC_INTERVAL_SECONDS"),
		RequestTimeout:  viper.GetInt("REQUEST_TIMEOUT_SECONDS"),
		MaxSyncAttempts: viper.GetInt("MAX_SYNC_ATTEMPTS"),
		ProbeInterval:   viper.GetInt("PROBE_INTERVAL_SECONDS"),
		EnableTLS:       viper.GetBool("ENABLE_TLS"),
		CACertPath:      viper.GetString("CA_CERT_PATH"),
	}

	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid configuration: %v", err))
	}

	return config
}

func (c *Config) validate() error {
	if c.ServerAddress == "" {
		return fmt.Errorf("server_address must not be empty")
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("sync_interval_seconds must be positive")
	}
	if c.MaxSyncAttempts <= 0 {
		return fmt.Errorf("max_sync_attempts must be positive")
	}
	return nil
}

// IsProd reports whether the client runs against a production environment.
func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

// IsDev reports whether the client runs against a dev environment.
func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// IsLocal reports whether the client runs locally.
func (c *Config) IsLocal() bool {
	return c.Env == "local" || c.Env == ""
}
