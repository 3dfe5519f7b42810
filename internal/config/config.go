package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Session SessionConfig `mapstructure:"session"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Preview PreviewConfig `mapstructure:"preview"`
	Stub    StubConfig    `mapstructure:"stub"`
	Log     LogConfig     `mapstructure:"log"`
}

// APIConfig holds the backend connection settings
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SessionConfig holds where the auth token is persisted
type SessionConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// SyncConfig holds the chat polling settings
type SyncConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// PreviewConfig holds where generated pages are written for preview
type PreviewConfig struct {
	Dir string `mapstructure:"dir"`
}

// StubConfig holds the local stub backend settings
type StubConfig struct {
	Addr     string `mapstructure:"addr"`
	BotReply string `mapstructure:"bot_reply"`
}

// LogConfig holds the logging settings
type LogConfig struct {
	Level string `mapstructure:"level"`
}

const envPrefix = "FOLIO"

// Default returns a configuration with every default applied.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:5000",
			Timeout: 30 * time.Second,
		},
		Session: SessionConfig{DBPath: filepath.Join(home, ".folio", "session.db")},
		Sync:    SyncConfig{PollInterval: 5 * time.Second},
		Preview: PreviewConfig{Dir: filepath.Join(os.TempDir(), "folio-previews")},
		Stub:    StubConfig{Addr: "127.0.0.1:5000"},
		Log:     LogConfig{Level: "info"},
	}
}

// Load loads the configuration from config.yaml (or the file named by path or
// CONFIG_PATH) and FOLIO_* environment variables. A missing config file is
// not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".folio"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	config.API.BaseURL = strings.TrimRight(config.API.BaseURL, "/")

	return &config, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.timeout", d.API.Timeout)
	v.SetDefault("session.db_path", d.Session.DBPath)
	v.SetDefault("sync.poll_interval", d.Sync.PollInterval)
	v.SetDefault("preview.dir", d.Preview.Dir)
	v.SetDefault("stub.addr", d.Stub.Addr)
	v.SetDefault("stub.bot_reply", d.Stub.BotReply)
	v.SetDefault("log.level", d.Log.Level)
}
