// Package config loads service settings from a YAML file, MAPPER_*
// environment variables and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MAPPER_BACKEND_URL.
const EnvPrefix = "MAPPER"

// Config holds the settings the server is built from.
type Config struct {
	Backend BackendConfig `mapstructure:"backend"`
	Project ProjectConfig `mapstructure:"project"`
	Log     LogConfig     `mapstructure:"log"`
	Data    DataConfig    `mapstructure:"data"`
	Viewer  ViewerConfig  `mapstructure:"viewer"`
}

// BackendConfig locates the mapper backend.
type BackendConfig struct {
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ProjectConfig names the project for default export filenames.
type ProjectConfig struct {
	Name string `mapstructure:"name"`
}

// LogConfig selects level and output format.
type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

// DataConfig locates the export archive.
type DataConfig struct {
	Dir     string `mapstructure:"dir"`
	Archive bool   `mapstructure:"archive"`
}

// ViewerConfig sizes the initial view and optionally loads fragment
// templates from disk.
type ViewerConfig struct {
	Width     int           `mapstructure:"width"`
	Height    int           `mapstructure:"height"`
	Templates string        `mapstructure:"templates"`
	Downloads time.Duration `mapstructure:"downloads"`
}

func setDefaults() {
	viper.SetDefault("backend.url", "http://localhost:8000")
	viper.SetDefault("backend.token", "")
	viper.SetDefault("backend.timeout", "30s")

	viper.SetDefault("project.name", "mediciones")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.console", false)

	viper.SetDefault("data.dir", ".data")
	viper.SetDefault("data.archive", true)

	viper.SetDefault("viewer.width", 1280)
	viper.SetDefault("viewer.height", 800)
	viper.SetDefault("viewer.templates", "")
	viper.SetDefault("viewer.downloads", "10m")
}

// Load reads the YAML file at path, or mapper.yaml from the working
// directory when path is empty. A missing default file is not an error;
// a missing explicit file is.
func Load(path string) (*Config, error) {
	setDefaults()
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	viper.SetConfigType("yaml")

	if path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		viper.SetConfigName("mapper")
		viper.AddConfigPath(".")
		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Backend.URL == "" {
		return nil, errors.New("backend.url is required")
	}
	return &cfg, nil
}
