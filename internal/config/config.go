// Package config loads server and CLI settings from defaults, an optional
// thrive.yaml and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config is the runtime configuration.
type Config struct {
	Port            string   `mapstructure:"port"`
	DatabaseURL     string   `mapstructure:"database_url"`
	Store           string   `mapstructure:"store"`
	KafkaBrokers    []string `mapstructure:"kafka_brokers"`
	KafkaTopic      string   `mapstructure:"kafka_topic"`
	PublicTaskLimit int      `mapstructure:"public_task_limit"`
	Timezone        string   `mapstructure:"timezone"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Port:            "8080",
		Store:           StorePostgres,
		KafkaTopic:      "thrive.activity",
		PublicTaskLimit: 10,
		Timezone:        "UTC",
	}
}

// Load reads configuration. path names a YAML file; when empty, thrive.yaml
// is looked up in the working directory and skipped if absent.
func Load(path string) (*Config, error) {
	v := viper.New()
	d := Defaults()
	v.SetDefault("port", d.Port)
	v.SetDefault("database_url", d.DatabaseURL)
	v.SetDefault("store", d.Store)
	v.SetDefault("kafka_brokers", "")
	v.SetDefault("kafka_topic", d.KafkaTopic)
	v.SetDefault("public_task_limit", d.PublicTaskLimit)
	v.SetDefault("timezone", d.Timezone)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("thrive")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		Port:            v.GetString("port"),
		DatabaseURL:     v.GetString("database_url"),
		Store:           strings.ToLower(v.GetString("store")),
		KafkaBrokers:    splitList(v.GetStringSlice("kafka_brokers")),
		KafkaTopic:      v.GetString("kafka_topic"),
		PublicTaskLimit: v.GetInt("public_task_limit"),
		Timezone:        v.GetString("timezone"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required for the postgres store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("config: unknown store %q", c.Store)
	}
	if c.PublicTaskLimit <= 0 {
		return fmt.Errorf("config: public_task_limit must be positive, got %d", c.PublicTaskLimit)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// splitList accepts both YAML lists and comma-separated env values.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
