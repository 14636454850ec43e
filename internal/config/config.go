package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
)

type Config struct {
	Env       string          `yaml:"env" env:"SNAPPY_ENV" env-default:"local"`
	API       APIConfig       `yaml:"api"`
	Storage   StorageConfig   `yaml:"storage"`
	Uploads   UploadsConfig   `yaml:"uploads"`
	DevServer DevServerConfig `yaml:"devserver"`
}

type APIConfig struct {
	BaseURL   string        `yaml:"base_url" env:"SNAPPY_API_URL" env-default:"http://localhost:8082"`
	WSURL     string        `yaml:"ws_url" env:"SNAPPY_WS_URL"`
	ProjectID string        `yaml:"project_id" env:"SNAPPY_PROJECT_ID" env-required:"true"`
	Token     string        `yaml:"token" env:"SNAPPY_TOKEN"`
	Timeout   time.Duration `yaml:"timeout" env-default:"15s"`
	// ClockOffset is added to server timestamps before they are cached.
	ClockOffset time.Duration `yaml:"clock_offset" env:"SNAPPY_CLOCK_OFFSET" env-default:"1h"`
}

type StorageConfig struct {
	Driver   string        `yaml:"driver" env:"SNAPPY_STORAGE_DRIVER" env-default:"sqlite"`
	DSN      string        `yaml:"dsn" env:"SNAPPY_STORAGE_DSN" env-default:"snappy.db"`
	Table    string        `yaml:"table" env-default:"kv"`
	RedisURL string        `yaml:"redis_url" env:"REDIS_URL"`
	Prefix   string        `yaml:"prefix" env-default:"snappy:"`
	TTL      time.Duration `yaml:"ttl" env-default:"0s"`
}

type UploadsConfig struct {
	Bucket    string `yaml:"bucket" env:"S3_BUCKET"`
	Region    string `yaml:"region" env:"S3_REGION" env-default:"us-east-1"`
	Endpoint  string `yaml:"endpoint" env:"S3_ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"S3_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"S3_SECRET_KEY"`
	MaxSize   int64  `yaml:"max_size" env-default:"26214400"`
}

// Enabled reports whether attachments should be uploaded before sending.
func (u UploadsConfig) Enabled() bool {
	return u.Bucket != ""
}

type DevServerConfig struct {
	Address     string        `yaml:"address" env:"SNAPPY_DEVSERVER_ADDR" env-default:"localhost:8082"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	Users       []SeedUser    `yaml:"users"`
}

type SeedUser struct {
	ExternalID  string `yaml:"external_id"`
	DisplayName string `yaml:"display_name"`
	Token       string `yaml:"token"`
}

// Load reads the config file at path, falling back to CONFIG_PATH when path is empty.
// Environment variables override file values.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	var cfg Config

	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("%s: read env: %w", op, err)
		}
		return &cfg, nil
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: config file does not exist: %s", op, path)
	}

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: read config %s: %w", op, path, err)
	}

	return &cfg, nil
}
