// Package config loads the application configuration from the environment.
//
// An optional env file is loaded first with godotenv (variables already present in the
// environment win), then cleanenv fills the Config struct from the env tags below.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// DefaultEnvFile is loaded when ENV_FILE is not set.
const DefaultEnvFile = ".env"

type Config struct {
	Mongo     MongoConfig
	Logging   LoggingConfig
	WebServer WebServerConfig
	RabbitMQ  RabbitMQConfig
	JWTSecret string `env:"JWT_SECRET_KEY"`
}

type MongoConfig struct {
	URI            string        `env:"MONGO_URI" env-required:"true"`
	Database       string        `env:"MONGO_DATABASE" env-default:"userdb"`
	Collection     string        `env:"MONGO_COLLECTION" env-default:"users"`
	ConnectTimeout time.Duration `env:"MONGO_CONNECT_TIMEOUT" env-default:"10s"`
}

type LoggingConfig struct {
	Development bool     `env:"LOG_DEVELOPMENT" env-default:"false"`
	Debug       bool     `env:"LOG_DEBUG" env-default:"false"`
	OutputPaths []string `env:"LOG_OUTPUT" env-default:"stdout" env-separator:","`
}

type WebServerConfig struct {
	IP   string `env:"WEBSERVER_IP" env-default:"0.0.0.0"`
	Port int    `env:"WEBSERVER_PORT" env-default:"5000"`
}

// RabbitMQConfig is optional; an empty URL disables change events.
type RabbitMQConfig struct {
	URL   string `env:"RABBITMQ_URL"`
	Queue string `env:"RABBITMQ_QUEUE" env-default:"user-events"`
}

// Load reads envFile (if it exists) into the process environment and parses the Config.
// If envFile is empty, DefaultEnvFile is used.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading env file %s: %w", envFile, err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}
	return &cfg, nil
}
