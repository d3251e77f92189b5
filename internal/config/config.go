package config

import "github.com/joho/godotenv"

// Config aggregates the server's tunables, one interface per concern so
// collaborators depend only on the slice they read.
type Config interface {
	EnvConfig
	OAuthConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetEnv() string
}

type mainConfig struct {
	EnvVars
	OAuth
}

// New loads an optional .env file and returns the composed configuration.
// A missing .env is fine; the environment wins either way.
func New() Config {
	_ = godotenv.Load()
	return mainConfig{}
}
