package config

import (
	"os"
	"strings"
)

// EnvModeKey selects which config file variants are layered on top of the base file.
const EnvModeKey = "GO_ENV_MODE"

type EnvMode string

const (
	DevMode  EnvMode = "development"
	ProMode  EnvMode = "production"
	TestMode EnvMode = "test"
)

func ParseEnv(env string) EnvMode {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "pro":
		return ProMode
	case "test", "testing":
		return TestMode
	default:
		return DevMode
	}
}

// Mode returns the environment mode from GO_ENV_MODE, defaulting to development.
func Mode() EnvMode {
	return ParseEnv(os.Getenv(EnvModeKey))
}

// aliases lists the short names also accepted as file suffixes for a mode.
func (m EnvMode) aliases() []string {
	switch m {
	case ProMode:
		return []string{"pro", "prod"}
	case TestMode:
		return nil
	default:
		return []string{"dev"}
	}
}
