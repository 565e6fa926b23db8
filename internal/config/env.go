package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig      = "GHDRIVE_CONFIG"
	EnvToken       = "GHDRIVE_TOKEN"
	EnvGitHubToken = "GITHUB_TOKEN"
	EnvLogLevel    = "GHDRIVE_LOG_LEVEL"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // GHDRIVE_CONFIG: override config file path
	Token      string // GHDRIVE_TOKEN, else GITHUB_TOKEN: bypasses the token file
	LogLevel   string // GHDRIVE_LOG_LEVEL
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. GHDRIVE_TOKEN wins over GITHUB_TOKEN.
func ReadEnvOverrides() EnvOverrides {
	token := os.Getenv(EnvToken)
	if token == "" {
		token = os.Getenv(EnvGitHubToken)
	}

	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		Token:      token,
		LogLevel:   os.Getenv(EnvLogLevel),
	}
}
