package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig    = "OCDAV_CONFIG"
	EnvServerURL = "OCDAV_SERVER_URL"
	EnvUser      = "OCDAV_USER"
	EnvPassword  = "OCDAV_PASSWORD"
	EnvTokenFile = "OCDAV_TOKEN_FILE"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // OCDAV_CONFIG
	ServerURL  string // OCDAV_SERVER_URL
	User       string // OCDAV_USER: sets both user id and login name
	Password   string // OCDAV_PASSWORD: env-only
	TokenFile  string // OCDAV_TOKEN_FILE
}

// ReadEnvOverrides reads the OCDAV_* variables.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		ServerURL:  os.Getenv(EnvServerURL),
		User:       os.Getenv(EnvUser),
		Password:   os.Getenv(EnvPassword),
		TokenFile:  os.Getenv(EnvTokenFile),
	}
}
