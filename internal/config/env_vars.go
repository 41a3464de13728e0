package config

import "strings"

type EnvVars struct {
	Port        string `env:"PORT" envDefault:"8080"`
	AppName     string `env:"APP_NAME" envDefault:"Token Exchange"`
	Environment string `env:"ENV" envDefault:"DEV"`
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	ClientsFile string `env:"CLIENTS_FILE"`
}

var _ EnvConfig = EnvVars{}

// GetPort returns the listen address, e.g. ":8080".
func (e EnvVars) GetPort() string {
	if strings.HasPrefix(e.Port, ":") {
		return e.Port
	}
	return ":" + e.Port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	return e.Environment
}

// GetBaseURL returns the public URL of the server without a trailing slash. It
// is used as the token issuer.
func (e EnvVars) GetBaseURL() string {
	return strings.TrimRight(e.BaseURL, "/")
}

func (e EnvVars) GetClientsFile() string {
	return e.ClientsFile
}

type Logging struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"` // console or json
}

var _ LogConfig = Logging{}

func (l Logging) GetLogLevel() string {
	return l.LogLevel
}

func (l Logging) GetLogFormat() string {
	return l.LogFormat
}
