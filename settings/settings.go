package settings

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Settings holds everything read from the settings file. Flags override the
// cloud service URL and API key; everything else lives here.
type Settings struct {
	ConnectionString string `yaml:"connection_string"`
	AuditLogPath     string `yaml:"audit_log_path"`
	RedisHost        string `yaml:"redis_host"`
	RedisPort        string `yaml:"redis_port"`
	RedisPassword    string `yaml:"redis_password"`
	MonitorInterval  string `yaml:"monitor_interval"`
	BasicAuthUser    string `yaml:"basic_auth_user"`
	BasicAuthPass    string `yaml:"basic_auth_pass"`
}

// DefaultSettings returns the defaults used when no settings file exists.
func DefaultSettings() *Settings {
	return &Settings{
		AuditLogPath:    "audit.log",
		RedisPort:       "6379",
		MonitorInterval: "15m",
		BasicAuthUser:   "shiftdirector",
	}
}

// LoadSettings reads settings.yaml from the working directory, falling back
// to defaults when the file is missing. Environment variables override the
// secrets so they can stay out of the file.
func LoadSettings() *Settings {
	settings := DefaultSettings()

	cwd, err := os.Getwd()
	if err != nil {
		return settings
	}

	settingsPath := filepath.Join(cwd, "settings.yaml")
	data, err := os.ReadFile(settingsPath)
	if err == nil {
		if err := yaml.Unmarshal(data, settings); err != nil {
			return DefaultSettings()
		}
	}

	if dsn := os.Getenv("SHIFTDIRECTOR_CONNECTION_STRING"); dsn != "" {
		settings.ConnectionString = dsn
	}
	if pass := os.Getenv("SHIFTDIRECTOR_REDIS_PASSWORD"); pass != "" {
		settings.RedisPassword = pass
	}
	if pass := os.Getenv("SHIFTDIRECTOR_BASIC_AUTH_PASS"); pass != "" {
		settings.BasicAuthPass = pass
	}

	return settings
}
