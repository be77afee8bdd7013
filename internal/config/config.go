package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all coachwire environment variables.
const EnvPrefix = "COACHWIRE_"

// Config holds all client configuration. The Google credentials path is the
// only secret-adjacent value and is loaded from the environment only.
type Config struct {
	ServerURL              string   `yaml:"server_url"`
	UserName               string   `yaml:"user_name"`
	MeetingDurationMinutes int      `yaml:"meeting_duration_minutes"`
	AgendaItems            []string `yaml:"agenda_items"`
	ScreenDisplay          int      `yaml:"screen_display"`
	ExportDir              string   `yaml:"export_dir"`
	DBPath                 string   `yaml:"db_path"`
	GDriveFolderID         string   `yaml:"gdrive_folder_id"`

	// Env var only, never serialized to YAML.
	GoogleCredentialsFile string `yaml:"-"`
}

func defaults() Config {
	return Config{
		ServerURL:              "http://localhost:8000",
		UserName:               "User",
		MeetingDurationMinutes: 30,
		ScreenDisplay:          0,
		ExportDir:              "data/summaries",
		DBPath:                 "data/coachwire.db",
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, and validates the result. It returns the
// config, any validation warnings, and an error if the file exists but
// cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	cfg.GoogleCredentialsFile = os.Getenv(EnvPrefix + "GOOGLE_CREDENTIALS_FILE")

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// MeetingSocketURL derives the duplex endpoint for a meeting from the
// configured server URL: the meeting ID becomes a path segment and the
// scheme follows the server's transport security (https → wss).
func (c *Config) MeetingSocketURL(meetingID string) (string, error) {
	parsed, err := url.Parse(c.ServerURL)
	if err != nil {
		return "", fmt.Errorf("parse server_url: %w", err)
	}

	switch parsed.Scheme {
	case "https", "wss":
		parsed.Scheme = "wss"
	case "http", "ws", "":
		parsed.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported server_url scheme %q", parsed.Scheme)
	}

	parsed.Path = strings.TrimRight(parsed.Path, "/") + "/ws/meeting/" + url.PathEscape(meetingID)
	return parsed.String(), nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv(EnvPrefix + "USER_NAME"); v != "" {
		cfg.UserName = v
	}
	if v := os.Getenv(EnvPrefix + "MEETING_DURATION_MINUTES"); v != "" {
		if minutes, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && minutes > 0 {
			cfg.MeetingDurationMinutes = minutes
		}
	}
	if v := os.Getenv(EnvPrefix + "AGENDA_ITEMS"); v != "" {
		cfg.AgendaItems = parseAgendaItems(v)
	}
	if v := os.Getenv(EnvPrefix + "SCREEN_DISPLAY"); v != "" {
		if display, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && display >= 0 {
			cfg.ScreenDisplay = display
		}
	}
	if v := os.Getenv(EnvPrefix + "EXPORT_DIR"); v != "" {
		cfg.ExportDir = v
	}
	if v := os.Getenv(EnvPrefix + "DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvPrefix + "GDRIVE_FOLDER_ID"); v != "" {
		cfg.GDriveFolderID = v
	}
}

func validate(cfg *Config) []string {
	var warnings []string

	if _, err := url.Parse(cfg.ServerURL); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid server_url %q, using default %q.", cfg.ServerURL, defaults().ServerURL))
		cfg.ServerURL = defaults().ServerURL
	}
	if cfg.MeetingDurationMinutes <= 0 {
		warnings = append(warnings, fmt.Sprintf("Invalid meeting_duration_minutes %d, using default 30.", cfg.MeetingDurationMinutes))
		cfg.MeetingDurationMinutes = 30
	}
	if cfg.GDriveFolderID != "" && cfg.GoogleCredentialsFile == "" {
		warnings = append(warnings, "Drive folder configured without credentials; summary upload is disabled. Set "+EnvPrefix+"GOOGLE_CREDENTIALS_FILE.")
	}

	return warnings
}

func parseAgendaItems(raw string) []string {
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	return result
}
