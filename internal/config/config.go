// Package config collects every environment-driven setting into one
// explicit value that is handed to constructors. Nothing in the program
// closes over mutable shared configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values for meetsync.
type Config struct {
	// Vault
	VaultDir       string // root of the notes vault (required)
	MeetingsFolder string // meetings root inside the vault
	RulesFile      string // YAML routing rule table; missing file is fine

	// Routing / attendees
	DefaultMaxAttendees int
	ExcludeAttendees    []string // case-insensitive substrings

	// Scan
	ScanWindowDays int
	DryRun         bool

	// Enrichment dispatch
	Concurrency      int
	MinBatchInterval time.Duration
	WorkerTimeout    time.Duration
	Model            string
	AnthropicAPIKey  string

	// Google Calendar
	GoogleClientID     string
	GoogleClientSecret string
	GoogleCalendarIDs  []string

	// CalDAV (optional second calendar source)
	CalDAVEndpoint string
	CalDAVUsername string
	CalDAVPassword string
	CalDAVCalendar string

	// Webhook server
	Port         string
	Bind         string
	WebhookToken string

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables, applying defaults
// and validating what little must be present up front.
func Load() (*Config, error) {
	cfg := &Config{
		VaultDir:           os.Getenv("MEETSYNC_VAULT"),
		MeetingsFolder:     os.Getenv("MEETSYNC_FOLDER"),
		RulesFile:          os.Getenv("MEETSYNC_RULES"),
		ExcludeAttendees:   splitList(os.Getenv("MEETSYNC_EXCLUDE_ATTENDEES")),
		Model:              os.Getenv("MEETSYNC_MODEL"),
		AnthropicAPIKey:    os.Getenv("ANTHROPIC_API_KEY"),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleCalendarIDs:  splitList(os.Getenv("GOOGLE_CALENDAR_IDS")),
		CalDAVEndpoint:     os.Getenv("CALDAV_ENDPOINT"),
		CalDAVUsername:     os.Getenv("CALDAV_USERNAME"),
		CalDAVPassword:     os.Getenv("CALDAV_PASSWORD"),
		CalDAVCalendar:     os.Getenv("CALDAV_CALENDAR"),
		Port:               os.Getenv("PORT"),
		Bind:               os.Getenv("BIND"),
		WebhookToken:       os.Getenv("MEETSYNC_WEBHOOK_TOKEN"),
		LogLevel:           os.Getenv("LOG_LEVEL"),
	}

	if cfg.VaultDir == "" {
		return nil, fmt.Errorf("MEETSYNC_VAULT environment variable is required")
	}
	if cfg.MeetingsFolder == "" {
		cfg.MeetingsFolder = "Meetings"
	}
	if cfg.RulesFile == "" {
		cfg.RulesFile = "rules.yaml"
	}
	if len(cfg.GoogleCalendarIDs) == 0 {
		cfg.GoogleCalendarIDs = []string{"primary"}
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Bind == "" {
		cfg.Bind = "*"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	var err error
	if cfg.DefaultMaxAttendees, err = intEnv("MEETSYNC_MAX_ATTENDEES", 20); err != nil {
		return nil, err
	}
	if cfg.ScanWindowDays, err = intEnv("MEETSYNC_SCAN_DAYS", 1); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = intEnv("MEETSYNC_CONCURRENCY", 3); err != nil {
		return nil, err
	}

	batchMs, err := intEnv("MEETSYNC_BATCH_INTERVAL_MS", 1000)
	if err != nil {
		return nil, err
	}
	cfg.MinBatchInterval = time.Duration(batchMs) * time.Millisecond

	workerSec, err := intEnv("MEETSYNC_WORKER_TIMEOUT_SECONDS", 60)
	if err != nil {
		return nil, err
	}
	cfg.WorkerTimeout = time.Duration(workerSec) * time.Second

	return cfg, nil
}

func intEnv(name string, def int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
