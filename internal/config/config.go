package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the harness configuration
type Config struct {
	Targets   Targets         `yaml:"targets"`
	Suite     SuiteConfig     `yaml:"suite"`
	Reporting ReportingConfig `yaml:"reporting"`
	OpenAPI   OpenAPIConfig   `yaml:"openapi"`
	Triage    TriageConfig    `yaml:"triage"`
}

// Targets holds the base URLs of the services under test
type Targets struct {
	APIBaseURL    string `yaml:"api_base_url"`
	SpellsBaseURL string `yaml:"spells_base_url"`
	StatusBaseURL string `yaml:"status_base_url"`
	SiteBaseURL   string `yaml:"site_base_url"`
	RealtimeURL   string `yaml:"realtime_url"`
}

// SuiteConfig holds execution configuration for the full check suite
type SuiteConfig struct {
	MaxWorkers       int `yaml:"max_workers"`
	HTTPTimeout      int `yaml:"http_timeout"`       // seconds, per HTTP call
	SweepTimeout     int `yaml:"sweep_timeout"`      // seconds, whole security sweep
	ConnectTimeout   int `yaml:"connect_timeout"`    // seconds, realtime connect
	HeartbeatTimeout int `yaml:"heartbeat_timeout"`  // seconds, heartbeat reply bound
	HoldDuration     int `yaml:"hold_duration"`      // seconds, session stability window
	ConcurrencyN     int `yaml:"concurrent_requests"`
	FanOutSessions   int `yaml:"fanout_sessions"`
}

// ReportingConfig holds reporting configuration
type ReportingConfig struct {
	OutputDir string `yaml:"output_dir"`
	LogDir    string `yaml:"log_dir"`
	Detailed  bool   `yaml:"detailed"`
}

// OpenAPIConfig controls optional contract import from a live OpenAPI document
type OpenAPIConfig struct {
	Enabled bool   `yaml:"enabled"`
	DocURL  string `yaml:"doc_url"`
}

// TriageConfig controls optional LLM triage of reviewable probe outcomes
type TriageConfig struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// LoadConfig loads the configuration from a YAML file and environment
// variables. A missing file is not an error; defaults are used instead.
func LoadConfig(path string) (*Config, error) {
	var config Config

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %v", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %v", err)
		}
	}

	// Environment overrides
	if v := os.Getenv("PRICEDB_API_URL"); v != "" {
		config.Targets.APIBaseURL = v
	}
	if v := os.Getenv("PRICEDB_SPELLS_URL"); v != "" {
		config.Targets.SpellsBaseURL = v
	}
	if v := os.Getenv("PRICEDB_STATUS_URL"); v != "" {
		config.Targets.StatusBaseURL = v
	}
	if v := os.Getenv("PRICEDB_SITE_URL"); v != "" {
		config.Targets.SiteBaseURL = v
	}
	if v := os.Getenv("PRICEDB_REALTIME_URL"); v != "" {
		config.Targets.RealtimeURL = v
	}
	if v := os.Getenv("TRIAGE_API_KEY"); v != "" {
		config.Triage.APIKey = v
	}

	// Set default values if not specified
	if config.Targets.APIBaseURL == "" {
		config.Targets.APIBaseURL = "https://pricedb.io/api"
	}
	if config.Targets.SpellsBaseURL == "" {
		config.Targets.SpellsBaseURL = "https://spells.pricedb.io/api"
	}
	if config.Targets.StatusBaseURL == "" {
		config.Targets.StatusBaseURL = "https://status.pricedb.io"
	}
	if config.Targets.SiteBaseURL == "" {
		config.Targets.SiteBaseURL = "https://pricedb.io"
	}
	if config.Targets.RealtimeURL == "" {
		config.Targets.RealtimeURL = "ws://ws.pricedb.io:5500"
	}
	if config.Suite.MaxWorkers == 0 {
		config.Suite.MaxWorkers = 5
	}
	if config.Suite.HTTPTimeout == 0 {
		config.Suite.HTTPTimeout = 30
	}
	if config.Suite.SweepTimeout == 0 {
		config.Suite.SweepTimeout = 300
	}
	if config.Suite.ConnectTimeout == 0 {
		config.Suite.ConnectTimeout = 10
	}
	if config.Suite.HeartbeatTimeout == 0 {
		config.Suite.HeartbeatTimeout = 5
	}
	if config.Suite.HoldDuration == 0 {
		config.Suite.HoldDuration = 3
	}
	if config.Suite.ConcurrencyN == 0 {
		config.Suite.ConcurrencyN = 10
	}
	if config.Suite.FanOutSessions == 0 {
		config.Suite.FanOutSessions = 3
	}
	if config.Reporting.OutputDir == "" {
		config.Reporting.OutputDir = filepath.Join("reports")
	}
	if config.Reporting.LogDir == "" {
		config.Reporting.LogDir = filepath.Join("logs")
	}
	if config.Triage.Model == "" {
		config.Triage.Model = "gpt-4"
	}
	if config.Triage.Temperature == 0 {
		config.Triage.Temperature = 0.2
	}
	if config.Triage.MaxTokens == 0 {
		config.Triage.MaxTokens = 1500
	}

	return &config, nil
}
