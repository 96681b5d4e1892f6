package config

import (
	"fmt"
	"time"
)

const (
	HistoryDriverSQLite   = "sqlite"
	HistoryDriverPostgres = "postgres"
)

type Config struct {
	Env                        string
	DiscordToken               string
	DiscordGuildID             string
	GeminiAPIKey               string
	GeminiParseModel           string
	GeminiAnalysisModel        string
	GeminiVisionModel          string
	GeminiChatModel            string
	ModelTimeoutSec            int
	GoogleCloudProjectID       string
	GoogleCloudCredentialsJSON string
	GoogleCloudLocation        string
	GoogleCloudSpeechLocation  string
	GoogleCloudSpeechModel     string
	SpeechLanguage             string
	HistoryDriver              string
	DatabaseURL                string
	SQLitePath                 string
	ReportTimezone             string
	ReportWebhookURL           string
	SuccessDisplayMS           int
	ErrorDisplayMS             int
	MCPAddr                    string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if c.GeminiAPIKey == "" && !c.HasGoogleCloud() {
		return fmt.Errorf("GEMINI_API_KEY or GOOGLE_CLOUD_PROJECT_ID with GOOGLE_CLOUD_CREDENTIALS_JSON is required")
	}
	switch c.HistoryDriver {
	case HistoryDriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when HISTORY_DRIVER=sqlite")
		}
	case HistoryDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when HISTORY_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("HISTORY_DRIVER must be %q or %q, got %q", HistoryDriverSQLite, HistoryDriverPostgres, c.HistoryDriver)
	}
	if c.ModelTimeoutSec <= 0 {
		return fmt.Errorf("MODEL_TIMEOUT_SEC must be positive, got %d", c.ModelTimeoutSec)
	}
	if c.SuccessDisplayMS <= 0 || c.ErrorDisplayMS <= 0 {
		return fmt.Errorf("SUCCESS_DISPLAY_MS and ERROR_DISPLAY_MS must be positive, got %d and %d", c.SuccessDisplayMS, c.ErrorDisplayMS)
	}
	if c.ReportTimezone == "" {
		return fmt.Errorf("REPORT_TIMEZONE is required")
	}
	if _, err := time.LoadLocation(c.ReportTimezone); err != nil {
		return fmt.Errorf("REPORT_TIMEZONE is invalid: %w", err)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "DISCORD_TOKEN", value: c.DiscordToken},
		{name: "DISCORD_GUILD_ID", value: c.DiscordGuildID},
		{name: "GEMINI_PARSE_MODEL", value: c.GeminiParseModel},
		{name: "GEMINI_ANALYSIS_MODEL", value: c.GeminiAnalysisModel},
		{name: "GEMINI_VISION_MODEL", value: c.GeminiVisionModel},
		{name: "GEMINI_CHAT_MODEL", value: c.GeminiChatModel},
		{name: "SPEECH_LANGUAGE", value: c.SpeechLanguage},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// HasGoogleCloud reports whether service account credentials are configured. Voice
// capture and the Vertex AI backend both depend on them.
func (c *Config) HasGoogleCloud() bool {
	return c.GoogleCloudProjectID != "" && c.GoogleCloudCredentialsJSON != ""
}

func (c *Config) ModelTimeout() time.Duration {
	return time.Duration(c.ModelTimeoutSec) * time.Second
}

func (c *Config) SuccessDisplay() time.Duration {
	return time.Duration(c.SuccessDisplayMS) * time.Millisecond
}

func (c *Config) ErrorDisplay() time.Duration {
	return time.Duration(c.ErrorDisplayMS) * time.Millisecond
}
