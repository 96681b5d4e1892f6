package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/gymvoice/internal/config"
)

type envConfig struct {
	Env                        string `env:"ENV" envDefault:"production"`
	DiscordToken               string `env:"DISCORD_TOKEN,required"`
	DiscordGuildID             string `env:"DISCORD_GUILD_ID,required"`
	GeminiAPIKey               string `env:"GEMINI_API_KEY"`
	GeminiParseModel           string `env:"GEMINI_PARSE_MODEL" envDefault:"gemini-2.5-flash"`
	GeminiAnalysisModel        string `env:"GEMINI_ANALYSIS_MODEL" envDefault:"gemini-2.5-flash"`
	GeminiVisionModel          string `env:"GEMINI_VISION_MODEL" envDefault:"gemini-3-pro-preview"`
	GeminiChatModel            string `env:"GEMINI_CHAT_MODEL" envDefault:"gemini-3-pro-preview"`
	ModelTimeoutSec            int    `env:"MODEL_TIMEOUT_SEC" envDefault:"60"`
	GoogleCloudProjectID       string `env:"GOOGLE_CLOUD_PROJECT_ID"`
	GoogleCloudCredentialsJSON string `env:"GOOGLE_CLOUD_CREDENTIALS_JSON"`
	GoogleCloudLocation        string `env:"GOOGLE_CLOUD_LOCATION" envDefault:"us-central1"`
	GoogleCloudSpeechLocation  string `env:"GOOGLE_CLOUD_SPEECH_LOCATION" envDefault:"us"`
	GoogleCloudSpeechModel     string `env:"GOOGLE_CLOUD_SPEECH_MODEL" envDefault:"chirp_3"`
	SpeechLanguage             string `env:"SPEECH_LANGUAGE" envDefault:"en-US"`
	HistoryDriver              string `env:"HISTORY_DRIVER" envDefault:"sqlite"`
	DatabaseURL                string `env:"DATABASE_URL"`
	SQLitePath                 string `env:"SQLITE_PATH" envDefault:"gymvoice.db"`
	ReportTimezone             string `env:"REPORT_TIMEZONE" envDefault:"UTC"`
	ReportWebhookURL           string `env:"REPORT_WEBHOOK_URL"`
	SuccessDisplayMS           int    `env:"SUCCESS_DISPLAY_MS" envDefault:"1500"`
	ErrorDisplayMS             int    `env:"ERROR_DISPLAY_MS" envDefault:"3000"`
	MCPAddr                    string `env:"MCP_ADDR"`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		DiscordToken:               raw.DiscordToken,
		DiscordGuildID:             raw.DiscordGuildID,
		GeminiAPIKey:               raw.GeminiAPIKey,
		GeminiParseModel:           raw.GeminiParseModel,
		GeminiAnalysisModel:        raw.GeminiAnalysisModel,
		GeminiVisionModel:          raw.GeminiVisionModel,
		GeminiChatModel:            raw.GeminiChatModel,
		ModelTimeoutSec:            raw.ModelTimeoutSec,
		GoogleCloudProjectID:       raw.GoogleCloudProjectID,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		GoogleCloudLocation:        raw.GoogleCloudLocation,
		GoogleCloudSpeechLocation:  raw.GoogleCloudSpeechLocation,
		GoogleCloudSpeechModel:     raw.GoogleCloudSpeechModel,
		SpeechLanguage:             raw.SpeechLanguage,
		HistoryDriver:              raw.HistoryDriver,
		DatabaseURL:                raw.DatabaseURL,
		SQLitePath:                 raw.SQLitePath,
		ReportTimezone:             raw.ReportTimezone,
		ReportWebhookURL:           raw.ReportWebhookURL,
		SuccessDisplayMS:           raw.SuccessDisplayMS,
		ErrorDisplayMS:             raw.ErrorDisplayMS,
		MCPAddr:                    raw.MCPAddr,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
