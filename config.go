package main

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPHost string `yaml:"http_host"`
	HTTPPort int    `yaml:"http_port"`

	LLMProvider         string `yaml:"llm_provider"`
	OllamaHost          string `yaml:"ollama_host"`
	OllamaRoutingModel  string `yaml:"ollama_routing_model"`
	OllamaEntityModel   string `yaml:"ollama_entity_model"`
	OllamaTaskModel     string `yaml:"ollama_task_model"`
	OllamaFallbackModel string `yaml:"ollama_fallback_model"`
	AnthropicAPIKey     string `yaml:"anthropic_api_key"`
	AnthropicModel      string `yaml:"anthropic_model"`
	LLMTimeoutSeconds   int    `yaml:"llm_timeout_seconds"`

	DBPath string `yaml:"db_path"`

	MainDomain         string  `yaml:"main_domain"`
	TaskDedupeMinRatio float64 `yaml:"task_dedupe_min_ratio"`

	SilentAcceptHours       int     `yaml:"silent_accept_hours"`
	RecalibrationWindowDays int     `yaml:"recalibration_window_days"`
	RecalibrationSchedule   string  `yaml:"recalibration_schedule"`
	TargetAskRate           float64 `yaml:"target_ask_rate"`
	TargetCorrectionRate    float64 `yaml:"target_correction_rate"`

	SlackBotToken         string `yaml:"slack_bot_token"`
	SlackOwnerID          string `yaml:"slack_owner_id"`
	QuestionNudgeSchedule string `yaml:"question_nudge_schedule"`

	Timezone string         `yaml:"timezone"`
	Location *time.Location
}

func LoadConfig() Config {
	var cfg Config

	// Load from config.yaml if it exists
	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	// Env vars override YAML values
	envOverride(&cfg.HTTPHost, "HTTP_HOST")
	envOverrideInt(&cfg.HTTPPort, "HTTP_PORT")
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.OllamaHost, "OLLAMA_HOST")
	envOverride(&cfg.OllamaRoutingModel, "OLLAMA_ROUTING_MODEL")
	envOverride(&cfg.OllamaEntityModel, "OLLAMA_ENTITY_MODEL")
	envOverride(&cfg.OllamaTaskModel, "OLLAMA_TASK_MODEL")
	envOverride(&cfg.OllamaFallbackModel, "OLLAMA_FALLBACK_MODEL")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.AnthropicModel, "ANTHROPIC_MODEL")
	envOverrideInt(&cfg.LLMTimeoutSeconds, "LLM_TIMEOUT_SECONDS")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.MainDomain, "MAIN_DOMAIN")
	envOverrideFloat(&cfg.TaskDedupeMinRatio, "TASK_DEDUPE_MIN_RATIO")
	envOverrideInt(&cfg.SilentAcceptHours, "SILENT_ACCEPT_HOURS")
	envOverrideInt(&cfg.RecalibrationWindowDays, "RECALIBRATION_WINDOW_DAYS")
	envOverride(&cfg.RecalibrationSchedule, "RECALIBRATION_SCHEDULE")
	envOverrideFloat(&cfg.TargetAskRate, "TARGET_ASK_RATE")
	envOverrideFloat(&cfg.TargetCorrectionRate, "TARGET_CORRECTION_RATE")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackOwnerID, "SLACK_OWNER_ID")
	envOverride(&cfg.QuestionNudgeSchedule, "QUESTION_NUDGE_SCHEDULE")
	envOverride(&cfg.Timezone, "TIMEZONE")

	// Defaults
	if cfg.HTTPHost == "" {
		cfg.HTTPHost = "localhost"
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = 8077
	}
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = "ollama"
	}
	if cfg.OllamaHost == "" {
		cfg.OllamaHost = "http://localhost:11434"
	}
	if cfg.OllamaRoutingModel == "" {
		cfg.OllamaRoutingModel = "qwen2.5:14b"
	}
	if cfg.OllamaEntityModel == "" {
		cfg.OllamaEntityModel = "qwen2.5:32b"
	}
	if cfg.OllamaTaskModel == "" {
		cfg.OllamaTaskModel = "deepseek-r1:14b"
	}
	if cfg.OllamaFallbackModel == "" {
		cfg.OllamaFallbackModel = "llama3.1:8b"
	}
	if cfg.LLMTimeoutSeconds == 0 {
		cfg.LLMTimeoutSeconds = 120
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./brainbot.db"
	}
	if cfg.TaskDedupeMinRatio == 0 {
		cfg.TaskDedupeMinRatio = 0.75
	}
	if cfg.SilentAcceptHours == 0 {
		cfg.SilentAcceptHours = 24
	}
	if cfg.RecalibrationWindowDays == 0 {
		cfg.RecalibrationWindowDays = 7
	}
	if cfg.RecalibrationSchedule == "" {
		cfg.RecalibrationSchedule = "0 4 * * *"
	}
	if cfg.TargetAskRate == 0 {
		cfg.TargetAskRate = 0.25
	}
	if cfg.TargetCorrectionRate == 0 {
		cfg.TargetCorrectionRate = 0.10
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}

	// Validate
	switch cfg.LLMProvider {
	case "ollama":
		// no key needed for a local model
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			log.Fatalf("anthropic_api_key is required when llm_provider=anthropic")
		}
	default:
		log.Fatalf("llm_provider must be 'ollama' or 'anthropic', got '%s'", cfg.LLMProvider)
	}

	if cfg.LLMTimeoutSeconds < 1 {
		log.Fatalf("invalid llm_timeout_seconds '%d': must be >= 1", cfg.LLMTimeoutSeconds)
	}
	if cfg.TaskDedupeMinRatio < 0 || cfg.TaskDedupeMinRatio > 1 {
		log.Fatalf("invalid task_dedupe_min_ratio '%f': must be between 0 and 1", cfg.TaskDedupeMinRatio)
	}
	if cfg.TargetAskRate <= 0 || cfg.TargetAskRate >= 1 {
		log.Fatalf("invalid target_ask_rate '%f': must be between 0 and 1 exclusive", cfg.TargetAskRate)
	}
	if cfg.TargetCorrectionRate <= 0 || cfg.TargetCorrectionRate >= 1 {
		log.Fatalf("invalid target_correction_rate '%f': must be between 0 and 1 exclusive", cfg.TargetCorrectionRate)
	}
	if cfg.SilentAcceptHours < 1 {
		log.Fatalf("invalid silent_accept_hours '%d': must be >= 1", cfg.SilentAcceptHours)
	}
	if cfg.RecalibrationWindowDays < 1 {
		log.Fatalf("invalid recalibration_window_days '%d': must be >= 1", cfg.RecalibrationWindowDays)
	}
	if cfg.QuestionNudgeSchedule != "" && cfg.SlackBotToken == "" {
		log.Fatalf("slack_bot_token is required when question_nudge_schedule is set")
	}
	if cfg.SlackBotToken != "" && cfg.SlackOwnerID == "" {
		log.Fatalf("slack_owner_id is required when slack_bot_token is set")
	}

	if strings.EqualFold(cfg.Timezone, "Local") {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Fatalf("invalid timezone '%s': %v", cfg.Timezone, err)
		}
		cfg.Location = loc
	}

	return cfg
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideFloat(field *float64, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}
