package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultTemperature is the sampling temperature used when none is configured.
const DefaultTemperature = 0.7

// DefaultDocumentsURL is the DataTalksClub FAQ corpus.
const DefaultDocumentsURL = "https://github.com/DataTalksClub/llm-zoomcamp/blob/main/01-intro/documents.json?raw=1"

// SourceConfig lists where FAQ documents are loaded from.
type SourceConfig struct {
	URLs        []string `yaml:"urls"`
	Paths       []string `yaml:"paths"`
	TimeoutSecs int      `yaml:"timeout_secs"`
}

// ElasticsearchConfig contains connection details for an Elasticsearch cluster.
type ElasticsearchConfig struct {
	Addresses []string `yaml:"addresses"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	Index     string   `yaml:"index"`
}

// IndexConfig selects the search provider and its field layout.
type IndexConfig struct {
	Type          string               `yaml:"type"`
	TextFields    []string             `yaml:"text_fields"`
	KeywordFields []string             `yaml:"keyword_fields"`
	Elasticsearch *ElasticsearchConfig `yaml:"elasticsearch,omitempty"`
}

// SearchConfig holds the defaults applied to every query.
type SearchConfig struct {
	Limit  int                `yaml:"limit"`
	Course string             `yaml:"course"`
	Boost  map[string]float64 `yaml:"boost"`
}

// LLMConfig configures the OpenAI-compatible chat completion client.
type LLMConfig struct {
	Type      string `yaml:"type"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
	// Temperature is a pointer so an explicit 0 survives defaulting.
	Temperature *float64 `yaml:"temperature,omitempty"`
	MaxTokens   int      `yaml:"max_tokens"`
	TimeoutSecs int      `yaml:"timeout_secs"`
}

// SamplingTemperature returns the configured temperature or DefaultTemperature.
func (c LLMConfig) SamplingTemperature() float64 {
	if c.Temperature == nil {
		return DefaultTemperature
	}
	return *c.Temperature
}

// PromptConfig configures prompt assembly.
type PromptConfig struct {
	MaxAnswerSentences int `yaml:"max_answer_sentences"`
}

// APIConfig configures the HTTP server.
type APIConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Source SourceConfig `yaml:"source"`
	Index  IndexConfig  `yaml:"index"`
	Search SearchConfig `yaml:"search"`
	LLM    LLMConfig    `yaml:"llm"`
	Prompt PromptConfig `yaml:"prompt"`
	API    APIConfig    `yaml:"api"`
	Log    LogConfig    `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/faqrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/faqrag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "faqrag", "config.yaml"), nil
}

// Default returns the configuration used when no file is present.
func Default() *AppConfig {
	cfg := &AppConfig{
		Source: SourceConfig{URLs: []string{DefaultDocumentsURL}},
		Index:  IndexConfig{Type: "memory"},
		Search: SearchConfig{Course: "data-engineering-zoomcamp"},
		LLM:    LLMConfig{Type: "openai"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if len(cfg.Source.URLs) == 0 && len(cfg.Source.Paths) == 0 {
		cfg.Source.URLs = []string{DefaultDocumentsURL}
	}
	if cfg.Source.TimeoutSecs == 0 {
		cfg.Source.TimeoutSecs = 30
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "memory"
	}
	if len(cfg.Index.TextFields) == 0 {
		cfg.Index.TextFields = []string{"question", "text", "section"}
	}
	if len(cfg.Index.KeywordFields) == 0 {
		cfg.Index.KeywordFields = []string{"course"}
	}
	if cfg.Index.Type == "elasticsearch" {
		if cfg.Index.Elasticsearch == nil {
			cfg.Index.Elasticsearch = &ElasticsearchConfig{}
		}
		if len(cfg.Index.Elasticsearch.Addresses) == 0 {
			cfg.Index.Elasticsearch.Addresses = []string{"http://127.0.0.1:9200"}
		}
		if cfg.Index.Elasticsearch.Index == "" {
			cfg.Index.Elasticsearch.Index = "faq_index"
		}
	}
	if cfg.Search.Limit == 0 {
		cfg.Search.Limit = 5
	}
	if cfg.Search.Boost == nil {
		cfg.Search.Boost = map[string]float64{"question": 3.0, "section": 0.5}
	}
	if cfg.LLM.Type == "" {
		cfg.LLM.Type = "openai"
	}
	if cfg.LLM.Type == "openai" {
		if cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = "https://api.groq.com/openai/v1"
		}
		if cfg.LLM.APIKeyEnv == "" {
			cfg.LLM.APIKeyEnv = "GROQ_API_KEY"
		}
		if cfg.LLM.Model == "" {
			cfg.LLM.Model = "meta-llama/llama-4-scout-17b-16e-instruct"
		}
		if cfg.LLM.Temperature == nil {
			t := DefaultTemperature
			cfg.LLM.Temperature = &t
		}
		if cfg.LLM.MaxTokens == 0 {
			cfg.LLM.MaxTokens = 1024
		}
		if cfg.LLM.TimeoutSecs == 0 {
			cfg.LLM.TimeoutSecs = 60
		}
	}
	if cfg.API.Addr == "" {
		cfg.API.Addr = ":8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
