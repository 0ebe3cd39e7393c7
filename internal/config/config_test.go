package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"faqrag/internal/config"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	require.Equal(t, []string{config.DefaultDocumentsURL}, cfg.Source.URLs)
	require.Equal(t, "memory", cfg.Index.Type)
	require.Equal(t, []string{"question", "text", "section"}, cfg.Index.TextFields)
	require.Equal(t, []string{"course"}, cfg.Index.KeywordFields)
	require.Equal(t, 5, cfg.Search.Limit)
	require.Equal(t, "data-engineering-zoomcamp", cfg.Search.Course)
	require.Equal(t, map[string]float64{"question": 3.0, "section": 0.5}, cfg.Search.Boost)
	require.Equal(t, "GROQ_API_KEY", cfg.LLM.APIKeyEnv)
	require.NotNil(t, cfg.LLM.Temperature)
	require.Equal(t, 0.7, *cfg.LLM.Temperature)
	require.Equal(t, 1024, cfg.LLM.MaxTokens)
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
source:
  paths: ["./documents.json"]
index:
  type: elasticsearch
  text_fields: [question, text]
search:
  limit: 3
  boost:
    question: 2
llm:
  type: none
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Empty(t, cfg.Source.URLs)
	require.Equal(t, []string{"./documents.json"}, cfg.Source.Paths)
	require.Equal(t, []string{"question", "text"}, cfg.Index.TextFields)
	require.NotNil(t, cfg.Index.Elasticsearch)
	require.Equal(t, "faq_index", cfg.Index.Elasticsearch.Index)
	require.Equal(t, []string{"http://127.0.0.1:9200"}, cfg.Index.Elasticsearch.Addresses)
	require.Equal(t, 3, cfg.Search.Limit)
	require.Equal(t, map[string]float64{"question": 2}, cfg.Search.Boost)
	require.Equal(t, "none", cfg.LLM.Type)
	require.Empty(t, cfg.LLM.BaseURL)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadKeepsZeroTemperature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  temperature: 0\n"), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.LLM.Temperature)
	require.Equal(t, 0.0, *cfg.LLM.Temperature)
	require.Equal(t, 0.0, cfg.LLM.SamplingTemperature())
	require.Equal(t, "GROQ_API_KEY", cfg.LLM.APIKeyEnv)

	require.Equal(t, config.DefaultTemperature, config.LLMConfig{}.SamplingTemperature())
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("index: [unterminated"), 0o600))
	_, err := config.Load(path)
	require.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := config.Default()
	cfg.Search.Course = "mlops-zoomcamp"
	require.NoError(t, config.Save(path, cfg))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "mlops-zoomcamp", loaded.Search.Course)
	require.Equal(t, cfg.Search.Boost, loaded.Search.Boost)
	require.Equal(t, cfg.LLM, loaded.LLM)
	require.Equal(t, cfg.Index.TextFields, loaded.Index.TextFields)
}

func TestLoadDefaultWritesUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	cfg, path, err := config.LoadDefault()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".config", "faqrag", "config.yaml"), path)
	require.Equal(t, config.Default(), cfg)
	_, err = os.Stat(path)
	require.NoError(t, err)
}
