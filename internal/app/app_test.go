package app_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faqrag/internal/app"
	"faqrag/internal/completion"
	"faqrag/internal/config"
	"faqrag/internal/domain"
	"faqrag/internal/service"
)

const documents = `[{"course": "data-engineering-zoomcamp", "documents": [
  {"text": "Yes, you can still join after the start.", "section": "General", "question": "Can I still join the course?"}
]}, {"course": "mlops-zoomcamp", "documents": [
  {"text": "Yes.", "section": "General", "question": "Can I join late?"}
]}]`

func TestNewCompleter(t *testing.T) {
	c, err := app.NewCompleter(config.LLMConfig{Type: "none"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "none", c.Name())

	_, err = app.NewCompleter(config.LLMConfig{Type: "anthropic"}, nil)
	assert.Error(t, err)

	t.Setenv("FAQRAG_TEST_KEY", "")
	_, err = app.NewCompleter(config.LLMConfig{Type: "openai", APIKeyEnv: "FAQRAG_TEST_KEY"}, nil)
	assert.ErrorContains(t, err, "FAQRAG_TEST_KEY")
}

func TestDefaults(t *testing.T) {
	d := app.Defaults(config.SearchConfig{Limit: 5, Course: "de", Boost: map[string]float64{"question": 3}})
	assert.Equal(t, service.Defaults{
		Filter: map[string]string{"course": "de"},
		Boost:  map[string]float64{"question": 3},
		Limit:  5,
	}, d)
	assert.Nil(t, app.Defaults(config.SearchConfig{}).Filter)
}

func TestEndToEndRetrievalOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "documents.json")
	require.NoError(t, os.WriteFile(path, []byte(documents), 0o600))

	cfg := config.Default()
	cfg.Source.URLs = nil
	cfg.Source.Paths = []string{path}
	cfg.LLM = config.LLMConfig{Type: "none"}

	a, err := app.New(cfg, nil, nil)
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	summary, err := a.Service.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Indexed 2 FAQ entries from 2 courses", summary)

	ans, err := a.Service.Ask(ctx, "Can I still join?", domain.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, ans.Documents, 1)
	assert.Equal(t, "data-engineering-zoomcamp", ans.Documents[0]["course"])
	text, err := completion.Collect(ans.Chunks)
	require.NoError(t, err)
	assert.Empty(t, text)
}
