package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"faqrag/internal/domain"
	"faqrag/internal/index"
	"faqrag/internal/searcher/memory"
)

func TestSearcherLifecycle(t *testing.T) {
	ctx := context.Background()
	s, err := memory.NewSearcher([]string{"question", "text"}, []string{"course"})
	require.NoError(t, err)
	require.Equal(t, index.Unbuilt, s.State())

	res, err := s.Search(ctx, "docker", domain.SearchOptions{})
	require.NoError(t, err)
	require.Empty(t, res)

	require.NoError(t, s.Fit(ctx, []domain.Document{
		{"course": "de", "question": "Docker won't start", "text": "Restart the daemon."},
		{"course": "ml", "question": "Docker on Windows", "text": "Use WSL2."},
	}))
	require.Equal(t, index.Built, s.State())

	res, err = s.Search(ctx, "docker", domain.SearchOptions{Filter: map[string]string{"course": "ml"}, Limit: 5})
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, "Use WSL2.", res[0]["text"])
	require.NoError(t, s.Close())
}

func TestNewSearcherRejectsOverlap(t *testing.T) {
	_, err := memory.NewSearcher([]string{"course"}, []string{"course"})
	var cfgErr *index.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}
