package main

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faqrag/internal/completion"
	"faqrag/internal/domain"
	"faqrag/internal/service"
)

type stubService struct {
	asked []string
	err   error
}

func (s *stubService) Load(context.Context) (string, error) { return "", nil }

func (s *stubService) Search(context.Context, string, domain.SearchOptions) ([]domain.Document, error) {
	return nil, nil
}

func (s *stubService) Ask(_ context.Context, q string, _ domain.SearchOptions) (*domain.Answer, error) {
	s.asked = append(s.asked, q)
	if s.err != nil {
		return nil, s.err
	}
	var seq iter.Seq2[string, error] = func(yield func(string, error) bool) {
		_ = yield("Yes, ", nil) && yield("you can.", nil)
	}
	return &domain.Answer{Query: q, Documents: []domain.Document{{}}, Prompt: "PROMPT", Chunks: completion.SingleUse(seq)}, nil
}

func TestAnswerStreamsToWriter(t *testing.T) {
	var out bytes.Buffer
	err := answer(context.Background(), &out, &stubService{}, "Can I join?", domain.SearchOptions{Filter: map[string]string{"course": "de"}}, true)
	require.NoError(t, err)
	s := out.String()
	assert.Contains(t, s, "Searching for: Can I join?")
	assert.Contains(t, s, "Filtering by course: de")
	assert.Contains(t, s, "\nPROMPT\n")
	assert.True(t, strings.HasSuffix(s, "Yes, you can.\n"))
}

func TestAnswerNoResults(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, answer(context.Background(), &out, &stubService{err: service.ErrNoResults}, "x", domain.SearchOptions{}, false))
	assert.Contains(t, out.String(), "No relevant results found.")
}

func TestInteractiveStopsOnExitWords(t *testing.T) {
	for _, word := range []string{"exit", "QUIT", "q"} {
		svc := &stubService{}
		var out bytes.Buffer
		interactive(context.Background(), strings.NewReader("first\n\n"+word+"\nnever\n"), &out, svc, domain.SearchOptions{}, false)
		assert.Equal(t, []string{"first"}, svc.asked, word)
	}
}

func TestInteractiveReportsErrors(t *testing.T) {
	svc := &stubService{err: errors.New("missing API key")}
	var out bytes.Buffer
	interactive(context.Background(), strings.NewReader("docker\n"), &out, svc, domain.SearchOptions{}, false)
	assert.Contains(t, out.String(), "Error: missing API key")
}
