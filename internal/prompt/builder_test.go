package prompt_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"faqrag/internal/domain"
	"faqrag/internal/prompt"
	"faqrag/internal/summarizer"
)

func TestBuildNoDocuments(t *testing.T) {
	b := prompt.NewBuilder()
	assert.Equal(t, prompt.NoContextMessage, b.Build("anything", nil))
}

func TestBuildListsEntries(t *testing.T) {
	b := prompt.NewBuilder()
	got := b.Build("Can I still join?", []domain.Document{
		{"course": "data-engineering-zoomcamp", "section": "General", "question": "Can I join late?", "text": "Yes."},
		{"question": "Docker error", "text": "Restart it."},
	})

	assert.True(t, strings.HasPrefix(got, "You are a helpful teaching assistant."))
	assert.Contains(t, got, "QUESTION: Can I still join?\n")
	assert.Contains(t, got, "--- Result 1 ---\nCourse: data-engineering-zoomcamp\nSection: General\nQuestion: Can I join late?\nAnswer: Yes.\n")
	assert.Contains(t, got, "--- Result 2 ---\nCourse: N/A\nQuestion: Docker error\nAnswer: Restart it.\n")
	assert.Less(t, strings.Index(got, "Result 1"), strings.Index(got, "Result 2"))
	assert.True(t, strings.HasSuffix(got, "say that you don't know the answer."))
}

func TestBuildWithExcerpts(t *testing.T) {
	b := prompt.NewBuilder(prompt.WithExcerpts(summarizer.NewFrequencySummarizer(), 1))
	got := b.Build("certificate", []domain.Document{{
		"course": "de",
		"text":   "Homework is optional. The certificate needs a project.",
	}})
	assert.Contains(t, got, "Answer: The certificate needs a project.\n")
	assert.NotContains(t, got, "Homework is optional.")
}
