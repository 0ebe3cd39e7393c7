// Package prompt assembles the LLM prompt from a question and retrieved FAQ entries.
package prompt

import (
	"strings"
	"text/template"

	"faqrag/internal/domain"
)

// NoContextMessage is returned instead of a prompt when retrieval found nothing.
const NoContextMessage = "I couldn't find any relevant information to answer your question."

const defaultTemplate = `You are a helpful teaching assistant. Answer the QUESTION based on the CONTEXT from the FAQ database.
If the context doesn't contain relevant information, say that you don't know the answer.

QUESTION: {{.Question}}

CONTEXT:
{{range $i, $e := .Entries}}
--- Result {{inc $i}} ---
Course: {{or $e.Course "N/A"}}
{{- with $e.Section}}
Section: {{.}}{{end}}
{{- with $e.Question}}
Question: {{.}}{{end}}
{{- with $e.Answer}}
Answer: {{.}}{{end}}
{{end}}
Answer the question based on the context above. If the context doesn't contain relevant information, say that you don't know the answer.`

// Excerpter shortens an answer to the sentences most relevant to a query.
type Excerpter interface {
	Excerpt(text, query string, maxSentences int) string
}

type entry struct {
	Course   string
	Section  string
	Question string
	Answer   string
}

// Builder renders prompts. It is safe for concurrent use.
type Builder struct {
	tmpl         *template.Template
	excerpter    Excerpter
	maxSentences int
}

// Option customises a Builder.
type Option func(*Builder)

// WithExcerpts condenses every answer to at most n sentences using e.
// A non-positive n leaves answers untouched.
func WithExcerpts(e Excerpter, n int) Option {
	return func(b *Builder) {
		b.excerpter = e
		b.maxSentences = n
	}
}

// NewBuilder parses the prompt template.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		tmpl: template.Must(template.New("prompt").Funcs(template.FuncMap{
			"inc": func(i int) int { return i + 1 },
		}).Parse(defaultTemplate)),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Build renders the prompt for query over docs, in the given order.
func (b *Builder) Build(query string, docs []domain.Document) string {
	if len(docs) == 0 {
		return NoContextMessage
	}
	entries := make([]entry, len(docs))
	for i, d := range docs {
		answer := d["text"]
		if b.excerpter != nil && b.maxSentences > 0 {
			answer = b.excerpter.Excerpt(answer, query, b.maxSentences)
		}
		entries[i] = entry{
			Course:   d["course"],
			Section:  d["section"],
			Question: d["question"],
			Answer:   answer,
		}
	}

	var sb strings.Builder
	// the template only ranges over plain strings; Execute cannot fail here
	_ = b.tmpl.Execute(&sb, struct {
		Question string
		Entries  []entry
	}{Question: query, Entries: entries})
	return sb.String()
}
