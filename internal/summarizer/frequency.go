// Package summarizer condenses FAQ answers to their most relevant sentences.
package summarizer

import (
	"cmp"
	"math"
	"regexp"
	"slices"
	"strings"

	"faqrag/internal/index"
)

var sentencePattern = regexp.MustCompile(`(?m)[^.!?\n]+(?:[.!?]+|$)`)

// FrequencySummarizer ranks sentences by query overlap first and normalised word
// frequency second. It shares the index tokenizer, so stopwords never count.
type FrequencySummarizer struct{}

// NewFrequencySummarizer creates a frequency-based sentence ranker.
func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{}
}

// Sentences splits text into trimmed, non-empty sentences.
func Sentences(text string) []string {
	var out []string
	for _, s := range sentencePattern.FindAllString(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Excerpt keeps the maxSentences best sentences of text in their original order.
// Text that already fits, or a non-positive maxSentences, is returned trimmed.
func (s *FrequencySummarizer) Excerpt(text, query string, maxSentences int) string {
	sentences := Sentences(text)
	if maxSentences <= 0 || len(sentences) <= maxSentences {
		return strings.TrimSpace(text)
	}
	top := s.rank(sentences, query)[:maxSentences]
	slices.Sort(top)
	out := make([]string, len(top))
	for i, idx := range top {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " ")
}

// Best returns the single most relevant sentence of text, or "" if there is none.
func (s *FrequencySummarizer) Best(text, query string) string {
	sentences := Sentences(text)
	if len(sentences) == 0 {
		return ""
	}
	return sentences[s.rank(sentences, query)[0]]
}

// rank returns sentence positions ordered best first; ties keep text order.
func (s *FrequencySummarizer) rank(sentences []string, query string) []int {
	tokens := make([][]string, len(sentences))
	freq := map[string]float64{}
	for i, sent := range sentences {
		tokens[i] = index.Tokenize(sent)
		for _, tok := range tokens[i] {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	wanted := map[string]struct{}{}
	for _, tok := range index.Tokenize(query) {
		wanted[tok] = struct{}{}
	}

	type scored struct {
		idx     int
		overlap int
		score   float64
	}
	scores := make([]scored, len(sentences))
	for i, toks := range tokens {
		seen := map[string]struct{}{}
		sc := 0.0
		for _, tok := range toks {
			sc += freq[tok]
			if _, ok := wanted[tok]; ok {
				seen[tok] = struct{}{}
			}
		}
		// length normalisation keeps long sentences from winning on volume
		if l := float64(len(toks)); l > 0 {
			sc /= math.Sqrt(l)
		}
		scores[i] = scored{idx: i, overlap: len(seen), score: sc}
	}
	slices.SortStableFunc(scores, func(a, b scored) int {
		if c := cmp.Compare(b.overlap, a.overlap); c != 0 {
			return c
		}
		return cmp.Compare(b.score, a.score)
	})
	out := make([]int, len(scores))
	for i, sc := range scores {
		out[i] = sc.idx
	}
	return out
}
