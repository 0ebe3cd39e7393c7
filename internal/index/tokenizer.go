package index

import (
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)

var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now", "i",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

// Tokenize lower-cases text and splits it into word tokens. Punctuation around a
// word is dropped and stopwords are removed. Indexing and querying both go through
// here so a term matches regardless of case or surrounding punctuation.
func Tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	if len(raw) == 0 {
		return nil
	}
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

type queryTerm struct {
	term  string
	count int
}

// queryTerms returns the distinct query tokens in first-seen order with their counts.
func queryTerms(query string) []queryTerm {
	tokens := Tokenize(query)
	pos := make(map[string]int, len(tokens))
	terms := make([]queryTerm, 0, len(tokens))
	for _, tok := range tokens {
		if i, ok := pos[tok]; ok {
			terms[i].count++
			continue
		}
		pos[tok] = len(terms)
		terms = append(terms, queryTerm{term: tok, count: 1})
	}
	return terms
}
