// Package completion holds the text-completion capability shared by the LLM clients.
package completion

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync/atomic"
)

// ErrStreamConsumed is yielded when an answer stream is ranged over a second time.
var ErrStreamConsumed = errors.New("completion stream already consumed")

// SingleUse wraps seq so that only the first range over it reaches seq. Later
// ranges yield ErrStreamConsumed once and stop.
func SingleUse(seq iter.Seq2[string, error]) iter.Seq2[string, error] {
	var used atomic.Bool
	return func(yield func(string, error) bool) {
		if used.Swap(true) {
			yield("", ErrStreamConsumed)
			return
		}
		seq(yield)
	}
}

// Collect drains seq and concatenates its chunks. It stops at the first error
// and returns what was received up to that point.
func Collect(seq iter.Seq2[string, error]) (string, error) {
	var sb strings.Builder
	for chunk, err := range seq {
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(chunk)
	}
	return sb.String(), nil
}

// None is a completer that never produces text. It backs retrieval-only mode.
type None struct{}

func (None) Name() string { return "none" }

func (None) Complete(context.Context, string) (iter.Seq2[string, error], error) {
	return SingleUse(func(func(string, error) bool) {}), nil
}
