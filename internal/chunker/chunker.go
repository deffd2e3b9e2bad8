// Package chunker splits document text into overlapping fixed-size word windows.
package chunker

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidWindow is returned when the window/overlap configuration would
// produce a non-positive step.
var ErrInvalidWindow = errors.New("chunker: overlap must be smaller than window size")

// Split breaks text into windows of window words, advancing window-overlap
// words per step. The final window may be shorter than window. Boundaries are
// word-aligned; words are whatever strings.Fields yields. Empty or
// whitespace-only text yields no chunks.
func Split(text string, window, overlap int) ([]string, error) {
	if window <= 0 {
		return nil, fmt.Errorf("%w: window %d", ErrInvalidWindow, window)
	}
	if overlap < 0 || overlap >= window {
		return nil, fmt.Errorf("%w: window %d, overlap %d", ErrInvalidWindow, window, overlap)
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}

	step := window - overlap
	var chunks []string
	for i := 0; i < len(words); i += step {
		end := i + window
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[i:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks, nil
}
