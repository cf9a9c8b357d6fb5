package core

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// recordOverheadTokens approximates the structural cost (braces, commas,
// separators) each serialized record adds to a prompt.
const recordOverheadTokens = 4

// TokenCounter estimates the token cost of text and record sets before
// they are bound into an analysis step. Estimates are monotonically
// non-decreasing in input size: more records, or longer text, never
// yields a smaller estimate.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
	mu       sync.Mutex
}

var (
	sharedEncoding     *tiktoken.Tiktoken
	sharedEncodingOnce sync.Once
)

// NewTokenCounter builds a counter backed by the cl100k_base encoding.
// When the encoding cannot be loaded (offline environments), the counter
// falls back to a bytes/4 heuristic, which is also monotonic.
func NewTokenCounter() *TokenCounter {
	sharedEncodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			sharedEncoding = enc
		}
	})
	return &TokenCounter{encoding: sharedEncoding}
}

// Count returns the token count of a text fragment.
func (tc *TokenCounter) Count(text string) int {
	if tc == nil || tc.encoding == nil {
		return len(text)/4 + 1
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return len(tc.encoding.Encode(text, nil, nil))
}

// CountRecords estimates the token cost of a record set as it would
// appear serialized inside a prompt.
func (tc *TokenCounter) CountRecords(records []Record) int {
	total := 0
	for _, r := range records {
		raw, err := json.Marshal(r)
		if err != nil {
			raw = []byte(fmt.Sprintf("%v", r))
		}
		total += tc.Count(string(raw)) + recordOverheadTokens
	}
	return total
}

// TruncateRecords caps a record set to at most n rows, keeping the head
// of the provider's stable order. It never returns fewer than one row
// for a non-empty input.
func TruncateRecords(records []Record, n int) []Record {
	if n < 1 {
		n = 1
	}
	if len(records) <= n {
		return records
	}
	return records[:n]
}
