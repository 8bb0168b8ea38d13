// Package report compares a document before and after rewriting.
package report

import (
	"fmt"
	"math"
	"unicode/utf8"
)

// Stats holds size and token figures for one rewritten document.
type Stats struct {
	OriginalBytes   int     `json:"original_bytes"`
	ProcessedBytes  int     `json:"processed_bytes"`
	OriginalTokens  int     `json:"original_tokens"`
	ProcessedTokens int     `json:"processed_tokens"`
	TokensSaved     int     `json:"tokens_saved"`
	SavingsPercent  float64 `json:"savings_percent"`
}

// EstimateTokens returns a fast token estimate: rune count / 3, at least 1
// for non-empty text. English runs about 4 chars per token and CJK about
// 1.5, so 3 sits between them and leans toward over-counting.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	if est := n / 3; est > 0 {
		return est
	}
	return 1
}

// Compare builds Stats for original and processed text. SavingsPercent is
// negative when the rewrite made the document larger and 0 when the
// original is empty.
func Compare(original, processed string) Stats {
	s := Stats{
		OriginalBytes:   len(original),
		ProcessedBytes:  len(processed),
		OriginalTokens:  EstimateTokens(original),
		ProcessedTokens: EstimateTokens(processed),
	}
	s.TokensSaved = s.OriginalTokens - s.ProcessedTokens
	if s.OriginalTokens > 0 {
		s.SavingsPercent = float64(s.TokensSaved) / float64(s.OriginalTokens) * 100
	}
	return s
}

// Summary describes the token change in one line.
func (s Stats) Summary() string {
	switch {
	case s.TokensSaved > 0:
		return fmt.Sprintf("Saved %d tokens (%.1f%% reduction)", s.TokensSaved, s.SavingsPercent)
	case s.TokensSaved < 0:
		return fmt.Sprintf("Increased by %d tokens (%.1f%% increase)", -s.TokensSaved, math.Abs(s.SavingsPercent))
	default:
		return "No change in token count"
	}
}

// Sizes describes byte and token counts before and after.
func (s Stats) Sizes() string {
	return fmt.Sprintf("Size: %d -> %d bytes | Tokens: %d -> %d",
		s.OriginalBytes, s.ProcessedBytes, s.OriginalTokens, s.ProcessedTokens)
}
