// Package sentiment scores ticket satisfaction for feed enrichment. The
// analyzer is failure-tolerant by contract: the feed falls back to
// DefaultScore whenever a batch call errors, so a flaky model never fails a
// page.
package sentiment

import "context"

// DefaultScore is the neutral satisfaction applied when analysis is
// unavailable or fails.
const DefaultScore = 100

// Input is one ticket to score.
type Input struct {
	ID    string
	Title string
	Body  string
}

// Analyzer computes satisfaction scores (0-100) for a batch of tickets. The
// result slice is positionally aligned with the input.
type Analyzer interface {
	AnalyzeBatch(ctx context.Context, inputs []Input) ([]int, error)
}

// Fixed is an Analyzer that returns the same score for every ticket, used
// when no model is configured.
type Fixed int

// AnalyzeBatch returns the fixed score for each input.
func (f Fixed) AnalyzeBatch(_ context.Context, inputs []Input) ([]int, error) {
	scores := make([]int, len(inputs))
	for i := range scores {
		scores[i] = int(f)
	}
	return scores, nil
}
