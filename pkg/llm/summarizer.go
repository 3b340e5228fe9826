// Package llm produces summaries and topic tags for agenda items, meetings,
// and matters. Batch work streams back as chunks on a pull channel: the
// consumer writes each chunk to the database before the next one is produced,
// which is what makes a mid-batch crash recoverable.
package llm

import (
	"context"
	"errors"
)

// ErrUnavailable marks the summarizer as unusable (no API credentials).
// Jobs hitting it fail non-retryably.
var ErrUnavailable = errors.New("summarizer unavailable: no API key configured")

// ItemRequest is one agenda item to summarize.
type ItemRequest struct {
	ItemID    string
	Title     string
	Text      string
	PageCount int
	// UseSharedContext marks items whose documents include the meeting's
	// shared-context block.
	UseSharedContext bool
}

// ItemResult is the outcome for one item. A per-item failure sets Err and
// never fails its chunk.
type ItemResult struct {
	ItemID  string
	Summary string
	Topics  []string
	Err     error
}

// Chunk is one slice of batch results.
type Chunk struct {
	Results []ItemResult
}

// Summarizer is the LLM contract the processor depends on.
type Summarizer interface {
	// SubmitBatch summarizes items chunk by chunk. The returned channel is
	// unbuffered: the next chunk is not produced until the previous one is
	// consumed. The channel closes after the last chunk or when ctx ends.
	SubmitBatch(ctx context.Context, reqs []ItemRequest, sharedContext string) <-chan Chunk

	// Summarize runs a single prompt and returns (summary, topics).
	Summarize(ctx context.Context, prompt string) (string, []string, error)
}

// batchChunks drives the chunked pull sequence over a per-item call. Split
// out from the Anthropic client so the chunking discipline is testable
// without the API.
func batchChunks(ctx context.Context, reqs []ItemRequest, chunkSize int, call func(context.Context, ItemRequest) (string, []string, error)) <-chan Chunk {
	if chunkSize < 1 {
		chunkSize = 1
	}
	ch := make(chan Chunk)
	go func() {
		defer close(ch)
		for start := 0; start < len(reqs); start += chunkSize {
			end := start + chunkSize
			if end > len(reqs) {
				end = len(reqs)
			}

			results := make([]ItemResult, 0, end-start)
			for _, req := range reqs[start:end] {
				summary, topics, err := call(ctx, req)
				results = append(results, ItemResult{
					ItemID:  req.ItemID,
					Summary: summary,
					Topics:  topics,
					Err:     err,
				})
			}

			select {
			case ch <- Chunk{Results: results}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
