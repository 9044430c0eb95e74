package processors

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"transcriptSummarize/core"
)

// Chunker splits a transcript into ordered chunks bounded by a character
// budget. Token budgets are approximated as characters; the transcript
// source's segment boundaries are the only split points, so a segment is
// never split internally.
type Chunker struct {
	MaxChars  int
	MaxChunks int // 0 means unbounded
	log       *logrus.Logger
}

// NewChunker creates a chunker with the given character budget per chunk and
// an optional ceiling on chunk count.
func NewChunker(maxChars, maxChunks int, log *logrus.Logger) *Chunker {
	return &Chunker{MaxChars: maxChars, MaxChunks: maxChunks, log: log}
}

// Chunk groups segments into chunks in chronological order. A chunk closes
// when the next segment would push it over the budget. A single segment that
// alone exceeds the budget becomes its own oversized chunk; that is a policy
// exception, not an error. An empty transcript yields one empty final chunk
// so downstream stages produce an explanatory empty summary instead of
// failing.
func (c *Chunker) Chunk(segments []core.Segment) ([]core.TranscriptChunk, error) {
	if c.MaxChars <= 0 {
		return nil, &core.ChunkingError{Message: fmt.Sprintf("max_chars_per_chunk must be positive, got %d", c.MaxChars)}
	}

	if len(segments) == 0 {
		return []core.TranscriptChunk{{
			Index:    0,
			Of:       1,
			Segments: []core.Segment{},
			IsFinal:  true,
		}}, nil
	}

	groups := c.groupSegments(segments)

	if c.MaxChunks > 0 && len(groups) > c.MaxChunks {
		// Fold the tail into the last permitted chunk rather than dropping
		// content. The final chunk runs over budget, which is logged below.
		c.log.WithFields(logrus.Fields{
			"chunks":     len(groups),
			"max_chunks": c.MaxChunks,
		}).Warn("chunk count exceeds ceiling, folding tail into final chunk")
		tail := groups[c.MaxChunks-1:]
		merged := make([]core.Segment, 0)
		for _, g := range tail {
			merged = append(merged, g...)
		}
		groups = append(groups[:c.MaxChunks-1], merged)
	}

	chunks := make([]core.TranscriptChunk, 0, len(groups))
	for i, group := range groups {
		chunk := core.TranscriptChunk{
			Index:     i,
			Of:        len(groups),
			Segments:  group,
			StartTime: group[0].Start,
			EndTime:   group[len(group)-1].End(),
			IsFinal:   i == len(groups)-1,
		}
		if chunk.CharCount() > c.MaxChars {
			c.log.WithFields(logrus.Fields{
				"chunk_index": i,
				"chars":       chunk.CharCount(),
				"budget":      c.MaxChars,
			}).Warn("oversized chunk emitted")
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// groupSegments accumulates segments into groups whose joined text stays
// within the budget. Character counting mirrors TranscriptChunk.Text: trimmed
// segment texts joined by single spaces.
func (c *Chunker) groupSegments(segments []core.Segment) [][]core.Segment {
	var groups [][]core.Segment
	var current []core.Segment
	currentChars := 0

	for _, seg := range segments {
		segChars := len(strings.TrimSpace(seg.Text))
		added := segChars
		if currentChars > 0 && segChars > 0 {
			added++ // joining space
		}
		if len(current) > 0 && currentChars+added > c.MaxChars {
			groups = append(groups, current)
			current = nil
			currentChars = 0
			added = segChars
		}
		current = append(current, seg)
		currentChars += added
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

// ChunkStats aggregates chunking output for logging and monitoring.
type ChunkStats struct {
	TotalChunks      int     `json:"total_chunks"`
	TotalChars       int     `json:"total_chars"`
	AvgCharsPerChunk int     `json:"avg_chars_per_chunk"`
	DurationSeconds  float64 `json:"duration_seconds"`
}

// Stats computes summary statistics over a chunk sequence.
func Stats(chunks []core.TranscriptChunk) ChunkStats {
	if len(chunks) == 0 {
		return ChunkStats{}
	}
	stats := ChunkStats{TotalChunks: len(chunks)}
	for _, chunk := range chunks {
		stats.TotalChars += chunk.CharCount()
	}
	stats.AvgCharsPerChunk = stats.TotalChars / len(chunks)
	stats.DurationSeconds = chunks[len(chunks)-1].EndTime - chunks[0].StartTime
	return stats
}
