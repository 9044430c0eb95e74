package processors

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"transcriptSummarize/core"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func makeSegments(texts ...string) []core.Segment {
	segments := make([]core.Segment, len(texts))
	for i, text := range texts {
		segments[i] = core.Segment{Text: text, Start: float64(i) * 10, Duration: 10}
	}
	return segments
}

func TestChunkCoversAllSegmentsInOrder(t *testing.T) {
	segments := makeSegments("alpha one", "bravo two", "charlie three", "delta four", "echo five")
	chunker := NewChunker(20, 0, testLogger())

	chunks, err := chunker.Chunk(segments)
	if err != nil {
		t.Fatalf("Chunk returned error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks for budget 20, got %d", len(chunks))
	}

	var joined []string
	for i, chunk := range chunks {
		if chunk.Index != i {
			t.Errorf("chunk %d has index %d", i, chunk.Index)
		}
		if chunk.Of != len(chunks) {
			t.Errorf("chunk %d has Of=%d, want %d", i, chunk.Of, len(chunks))
		}
		if chunk.IsFinal != (i == len(chunks)-1) {
			t.Errorf("chunk %d IsFinal=%v", i, chunk.IsFinal)
		}
		for _, seg := range chunk.Segments {
			joined = append(joined, seg.Text)
		}
	}
	want := []string{"alpha one", "bravo two", "charlie three", "delta four", "echo five"}
	if strings.Join(joined, "|") != strings.Join(want, "|") {
		t.Errorf("segments reordered or lost: got %v", joined)
	}
}

func TestChunkBudgetBoundary(t *testing.T) {
	// "aaaa" + " " + "bbbb" is exactly 9 chars; "cccc" would push it to 14.
	segments := makeSegments("aaaa", "bbbb", "cccc")
	chunker := NewChunker(9, 0, testLogger())

	chunks, err := chunker.Chunk(segments)
	if err != nil {
		t.Fatalf("Chunk returned error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if got := chunks[0].Text(); got != "aaaa bbbb" {
		t.Errorf("first chunk text = %q", got)
	}
	if got := chunks[1].Text(); got != "cccc" {
		t.Errorf("second chunk text = %q", got)
	}
}

func TestChunkOversizedSegmentGetsOwnChunk(t *testing.T) {
	big := strings.Repeat("x", 50)
	segments := makeSegments("short", big, "tail")
	chunker := NewChunker(10, 0, testLogger())

	chunks, err := chunker.Chunk(segments)
	if err != nil {
		t.Fatalf("Chunk returned error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[1].Text() != big {
		t.Errorf("oversized segment not isolated: %q", chunks[1].Text())
	}
	if chunks[1].CharCount() <= 10 {
		t.Errorf("expected oversized chunk, got %d chars", chunks[1].CharCount())
	}
}

func TestChunkEmptyTranscript(t *testing.T) {
	chunker := NewChunker(100, 0, testLogger())

	chunks, err := chunker.Chunk(nil)
	if err != nil {
		t.Fatalf("Chunk returned error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected a single empty chunk, got %d", len(chunks))
	}
	if !chunks[0].IsFinal || chunks[0].Of != 1 || chunks[0].Text() != "" {
		t.Errorf("unexpected empty chunk: %+v", chunks[0])
	}
}

func TestChunkRejectsInvalidBudget(t *testing.T) {
	chunker := NewChunker(0, 0, testLogger())

	_, err := chunker.Chunk(makeSegments("anything"))
	var ce *core.ChunkingError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ChunkingError, got %v", err)
	}
}

func TestChunkCeilingFoldsTail(t *testing.T) {
	segments := makeSegments("aaaa", "bbbb", "cccc", "dddd", "eeee")
	chunker := NewChunker(4, 2, testLogger())

	chunks, err := chunker.Chunk(segments)
	if err != nil {
		t.Fatalf("Chunk returned error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks under ceiling, got %d", len(chunks))
	}
	if !chunks[1].IsFinal {
		t.Error("last chunk not marked final")
	}

	total := 0
	for _, chunk := range chunks {
		total += len(chunk.Segments)
	}
	if total != len(segments) {
		t.Errorf("folding dropped segments: kept %d of %d", total, len(segments))
	}
}

func TestChunkTimestamps(t *testing.T) {
	segments := []core.Segment{
		{Text: "one", Start: 0, Duration: 5},
		{Text: "two", Start: 5, Duration: 7},
	}
	chunker := NewChunker(100, 0, testLogger())

	chunks, err := chunker.Chunk(segments)
	if err != nil {
		t.Fatalf("Chunk returned error: %v", err)
	}
	if chunks[0].StartTime != 0 || chunks[0].EndTime != 12 {
		t.Errorf("chunk spans %.1f-%.1f, want 0.0-12.0", chunks[0].StartTime, chunks[0].EndTime)
	}
}

func TestStats(t *testing.T) {
	segments := makeSegments("aaaa", "bbbb", "cccc")
	chunker := NewChunker(9, 0, testLogger())
	chunks, err := chunker.Chunk(segments)
	if err != nil {
		t.Fatalf("Chunk returned error: %v", err)
	}

	stats := Stats(chunks)
	if stats.TotalChunks != 2 {
		t.Errorf("TotalChunks = %d", stats.TotalChunks)
	}
	if stats.TotalChars != len("aaaa bbbb")+len("cccc") {
		t.Errorf("TotalChars = %d", stats.TotalChars)
	}
	if stats.DurationSeconds != 30 {
		t.Errorf("DurationSeconds = %.1f", stats.DurationSeconds)
	}
	if got := Stats(nil); got != (ChunkStats{}) {
		t.Errorf("Stats(nil) = %+v", got)
	}
}
