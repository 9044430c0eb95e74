package processors

import (
	"context"
	"testing"

	"transcriptSummarize/core"
)

func TestBatchRunAggregation(t *testing.T) {
	o := newTestOrchestrator(&MockSummarizer{}, nil)
	b := NewBatchProcessor(o, 2, testLogger())

	items := []core.ItemInput{
		itemWithTranscript("https://youtu.be/one", "en"),
		{URL: "https://youtu.be/two"}, // no transcripts: fails
		itemWithTranscript("https://youtu.be/three", "en"),
	}

	result := b.Run(context.Background(), "req-1", items, []string{"en"})
	if result.RequestID != "req-1" {
		t.Errorf("request id = %q", result.RequestID)
	}
	agg := result.Aggregation
	if agg.Total != 3 || agg.Succeeded != 2 || agg.Failed != 1 {
		t.Errorf("aggregation = %+v", agg)
	}
	if agg.Succeeded+agg.Failed != agg.Total {
		t.Errorf("aggregation does not add up: %+v", agg)
	}
}

func TestBatchRunPreservesInputOrder(t *testing.T) {
	o := newTestOrchestrator(&MockSummarizer{}, nil)
	b := NewBatchProcessor(o, 4, testLogger())

	urls := []string{
		"https://youtu.be/a", "https://youtu.be/b", "https://youtu.be/c",
		"https://youtu.be/d", "https://youtu.be/e",
	}
	items := make([]core.ItemInput, len(urls))
	for i, url := range urls {
		items[i] = itemWithTranscript(url, "en")
	}

	result := b.Run(context.Background(), "", items, []string{"en"})
	if result.RequestID == "" {
		t.Error("empty request id should be generated")
	}
	for i, r := range result.Results {
		if r.URL != urls[i] {
			t.Errorf("result %d has url %q, want %q", i, r.URL, urls[i])
		}
	}
}

func TestBatchRunIsolatesFailures(t *testing.T) {
	o := newTestOrchestrator(&perLanguageSummarizer{failFor: "en"}, nil)
	b := NewBatchProcessor(o, 1, testLogger())

	items := []core.ItemInput{
		itemWithTranscript("https://youtu.be/bad", "en"),
		{URL: "https://youtu.be/skipped"},
	}
	result := b.Run(context.Background(), "req-2", items, []string{"en"})

	if result.Results[0].Status != core.StatusError {
		t.Errorf("failing item not marked error: %+v", result.Results[0])
	}
	if result.Results[1].Status != core.StatusError {
		t.Errorf("transcript-less item not marked error: %+v", result.Results[1])
	}
	if result.Aggregation.Failed != 2 {
		t.Errorf("aggregation = %+v", result.Aggregation)
	}
}

func TestBatchRunRecoversItemPanic(t *testing.T) {
	o := newTestOrchestrator(&panickingSummarizer{}, nil)
	b := NewBatchProcessor(o, 2, testLogger())

	items := []core.ItemInput{
		itemWithTranscript("https://youtu.be/explodes", "en"),
	}
	result := b.Run(context.Background(), "req-3", items, []string{"en"})

	r := result.Results[0]
	if r.Status != core.StatusError {
		t.Fatalf("panicking item should be error, got %+v", r)
	}
	if result.Aggregation.Failed != 1 {
		t.Errorf("aggregation = %+v", result.Aggregation)
	}
}

func TestBatchRunEmpty(t *testing.T) {
	o := newTestOrchestrator(&MockSummarizer{}, nil)
	b := NewBatchProcessor(o, 2, testLogger())

	result := b.Run(context.Background(), "req-4", nil, []string{"en"})
	if result.Aggregation.Total != 0 || len(result.Results) != 0 {
		t.Errorf("empty batch should be an empty success: %+v", result)
	}
}

func TestNewBatchProcessorClampsConcurrency(t *testing.T) {
	b := NewBatchProcessor(newTestOrchestrator(&MockSummarizer{}, nil), 0, testLogger())
	if b.concurrency != 1 {
		t.Errorf("concurrency = %d, want 1", b.concurrency)
	}
}
