package processors

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"transcriptSummarize/core"
)

// failingSynthesizer fails every call; used to exercise merge error handling.
type failingSynthesizer struct{}

func (f *failingSynthesizer) SummarizeChunk(context.Context, core.TranscriptChunk, string) (*core.SummaryData, error) {
	return nil, errors.New("unused")
}

func (f *failingSynthesizer) Synthesize(context.Context, []string, string) (string, error) {
	return "", &core.SummarizationError{Reason: core.ReasonProviderError, Message: "synthesis exhausted"}
}

func summaryWith(summary string, insights ...string) *core.SummaryData {
	return &core.SummaryData{Summary: summary, KeyInsights: insights}
}

func TestMergeSingleResultUnchanged(t *testing.T) {
	merger := NewMergeEngine(0, &MockSummarizer{}, testLogger())
	in := summaryWith("only part", "one insight")

	out, err := merger.Merge(context.Background(), []*core.SummaryData{in}, "en")
	if err != nil {
		t.Fatalf("Merge returned error: %v", err)
	}
	if out != in {
		t.Error("single result should pass through unchanged")
	}
}

func TestMergeEmptyInput(t *testing.T) {
	merger := NewMergeEngine(0, &MockSummarizer{}, testLogger())

	_, err := merger.Merge(context.Background(), nil, "en")
	var me *core.MergeError
	if !errors.As(err, &me) {
		t.Fatalf("expected MergeError, got %v", err)
	}
}

func TestMergeDedupsRepeatedInsight(t *testing.T) {
	// The speaker repeats the same point verbatim in two chunks; near-identical
	// phrasing in a third.
	a := summaryWith("part one", "Consistency beats intensity every single time")
	b := summaryWith("part two", "Consistency beats intensity every single time")
	c := summaryWith("part three", "consistency beats intensity, every single time!")

	merger := NewMergeEngine(0, &MockSummarizer{}, testLogger())
	out, err := merger.Merge(context.Background(), []*core.SummaryData{a, b, c}, "en")
	if err != nil {
		t.Fatalf("Merge returned error: %v", err)
	}
	if len(out.KeyInsights) != 1 {
		t.Fatalf("expected 1 deduped insight, got %d: %v", len(out.KeyInsights), out.KeyInsights)
	}
	if out.KeyInsights[0] != a.KeyInsights[0] {
		t.Errorf("earliest occurrence should win, got %q", out.KeyInsights[0])
	}
}

func TestMergeKeepsDistinctInsights(t *testing.T) {
	a := summaryWith("part one", "Start with a tiny habit you cannot fail at")
	b := summaryWith("part two", "Track your progress in a visible place every day")

	merger := NewMergeEngine(0, &MockSummarizer{}, testLogger())
	out, err := merger.Merge(context.Background(), []*core.SummaryData{a, b}, "en")
	if err != nil {
		t.Fatalf("Merge returned error: %v", err)
	}
	if len(out.KeyInsights) != 2 {
		t.Errorf("distinct insights were merged: %v", out.KeyInsights)
	}
}

func TestMergeFrameworkDedup(t *testing.T) {
	a := &core.SummaryData{
		Summary: "part one",
		Frameworks: []core.Framework{
			{Name: "The 2-Minute Rule", Description: "start small", Steps: []string{"pick a habit"}},
		},
	}
	b := &core.SummaryData{
		Summary: "part two",
		Frameworks: []core.Framework{
			{Name: "the 2 minute rule", Description: "scaled down", Steps: []string{"pick a habit", "shrink it", "repeat daily"}},
			{Name: "Habit Stacking", Description: "anchor new habits", Steps: []string{"after X, do Y"}},
		},
	}

	merger := NewMergeEngine(0, &MockSummarizer{}, testLogger())
	out, err := merger.Merge(context.Background(), []*core.SummaryData{a, b}, "en")
	if err != nil {
		t.Fatalf("Merge returned error: %v", err)
	}
	if len(out.Frameworks) != 2 {
		t.Fatalf("expected 2 frameworks, got %d", len(out.Frameworks))
	}
	if len(out.Frameworks[0].Steps) != 3 {
		t.Errorf("richer duplicate should win, got steps %v", out.Frameworks[0].Steps)
	}
	if out.Frameworks[1].Name != "Habit Stacking" {
		t.Errorf("unexpected framework order: %v", out.Frameworks)
	}
}

func TestMergeDeterministic(t *testing.T) {
	input := []*core.SummaryData{
		summaryWith("part one", "insight alpha", "insight beta"),
		summaryWith("part two", "insight beta", "insight gamma"),
	}
	merger := NewMergeEngine(0, &MockSummarizer{}, testLogger())

	first, err := merger.Merge(context.Background(), input, "en")
	if err != nil {
		t.Fatalf("Merge returned error: %v", err)
	}
	second, err := merger.Merge(context.Background(), input, "en")
	if err != nil {
		t.Fatalf("Merge returned error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("merge is not deterministic:\n%+v\n%+v", first, second)
	}
}

func TestMergeSynthesisFailure(t *testing.T) {
	merger := NewMergeEngine(0, &failingSynthesizer{}, testLogger())

	_, err := merger.Merge(context.Background(), []*core.SummaryData{
		summaryWith("part one"), summaryWith("part two"),
	}, "en")
	var me *core.MergeError
	if !errors.As(err, &me) {
		t.Fatalf("expected MergeError, got %v", err)
	}
	if info := core.InfoFromError(err); info.Code != core.CodeMergeError {
		t.Errorf("error code = %s", info.Code)
	}
}

func TestJaccardThresholdIsConfigurable(t *testing.T) {
	a := "focus on systems not goals"
	b := "focus on systems and not on goals"

	strict := NewMergeEngine(0.99, &MockSummarizer{}, testLogger())
	if got := strict.dedupStrings([]string{a, b}); len(got) != 2 {
		t.Errorf("threshold 0.99 should keep both, got %v", got)
	}
	loose := NewMergeEngine(0.5, &MockSummarizer{}, testLogger())
	if got := loose.dedupStrings([]string{a, b}); len(got) != 1 {
		t.Errorf("threshold 0.5 should dedup, got %v", got)
	}
}

func TestNormalizeText(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"  Hello,   WORLD!  ", "hello world"},
		{"The 2-Minute Rule", "the 2 minute rule"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := normalizeText(tc.in); got != tc.want {
			t.Errorf("normalizeText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func ExampleMergeEngine_Merge() {
	merger := NewMergeEngine(0, &MockSummarizer{}, testLogger())
	out, _ := merger.Merge(context.Background(), []*core.SummaryData{
		{Summary: "first half"},
		{Summary: "second half"},
	}, "en")
	fmt.Println(out.Summary)
	// Output: [mock en] first half second half
}
