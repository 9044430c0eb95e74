package core

import "strings"

// ========== Transcript structures ==========

// Segment is a single timed line of a transcript, as delivered by the
// transcript source. Segments are never mutated or split.
type Segment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// End returns the end timestamp of the segment in seconds.
func (s Segment) End() float64 { return s.Start + s.Duration }

// TranscriptChunk is a bounded contiguous slice of a transcript sized to fit
// one model call. Index is 0-based; Of is the total chunk count of the
// transcript, backfilled once all chunks are known.
type TranscriptChunk struct {
	Index     int       `json:"chunk_index"`
	Of        int       `json:"chunk_count"`
	Segments  []Segment `json:"segments"`
	StartTime float64   `json:"start_time"`
	EndTime   float64   `json:"end_time"`
	IsFinal   bool      `json:"is_final"`
}

// Text joins the trimmed segment texts with single spaces.
func (c TranscriptChunk) Text() string {
	var b strings.Builder
	for _, seg := range c.Segments {
		t := strings.TrimSpace(seg.Text)
		if t == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(t)
	}
	return b.String()
}

// CharCount returns the character count of the joined chunk text.
func (c TranscriptChunk) CharCount() int { return len(c.Text()) }

// ========== Summary structures ==========

// Framework is an actionable method mentioned in the video, with its
// step-by-step breakdown.
type Framework struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Steps       []string `json:"steps"`
}

// SummaryData is the structured summary shape shared by per-chunk results and
// the merged unified summary. Summary is always non-empty; the slices may be
// empty when the model found nothing extractable.
type SummaryData struct {
	Summary     string      `json:"summary"`
	KeyInsights []string    `json:"key_insights"`
	Frameworks  []Framework `json:"frameworks"`
	KeyMoments  []string    `json:"key_moments"`
}

// ========== Batch structures ==========

// ItemInput is one video's processing unit within a batch request.
// Transcripts maps language code to the fetched segments; Unavailable maps
// language code to the reason the transcript source gave for that language.
type ItemInput struct {
	URL         string               `json:"url"`
	Transcripts map[string][]Segment `json:"transcripts,omitempty"`
	Unavailable map[string]string    `json:"unavailable,omitempty"`
}

// ItemResult is the per-item outcome. Status is "ok" when at least one
// requested language produced a unified summary.
type ItemResult struct {
	URL            string                  `json:"url"`
	Status         string                  `json:"status"`
	Summaries      map[string]*SummaryData `json:"summaries,omitempty"`
	Skipped        map[string]string       `json:"skipped_languages,omitempty"`
	LanguageErrors map[string]*ErrorInfo   `json:"language_errors,omitempty"`
	Error          *ErrorInfo              `json:"error,omitempty"`
}

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Aggregation summarizes a batch run. Total == len(results) and
// Succeeded+Failed == Total always hold.
type Aggregation struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// BatchResult is the frozen outcome of one batch run. Results preserve the
// input item order, not completion order.
type BatchResult struct {
	RequestID   string       `json:"request_id"`
	Results     []ItemResult `json:"results"`
	Aggregation Aggregation  `json:"aggregation"`
}

// ========== Language names ==========

var languageNames = map[string]string{
	"en": "English",
	"es": "Español",
	"fr": "Français",
	"de": "Deutsch",
	"it": "Italiano",
	"pt": "Português",
	"ru": "Русский",
	"zh": "中文",
	"ja": "日本語",
	"ko": "한국어",
}

// LanguageName returns the human-readable name for a language code, falling
// back to the code itself.
func LanguageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return code
}
