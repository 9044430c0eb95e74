package processors

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"transcriptSummarize/core"
)

// PromptVersion participates in the cache fingerprint so prompt changes
// invalidate memoized results.
const PromptVersion = "v2"

// parseRetryLimit is how many stricter "return only JSON" re-asks are made
// before surfacing invalid_response.
const parseRetryLimit = 2

// Summarizer turns one transcript chunk into a structured summary, and
// integrates per-chunk summaries into one executive summary.
type Summarizer interface {
	SummarizeChunk(ctx context.Context, chunk core.TranscriptChunk, language string) (*core.SummaryData, error)
	Synthesize(ctx context.Context, chunkSummaries []string, language string) (string, error)
}

// SummarizerConfig selects and tunes the model provider.
type SummarizerConfig struct {
	Provider      string // "openai" or "mock"
	APIKey        string
	BaseURL       string
	Model         string
	Temperature   float32
	MaxTokens     int
	Timeout       time.Duration
	PromptVersion string
}

// chatCompleter is the slice of the OpenAI client the summarizer needs.
// *openai.Client satisfies it; tests inject fakes.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewSummarizer creates a summarizer for the configured provider.
func NewSummarizer(cfg SummarizerConfig, cache core.ResultCache, retry RetryPolicy, log *logrus.Logger) Summarizer {
	if cfg.PromptVersion == "" {
		cfg.PromptVersion = PromptVersion
	}
	switch cfg.Provider {
	case "mock":
		return &MockSummarizer{}
	default:
		clientConfig := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = cfg.BaseURL
		}
		return &LLMSummarizer{
			cli:   openai.NewClientWithConfig(clientConfig),
			cfg:   cfg,
			cache: cache,
			retry: retry,
			log:   log,
		}
	}
}

// LLMSummarizer calls a chat-completion model with strict JSON output and
// memoizes every successful response.
type LLMSummarizer struct {
	cli   chatCompleter
	cfg   SummarizerConfig
	cache core.ResultCache
	retry RetryPolicy
	log   *logrus.Logger
}

// SummarizeChunk summarizes one chunk in the target language. The cache is
// consulted first; a hit is indistinguishable from a fresh call except by
// latency.
func (l *LLMSummarizer) SummarizeChunk(ctx context.Context, chunk core.TranscriptChunk, language string) (*core.SummaryData, error) {
	text := chunk.Text()
	if text == "" {
		return emptySummary(language), nil
	}

	key := core.CacheKey(text, language, l.cfg.Model, l.cfg.PromptVersion)
	if cached, ok := l.cache.Get(ctx, key); ok {
		l.log.WithFields(logrus.Fields{"chunk_index": chunk.Index, "language": language}).Debug("chunk summary cache hit")
		return cached, nil
	}

	prompt := chunkPrompt(chunk, language)
	var result *core.SummaryData
	var lastRaw string
	for attempt := 0; attempt <= parseRetryLimit; attempt++ {
		raw, err := l.complete(ctx, prompt)
		if err != nil {
			return nil, err
		}
		lastRaw = raw
		data, perr := parseSummaryJSON(raw)
		if perr == nil {
			result = data
			break
		}
		l.log.WithFields(logrus.Fields{
			"chunk_index": chunk.Index,
			"attempt":     attempt + 1,
		}).WithError(perr).Warn("unparseable model response, re-asking for strict JSON")
		prompt = strictJSONPrompt(chunk, language)
	}
	if result == nil {
		return nil, &core.SummarizationError{
			Reason:  core.ReasonInvalidResponse,
			Message: fmt.Sprintf("model did not return valid summary JSON after %d attempts: %s", parseRetryLimit+1, truncate(lastRaw, 200)),
		}
	}

	l.cache.Put(ctx, key, result)
	return result, nil
}

// Synthesize integrates the per-chunk summaries into one coherent executive
// summary, under the same cache and retry policy as chunk summarization.
func (l *LLMSummarizer) Synthesize(ctx context.Context, chunkSummaries []string, language string) (string, error) {
	joined := strings.Join(chunkSummaries, "\n")
	key := core.CacheKey(joined, language, l.cfg.Model, l.cfg.PromptVersion+":synthesis")
	if cached, ok := l.cache.Get(ctx, key); ok {
		return cached.Summary, nil
	}

	raw, err := l.complete(ctx, synthesisPrompt(chunkSummaries, language))
	if err != nil {
		return "", err
	}
	if raw == "" {
		return "", &core.SummarizationError{Reason: core.ReasonInvalidResponse, Message: "synthesis returned empty text"}
	}

	l.cache.Put(ctx, key, &core.SummaryData{Summary: raw})
	return raw, nil
}

// complete issues one chat completion under the retry policy. Cancellation is
// honored between attempts only: a call already in flight runs to completion
// on its own timeout so its cost is not wasted.
func (l *LLMSummarizer) complete(ctx context.Context, prompt string) (string, error) {
	var content string
	err := l.retry.Do(ctx, l.log, "chat_completion", func() error {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.cfg.Timeout)
		defer cancel()
		resp, err := l.cli.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model: l.cfg.Model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			MaxTokens:   l.cfg.MaxTokens,
			Temperature: l.cfg.Temperature,
		})
		if err != nil {
			return core.ClassifyProviderError(err)
		}
		if len(resp.Choices) == 0 {
			return &core.SummarizationError{Reason: core.ReasonInvalidResponse, Message: "provider returned no choices"}
		}
		content = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	})
	return content, err
}

// parseSummaryJSON validates the model output against the summary schema.
// The raw text is retained in the error for diagnostics.
func parseSummaryJSON(raw string) (*core.SummaryData, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response: %s", truncate(raw, 120))
	}

	var data core.SummaryData
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &data); err != nil {
		return nil, fmt.Errorf("invalid summary JSON: %w (raw: %s)", err, truncate(raw, 120))
	}
	if strings.TrimSpace(data.Summary) == "" {
		return nil, fmt.Errorf("summary field missing or empty (raw: %s)", truncate(raw, 120))
	}
	return &data, nil
}

func emptySummary(language string) *core.SummaryData {
	return &core.SummaryData{
		Summary:     fmt.Sprintf("No transcript content was available to summarize in %s.", core.LanguageName(language)),
		KeyInsights: []string{},
		Frameworks:  []core.Framework{},
		KeyMoments:  []string{},
	}
}

// ========== Prompt templates ==========

func chunkPrompt(chunk core.TranscriptChunk, language string) string {
	position := fmt.Sprintf("part %d of %d, covering %s to %s of the video",
		chunk.Index+1, chunk.Of, formatTime(chunk.StartTime), formatTime(chunk.EndTime))
	if chunk.IsFinal && chunk.Of > 1 {
		position += " (the final part)"
	}

	return fmt.Sprintf(`You are analyzing %s. Write every output value in %s.

Transcript:
%s

Provide a JSON object with the following sections:
- "summary": a 2-3 paragraph summary of the core message of this part
- "key_insights": the most important insights as detailed strings
- "frameworks": actionable frameworks or methods mentioned, each as {"name", "description", "steps"}
- "key_moments": chronological list of important events or topics discussed

Respond only with the JSON, no additional text.`, position, core.LanguageName(language), chunk.Text())
}

func strictJSONPrompt(chunk core.TranscriptChunk, language string) string {
	return "Your previous reply was not a valid JSON object. " + chunkPrompt(chunk, language) +
		"\n\nReturn only JSON. Do not wrap it in markdown fences or add commentary."
}

func synthesisPrompt(chunkSummaries []string, language string) string {
	var parts strings.Builder
	for i, s := range chunkSummaries {
		if i > 0 {
			parts.WriteString("\n")
		}
		fmt.Fprintf(&parts, "--- Part %d ---\n%s\n", i+1, s)
	}

	return fmt.Sprintf(`The following are summaries of consecutive parts of one video, in order.

%s
Integrate them into a single coherent 2-3 paragraph executive summary of the whole video, in %s. Do not refer to the parts themselves. Respond with the summary text only.`, parts.String(), core.LanguageName(language))
}

// ========== Mock implementation ==========

// MockSummarizer is a deterministic provider used in tests and when no API
// key is configured.
type MockSummarizer struct{}

// SummarizeChunk builds a summary from the leading words of the chunk.
func (m *MockSummarizer) SummarizeChunk(_ context.Context, chunk core.TranscriptChunk, language string) (*core.SummaryData, error) {
	text := chunk.Text()
	if text == "" {
		return emptySummary(language), nil
	}
	words := strings.Fields(text)
	lead := strings.Join(words[:minInt(20, len(words))], " ")
	return &core.SummaryData{
		Summary:     fmt.Sprintf("[mock %s] Part %d of %d: %s", language, chunk.Index+1, chunk.Of, lead),
		KeyInsights: []string{lead},
		Frameworks:  []core.Framework{},
		KeyMoments:  []string{fmt.Sprintf("%s-%s: %s", formatTime(chunk.StartTime), formatTime(chunk.EndTime), strings.Join(words[:minInt(6, len(words))], " "))},
	}, nil
}

// Synthesize concatenates the part summaries.
func (m *MockSummarizer) Synthesize(_ context.Context, chunkSummaries []string, language string) (string, error) {
	return fmt.Sprintf("[mock %s] %s", language, strings.Join(chunkSummaries, " ")), nil
}

// ========== Helpers ==========

func formatTime(seconds float64) string {
	minutes := int(seconds) / 60
	secs := int(seconds) % 60
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
