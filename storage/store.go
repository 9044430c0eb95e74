package storage

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"transcriptSummarize/core"
)

// SummaryStore persists unified summaries and answers similarity queries over
// their insights.
type SummaryStore interface {
	Upsert(ctx context.Context, videoID, language string, summary *core.SummaryData) (int, error)
	Search(ctx context.Context, query string, topK int) ([]InsightHit, error)
	Close(ctx context.Context) error
}

// InsightHit is one scored search result.
type InsightHit struct {
	VideoID  string  `json:"video_id"`
	Language string  `json:"language"`
	Insight  string  `json:"insight"`
	Score    float64 `json:"score"`
}

// Options selects and configures a store backend.
type Options struct {
	Backend          string // "memory", "pgvector", "milvus"
	PostgresURL      string
	MilvusAddr       string
	MilvusCollection string
	EmbeddingModel   string
	EmbeddingDim     int
}

// embedder is the slice of the OpenAI client the vector backends need.
type embedder interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// NewSummaryStore builds the configured backend, falling back to the memory
// store when a remote backend cannot be reached.
func NewSummaryStore(ctx context.Context, opts Options, oa *openai.Client, log *logrus.Logger) SummaryStore {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "pgvector":
		s, err := newPgSummaryStore(ctx, opts, oa)
		if err != nil {
			log.WithError(err).Warn("pgvector store unavailable, falling back to memory store")
			return NewMemorySummaryStore()
		}
		return s
	case "milvus":
		s, err := newMilvusSummaryStore(ctx, opts, oa)
		if err != nil {
			log.WithError(err).Warn("milvus store unavailable, falling back to memory store")
			return NewMemorySummaryStore()
		}
		return s
	default:
		return NewMemorySummaryStore()
	}
}

// ---------------- Memory implementation (kept for fallback) ----------------

type memoryDoc struct {
	videoID  string
	language string
	insight  string
	embed    map[string]float64 // term -> weight
}

// MemorySummaryStore indexes insights with L2-normalized term-weight vectors
// and cosine scoring. No external services required.
type MemorySummaryStore struct {
	mu   sync.RWMutex
	docs map[string][]memoryDoc // videoID|language -> docs
}

// NewMemorySummaryStore creates an empty in-process store.
func NewMemorySummaryStore() *MemorySummaryStore {
	return &MemorySummaryStore{docs: make(map[string][]memoryDoc)}
}

func (s *MemorySummaryStore) Upsert(_ context.Context, videoID, language string, summary *core.SummaryData) (int, error) {
	texts := indexableTexts(summary)
	docs := make([]memoryDoc, 0, len(texts))
	for _, text := range texts {
		docs = append(docs, memoryDoc{
			videoID:  videoID,
			language: language,
			insight:  text,
			embed:    embedTerms(strings.ToLower(text)),
		})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[videoID+"|"+language] = docs
	return len(docs), nil
}

func (s *MemorySummaryStore) Search(_ context.Context, query string, topK int) ([]InsightHit, error) {
	qv := embedTerms(strings.ToLower(query))
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []InsightHit
	for _, docs := range s.docs {
		for _, d := range docs {
			hits = append(hits, InsightHit{
				VideoID:  d.videoID,
				Language: d.language,
				Insight:  d.insight,
				Score:    cosine(qv, d.embed),
			})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if topK <= 0 {
		topK = 5
	}
	if topK > len(hits) {
		topK = len(hits)
	}
	return hits[:topK], nil
}

func (s *MemorySummaryStore) Close(context.Context) error { return nil }

// indexableTexts picks what gets indexed for one summary: its insights, or
// the executive summary when the model extracted none.
func indexableTexts(summary *core.SummaryData) []string {
	if summary == nil {
		return nil
	}
	if len(summary.KeyInsights) > 0 {
		return summary.KeyInsights
	}
	if strings.TrimSpace(summary.Summary) != "" {
		return []string{summary.Summary}
	}
	return nil
}

func embedTerms(text string) map[string]float64 {
	m := map[string]float64{}
	for _, tok := range strings.Fields(text) {
		m[tok]++
	}
	var sum float64
	for _, v := range m {
		sum += v * v
	}
	if sum == 0 {
		return m
	}
	norm := math.Sqrt(sum)
	for k, v := range m {
		m[k] = v / norm
	}
	return m
}

func cosine(a, b map[string]float64) float64 {
	var dot float64
	for k, va := range a {
		if vb, ok := b[k]; ok {
			dot += va * vb
		}
	}
	return dot
}

// embedText calls the embedding model for the vector backends.
func embedText(ctx context.Context, oa embedder, model, text string) ([]float32, error) {
	resp, err := oa.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(model),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding API failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return resp.Data[0].Embedding, nil
}
