package processors

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"transcriptSummarize/core"
	"transcriptSummarize/storage"
)

// ItemOrchestrator drives "chunk -> summarize each chunk -> merge" for one
// video across the requested languages. Chunk summarization fans out under a
// bounded semaphore; the merge is the join point.
type ItemOrchestrator struct {
	chunker          *Chunker
	summarizer       Summarizer
	merger           *MergeEngine
	store            storage.SummaryStore // nil disables persistence
	chunkConcurrency int
	log              *logrus.Logger
}

// NewItemOrchestrator wires the per-item pipeline. chunkConcurrency bounds
// in-flight model calls within one language; values below 1 mean sequential.
func NewItemOrchestrator(chunker *Chunker, summarizer Summarizer, merger *MergeEngine, store storage.SummaryStore, chunkConcurrency int, log *logrus.Logger) *ItemOrchestrator {
	if chunkConcurrency < 1 {
		chunkConcurrency = 1
	}
	return &ItemOrchestrator{
		chunker:          chunker,
		summarizer:       summarizer,
		merger:           merger,
		store:            store,
		chunkConcurrency: chunkConcurrency,
		log:              log,
	}
}

// ProcessItem produces the per-item result. Languages without a transcript
// are recorded as skipped with the source's reason; a failed language is
// recorded as a language-scoped error without aborting its siblings. The item
// is ok as long as at least one requested language produced a summary.
func (o *ItemOrchestrator) ProcessItem(ctx context.Context, item core.ItemInput, languages []string) core.ItemResult {
	result := core.ItemResult{
		URL:            item.URL,
		Summaries:      make(map[string]*core.SummaryData),
		Skipped:        make(map[string]string),
		LanguageErrors: make(map[string]*core.ErrorInfo),
	}

	for _, lang := range languages {
		segments, ok := item.Transcripts[lang]
		if !ok {
			reason := item.Unavailable[lang]
			if reason == "" {
				reason = "transcript not available"
			}
			result.Skipped[lang] = reason
			o.log.WithFields(logrus.Fields{"url": item.URL, "language": lang, "reason": reason}).Info("language skipped")
			continue
		}

		summary, err := o.processLanguage(ctx, item.URL, lang, segments)
		if err != nil {
			result.LanguageErrors[lang] = core.InfoFromError(err)
			o.log.WithFields(logrus.Fields{"url": item.URL, "language": lang}).WithError(err).Warn("language summarization failed")
			continue
		}
		result.Summaries[lang] = summary
	}

	switch {
	case len(result.Summaries) > 0:
		result.Status = core.StatusOK
	case len(result.LanguageErrors) > 0:
		result.Status = core.StatusError
		result.Error = &core.ErrorInfo{Code: core.CodeProcessingError, Message: "no requested language produced a summary"}
	default:
		result.Status = core.StatusError
		result.Error = &core.ErrorInfo{Code: core.CodeSummarizationSkipped, Message: "no transcript available in any requested language"}
	}

	if len(result.Summaries) == 0 {
		result.Summaries = nil
	}
	if len(result.Skipped) == 0 {
		result.Skipped = nil
	}
	if len(result.LanguageErrors) == 0 {
		result.LanguageErrors = nil
	}
	return result
}

func (o *ItemOrchestrator) processLanguage(ctx context.Context, url, language string, segments []core.Segment) (*core.SummaryData, error) {
	chunks, err := o.chunker.Chunk(segments)
	if err != nil {
		return nil, err
	}
	stats := Stats(chunks)
	o.log.WithFields(logrus.Fields{
		"url":       url,
		"language":  language,
		"chunks":    stats.TotalChunks,
		"chars":     stats.TotalChars,
		"duration":  stats.DurationSeconds,
	}).Info("transcript chunked")

	chunkResults, err := o.summarizeChunks(ctx, chunks, language)
	if err != nil {
		return nil, err
	}

	unified, err := o.merger.Merge(ctx, chunkResults, language)
	if err != nil {
		return nil, err
	}

	if o.store != nil {
		if _, serr := o.store.Upsert(ctx, url, language, unified); serr != nil {
			// persistence is best effort; the summary is still returned
			o.log.WithFields(logrus.Fields{"url": url, "language": language}).WithError(serr).Warn("summary store upsert failed")
		}
	}
	return unified, nil
}

// summarizeChunks fans the per-chunk calls out under the semaphore.
// Cancellation is checked before each dispatch so no new model calls are
// issued once it is observed; in-flight calls complete.
func (o *ItemOrchestrator) summarizeChunks(ctx context.Context, chunks []core.TranscriptChunk, language string) ([]*core.SummaryData, error) {
	results := make([]*core.SummaryData, len(chunks))
	sem := make(chan struct{}, o.chunkConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, chunk core.TranscriptChunk) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				// a panic here would escape the item-level recover
				if r := recover(); r != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = fmt.Errorf("chunk %d summarization panicked: %v", i, r)
					}
					mu.Unlock()
				}
			}()
			data, err := o.summarizer.SummarizeChunk(ctx, chunk, language)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			results[i] = data
		}(i, chunk)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}
