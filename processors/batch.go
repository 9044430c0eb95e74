package processors

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"transcriptSummarize/core"
)

// BatchProcessor runs the item orchestrator over many items under a bounded
// concurrency ceiling. One item's failure, including a panic, never aborts or
// corrupts the others.
type BatchProcessor struct {
	orchestrator *ItemOrchestrator
	concurrency  int
	log          *logrus.Logger
}

// NewBatchProcessor creates a batch processor. Concurrency below 1 means
// sequential processing, the default.
func NewBatchProcessor(orchestrator *ItemOrchestrator, concurrency int, log *logrus.Logger) *BatchProcessor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &BatchProcessor{orchestrator: orchestrator, concurrency: concurrency, log: log}
}

// Run processes all items and freezes the aggregate. Results keep the input
// order, not completion order.
func (b *BatchProcessor) Run(ctx context.Context, requestID string, items []core.ItemInput, languages []string) core.BatchResult {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	start := time.Now()
	b.log.WithFields(logrus.Fields{
		"request_id":  requestID,
		"items":       len(items),
		"concurrency": b.concurrency,
	}).Info("batch started")

	results := make([]core.ItemResult, len(items))
	sem := make(chan struct{}, b.concurrency)
	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, item core.ItemInput) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = b.processIsolated(ctx, item, languages)
		}(i, item)
	}
	wg.Wait()

	agg := core.Aggregation{Total: len(items)}
	for _, r := range results {
		if r.Status == core.StatusOK {
			agg.Succeeded++
		} else {
			agg.Failed++
		}
	}

	b.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"succeeded":  agg.Succeeded,
		"failed":     agg.Failed,
		"took":       time.Since(start).Round(time.Millisecond),
	}).Info("batch completed")

	return core.BatchResult{RequestID: requestID, Results: results, Aggregation: agg}
}

// processIsolated converts any internal fault into an error ItemResult so
// sibling items are unaffected.
func (b *BatchProcessor) processIsolated(ctx context.Context, item core.ItemInput, languages []string) (result core.ItemResult) {
	defer func() {
		if r := recover(); r != nil {
			b.log.WithField("url", item.URL).Errorf("item processing panicked: %v", r)
			result = core.ItemResult{
				URL:    item.URL,
				Status: core.StatusError,
				Error:  &core.ErrorInfo{Code: core.CodeProcessingError, Message: fmt.Sprintf("internal fault: %v", r)},
			}
		}
	}()
	return b.orchestrator.ProcessItem(ctx, item, languages)
}
