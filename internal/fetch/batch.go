package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/chartdeck/chartdeck/internal/deck"
	"github.com/chartdeck/chartdeck/internal/logging"
	"github.com/chartdeck/chartdeck/internal/metrics"
	"github.com/chartdeck/chartdeck/internal/protocol"
)

// FileFetcher fetches one file's payload.
type FileFetcher interface {
	FetchFile(ctx context.Context, fileName, folderName string) (json.RawMessage, error)
}

// Batcher fetches file batches concurrently with settle-all semantics: every
// target gets exactly one attempt, individual failures drop that target, and
// the batch returns whatever loaded. Cancellation mid-batch keeps the
// results that settled before it.
type Batcher struct {
	fetcher       FileFetcher
	maxConcurrent int

	// chartFile marks base names whose payload must be a non-empty JSON
	// array of candles; anything else for such a name counts as a failed
	// fetch.
	chartFile func(base string) bool
}

// NewBatcher creates a Batcher. A nil chartFile disables payload validation.
func NewBatcher(fetcher FileFetcher, maxConcurrent int, chartFile func(base string) bool) *Batcher {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	return &Batcher{fetcher: fetcher, maxConcurrent: maxConcurrent, chartFile: chartFile}
}

// FetchBatch fetches all targets concurrently and returns the loaded files
// in an arbitrary settle order.
func (b *Batcher) FetchBatch(ctx context.Context, targets []protocol.FileDescriptor, folderName string) []deck.LoadedFile {
	if len(targets) == 0 {
		return nil
	}

	sem := make(chan struct{}, b.maxConcurrent)
	var wg sync.WaitGroup

	var mu sync.Mutex
	var loaded []deck.LoadedFile

	for _, target := range targets {
		select {
		case <-ctx.Done():
			metrics.RecordFileFetch("cancelled")
			continue
		default:
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(fd protocol.FileDescriptor) {
			defer wg.Done()
			defer func() { <-sem }()

			data, err := b.fetcher.FetchFile(ctx, fd.FileName, folderName)
			if err != nil {
				if ctx.Err() != nil {
					metrics.RecordFileFetch("cancelled")
					return
				}
				metrics.RecordFileFetch("error")
				logging.Warn("file fetch failed",
					zap.String("file", fd.FileName),
					zap.String("folder", folderName),
					zap.Error(err))
				return
			}

			if b.chartFile != nil && b.chartFile(fd.Base()) && !validChartPayload(data) {
				metrics.RecordFileFetch("invalid")
				logging.Warn("chart file payload is not a non-empty array",
					zap.String("file", fd.FileName),
					zap.String("folder", folderName))
				return
			}

			metrics.RecordFileFetch("ok")
			mu.Lock()
			loaded = append(loaded, deck.LoadedFile{FileDescriptor: fd, Data: data})
			mu.Unlock()
		}(target)
	}

	wg.Wait()
	return loaded
}

// validChartPayload reports whether data is a non-empty JSON array.
func validChartPayload(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return false
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(trimmed, &arr); err != nil {
		return false
	}
	return len(arr) > 0
}
