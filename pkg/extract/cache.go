package extract

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

// DocumentCache holds extracted text for one meeting, keyed by URL. Its
// memory footprint dominates item-level processing, so it must be released
// as soon as the meeting finishes.
type DocumentCache struct {
	extractor   Extractor
	concurrency int64

	mu   sync.Mutex
	docs map[string]*Result
	errs map[string]error
}

// NewDocumentCache creates an empty cache that extracts with at most
// concurrency parallel requests.
func NewDocumentCache(extractor Extractor, concurrency int) *DocumentCache {
	if concurrency < 1 {
		concurrency = 1
	}
	return &DocumentCache{
		extractor:   extractor,
		concurrency: int64(concurrency),
		docs:        make(map[string]*Result),
		errs:        make(map[string]error),
	}
}

// Fill extracts every URL not already cached. Per-document failures and
// heuristic discards are logged and leave that URL absent; the failure is
// recorded so callers can distinguish a bad document from a service outage.
func (c *DocumentCache) Fill(ctx context.Context, urls []string) {
	sem := semaphore.NewWeighted(c.concurrency)
	var wg sync.WaitGroup

	for _, url := range urls {
		c.mu.Lock()
		_, cached := c.docs[url]
		c.mu.Unlock()
		if cached {
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			// Cancelled: stop launching, but still wait for in-flight
			// extractions so none write into the map after Release.
			break
		}
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			defer sem.Release(1)

			res, err := c.extractor.Extract(ctx, url)
			if err != nil {
				slog.Warn("Document extraction failed", "url", url, "error", err)
				c.mu.Lock()
				c.errs[url] = err
				c.mu.Unlock()
				return
			}
			if drop, reason := DiscardText(res); drop {
				slog.Info("Discarding extracted text", "url", url, "reason", reason,
					"pages", res.PageCount)
				return
			}
			c.mu.Lock()
			c.docs[url] = res
			delete(c.errs, url)
			c.mu.Unlock()
		}(url)
	}
	wg.Wait()
}

// Get returns the extracted document for url, if extraction succeeded.
func (c *DocumentCache) Get(url string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.docs[url]
	return r, ok
}

// FailedTransient reports whether any of urls failed extraction with an
// error other than a permanently bad document. Heuristic discards do not
// count: the text existed and was rejected on its content.
func (c *DocumentCache) FailedTransient(urls []string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, url := range urls {
		if err, ok := c.errs[url]; ok && !errors.Is(err, ErrBadDocument) {
			return true
		}
	}
	return false
}

// Len reports how many documents are cached.
func (c *DocumentCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.docs)
}

// Release drops all cached text.
func (c *DocumentCache) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = make(map[string]*Result)
	c.errs = make(map[string]error)
}
