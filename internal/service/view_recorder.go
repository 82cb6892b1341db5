package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/modern-blog/internal/repository"
	"github.com/rs/zerolog"
)

const (
	// viewTimeout bounds a single counter update and the wait for a worker
	viewTimeout = 5 * time.Second
	// maxViewWorkers caps concurrent counter updates
	maxViewWorkers = 16
)

// ViewRecorder increments article view counters off the request path.
// A failed increment is logged and never reaches the reader.
type ViewRecorder struct {
	articles repository.ArticleRepository
	log      zerolog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	// mu orders wg.Add against Stop; no increment is scheduled once stopped
	mu      sync.Mutex
	stopped bool

	// Semaphore: buffered channel bounding concurrent counter updates so a
	// burst of reads cannot exhaust the connection pool
	sem chan struct{}
}

// NewViewRecorder creates a recorder with a worker limit sized for I/O-bound work
func NewViewRecorder(articles repository.ArticleRepository, log zerolog.Logger) *ViewRecorder {
	maxWorkers := runtime.NumCPU() * 2
	if maxWorkers < 4 {
		maxWorkers = 4
	}
	if maxWorkers > maxViewWorkers {
		maxWorkers = maxViewWorkers
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &ViewRecorder{
		articles: articles,
		log:      log.With().Str("service", "views").Logger(),
		ctx:      ctx,
		cancel:   cancel,
		sem:      make(chan struct{}, maxWorkers),
	}
}

// Record schedules one view increment for the article. It waits for a free
// worker slot, up to viewTimeout, before handing the update to a goroutine.
func (v *ViewRecorder) Record(articleID string) {
	v.mu.Lock()
	if v.stopped {
		v.mu.Unlock()
		v.log.Warn().Str("article_id", articleID).Msg("View dropped during shutdown")
		return
	}
	v.wg.Add(1)
	v.mu.Unlock()

	// Acquire semaphore slot before spawning so in-flight goroutines stay bounded
	timer := time.NewTimer(viewTimeout)
	defer timer.Stop()
	select {
	case v.sem <- struct{}{}:
	case <-v.ctx.Done():
		v.wg.Done()
		v.log.Warn().Str("article_id", articleID).Msg("View dropped during shutdown")
		return
	case <-timer.C:
		v.wg.Done()
		v.log.Warn().Str("article_id", articleID).Msg("View dropped, all workers busy")
		return
	}

	go func() {
		defer v.wg.Done()
		defer func() { <-v.sem }()

		defer func() {
			if r := recover(); r != nil {
				v.log.Error().Interface("panic", r).Str("article_id", articleID).Msg("View increment panicked - recovered")
			}
		}()

		ctx, cancel := context.WithTimeout(v.ctx, viewTimeout)
		defer cancel()

		if err := v.articles.IncrementViews(ctx, articleID); err != nil {
			v.log.Error().Err(err).Str("article_id", articleID).Msg("Failed to increment views")
		}
	}()
}

// Flush waits for every scheduled increment to finish. Callers must not
// record concurrently with Flush.
func (v *ViewRecorder) Flush() {
	v.wg.Wait()
}

// Stop refuses new increments, drains pending ones until ctx expires, then
// abandons the rest
func (v *ViewRecorder) Stop(ctx context.Context) {
	v.mu.Lock()
	v.stopped = true
	v.mu.Unlock()

	done := make(chan struct{})
	go func() {
		v.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		v.log.Info().Msg("View recorder drained")
	case <-ctx.Done():
		v.log.Warn().Msg("View recorder stopped before draining")
	}
	v.cancel()
}
