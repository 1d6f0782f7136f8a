package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/khaphanpro-123/voichat1012-sub001/internal/blob"
	"github.com/khaphanpro-123/voichat1012-sub001/internal/extract"
	"github.com/khaphanpro-123/voichat1012-sub001/internal/metrics"
	"github.com/khaphanpro-123/voichat1012-sub001/internal/queue"
	"github.com/khaphanpro-123/voichat1012-sub001/internal/store"
)

// Pool runs a fixed number of workers. Workers coordinate only through the
// queue and store, so pools in separate processes compose the same way.
type Pool struct {
	workers []*Worker
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPool creates count workers sharing the same backends.
func NewPool(count int, s store.Store, q queue.Queue, b blob.Store, e extract.Extractor, cfg Config) *Pool {
	if count < 1 {
		count = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{ctx: ctx, cancel: cancel}
	for i := 0; i < count; i++ {
		p.workers = append(p.workers, New(i, s, q, b, e, cfg))
	}
	return p
}

// Start launches all workers.
func (p *Pool) Start() {
	slog.Info("starting worker pool", "worker_count", len(p.workers))
	metrics.ActiveWorkers.Set(float64(len(p.workers)))

	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(p.ctx)
		}(w)
	}
}

// Stop cancels all workers and waits for in-flight jobs to settle.
func (p *Pool) Stop() {
	slog.Info("stopping worker pool")
	p.cancel()
	p.wg.Wait()
	metrics.ActiveWorkers.Set(0)
	slog.Info("worker pool stopped")
}
