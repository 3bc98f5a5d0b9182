package orchestrator

import (
	"sync"

	"github.com/riskcore/decisioncore/internal/rules"
)

// workerCachePool hands out exclusively-owned *rules.WorkerCache values,
// one per in-flight decision, and returns them for reuse afterward. This
// adapts the teacher's fixed EvaluationPool of dedicated goroutines (each
// holding a private cache for the process lifetime) to Go's actual
// concurrency model here, where a "worker" is whichever goroutine is
// currently handling a request rather than a long-lived pool member:
// sync.Pool gives every checkout exclusive ownership until it is
// returned, which is the invariant §5 actually requires, without forcing
// requests onto a fixed-size goroutine roster.
type workerCachePool struct {
	engine *rules.Engine
	pool   sync.Pool
}

func newWorkerCachePool(engine *rules.Engine) *workerCachePool {
	p := &workerCachePool{engine: engine}
	p.pool.New = func() interface{} {
		return engine.NewWorkerCache()
	}
	return p
}

func (p *workerCachePool) get() *rules.WorkerCache {
	return p.pool.Get().(*rules.WorkerCache)
}

func (p *workerCachePool) put(wc *rules.WorkerCache) {
	p.pool.Put(wc)
}
