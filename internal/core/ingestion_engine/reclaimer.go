package ingestion_engine

import (
	"runtime"
	"sync/atomic"
)

// Reclaimer asks the runtime to collect garbage every `every` pages so long
// documents do not pile up per-page parser allocations. It never touches
// page data.
type Reclaimer struct {
	every   int
	collect func()
	passes  atomic.Int64
}

// NewReclaimer returns a reclaimer that runs every n pages; n <= 0 disables it.
func NewReclaimer(n int) *Reclaimer {
	return &Reclaimer{every: n, collect: runtime.GC}
}

// Tick is called after each emitted page with the running count.
func (r *Reclaimer) Tick(pagesDone int) {
	if r == nil || r.every <= 0 || pagesDone <= 0 || pagesDone%r.every != 0 {
		return
	}
	r.collect()
	r.passes.Add(1)
}

// Passes reports how many collections have been requested.
func (r *Reclaimer) Passes() int64 {
	if r == nil {
		return 0
	}
	return r.passes.Load()
}
