// Package pool provides a wrapper around sync.Pool with added metrics.
package pool

import (
	"sync"

	"github.com/dvellum/framelib/metrics"
)

// Pool is a wrapper around sync.Pool that counts allocations forced by an
// empty pool. The counter separates steady-state reuse from churn.
type Pool struct {
	Name string     // Name is reported as the pool dimension.
	Pool *sync.Pool // Pool is the underlying sync.Pool instance.
}

// NewPool creates a new instrumented pool. The newFunc is called whenever
// Get finds the pool empty.
func NewPool(name string, newFunc func() any) *Pool {
	p := &Pool{
		Name: name,
	}

	p.Pool = &sync.Pool{
		New: func() any {
			metrics.IncrCounterWithDimGroup(metrics.NamePoolCreateTotal, metrics.GroupFramelib, 1, metrics.Dimension{
				metrics.DimPoolName: name,
			})
			return newFunc()
		},
	}
	return p
}

// Put adds x back to the pool for reuse.
func (p *Pool) Put(x any) {
	p.Pool.Put(x)
}

// Get retrieves an item from the pool, allocating one when it is empty.
func (p *Pool) Get() any {
	return p.Pool.Get()
}
