package typedpool

import "sync"

// Pool is a typed wrapper around sync.Pool. Values are reset before
// they are returned to the pool.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(*T)
}

func New[T any](reset func(*T)) *Pool[T] {
	return &Pool[T]{
		reset: reset,
		pool: sync.Pool{
			New: func() any { return new(T) },
		},
	}
}

func (p *Pool[T]) Get() *T {
	return p.pool.Get().(*T)
}

func (p *Pool[T]) Put(value *T) {
	if p.reset != nil {
		p.reset(value)
	}

	p.pool.Put(value)
}
