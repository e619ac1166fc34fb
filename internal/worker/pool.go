// Package worker bounds the number of concurrently running background jobs.
// LLM calls and PDF parsing are heavy; the pool keeps them off the request
// path without letting them pile up.
package worker

import "sync"

// DefaultWidth is the pool size used by the server.
const DefaultWidth = 4

// Pool runs submitted jobs on at most width goroutines.
type Pool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

func NewPool(width int) *Pool {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Pool{sem: make(chan struct{}, width)}
}

// Submit schedules fn. It returns immediately; fn starts once a slot frees
// up.
func (p *Pool) Submit(fn func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.sem <- struct{}{}
		defer func() { <-p.sem }()
		fn()
	}()
}

// Wait blocks until every submitted job has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}
