package cache

import "sync"

// Background runs cache population off the request path. Responses are
// never delayed or failed by a write; the handler hands the write to Go
// and returns. Wait drains in-flight work for shutdown and tests.
type Background struct {
	wg sync.WaitGroup
}

// Go runs fn on its own goroutine.
func (b *Background) Go(fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn()
	}()
}

// Wait blocks until all functions started with Go have returned.
func (b *Background) Wait() {
	b.wg.Wait()
}
