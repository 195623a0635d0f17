// Package engine is the default aresdriver.EventEngine: a fixed worker
// pool dispatches Run/RunAfter callbacks, and time.AfterFunc drives the
// timers. The worker pool itself — the chan-of-chans dispatch pattern — is
// adapted directly from the teacher's worker_pool.go, generalized from
// running DNS query Jobs to running arbitrary deferred funcs.
package engine

import (
	"sync"
	"time"

	"github.com/astracat-corp/aresdriver"
)

type job func()

type worker struct {
	id       int
	jobQueue chan job
	pool     chan chan job
	quit     chan struct{}
}

func newWorker(id int, pool chan chan job) *worker {
	return &worker{id: id, jobQueue: make(chan job), pool: pool, quit: make(chan struct{})}
}

func (w *worker) start() {
	go func() {
		for {
			w.pool <- w.jobQueue
			select {
			case j := <-w.jobQueue:
				j()
			case <-w.quit:
				return
			}
		}
	}()
}

func (w *worker) stop() { close(w.quit) }

type workerPool struct {
	jobQueue chan job
	pool     chan chan job
	quit     chan struct{}
	workers  []*worker
	wg       sync.WaitGroup
}

func newWorkerPool(maxWorkers, queueSize int) *workerPool {
	return &workerPool{
		jobQueue: make(chan job, queueSize),
		pool:     make(chan chan job, maxWorkers),
		quit:     make(chan struct{}),
		workers:  make([]*worker, 0, maxWorkers),
	}
}

func (wp *workerPool) start(maxWorkers int) {
	for i := 0; i < maxWorkers; i++ {
		w := newWorker(i+1, wp.pool)
		wp.workers = append(wp.workers, w)
		w.start()
	}
	go wp.dispatch()
}

func (wp *workerPool) dispatch() {
	for {
		select {
		case j := <-wp.jobQueue:
			go func(j job) {
				workerQueue := <-wp.pool
				workerQueue <- j
			}(j)
		case <-wp.quit:
			return
		}
	}
}

func (wp *workerPool) submit(j job) {
	wp.wg.Add(1)
	go func() {
		defer wp.wg.Done()
		wp.jobQueue <- j
	}()
}

func (wp *workerPool) stop() {
	close(wp.quit)
	for _, w := range wp.workers {
		w.stop()
	}
	wp.wg.Wait()
}

// Engine implements aresdriver.EventEngine.
type Engine struct {
	pool *workerPool

	mu         sync.Mutex
	nextHandle uint64
	timers     map[aresdriver.TaskHandle]*time.Timer
}

// New starts an Engine backed by maxWorkers goroutines and a queue of
// queueSize pending jobs.
func New(maxWorkers, queueSize int) *Engine {
	pool := newWorkerPool(maxWorkers, queueSize)
	pool.start(maxWorkers)
	return &Engine{pool: pool, timers: make(map[aresdriver.TaskHandle]*time.Timer)}
}

// Run posts fn to the worker pool.
func (e *Engine) Run(fn func()) {
	e.pool.submit(job(fn))
}

// RunAfter arms fn to run once, after d, on the worker pool.
func (e *Engine) RunAfter(d time.Duration, fn func()) aresdriver.TaskHandle {
	e.mu.Lock()
	e.nextHandle++
	h := aresdriver.TaskHandle(e.nextHandle)
	e.mu.Unlock()

	t := time.AfterFunc(d, func() {
		e.mu.Lock()
		delete(e.timers, h)
		e.mu.Unlock()
		e.pool.submit(job(fn))
	})

	e.mu.Lock()
	e.timers[h] = t
	e.mu.Unlock()
	return h
}

// Cancel reports whether the timer named by h was stopped before firing.
func (e *Engine) Cancel(h aresdriver.TaskHandle) bool {
	e.mu.Lock()
	t, ok := e.timers[h]
	if ok {
		delete(e.timers, h)
	}
	e.mu.Unlock()
	if !ok {
		return false
	}
	return t.Stop()
}

// Stop shuts the worker pool down, waiting for in-flight jobs to finish.
func (e *Engine) Stop() {
	e.pool.stop()
}
