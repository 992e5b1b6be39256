/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package workerpool implements the fixed-size worker pool and bounded
// FIFO work queue that every accepted connection is dispatched through.
// Submission never blocks the acceptor: a full queue is rejected outright.
package workerpool

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/sabouaram/staticd/metrics"
)

// Job is one unit of work a worker executes; it owns whatever resources
// it closes over (typically a transport) for the duration of the call.
type Job func()

// Pool is a fixed-size worker pool draining a bounded FIFO queue.
type Pool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []Job
	maxQueue int

	shutdown bool
	active   int

	sem *semaphore.Weighted

	wg sync.WaitGroup
}

// New starts a single dispatcher that hands queued jobs off to at most n
// concurrently-running workers, enforced by a weighted semaphore rather
// than a literal count of spawned goroutines.
func New(n, maxQueue int) *Pool {
	p := &Pool{
		maxQueue: maxQueue,
		sem:      semaphore.NewWeighted(int64(n)),
	}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(1)
	go p.dispatch()

	return p
}

// dispatch is the pool's one dedicated goroutine: it waits for queued work
// or shutdown, acquires a worker slot, and only then dequeues. The slot is
// taken first so a job never leaves the bounded queue while every worker
// is busy; queue depth stays the backpressure signal Submit rejects on.
func (p *Pool) dispatch() {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.shutdown {
			p.cond.Wait()
		}
		if len(p.queue) == 0 && p.shutdown {
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()

		if err := p.sem.Acquire(context.Background(), 1); err != nil {
			return
		}

		p.mu.Lock()
		job := p.queue[0]
		p.queue = p.queue[1:]
		p.active++
		metrics.QueueDepth.Set(float64(len(p.queue)))
		p.mu.Unlock()

		p.wg.Add(1)
		metrics.WorkersBusy.Inc()
		go p.runOne(job)
	}
}

func (p *Pool) runOne(job Job) {
	defer p.wg.Done()
	defer p.sem.Release(1)
	defer metrics.WorkersBusy.Dec()

	job()

	p.mu.Lock()
	p.active--
	p.cond.Broadcast() // wakes wait_idle waiters
	p.mu.Unlock()
}

// Submit enqueues job. It fails (ok=false) if the pool is shut down or the
// queue is already at capacity; the caller owns cleanup of whatever the
// job would have handled (typically: close the accepted connection).
func (p *Pool) Submit(job Job) (ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shutdown || len(p.queue) >= p.maxQueue {
		metrics.QueueRejected.Inc()
		return false
	}

	p.queue = append(p.queue, job)
	metrics.QueueDepth.Set(float64(len(p.queue)))
	p.cond.Broadcast()
	return true
}

// Len reports the current queue depth.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// WaitIdle blocks until the queue is empty and no worker is active. The
// acceptor calls this before a catalog refresh so no worker ever observes
// a torn catalog handle.
func (p *Pool) WaitIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) > 0 || p.active > 0 {
		p.cond.Wait()
	}
}

// Shutdown sets the shutdown flag and wakes every waiting worker; workers
// finish their current job, drain the remaining queue, then exit.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.shutdown = true
	p.cond.Broadcast()
	p.mu.Unlock()
}

// Destroy performs WaitIdle-equivalent draining, joins every worker
// goroutine, and returns once all have exited.
func (p *Pool) Destroy() {
	p.Shutdown()
	p.wg.Wait()
}
