// Package worker is a small worker pool used to hand off webhook delivery
// asynchronously so a task.Callback can return via RunContext.Dispatched
// without waiting for delivery (and its retries) to finish.
package worker

import (
	"context"
	"log/slog"
	"sync"
)

// ExecutorFunc performs one job's work.
type ExecutorFunc func(ctx context.Context, job Job)

// Job is one unit of work submitted to the pool. Payload carries whatever
// the ExecutorFunc needs; the pool itself is payload-agnostic since it is
// shared across every alert an endpoint check's rules can trigger.
type Job struct {
	ID      string
	Context context.Context
	Payload interface{}
}

// Pool runs submitted jobs across a fixed number of worker goroutines.
type Pool struct {
	workers int
	jobs    chan Job
	fn      ExecutorFunc
	wg      sync.WaitGroup
}

func NewPool(workers, queueSize int, fn ExecutorFunc) *Pool {
	return &Pool{
		workers: workers,
		jobs:    make(chan Job, queueSize),
		fn:      fn,
	}
}

func (p *Pool) Start() {
	slog.Info("sampletask worker pool: starting", "workers", p.workers)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
}

func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
}

// Submit enqueues job, blocking if the queue is full.
func (p *Pool) Submit(job Job) {
	p.jobs <- job
}

func (p *Pool) run(id int) {
	defer p.wg.Done()
	for job := range p.jobs {
		slog.Debug("sampletask worker pool: processing job", "worker_id", id, "job_id", job.ID)
		p.fn(job.Context, job)
	}
}
