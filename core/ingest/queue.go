package ingest

import (
	"context"
	"errors"
	"sync"

	"MSMA/logger"
	"MSMA/model"
)

// ErrQueueFull is returned when the ingestion queue is at capacity.
// Backpressure is explicit: the submitter is told, not blocked.
var ErrQueueFull = errors.New("ingestion queue full")

// Queue is a bounded in-process queue of ingestion events.
type Queue struct {
	events chan model.IngestionEvent
}

// NewQueue creates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{events: make(chan model.IngestionEvent, capacity)}
}

// Enqueue adds an event without blocking. A full queue returns ErrQueueFull;
// the track stays SUBMITTED and can be re-emitted later.
func (q *Queue) Enqueue(event model.IngestionEvent) error {
	select {
	case q.events <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	return len(q.events)
}

// Pool runs a fixed number of ingestion workers over a queue. Each worker
// drives one orchestrator run at a time to completion; runs are never
// cancelled midway.
type Pool struct {
	queue        *Queue
	orchestrator *Orchestrator
	workers      int
	stop         chan struct{}
	wg           sync.WaitGroup
}

// NewPool creates a worker pool.
func NewPool(queue *Queue, orchestrator *Orchestrator, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		queue:        queue,
		orchestrator: orchestrator,
		workers:      workers,
		stop:         make(chan struct{}),
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	logger.Info("ingestion worker pool started",
		logger.Int("workers", p.workers),
		logger.Int("queueCapacity", cap(p.queue.events)))
}

// Stop signals the workers and waits for in-flight runs to finish. Queued
// events are drained before the workers exit.
func (p *Pool) Stop() {
	close(p.stop)
	p.wg.Wait()
	logger.Info("ingestion worker pool stopped")
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			// Drain what is already queued, then exit.
			for {
				select {
				case event := <-p.queue.events:
					p.run(id, event)
				default:
					return
				}
			}
		case event := <-p.queue.events:
			p.run(id, event)
		}
	}
}

func (p *Pool) run(workerID int, event model.IngestionEvent) {
	logger.Debug("worker picked up ingestion event",
		logger.Int("worker", workerID),
		logger.Int64("trackId", event.TrackID))
	p.orchestrator.Process(context.Background(), event.TrackID)
}
