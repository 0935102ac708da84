package worker

import (
	"context"
	"log"
	"sync"
)

// Task is a function that represents a background job
type Task func(ctx context.Context) error

// Pool runs asynchronous persistence and audit writes so that mutation
// handlers never block on the database.
type Pool struct {
	taskQueue chan Task
	wg        sync.WaitGroup

	// mu orders Submit's channel send against Shutdown's close, so a task
	// submitted during shutdown is dropped instead of panicking.
	mu      sync.RWMutex
	closing bool
}

func NewPool(size int) *Pool {
	p := &Pool{
		taskQueue: make(chan Task, 1000), // Buffer for 1000 pending tasks
	}

	// Start the workers
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.startWorker()
	}

	return p
}

func (p *Pool) startWorker() {
	defer p.wg.Done()
	for task := range p.taskQueue {
		ctx := context.Background()
		if err := task(ctx); err != nil {
			log.Printf("Worker task failed: %v", err)
		}
	}
}

func (p *Pool) Submit(t Task) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closing {
		log.Println("Warning: task submitted during shutdown, dropping.")
		return
	}
	select {
	case p.taskQueue <- t:
	default:
		log.Println("Task queue full, dropping task!")
	}
}

// Shutdown closes the queue and waits for workers to finish. Idempotent.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		return
	}
	p.closing = true
	close(p.taskQueue)
	p.mu.Unlock()

	p.wg.Wait()
}
