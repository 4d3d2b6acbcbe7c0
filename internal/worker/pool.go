package worker

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"tokensite-backend/internal/models"
)

var ErrQueueFull = errors.New("access grant queue is full")

// GrantRecorder is the durable sink the pool writes to (the Postgres repo in production).
type GrantRecorder interface {
	Record(ctx context.Context, grant *models.AccessGrant) error
}

type job struct {
	grant    *models.AccessGrant
	attempts int
}

// Pool writes access grants in the background so a slow or unavailable
// database never delays a wallet login. Failed writes are retried with backoff.
type Pool struct {
	recorder    GrantRecorder
	jobs        chan job
	workerCount int
	maxAttempts int
	backoff     func(attempt int) time.Duration
	stopChan    chan struct{}
	wg          sync.WaitGroup
}

func NewPool(recorder GrantRecorder, workerCount, queueSize int) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	return &Pool{
		recorder:    recorder,
		jobs:        make(chan job, queueSize),
		workerCount: workerCount,
		maxAttempts: 3,
		backoff: func(attempt int) time.Duration {
			return time.Duration(1<<uint(attempt)) * time.Second
		},
		stopChan: make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	log.Printf("Started %d access grant writers", p.workerCount)
}

// Stop waits for the workers to flush what is already queued.
func (p *Pool) Stop() {
	close(p.stopChan)
	p.wg.Wait()
}

// Record queues the grant and returns immediately.
func (p *Pool) Record(ctx context.Context, grant *models.AccessGrant) error {
	return p.enqueue(job{grant: grant})
}

func (p *Pool) enqueue(j job) error {
	select {
	case <-p.stopChan:
		return errors.New("access grant writer stopped")
	default:
	}

	select {
	case p.jobs <- j:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case j := <-p.jobs:
			p.process(id, j)
		case <-p.stopChan:
			// Drain
			for {
				select {
				case j := <-p.jobs:
					p.process(id, j)
				default:
					log.Printf("Grant writer %d shutting down", id)
					return
				}
			}
		}
	}
}

func (p *Pool) process(id int, j job) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := p.recorder.Record(ctx, j.grant); err != nil {
		p.handleFailure(id, j, err)
	}
}

func (p *Pool) handleFailure(id int, j job, err error) {
	j.attempts++

	if j.attempts >= p.maxAttempts {
		log.Printf("Grant writer %d: grant %s for %s dropped after %d attempts: %v", id, j.grant.ID, j.grant.Address, j.attempts, err)
		return
	}

	log.Printf("Grant writer %d: grant %s failed (attempt %d): %v, retrying", id, j.grant.ID, j.attempts, err)
	time.AfterFunc(p.backoff(j.attempts), func() {
		if err := p.enqueue(j); err != nil {
			log.Printf("Grant writer %d: could not requeue grant %s: %v", id, j.grant.ID, err)
		}
	})
}
