package jobmanager

import (
	"sync"
	"time"
)

// idleTimeout is how long a worker waits for a task before exiting;
// workers are respawned on demand by PostTask (spec.md §4.8, grounded on
// original_source/packager/file/thread_pool.cc's kMaxThreadIdleTime).
const idleTimeout = 10 * time.Minute

// Task is a unit of work submitted to a ThreadPool.
type Task func()

// ThreadPool grows a worker goroutine whenever no idle worker is available
// to take a posted task, and shrinks a worker once it has waited
// idleTimeout with nothing to do. PostTask guarantees the task runs
// exactly once; Terminate refuses further tasks and drains the queue
// while letting already-running tasks finish.
type ThreadPool struct {
	mu         sync.Mutex
	tasks      chan Task
	idle       int
	terminated bool
	quit       chan struct{}
	wg         sync.WaitGroup
}

// NewThreadPool returns a ready-to-use ThreadPool.
func NewThreadPool() *ThreadPool {
	return &ThreadPool{
		tasks: make(chan Task),
		quit:  make(chan struct{}),
	}
}

// PostTask finds or spawns a worker to run task. Calling PostTask after
// Terminate is a no-op.
func (p *ThreadPool) PostTask(task Task) {
	p.mu.Lock()
	if p.terminated {
		p.mu.Unlock()
		return
	}
	if p.idle == 0 {
		p.wg.Add(1)
		go p.runWorker()
	}
	p.mu.Unlock()

	select {
	case p.tasks <- task:
	case <-p.quit:
	}
}

// Terminate stops handing out tasks, drops anything still queued, and
// wakes every worker so it can exit. Running tasks are allowed to finish.
// Terminate is idempotent.
func (p *ThreadPool) Terminate() {
	p.mu.Lock()
	if p.terminated {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.terminated = true
	p.mu.Unlock()
	close(p.quit)
	p.wg.Wait()
}

func (p *ThreadPool) runWorker() {
	defer p.wg.Done()
	timer := time.NewTimer(idleTimeout)
	defer timer.Stop()

	for {
		p.mu.Lock()
		p.idle++
		p.mu.Unlock()

		select {
		case task := <-p.tasks:
			p.mu.Lock()
			p.idle--
			p.mu.Unlock()

			task()

			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(idleTimeout)
		case <-timer.C:
			p.mu.Lock()
			p.idle--
			p.mu.Unlock()
			return
		case <-p.quit:
			p.mu.Lock()
			p.idle--
			p.mu.Unlock()
			return
		}
	}
}
