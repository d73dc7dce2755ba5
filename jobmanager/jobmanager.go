// Package jobmanager drives one Job per input pipeline to completion,
// either serially in the calling goroutine or fanned out across a
// ThreadPool, and cancels the shared cue-sync queue the moment any job
// fails so sibling jobs waiting at a rendezvous point unblock instead of
// hanging forever (spec.md §4.8), grounded on
// original_source/packager/app/{job_manager,single_thread_job_manager}.{h,cc}.
package jobmanager

import (
	"sync"

	"github.com/go-webdl/packager/cuequeue"
	"github.com/go-webdl/packager/internal/pkglog"
)

// Job is one input pipeline's unit of work: run it to completion and
// report the first error encountered, or nil on success.
type Job interface {
	Run() error
}

// JobFunc adapts a plain function to the Job interface.
type JobFunc func() error

func (f JobFunc) Run() error { return f() }

// Manager owns a set of registered jobs and an optional cue-sync queue
// shared across them. Run drives every job to completion and returns the
// first non-OK status encountered, after cancelling the cue queue so no
// job is left blocked at a rendezvous.
type Manager struct {
	jobs    []Job
	cues    *cuequeue.Queue
	threads *ThreadPool
}

// New returns a Manager. cues may be nil when the jobs being registered do
// not need cue-point synchronization. When threads is non-nil, Run fans
// jobs out across it instead of running them serially.
func New(cues *cuequeue.Queue, threads *ThreadPool) *Manager {
	return &Manager{cues: cues, threads: threads}
}

// Add registers a job. Jobs run in registration order in the
// single-threaded driver; order is not meaningful in the multi-threaded
// driver.
func (m *Manager) Add(job Job) {
	m.jobs = append(m.jobs, job)
}

// Run drives every registered job to completion, single-threaded if this
// Manager has no ThreadPool, or fanned out across it otherwise. On any job
// error the cue-sync queue (if present) is cancelled so sibling jobs
// waiting on it unblock. Run's return value is the first non-OK status
// encountered: in registration order when single-threaded, and from the
// first job to fail when fanned out across the ThreadPool.
func (m *Manager) Run() error {
	if m.threads != nil {
		return m.runMultiThreaded()
	}
	return m.runSingleThreaded()
}

func (m *Manager) runSingleThreaded() error {
	var first error
	for i, job := range m.jobs {
		if err := job.Run(); err != nil {
			pkglog.Logger().Error("job failed", "index", i, "err", err)
			if first == nil {
				first = err
			}
			if m.cues != nil {
				m.cues.Cancel()
			}
		}
	}
	return first
}

func (m *Manager) runMultiThreaded() error {
	var (
		mu    sync.Mutex
		first error
		wg    sync.WaitGroup
	)
	for i, job := range m.jobs {
		wg.Add(1)
		i, job := i, job
		m.threads.PostTask(func() {
			defer wg.Done()
			if err := job.Run(); err != nil {
				pkglog.Logger().Error("job failed", "index", i, "err", err)
				mu.Lock()
				if first == nil {
					first = err
				}
				mu.Unlock()
				if m.cues != nil {
					m.cues.Cancel()
				}
			}
		})
	}
	wg.Wait()
	if first != nil {
		return first
	}
	return nil
}
