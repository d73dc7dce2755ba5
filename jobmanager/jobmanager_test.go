package jobmanager_test

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/matryer/is"

	"github.com/go-webdl/packager/cuequeue"
	"github.com/go-webdl/packager/jobmanager"
)

func TestSingleThreadedRunsAllJobsInOrder(t *testing.T) {
	is := is.New(t)
	var order []int
	m := jobmanager.New(nil, nil)
	for i := 0; i < 3; i++ {
		i := i
		m.Add(jobmanager.JobFunc(func() error {
			order = append(order, i)
			return nil
		}))
	}
	is.NoErr(m.Run())
	is.Equal(order, []int{0, 1, 2})
}

func TestSingleThreadedReturnsFirstError(t *testing.T) {
	is := is.New(t)
	errA := errors.New("job a failed")
	errB := errors.New("job b failed")
	m := jobmanager.New(nil, nil)
	m.Add(jobmanager.JobFunc(func() error { return errA }))
	m.Add(jobmanager.JobFunc(func() error { return errB }))
	err := m.Run()
	is.Equal(err, errA)
}

func TestFailingJobCancelsCueQueue(t *testing.T) {
	is := is.New(t)
	q := cuequeue.New(2)
	m := jobmanager.New(q, nil)
	m.Add(jobmanager.JobFunc(func() error { return errors.New("boom") }))
	is.True(m.Run() != nil)
	is.True(q.Cancelled())
}

func TestMultiThreadedRunsEveryJob(t *testing.T) {
	is := is.New(t)
	pool := jobmanager.NewThreadPool()
	defer pool.Terminate()

	var ran int32
	m := jobmanager.New(nil, pool)
	for i := 0; i < 8; i++ {
		m.Add(jobmanager.JobFunc(func() error {
			atomic.AddInt32(&ran, 1)
			return nil
		}))
	}
	is.NoErr(m.Run())
	is.Equal(ran, int32(8))
}

func TestMultiThreadedFailureCancelsCueQueue(t *testing.T) {
	is := is.New(t)
	pool := jobmanager.NewThreadPool()
	defer pool.Terminate()

	q := cuequeue.New(2)
	m := jobmanager.New(q, pool)
	m.Add(jobmanager.JobFunc(func() error { return nil }))
	m.Add(jobmanager.JobFunc(func() error { return errors.New("boom") }))
	is.True(m.Run() != nil)
	is.True(q.Cancelled())
}
