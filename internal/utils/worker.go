package utils

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const (
	TASK_CHAN_SIZE = 100
)

type WorkerFunction = func(t *tomb.Tomb, task any) error
type WorkerPool struct {
	n     int      // number of workers
	tasks chan any // pending tasks
}

func NewWorkerPool(size uint) *WorkerPool {
	if size == 0 {
		size = 1
	}
	return &WorkerPool{
		n:     int(size),
		tasks: make(chan any, TASK_CHAN_SIZE),
	}
}

// Setup starts the workers on the tomb. They exit once the tomb is dying or
// the pool is closed and drained. An error from work kills the tomb.
func (pool *WorkerPool) Setup(t *tomb.Tomb, work WorkerFunction) {
	for id := range pool.n {
		t.Go(func() error {
			return pool.worker(t, id, work)
		})
	}
}

// AddTask queues a task, blocking while the queue is full.
func (pool *WorkerPool) AddTask(task any) {
	pool.tasks <- task
}

// Offer queues a task unless the tomb dies first. It reports whether the
// task was queued.
func (pool *WorkerPool) Offer(t *tomb.Tomb, task any) bool {
	select {
	case <-t.Dying():
		return false
	case pool.tasks <- task:
		return true
	}
}

// Close stops accepting tasks. Queued tasks are still worked.
func (pool *WorkerPool) Close() {
	close(pool.tasks)
}

func (pool *WorkerPool) Size() int {
	return pool.n
}

// Workers wait on tasks in the task pool and action them.
func (pool *WorkerPool) worker(t *tomb.Tomb, id int, work WorkerFunction) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task, ok := <-pool.tasks:
			if !ok {
				return nil
			}
			if err := work(t, task); err != nil {
				log.Error().Err(err).Int("id", id).Msg("worker exiting")
				return err
			}
		}
	}
}
