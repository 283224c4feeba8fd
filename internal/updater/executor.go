package updater

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

var ErrQueueClosed = errors.New("graph writer closed")

// Task is a unit of graph mutation. It runs on the writer goroutine, never
// concurrently with another task.
type Task func() error

type job struct {
	name   string
	run    Task
	result chan error
}

// Executor is the single serialized writer shared by every updater. Readers
// of the graph never go through it.
type Executor struct {
	mu     sync.RWMutex
	closed bool
	jobs   chan job
	done   chan struct{}
	log    logrus.FieldLogger
}

// NewExecutor starts the writer goroutine. queue bounds the number of
// submitted tasks waiting to run.
func NewExecutor(log logrus.FieldLogger, queue int) *Executor {
	if queue < 1 {
		queue = 1
	}
	e := &Executor{
		jobs: make(chan job, queue),
		done: make(chan struct{}),
		log:  log.WithField("component", "graph_writer"),
	}
	go e.loop()
	return e
}

func (e *Executor) loop() {
	defer close(e.done)
	for j := range e.jobs {
		j.result <- e.runJob(j)
	}
}

func (e *Executor) runJob(j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", j.name, r)
			e.log.WithField("task", j.name).Error(err)
		}
	}()
	return j.run()
}

// Submit queues t and returns a channel that receives its result.
func (e *Executor) Submit(ctx context.Context, name string, t Task) (<-chan error, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrQueueClosed
	}
	j := job{name: name, run: t, result: make(chan error, 1)}
	select {
	case e.jobs <- j:
		return j.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Execute submits t and waits for it to finish. If ctx ends while t is
// queued or running, Execute returns ctx.Err() and t still runs to
// completion on the writer.
func (e *Executor) Execute(ctx context.Context, name string, t Task) error {
	result, err := e.Submit(ctx, name, t)
	if err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		e.log.WithField("task", name).Warn("abandoned waiting for graph writer")
		return ctx.Err()
	}
}

// Close stops accepting tasks, lets queued tasks finish and waits for the
// writer goroutine to exit.
func (e *Executor) Close() {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.jobs)
	}
	e.mu.Unlock()
	<-e.done
}
