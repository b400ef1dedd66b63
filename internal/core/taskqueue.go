package core

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

var errQueueStopped = errors.New("task queue stopped")

// serialQueue runs submitted tasks strictly one at a time in FIFO order.
// A failing (or panicking) task is logged and never blocks the tasks queued
// behind it. Each shared store owns its own queue, so mutations against the
// same store never interleave while independent stores stay independent.
type serialQueue struct {
	name  string
	tasks chan queuedTask
	done  chan struct{}
	log   zerolog.Logger
}

type queuedTask struct {
	run    func() error
	result chan error
}

func newSerialQueue(name string, log zerolog.Logger) *serialQueue {
	q := &serialQueue{
		name:  name,
		tasks: make(chan queuedTask, 64),
		done:  make(chan struct{}),
		log:   log,
	}
	go q.loop()
	return q
}

func (q *serialQueue) loop() {
	for {
		select {
		case <-q.done:
			return
		case t := <-q.tasks:
			err := q.runIsolated(t.run)
			if err != nil {
				q.log.Error().Err(err).Str("queue", q.name).Msg("queued task failed")
			}
			t.result <- err
		}
	}
}

func (q *serialQueue) runIsolated(run func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()
	return run()
}

// Do submits run and waits for it to finish. The error belongs to this
// task alone; the queue keeps draining either way.
func (q *serialQueue) Do(run func() error) error {
	t := queuedTask{run: run, result: make(chan error, 1)}

	select {
	case q.tasks <- t:
	case <-q.done:
		return errQueueStopped
	}

	select {
	case err := <-t.result:
		return err
	case <-q.done:
		return errQueueStopped
	}
}

func (q *serialQueue) Close() {
	close(q.done)
}
