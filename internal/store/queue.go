package store

import (
	"database/sql"
	"errors"
	"time"
)

// Task is a unit of database work run by the queue worker.
type Task struct {
	Exec func(*sql.DB) (any, error)
	Resp chan Result
}

// Result carries a task's outcome back to the caller.
type Result struct {
	Data any
	Err  error
}

// Queue serializes all database access through one worker goroutine, so
// SQLite never sees concurrent writers. Failed tasks are retried with a
// linearly growing delay unless the error is final.
type Queue struct {
	tasks      chan Task
	db         *sql.DB
	maxRetry   int
	retryDelay time.Duration
	final      func(error) bool
	done       chan struct{}
}

// NewQueue starts a worker over db.
func NewQueue(db *sql.DB) *Queue {
	return newQueue(db, 100*time.Millisecond)
}

// NewQueueForTest starts a worker with a minimal retry delay.
func NewQueueForTest(db *sql.DB) *Queue {
	return newQueue(db, time.Millisecond)
}

func newQueue(db *sql.DB, delay time.Duration) *Queue {
	q := &Queue{
		tasks:      make(chan Task, 100),
		db:         db,
		maxRetry:   3,
		retryDelay: delay,
		final:      isFinal,
		done:       make(chan struct{}),
	}
	go q.worker()
	return q
}

// Execute runs task on the worker and waits for its result.
func (q *Queue) Execute(task func(*sql.DB) (any, error)) (any, error) {
	resp := make(chan Result, 1)
	q.tasks <- Task{Exec: task, Resp: resp}
	result := <-resp
	return result.Data, result.Err
}

func (q *Queue) worker() {
	defer close(q.done)
	for task := range q.tasks {
		task.Resp <- q.executeWithRetry(task)
	}
}

func (q *Queue) executeWithRetry(task Task) Result {
	var lastErr error
	for attempt := 0; attempt < q.maxRetry; attempt++ {
		data, err := task.Exec(q.db)
		if err == nil {
			return Result{Data: data}
		}
		lastErr = err
		if q.final(err) {
			break
		}
		if attempt < q.maxRetry-1 {
			time.Sleep(time.Duration(attempt+1) * q.retryDelay)
		}
	}
	return Result{Err: lastErr}
}

// Close stops the worker after queued tasks finish.
func (q *Queue) Close() {
	close(q.tasks)
	<-q.done
}

// DB returns the underlying handle.
func (q *Queue) DB() *sql.DB {
	return q.db
}

// isFinal reports errors that another attempt cannot fix.
func isFinal(err error) bool {
	return errors.Is(err, sql.ErrNoRows) ||
		errors.Is(err, ErrAccountExists) ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrNotLoggedIn) ||
		errors.Is(err, ErrAccountNotFound)
}
