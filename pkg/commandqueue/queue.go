package commandqueue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrLaneReset is returned to tasks rejected because their lane was
	// reset while they were queued.
	ErrLaneReset = errors.New("lane reset")

	// ErrQueueClosed is returned when a task is enqueued after Close
	ErrQueueClosed = errors.New("queue closed")
)

// Task is one unit of work executed on a lane
type Task func(ctx context.Context) error

// taskRecord tracks a queued task until it finishes
type taskRecord struct {
	id         int
	task       Task
	ctx        context.Context
	generation int
	enqueuedAt time.Time
	result     chan error
}

// laneState holds the execution state of one lane
type laneState struct {
	mu         sync.Mutex
	generation int
	queue      []*taskRecord
	running    int
}

// Queue serializes tasks per lane while letting lanes run concurrently
type Queue struct {
	mu        sync.RWMutex
	lanes     map[string]*laneState
	taskIDSeq int
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	logger    zerolog.Logger
}

// New creates a queue
func New(logger zerolog.Logger) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		lanes:  make(map[string]*laneState),
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With().Str("component", "commandqueue").Logger(),
	}
}

// lane returns the named lane, creating it on first use
func (q *Queue) lane(name string) *laneState {
	q.mu.RLock()
	ls, exists := q.lanes[name]
	q.mu.RUnlock()
	if exists {
		return ls
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if ls, exists = q.lanes[name]; !exists {
		ls = &laneState{}
		q.lanes[name] = ls
		q.logger.Debug().Str("lane", name).Msg("Lane initialized")
	}
	return ls
}

// Enqueue queues a task on the lane and blocks until it finishes. The task's
// error (or the rejection error for tasks fenced off by a reset) is returned.
func (q *Queue) Enqueue(ctx context.Context, name string, task Task) error {
	if err := q.ctx.Err(); err != nil {
		return ErrQueueClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ls := q.lane(name)

	q.mu.Lock()
	q.taskIDSeq++
	id := q.taskIDSeq
	q.mu.Unlock()

	record := &taskRecord{
		id:         id,
		task:       task,
		ctx:        ctx,
		enqueuedAt: time.Now(),
		result:     make(chan error, 1),
	}

	ls.mu.Lock()
	record.generation = ls.generation
	ls.queue = append(ls.queue, record)
	queueSize := len(ls.queue)
	ls.mu.Unlock()

	q.logger.Debug().
		Str("lane", name).
		Int("task_id", id).
		Int("queue_size", queueSize).
		Msg("Task enqueued")

	go q.processLane(name, ls)

	return <-record.result
}

// processLane starts the next queued task when the lane is idle. A lane runs
// one task at a time so same-chat events stay serialized.
func (q *Queue) processLane(name string, ls *laneState) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	for ls.running == 0 && len(ls.queue) > 0 {
		record := ls.queue[0]
		ls.queue = ls.queue[1:]

		// A reset while the task sat queued fences it off.
		if record.generation != ls.generation {
			record.result <- ErrLaneReset
			close(record.result)
			continue
		}

		ls.running++
		q.wg.Add(1)
		go q.executeTask(name, ls, record)
	}
}

func (q *Queue) executeTask(name string, ls *laneState, record *taskRecord) {
	defer q.wg.Done()

	runCtx, cancel := context.WithCancel(record.ctx)
	stop := context.AfterFunc(q.ctx, cancel)
	defer func() {
		stop()
		cancel()
	}()

	start := time.Now()
	err := record.task(runCtx)
	took := time.Since(start)

	ls.mu.Lock()
	ls.running--
	ls.mu.Unlock()

	record.result <- err
	close(record.result)

	if err != nil {
		q.logger.Debug().
			Str("lane", name).
			Int("task_id", record.id).
			Dur("took", took).
			Err(err).
			Msg("Task failed")
	} else {
		q.logger.Debug().
			Str("lane", name).
			Int("task_id", record.id).
			Dur("took", took).
			Msg("Task completed")
	}

	go q.processLane(name, ls)
}

// ResetLane bumps the lane's generation and rejects everything still queued.
// The task currently running is not interrupted here; callers cancel it
// through their own state (a session reset cancels its delivery context).
func (q *Queue) ResetLane(name string) int {
	q.mu.RLock()
	ls, exists := q.lanes[name]
	q.mu.RUnlock()
	if !exists {
		return 0
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	ls.generation++
	rejected := len(ls.queue)
	for _, record := range ls.queue {
		record.result <- ErrLaneReset
		close(record.result)
	}
	ls.queue = nil

	if rejected > 0 {
		q.logger.Info().Str("lane", name).Int("rejected", rejected).Msg("Lane reset")
	}
	return rejected
}

// QueueSize returns how many tasks wait on the lane
func (q *Queue) QueueSize(name string) int {
	q.mu.RLock()
	ls, exists := q.lanes[name]
	q.mu.RUnlock()
	if !exists {
		return 0
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	return len(ls.queue)
}

// Running returns how many tasks the lane is executing
func (q *Queue) Running(name string) int {
	q.mu.RLock()
	ls, exists := q.lanes[name]
	q.mu.RUnlock()
	if !exists {
		return 0
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.running
}

// Stats returns queued and running counts per lane
func (q *Queue) Stats() map[string]map[string]int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	stats := make(map[string]map[string]int, len(q.lanes))
	for name, ls := range q.lanes {
		ls.mu.Lock()
		stats[name] = map[string]int{
			"queued":  len(ls.queue),
			"running": ls.running,
		}
		ls.mu.Unlock()
	}
	return stats
}

// Drain waits for running tasks to finish, up to the timeout
func (q *Queue) Drain(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		idle := true
		q.mu.RLock()
		for _, ls := range q.lanes {
			ls.mu.Lock()
			if ls.running > 0 || len(ls.queue) > 0 {
				idle = false
			}
			ls.mu.Unlock()
		}
		q.mu.RUnlock()

		if idle {
			return true
		}
		if time.Now().After(deadline) {
			q.logger.Warn().Dur("timeout", timeout).Msg("Timed out draining queue")
			return false
		}
		<-ticker.C
	}
}

// Close cancels running task contexts and waits for them to return
func (q *Queue) Close() error {
	q.cancel()
	q.wg.Wait()
	return nil
}
