// Package workerpool runs short tasks on a fixed set of goroutines. Tasks are
// grouped in rooms; a room collects the results of its own tasks only.
package workerpool

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

var ErrPoolClosed = errors.New("workerpool: pool is closed")

type WorkerPool struct {
	config    Config
	taskQueue chan Task
	closed    atomic.Bool
	workers   sync.WaitGroup
	closeOnce sync.Once
}

type Config struct {
	WorkerCount  int
	GlobalBuffer int
}

type Room struct {
	result               []interface{}
	resultMutex          sync.Mutex
	asyncCollectorWait   sync.WaitGroup
	asyncCollectorActive atomic.Bool
	resultChan           chan interface{}
	wg                   sync.WaitGroup
	closeOnce            sync.Once
	wp                   *WorkerPool
}

type Task struct {
	run  func() interface{}
	room *Room
}

func NewWorkerPool(config Config) *WorkerPool {
	if config.WorkerCount < 1 {
		config.WorkerCount = runtime.NumCPU() * 3
	}

	if config.GlobalBuffer < 1 {
		config.GlobalBuffer = 10000
	}

	wp := &WorkerPool{
		config:    config,
		taskQueue: make(chan Task, config.GlobalBuffer),
	}

	wp.workers.Add(config.WorkerCount)
	for i := 0; i < config.WorkerCount; i++ {
		go wp.worker()
	}

	return wp
}

func (wp *WorkerPool) WorkerCount() int {
	return wp.config.WorkerCount
}

func (wp *WorkerPool) worker() {
	defer wp.workers.Done()
	for t := range wp.taskQueue {
		t.room.resultChan <- t.run()
		t.room.wg.Done()
	}
}

// Close stops the workers after the queued tasks ran. Submitting to a closed
// pool fails with ErrPoolClosed.
func (wp *WorkerPool) Close() {
	wp.closeOnce.Do(func() {
		wp.closed.Store(true)
		close(wp.taskQueue)
	})
	wp.workers.Wait()
}

// CreateRoom returns a room whose result channel buffers size results.
// Rooms that may receive more tasks than that need AsyncCollector.
func (wp *WorkerPool) CreateRoom(size int) *Room {
	if size < 1 {
		size = 1
	}
	return &Room{
		resultChan: make(chan interface{}, size),
		wp:         wp,
	}
}

// NewTaskWaitForFreeSlot queues job, blocking while the global queue is full.
func (ro *Room) NewTaskWaitForFreeSlot(ctx context.Context, job func() interface{}) error {
	if ro.wp.closed.Load() {
		return ErrPoolClosed
	}

	ro.wg.Add(1)
	select {
	case ro.wp.taskQueue <- Task{run: job, room: ro}:
		return nil
	case <-ctx.Done():
		ro.wg.Done()
		return ctx.Err()
	}
}

// Collect waits for every task of the room and returns their results in
// completion order.
func (ro *Room) Collect() []interface{} {
	go ro.waitAndClose()
	results := make([]interface{}, 0)

	for result := range ro.resultChan {
		results = append(results, result)
	}

	return results
}

// AsyncCollector drains results while tasks are still being submitted.
func (ro *Room) AsyncCollector() {
	if !ro.asyncCollectorActive.CompareAndSwap(false, true) {
		return
	}
	ro.asyncCollectorWait.Add(1)

	go func() {
		defer ro.asyncCollectorWait.Done()

		ro.resultMutex.Lock()
		defer ro.resultMutex.Unlock()
		for result := range ro.resultChan {
			ro.result = append(ro.result, result)
		}
	}()
}

// GetAsyncResults waits for every task and returns what AsyncCollector
// gathered.
func (ro *Room) GetAsyncResults() []interface{} {
	go ro.waitAndClose()
	ro.asyncCollectorWait.Wait()

	ro.resultMutex.Lock()
	defer ro.resultMutex.Unlock()

	return ro.result
}

func (ro *Room) waitAndClose() {
	ro.wg.Wait()
	ro.closeOnce.Do(func() { close(ro.resultChan) })
}

// JoinErrors joins every error found among results. Other values are
// ignored.
func JoinErrors(results []interface{}) error {
	var errs []error
	for _, r := range results {
		if err, ok := r.(error); ok && err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
