package workerpool

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoom_Collect(t *testing.T) {
	wp := NewWorkerPool(Config{WorkerCount: 4})
	defer wp.Close()

	room := wp.CreateRoom(10)
	for i := 0; i < 10; i++ {
		i := i
		require.NoError(t, room.NewTaskWaitForFreeSlot(context.Background(), func() interface{} {
			return i * i
		}))
	}

	results := room.Collect()
	require.Len(t, results, 10)

	got := make([]int, 0, len(results))
	for _, r := range results {
		got = append(got, r.(int))
	}
	sort.Ints(got)
	assert.Equal(t, []int{0, 1, 4, 9, 16, 25, 36, 49, 64, 81}, got)
}

func TestRoom_AsyncCollectorMoreTasksThanBuffer(t *testing.T) {
	wp := NewWorkerPool(Config{WorkerCount: 3, GlobalBuffer: 4})
	defer wp.Close()

	room := wp.CreateRoom(2)
	room.AsyncCollector()
	room.AsyncCollector() // second call is a no-op

	const tasks = 500
	for i := 0; i < tasks; i++ {
		require.NoError(t, room.NewTaskWaitForFreeSlot(context.Background(), func() interface{} {
			return 1
		}))
	}

	results := room.GetAsyncResults()
	assert.Len(t, results, tasks)
}

func TestJoinErrors(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")

	assert.NoError(t, JoinErrors([]interface{}{nil, 1, "x"}))

	err := JoinErrors([]interface{}{errA, nil, errB, 3})
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
}

func TestWorkerPool_Close(t *testing.T) {
	wp := NewWorkerPool(Config{WorkerCount: 2})
	assert.Equal(t, 2, wp.WorkerCount())

	room := wp.CreateRoom(1)
	require.NoError(t, room.NewTaskWaitForFreeSlot(context.Background(), func() interface{} { return nil }))
	assert.Len(t, room.Collect(), 1)

	wp.Close()
	wp.Close()

	err := wp.CreateRoom(1).NewTaskWaitForFreeSlot(context.Background(), func() interface{} { return nil })
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestRoom_CancelledContext(t *testing.T) {
	wp := NewWorkerPool(Config{WorkerCount: 1, GlobalBuffer: 1})
	defer wp.Close()

	block := make(chan struct{})
	room := wp.CreateRoom(4)
	room.AsyncCollector()

	// one task occupies the worker, one fills the queue
	for i := 0; i < 2; i++ {
		require.NoError(t, room.NewTaskWaitForFreeSlot(context.Background(), func() interface{} {
			<-block
			return nil
		}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := room.NewTaskWaitForFreeSlot(ctx, func() interface{} { return nil })
	assert.ErrorIs(t, err, context.Canceled)

	close(block)
	assert.Len(t, room.GetAsyncResults(), 2)
}
