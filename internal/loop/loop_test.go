package loop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRunsInOrder(t *testing.T) {
	l := New(0, nil)
	var got []int
	for i := 0; i < 3; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	l.Drain()
	assert.Equal(t, []int{0, 1, 2}, got)
}

func TestFrameDefersNestedRequests(t *testing.T) {
	l := New(0, nil)
	var got []string

	l.RequestFrame(func() {
		got = append(got, "first")
		l.RequestFrame(func() { got = append(got, "second") })
	})

	l.Frame()
	assert.Equal(t, []string{"first"}, got)

	_, frames := l.Pending()
	assert.Equal(t, 1, frames)

	l.Frame()
	assert.Equal(t, []string{"first", "second"}, got)
}

func TestDrainRunsTasksThenFrames(t *testing.T) {
	l := New(0, nil)
	var got []string

	l.Post(func() {
		got = append(got, "task")
		l.RequestFrame(func() {
			got = append(got, "frame")
			l.Post(func() { got = append(got, "late task") })
		})
	})
	l.Drain()

	assert.Equal(t, []string{"task", "frame", "late task"}, got)
	tasks, frames := l.Pending()
	assert.Zero(t, tasks)
	assert.Zero(t, frames)
}

func TestPanicIsRecovered(t *testing.T) {
	l := New(0, nil)
	ran := false
	l.Post(func() { panic("boom") })
	l.Post(func() { ran = true })

	assert.NotPanics(t, l.Drain)
	assert.True(t, ran)
}

func TestRunProcessesPostsFromOtherGoroutines(t *testing.T) {
	l := New(time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	var wg sync.WaitGroup
	var mu sync.Mutex
	count := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Post(func() {
				mu.Lock()
				count++
				mu.Unlock()
			})
		}()
	}
	wg.Wait()

	painted := make(chan struct{})
	l.Post(func() { l.RequestFrame(func() { close(painted) }) })

	select {
	case <-painted:
	case <-time.After(2 * time.Second):
		t.Fatal("frame never painted")
	}

	mu.Lock()
	assert.Equal(t, 10, count)
	mu.Unlock()

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
