package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func collect(t *testing.T, ch <-chan int, n int) []int {
	t.Helper()
	out := make([]int, 0, n)
	for len(out) < n {
		select {
		case v := <-ch:
			out = append(out, v)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d jobs", len(out), n)
		}
	}
	return out
}

func TestEnqueue_PositionsBeforeWorkerStarts(t *testing.T) {
	q := New(zerolog.Nop())

	for i := 1; i <= 3; i++ {
		pos := q.Enqueue(Job{ID: "j", Run: func(context.Context) error { return nil }})
		if pos != i {
			t.Fatalf("position for job %d = %d", i, pos)
		}
	}
	if q.Size() != 3 {
		t.Fatalf("Size = %d, want 3", q.Size())
	}
}

func TestWorker_RunsJobsInFIFOOrder(t *testing.T) {
	q := New(zerolog.Nop())
	ran := make(chan int, 5)

	for i := 1; i <= 5; i++ {
		i := i
		q.Enqueue(Job{ID: "j", Run: func(context.Context) error {
			ran <- i
			return nil
		}})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	got := collect(t, ran, 5)
	for i, v := range got {
		if v != i+1 {
			t.Fatalf("order = %v", got)
		}
	}
}

func TestWorker_SurvivesPanicsAndErrors(t *testing.T) {
	q := New(zerolog.Nop())
	ran := make(chan int, 3)

	q.Enqueue(Job{ID: "boom", Run: func(context.Context) error {
		ran <- 1
		panic("kaboom")
	}})
	q.Enqueue(Job{ID: "bad", Run: func(context.Context) error {
		ran <- 2
		return errors.New("job failed")
	}})
	q.Enqueue(Job{ID: "fine", Run: func(context.Context) error {
		ran <- 3
		return nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	got := collect(t, ran, 3)
	if got[2] != 3 {
		t.Fatalf("jobs after a panic did not run: %v", got)
	}
}

func TestWorker_NeverRunsJobsConcurrently(t *testing.T) {
	q := New(zerolog.Nop())

	var (
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	done := make(chan int, 10)

	for i := 0; i < 10; i++ {
		i := i
		q.Enqueue(Job{ID: "j", Run: func(context.Context) error {
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
			done <- i
			return nil
		}})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	collect(t, done, 10)
	mu.Lock()
	defer mu.Unlock()
	if maxSeen != 1 {
		t.Fatalf("observed %d concurrent jobs", maxSeen)
	}
}

func TestWorker_StopsOnContextCancel(t *testing.T) {
	q := New(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)

	ran := make(chan int, 1)
	q.Enqueue(Job{ID: "j", Run: func(context.Context) error {
		ran <- 1
		return nil
	}})
	collect(t, ran, 1)

	cancel()
	doneCh := make(chan struct{})
	go func() {
		q.Wait()
		close(doneCh)
	}()
	select {
	case <-doneCh:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not stop")
	}
}

func TestSize_IncludesInflightJob(t *testing.T) {
	q := New(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	started := make(chan struct{})
	release := make(chan struct{})
	q.Enqueue(Job{ID: "slow", Run: func(context.Context) error {
		close(started)
		<-release
		return nil
	}})

	<-started
	// The job is in flight and no longer pending, but still counts.
	if got := q.Size(); got != 1 {
		t.Fatalf("Size during in-flight job = %d, want 1", got)
	}
	pos := q.Enqueue(Job{ID: "next", Run: func(context.Context) error { return nil }})
	if pos != 2 {
		t.Fatalf("position behind in-flight job = %d, want 2", pos)
	}
	close(release)
}
