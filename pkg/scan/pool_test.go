package scan

import (
	"sync/atomic"
	"testing"
)

func TestPoolForkRunsEveryTask(t *testing.T) {
	p := newPool(4)

	var counter int64
	tasks := make([]func(), 50)
	for i := range tasks {
		tasks[i] = func() {
			atomic.AddInt64(&counter, 1)
		}
	}

	p.fork(tasks)

	if got := atomic.LoadInt64(&counter); got != int64(len(tasks)) {
		t.Fatalf("expected all %d tasks to run, got %d", len(tasks), got)
	}
}

func TestPoolForkSingleTaskRunsInline(t *testing.T) {
	p := newPool(4)

	ran := false
	p.fork([]func(){func() { ran = true }})

	if !ran {
		t.Fatalf("expected the single task to run")
	}
}

func TestNewPoolClampsBelowOne(t *testing.T) {
	p := newPool(0)
	if cap(p.tokens) != 1 {
		t.Fatalf("expected a non-positive capacity to clamp to 1, got %d", cap(p.tokens))
	}
}
