package tick

import (
	"sync"
	"testing"
)

func TestDrainRunsInPostOrder(t *testing.T) {
	q := NewQueue()
	var got []int
	for i := 0; i < 3; i++ {
		q.Post(func() { got = append(got, i) })
	}

	if n := q.Len(); n != 3 {
		t.Fatalf("Len = %d, want 3", n)
	}
	if n := q.Drain(); n != 3 {
		t.Fatalf("Drain = %d, want 3", n)
	}
	if len(got) != 3 || got[0] != 0 || got[1] != 1 || got[2] != 2 {
		t.Fatalf("got %v, want [0 1 2]", got)
	}
	if n := q.Drain(); n != 0 {
		t.Fatalf("second Drain = %d, want 0", n)
	}
}

func TestPostDuringDrainDefers(t *testing.T) {
	q := NewQueue()
	ran := 0
	q.Post(func() {
		ran++
		q.Post(func() { ran++ })
	})

	q.Drain()
	if ran != 1 {
		t.Fatalf("ran = %d after first drain, want 1", ran)
	}
	q.Drain()
	if ran != 2 {
		t.Fatalf("ran = %d after second drain, want 2", ran)
	}
}

func TestConcurrentPostSingleDrainer(t *testing.T) {
	q := NewQueue()
	total := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Post(func() { total++ })
			}
		}()
	}
	wg.Wait()

	select {
	case <-q.Ready():
	default:
		t.Fatal("Ready should be signalled after Post")
	}

	q.Drain()
	if total != 800 {
		t.Fatalf("total = %d, want 800", total)
	}
}
