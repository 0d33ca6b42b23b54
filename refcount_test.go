package hwdec

import (
	"sync"
	"testing"
)

func TestRefCountFreesOnce(t *testing.T) {
	var r refCount
	r.init()

	freed := 0
	free := func() { freed++ }

	r.ref()
	r.ref()
	if n := r.unref(free); n != 2 || freed != 0 {
		t.Fatalf("unref() = %d, freed = %d; want 2, 0", n, freed)
	}
	r.unref(free)
	if n := r.unref(free); n != 0 {
		t.Fatalf("final unref() = %d, want 0", n)
	}
	if freed != 1 {
		t.Errorf("destructor ran %d times, want 1", freed)
	}
}

func TestRefCountConcurrent(t *testing.T) {
	var r refCount
	r.init()

	freed := 0
	const n = 64

	for i := 0; i < n; i++ {
		r.ref()
	}
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			r.unref(func() { freed++ })
		}()
	}
	wg.Wait()

	if freed != 0 {
		t.Fatalf("destructor ran with self-reference held")
	}
	r.unref(func() { freed++ })
	if freed != 1 {
		t.Errorf("destructor ran %d times, want 1", freed)
	}
}

func TestRefCountUnderflowPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("unref past zero did not panic")
		}
	}()
	var r refCount
	r.init()
	r.unref(func() {})
	r.unref(func() {})
}
