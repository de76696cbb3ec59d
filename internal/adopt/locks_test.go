package adopt

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"adopt-go/internal/model"
)

func TestKeyLocks_SerializesSameKey(t *testing.T) {
	locks := newKeyLocks()
	key := model.NewKey("alice", []byte("r1"))

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock(key)
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxInside)
	}
	if n := locks.size(); n != 0 {
		t.Errorf("size() after release = %d, want 0", n)
	}
}

func TestKeyLocks_IndependentKeys(t *testing.T) {
	locks := newKeyLocks()

	unlockA := locks.lock(model.NewKey("alice", []byte("r1")))
	defer unlockA()

	done := make(chan struct{})
	go func() {
		// Same resource ID under another owner is a different key.
		unlock := locks.lock(model.NewKey("bob", []byte("r1")))
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
	if n := locks.size(); n != 1 {
		t.Errorf("size() = %d, want 1", n)
	}
}
