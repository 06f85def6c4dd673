package gateway

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	k := newKeyedMutex()
	var (
		mu      sync.Mutex
		order   []int
		wg      sync.WaitGroup
		holding = make(chan struct{})
	)

	unlock := k.Lock("room")
	for i := 1; i <= 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-holding
			release := k.Lock("room")
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			release()
		}(i)
	}
	close(holding)
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	assert.Empty(t, order, "nobody may enter while the key is held")
	mu.Unlock()

	unlock()
	wg.Wait()
	assert.Len(t, order, 3)
	assert.Equal(t, 0, k.len())
}

func TestKeyedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := k.Lock("b")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b waited for a")
	}
	assert.Equal(t, 1, k.len())
}
