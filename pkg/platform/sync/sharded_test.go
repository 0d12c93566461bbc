package sync

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShardedMutex_SameKeySerializes(t *testing.T) {
	m := NewShardedMutex()
	counter := 0

	var wg sync.WaitGroup
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Do("item:requester", func() error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 200, counter)
}

func TestShardedMutex_DifferentKeysDoNotDeadlock(t *testing.T) {
	m := NewShardedMutexN(4)

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			m.Lock(key)
			m.Unlock(key)
		}(fmt.Sprintf("key-%d", i))
	}
	wg.Wait()
}

func TestShardedMutex_ShardForIsStable(t *testing.T) {
	m := NewShardedMutex()
	assert.Equal(t, m.shardFor("a:b"), m.shardFor("a:b"))
	assert.Equal(t, 0, m.shardFor(""))
	assert.Equal(t, 0, NewShardedMutexN(0).shardFor("anything"))
}

func TestShardedMutex_DoReturnsError(t *testing.T) {
	m := NewShardedMutex()
	want := errors.New("boom")
	assert.ErrorIs(t, m.Do("k", func() error { return want }), want)

	// lock released after error
	m.Lock("k")
	m.Unlock("k")
}
