package concurrency

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireNeverExceedsMax(t *testing.T) {
	m := NewManager(Config{Limits: map[NodeType]int{NodeTypeAgent: 2}})

	p1, err := m.Acquire(context.Background(), NodeTypeAgent)
	require.NoError(t, err)
	p2, err := m.Acquire(context.Background(), NodeTypeAgent)
	require.NoError(t, err)

	assert.Equal(t, int64(2), m.Stats(NodeTypeAgent).CurrentActive)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Acquire(ctx, NodeTypeAgent)
	assert.Error(t, err)

	p1.Release()
	p2.Release()
	assert.Equal(t, int64(0), m.Stats(NodeTypeAgent).CurrentActive)
}

func TestDropReleasesPermitForNextAcquirer(t *testing.T) {
	m := NewManager(Config{Limits: map[NodeType]int{NodeTypeAgent: 1}})

	p1, err := m.Acquire(context.Background(), NodeTypeAgent)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		p2, err := m.Acquire(context.Background(), NodeTypeAgent)
		require.NoError(t, err)
		p2.Release()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	p1.Release()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second acquirer deadlocked after release")
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	m := NewManager(Config{Limits: map[NodeType]int{NodeTypeAgent: 1}})
	p, err := m.Acquire(context.Background(), NodeTypeAgent)
	require.NoError(t, err)
	p.Release()
	p.Release()
	assert.Equal(t, int64(0), m.Stats(NodeTypeAgent).CurrentActive)
}

func TestConcurrentAcquireReleaseReturnsToZero(t *testing.T) {
	m := NewManager(Config{Limits: map[NodeType]int{NodeTypeAgent: 3}})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := m.Acquire(context.Background(), NodeTypeAgent)
			if err != nil {
				return
			}
			time.Sleep(time.Millisecond)
			p.Release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(0), m.Stats(NodeTypeAgent).CurrentActive)
}

func TestUnknownNodeTypeFallsBackToQuarterGlobal(t *testing.T) {
	m := NewManager(Config{Limits: map[NodeType]int{NodeTypeGlobal: 16}})
	s := m.Stats(NodeType("custom"))
	assert.Equal(t, int64(0), s.CurrentActive)

	for i := 0; i < 4; i++ {
		p, err := m.Acquire(context.Background(), NodeType("custom"))
		require.NoError(t, err)
		defer p.Release()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := m.Acquire(ctx, NodeType("custom"))
	assert.Error(t, err)
}
