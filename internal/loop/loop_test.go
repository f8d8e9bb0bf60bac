package loop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManual_RunsTimersInDueOrder(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	var got []string
	m.AfterFunc(30*time.Millisecond, func() { got = append(got, "c") })
	m.AfterFunc(10*time.Millisecond, func() { got = append(got, "a") })
	m.AfterFunc(10*time.Millisecond, func() { got = append(got, "b") })

	m.Advance(20 * time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, got)

	m.Advance(20 * time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, 0, m.Pending())
}

func TestManual_StopPreventsCallback(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	fired := false
	timer := m.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second stop reports nothing was prevented")
	m.Advance(2 * time.Second)
	assert.False(t, fired)
}

func TestManual_NestedScheduling(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	var at []time.Duration
	start := m.Now()
	m.AfterFunc(10*time.Millisecond, func() {
		at = append(at, m.Now().Sub(start))
		m.AfterFunc(5*time.Millisecond, func() {
			at = append(at, m.Now().Sub(start))
		})
	})

	m.Advance(100 * time.Millisecond)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 15 * time.Millisecond}, at)
	assert.Equal(t, 100*time.Millisecond, m.Now().Sub(start))
}

func TestLoop_DoRunsOnLoop(t *testing.T) {
	l := New(8, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	ran := false
	require.NoError(t, l.Do(ctx, func() { ran = true }))
	assert.True(t, ran)
}

func TestLoop_StoppedTimerDoesNotFire(t *testing.T) {
	l := New(8, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	fired := make(chan struct{}, 1)
	timer := l.AfterFunc(20*time.Millisecond, func() { fired <- struct{}{} })
	timer.Stop()

	select {
	case <-fired:
		t.Fatal("stopped timer fired")
	case <-time.After(80 * time.Millisecond):
	}
}

func TestLoop_RecoversFromPanic(t *testing.T) {
	l := New(8, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	l.Post(func() { panic("boom") })
	ran := false
	require.NoError(t, l.Do(ctx, func() { ran = true }))
	assert.True(t, ran)
}

func TestLoop_DoAfterStop(t *testing.T) {
	l := New(1, nil)
	l.Stop()
	err := l.Do(context.Background(), func() {})
	assert.ErrorIs(t, err, ErrStopped)
}
