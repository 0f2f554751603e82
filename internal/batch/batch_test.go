package batch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/0DidUStudy/ragchat/internal/controller"
	"github.com/0DidUStudy/ragchat/internal/history"
	"github.com/0DidUStudy/ragchat/internal/identity"
)

// slowDispatcher answers after a fixed delay and records the maximum number
// of concurrent in-flight calls.
type slowDispatcher struct {
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (d *slowDispatcher) Send(ctx context.Context, question string, id identity.Identity) history.Message {
	n := d.inFlight.Add(1)
	defer d.inFlight.Add(-1)
	for {
		seen := d.maxSeen.Load()
		if n <= seen || d.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	time.Sleep(d.delay)
	return history.NewAssistantMessage("回答："+question, nil)
}

func TestRun_SequentialNeverOverlapping(t *testing.T) {
	d := &slowDispatcher{delay: 50 * time.Millisecond}
	store := history.NewStore(history.NewMemoryBackend())
	c := controller.New(store, d, identity.Identity{})

	questions := []string{"什么是栈？", "什么是队列？", "什么是图？"}
	r := NewRunner(c, questions, 10*time.Millisecond)

	start := time.Now()
	submitted := r.Run(context.Background())
	elapsed := time.Since(start)

	require.Equal(t, 3, submitted)
	require.EqualValues(t, 1, d.maxSeen.Load(), "dispatches must never overlap")
	require.GreaterOrEqual(t, elapsed, 3*d.delay, "total time must reflect sequential dispatch")

	msgs := c.Messages()
	require.Len(t, msgs, 1+2*len(questions))
	for i, q := range questions {
		require.Equal(t, history.RoleUser, msgs[1+2*i].Role)
		require.Equal(t, q, msgs[1+2*i].Content)
		require.Equal(t, history.RoleAssistant, msgs[2+2*i].Role)
	}
}

// rejectingSubmitter rejects every question after the first.
type rejectingSubmitter struct {
	accepted int
}

func (s *rejectingSubmitter) Submit(ctx context.Context, text string) bool {
	if s.accepted >= 1 {
		return false
	}
	s.accepted++
	return true
}

func TestRun_SkipsRejectedWithoutRetry(t *testing.T) {
	s := &rejectingSubmitter{}
	r := NewRunner(s, []string{"a", "b", "c"}, time.Millisecond)

	submitted := r.Run(context.Background())
	require.Equal(t, 1, submitted)
	require.Equal(t, 1, s.accepted)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	d := &slowDispatcher{delay: 5 * time.Millisecond}
	store := history.NewStore(history.NewMemoryBackend())
	c := controller.New(store, d, identity.Identity{})

	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunner(c, []string{"a", "b", "c"}, time.Hour)

	done := make(chan int, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case submitted := <-done:
		require.Equal(t, 1, submitted, "cancel during the pacing interval stops the run")
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after cancel")
	}
}

func TestNewRunner_DefaultInterval(t *testing.T) {
	r := NewRunner(&rejectingSubmitter{}, nil, 0)
	require.Equal(t, 2*time.Second, r.interval)
}
