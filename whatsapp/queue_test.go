package whatsapp

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sagarregmi2056/WhatsappBulkMessage/model"
)

// instrumentedSender asserts that the queue never overlaps transport calls.
type instrumentedSender struct {
	mu       sync.Mutex
	order    []string
	attempts map[string]int
	failFor  map[string]error
	failN    map[string]int // fail the first N attempts, then succeed

	inFlight    int32
	maxInFlight int32
	delay       time.Duration
}

func newInstrumentedSender() *instrumentedSender {
	return &instrumentedSender{
		attempts: map[string]int{},
		failFor:  map[string]error{},
		failN:    map[string]int{},
	}
}

func (s *instrumentedSender) Send(ctx context.Context, chatID, message string, media *model.Media) error {
	current := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)
	for {
		max := atomic.LoadInt32(&s.maxInFlight)
		if current <= max || atomic.CompareAndSwapInt32(&s.maxInFlight, max, current) {
			break
		}
	}

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	s.order = append(s.order, chatID)
	s.attempts[chatID]++
	attempt := s.attempts[chatID]
	err := s.failFor[chatID]
	if n, ok := s.failN[chatID]; ok && attempt <= n {
		err = &TransportError{Detail: "transient"}
	}
	s.mu.Unlock()

	return err
}

func TestQueue_FIFOSingleFlight(t *testing.T) {
	sender := newInstrumentedSender()
	sender.delay = 2 * time.Millisecond

	queue := NewQueue(sender, QueueConfig{MaxRetries: 0})
	queue.Start(context.Background())
	defer queue.Stop()

	var futures []<-chan Result
	var expected []string
	for i := 0; i < 10; i++ {
		chatID := fmt.Sprintf("977984123456%d", i)
		expected = append(expected, chatID)
		futures = append(futures, queue.Enqueue(Task{ChatID: chatID, Message: "hi"}))
	}

	for _, future := range futures {
		result := <-future
		require.NoError(t, result.Err)
		require.False(t, result.Timestamp.IsZero())
	}

	require.Equal(t, expected, sender.order)
	require.Equal(t, int32(1), sender.maxInFlight, "transport calls must never overlap")
}

func TestQueue_PacesSends(t *testing.T) {
	sender := newInstrumentedSender()

	queue := NewQueue(sender, QueueConfig{MessageDelay: 20 * time.Millisecond})
	queue.Start(context.Background())
	defer queue.Stop()

	start := time.Now()
	var futures []<-chan Result
	for i := 0; i < 3; i++ {
		futures = append(futures, queue.Enqueue(Task{ChatID: "977", Message: "hi"}))
	}
	for _, future := range futures {
		require.NoError(t, (<-future).Err)
	}

	// first send is immediate, the next two wait one delay each
	require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestQueue_RetriesTransientFailures(t *testing.T) {
	sender := newInstrumentedSender()
	sender.failN["9779841234567"] = 2

	queue := NewQueue(sender, QueueConfig{MaxRetries: 3})
	queue.Start(context.Background())
	defer queue.Stop()

	result := <-queue.Enqueue(Task{ChatID: "9779841234567", Message: "hi"})

	require.NoError(t, result.Err)
	require.Equal(t, 3, sender.attempts["9779841234567"])
}

func TestQueue_GivesUpAfterRetryBudget(t *testing.T) {
	sender := newInstrumentedSender()
	sender.failFor["9779841234567"] = &TransportError{Detail: "still down"}

	queue := NewQueue(sender, QueueConfig{MaxRetries: 2})
	queue.Start(context.Background())
	defer queue.Stop()

	result := <-queue.Enqueue(Task{ChatID: "9779841234567", Message: "hi"})

	require.Error(t, result.Err)
	transportErr := &TransportError{}
	require.ErrorAs(t, result.Err, &transportErr)
	require.Equal(t, 3, sender.attempts["9779841234567"], "initial attempt plus two retries")
}

func TestQueue_DoesNotRetryNotReady(t *testing.T) {
	sender := newInstrumentedSender()
	sender.failFor["9779841234567"] = ErrNotReady

	queue := NewQueue(sender, QueueConfig{MaxRetries: 5})
	queue.Start(context.Background())
	defer queue.Stop()

	result := <-queue.Enqueue(Task{ChatID: "9779841234567", Message: "hi"})

	require.ErrorIs(t, result.Err, ErrNotReady)
	require.Equal(t, 1, sender.attempts["9779841234567"])
}

func TestQueue_EnqueueAfterStop(t *testing.T) {
	sender := newInstrumentedSender()

	queue := NewQueue(sender, QueueConfig{})
	queue.Start(context.Background())
	queue.Stop()

	result := <-queue.Enqueue(Task{ChatID: "9779841234567", Message: "hi"})

	require.Error(t, result.Err)
	require.Empty(t, sender.order)
}
