package whatsapp

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cskr/pubsub"
	"github.com/dchest/uniuri"
	"golang.org/x/time/rate"

	"github.com/sagarregmi2056/WhatsappBulkMessage/log"
	"github.com/sagarregmi2056/WhatsappBulkMessage/model"
)

const outTopic = "out"

var errQueueStopped = errors.New("delivery queue is stopped")

// Task is one personalized message addressed to one recipient. The queue
// owns the task for its whole lifetime.
type Task struct {
	ChatID  string
	Message string
	Media   *model.Media
}

// Result settles the future of one task.
type Result struct {
	Err       error
	Timestamp time.Time
}

type pendingTask struct {
	id   string
	task Task
	done chan Result
}

// MessageSender is the slice of Session the queue needs.
type MessageSender interface {
	Send(ctx context.Context, chatID, message string, media *model.Media) error
}

type QueueConfig struct {
	// MessageDelay paces consecutive sends; the provider penalizes bursts.
	MessageDelay time.Duration
	// MaxRetries bounds automatic retries per task on transport failure.
	MaxRetries int
	// Buffer sizes the subscription channel feeding the worker.
	Buffer int
}

// Queue serializes all outbound sends through exactly one worker goroutine.
// The single-worker bound is a correctness requirement: the transport is
// not safe for concurrent use and the provider keys abuse detection on
// send burstiness.
type Queue struct {
	sender  MessageSender
	cfg     QueueConfig
	limiter *rate.Limiter

	ps      *pubsub.PubSub
	out     chan interface{}
	stopped atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewQueue(sender MessageSender, cfg QueueConfig) *Queue {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1024
	}

	limit := rate.Inf
	if cfg.MessageDelay > 0 {
		limit = rate.Every(cfg.MessageDelay)
	}

	ps := pubsub.New(cfg.Buffer)
	return &Queue{
		sender:  sender,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		ps:      ps,
		out:     ps.Sub(outTopic),
		done:    make(chan struct{}),
	}
}

// Start launches the single worker.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
	go q.processOutgoing()
}

// Stop settles every queued task with an error and stops the worker.
func (q *Queue) Stop() {
	q.stopped.Store(true)
	if q.cancel != nil {
		q.cancel()
		<-q.done
	}
	q.ps.Shutdown()
}

// Enqueue appends one task to the FIFO and returns its future. The future
// channel is buffered; the result may be read at any later point.
func (q *Queue) Enqueue(task Task) <-chan Result {
	p := &pendingTask{
		id:   uniuri.NewLen(8),
		task: task,
		done: make(chan Result, 1),
	}

	if q.stopped.Load() {
		p.done <- Result{Err: errQueueStopped, Timestamp: time.Now()}
		return p.done
	}

	q.ps.Pub(p, outTopic)
	return p.done
}

func (q *Queue) processOutgoing() {
	defer close(q.done)

	for {
		select {
		case <-q.ctx.Done():
			q.drain()
			return
		case v, ok := <-q.out:
			if !ok {
				return
			}
			q.deliver(v.(*pendingTask))
		}
	}
}

// deliver sends one task, retrying transient transport failures, and
// settles its future. Every attempt waits on the pacing limiter first.
func (q *Queue) deliver(p *pendingTask) {
	var err error
	for attempt := 0; attempt <= q.cfg.MaxRetries; attempt++ {
		if werr := q.limiter.Wait(q.ctx); werr != nil {
			err = werr
			break
		}

		err = q.sender.Send(q.ctx, p.task.ChatID, p.task.Message, p.task.Media)
		if err == nil {
			break
		}

		var transportErr *TransportError
		if !errors.As(err, &transportErr) {
			// not transient (e.g. session not ready), no point retrying
			break
		}
		log.Warn.Println("send attempt", attempt+1, "failed for task", p.id, ":", err)
	}

	log.Trace.Println("task", p.id, "settled, err:", err)
	p.done <- Result{Err: err, Timestamp: time.Now()}
}

// drain settles whatever is still queued when the worker stops.
func (q *Queue) drain() {
	for {
		select {
		case v, ok := <-q.out:
			if !ok {
				return
			}
			p := v.(*pendingTask)
			p.done <- Result{Err: q.ctx.Err(), Timestamp: time.Now()}
		default:
			return
		}
	}
}
