package worker

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/yong-jelly/usemap-sub002/internal/queue"
)

const (
	DefaultWorkerCount  = 2
	DefaultBatchSize    = 10
	DefaultBlockTimeout = 5 * time.Second

	// readRetryDelay is the pause after a failed stream read.
	readRetryDelay = time.Second
)

// Manager runs the goroutines that apply comment events to the caches and
// attachment store. Each goroutine is a named consumer in the comments group,
// so Redis spreads events across them and remembers what each left unacked.
type Manager struct {
	consumer    queue.Consumer
	handler     *Handler
	workerCount int
	batchSize   int64
	blockTime   time.Duration

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// ManagerConfig sizes the manager. Zero fields take the defaults.
type ManagerConfig struct {
	WorkerCount  int
	BatchSize    int64         // events per XREADGROUP
	BlockTimeout time.Duration // how long one read waits for events
}

func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		WorkerCount:  DefaultWorkerCount,
		BatchSize:    DefaultBatchSize,
		BlockTimeout: DefaultBlockTimeout,
	}
}

func NewManager(consumer queue.Consumer, handler *Handler, cfg ManagerConfig) *Manager {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultWorkerCount
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = DefaultBlockTimeout
	}

	return &Manager{
		consumer:    consumer,
		handler:     handler,
		workerCount: cfg.WorkerCount,
		batchSize:   cfg.BatchSize,
		blockTime:   cfg.BlockTimeout,
	}
}

// Start creates the comments consumer group if needed and launches the
// consumers. They run until ctx is cancelled or Stop is called.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	if err := m.consumer.EnsureGroup(m.ctx, queue.StreamComments, queue.ConsumerGroupComments); err != nil {
		return err
	}

	for i := 1; i <= m.workerCount; i++ {
		m.wg.Add(1)
		go m.consume(i, consumerName(i))
	}

	log.Printf("[CommentEvents] Started: stream=%s group=%s consumers=%d",
		queue.StreamComments, queue.ConsumerGroupComments, m.workerCount)
	return nil
}

// Stop cancels the consumers and waits for the events in hand to finish.
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.wg.Wait()
	log.Printf("[CommentEvents] Stopped")
}

func (m *Manager) consume(n int, name string) {
	defer m.wg.Done()

	// Events this consumer took before a restart but never acked come first.
	m.drainPending(n, name)

	for m.ctx.Err() == nil {
		m.readNew(n, name)
	}
}

func (m *Manager) drainPending(n int, name string) {
	for {
		messages, err := m.consumer.ReadPending(m.ctx, queue.StreamComments, queue.ConsumerGroupComments, name, m.batchSize)
		if err != nil {
			if m.ctx.Err() == nil {
				log.Printf("[CommentEvents-%d] ReadPending FAILED: err=%v", n, err)
			}
			return
		}
		if len(messages) == 0 {
			return
		}

		log.Printf("[CommentEvents-%d] Replaying %d unacked events", n, len(messages))
		m.apply(n, messages)
	}
}

func (m *Manager) readNew(n int, name string) {
	messages, err := m.consumer.Read(m.ctx, queue.StreamComments, queue.ConsumerGroupComments, name, m.batchSize, m.blockTime)
	if err != nil {
		if m.ctx.Err() != nil {
			return
		}
		log.Printf("[CommentEvents-%d] Read FAILED: err=%v", n, err)
		select {
		case <-m.ctx.Done():
		case <-time.After(readRetryDelay):
		}
		return
	}

	m.apply(n, messages)
}

// apply hands each event to the handler and acks it either way. A failed
// invalidation leaves a stale thread that its TTL or the next write clears;
// redelivering it would not do better.
func (m *Manager) apply(n int, messages []queue.Message) {
	for _, msg := range messages {
		if err := m.handler.HandleEvent(m.ctx, msg.Event); err != nil {
			log.Printf("[CommentEvents-%d] Event not applied: id=%s type=%s place=%s err=%v",
				n, msg.ID, msg.Event.Type, msg.Event.PlaceID, err)
		}

		if err := m.consumer.Ack(m.ctx, queue.StreamComments, queue.ConsumerGroupComments, msg.ID); err != nil {
			log.Printf("[CommentEvents-%d] Ack FAILED: id=%s err=%v", n, msg.ID, err)
		}
	}
}

// consumerName is stable per slot, so a restarted process picks up what the
// same slot left pending.
func consumerName(n int) string {
	return "comment-worker-" + strconv.Itoa(n)
}
