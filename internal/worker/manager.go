package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"loomgraph/internal/logger"
	"loomgraph/internal/queue"
)

const (
	// DefaultWorkerCount is the default number of worker goroutines
	DefaultWorkerCount = 2

	// DefaultBatchSize is the number of messages to read per batch
	DefaultBatchSize = 10

	// DefaultBlockTimeout is how long to block waiting for new messages
	DefaultBlockTimeout = 5 * time.Second
)

// Manager orchestrates worker goroutines that consume from Redis Streams.
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

// ManagerConfig holds configuration for the worker manager.
type ManagerConfig struct {
	WorkerCount  int           // Number of worker goroutines
	BatchSize    int64         // Messages per read
	BlockTimeout time.Duration // Block time for XREADGROUP
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		WorkerCount:  DefaultWorkerCount,
		BatchSize:    DefaultBatchSize,
		BlockTimeout: DefaultBlockTimeout,
	}
}

// NewManager creates a new worker manager.
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

// Start begins the worker goroutines.
// Call Stop() to gracefully shut down.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	if err := m.consumer.EnsureGroup(m.ctx, queue.StreamFeed, queue.ConsumerGroupFeed); err != nil {
		return err
	}

	for i := 0; i < m.workerCount; i++ {
		workerID := i + 1
		consumerName := fmt.Sprintf("worker-%d", workerID)

		m.wg.Add(1)
		go m.runWorker(workerID, consumerName)
	}

	logger.Get().Info("feed workers started",
		zap.Int("workers", m.workerCount),
		zap.String("stream", queue.StreamFeed),
		zap.String("group", queue.ConsumerGroupFeed))
	return nil
}

// Stop gracefully shuts down all workers.
// Blocks until all workers have finished.
func (m *Manager) Stop() {
	m.cancel()
	m.wg.Wait()
	logger.Get().Info("feed workers stopped")
}

// runWorker is the main loop for a single worker goroutine.
func (m *Manager) runWorker(workerID int, consumerName string) {
	defer m.wg.Done()

	// Crash recovery: drain anything delivered to this consumer name
	// before the last shutdown.
	m.processPending(workerID, consumerName)

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
			m.processMessages(workerID, consumerName)
		}
	}
}

// processPending handles messages that were delivered but not acknowledged.
func (m *Manager) processPending(workerID int, consumerName string) {
	for {
		messages, err := m.consumer.ReadPending(m.ctx, queue.StreamFeed, queue.ConsumerGroupFeed, consumerName, m.batchSize)
		if err != nil {
			logger.Get().Warn("reading pending messages failed",
				zap.Int("worker", workerID),
				zap.Error(err))
			return
		}
		if len(messages) == 0 {
			return
		}
		m.handleMessages(workerID, messages)
	}
}

// processMessages reads and handles a batch of messages.
func (m *Manager) processMessages(workerID int, consumerName string) {
	messages, err := m.consumer.Read(
		m.ctx,
		queue.StreamFeed,
		queue.ConsumerGroupFeed,
		consumerName,
		m.batchSize,
		m.blockTime,
	)
	if err != nil {
		logger.Get().Warn("reading stream failed",
			zap.Int("worker", workerID),
			zap.Error(err))
		time.Sleep(time.Second)
		return
	}
	if len(messages) == 0 {
		return
	}
	m.handleMessages(workerID, messages)
}

// handleMessages processes a batch of messages and acknowledges them.
// Failed messages are still acked: the feed cache is rebuildable from
// the graph, so a retry loop hurts more than a dropped fan-out.
func (m *Manager) handleMessages(workerID int, messages []queue.Message) {
	for _, msg := range messages {
		if err := m.handleMessage(msg); err != nil {
			logger.Get().Warn("event handling failed",
				zap.Int("worker", workerID),
				zap.String("message_id", msg.ID),
				zap.String("type", msg.Event.Type),
				zap.Error(err))
		}
		if err := m.consumer.Ack(m.ctx, queue.StreamFeed, queue.ConsumerGroupFeed, msg.ID); err != nil {
			logger.Get().Warn("ack failed",
				zap.Int("worker", workerID),
				zap.String("message_id", msg.ID),
				zap.Error(err))
		}
	}
}

// handleMessage runs a single event through the handler, converting a
// panic into an error so one poisoned message can't take the worker
// pool down.
func (m *Manager) handleMessage(msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic handling event: %v", r)
		}
	}()
	return m.handler.HandleEvent(m.ctx, msg.Event)
}
