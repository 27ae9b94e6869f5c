package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Benrishty/finsync/internal/core/domain"
	"github.com/Benrishty/finsync/internal/core/ports/driven"
)

// mockTaskQueue implements driven.TaskQueue for testing
type mockTaskQueue struct {
	mu           sync.Mutex
	tasks        []*domain.Task
	dequeueDelay time.Duration
	ackFn        func(string) error
	nackFn       func(string, string) error
	pingFn       func() error
}

func newMockTaskQueue() *mockTaskQueue {
	return &mockTaskQueue{
		tasks: make([]*domain.Task, 0),
	}
}

func (m *mockTaskQueue) Enqueue(ctx context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, task)
	return nil
}

func (m *mockTaskQueue) EnqueueBatch(ctx context.Context, tasks []*domain.Task) error {
	for _, t := range tasks {
		if err := m.Enqueue(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockTaskQueue) Dequeue(ctx context.Context) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.tasks) == 0 {
		return nil, nil
	}
	task := m.tasks[0]
	m.tasks = m.tasks[1:]
	return task, nil
}

func (m *mockTaskQueue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	if m.dequeueDelay > 0 {
		select {
		case <-time.After(m.dequeueDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.Dequeue(ctx)
}

func (m *mockTaskQueue) Ack(ctx context.Context, taskID string) error {
	if m.ackFn != nil {
		return m.ackFn(taskID)
	}
	return nil
}

func (m *mockTaskQueue) Nack(ctx context.Context, taskID string, reason string) error {
	if m.nackFn != nil {
		return m.nackFn(taskID, reason)
	}
	return nil
}

func (m *mockTaskQueue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.ID == taskID {
			return t, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockTaskQueue) ListTasks(ctx context.Context, filter driven.TaskFilter) ([]*domain.Task, error) {
	return m.tasks, nil
}

func (m *mockTaskQueue) PurgeTasks(ctx context.Context, olderThan int) (int, error) {
	return 0, nil
}

func (m *mockTaskQueue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	return &driven.QueueStats{
		PendingCount: int64(len(m.tasks)),
	}, nil
}

func (m *mockTaskQueue) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn()
	}
	return nil
}

func (m *mockTaskQueue) Close() error {
	return nil
}

// mockOrchestrator implements driving.SyncOrchestrator for testing
type mockOrchestrator struct {
	syncItemFn     func(ctx context.Context, itemID string) (*domain.SyncResult, error)
	syncAllFn      func(ctx context.Context) ([]*domain.SyncResult, error)
	syncBalancesFn func(ctx context.Context) (int, error)
	backfillFn     func(ctx context.Context, itemID string, yearsBack int) (*domain.BackfillResult, error)
}

func (m *mockOrchestrator) SyncItem(ctx context.Context, itemID string) (*domain.SyncResult, error) {
	if m.syncItemFn != nil {
		return m.syncItemFn(ctx, itemID)
	}
	return &domain.SyncResult{ItemID: itemID}, nil
}

func (m *mockOrchestrator) SyncAll(ctx context.Context) ([]*domain.SyncResult, error) {
	if m.syncAllFn != nil {
		return m.syncAllFn(ctx)
	}
	return nil, nil
}

func (m *mockOrchestrator) SyncAccounts(ctx context.Context, itemID string) (int, error) {
	return 0, nil
}

func (m *mockOrchestrator) SyncBalances(ctx context.Context) (int, error) {
	if m.syncBalancesFn != nil {
		return m.syncBalancesFn(ctx)
	}
	return 0, nil
}

func (m *mockOrchestrator) Backfill(ctx context.Context, itemID string, yearsBack int) (*domain.BackfillResult, error) {
	if m.backfillFn != nil {
		return m.backfillFn(ctx, itemID, yearsBack)
	}
	return &domain.BackfillResult{ItemID: itemID}, nil
}

func TestNewWorker(t *testing.T) {
	w := NewWorker(Config{
		TaskQueue:      newMockTaskQueue(),
		Orchestrator:   &mockOrchestrator{},
		Logger:         slog.Default(),
		Concurrency:    2,
		DequeueTimeout: 5,
	})

	if w == nil {
		t.Fatal("expected non-nil worker")
	}
	if w.concurrency != 2 {
		t.Errorf("expected concurrency 2, got %d", w.concurrency)
	}
	if w.dequeueTimeout != 5 {
		t.Errorf("expected dequeue timeout 5, got %d", w.dequeueTimeout)
	}
}

func TestNewWorker_Defaults(t *testing.T) {
	w := NewWorker(Config{
		TaskQueue:    newMockTaskQueue(),
		Orchestrator: &mockOrchestrator{},
	})

	if w.concurrency != 1 {
		t.Errorf("expected default concurrency 1, got %d", w.concurrency)
	}
	if w.dequeueTimeout != 5 {
		t.Errorf("expected default dequeue timeout 5, got %d", w.dequeueTimeout)
	}
	if w.logger == nil {
		t.Error("expected default logger")
	}
}

func TestWorker_StartStop(t *testing.T) {
	queue := newMockTaskQueue()
	// Add delay so workers don't spin too fast
	queue.dequeueDelay = 100 * time.Millisecond

	w := NewWorker(Config{
		TaskQueue:      queue,
		Orchestrator:   &mockOrchestrator{},
		Concurrency:    1,
		DequeueTimeout: 1,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}

	health := w.Health(ctx)
	if !health.Running {
		t.Error("expected worker to be running")
	}

	// Start again should be no-op
	if err := w.Start(ctx); err != nil {
		t.Errorf("second start should not error: %v", err)
	}

	w.Stop()

	health = w.Health(ctx)
	if health.Running {
		t.Error("expected worker to be stopped")
	}

	// Stop again should be no-op
	w.Stop()
}

func TestWorker_Health_QueueError(t *testing.T) {
	queue := newMockTaskQueue()
	queue.pingFn = func() error {
		return errors.New("connection failed")
	}

	w := NewWorker(Config{
		TaskQueue:    queue,
		Orchestrator: &mockOrchestrator{},
	})

	health := w.Health(context.Background())
	if health.QueueHealth {
		t.Error("expected queue to be unhealthy")
	}
	if health.Error != "connection failed" {
		t.Errorf("expected error message, got %q", health.Error)
	}
}

func TestWorker_ProcessTask_SyncItem(t *testing.T) {
	queue := newMockTaskQueue()

	var acked []string
	queue.ackFn = func(taskID string) error {
		acked = append(acked, taskID)
		return nil
	}

	var syncedItem string
	orch := &mockOrchestrator{
		syncItemFn: func(ctx context.Context, itemID string) (*domain.SyncResult, error) {
			syncedItem = itemID
			return &domain.SyncResult{ItemID: itemID, Added: 3}, nil
		},
	}

	w := NewWorker(Config{TaskQueue: queue, Orchestrator: orch})

	task := domain.NewSyncItemTask("item-1")
	w.processTask(context.Background(), task, slog.Default())

	if syncedItem != "item-1" {
		t.Errorf("expected item-1 synced, got %q", syncedItem)
	}
	if len(acked) != 1 || acked[0] != task.ID {
		t.Errorf("expected task acked, got %v", acked)
	}
}

func TestWorker_ProcessTask_SyncItemFailure(t *testing.T) {
	queue := newMockTaskQueue()

	var nacked []string
	var nackReason string
	queue.nackFn = func(taskID, reason string) error {
		nacked = append(nacked, taskID)
		nackReason = reason
		return nil
	}

	orch := &mockOrchestrator{
		syncItemFn: func(ctx context.Context, itemID string) (*domain.SyncResult, error) {
			return nil, errors.New("provider unavailable")
		},
	}

	w := NewWorker(Config{TaskQueue: queue, Orchestrator: orch})

	task := domain.NewSyncItemTask("item-1")
	w.processTask(context.Background(), task, slog.Default())

	if len(nacked) != 1 {
		t.Fatalf("expected 1 nack, got %d", len(nacked))
	}
	if nackReason != "provider unavailable" {
		t.Errorf("unexpected nack reason: %q", nackReason)
	}
}

func TestWorker_ProcessTask_SyncInProgress(t *testing.T) {
	queue := newMockTaskQueue()

	var acked, nacked []string
	queue.ackFn = func(taskID string) error {
		acked = append(acked, taskID)
		return nil
	}
	queue.nackFn = func(taskID, reason string) error {
		nacked = append(nacked, taskID)
		return nil
	}

	orch := &mockOrchestrator{
		syncItemFn: func(ctx context.Context, itemID string) (*domain.SyncResult, error) {
			return nil, domain.ErrSyncInProgress
		},
	}

	w := NewWorker(Config{TaskQueue: queue, Orchestrator: orch})

	task := domain.NewSyncItemTask("item-1")
	w.processTask(context.Background(), task, slog.Default())

	// A concurrent sync covers the same work, the task is acked not retried
	if len(acked) != 1 {
		t.Errorf("expected task acked, got %d acks", len(acked))
	}
	if len(nacked) != 0 {
		t.Errorf("expected no nacks, got %d", len(nacked))
	}
}

func TestWorker_ProcessTask_UnknownType(t *testing.T) {
	queue := newMockTaskQueue()

	var nacked []string
	queue.nackFn = func(taskID, reason string) error {
		nacked = append(nacked, taskID)
		return nil
	}

	w := NewWorker(Config{TaskQueue: queue, Orchestrator: &mockOrchestrator{}})

	task := &domain.Task{
		ID:   "task-123",
		Type: domain.TaskType("unknown_type"),
	}
	w.processTask(context.Background(), task, slog.Default())

	if len(nacked) != 1 {
		t.Errorf("expected 1 nack for unknown type, got %d", len(nacked))
	}
}

func TestWorker_ProcessTask_MissingItemID(t *testing.T) {
	queue := newMockTaskQueue()

	var nacked []string
	queue.nackFn = func(taskID, reason string) error {
		nacked = append(nacked, taskID)
		return nil
	}

	w := NewWorker(Config{TaskQueue: queue, Orchestrator: &mockOrchestrator{}})

	task := &domain.Task{
		ID:      "task-123",
		Type:    domain.TaskTypeSyncItem,
		Payload: nil,
	}
	w.processTask(context.Background(), task, slog.Default())

	if len(nacked) != 1 {
		t.Errorf("expected 1 nack for missing item_id, got %d", len(nacked))
	}
}

func TestWorker_ProcessTask_Backfill(t *testing.T) {
	queue := newMockTaskQueue()

	var gotItem string
	var gotYears int
	orch := &mockOrchestrator{
		backfillFn: func(ctx context.Context, itemID string, yearsBack int) (*domain.BackfillResult, error) {
			gotItem = itemID
			gotYears = yearsBack
			return &domain.BackfillResult{ItemID: itemID}, nil
		},
	}

	w := NewWorker(Config{TaskQueue: queue, Orchestrator: orch})

	task := domain.NewBackfillTask("item-1", 5)
	w.processTask(context.Background(), task, slog.Default())

	if gotItem != "item-1" || gotYears != 5 {
		t.Errorf("expected backfill item-1/5, got %s/%d", gotItem, gotYears)
	}
}

func TestWorker_ProcessesEnqueuedTask(t *testing.T) {
	queue := newMockTaskQueue()

	processed := make(chan string, 1)
	orch := &mockOrchestrator{
		syncBalancesFn: func(ctx context.Context) (int, error) {
			processed <- "sync_balances"
			return 2, nil
		},
	}

	w := NewWorker(Config{
		TaskQueue:      queue,
		Orchestrator:   orch,
		Concurrency:    1,
		DequeueTimeout: 1,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue.Enqueue(ctx, domain.NewSyncBalancesTask())

	if err := w.Start(ctx); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	defer w.Stop()

	select {
	case <-processed:
	case <-time.After(2 * time.Second):
		t.Fatal("task was not processed")
	}
}
