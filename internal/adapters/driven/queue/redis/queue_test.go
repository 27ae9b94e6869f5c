package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Benrishty/finsync/internal/core/domain"
	"github.com/Benrishty/finsync/internal/core/ports/driven"
)

func setupTestQueue(t *testing.T) (*Queue, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	q, err := NewQueue(client, "test-worker")
	if err != nil {
		t.Fatalf("failed to create queue: %v", err)
	}

	return q, func() {
		client.Close()
		mr.Close()
	}
}

func TestQueue_EnqueueAndGet(t *testing.T) {
	q, cleanup := setupTestQueue(t)
	defer cleanup()

	ctx := context.Background()
	task := domain.NewSyncItemTask("item-1")

	if err := q.Enqueue(ctx, task); err != nil {
		t.Fatalf("unexpected enqueue error: %v", err)
	}

	got, err := q.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Type != domain.TaskTypeSyncItem {
		t.Errorf("expected type %s, got %s", domain.TaskTypeSyncItem, got.Type)
	}
	if got.ItemID() != "item-1" {
		t.Errorf("expected item-1, got %s", got.ItemID())
	}
}

func TestQueue_GetTask_NotFound(t *testing.T) {
	q, cleanup := setupTestQueue(t)
	defer cleanup()

	_, err := q.GetTask(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestQueue_DequeueAck(t *testing.T) {
	q, cleanup := setupTestQueue(t)
	defer cleanup()

	ctx := context.Background()
	task := domain.NewSyncAllTask()

	if err := q.Enqueue(ctx, task); err != nil {
		t.Fatalf("unexpected enqueue error: %v", err)
	}

	got, err := q.DequeueWithTimeout(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected dequeue error: %v", err)
	}
	if got == nil {
		t.Fatal("expected a task")
	}
	if got.ID != task.ID {
		t.Errorf("expected task %s, got %s", task.ID, got.ID)
	}
	if got.Status != domain.TaskStatusProcessing {
		t.Errorf("expected processing status, got %s", got.Status)
	}

	if err := q.Ack(ctx, got.ID); err != nil {
		t.Fatalf("unexpected ack error: %v", err)
	}

	acked, err := q.GetTask(ctx, got.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acked.Status != domain.TaskStatusCompleted {
		t.Errorf("expected completed status, got %s", acked.Status)
	}
}

func TestQueue_NackRequeues(t *testing.T) {
	q, cleanup := setupTestQueue(t)
	defer cleanup()

	ctx := context.Background()
	task := domain.NewSyncItemTask("item-1")

	if err := q.Enqueue(ctx, task); err != nil {
		t.Fatalf("unexpected enqueue error: %v", err)
	}

	got, err := q.DequeueWithTimeout(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected dequeue error: %v", err)
	}
	if got == nil {
		t.Fatal("expected a task")
	}

	if err := q.Nack(ctx, got.ID, "provider unavailable"); err != nil {
		t.Fatalf("unexpected nack error: %v", err)
	}

	nacked, err := q.GetTask(ctx, got.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if nacked.Status != domain.TaskStatusPending {
		t.Errorf("expected pending status after nack, got %s", nacked.Status)
	}
	if nacked.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", nacked.Attempts)
	}
	if nacked.Error != "provider unavailable" {
		t.Errorf("unexpected last error: %s", nacked.Error)
	}
}

func TestQueue_ScheduledTaskNotDequeuedEarly(t *testing.T) {
	q, cleanup := setupTestQueue(t)
	defer cleanup()

	ctx := context.Background()
	task := domain.NewSyncItemTask("item-1")
	task.ScheduledFor = time.Now().Add(1 * time.Hour)

	if err := q.Enqueue(ctx, task); err != nil {
		t.Fatalf("unexpected enqueue error: %v", err)
	}

	got, err := q.DequeueWithTimeout(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected dequeue error: %v", err)
	}
	if got != nil {
		t.Errorf("expected no task before schedule, got %s", got.ID)
	}
}

func TestQueue_ListTasks_Filter(t *testing.T) {
	q, cleanup := setupTestQueue(t)
	defer cleanup()

	ctx := context.Background()
	if err := q.Enqueue(ctx, domain.NewSyncItemTask("item-1")); err != nil {
		t.Fatalf("unexpected enqueue error: %v", err)
	}
	if err := q.Enqueue(ctx, domain.NewSyncBalancesTask()); err != nil {
		t.Fatalf("unexpected enqueue error: %v", err)
	}

	tasks, err := q.ListTasks(ctx, driven.TaskFilter{Type: domain.TaskTypeSyncItem})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	if tasks[0].Type != domain.TaskTypeSyncItem {
		t.Errorf("unexpected type %s", tasks[0].Type)
	}
}
