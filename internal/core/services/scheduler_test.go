package services

import (
	"context"
	"testing"
	"time"

	"github.com/Benrishty/finsync/internal/core/domain"
	"github.com/Benrishty/finsync/internal/core/ports/driven/mocks"
)

func createTestScheduler(t *testing.T) (*Scheduler, *mocks.MockSchedulerStore, *mocks.MockTaskQueue, *mocks.MockDistributedLock) {
	t.Helper()

	store := mocks.NewMockSchedulerStore()
	queue := mocks.NewMockTaskQueue()
	lock := mocks.NewMockDistributedLock()

	scheduler := NewScheduler(SchedulerConfig{
		Store:     store,
		TaskQueue: queue,
		Lock:      lock,
	})

	return scheduler, store, queue, lock
}

func dueTask(id string, taskType domain.TaskType) *domain.ScheduledTask {
	return &domain.ScheduledTask{
		ID:       id,
		Name:     id,
		Type:     taskType,
		Interval: time.Hour,
		Enabled:  true,
		NextRun:  time.Now().Add(-time.Minute),
	}
}

func TestEnsureDefaults(t *testing.T) {
	scheduler, store, _, _ := createTestScheduler(t)

	if err := scheduler.EnsureDefaults(context.Background(), time.Hour, 24*time.Hour); err != nil {
		t.Fatalf("EnsureDefaults failed: %v", err)
	}

	syncSchedule, err := store.GetScheduledTask(context.Background(), "transaction-sync")
	if err != nil {
		t.Fatalf("sync schedule missing: %v", err)
	}
	if syncSchedule.Type != domain.TaskTypeSyncAll || syncSchedule.Interval != time.Hour {
		t.Errorf("unexpected sync schedule: %+v", syncSchedule)
	}

	balanceSchedule, err := store.GetScheduledTask(context.Background(), "balance-snapshot")
	if err != nil {
		t.Fatalf("balance schedule missing: %v", err)
	}
	if balanceSchedule.Type != domain.TaskTypeSyncBalances || balanceSchedule.Interval != 24*time.Hour {
		t.Errorf("unexpected balance schedule: %+v", balanceSchedule)
	}
}

func TestEnsureDefaults_KeepsExistingIntervals(t *testing.T) {
	scheduler, store, _, _ := createTestScheduler(t)

	custom := domain.NewScheduledTask("transaction-sync", "Transaction Sync", domain.TaskTypeSyncAll, 15*time.Minute)
	store.SaveScheduledTask(context.Background(), custom)

	if err := scheduler.EnsureDefaults(context.Background(), time.Hour, 24*time.Hour); err != nil {
		t.Fatalf("EnsureDefaults failed: %v", err)
	}

	schedule, _ := store.GetScheduledTask(context.Background(), "transaction-sync")
	if schedule.Interval != 15*time.Minute {
		t.Errorf("expected configured interval preserved, got %s", schedule.Interval)
	}
}

func TestCheckAndEnqueue_DueTask(t *testing.T) {
	scheduler, store, queue, _ := createTestScheduler(t)
	store.SaveScheduledTask(context.Background(), dueTask("transaction-sync", domain.TaskTypeSyncAll))

	scheduler.checkAndEnqueue(context.Background())

	types := queue.EnqueuedTypes()
	if len(types) != 1 || types[0] != domain.TaskTypeSyncAll {
		t.Fatalf("expected one sync_all task, got %v", types)
	}

	// The next run moves forward so the schedule does not fire again
	schedule, _ := store.GetScheduledTask(context.Background(), "transaction-sync")
	if schedule.IsDue() {
		t.Error("expected schedule no longer due after enqueue")
	}
	if schedule.LastRun == nil {
		t.Error("expected last run recorded")
	}
}

func TestCheckAndEnqueue_NotDue(t *testing.T) {
	scheduler, store, queue, _ := createTestScheduler(t)
	store.SaveScheduledTask(context.Background(),
		domain.NewScheduledTask("transaction-sync", "Transaction Sync", domain.TaskTypeSyncAll, time.Hour))

	scheduler.checkAndEnqueue(context.Background())

	if len(queue.EnqueuedTypes()) != 0 {
		t.Error("expected nothing enqueued for a future schedule")
	}
}

func TestCheckAndEnqueue_DisabledSchedule(t *testing.T) {
	scheduler, store, queue, _ := createTestScheduler(t)
	disabled := dueTask("transaction-sync", domain.TaskTypeSyncAll)
	disabled.Enabled = false
	store.SaveScheduledTask(context.Background(), disabled)

	scheduler.checkAndEnqueue(context.Background())

	if len(queue.EnqueuedTypes()) != 0 {
		t.Error("expected disabled schedule skipped")
	}
}

func TestCheckAndEnqueue_LockHeldByOtherInstance(t *testing.T) {
	scheduler, store, queue, lock := createTestScheduler(t)
	store.SaveScheduledTask(context.Background(), dueTask("transaction-sync", domain.TaskTypeSyncAll))

	// Another scheduler instance holds the lock
	acquired, err := lock.Acquire(context.Background(), "scheduler", time.Minute)
	if err != nil || !acquired {
		t.Fatalf("failed to seed lock: %v", err)
	}

	scheduler.checkAndEnqueue(context.Background())

	if len(queue.EnqueuedTypes()) != 0 {
		t.Error("expected cycle skipped while lock is held elsewhere")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	scheduler, store, queue, _ := createTestScheduler(t)
	scheduler.interval = 10 * time.Millisecond
	store.SaveScheduledTask(context.Background(), dueTask("transaction-sync", domain.TaskTypeSyncAll))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := scheduler.Start(ctx); err != nil {
		t.Fatalf("failed to start scheduler: %v", err)
	}

	// The first cycle runs immediately on start
	deadline := time.After(time.Second)
	for len(queue.EnqueuedTypes()) == 0 {
		select {
		case <-deadline:
			t.Fatal("scheduler never enqueued the due task")
		case <-time.After(5 * time.Millisecond):
		}
	}

	scheduler.Stop()
	// Stop again should be a no-op
	scheduler.Stop()
}

func TestTriggerNow(t *testing.T) {
	scheduler, store, queue, _ := createTestScheduler(t)
	// Not due for another hour, TriggerNow ignores the schedule
	store.SaveScheduledTask(context.Background(),
		domain.NewScheduledTask("balance-snapshot", "Balance Snapshot", domain.TaskTypeSyncBalances, time.Hour))

	task, err := scheduler.TriggerNow(context.Background(), "balance-snapshot")
	if err != nil {
		t.Fatalf("TriggerNow failed: %v", err)
	}
	if task.Type != domain.TaskTypeSyncBalances {
		t.Errorf("unexpected task type %s", task.Type)
	}
	if len(queue.EnqueuedTypes()) != 1 {
		t.Errorf("expected 1 enqueued task, got %d", len(queue.EnqueuedTypes()))
	}
}

func TestTriggerNow_UnknownSchedule(t *testing.T) {
	scheduler, _, _, _ := createTestScheduler(t)

	if _, err := scheduler.TriggerNow(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for unknown schedule")
	}
}
