package domain

import (
	"testing"
	"time"
)

func TestGenerateID(t *testing.T) {
	id1 := GenerateID()
	id2 := GenerateID()

	if id1 == "" || id2 == "" {
		t.Error("expected non-empty IDs")
	}
	if id1 == id2 {
		t.Error("expected unique IDs")
	}
}

func TestNewTask(t *testing.T) {
	payload := map[string]string{"item_id": "item-123"}

	task := NewTask(TaskTypeSyncItem, payload)

	if task.ID == "" {
		t.Error("expected non-empty ID")
	}
	if task.Type != TaskTypeSyncItem {
		t.Errorf("expected type %s, got %s", TaskTypeSyncItem, task.Type)
	}
	if task.Payload["item_id"] != "item-123" {
		t.Error("expected payload to be set")
	}
	if task.Status != TaskStatusPending {
		t.Errorf("expected status %s, got %s", TaskStatusPending, task.Status)
	}
	if task.Attempts != 0 {
		t.Errorf("expected attempts 0, got %d", task.Attempts)
	}
	if task.MaxAttempts != 3 {
		t.Errorf("expected max attempts 3, got %d", task.MaxAttempts)
	}
	if task.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
	if task.ScheduledFor.IsZero() {
		t.Error("expected ScheduledFor to be set")
	}
}

func TestTaskConstructors(t *testing.T) {
	sync := NewSyncItemTask("item-1")
	if sync.Type != TaskTypeSyncItem || sync.ItemID() != "item-1" {
		t.Errorf("unexpected sync task: %+v", sync)
	}

	all := NewSyncAllTask()
	if all.Type != TaskTypeSyncAll || all.ItemID() != "" {
		t.Errorf("unexpected sync-all task: %+v", all)
	}

	balances := NewSyncBalancesTask()
	if balances.Type != TaskTypeSyncBalances {
		t.Errorf("unexpected balances task: %+v", balances)
	}

	backfill := NewBackfillTask("item-1", 5)
	if backfill.Type != TaskTypeBackfill || backfill.ItemID() != "item-1" {
		t.Errorf("unexpected backfill task: %+v", backfill)
	}
	if backfill.Payload["years_back"] != "5" {
		t.Errorf("expected years_back 5, got %q", backfill.Payload["years_back"])
	}
}

func TestTask_Lifecycle(t *testing.T) {
	task := NewSyncItemTask("item-1")

	task.MarkProcessing()
	if task.Status != TaskStatusProcessing {
		t.Errorf("expected status processing, got %s", task.Status)
	}
	if task.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", task.Attempts)
	}
	if task.StartedAt == nil {
		t.Error("expected StartedAt to be set")
	}

	task.MarkCompleted()
	if task.Status != TaskStatusCompleted {
		t.Errorf("expected status completed, got %s", task.Status)
	}
	if task.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}
}

func TestTask_CanRetry(t *testing.T) {
	task := NewSyncItemTask("item-1")

	for i := 0; i < 3; i++ {
		if !task.CanRetry() {
			t.Fatalf("expected retry allowed at attempt %d", task.Attempts)
		}
		task.MarkProcessing()
	}

	if task.CanRetry() {
		t.Error("expected retries exhausted after max attempts")
	}
}

func TestTask_Retry_Backoff(t *testing.T) {
	task := NewSyncItemTask("item-1")

	task.MarkProcessing()
	task.Retry("provider unavailable")

	if task.Status != TaskStatusPending {
		t.Errorf("expected status pending after retry, got %s", task.Status)
	}
	if task.Error != "provider unavailable" {
		t.Errorf("expected error recorded, got %q", task.Error)
	}

	// First retry backs off by 2s (1 << 1 attempts)
	delay := time.Until(task.ScheduledFor)
	if delay < time.Second || delay > 3*time.Second {
		t.Errorf("expected ~2s backoff, got %s", delay)
	}
}

func TestTask_Retry_BackoffCapped(t *testing.T) {
	task := NewSyncItemTask("item-1")
	task.Attempts = 20

	task.Retry("still failing")

	delay := time.Until(task.ScheduledFor)
	if delay > 5*time.Minute+time.Second {
		t.Errorf("expected backoff capped at 5m, got %s", delay)
	}
}

func TestTask_IsReady(t *testing.T) {
	task := NewSyncItemTask("item-1")
	task.ScheduledFor = time.Now().Add(-time.Second)
	if !task.IsReady() {
		t.Error("expected pending past-due task to be ready")
	}

	task.ScheduledFor = time.Now().Add(time.Hour)
	if task.IsReady() {
		t.Error("expected future task not ready")
	}

	task.ScheduledFor = time.Now().Add(-time.Second)
	task.Status = TaskStatusProcessing
	if task.IsReady() {
		t.Error("expected processing task not ready")
	}
}

func TestScheduledTask_IsDue(t *testing.T) {
	scheduled := NewScheduledTask("transaction-sync", "Transaction Sync", TaskTypeSyncAll, time.Hour)
	if scheduled.IsDue() {
		t.Error("expected new schedule not due for an hour")
	}

	scheduled.NextRun = time.Now().Add(-time.Minute)
	if !scheduled.IsDue() {
		t.Error("expected past-due schedule to be due")
	}

	scheduled.Enabled = false
	if scheduled.IsDue() {
		t.Error("expected disabled schedule never due")
	}
}

func TestScheduledTask_UpdateNextRun(t *testing.T) {
	scheduled := NewScheduledTask("transaction-sync", "Transaction Sync", TaskTypeSyncAll, time.Hour)
	scheduled.NextRun = time.Now().Add(-time.Minute)

	scheduled.UpdateNextRun()

	if scheduled.LastRun == nil {
		t.Fatal("expected LastRun set")
	}
	if scheduled.IsDue() {
		t.Error("expected next run pushed into the future")
	}
	if until := time.Until(scheduled.NextRun); until < 59*time.Minute {
		t.Errorf("expected next run ~1h out, got %s", until)
	}
}
