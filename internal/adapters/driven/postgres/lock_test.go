package postgres

import (
	"context"
	"testing"
)

func TestHashLockName_Deterministic(t *testing.T) {
	a := hashLockName("sync:item:item-1")
	b := hashLockName("sync:item:item-1")
	if a != b {
		t.Fatalf("same name hashed to %d and %d", a, b)
	}
	if a == hashLockName("sync:item:item-2") {
		t.Fatal("distinct names collided")
	}
	if a == hashLockName("scheduler") {
		t.Fatal("distinct names collided")
	}
}

func TestAdvisoryLock_ReleaseWithoutAcquire(t *testing.T) {
	// Release must not reach for a database session it never pinned.
	// A lock this instance never acquired is released as a no-op.
	lock := NewAdvisoryLock(&DB{})

	if err := lock.Release(context.Background(), "sync:item:item-1"); err != nil {
		t.Fatalf("releasing an unheld lock: %v", err)
	}
}

func TestAdvisoryLock_ExtendIsNoOp(t *testing.T) {
	lock := NewAdvisoryLock(&DB{})

	if err := lock.Extend(context.Background(), "sync:item:item-1", 0); err != nil {
		t.Fatalf("Extend: %v", err)
	}
}
