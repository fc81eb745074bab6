package redis

import (
	"context"
	"testing"
	"time"
)

func TestLockIsExclusiveUntilReleased(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	first, err := NewLock(client, client.LockKey("flow", "f1"), time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, err := NewLock(client, client.LockKey("flow", "f1"), time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}

	ok, err := first.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed, ok=%v err=%v", ok, err)
	}
	ok, err = second.Acquire(ctx)
	if err != nil || ok {
		t.Fatalf("expected second acquire to fail, ok=%v err=%v", ok, err)
	}

	// A non-owner release must not free the lock.
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release by non-owner: %v", err)
	}
	ok, _ = second.Acquire(ctx)
	if ok {
		t.Fatalf("lock freed by non-owner")
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, err = second.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("expected acquire after release, ok=%v err=%v", ok, err)
	}
}

func TestNewLockValidatesInput(t *testing.T) {
	if _, err := NewLock(nil, "k", time.Second); err == nil {
		t.Fatalf("expected nil store error")
	}
	if _, err := NewLock(&Client{store: newMockCmdable()}, "", time.Second); err == nil {
		t.Fatalf("expected empty key error")
	}
}

func TestLockHolderReportsLabel(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	first, _ := NewLock(client, client.LockKey("flow", "f2"), time.Minute)
	ok, err := first.WithLabel("payment").Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}

	second, _ := NewLock(client, client.LockKey("flow", "f2"), time.Minute)
	holder, err := second.Holder(ctx)
	if err != nil {
		t.Fatalf("holder: %v", err)
	}
	if holder != "payment" {
		t.Fatalf("expected payment holder, got %q", holder)
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	holder, _ = second.Holder(ctx)
	if holder != "" {
		t.Fatalf("expected no holder, got %q", holder)
	}
}
