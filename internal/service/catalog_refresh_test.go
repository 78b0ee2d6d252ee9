package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeCatalogSource struct {
	calls atomic.Int32
	fail  atomic.Bool
}

func (f *fakeCatalogSource) Refresh(context.Context) (int, error) {
	f.calls.Add(1)
	if f.fail.Load() {
		return 0, errors.New("db down")
	}
	return 1, nil
}

func waitForCalls(t *testing.T, src *fakeCatalogSource, n int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for src.calls.Load() < n {
		if time.Now().After(deadline) {
			t.Fatalf("refresh calls = %d, want >= %d", src.calls.Load(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCatalogRefresherRun(t *testing.T) {
	src := &fakeCatalogSource{}
	src.fail.Store(true)
	r := NewCatalogRefresher(src, 10*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	// Failures keep the loop going.
	waitForCalls(t, src, 2)
	src.fail.Store(false)
	waitForCalls(t, src, 4)

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestCatalogRefresherWaitsOneInterval(t *testing.T) {
	src := &fakeCatalogSource{}
	r := NewCatalogRefresher(src, time.Hour, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run = %v", err)
	}
	if got := src.calls.Load(); got != 0 {
		t.Errorf("refresh calls = %d, want 0 before the first tick", got)
	}
}
