package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_CreateAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	run := &Run{
		ID:        "run-1",
		Name:      "toy colony",
		Status:    StatusRunning,
		CreatedAt: time.Date(2026, 3, 1, 9, 59, 0, 0, time.UTC),
		StartedAt: &started,
		Cycles:    12,
		MaxCycles: 240,
		WorkDir:   "/tmp/run-1",
	}
	if err := s.Create(ctx, run); err != nil {
		t.Fatalf("expected create to succeed, got %v", err)
	}

	got, err := s.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("expected get to succeed, got %v", err)
	}
	if got.Name != "toy colony" || got.Status != StatusRunning || got.MaxCycles != 240 {
		t.Errorf("expected stored run back, got %+v", got)
	}
	if got.StartedAt == nil || !got.StartedAt.Equal(started) {
		t.Errorf("expected StartedAt %v, got %v", started, got.StartedAt)
	}
}

func TestMemoryStore_CreateErrors(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	err := s.Create(ctx, &Run{Name: "anonymous"})
	if err == nil || !strings.Contains(err.Error(), "run ID is required") {
		t.Errorf("expected missing-ID error, got %v", err)
	}

	if err := s.Create(ctx, &Run{ID: "run-1"}); err != nil {
		t.Fatalf("expected create to succeed, got %v", err)
	}
	err = s.Create(ctx, &Run{ID: "run-1"})
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("expected duplicate error, got %v", err)
	}
}

func TestMemoryStore_GetNotFound(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Create(ctx, &Run{ID: "run-1", Status: StatusPending}); err != nil {
		t.Fatalf("expected create to succeed, got %v", err)
	}

	got, err := s.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("expected get to succeed, got %v", err)
	}
	got.Status = StatusFailed
	got.Error = "mutated by caller"

	again, err := s.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("expected get to succeed, got %v", err)
	}
	if again.Status != StatusPending || again.Error != "" {
		t.Errorf("expected stored run to be unaffected by caller mutation, got %+v", again)
	}
}

func TestMemoryStore_CreateCopiesInput(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	run := &Run{ID: "run-1", Status: StatusPending}
	if err := s.Create(ctx, run); err != nil {
		t.Fatalf("expected create to succeed, got %v", err)
	}
	run.Status = StatusFailed

	got, err := s.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("expected get to succeed, got %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("expected stored status pending, got %s", got.Status)
	}
}

func TestMemoryStore_List(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	// "a" and "b" share a creation time; "c" is newer.
	runs := []*Run{
		{ID: "b", CreatedAt: base},
		{ID: "c", CreatedAt: base.Add(time.Minute)},
		{ID: "a", CreatedAt: base},
	}
	for _, r := range runs {
		if err := s.Create(ctx, r); err != nil {
			t.Fatalf("expected create to succeed, got %v", err)
		}
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("expected list to succeed, got %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(list))
	}
	gotOrder := []string{list[0].ID, list[1].ID, list[2].ID}
	wantOrder := []string{"c", "a", "b"}
	for i := range wantOrder {
		if gotOrder[i] != wantOrder[i] {
			t.Errorf("expected order %v (newest first, ties by ID), got %v", wantOrder, gotOrder)
			break
		}
	}
}

func TestMemoryStore_ListEmpty(t *testing.T) {
	s := NewMemoryStore()

	list, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("expected list to succeed, got %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected empty list, got %d runs", len(list))
	}
}

func TestMemoryStore_Update(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Create(ctx, &Run{ID: "run-1", Status: StatusStaged, MaxCycles: 100}); err != nil {
		t.Fatalf("expected create to succeed, got %v", err)
	}

	finished := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	updated := &Run{
		ID:           "run-1",
		Status:       StatusCompleted,
		FinishedAt:   &finished,
		Cycles:       100,
		MaxCycles:    100,
		FinalBiomass: "3.2e-06",
	}
	if err := s.Update(ctx, updated); err != nil {
		t.Fatalf("expected update to succeed, got %v", err)
	}

	got, err := s.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("expected get to succeed, got %v", err)
	}
	if got.Status != StatusCompleted || got.Cycles != 100 || got.FinalBiomass != "3.2e-06" {
		t.Errorf("expected updated run, got %+v", got)
	}

	err = s.Update(ctx, &Run{ID: "missing"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown run, got %v", err)
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("run-%d", i)
			if err := s.Create(ctx, &Run{ID: id, Status: StatusPending}); err != nil {
				t.Errorf("expected create %s to succeed, got %v", id, err)
				return
			}
			if _, err := s.Get(ctx, id); err != nil {
				t.Errorf("expected get %s to succeed, got %v", id, err)
			}
			if _, err := s.List(ctx); err != nil {
				t.Errorf("expected list to succeed, got %v", err)
			}
		}(i)
	}
	wg.Wait()

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("expected list to succeed, got %v", err)
	}
	if len(list) != 20 {
		t.Errorf("expected 20 runs after concurrent creates, got %d", len(list))
	}
}
