package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func requireDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("COMETSKIT_TEST_DSN")
	if dsn == "" {
		t.Skip("COMETSKIT_TEST_DSN is required for integration test")
	}
	return dsn
}

func openTestStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := OpenPostgres(requireDSN(t))
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	s, err := NewGormStore(db)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func cleanupRun(t *testing.T, s *GormStore, id string) {
	t.Helper()
	_ = s.db.Exec("DELETE FROM runs WHERE id = ?", id).Error
}

func TestGormStore_CreateGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := "it-run-roundtrip"
	cleanupRun(t, s, id)

	started := time.Now().UTC().Truncate(time.Second)
	finished := started.Add(90 * time.Second)
	seed := &Run{
		ID:           id,
		Name:         "integration round trip",
		Status:       StatusCompleted,
		CreatedAt:    started.Add(-time.Minute),
		StartedAt:    &started,
		FinishedAt:   &finished,
		Cycles:       240,
		MaxCycles:    240,
		WorkDir:      "/tmp/" + id,
		FinalBiomass: "1.5e-06",
		Config:       `{"name":"integration round trip"}`,
	}
	if err := s.Create(ctx, seed); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != seed.Name || got.Status != StatusCompleted || got.Cycles != 240 {
		t.Errorf("expected seeded run back, got %+v", got)
	}
	if got.StartedAt == nil || !got.StartedAt.Equal(started) {
		t.Errorf("expected StartedAt %v, got %v", started, got.StartedAt)
	}
	if got.Config != seed.Config {
		t.Errorf("expected config to persist, got %q", got.Config)
	}

	if err := s.Create(ctx, seed); err == nil {
		t.Error("expected duplicate create to fail, got nil")
	}
}

func TestGormStore_GetNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(context.Background(), "it-run-missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGormStore_Update(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := "it-run-update"
	cleanupRun(t, s, id)

	if err := s.Create(ctx, &Run{ID: id, Status: StatusStaged, MaxCycles: 100, CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("create: %v", err)
	}

	finished := time.Now().UTC().Truncate(time.Second)
	err := s.Update(ctx, &Run{
		ID:           id,
		Status:       StatusFailed,
		FinishedAt:   &finished,
		Cycles:       42,
		MaxCycles:    100,
		Error:        "engine reported 2 errors",
		FinalBiomass: "",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusFailed || got.Cycles != 42 || got.Error != "engine reported 2 errors" {
		t.Errorf("expected updated run, got %+v", got)
	}

	err = s.Update(ctx, &Run{ID: "it-run-missing"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown run, got %v", err)
	}
}

func TestGormStore_List(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	older, newer := "it-run-list-older", "it-run-list-newer"
	cleanupRun(t, s, older)
	cleanupRun(t, s, newer)

	base := time.Now().UTC().Truncate(time.Second)
	if err := s.Create(ctx, &Run{ID: older, CreatedAt: base.Add(-time.Hour)}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Create(ctx, &Run{ID: newer, CreatedAt: base}); err != nil {
		t.Fatalf("create: %v", err)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// The table may hold rows from other runs; only our relative order matters.
	posOlder, posNewer := -1, -1
	for i, r := range list {
		switch r.ID {
		case older:
			posOlder = i
		case newer:
			posNewer = i
		}
	}
	if posOlder < 0 || posNewer < 0 {
		t.Fatalf("expected both test runs in the list, got older=%d newer=%d", posOlder, posNewer)
	}
	if posNewer > posOlder {
		t.Errorf("expected newest-first ordering, got newer at %d and older at %d", posNewer, posOlder)
	}
}
