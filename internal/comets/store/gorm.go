package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// OpenPostgres opens a postgres-backed gorm handle from a DSN.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// GormStore persists runs in a relational database so the registry
// survives server restarts.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// NewGormStore migrates the runs table and returns a store over db.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&Run{}); err != nil {
		return nil, fmt.Errorf("migrate runs table: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Create(ctx context.Context, run *Run) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("create run %s: %w", run.ID, err)
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*Run, error) {
	var run Run
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return &run, nil
}

func (s *GormStore) List(ctx context.Context) ([]*Run, error) {
	var runs []*Run
	if err := s.db.WithContext(ctx).Order("created_at desc").Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

func (s *GormStore) Update(ctx context.Context, run *Run) error {
	updates := map[string]any{
		"name":          run.Name,
		"status":        run.Status,
		"started_at":    run.StartedAt,
		"finished_at":   run.FinishedAt,
		"cycles":        run.Cycles,
		"max_cycles":    run.MaxCycles,
		"work_dir":      run.WorkDir,
		"error":         run.Error,
		"final_biomass": run.FinalBiomass,
		"config":        run.Config,
	}
	res := s.db.WithContext(ctx).Model(&Run{}).Where("id = ?", run.ID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update run %s: %w", run.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
