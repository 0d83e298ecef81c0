package main

import (
	"os"

	"cometskit/internal/comets"
	"cometskit/internal/comets/store"
)

func main() {
	cfg := loadServerConfig()
	logger := NewLogger(cfg.LogLevel)

	var st store.Store
	if cfg.StoreDSN != "" {
		db, err := store.OpenPostgres(cfg.StoreDSN)
		if err != nil {
			logger.Fatalf("Failed to connect to postgres: %v", err)
		}
		gs, err := store.NewGormStore(db)
		if err != nil {
			logger.Fatalf("Failed to migrate run store: %v", err)
		}
		st = gs
		logger.Infof("Run store: postgres")
	} else {
		st = store.NewMemoryStore()
		logger.Infof("Run store: in-memory")
	}

	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		logger.Fatalf("Failed to create work directory %s: %v", cfg.WorkDir, err)
	}

	engine := comets.EngineConfig{
		JavaBin:    cfg.JavaBin,
		CometsHome: cfg.CometsHome,
	}

	srv := NewServer(logger, st, cfg.WorkDir, engine)
	defer srv.Close()

	r := srv.SetupRouter()
	logger.Infof("cometskit-server listening on %s (work dir %s)", cfg.Addr, cfg.WorkDir)
	if err := r.Run(cfg.Addr); err != nil {
		logger.Fatalf("Server stopped: %v", err)
	}
}
