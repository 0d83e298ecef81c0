package main

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"cometskit/internal/comets"
	"cometskit/internal/comets/notifiers"
	"cometskit/internal/comets/store"
)

// wsNotifierID is the fixed ID of the hub behind the /ws endpoint.
const wsNotifierID = "server-ws"

// Server owns the run registry, the engine runner and the notification
// fan-out behind the HTTP API.
type Server struct {
	store   store.Store
	runner  *comets.Runner
	notifMg *comets.NotificationManager
	ws      *notifiers.WebSocketNotifier
	workDir string
	logger  *Logger
}

// NewServer creates a server instance. The websocket hub is registered
// up front so every run's progress events reach /ws clients.
func NewServer(logger *Logger, st store.Store, workDir string, engine comets.EngineConfig) *Server {
	notifMgr := comets.NewNotificationManager()
	ws := notifiers.NewWebSocketNotifier(wsNotifierID)
	if err := notifMgr.RegisterNotifier(ws); err != nil {
		logger.Errorf("Failed to register websocket notifier: %v", err)
	}

	runner := comets.NewRunner(engine, logger)
	runner.Notifications = notifMgr

	return &Server{
		store:   st,
		runner:  runner,
		notifMg: notifMgr,
		ws:      ws,
		workDir: workDir,
		logger:  logger,
	}
}

// Close shuts down the notification workers and every notifier.
func (s *Server) Close() error {
	return s.notifMg.Close()
}

// executeRun drives one staged engine invocation to completion and
// records the outcome. It runs on its own goroutine; progress reaches
// clients through the notification manager, not through this path.
func (s *Server) executeRun(id string, staged *comets.Staged) {
	ctx := context.Background()
	result, runErr := s.runner.Run(ctx, staged)

	run, err := s.store.Get(ctx, id)
	if err != nil {
		s.logger.Errorf("Run %s finished but is gone from the registry: %v", id, err)
		return
	}

	now := time.Now()
	run.FinishedAt = &now
	if result != nil {
		run.Cycles = result.Cycles
	}
	if runErr != nil {
		run.Status = store.StatusFailed
		run.Error = runErr.Error()
		s.logger.Errorf("Run failed: run_id=%s error=%v", id, runErr)
	} else {
		run.Status = store.StatusCompleted
		run.FinalBiomass = finalBiomassJSON(staged)
		s.logger.Infof("Run completed: run_id=%s cycles=%d", id, run.Cycles)
	}

	if err := s.store.Update(ctx, run); err != nil {
		s.logger.Errorf("Failed to record run outcome: run_id=%s error=%v", id, err)
	}
}

// finalBiomassJSON summarizes the last row of the total biomass log as
// a model-keyed JSON object. An unreadable log yields an empty summary
// rather than failing the run.
func finalBiomassJSON(staged *comets.Staged) string {
	if staged.Logs.TotalBiomass == "" {
		return ""
	}
	series, err := comets.ReadTotalBiomassFile(staged.Logs.TotalBiomass)
	if err != nil {
		return ""
	}
	final := series.Final()
	summary := make(map[string]float64, len(final))
	for i, v := range final {
		name := fmt.Sprintf("model_%d", i)
		if i < len(staged.ModelPaths) {
			base := filepath.Base(staged.ModelPaths[i])
			name = strings.TrimSuffix(base, filepath.Ext(base))
		}
		summary[name] = v
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return ""
	}
	return string(data)
}

// cfgJSON renders the normalized config for storage with the run.
func cfgJSON(cfg comets.Config) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// runConfig decodes the config stored with a run.
func runConfig(run *store.Run) (comets.Config, error) {
	var cfg comets.Config
	if err := json.Unmarshal([]byte(run.Config), &cfg); err != nil {
		return comets.Config{}, err
	}
	return cfg, nil
}

// runParams rebuilds the effective parameter set of a run, so log file
// names chosen at staging time can be resolved again.
func runParams(cfg comets.Config) (*comets.Params, error) {
	params := comets.DefaultParams()
	for key, value := range cfg.Params {
		if err := params.Set(key, value); err != nil {
			return nil, err
		}
	}
	return params, nil
}

// modelNames returns the display name of each configured model, in
// model order.
func modelNames(cfg comets.Config) []string {
	names := make([]string, len(cfg.Models))
	for i, mc := range cfg.Models {
		if mc.ID != "" {
			names[i] = mc.ID
			continue
		}
		base := filepath.Base(mc.File)
		names[i] = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return names
}
