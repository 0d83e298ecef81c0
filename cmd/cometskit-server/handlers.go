package main

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"cometskit/internal/comets"
	"cometskit/internal/comets/notifiers"
	"cometskit/internal/comets/store"
	"cometskit/internal/comets/viz"
)

// SetupRouter wires every endpoint onto a gin engine.
func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.GET("/health", s.handleHealth)
	r.GET("/ws", s.handleWebSocket)

	api := r.Group("/api")
	{
		api.POST("/experiments", s.handleCreateExperiment)
		api.GET("/experiments", s.handleListExperiments)
		api.GET("/experiments/:id", s.handleGetExperiment)
		api.POST("/experiments/:id/start", s.handleStartExperiment)
		api.GET("/experiments/:id/status", s.handleStatus)
		api.GET("/experiments/:id/results/biomass", s.handleBiomassResults)
		api.GET("/experiments/:id/results/heatmap.png", s.handleHeatmap)

		api.GET("/notifiers", s.handleListNotifiers)
		api.POST("/notifiers", s.handleRegisterNotifier)
		api.DELETE("/notifiers/:id", s.handleUnregisterNotifier)
	}

	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// POST /api/experiments
// Body: experiment config JSON
// Registers a validated config as a pending run.
func (s *Server) handleCreateExperiment(c *gin.Context) {
	cfg, err := comets.ParseConfig(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := comets.ValidateConfig(cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	raw, err := cfgJSON(cfg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	run := &store.Run{
		ID:        comets.NewRandomID(),
		Name:      cfg.Name,
		Status:    store.StatusPending,
		CreatedAt: time.Now(),
		Config:    raw,
	}
	if err := s.store.Create(c.Request.Context(), run); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.logger.Infof("Experiment registered: run_id=%s name=%s", run.ID, run.Name)
	c.JSON(http.StatusCreated, run)
}

// GET /api/experiments
func (s *Server) handleListExperiments(c *gin.Context) {
	runs, err := s.store.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GET /api/experiments/:id
func (s *Server) handleGetExperiment(c *gin.Context) {
	run, ok := s.lookupRun(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, run)
}

// POST /api/experiments/:id/start
// Stages the experiment and launches the engine asynchronously.
func (s *Server) handleStartExperiment(c *gin.Context) {
	run, ok := s.lookupRun(c)
	if !ok {
		return
	}
	if run.Status != store.StatusPending {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("run is %s, only pending runs can start", run.Status)})
		return
	}

	cfg, err := runConfig(run)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stored config is unreadable: " + err.Error()})
		return
	}

	exp, err := comets.BuildExperiment(cfg, s.logger)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dir := filepath.Join(s.workDir, run.ID)
	staged, err := s.runner.Stage(exp, dir)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	// Progress events must carry the registry ID, not the fresh one the
	// stager generated.
	staged.RunID = run.ID

	now := time.Now()
	run.Status = store.StatusRunning
	run.StartedAt = &now
	run.WorkDir = dir
	run.MaxCycles = staged.MaxCycles
	if err := s.store.Update(c.Request.Context(), run); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	go s.executeRun(run.ID, staged)

	s.logger.Infof("Run started: run_id=%s dir=%s", run.ID, dir)
	c.JSON(http.StatusAccepted, run)
}

// GET /api/experiments/:id/status
func (s *Server) handleStatus(c *gin.Context) {
	run, ok := s.lookupRun(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         run.ID,
		"status":     run.Status,
		"cycles":     run.Cycles,
		"max_cycles": run.MaxCycles,
		"error":      run.Error,
	})
}

// GET /api/experiments/:id/results/biomass
// Returns the parsed total biomass series of a completed run.
func (s *Server) handleBiomassResults(c *gin.Context) {
	run, cfg, params, ok := s.lookupCompletedRun(c)
	if !ok {
		return
	}

	path := filepath.Join(run.WorkDir, params.String("TotalBiomassLogName"))
	series, err := comets.ReadTotalBiomassFile(path)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":  run.ID,
		"models":  modelNames(cfg),
		"cycles":  series.Cycles,
		"biomass": series.Biomass,
	})
}

// GET /api/experiments/:id/results/heatmap.png?cycle=N&model=M
// Renders the spatial biomass of one model at one logged cycle. Without
// a cycle parameter the last logged cycle is used.
func (s *Server) handleHeatmap(c *gin.Context) {
	run, cfg, params, ok := s.lookupCompletedRun(c)
	if !ok {
		return
	}

	path := filepath.Join(run.WorkDir, params.String("BiomassLogName"))
	bl, err := comets.ReadBiomassLogFile(path)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	cycles := bl.Cycles()
	if len(cycles) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "biomass log holds no cycles"})
		return
	}

	cycle := cycles[len(cycles)-1]
	if v := c.Query("cycle"); v != "" {
		cycle, err = strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cycle must be an integer"})
			return
		}
	}
	model := 0
	if v := c.Query("model"); v != "" {
		model, err = strconv.Atoi(v)
		if err != nil || model < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "model must be a non-negative integer"})
			return
		}
	}

	grid, err := comets.NewGrid(cfg.Grid.Width, cfg.Grid.Height)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	field, err := bl.Field(cycle, model, grid)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	label := fmt.Sprintf("cycle %d", cycle)
	if names := modelNames(cfg); model < len(names) {
		label = fmt.Sprintf("%s, cycle %d", names[model], cycle)
	}
	img, err := viz.Heatmap(field, viz.HeatmapOptions{Label: label})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// GET /ws
// Upgrades the connection and attaches it to the progress hub. The read
// loop only watches for the client going away.
func (s *Server) handleWebSocket(c *gin.Context) {
	upgrader := s.ws.GetUpgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warnf("Websocket upgrade failed: %v", err)
		return
	}

	s.ws.RegisterClient(conn)
	s.logger.Debugf("Websocket client connected: %s", conn.RemoteAddr())

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.ws.UnregisterClient(conn)
			s.logger.Debugf("Websocket client disconnected: %s", conn.RemoteAddr())
			break
		}
	}
}

// GET /api/notifiers
// List all registered notifiers
func (s *Server) handleListNotifiers(c *gin.Context) {
	notifierIDs := s.notifMg.ListNotifiers()

	list := make([]map[string]string, 0, len(notifierIDs))
	for _, id := range notifierIDs {
		notifier, exists := s.notifMg.GetNotifier(id)
		if exists {
			list = append(list, map[string]string{
				"id":   id,
				"type": notifier.Type(),
			})
		}
	}
	c.JSON(http.StatusOK, gin.H{"notifiers": list})
}

// POST /api/notifiers
// Register a new notifier
// Body: { "type": "webhook", "id": "my-webhook", "config": { "url": "http://..." } }
type registerNotifierRequest struct {
	Type   string         `json:"type"`
	ID     string         `json:"id"`
	Config map[string]any `json:"config"`
}

func (s *Server) handleRegisterNotifier(c *gin.Context) {
	var req registerNotifierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json: " + err.Error()})
		return
	}
	if req.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "notifier ID is required"})
		return
	}

	var notifier comets.Notifier
	switch req.Type {
	case "webhook":
		url, ok := req.Config["url"].(string)
		if !ok || url == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "webhook URL is required"})
			return
		}
		wh := notifiers.NewWebhookNotifier(req.ID, url)

		// Set custom headers if provided
		if headers, ok := req.Config["headers"].(map[string]any); ok {
			for k, v := range headers {
				if vStr, ok := v.(string); ok {
					wh.SetHeader(k, vStr)
				}
			}
		}
		notifier = wh
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown notifier type: " + req.Type})
		return
	}

	if err := s.notifMg.RegisterNotifier(notifier); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.logger.Infof("Notifier registered: id=%s type=%s", req.ID, req.Type)
	c.JSON(http.StatusOK, gin.H{"status": "registered", "id": req.ID})
}

// DELETE /api/notifiers/:id
func (s *Server) handleUnregisterNotifier(c *gin.Context) {
	id := c.Param("id")
	if id == wsNotifierID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "the /ws hub cannot be unregistered"})
		return
	}
	if err := s.notifMg.UnregisterNotifier(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unregistered", "id": id})
}

// lookupRun fetches the run named in the path, writing the error
// response itself when the run is missing.
func (s *Server) lookupRun(c *gin.Context) (*store.Run, bool) {
	run, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return nil, false
	}
	return run, true
}

// lookupCompletedRun fetches a run that must have finished successfully
// and rebuilds its config and effective parameters.
func (s *Server) lookupCompletedRun(c *gin.Context) (*store.Run, comets.Config, *comets.Params, bool) {
	run, ok := s.lookupRun(c)
	if !ok {
		return nil, comets.Config{}, nil, false
	}
	if run.Status != store.StatusCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("run is %s, results need a completed run", run.Status)})
		return nil, comets.Config{}, nil, false
	}
	cfg, err := runConfig(run)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stored config is unreadable: " + err.Error()})
		return nil, comets.Config{}, nil, false
	}
	params, err := runParams(cfg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, comets.Config{}, nil, false
	}
	return run, cfg, params, true
}
