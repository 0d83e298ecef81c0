// Package client provides a fluent API for building experiment
// configurations and an HTTP client for the cometskit server.
// Use the builders to describe models, placement and media
// declaratively, then submit the result as the same JSON config the
// server and the batch CLI accept.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"cometskit/internal/comets"
	"cometskit/internal/comets/store"
)

// ExperimentBuilder provides a fluent API for building experiment
// configurations. The built Config is what POST /api/experiments
// accepts and what the batch CLI reads from disk.
type ExperimentBuilder struct {
	cfg comets.Config
}

// NewExperimentConfig creates a new experiment builder with the given
// experiment name. The name labels the run and is used for
// organization purposes.
func NewExperimentConfig(name string) *ExperimentBuilder {
	return &ExperimentBuilder{
		cfg: comets.Config{
			Name:   name,
			Params: make(map[string]any),
		},
	}
}

// WithGrid sets the lattice dimensions of the simulation world.
func (eb *ExperimentBuilder) WithGrid(width, height int) *ExperimentBuilder {
	eb.cfg.Grid = comets.GridConfig{Width: width, Height: height}
	return eb
}

// WithSeed fixes the random seed used for rock and founder placement.
// A zero seed means "seed from the clock"; any other value makes the
// generated layout reproducible.
func (eb *ExperimentBuilder) WithSeed(seed int64) *ExperimentBuilder {
	eb.cfg.Seed = seed
	return eb
}

// WithModel adds a metabolic model to the experiment.
func (eb *ExperimentBuilder) WithModel(mb *ModelBuilder) *ExperimentBuilder {
	eb.cfg.Models = append(eb.cfg.Models, mb.Build())
	return eb
}

// WithRocks enables procedural rock placement: clusters seeds, each
// grown to meanSize cells on average.
func (eb *ExperimentBuilder) WithRocks(clusters int, meanSize float64) *ExperimentBuilder {
	eb.cfg.Rocks = &comets.RocksConfig{Clusters: clusters, MeanClusterSize: meanSize}
	return eb
}

// WithFounders adds one founder group: the starting colonies of one
// model.
func (eb *ExperimentBuilder) WithFounders(fb *FounderBuilder) *ExperimentBuilder {
	eb.cfg.Founders = append(eb.cfg.Founders, fb.Build())
	return eb
}

// WithMetabolite sets the uniform initial concentration of one
// metabolite. Metabolites no model exchanges must be declared with
// WithExtraMetabolite first.
func (eb *ExperimentBuilder) WithMetabolite(name string, initial float64) *ExperimentBuilder {
	m := eb.media()
	if m.Initial == nil {
		m.Initial = make(map[string]float64)
	}
	m.Initial[name] = initial
	return eb
}

// WithExtraMetabolite extends the media with a metabolite that no
// model exchanges, e.g. an inert tracer.
func (eb *ExperimentBuilder) WithExtraMetabolite(name string) *ExperimentBuilder {
	m := eb.media()
	m.Extra = append(m.Extra, name)
	return eb
}

// WithDiffusionDefault sets the default metabolite diffusion constant
// in cm^2/s.
func (eb *ExperimentBuilder) WithDiffusionDefault(d float64) *ExperimentBuilder {
	eb.media().DiffusionDefault = d
	return eb
}

// WithDiffusion overrides the diffusion constant of one metabolite.
func (eb *ExperimentBuilder) WithDiffusion(name string, d float64) *ExperimentBuilder {
	m := eb.media()
	if m.Diffusion == nil {
		m.Diffusion = make(map[string]float64)
	}
	m.Diffusion[name] = d
	return eb
}

// WithGlobalRefresh adds the given metabolite amount to every cell at
// each refresh interval.
func (eb *ExperimentBuilder) WithGlobalRefresh(name string, amount float64) *ExperimentBuilder {
	m := eb.media()
	if m.GlobalRefresh == nil {
		m.GlobalRefresh = make(map[string]float64)
	}
	m.GlobalRefresh[name] = amount
	return eb
}

// WithRefreshAt adds per-interval metabolite amounts to a single
// cell, e.g. root exudates entering the soil at the root surface.
func (eb *ExperimentBuilder) WithRefreshAt(x, y int, amounts map[string]float64) *ExperimentBuilder {
	m := eb.media()
	m.Refresh = append(m.Refresh, comets.RefreshRuleConfig{X: x, Y: y, Amounts: amounts})
	return eb
}

// WithGlobalStatic clamps one metabolite to a fixed concentration
// across the whole grid.
func (eb *ExperimentBuilder) WithGlobalStatic(name string, conc float64) *ExperimentBuilder {
	m := eb.media()
	if m.GlobalStatic == nil {
		m.GlobalStatic = make(map[string]float64)
	}
	m.GlobalStatic[name] = conc
	return eb
}

// WithStaticAt clamps metabolites of a single cell to fixed
// concentrations, e.g. oxygen held constant along an air boundary.
func (eb *ExperimentBuilder) WithStaticAt(x, y int, conc map[string]float64) *ExperimentBuilder {
	m := eb.media()
	m.Static = append(m.Static, comets.StaticRuleConfig{X: x, Y: y, Conc: conc})
	return eb
}

// WithParam overrides one simulation parameter, e.g.
// WithParam("maxCycles", 500). Keys and value types are validated
// against the known parameter table when the config is built or
// submitted.
func (eb *ExperimentBuilder) WithParam(key string, value any) *ExperimentBuilder {
	eb.cfg.Params[key] = value
	return eb
}

// WithEngine sets the engine location used when the experiment runs.
func (eb *ExperimentBuilder) WithEngine(engine comets.EngineConfig) *ExperimentBuilder {
	eb.cfg.Engine = engine
	return eb
}

// Build converts the builder to a Config that can be submitted with
// Client.CreateExperiment or written to disk for the batch CLI.
func (eb *ExperimentBuilder) Build() comets.Config {
	return eb.cfg
}

func (eb *ExperimentBuilder) media() *comets.MediaConfig {
	if eb.cfg.Media == nil {
		eb.cfg.Media = &comets.MediaConfig{}
	}
	return eb.cfg.Media
}

// ModelBuilder provides a fluent API for describing one metabolic
// model: the file it is loaded from, an optional ID override, the
// objective reaction and flux bound overrides.
type ModelBuilder struct {
	cfg comets.ModelConfig
}

// NewModel creates a new model builder for the given SBML or
// COMETS-format model file.
func NewModel(file string) *ModelBuilder {
	return &ModelBuilder{cfg: comets.ModelConfig{File: file}}
}

// ID overrides the model ID. If not set, the ID defaults to the SBML
// model id or the file base name.
func (mb *ModelBuilder) ID(id string) *ModelBuilder {
	mb.cfg.ID = id
	return mb
}

// Objective selects the objective reaction by ID, overriding whatever
// the model file declares.
func (mb *ModelBuilder) Objective(reactionID string) *ModelBuilder {
	mb.cfg.Objective = reactionID
	return mb
}

// Bound overrides the flux bounds of one reaction, e.g. limiting a
// glucose exchange to -10 mmol/gDW/h.
func (mb *ModelBuilder) Bound(reactionID string, lower, upper float64) *ModelBuilder {
	mb.cfg.Bounds = append(mb.cfg.Bounds, comets.BoundConfig{
		Reaction: reactionID,
		Lower:    lower,
		Upper:    upper,
	})
	return mb
}

// Build converts the builder to a ModelConfig.
func (mb *ModelBuilder) Build() comets.ModelConfig {
	return mb.cfg
}

// FounderBuilder provides a fluent API for describing the founder
// colonies of one model: either an explicit cell list or a count to
// scatter at random free cells.
type FounderBuilder struct {
	cfg comets.FounderConfig
}

// NewFounders creates a new founder builder for the named model. The
// model name may be omitted when the experiment has exactly one model.
func NewFounders(model string) *FounderBuilder {
	return &FounderBuilder{cfg: comets.FounderConfig{Model: model}}
}

// Count scatters the given number of colonies at random free cells.
// Ignored when explicit cells are given with At.
func (fb *FounderBuilder) Count(n int) *FounderBuilder {
	fb.cfg.Count = n
	return fb
}

// Biomass sets the initial biomass of each colony in grams dry
// weight.
func (fb *FounderBuilder) Biomass(b float64) *FounderBuilder {
	fb.cfg.Biomass = b
	return fb
}

// At places a colony at an explicit cell.
func (fb *FounderBuilder) At(x, y int) *FounderBuilder {
	fb.cfg.Cells = append(fb.cfg.Cells, comets.CellConfig{X: x, Y: y})
	return fb
}

// Build converts the builder to a FounderConfig.
func (fb *FounderBuilder) Build() comets.FounderConfig {
	return fb.cfg
}

// Client talks to a cometskit server over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithTimeout sets the request timeout. The default is 30 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client entirely, e.g.
// to inject a custom transport or a test double.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the server at baseURL
// (e.g. "http://localhost:8080").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunStatus is the response of the status endpoint: the lifecycle
// state of a run and its cycle progress.
type RunStatus struct {
	ID        string       `json:"id"`
	Status    store.Status `json:"status"`
	Cycles    int          `json:"cycles"`
	MaxCycles int          `json:"max_cycles"`
	Error     string       `json:"error,omitempty"`
}

// BiomassResults is the parsed total biomass series of a completed
// run: one column per model, one row per logged cycle.
type BiomassResults struct {
	RunID   string      `json:"run_id"`
	Models  []string    `json:"models"`
	Cycles  []int       `json:"cycles"`
	Biomass [][]float64 `json:"biomass"`
}

// NotifierInfo describes one registered notifier.
type NotifierInfo struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Health checks the server health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, nil, "health")
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// CreateExperiment submits an experiment config and returns the
// registered pending run.
func (c *Client) CreateExperiment(ctx context.Context, cfg comets.Config) (*store.Run, error) {
	req, err := c.newRequest(ctx, http.MethodPost, cfg, "api", "experiments")
	if err != nil {
		return nil, err
	}
	var run store.Run
	if err := c.do(req, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListExperiments returns every registered run, newest first.
func (c *Client) ListExperiments(ctx context.Context) ([]*store.Run, error) {
	req, err := c.newRequest(ctx, http.MethodGet, nil, "api", "experiments")
	if err != nil {
		return nil, err
	}
	var resp struct {
		Runs []*store.Run `json:"runs"`
	}
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

// GetExperiment fetches one run by ID.
func (c *Client) GetExperiment(ctx context.Context, id string) (*store.Run, error) {
	req, err := c.newRequest(ctx, http.MethodGet, nil, "api", "experiments", id)
	if err != nil {
		return nil, err
	}
	var run store.Run
	if err := c.do(req, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// StartExperiment stages a pending run and launches the engine. The
// run executes asynchronously: poll Status or subscribe to Events to
// follow it.
func (c *Client) StartExperiment(ctx context.Context, id string) (*store.Run, error) {
	req, err := c.newRequest(ctx, http.MethodPost, nil, "api", "experiments", id, "start")
	if err != nil {
		return nil, err
	}
	var run store.Run
	if err := c.do(req, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// Status fetches the lifecycle state and cycle progress of a run.
func (c *Client) Status(ctx context.Context, id string) (*RunStatus, error) {
	req, err := c.newRequest(ctx, http.MethodGet, nil, "api", "experiments", id, "status")
	if err != nil {
		return nil, err
	}
	var status RunStatus
	if err := c.do(req, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// BiomassResults fetches the parsed total biomass series of a
// completed run.
func (c *Client) BiomassResults(ctx context.Context, id string) (*BiomassResults, error) {
	req, err := c.newRequest(ctx, http.MethodGet, nil, "api", "experiments", id, "results", "biomass")
	if err != nil {
		return nil, err
	}
	var results BiomassResults
	if err := c.do(req, &results); err != nil {
		return nil, err
	}
	return &results, nil
}

// Heatmap fetches the rendered spatial biomass PNG of a completed
// run. A negative cycle means the last logged cycle.
func (c *Client) Heatmap(ctx context.Context, id string, cycle, model int) ([]byte, error) {
	u, err := url.JoinPath(c.baseURL, "api", "experiments", id, "results", "heatmap.png")
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}
	q := url.Values{}
	if cycle >= 0 {
		q.Set("cycle", strconv.Itoa(cycle))
	}
	q.Set("model", strconv.Itoa(model))
	u += "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}
	return io.ReadAll(resp.Body)
}

// ListNotifiers returns every registered notifier.
func (c *Client) ListNotifiers(ctx context.Context) ([]NotifierInfo, error) {
	req, err := c.newRequest(ctx, http.MethodGet, nil, "api", "notifiers")
	if err != nil {
		return nil, err
	}
	var resp struct {
		Notifiers []NotifierInfo `json:"notifiers"`
	}
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return resp.Notifiers, nil
}

// RegisterWebhook registers a webhook notifier that receives every
// run event as a JSON POST. Headers may be nil.
func (c *Client) RegisterWebhook(ctx context.Context, id, webhookURL string, headers map[string]string) error {
	config := map[string]any{"url": webhookURL}
	if len(headers) > 0 {
		config["headers"] = headers
	}
	body := map[string]any{
		"type":   "webhook",
		"id":     id,
		"config": config,
	}
	req, err := c.newRequest(ctx, http.MethodPost, body, "api", "notifiers")
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// UnregisterNotifier removes a registered notifier by ID.
func (c *Client) UnregisterNotifier(ctx context.Context, id string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, nil, "api", "notifiers", id)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// Events opens the websocket progress stream and returns a channel of
// run events. The channel closes when the context is canceled or the
// connection drops.
func (c *Client) Events(ctx context.Context) (<-chan comets.Event, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path, err = url.JoinPath(u.Path, "ws")
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to event stream: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	events := make(chan comets.Event)
	go func() {
		defer close(events)
		defer conn.Close()
		for {
			var ev comets.Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		// Unblock the read loop when the caller gives up.
		<-ctx.Done()
		conn.Close()
	}()
	return events, nil
}

// newRequest builds a JSON request against the server API.
func (c *Client) newRequest(ctx context.Context, method string, body any, elem ...string) (*http.Request, error) {
	u, err := url.JoinPath(c.baseURL, elem...)
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do sends the request and decodes the JSON response into out, which
// may be nil when the body does not matter. Non-2xx statuses become
// errors carrying the response body.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
