package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dvrp/internal/metrics"
	"dvrp/internal/model"
	"dvrp/internal/opt"
	"dvrp/internal/scenario"
	"dvrp/internal/sim"
	"dvrp/internal/store"
)

const maxBodyBytes = 4 << 20

// SimulateRequest runs the greedy dispatcher once. Both fields are optional;
// the server's scenario and engine parameters are used when absent.
type SimulateRequest struct {
	Scenario *scenario.Record `json:"scenario,omitempty"`
	Params   *sim.Params      `json:"params,omitempty"`
}

// OptimizeRequest starts an optimizer run. Zero values fall back to the
// configured optimizer defaults.
type OptimizeRequest struct {
	Scenario     *scenario.Record `json:"scenario,omitempty"`
	Params       *sim.Params      `json:"params,omitempty"`
	TimeBudgetMs int              `json:"timeBudgetMs"`
	Acceptance   float64          `json:"acceptance"`
	Seed         int64            `json:"seed"`
	MaxRounds    int              `json:"maxRounds"`
	Parallel     *bool            `json:"parallel,omitempty"`
	Async        bool             `json:"async"`
}

// OptimizeResult is the stored and returned form of a finished run.
type OptimizeResult struct {
	InitialCost float64     `json:"initialCost"`
	BestCost    float64     `json:"bestCost"`
	Sequence    []int       `json:"sequence"`
	Best        *sim.Result `json:"best"`
}

func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// instance resolves the scenario and parameters of a request.
func (s *Server) instance(rec *scenario.Record, override *sim.Params) (*model.Scenario, sim.Oracle, sim.Params, error) {
	r := s.Scenario
	if rec != nil {
		r = *rec
	}
	sc, err := r.Build()
	if err != nil {
		return nil, nil, sim.Params{}, err
	}
	if sc.Name == "" {
		sc.Name = "adhoc"
	}
	p := s.Cfg.Engine.Params
	if r.Params != nil {
		p = *r.Params
	}
	if override != nil {
		p = *override
	}
	return sc, scenario.Oracle(sc, s.Cfg.Engine.SpeedDivisor), p, nil
}

// SimulateHandler handles POST /v1/simulate
func (s *Server) SimulateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req SimulateRequest
	if err := decodeBody(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateParams(req.Params); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid params", err.Error(), r.URL.Path)
		return
	}
	sc, oracle, p, err := s.instance(req.Scenario, req.Params)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid scenario", err.Error(), r.URL.Path)
		return
	}
	eng, err := sim.New(sc.Plants, sc.Orders, sc.Fleet, oracle, p)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid scenario", err.Error(), r.URL.Path)
		return
	}
	start := time.Now()
	res, err := eng.Run()
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Simulation failed", err.Error(), r.URL.Path)
		return
	}
	metrics.ObserveSimulation(string(res.Halt), time.Since(start))
	if !finite(res.Objective) {
		writeProblem(w, http.StatusUnprocessableEntity, "Simulation failed",
			fmt.Sprintf("%v: objective %v", errNonFiniteCost, res.Objective), r.URL.Path)
		return
	}

	body, err := json.Marshal(res)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Encode result failed", err.Error(), r.URL.Path)
		return
	}
	now := time.Now().UTC()
	run, err := s.Store.CreateRun(r.Context(), store.Run{
		Kind:        store.KindSimulate,
		Scenario:    sc.Name,
		Status:      store.StatusDone,
		FinishedAt:  &now,
		InitialCost: res.Objective,
		BestCost:    res.Objective,
		Result:      body,
	})
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Save run failed", err.Error(), r.URL.Path)
		return
	}
	s.Logger.Info("simulation done", "runId", run.ID, "scenario", sc.Name, "halt", string(res.Halt), "objective", res.Objective, "iterations", res.Iterations)
	writeJSON(w, http.StatusOK, map[string]any{"runId": run.ID, "result": res})
}

// OptimizeHandler handles POST /v1/optimize. With async set it answers 202
// and the run streams progress on /v1/runs/{id}/ws.
func (s *Server) OptimizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req OptimizeRequest
	if err := decodeBody(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateOptimizeRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid optimize request", err.Error(), r.URL.Path)
		return
	}
	sc, oracle, p, err := s.instance(req.Scenario, req.Params)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid scenario", err.Error(), r.URL.Path)
		return
	}
	// reject bad references now rather than inside a background run
	if _, err := sim.New(sc.Plants, sc.Orders.Clone(), sc.Fleet.Clone(), oracle, p); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid scenario", err.Error(), r.URL.Path)
		return
	}

	run, err := s.Store.CreateRun(r.Context(), store.Run{Kind: store.KindOptimize, Scenario: sc.Name, Status: store.StatusRunning})
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Save run failed", err.Error(), r.URL.Path)
		return
	}
	o := s.optimizer(req, opt.NewEvaluator(sc, oracle, p))
	o.Logger = s.Logger.With("runId", run.ID, "scenario", sc.Name)

	if req.Async {
		s.runs.Add(1)
		metrics.RunsInFlight.Inc()
		o.Observer = newProgressPublisher(s.Broker, run.ID, s.Cfg.Server.ProgressRPS).observe
		go func() {
			defer s.runs.Done()
			defer metrics.RunsInFlight.Dec()
			_, _ = s.finishRun(s.ctx, run, sc, o)
		}()
		writeJSON(w, http.StatusAccepted, map[string]any{"runId": run.ID, "status": run.Status})
		return
	}

	out, err := s.finishRun(r.Context(), run, sc, o)
	if errors.Is(err, errNonFiniteCost) {
		writeProblem(w, http.StatusUnprocessableEntity, "Optimize failed", err.Error(), r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Optimize failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"runId":   run.ID,
		"result":  optimizeResult(out),
		"metrics": out.Metrics,
	})
}

func (s *Server) optimizer(req OptimizeRequest, ev *opt.Evaluator) *opt.Optimizer {
	c := s.Cfg.Optimizer
	o := &opt.Optimizer{
		Eval:          ev,
		TimeBudget:    c.TimeBudget(),
		Acceptance:    c.Acceptance,
		Seed:          c.Seed,
		MaxRounds:     c.MaxRounds,
		Parallel:      c.Parallel,
		SnapshotEvery: c.SnapshotEvery,
		Logger:        s.Logger,
	}
	if req.TimeBudgetMs > 0 {
		o.TimeBudget = time.Duration(req.TimeBudgetMs) * time.Millisecond
	}
	if req.Acceptance > 0 {
		o.Acceptance = req.Acceptance
	}
	if req.Seed != 0 {
		o.Seed = req.Seed
	}
	if req.MaxRounds > 0 {
		o.MaxRounds = req.MaxRounds
	}
	if req.Parallel != nil {
		o.Parallel = *req.Parallel
	}
	return o
}

func optimizeResult(out *opt.Outcome) OptimizeResult {
	return OptimizeResult{
		InitialCost: out.Initial.Cost,
		BestCost:    out.Best.Cost,
		Sequence:    out.BestOrders.Keys(),
		Best:        out.Best.Result,
	}
}

// finishRun optimizes, records the outcome on the run and publishes the
// terminal event. Store writes use their own context so that a canceled
// run still records its final state. Every error leaves the run failed.
func (s *Server) finishRun(ctx context.Context, run store.Run, sc *model.Scenario, o *opt.Optimizer) (*opt.Outcome, error) {
	out, err := o.Optimize(ctx, sc.Orders)
	now := time.Now().UTC()
	run.FinishedAt = &now

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err == nil {
		err = s.recordOutcome(sctx, &run, out)
	}
	if err != nil {
		run.Status, run.Error = store.StatusFailed, err.Error()
		run.InitialCost, run.BestCost = 0, 0
		run.Result, run.Metrics = nil, nil
		if uerr := s.Store.UpdateRun(sctx, run); uerr != nil {
			s.Logger.Error("update run failed", "runId", run.ID, "error", uerr)
		}
		s.Broker.Publish(run.ID, Event{Type: EventFailed, Data: runData(run)})
		s.Logger.Error("optimize failed", "runId", run.ID, "error", err)
		return nil, err
	}

	if err := s.Store.UpdateRun(sctx, run); err != nil {
		s.Logger.Error("update run failed", "runId", run.ID, "error", err)
	}
	opt.RecordMetrics(sc.Name, run.ID, out.Metrics)
	s.Broker.Publish(run.ID, Event{Type: EventFinished, Data: runData(run)})
	return out, nil
}

// recordOutcome fills the done fields of run and saves its snapshots.
func (s *Server) recordOutcome(ctx context.Context, run *store.Run, out *opt.Outcome) error {
	if !finite(out.Initial.Cost) || !finite(out.Best.Cost) {
		return fmt.Errorf("%w: initial %v best %v", errNonFiniteCost, out.Initial.Cost, out.Best.Cost)
	}
	var err error
	if run.Result, err = json.Marshal(optimizeResult(out)); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if run.Metrics, err = json.Marshal(out.Metrics); err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}
	run.Status = store.StatusDone
	run.InitialCost, run.BestCost = out.Initial.Cost, out.Best.Cost
	if len(out.Metrics.Snapshots) > 0 {
		snaps := make([]store.Snapshot, 0, len(out.Metrics.Snapshots))
		for _, c := range out.Metrics.Snapshots {
			snaps = append(snaps, store.Snapshot{Round: c.Round, BestCost: c.BestCost, AnchorCost: c.AnchorCost})
		}
		if err := s.Store.SaveSnapshots(ctx, run.ID, snaps); err != nil {
			s.Logger.Error("save snapshots failed", "runId", run.ID, "error", err)
		}
	}
	return nil
}

func runData(run store.Run) map[string]any {
	d := map[string]any{
		"runId":       run.ID,
		"status":      run.Status,
		"initialCost": run.InitialCost,
		"bestCost":    run.BestCost,
	}
	if run.Error != "" {
		d["error"] = run.Error
	}
	return d
}

// terminalEvent rebuilds the final event of a run that is no longer running.
func terminalEvent(run store.Run) Event {
	t := EventFinished
	if run.Status == store.StatusFailed {
		t = EventFailed
	}
	return Event{Type: t, Data: runData(run)}
}

// RunsHandler handles GET /v1/runs
func (s *Server) RunsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", err.Error(), r.URL.Path)
			return
		}
		limit = n
	}
	items, next, err := s.Store.ListRuns(r.Context(), q.Get("kind"), q.Get("cursor"), limit)
	if errors.Is(err, store.ErrBadCursor) {
		writeProblem(w, http.StatusBadRequest, "Invalid cursor", err.Error(), r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List runs failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// RunByIDHandler handles GET /v1/runs/{id}, /v1/runs/{id}/snapshots and the
// /v1/runs/{id}/ws progress stream.
func (s *Server) RunByIDHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	rest := strings.TrimPrefix(path, "/v1/runs/")
	if rest == path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	sub := ""
	if len(parts) > 1 {
		sub = parts[1]
	}
	switch sub {
	case "":
		run, err := s.Store.GetRun(r.Context(), id)
		if err != nil {
			s.storeProblem(w, r, "Run not found", err)
			return
		}
		writeJSON(w, http.StatusOK, run)
	case "snapshots":
		snaps, err := s.Store.ListSnapshots(r.Context(), id)
		if err != nil {
			s.storeProblem(w, r, "Run not found", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"runId": id, "items": snaps})
	case "ws":
		s.RunStreamHandler(w, r, id)
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", path)
	}
}

func (s *Server) storeProblem(w http.ResponseWriter, r *http.Request, title string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, title, err.Error(), r.URL.Path)
		return
	}
	writeProblem(w, http.StatusInternalServerError, "Store error", err.Error(), r.URL.Path)
}

// OptimizerConfigHandler returns the optimizer and engine defaults in effect.
func (s *Server) OptimizerConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/optimizer/config" || r.Method != http.MethodGet {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	c := s.Cfg.Optimizer
	writeJSON(w, http.StatusOK, map[string]any{
		"defaults": map[string]any{
			"timeBudgetMs":  c.TimeBudgetMs,
			"acceptance":    c.Acceptance,
			"seed":          c.Seed,
			"maxRounds":     c.MaxRounds,
			"parallel":      c.Parallel,
			"snapshotEvery": c.SnapshotEvery,
		},
		"engine":       s.Cfg.Engine.Params,
		"speedDivisor": s.Cfg.Engine.SpeedDivisor,
		"moves":        moveNames(),
	})
}

func moveNames() []string {
	out := make([]string, 0, len(opt.Moves))
	for _, m := range opt.Moves {
		out = append(out, m.String())
	}
	return out
}

// OptimizerMetricsHandler handles GET /v1/optimizer/metrics?scenario=name
func (s *Server) OptimizerMetricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	name := r.URL.Query().Get("scenario")
	if name == "" {
		name = s.Scenario.Name
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenario": name, "runs": opt.GetMetrics(name)})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	// Check DB and Redis connectivity when configured
	type pinger interface {
		Ping(ctx context.Context) error
	}
	for _, dep := range []any{s.Store, s.Broker} {
		p, ok := dep.(pinger)
		if !ok {
			continue
		}
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		err := p.Ping(ctx)
		cancel()
		if err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
