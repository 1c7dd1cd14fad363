// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Wiring of configuration, completion backend, ledger and the
// clean pipeline shared by the clean, session and watch commands.

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/tidyrun/internal/codegen"
	"github.com/jeranaias/tidyrun/internal/completion"
	"github.com/jeranaias/tidyrun/internal/config"
	"github.com/jeranaias/tidyrun/internal/export"
	"github.com/jeranaias/tidyrun/internal/ledger"
	"github.com/jeranaias/tidyrun/internal/plan"
	"github.com/jeranaias/tidyrun/internal/sandbox"
	"github.com/jeranaias/tidyrun/internal/session"
	"github.com/jeranaias/tidyrun/internal/table"
)

// =============================================================================
// APP
// =============================================================================

// App holds what every data command needs.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Out    io.Writer
	Err    io.Writer

	service completion.Service
	model   string
	ledger  *ledger.Ledger
}

// NewApp loads configuration, applies global flags and builds the
// completion backend.
func NewApp(args Args) (*App, error) {
	cfg, err := loadConfig(args.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(cfg, args); err != nil {
		return nil, err
	}

	logger := NewLogger(os.Stderr, args.Verbose, args.Quiet)
	svc, model := BuildService(cfg, logger)
	return NewAppWith(cfg, svc, model, logger, os.Stdout, os.Stderr), nil
}

// NewAppWith assembles an App from parts.
func NewAppWith(cfg *config.Config, svc completion.Service, model string, logger *slog.Logger, out, errOut io.Writer) *App {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &App{
		Config:  cfg,
		Logger:  logger,
		Out:     out,
		Err:     errOut,
		service: svc,
		model:   model,
	}
}

// Model returns the model used for planning and synthesis.
func (a *App) Model() string {
	return a.model
}

// NeedsAPIKey reports whether the hosted backend is selected without a key.
func (a *App) NeedsAPIKey() bool {
	return a.Config.Completion.Provider != "ollama" && a.Config.Completion.APIKey == ""
}

// SetAPIKey sets the completion API key for this process and rebuilds the
// backend. The key is not saved.
func (a *App) SetAPIKey(key string) {
	a.Config.Completion.APIKey = key
	a.service, a.model = BuildService(a.Config, a.Logger)
}

// Close releases the ledger.
func (a *App) Close() error {
	if a.ledger != nil {
		return a.ledger.Close()
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

func applyFlagOverrides(cfg *config.Config, args Args) error {
	if args.Provider != "" {
		cfg.Completion.Provider = strings.ToLower(args.Provider)
	}
	if args.Model != "" {
		if cfg.Completion.Provider == "ollama" {
			cfg.Ollama.Model = args.Model
		} else {
			cfg.Completion.Model = args.Model
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// BuildService returns the configured completion backend and its model.
func BuildService(cfg *config.Config, logger *slog.Logger) (completion.Service, string) {
	var svc completion.Service
	var model string

	if cfg.Completion.Provider == "ollama" {
		svc = completion.NewOllamaClient(completion.OllamaConfig{
			BaseURL: cfg.Ollama.URL,
			Model:   cfg.Ollama.Model,
			Timeout: cfg.Timeout(),
		})
		model = cfg.Ollama.Model
	} else {
		svc = completion.NewOpenAIClient(completion.OpenAIConfig{
			BaseURL:    cfg.Completion.BaseURL,
			APIKey:     cfg.Completion.APIKey,
			Model:      cfg.Completion.Model,
			Timeout:    cfg.Timeout(),
			MaxRetries: 2,
			Logger:     logger,
		})
		model = cfg.Completion.Model
	}

	if cfg.Completion.RequestsPerMinute > 0 {
		svc = completion.NewLimited(svc, cfg.Completion.RequestsPerMinute)
	}
	return svc, model
}

// Ledger opens the run ledger on first use. It returns nil when the ledger
// is disabled.
func (a *App) Ledger() (*ledger.Ledger, error) {
	if !a.Config.Ledger.Enabled {
		return nil, nil
	}
	if a.ledger != nil {
		return a.ledger, nil
	}
	path, err := a.Config.LedgerPath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	l, err := ledger.Open(path)
	if err != nil {
		return nil, err
	}
	a.ledger = l
	return l, nil
}

// =============================================================================
// PIPELINE PARTS
// =============================================================================

// Planner returns a planner bound to the app's backend.
func (a *App) Planner() *plan.Planner {
	return plan.NewPlanner(a.service,
		plan.WithPlannerModel(a.model),
		plan.WithPlannerLogger(a.Logger))
}

// Runner returns a function executing plans with a fresh sandbox per run.
func (a *App) Runner(retries int, onEvent func(plan.Event)) session.RunFunc {
	if retries <= 0 {
		retries = a.Config.Execution.MaxRetries
	}
	return func(ctx context.Context, t *table.Table, p *plan.Plan) (*table.Table, []plan.StepOutcome) {
		env := sandbox.New(sandbox.Config{
			Timeout:      a.Config.AttemptTimeout(),
			MaxCallStack: a.Config.Execution.MaxCallStack,
			Logger:       a.Logger,
		})
		defer env.Close()

		synth := codegen.New(a.service, codegen.WithModel(a.model), codegen.WithLogger(a.Logger))
		exec := plan.NewExecutor(plan.NewCodeTransformer(synth, env),
			plan.WithMaxRetries(retries),
			plan.WithEventHandler(onEvent),
			plan.WithLogger(a.Logger))
		return exec.Run(ctx, t, p)
	}
}

// =============================================================================
// CLEAN PIPELINE
// =============================================================================

// CleanOptions configures one clean run.
type CleanOptions struct {
	// PlanPath executes a saved plan instead of asking the planner
	PlanPath string

	// Output is the CSV path; when empty the file sink writes
	// <name>.cleaned.csv and a report into OutDir
	Output string
	OutDir string

	// Retries overrides execution.max_retries when positive
	Retries int

	// Export uploads to object storage even when export.enabled is false
	Export bool

	// IncludeCode adds generated code to the report
	IncludeCode bool

	OnEvent func(plan.Event)
}

// CleanResult describes a finished clean run.
type CleanResult struct {
	RunID      string
	Source     string
	Plan       *plan.Plan
	InputRows  int
	Output     *table.Table
	Outcomes   []plan.StepOutcome
	OutputPath string
	Exported   string
	StartedAt  time.Time
	Duration   time.Duration
	Report     []byte
}

// Failed returns the number of failed steps.
func (r *CleanResult) Failed() int {
	_, failed := plan.Summary(r.Outcomes)
	return failed
}

// Clean loads source, plans (or loads a plan), executes, writes the cleaned
// CSV, optionally exports it and records the run in the ledger.
func (a *App) Clean(ctx context.Context, source string, opts CleanOptions) (*CleanResult, error) {
	started := time.Now()

	input, err := table.ReadFile(source)
	if err != nil {
		return nil, err
	}

	p, err := a.resolvePlan(ctx, input, source, opts.PlanPath)
	if err != nil {
		return nil, err
	}

	cleaned, outcomes := a.Runner(opts.Retries, opts.OnEvent)(ctx, input, p)

	res := &CleanResult{
		RunID:     uuid.NewString(),
		Source:    source,
		Plan:      p,
		InputRows: input.NumRows(),
		Output:    cleaned,
		Outcomes:  outcomes,
		StartedAt: started,
	}
	res.OutputPath = opts.Output
	if res.OutputPath == "" {
		outDir := opts.OutDir
		if outDir == "" {
			outDir = filepath.Dir(source)
		}
		res.OutputPath = export.CleanedPath(outDir, source)
	}

	res.Duration = time.Since(started)
	res.Report = export.Report(a.reportRun(res), export.ReportOptions{
		IncludeCode:     opts.IncludeCode,
		IncludeAttempts: true,
	})

	if err := a.write(ctx, res, opts); err != nil {
		return res, err
	}

	if opts.Export || a.Config.Export.Enabled {
		loc, err := a.export(ctx, res)
		if err != nil {
			return res, fmt.Errorf("export: %w", err)
		}
		res.Exported = loc
	}

	a.record(ctx, input, res)
	return res, nil
}

func (a *App) resolvePlan(ctx context.Context, t *table.Table, source, planPath string) (*plan.Plan, error) {
	if planPath != "" {
		return plan.LoadFile(planPath)
	}
	res := a.Planner().Plan(ctx, t)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return res.Plan(source)
}

func (a *App) reportRun(res *CleanResult) export.Run {
	return export.Run{
		ID:         res.RunID,
		Source:     res.Source,
		Model:      a.model,
		StartedAt:  res.StartedAt,
		Duration:   res.Duration,
		InputRows:  res.InputRows,
		OutputRows: res.Output.NumRows(),
		Output:     res.OutputPath,
		Outcomes:   res.Outcomes,
	}
}

func (a *App) write(ctx context.Context, res *CleanResult, opts CleanOptions) error {
	if opts.Output != "" {
		return export.WriteFile(opts.Output, res.Output)
	}
	dir := filepath.Dir(res.OutputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	_, err := export.NewFileSink(dir).Put(ctx, export.Object{
		RunID:  res.RunID,
		Name:   res.Source,
		Table:  res.Output,
		Report: res.Report,
	})
	return err
}

func (a *App) export(ctx context.Context, res *CleanResult) (string, error) {
	e := a.Config.Export
	sink, err := export.NewMinioSink(export.MinioConfig{
		Endpoint:  e.Endpoint,
		AccessKey: e.AccessKey,
		SecretKey: e.SecretKey,
		Bucket:    e.Bucket,
		Region:    e.Region,
		UseSSL:    e.UseSSL,
	})
	if err != nil {
		return "", err
	}
	return sink.Put(ctx, export.Object{
		RunID:  res.RunID,
		Name:   res.Source,
		Table:  res.Output,
		Report: res.Report,
	})
}

// record stores the run in the ledger. Ledger failures never fail a run.
func (a *App) record(ctx context.Context, input *table.Table, res *CleanResult) {
	l, err := a.Ledger()
	if err != nil {
		a.Logger.Warn("ledger unavailable", "err", err)
		return
	}
	if l == nil {
		return
	}

	rec := ledger.RunRecord{
		ID:         res.RunID,
		Source:     res.Source,
		Model:      a.model,
		PlanID:     res.Plan.ID,
		StartedAt:  res.StartedAt,
		FinishedAt: res.StartedAt.Add(res.Duration),
		InputRows:  res.InputRows,
		OutputRows: res.Output.NumRows(),
		Steps:      res.Outcomes,
	}
	var hashErr error
	rec.InputHash, hashErr = ledger.Fingerprint(input)
	if hashErr == nil {
		rec.OutputHash, hashErr = ledger.Fingerprint(res.Output)
	}
	if hashErr != nil {
		a.Logger.Warn("fingerprint dataset", "err", hashErr)
	}

	// A cancelled run is still recorded.
	if _, err := l.Record(context.WithoutCancel(ctx), rec); err != nil {
		a.Logger.Warn("record run", "run", res.RunID, "err", err)
	}
}
