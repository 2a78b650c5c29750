package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/conclave-ai/conclave/internal/config"
	"github.com/conclave-ai/conclave/internal/council"
	"github.com/conclave-ai/conclave/internal/errors"
	"github.com/conclave-ai/conclave/internal/event"
	"github.com/conclave-ai/conclave/internal/logging"
	"github.com/conclave-ai/conclave/internal/orchestrator"
	"github.com/conclave-ai/conclave/internal/roster"
	"github.com/conclave-ai/conclave/internal/runtime"
	"github.com/conclave-ai/conclave/internal/store"
)

// app wires the collaborators a command needs: config, logger, file store,
// agent roster, exec runtime, event bus, and the stage controller. Commands
// that only read persisted state use openStore instead.
type app struct {
	cfg        *config.Config
	logger     *logging.Logger
	store      *store.FileStore
	roster     *roster.Directory
	runtime    *runtime.ExecRuntime
	bus        *event.Bus
	controller *orchestrator.StageController
}

// openApp builds the full application wiring from the loaded configuration.
func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dataDir := cfg.Paths.ResolveDataDir()
	st, err := store.NewFileStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open data directory: %w", err)
	}

	logger, err := newAppLogger(cfg, dataDir)
	if err != nil {
		return nil, err
	}

	agents, err := roster.Load(cfg.Paths.ResolveRosterFile())
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("failed to load agent roster (run 'conclave init' to create one): %w", err)
	}

	bus := event.NewBus()
	rt := runtime.NewExecRuntime(agents, projectWorkdir(st), runtime.ExecConfig{
		OutputBufferSize: cfg.Runtime.OutputBufferSize,
		StopGrace:        cfg.Runtime.StopGrace(),
	}, logger)

	controller, err := orchestrator.NewStageController(st, rt, agents, bus, orchestrator.Config{
		ResponseBudgetPerAgent:   cfg.Stages.ResponseBudgetPerAgent(),
		DiscussionBudgetPerAgent: cfg.Stages.DiscussionBudgetPerAgent(),
		DiscussionRoundFloor:     cfg.Stages.DiscussionRoundFloor(),
		DiscussionTotalCeiling:   cfg.Stages.DiscussionTotalCeiling(),
		ReviewBudgetPerAgent:     cfg.Stages.ReviewBudgetPerAgent(),
		SynthesisBudget:          cfg.Stages.SynthesisBudget(),
		ChatStartBudget:          cfg.Stages.ChatStartBudget(),
	}, logger)
	if err != nil {
		logger.Close()
		return nil, err
	}

	return &app{
		cfg:        cfg,
		logger:     logger,
		store:      st,
		roster:     agents,
		runtime:    rt,
		bus:        bus,
		controller: controller,
	}, nil
}

// Close tears the wiring down: controller first so its watchers stop driving
// the runtime, then the agent processes, then the log file.
func (a *app) Close() {
	a.controller.Close()
	if err := a.runtime.Close(); err != nil {
		a.logger.Warn("failed to stop agent processes", "error", err)
	}
	a.logger.Close()
}

// newAppLogger builds the structured logger per the logging config. Disabled
// logging still returns a logger so wiring stays uniform.
func newAppLogger(cfg *config.Config, dataDir string) (*logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NopLogger(), nil
	}
	logger, err := logging.NewLoggerWithRotation(
		filepath.Join(dataDir, "debug"),
		logging.ParseLevel(cfg.Logging.Level),
		logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return logger, nil
}

// openStore opens just the file store, for commands that only read or write
// persisted state and never touch agent processes.
func openStore() (*store.FileStore, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	st, err := store.NewFileStore(cfg.Paths.ResolveDataDir())
	if err != nil {
		return nil, fmt.Errorf("failed to open data directory: %w", err)
	}
	return st, nil
}

// projectWorkdir maps a launch id to its project's working directory, which
// is where the exec runtime runs the launch's agent processes.
func projectWorkdir(st store.Store) runtime.WorkdirFunc {
	return func(launchID string) (string, error) {
		ctx := context.Background()
		launch, err := st.LoadLaunch(ctx, launchID)
		if err != nil {
			return "", err
		}
		project, err := st.LoadProject(ctx, launch.ProjectID)
		if err != nil {
			return "", err
		}
		return project.WorkingDir, nil
	}
}

// resolveCouncil finds a council by exact id, exact name, or unique id prefix.
func resolveCouncil(ctx context.Context, st store.Store, ref string) (*council.Council, error) {
	if c, err := st.LoadCouncil(ctx, ref); err == nil {
		return c, nil
	}
	all, err := st.ListCouncils(ctx)
	if err != nil {
		return nil, err
	}
	var match *council.Council
	for _, c := range all {
		if c.Name == ref || strings.HasPrefix(c.ID, ref) {
			if match != nil {
				return nil, fmt.Errorf("council reference '%s' is ambiguous", ref)
			}
			match = c
		}
	}
	if match == nil {
		return nil, errors.NewNotFoundError("council", ref).WithCause(errors.ErrCouncilNotFound)
	}
	return match, nil
}

// resolveProject finds a project by exact id, exact name, or unique id prefix.
func resolveProject(ctx context.Context, st store.Store, ref string) (*council.Project, error) {
	if p, err := st.LoadProject(ctx, ref); err == nil {
		return p, nil
	}
	all, err := st.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	var match *council.Project
	for _, p := range all {
		if p.Name == ref || strings.HasPrefix(p.ID, ref) {
			if match != nil {
				return nil, fmt.Errorf("project reference '%s' is ambiguous", ref)
			}
			match = p
		}
	}
	if match == nil {
		return nil, errors.NewNotFoundError("project", ref).WithCause(errors.ErrProjectNotFound)
	}
	return match, nil
}

// resolveLaunch finds a launch by exact id or unique id prefix; an empty ref
// resolves to the most recently created launch.
func resolveLaunch(ctx context.Context, st store.Store, ref string) (*council.Launch, error) {
	if ref != "" {
		if l, err := st.LoadLaunch(ctx, ref); err == nil {
			return l, nil
		}
	}
	all, err := st.ListLaunches(ctx)
	if err != nil {
		return nil, err
	}
	if ref == "" {
		if len(all) == 0 {
			return nil, errors.NewNotFoundError("launch", "latest").WithCause(errors.ErrLaunchNotFound)
		}
		return all[len(all)-1], nil
	}
	var match *council.Launch
	for _, l := range all {
		if strings.HasPrefix(l.ID, ref) {
			if match != nil {
				return nil, fmt.Errorf("launch reference '%s' is ambiguous", ref)
			}
			match = l
		}
	}
	if match == nil {
		return nil, errors.NewNotFoundError("launch", ref).WithCause(errors.ErrLaunchNotFound)
	}
	return match, nil
}
