package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/vnflcm/pkg/config"
	"github.com/openfroyo/vnflcm/pkg/engine"
	"github.com/openfroyo/vnflcm/pkg/lifecycle"
	"github.com/openfroyo/vnflcm/pkg/policy"
	"github.com/openfroyo/vnflcm/pkg/render"
	"github.com/openfroyo/vnflcm/pkg/stores"
	"github.com/openfroyo/vnflcm/pkg/telemetry"
)

// loadConfig reads the workspace file and applies the global flags.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if contextName != "" {
		cfg.Context = contextName
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	return cfg, nil
}

// workspace is the opened state shared by the commands touching the store.
type workspace struct {
	cfg     *config.Config
	tel     *telemetry.Telemetry
	store   *stores.SQLiteStore
	policy  *policy.Engine
	manager *lifecycle.Manager
	logger  zerolog.Logger
}

func openWorkspace(ctx context.Context) (*workspace, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.NewTelemetry(&cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	logger := tel.Logger.Zerolog()

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	store, err := stores.NewSQLiteStore(stores.Config{Path: cfg.Database.Path})
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	mode, err := policy.ParseMode(cfg.Policy.Mode)
	if err != nil {
		store.Close()
		return nil, err
	}
	pe, err := policy.NewEngine(logger, mode)
	if err != nil {
		store.Close()
		return nil, err
	}
	if len(cfg.Policy.Paths) > 0 {
		if err := pe.LoadPolicies(ctx, cfg.Policy.Paths); err != nil {
			store.Close()
			return nil, err
		}
	}

	manager := lifecycle.NewManager(store, lifecycle.Options{
		Policy:    pe,
		Telemetry: tel,
		Executor:  executorOptions(cfg.Actuator),
		Actor:     actor(),
		Logger:    logger,
	})

	return &workspace{
		cfg:     cfg,
		tel:     tel,
		store:   store,
		policy:  pe,
		manager: manager,
		logger:  logger,
	}, nil
}

func (w *workspace) Close(ctx context.Context) error {
	return errors.Join(w.tel.Shutdown(ctx), w.store.Close())
}

// withWorkspace opens the workspace for the duration of fn.
func withWorkspace(cmd *cobra.Command, fn func(ctx context.Context, ws *workspace) error) error {
	ctx := cmd.Context()
	ws, err := openWorkspace(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := ws.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Msg("Failed to close workspace")
		}
	}()
	return fn(ctx, ws)
}

func executorOptions(cfg config.ActuatorConfig) engine.ExecutorOptions {
	return engine.ExecutorOptions{
		MaxParallel: cfg.MaxParallel,
		MaxRetries:  cfg.MaxRetries,
		StepTimeout: cfg.Timeout,
		BaseBackoff: cfg.BaseBackoff,
		FailFast:    cfg.FailFast,
	}
}

func actor() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "vnflcm"
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v interface{}) error {
	out, err := render.JSON.Render(context.Background(), render.FormatJSON, v)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// versionArg parses a version flag: a number, "latest" or "previous".
func versionArg(s string) (int, error) {
	switch s {
	case "", "latest":
		return lifecycle.Latest, nil
	case "previous":
		return lifecycle.Previous, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid version %q: want a number, latest or previous", s)
	}
	return v, nil
}
