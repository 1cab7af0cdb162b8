package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/b2english/tensequest/internal/config"
	"github.com/b2english/tensequest/internal/content"
	"github.com/b2english/tensequest/internal/logging"
	"github.com/b2english/tensequest/internal/practice"
	"github.com/b2english/tensequest/internal/progress"
	"github.com/b2english/tensequest/internal/selection"
	"github.com/b2english/tensequest/internal/store"
)

// appEnv is everything a command needs to drive practice.
type appEnv struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *store.Store
	progress *progress.Store
	ctrl     *practice.Controller
	offline  bool
}

func (a *appEnv) Close() {
	if a.ctrl != nil {
		a.ctrl.Close()
	}
	a.store.Close()
	_ = a.logger.Sync()
}

// loadConfig reads the --config file (or the default path) and env.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openStore opens the config, logger and database without the controller.
func openStore(cmd *cobra.Command) (*appEnv, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log, nil)
	if err != nil {
		return nil, err
	}

	dbPath, err := resolveDBPath(cmd)
	if err != nil {
		return nil, fmt.Errorf("resolve DB path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	logger.Debug("store opened", zap.String("path", dbPath))

	return &appEnv{
		cfg:    cfg,
		logger: logger,
		store:  st,
		progress: progress.New(st.KV(), progress.Options{
			DailyGoal: cfg.Progress.DailyGoal,
			Logger:    logger.Named("progress"),
		}),
	}, nil
}

// openApp builds the controller on top of openStore and restores the saved
// run. tick enables the background millionaire countdown.
func openApp(cmd *cobra.Command, tick bool) (*appEnv, error) {
	a, err := openStore(cmd)
	if err != nil {
		return nil, err
	}

	offline, _ := cmd.Flags().GetBool("offline")
	svc, err := newService(a.cfg, offline, a.logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.offline = offline || a.cfg.Offline()

	sel := selection.DefaultConfig()
	sel.Levels = a.cfg.Practice.Levels
	sel.RecentWindow = a.cfg.Practice.RecentWindow

	opts := practice.Options{
		Policy:    a.cfg.Practice.Policy,
		Selection: sel,
		Budget:    a.cfg.Practice.Budget,
		Events:    a.store.EventRepo(),
		Logger:    a.logger,
	}
	if tick {
		opts.TickInterval = a.cfg.Practice.TickInterval
	}
	ctrl, err := practice.New(svc, a.store.KV(), a.progress, opts)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.ctrl = ctrl
	ctrl.Open(cmd.Context())
	return a, nil
}

// newService returns the HTTP client, or the built-in bank when offline or
// when no backend is configured.
func newService(cfg *config.Config, offline bool, logger *zap.Logger) (content.Service, error) {
	if offline || cfg.Offline() {
		logger.Debug("using the built-in question bank")
		return content.NewOfflineMock(), nil
	}
	client, err := content.NewClient(content.ClientConfig{
		BaseURL:       cfg.Backend.URL,
		Token:         cfg.Backend.Token,
		Timeout:       cfg.Backend.Timeout,
		RatePerSecond: cfg.Backend.RatePerSecond,
		Burst:         cfg.Backend.Burst,
	}, logger.Named("content"))
	if err != nil {
		return nil, fmt.Errorf("backend client: %w", err)
	}
	client.OnUnauthorized = func() {
		logger.Warn("backend rejected the token, update backend.token")
	}
	return client, nil
}
