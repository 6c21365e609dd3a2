package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/five82/foundry/internal/chatdev"
	"github.com/five82/foundry/internal/config"
	"github.com/five82/foundry/internal/logging"
	"github.com/five82/foundry/internal/poller"
	"github.com/five82/foundry/internal/prefs"
	"github.com/five82/foundry/internal/state"
	"github.com/five82/foundry/internal/telemetry"
	"github.com/five82/foundry/internal/ui"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

const telemetryShutdownTimeout = 3 * time.Second

// Options configure the Foundry application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses prefs_path from config
	EnvPath    string // empty loads ./.env when present
	PollEvery  int    // seconds; zero uses config
}

// Run boots the Foundry TUI until the user quits or the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	if err := config.LoadDotEnv(opts.EnvPath); err != nil {
		return err
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.ApplyEnv(os.LookupEnv)
	if opts.PollEvery > 0 {
		cfg.PollInterval = time.Duration(opts.PollEvery) * time.Second
	}

	prefsPath := opts.PrefsPath
	if strings.TrimSpace(prefsPath) == "" {
		prefsPath = cfg.PrefsPath
	}
	savedPrefs, _ := prefs.Load(prefsPath)
	effective := applyOverrides(savedPrefs, cfg)

	logger, closer, err := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Path: cfg.LogFile})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = closer.Close() }()

	tel := telemetry.Config{ServiceName: "foundry", ServiceVersion: Version, OTLPEndpoint: cfg.OTLPEndpoint}
	shutdown, err := telemetry.Init(ctx, tel)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	client, err := chatdev.NewClient(effective.BaseURL, effective.APIKey,
		chatdev.WithTimeout(cfg.RequestTimeout),
		chatdev.WithLogger(logger),
		chatdev.WithUserAgent("foundry/"+Version),
	)
	if err != nil {
		return fmt.Errorf("init api client: %w", err)
	}
	logger.Info("foundry starting",
		"version", Version,
		"base_url", client.BaseURL(),
		"api_key", logging.MaskKey(effective.APIKey),
		"poll_interval", cfg.PollInterval.String(),
		"list_refresh", cfg.ListRefresh.String(),
		"tracing", tel.Enabled(),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store := &state.Store{}
	polls := poller.NewManager(ctx, client, poller.Options{Interval: cfg.PollInterval, Logger: logger})
	defer polls.Close()
	refresher := NewRefresher(client, store, cfg.ListRefresh, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return refresher.Run(gctx)
	})
	g.Go(func() error {
		// Leaving the UI ends the refresher too.
		defer cancel()
		return ui.Run(ui.Options{
			Context:   gctx,
			Client:    client,
			Store:     store,
			Watcher:   polls,
			Refresh:   refresher.Trigger,
			Prefs:     savedPrefs,
			PrefsPath: prefsPath,
			LogPath:   cfg.LogFile,
			Logger:    logger,
		})
	})

	err = g.Wait()
	logger.Info("foundry stopped", "error", err)
	return err
}

// applyOverrides lays environment overrides over the saved preferences. The
// result configures the client; only the saved values are written back.
func applyOverrides(p prefs.Prefs, cfg config.Config) prefs.Prefs {
	if cfg.BaseURL != "" {
		p.BaseURL = cfg.BaseURL
	}
	if cfg.APIKey != "" {
		p.APIKey = cfg.APIKey
	}
	return p
}
