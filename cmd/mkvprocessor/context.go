package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/HThanh-how/mkvprocesser/internal/config"
	"github.com/HThanh-how/mkvprocesser/internal/logging"
	"github.com/HThanh-how/mkvprocesser/internal/manifest"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// logger builds the run logger. Console output goes to the command's stderr
// so stdout stays clean for tables and JSON.
func (c *commandContext) logger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	opts := logging.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Console: cmd.ErrOrStderr(),
	}
	if cfg.Paths.LogDir != "" {
		opts.FilePath = filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
	}
	logger, err := logging.New(opts)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

func (c *commandContext) openManifest(cmd *cobra.Command, logger *slog.Logger) (*config.Config, *manifest.Manifest, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	m, err := manifest.Open(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open manifest %s: %w", cfg.Paths.ManifestPath, err)
	}
	return cfg, m, nil
}

// interruptContexts maps the first SIGINT/SIGTERM to a graceful stop (no new
// files are dispatched) and the second to a hard stop that aborts in-flight
// extraction.
func interruptContexts(parent context.Context, notify func(string)) (context.Context, context.Context, func()) {
	runCtx, cancelRun := context.WithCancel(parent)
	hardStop, cancelHard := context.WithCancel(context.Background())

	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		count := 0
		for {
			select {
			case <-done:
				return
			case <-signals:
				count++
				if count == 1 {
					notify("stopping after in-flight files finish; interrupt again to abort them")
					cancelRun()
					continue
				}
				notify("aborting in-flight files")
				cancelHard()
				return
			}
		}
	}()

	stop := func() {
		signal.Stop(signals)
		close(done)
		cancelRun()
		cancelHard()
	}
	return runCtx, hardStop, stop
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
