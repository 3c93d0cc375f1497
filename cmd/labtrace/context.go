package main

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"labtrace/internal/config"
	"labtrace/internal/logging"
	"labtrace/internal/protocol"
	"labtrace/internal/services"
	"labtrace/internal/storage"
	"labtrace/internal/trace"
	"labtrace/internal/workflow"
)

type commandContext struct {
	configFlag   *string
	jsonFlag     *bool
	operatorFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, jsonFlag *bool, operatorFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		jsonFlag:     jsonFlag,
		operatorFlag: operatorFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
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

func (c *commandContext) JSONMode() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// coreContext bundles the opened store with the services built on top of it
// for the duration of one command.
type coreContext struct {
	cfg      *config.Config
	store    *storage.Store
	engine   *trace.Engine
	orch     *workflow.Orchestrator
	runner   *protocol.Runner
	registry *protocol.Registry
}

// withCore opens the entity store, wires the core services, runs fn, and
// closes the store. The command context carries the operator attribution when
// the --operator flag is set.
func (c *commandContext) withCore(cmd *cobra.Command, fn func(ctx context.Context, core *coreContext) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{filepath.Join(cfg.Paths.LogDir, "labtrace.log")},
	})
	if err != nil {
		return err
	}

	store, err := storage.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	engine := trace.NewEngine(store, logger)
	core := &coreContext{
		cfg:      cfg,
		store:    store,
		engine:   engine,
		orch:     workflow.NewOrchestrator(cfg, store, engine, logger),
		runner:   protocol.NewRunner(cfg, store, engine, logger),
		registry: protocol.NewRegistry(),
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if c.operatorFlag != nil {
		if operator := strings.TrimSpace(*c.operatorFlag); operator != "" {
			ctx = services.WithUser(ctx, operator)
		}
	}
	return fn(ctx, core)
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
