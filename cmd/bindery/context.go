package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"bindery/internal/assignment"
	"bindery/internal/config"
	"bindery/internal/delivery"
	"bindery/internal/filemover"
	"bindery/internal/launcher"
	"bindery/internal/localip"
	"bindery/internal/logging"
	"bindery/internal/processing"
	"bindery/internal/services"
	"bindery/internal/store"
	"bindery/internal/workflow"
)

type commandContext struct {
	configFlag *string
	userFlag   *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, userFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		userFlag:   userFlag,
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

// engines bundles the wired service graph a command works against.
type engines struct {
	Store      *store.Store
	Workflow   *workflow.Engine
	Assignment *assignment.Engine
	Delivery   *delivery.Engine
	Processing *processing.Engine
	Logger     *slog.Logger
}

// withStore opens the store for a read-only command.
func (c *commandContext) withStore(fn func(*store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

// withEngines acquires the mutation lock, wires the full engine graph, and
// runs the command body. The lock keeps concurrent CLI invocations from
// interleaving folder moves with status writes.
func (c *commandContext) withEngines(fn func(*engines) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire mutation lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another bindery invocation is mutating the tracker; retry in a moment")
	}
	defer func() { _ = lock.Unlock() }()

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	mover := filemover.NewConfiguredService(cfg)
	launch := launcher.NewConfiguredService(cfg, logger)
	resolver := localip.NewResolver(cfg)

	wf := workflow.NewEngine(st, mover, launch, logger)
	return fn(&engines{
		Store:      st,
		Workflow:   wf,
		Assignment: assignment.NewEngine(wf, resolver, logger),
		Delivery:   delivery.NewEngine(wf, logger),
		Processing: processing.NewEngine(wf, launch, logger),
		Logger:     logger,
	})
}

// actingUser resolves the --user flag against the store and annotates the
// context with the actor for audit entries.
func (c *commandContext) actingUser(ctx context.Context, st *store.Store) (context.Context, *store.User, error) {
	name := ""
	if c.userFlag != nil {
		name = strings.TrimSpace(*c.userFlag)
	}
	if name == "" {
		return ctx, nil, nil
	}
	user, err := st.GetUserByName(ctx, name)
	if err != nil {
		return ctx, nil, err
	}
	if user == nil {
		return ctx, nil, fmt.Errorf("user %q does not exist", name)
	}
	return services.WithActor(ctx, user.Name), user, nil
}

// requireUser is actingUser for commands that cannot run anonymously.
func (c *commandContext) requireUser(ctx context.Context, st *store.Store) (context.Context, *store.User, error) {
	ctx, user, err := c.actingUser(ctx, st)
	if err != nil {
		return ctx, nil, err
	}
	if user == nil {
		return ctx, nil, fmt.Errorf("this command needs an acting user; pass --user")
	}
	return ctx, user, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}