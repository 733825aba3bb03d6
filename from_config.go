package jubilee

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/hupe1980/jubilee/agent"
	"github.com/hupe1980/jubilee/angel"
	"github.com/hupe1980/jubilee/config"
	"github.com/hupe1980/jubilee/guard"
	"github.com/hupe1980/jubilee/logging"
	"github.com/hupe1980/jubilee/model/provider"
	"github.com/hupe1980/jubilee/onchain"
	"github.com/hupe1980/jubilee/policy"
	"github.com/hupe1980/jubilee/session"
	"github.com/hupe1980/jubilee/shell"
	"github.com/hupe1980/jubilee/skills"
	"github.com/hupe1980/jubilee/task"
)

// NewLogger builds the structured logger described by cfg.
func NewLogger(cfg config.LoggingConfig) *logging.StructuredLogger {
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.ParseLevel(cfg.Level),
		Format:    cfg.Format,
		Output:    os.Stderr,
		AddSource: cfg.AddSource,
	})
}

// NewFromConfig builds the model, stores and domain tools described by cfg
// and assembles the runtime. The allowlist file is watched until ctx is
// cancelled. The returned close function releases connections.
func NewFromConfig(ctx context.Context, cfg *config.Config, optFns ...func(o *Options)) (*Jubilee, func() error, error) {
	logger := NewLogger(cfg.Logging)
	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}
	fail := func(err error) (*Jubilee, func() error, error) {
		_ = closeAll()
		return nil, nil, err
	}

	llm, err := provider.New(cfg.Model.ID, cfg.Model.Credentials)
	if err != nil {
		return fail(err)
	}
	guardModel := llm
	if cfg.Model.GuardID != "" {
		if guardModel, err = provider.New(cfg.Model.GuardID, cfg.Model.Credentials); err != nil {
			return fail(err)
		}
	}

	policies, err := guard.LoadPolicies(cfg.Guard.PolicyFile)
	if err != nil {
		return fail(err)
	}
	roles, err := angel.LoadRoles(cfg.Angel.RolesFile)
	if err != nil {
		return fail(err)
	}

	var (
		tasks    task.Store
		sessions session.Store = session.NewInMemoryStore()
	)
	switch cfg.Tasks.Driver {
	case config.DriverRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.Tasks.Address, Password: cfg.Tasks.Password, DB: cfg.Tasks.DB})
		closers = append(closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return fail(fmt.Errorf("connect redis: %w", err))
		}
		tasks = task.NewRedisStoreFromClient(client, cfg.Tasks.KeyPrefix)
		sessions = session.NewRedisStore(client, "", 0)
	case config.DriverMySQL:
		store, err := task.NewMySQLStore(ctx, cfg.Tasks.DSN)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, store.Close)
		tasks = store
	default:
		tasks = task.NewMemoryStore()
	}

	lib, skillErrs := skills.Discover(cfg.Skills.Dir)
	for _, e := range skillErrs {
		logger.WithComponent("skills").Warn("skills.load_failed", "error", e.Error())
	}

	allowlist := policy.NewAllowlist(cfg.Treasury.Allowlist...)
	if cfg.Treasury.AllowlistFile != "" {
		if _, err := allowlist.Watch(ctx, cfg.Treasury.AllowlistFile, func(o *policy.WatchOptions) {
			o.Logger = logger.WithComponent("policy")
		}); err != nil {
			return fail(err)
		}
	}

	var treasury *onchain.Treasury
	if cfg.Treasury.RPCURL != "" {
		client, err := onchain.Dial(ctx, cfg.Treasury.RPCURL)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() error { client.Close(); return nil })
		key := cfg.TreasuryKey()
		if key == "" {
			treasury = onchain.NewTreasury(client, nil)
		} else {
			pk, err := onchain.ParseKey(key)
			if err != nil {
				return fail(err)
			}
			treasury = onchain.NewTreasury(client, pk)
		}
	}

	var sh *shell.Executor
	if cfg.Shell.Enabled {
		sh = shell.New(func(o *shell.Options) {
			if len(cfg.Shell.Allowlist) > 0 {
				o.Allowlist = cfg.Shell.Allowlist
			}
			o.Dir = cfg.Shell.Dir
		})
	}

	j, err := New(llm, append([]func(o *Options){func(o *Options) {
		o.GuardModel = guardModel
		o.GuardPolicies = policies
		o.GuardTimeout = cfg.Guard.Timeout
		o.Roles = roles
		o.Modes = angel.Modes{Stewardship: cfg.Modes.Stewardship, Builder: cfg.Modes.Builder}
		o.MaxDepth = cfg.Angel.MaxDepth
		o.Lenient = cfg.Angel.Lenient
		o.DefaultIterations = cfg.Angel.DefaultIterations
		o.Tasks = tasks
		o.Sessions = sessions
		o.Skills = lib
		o.Allowlist = allowlist
		o.ConfirmationToken = cfg.Shell.ConfirmationToken
		o.Treasury = treasury
		o.Shell = sh
		o.ToolTimeout = cfg.Agent.ToolTimeout
		o.MaxConcurrentRuns = cfg.Agent.MaxConcurrency
		o.RunTimeout = cfg.Agent.RunTimeout
		o.Logger = logger
		o.AgentOptions = []func(o *agent.Options){func(o *agent.Options) {
			o.MaxIterations = cfg.Agent.MaxIterations
			o.ModelTimeout = cfg.Agent.ModelTimeout
			o.ToolTimeout = cfg.Agent.ToolTimeout
			o.ParallelTools = cfg.Agent.ParallelTools
		}}
	}}, optFns...)...)
	if err != nil {
		return fail(err)
	}
	return j, closeAll, nil
}
