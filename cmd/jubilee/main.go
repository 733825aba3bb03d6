// Command jubilee is the command-line entry point of the runtime.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/jubilee"
	"github.com/hupe1980/jubilee/agent"
	"github.com/hupe1980/jubilee/angel"
	"github.com/hupe1980/jubilee/config"
	"github.com/hupe1980/jubilee/core"
	"github.com/hupe1980/jubilee/tool"
)

var (
	configPath string
	sessionID  string
	verbose    bool

	dispatchRole       string
	dispatchName       string
	dispatchCaps       []string
	dispatchSkill      string
	dispatchIterations int
	dispatchTaskID     int64
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "jubilee",
		Short:         "jubilee - a guarded, tool-using agent runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")
	root.PersistentFlags().StringVarP(&sessionID, "session", "s", "default", "conversation session id")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print thinking and tool events")

	ask := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the Triune (Mind and Prophet analyse, the Will answers)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, jubilee.TriuneAgent, strings.Join(args, " "))
		},
	}

	chat := &cobra.Command{
		Use:   "agent [message]",
		Short: "Talk to a single tool-using agent",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, jubilee.ChatAgent, strings.Join(args, " "))
		},
	}

	dispatch := &cobra.Command{
		Use:   "dispatch [mission]",
		Short: "Dispatch an angel on a mission",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runDispatch,
	}
	dispatch.Flags().StringVarP(&dispatchRole, "role", "r", "", "angel role template, e.g. DocsAngel")
	dispatch.Flags().StringVarP(&dispatchName, "name", "n", "", "angel name")
	dispatch.Flags().StringSliceVar(&dispatchCaps, "capabilities", nil, "capabilities to grant (comma separated)")
	dispatch.Flags().StringVar(&dispatchSkill, "skill", "", "skill to focus the angel on")
	dispatch.Flags().IntVar(&dispatchIterations, "iterations", 0, "iteration budget")
	dispatch.Flags().Int64Var(&dispatchTaskID, "task-id", 0, "task to resume and record progress on")

	roles := &cobra.Command{
		Use:   "roles",
		Short: "List angel role templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			r, err := angel.LoadRoles(cfg.Angel.RolesFile)
			if err != nil {
				return err
			}
			printRoles(cmd.OutOrStdout(), r, angel.Modes{Stewardship: cfg.Modes.Stewardship, Builder: cfg.Modes.Builder})
			return nil
		},
	}

	root.AddCommand(ask, chat, dispatch, roles)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func build(ctx context.Context) (*jubilee.Jubilee, func() error, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	return jubilee.NewFromConfig(ctx, cfg)
}

// runSession runs agentName through the runner. An interrupt cancels the run,
// which ends with an aborted event.
func runSession(cmd *cobra.Command, agentName, query string) error {
	ctx := cmd.Context()
	j, closeFn, err := build(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()

	_, events, err := j.Runner.Run(ctx, sessionID, agentName, query)
	if err != nil {
		return err
	}
	res := agent.Collect(events, func(ev core.Event) { render(cmd.OutOrStdout(), ev, verbose) })
	if err := res.Err(); err != nil && core.KindOf(err) != core.KindCancellation {
		return err
	}
	return nil
}

func runDispatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	j, closeFn, err := build(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()

	report := j.Dispatch(ctx, angel.Mission{
		Role:         dispatchRole,
		Name:         dispatchName,
		Text:         strings.Join(args, " "),
		Capabilities: tool.ParseCapabilities(dispatchCaps),
		SkillFocus:   dispatchSkill,
		Iterations:   dispatchIterations,
		TaskID:       dispatchTaskID,
	})
	fmt.Fprintln(cmd.OutOrStdout(), report)
	return nil
}
