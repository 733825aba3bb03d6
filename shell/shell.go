// Package shell provides the code_exec tool: build, test and analysis
// commands run through sh with a first-word allowlist, a pattern blocklist,
// a bounded timeout and truncated output. Bind it to the confirmation policy
// so a human approves every command.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/hupe1980/jubilee/core"
	"github.com/hupe1980/jubilee/tool"
)

// DefaultAllowlist covers the build lifecycle of contracts and services.
var DefaultAllowlist = []string{
	"forge", "cast", "anvil", "slither",
	"bun", "npx", "node", "tsc",
	"anchor", "solana", "cargo",
	"go", "git",
	"npm", "yarn",
	"cat", "ls", "find", "wc", "grep", "head", "tail", "echo", "pwd", "which",
}

// DefaultBlocklist rejects commands even when the first word is allowed.
var DefaultBlocklist = []*regexp.Regexp{
	regexp.MustCompile(`(?i)rm\s+(-rf?|--recursive)`),
	regexp.MustCompile(`(?i)sudo`),
	regexp.MustCompile(`(?i)(curl|wget).*\|\s*(bash|sh)`),
	regexp.MustCompile(`(?i)>\s*/dev/sd`),
	regexp.MustCompile(`(?i)mkfs`),
	regexp.MustCompile(`(?i)dd\s+if=`),
	regexp.MustCompile(`(?i)npm publish`),
	regexp.MustCompile(`(?i)git (push|merge)`),
	regexp.MustCompile(`(?i)DROP\s+TABLE`),
	regexp.MustCompile(`(?i)TRUNCATE`),
}

const (
	// DefaultTimeout applies when the call sets none.
	DefaultTimeout = 60 * time.Second
	// MaxTimeout caps the timeout a call may request.
	MaxTimeout = 120 * time.Second
	// MaxOutput bounds the characters returned to the model.
	MaxOutput = 4000
)

// Options configures the code_exec tool.
type Options struct {
	Allowlist []string
	Blocklist []*regexp.Regexp
	// Dir is the default working directory.
	Dir   string
	Shell string
}

// Executor runs allowlisted commands.
type Executor struct {
	opts    Options
	allowed map[string]struct{}
}

// New creates an Executor.
func New(optFns ...func(o *Options)) *Executor {
	opts := Options{
		Allowlist: DefaultAllowlist,
		Blocklist: DefaultBlocklist,
		Shell:     "sh",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	allowed := make(map[string]struct{}, len(opts.Allowlist))
	for _, c := range opts.Allowlist {
		allowed[strings.TrimSpace(c)] = struct{}{}
	}
	return &Executor{opts: opts, allowed: allowed}
}

// Check returns a refusal when command may not run, or "" when it may.
func (e *Executor) Check(command string) string {
	fields := strings.Fields(command)
	base := ""
	if len(fields) > 0 {
		base = fields[0]
	}
	if _, ok := e.allowed[base]; !ok || base == "" {
		return fmt.Sprintf("⛔ Command rejected: '%s' is not in the allowlist.\nAllowed: %s", base, strings.Join(e.opts.Allowlist, ", "))
	}
	for _, p := range e.opts.Blocklist {
		if p.MatchString(command) {
			return fmt.Sprintf("⛔ Command rejected: matches blocked pattern (%s). This command is not safe for automated execution.", p.String())
		}
	}
	return ""
}

// Run executes command and renders the outcome for the model. Refusals and
// non-zero exits are returned as text, not errors.
func (e *Executor) Run(ctx context.Context, command, dir string, timeout time.Duration) string {
	if refusal := e.Check(command); refusal != "" {
		return refusal
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	timeout = min(timeout, MaxTimeout)
	if dir == "" {
		dir = e.opts.Dir
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.opts.Shell, "-c", command)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	if err == nil {
		return fmt.Sprintf("✅ Command succeeded:\n```\n%s\n```", truncate(stdout.String()))
	}

	combined := truncate(strings.TrimSpace(stdout.String() + "\n" + stderr.String()))
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Sprintf("⏱️ Command timed out after %s:\n```\n%s\n```", timeout, combined)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Sprintf("❌ Command failed (exit %d):\n```\n%s\n```", exitErr.ExitCode(), combined)
	}
	return fmt.Sprintf("❌ Command failed: %v", err)
}

func truncate(s string) string {
	if len(s) <= MaxOutput {
		return s
	}
	return s[:MaxOutput] + fmt.Sprintf("\n\n... [output truncated at %d chars, full output was %d chars]", MaxOutput, len(s))
}

type execArgs struct {
	Command   string `json:"command" description:"Shell command to execute (e.g. forge test --gas-report)."`
	Cwd       string `json:"cwd,omitempty" description:"Working directory."`
	TimeoutMS int64  `json:"timeout,omitempty" description:"Timeout in milliseconds (max 120000)."`
}

// NewTool returns the code_exec tool backed by e.
func NewTool(e *Executor) tool.Tool {
	return tool.NewTypedTool(
		string(tool.CapCodeExec),
		fmt.Sprintf("Execute a shell command for build/test/analysis. Allowed commands: %s. Output is captured and returned. Max timeout: %ds.",
			strings.Join(e.opts.Allowlist, ", "), int(MaxTimeout.Seconds())),
		func(toolCtx *core.ToolContext, args execArgs) (any, error) {
			var timeout time.Duration
			if args.TimeoutMS > 0 {
				timeout = time.Duration(args.TimeoutMS) * time.Millisecond
			}
			toolCtx.LogInfo("shell.exec", "command", args.Command, "cwd", args.Cwd)
			return e.Run(toolCtx.Context(), args.Command, args.Cwd, timeout), nil
		},
	)
}
