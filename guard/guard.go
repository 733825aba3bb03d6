// Package guard implements the SafetyGuard: a single, tool-less model call
// that approves or rejects content against a named policy. Policy wording
// lives in versioned YAML (see Policies) and is kept apart from the check
// mechanism, which is a function of policy and subject only.
package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/jubilee/core"
	"github.com/hupe1980/jubilee/internal/util"
	"github.com/hupe1980/jubilee/logging"
	"github.com/hupe1980/jubilee/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Checker is the interface consumers depend on.
type Checker interface {
	Check(ctx context.Context, policy, name, text string) Verdict
}

// Options configures a Guard.
type Options struct {
	Timeout time.Duration
	Logger  logging.Logger
	Tracer  trace.Tracer
}

// Guard evaluates content with a model. It fails closed: model errors and
// unparseable responses reject.
type Guard struct {
	llm      model.Model
	policies Policies
	opts     Options
}

var _ Checker = (*Guard)(nil)

// New creates a guard. A nil policies map selects DefaultPolicies.
func New(llm model.Model, policies Policies, optFns ...func(o *Options)) *Guard {
	opts := Options{
		Timeout: 30 * time.Second,
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("github.com/hupe1980/jubilee/guard")
	}
	if policies == nil {
		policies = DefaultPolicies()
	}
	return &Guard{llm: llm, policies: policies, opts: opts}
}

// Check renders the named policy for (name, text) and asks the model for a verdict.
func (g *Guard) Check(ctx context.Context, policy, name, text string) Verdict {
	ctx, span := g.opts.Tracer.Start(ctx, "guard.check", trace.WithAttributes(
		attribute.String("guard.policy", policy),
		attribute.String("guard.subject", name),
	))
	defer span.End()

	v := g.check(ctx, policy, name, text)

	span.SetAttributes(attribute.Bool("guard.approved", v.Approved))
	if v.Approved {
		g.opts.Logger.Info("guard.approved", "policy", policy, "subject", name)
	} else {
		g.opts.Logger.Warn("guard.rejected", "policy", policy, "subject", name, "reason", v.Reason)
	}
	return v
}

func (g *Guard) check(ctx context.Context, policy, name, text string) Verdict {
	p, ok := g.policies[policy]
	if !ok {
		return Reject(fmt.Sprintf("unknown guard policy %q", policy))
	}

	prompt, err := util.RenderTemplate(p.Prompt, map[string]any{"name": name, "text": text})
	if err != nil {
		return Reject(fmt.Sprintf("guard policy %q could not be rendered: %v", policy, err))
	}

	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	resp, err := model.Collect(ctx, g.llm, model.Request{
		Instructions: prompt,
		Messages:     []core.Message{{Role: core.RoleUser, Content: "Validate this request."}},
	})
	if err != nil {
		g.opts.Logger.Error("guard.model.error", "policy", policy, "error", err.Error())
		return Reject(fmt.Sprintf("guard unavailable: %v", err))
	}
	return ParseVerdict(resp.Text)
}

// CheckMission checks an Angel mission and renders the verdict as
// "APPROVE" or "REJECT: <reason>".
func (g *Guard) CheckMission(ctx context.Context, name, text string) string {
	return g.Check(ctx, PolicyMission, name, text).String()
}

// CheckMemory checks a fact before it is stored.
func (g *Guard) CheckMemory(ctx context.Context, fact string) Verdict {
	return g.Check(ctx, PolicyMemory, "memory", fact)
}

// Func adapts a function to Checker.
type Func func(ctx context.Context, policy, name, text string) Verdict

// Check implements Checker.
func (f Func) Check(ctx context.Context, policy, name, text string) Verdict {
	return f(ctx, policy, name, text)
}
