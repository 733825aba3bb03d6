package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/jubilee/agent"
	"github.com/hupe1980/jubilee/core"
	"github.com/hupe1980/jubilee/logging"
	"github.com/hupe1980/jubilee/session"
)

var (
	// ErrUnknownAgent is returned when no agent is registered under a name.
	ErrUnknownAgent = errors.New("unknown agent")
	// ErrSessionBusy is returned when a session already has a run in flight.
	ErrSessionBusy = errors.New("session has a run in progress")
	// ErrRunNotFound is returned by Cancel for unknown or finished runs.
	ErrRunNotFound = errors.New("run not found")
)

// Options holds dependency and configuration overrides passed to New().
type Options struct {
	// MaxConcurrentRuns limits runs in flight; Run waits for a free slot.
	MaxConcurrentRuns int
	// EventBufferSize sets channel buffering for forwarded events.
	EventBufferSize int
	// RunTimeout bounds each run. Zero disables it.
	RunTimeout time.Duration
	// Sessions stores conversation histories.
	Sessions session.Store
	Logger   logging.Logger
}

// Runner coordinates runs of registered agents. Public methods are safe for
// concurrent use.
type Runner struct {
	opts Options
	sem  chan struct{}

	mu         sync.Mutex
	agents     map[string]core.Agent
	activeRuns map[string]context.CancelFunc
	busy       map[string]struct{}
}

// New constructs a Runner with optional overrides.
func New(optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxConcurrentRuns: 10,
		EventBufferSize:   100,
		Sessions:          session.NewInMemoryStore(),
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxConcurrentRuns <= 0 {
		opts.MaxConcurrentRuns = 1
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Runner{
		opts:       opts,
		sem:        make(chan struct{}, opts.MaxConcurrentRuns),
		agents:     make(map[string]core.Agent),
		activeRuns: make(map[string]context.CancelFunc),
		busy:       make(map[string]struct{}),
	}
}

// Register adds agents under their names, replacing earlier registrations.
func (r *Runner) Register(agents ...core.Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range agents {
		r.agents[a.Name()] = a
	}
}

// Agents returns the registered agent names in sorted order.
func (r *Runner) Agents() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.agents))
	for n := range r.agents {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Run starts an asynchronous run of agentName on the session's history and
// returns the run id with its event stream. The stream ends with exactly one
// terminal event and is closed right after it. By the time the terminal event
// is received the history has been saved and the session accepts a new run.
func (r *Runner) Run(ctx context.Context, sessionID, agentName, query string) (string, <-chan core.Event, error) {
	r.mu.Lock()
	a, ok := r.agents[agentName]
	if !ok {
		r.mu.Unlock()
		return "", nil, fmt.Errorf("%w: %s", ErrUnknownAgent, agentName)
	}
	if _, taken := r.busy[sessionID]; taken {
		r.mu.Unlock()
		return "", nil, fmt.Errorf("%w: %s", ErrSessionBusy, sessionID)
	}
	r.busy[sessionID] = struct{}{}
	r.mu.Unlock()

	release := func() {
		r.mu.Lock()
		delete(r.busy, sessionID)
		r.mu.Unlock()
	}

	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		release()
		return "", nil, ctx.Err()
	}

	history, err := r.opts.Sessions.Load(ctx, sessionID)
	if err != nil {
		<-r.sem
		release()
		return "", nil, fmt.Errorf("failed to load session: %w", err)
	}

	runID := core.NewID()
	ctx, cancel := context.WithCancel(ctx)
	if r.opts.RunTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, r.opts.RunTimeout)
		parent := cancel
		cancel = func() { cancelTimeout(); parent() }
	}

	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	out := make(chan core.Event, r.opts.EventBufferSize)
	log := logging.ForRun(r.opts.Logger, runID)
	log.Info("runner.run.start", "run", runID, "session", sessionID, "agent", agentName)

	// finish frees the run's slot and session before the terminal event is
	// delivered, so a caller reacting to it can start the next run at once.
	finish := func() {
		cancel()
		r.mu.Lock()
		delete(r.activeRuns, runID)
		r.mu.Unlock()
		<-r.sem
		release()
	}

	go func() {
		start := time.Now()
		defer close(out)

		var terminal core.Event
		for ev := range a.Run(ctx, query, history) {
			if ev.RunID == "" {
				ev.RunID = runID
			}
			if ev.IsTerminal() {
				terminal = ev
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
			}
		}

		if terminal.Type == core.EventDone {
			// Saving uses a detached context so a late cancel cannot lose the turn.
			saveCtx, cancelSave := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			if err := r.opts.Sessions.Save(saveCtx, sessionID, history); err != nil {
				log.Error("runner.session.save_failed", "run", runID, "session", sessionID, "error", err.Error())
			}
			cancelSave()
		}
		if terminal.Type == "" {
			terminal = core.NewErrorEvent("agent stream ended without a terminal event")
			terminal.RunID = runID
		}

		log.Info("runner.run.complete",
			"run", runID,
			"session", sessionID,
			"terminal", string(terminal.Type),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		finish()
		out <- terminal
	}()

	return runID, out, nil
}

// RunSync runs agentName and drains its stream, returning the outcome.
func (r *Runner) RunSync(ctx context.Context, sessionID, agentName, query string, onEvent func(core.Event)) (agent.Result, error) {
	_, events, err := r.Run(ctx, sessionID, agentName, query)
	if err != nil {
		return agent.Result{}, err
	}
	res := agent.Collect(events, onEvent)
	return res, res.Err()
}

// Cancel cancels a running run by id. The run ends with an aborted event.
func (r *Runner) Cancel(runID string) error {
	r.mu.Lock()
	cancel, exists := r.activeRuns[runID]
	r.mu.Unlock()
	if !exists {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	cancel()
	return nil
}

// Active returns the number of runs in flight.
func (r *Runner) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.activeRuns)
}
