package model

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MockStep is one scripted model turn.
type MockStep struct {
	Response Response
	Err      error
	Delay    time.Duration
}

// MockModel is a scripted in-memory Model for tests and examples. Each
// Generate call consumes the next step; once the script is exhausted the
// repeat step (if any) is served, otherwise an error is returned.
type MockModel struct {
	mu       sync.Mutex
	info     Info
	steps    []MockStep
	repeat   *MockStep
	requests []Request
}

// NewMockModel constructs a MockModel with tool support enabled.
func NewMockModel(name string) *MockModel {
	return &MockModel{info: Info{Name: name, Provider: "mock", SupportsTools: true}}
}

// AddStep appends a raw scripted step.
func (m *MockModel) AddStep(step MockStep) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, step)
	return m
}

// AddResponse scripts a plain text answer.
func (m *MockModel) AddResponse(text string) *MockModel {
	return m.AddStep(MockStep{Response: Response{Text: text, FinishReason: "stop"}})
}

// AddToolCalls scripts a turn requesting the given tool calls.
func (m *MockModel) AddToolCalls(calls ...ToolCall) *MockModel {
	return m.AddStep(MockStep{Response: Response{ToolCalls: calls, FinishReason: "tool_calls"}})
}

// AddError scripts a failing turn.
func (m *MockModel) AddError(err error) *MockModel {
	return m.AddStep(MockStep{Err: err})
}

// Repeat serves step for every call after the script is exhausted.
func (m *MockModel) Repeat(step MockStep) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repeat = &step
	return m
}

// Requests returns a copy of every request received.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Calls returns the number of Generate invocations.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *MockModel) next(req Request) (MockStep, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if len(m.steps) > 0 {
		step := m.steps[0]
		m.steps = m.steps[1:]
		return step, true
	}
	if m.repeat != nil {
		return *m.repeat, true
	}
	return MockStep{}, false
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	out := make(chan Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		step, ok := m.next(req)
		if !ok {
			errCh <- errors.New("mock model: no scripted response left")
			return
		}
		if step.Delay > 0 {
			select {
			case <-time.After(step.Delay):
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
		if step.Err != nil {
			errCh <- step.Err
			return
		}
		resp := step.Response
		resp.Partial = false
		out <- resp
	}()
	return out, errCh
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
