package inference

import (
	"context"
	"sync"
)

type fakeStep struct {
	response string
	err      error
}

// FakeClient is a scripted Client for tests. Steps are consumed in order;
// the last step repeats once the script runs out.
type FakeClient struct {
	mu    sync.Mutex
	steps []fakeStep
	calls []Request

	// Hook, when set, runs on every call instead of the script.
	Hook func(ctx context.Context, req Request) (string, error)
}

// NewFakeClient creates a fake that returns the given responses in order.
func NewFakeClient(responses ...string) *FakeClient {
	f := &FakeClient{}
	for _, r := range responses {
		f.steps = append(f.steps, fakeStep{response: r})
	}
	return f
}

// FailWith prepends error steps to the script, so a test can script
// failures before the canned responses.
func (f *FakeClient) FailWith(errs ...error) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	var steps []fakeStep
	for _, err := range errs {
		steps = append(steps, fakeStep{err: err})
	}
	f.steps = append(steps, f.steps...)
	return f
}

// Generate returns the next scripted response or error.
func (f *FakeClient) Generate(ctx context.Context, req Request) (string, error) {
	if f.Hook != nil {
		f.mu.Lock()
		f.calls = append(f.calls, req)
		f.mu.Unlock()
		return f.Hook(ctx, req)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)

	if len(f.steps) == 0 {
		return "", nil
	}
	step := f.steps[0]
	if len(f.steps) > 1 {
		f.steps = f.steps[1:]
	}
	return step.response, step.err
}

// Model returns a fixed identifier.
func (f *FakeClient) Model() string { return "fake-model" }

// Calls returns the requests seen so far.
func (f *FakeClient) Calls() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Request, len(f.calls))
	copy(out, f.calls)
	return out
}

var _ Client = (*FakeClient)(nil)
