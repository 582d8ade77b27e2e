package exec

import (
	"context"
	"strings"
	"sync"
)

// Call records one invocation seen by the fake executor.
type Call struct {
	Dir  string
	Argv []string
}

// Cmd returns the invocation as a single space-joined string.
func (c Call) Cmd() string {
	return strings.Join(c.Argv, " ")
}

// FakeExecutor is a scriptable Executor for tests. Responses are matched by
// command prefix; unmatched commands succeed with empty output.
type FakeExecutor struct {
	mu        sync.Mutex
	calls     []Call
	responses []fakeResponse
}

type fakeResponse struct {
	prefix string
	result Result
	err    error
	once   bool
	used   bool
}

// NewFakeExecutor creates an empty fake executor.
func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{}
}

// Stub registers a response for every command whose joined argv starts with
// prefix.
func (f *FakeExecutor) Stub(prefix string, result Result, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, fakeResponse{prefix: prefix, result: result, err: err})
}

// StubOnce registers a response consumed by the first matching command only.
func (f *FakeExecutor) StubOnce(prefix string, result Result, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, fakeResponse{prefix: prefix, result: result, err: err, once: true})
}

// Run records the call and replays the first matching stub.
func (f *FakeExecutor) Run(ctx context.Context, dir string, argv ...string) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := Call{Dir: dir, Argv: argv}
	f.calls = append(f.calls, call)

	joined := call.Cmd()
	for i := range f.responses {
		r := &f.responses[i]
		if r.once && r.used {
			continue
		}
		if strings.HasPrefix(joined, r.prefix) {
			r.used = true
			return r.result, r.err
		}
	}
	return Result{}, nil
}

// Calls returns a copy of every recorded invocation.
func (f *FakeExecutor) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns the number of recorded invocations.
func (f *FakeExecutor) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// Commands returns every recorded invocation as joined strings.
func (f *FakeExecutor) Commands() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Cmd()
	}
	return out
}
