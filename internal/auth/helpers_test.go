package auth

import (
	"context"
	"sync"
	"time"
)

type fakeTimer struct {
	clock   *fakeClock
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, delay: d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) active() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// fire runs t's callback synchronously, as if its delay had elapsed.
func (c *fakeClock) fire(t *fakeTimer) {
	c.mu.Lock()
	if t.stopped || t.fired {
		c.mu.Unlock()
		return
	}
	t.fired = true
	c.now = c.now.Add(t.delay)
	c.mu.Unlock()
	t.fn()
}

type stubResponse struct {
	result *TokenResult
	err    error
}

// stubRequester replays queued responses and records every grant.
type stubRequester struct {
	mu        sync.Mutex
	grants    []Grant
	responses []stubResponse
	fallback  stubResponse
}

func (r *stubRequester) push(result *TokenResult, err error) *stubRequester {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, stubResponse{result: result, err: err})
	return r
}

func (r *stubRequester) RequestToken(_ context.Context, grant Grant) (*TokenResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grants = append(r.grants, grant)
	resp := r.fallback
	if len(r.responses) > 0 {
		resp = r.responses[0]
		r.responses = r.responses[1:]
	}
	return resp.result, resp.err
}

func (r *stubRequester) calls() []Grant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Grant(nil), r.grants...)
}

// grantSplitRequester answers by grant type.
type grantSplitRequester struct {
	app  stubResponse
	user stubResponse
}

func (r *grantSplitRequester) RequestToken(_ context.Context, grant Grant) (*TokenResult, error) {
	if _, ok := grant.(ClientCredentialsGrant); ok {
		return r.app.result, r.app.err
	}
	return r.user.result, r.user.err
}

// gatedRequester blocks every call until a response is sent on release.
type gatedRequester struct {
	started chan Grant
	release chan stubResponse
}

func newGatedRequester() *gatedRequester {
	return &gatedRequester{
		started: make(chan Grant),
		release: make(chan stubResponse),
	}
}

func (r *gatedRequester) RequestToken(ctx context.Context, grant Grant) (*TokenResult, error) {
	r.started <- grant
	select {
	case resp := <-r.release:
		return resp.result, resp.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type eventRecorder struct {
	mu     sync.Mutex
	events []RenewalEvent
}

func (r *eventRecorder) record(ev RenewalEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) all() []RenewalEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RenewalEvent(nil), r.events...)
}

const testClientID = "abcdefghij0123456789"
