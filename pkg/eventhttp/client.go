package eventhttp

import (
	"net/http"
	"sync"
)

// Hook observes the lifecycle of every call a Client creates. It runs once
// per new call, before the caller can register its own listeners, so any
// listeners the hook attaches fire ahead of the caller's.
type Hook func(call *Call)

// Client creates callback-style calls. A zero-value Client is not usable;
// construct with NewClient.
type Client struct {
	http *http.Client

	mu    sync.Mutex
	hooks map[string]Hook
	order []string
}

// NewClient wraps the given http.Client (nil means a default client).
func NewClient(hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		http:  hc,
		hooks: make(map[string]Hook),
	}
}

// Instrument registers a lifecycle hook under key. Registration is
// idempotent per key: re-instrumenting an already-registered key is a
// no-op and returns false, so a capture adapter can never double-wrap.
func (c *Client) Instrument(key string, hook Hook) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.hooks[key]; exists {
		return false
	}
	c.hooks[key] = hook
	c.order = append(c.order, key)
	return true
}

// Deinstrument removes a previously registered hook. Removing an unknown
// key has no effect. In-flight calls keep the listeners their hooks
// already attached.
func (c *Client) Deinstrument(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.hooks[key]; !exists {
		return
	}
	delete(c.hooks, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Instrumented reports whether a hook is registered under key.
func (c *Client) Instrumented(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, exists := c.hooks[key]
	return exists
}

// NewCall creates an unsent call and runs every registered hook over it,
// in registration order.
func (c *Client) NewCall() *Call {
	call := &Call{
		client:         c,
		state:          StateUnsent,
		requestHeaders: make(map[string]string),
		done:           make(chan struct{}),
	}

	c.mu.Lock()
	hooks := make([]Hook, 0, len(c.order))
	for _, key := range c.order {
		hooks = append(hooks, c.hooks[key])
	}
	c.mu.Unlock()

	for _, hook := range hooks {
		hook(call)
	}
	return call
}
