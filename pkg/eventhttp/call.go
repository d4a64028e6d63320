package eventhttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// ReadyState is a call's position in its lifecycle state machine.
type ReadyState int

// Ready states, in transition order. A call only ever moves forward.
const (
	StateUnsent ReadyState = iota
	StateOpened
	StateSent
	StateHeadersReceived
	StateDone
)

// String returns the state name.
func (s ReadyState) String() string {
	switch s {
	case StateUnsent:
		return "unsent"
	case StateOpened:
		return "opened"
	case StateSent:
		return "sent"
	case StateHeadersReceived:
		return "headers_received"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("ReadyState(%d)", int(s))
	}
}

// State transition errors.
var (
	ErrAlreadyOpened = errors.New("call already opened")
	ErrNotOpened     = errors.New("call not opened")
	ErrAlreadySent   = errors.New("call already sent")
)

// Call is one callback-style HTTP call. Configure it with Open and
// SetHeader, launch it with Send, and observe completion through
// OnReadyStateChange / OnDone listeners or Wait.
//
// All exported methods are safe for concurrent use. Completion state
// (status, headers, body, error) is immutable once the call reaches
// StateDone and remains fully accessible to the caller.
type Call struct {
	client *Client

	mu             sync.Mutex
	state          ReadyState
	method         string
	url            string
	requestHeaders map[string]string
	requestBody    []byte
	stateListeners []func(*Call)
	doneListeners  []func(*Call)

	status      int
	respHeaders http.Header
	respBody    []byte
	err         error
	started     time.Time
	settled     time.Time

	settleOnce sync.Once
	done       chan struct{}
}

// Open configures the call's method and URL and moves it to StateOpened.
func (c *Call) Open(method, url string) error {
	c.mu.Lock()
	if c.state != StateUnsent {
		c.mu.Unlock()
		return ErrAlreadyOpened
	}
	c.method = method
	c.url = url
	c.state = StateOpened
	c.started = time.Now()
	c.mu.Unlock()

	c.fireStateListeners()
	return nil
}

// SetHeader records a request header. Setting the same key again joins the
// values with ", "; key case is preserved as supplied.
func (c *Call) SetHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.requestHeaders[key]; ok {
		c.requestHeaders[key] = existing + ", " + value
		return
	}
	c.requestHeaders[key] = value
}

// OnReadyStateChange registers a listener fired on every state transition,
// in registration order.
func (c *Call) OnReadyStateChange(fn func(*Call)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateListeners = append(c.stateListeners, fn)
}

// OnDone registers a listener fired exactly once when the call settles.
// Registering on an already-settled call fires the listener immediately.
func (c *Call) OnDone(fn func(*Call)) {
	c.mu.Lock()
	if c.state == StateDone {
		c.mu.Unlock()
		fn(c)
		return
	}
	c.doneListeners = append(c.doneListeners, fn)
	c.mu.Unlock()
}

// Send launches the call with the given body (nil for none) and returns
// immediately. Completion is delivered through the registered listeners.
func (c *Call) Send(body []byte) error {
	c.mu.Lock()
	switch c.state {
	case StateUnsent:
		c.mu.Unlock()
		return ErrNotOpened
	case StateOpened:
		// proceed
	default:
		c.mu.Unlock()
		return ErrAlreadySent
	}
	c.requestBody = body
	c.state = StateSent
	method := c.method
	url := c.url
	headers := make(map[string]string, len(c.requestHeaders))
	for k, v := range c.requestHeaders {
		headers[k] = v
	}
	c.mu.Unlock()

	c.fireStateListeners()

	go c.execute(method, url, headers, body)
	return nil
}

// execute performs the underlying HTTP exchange. It tracks only its own
// arguments and the call it belongs to; no state is shared across calls.
func (c *Call) execute(method, url string, headers map[string]string, body []byte) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		c.settle(0, nil, nil, err)
		return
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.http.Do(req)
	if err != nil {
		c.settle(0, nil, nil, err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	c.mu.Lock()
	c.status = resp.StatusCode
	c.respHeaders = resp.Header.Clone()
	c.state = StateHeadersReceived
	c.mu.Unlock()
	c.fireStateListeners()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.settle(0, nil, nil, err)
		return
	}
	c.settle(resp.StatusCode, resp.Header.Clone(), respBody, nil)
}

// settle moves the call to StateDone exactly once and fires listeners:
// client hooks registered their listeners first, so capture observes the
// terminal state before the caller's own handlers run.
func (c *Call) settle(status int, headers http.Header, body []byte, err error) {
	c.settleOnce.Do(func() {
		c.mu.Lock()
		c.status = status
		c.respHeaders = headers
		c.respBody = body
		c.err = err
		c.state = StateDone
		c.settled = time.Now()
		doneFns := append([]func(*Call){}, c.doneListeners...)
		c.mu.Unlock()

		c.fireStateListeners()
		for _, fn := range doneFns {
			fn(c)
		}
		close(c.done)
	})
}

func (c *Call) fireStateListeners() {
	c.mu.Lock()
	fns := append([]func(*Call){}, c.stateListeners...)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

// Done returns a channel closed when the call settles.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the call settles or ctx is cancelled, returning the
// call's terminal error (nil for any HTTP completion, failing statuses
// included).
func (c *Call) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current ready state.
func (c *Call) State() ReadyState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Method returns the configured method.
func (c *Call) Method() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.method
}

// URL returns the configured URL, exactly as given to Open.
func (c *Call) URL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.url
}

// RequestHeaders returns a copy of the headers set so far.
func (c *Call) RequestHeaders() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.requestHeaders))
	for k, v := range c.requestHeaders {
		out[k] = v
	}
	return out
}

// RequestBody returns the body passed to Send.
func (c *Call) RequestBody() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requestBody
}

// Status returns the response status code, 0 before headers arrive or on
// transport failure.
func (c *Call) Status() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// ResponseHeaders returns the response headers, nil before they arrive.
func (c *Call) ResponseHeaders() http.Header {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.respHeaders
}

// ResponseBody returns the full response body, nil until StateDone.
func (c *Call) ResponseBody() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.respBody
}

// Err returns the transport failure, nil for any HTTP completion.
func (c *Call) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// StartedAt returns when Open was called.
func (c *Call) StartedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

// Duration returns the time from Open to settlement, 0 while in flight.
func (c *Call) Duration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.settled.IsZero() {
		return 0
	}
	return c.settled.Sub(c.started)
}
