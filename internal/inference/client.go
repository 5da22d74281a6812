package inference

import (
	"context"
	"log/slog"
	"sync"
)

const workerExited = "worker exited"

type queuedState struct {
	seq   uint64
	state State
}

// subscriber only sees queued states newer than since. A watcher is owed
// the state it registered against before anything else.
type subscriber struct {
	fn      func(State)
	since   uint64
	owed    bool
	current State
}

// Client owns one Worker and mirrors its progress as a State that
// subscribers can follow.
type Client struct {
	worker *Worker
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	seq     uint64
	queue   []queuedState
	subs    map[int]*subscriber
	nextSub int
	started bool
	closing bool
	done    chan struct{}

	notifyMu sync.Mutex
}

func NewClient(worker *Worker, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		worker: worker,
		logger: logger.With("component", "inference-client"),
		state:  State{Status: StatusIdle},
		subs:   make(map[int]*subscriber),
		done:   make(chan struct{}),
	}
}

// Start spawns the worker and begins following its events.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started || c.closing {
		c.mu.Unlock()
		return nil
	}
	if err := c.worker.Start(ctx); err != nil {
		c.mu.Unlock()
		return err
	}
	c.started = true
	c.setLocked(func(s *State) { s.Status = StatusInitializing })
	c.mu.Unlock()

	go c.consume()
	c.flush()
	return nil
}

// Query forwards a request to the worker. It is refused with ErrNotReady,
// and nothing changes, unless the pipeline is ready.
func (c *Client) Query(req InferenceRequest) error {
	c.mu.Lock()
	if c.state.Status != StatusReady {
		status := c.state.Status
		c.mu.Unlock()
		c.logger.Warn("query ignored, pipeline not ready", "status", status)
		return ErrNotReady
	}

	if err := c.worker.Send(req); err != nil {
		c.mu.Unlock()
		c.logger.Warn("worker refused query", "error", err)
		return err
	}

	c.setLocked(func(s *State) {
		s.Status = StatusWorking
		s.Pending = true
		s.Response = nil
		s.Error = nil
	})
	c.mu.Unlock()

	c.flush()
	return nil
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers fn for every state change. Callbacks are never run
// concurrently with each other.
func (c *Client) Subscribe(fn func(State)) func() {
	return c.register(fn, false)
}

// Watch is Subscribe preceded by a delivery of the current state. No older
// state is delivered to fn after that first call.
func (c *Client) Watch(fn func(State)) func() {
	unsubscribe := c.register(fn, true)
	c.flush()
	return unsubscribe
}

func (c *Client) register(fn func(State), owed bool) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = &subscriber{fn: fn, since: c.seq, owed: owed, current: c.state}
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Close terminates the worker and waits for the event loop to drain.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return
	}
	c.closing = true
	started := c.started
	c.mu.Unlock()

	c.worker.Terminate()
	if started {
		<-c.done
	}

	c.mu.Lock()
	c.subs = make(map[int]*subscriber)
	c.queue = nil
	c.mu.Unlock()
}

func (c *Client) consume() {
	defer close(c.done)

	for ev := range c.worker.Events() {
		c.handle(ev)
	}

	c.mu.Lock()
	if !c.closing && c.state.Status != StatusError {
		c.logger.Error("worker exited unexpectedly")
		msg := workerExited
		c.setLocked(func(s *State) {
			s.Status = StatusError
			s.Pending = false
			s.Error = &msg
		})
	}
	c.mu.Unlock()
	c.flush()
}

func (c *Client) handle(ev Event) {
	c.mu.Lock()
	switch ev.Status {
	case EventInitializing:
		c.setLocked(func(s *State) { s.Status = StatusInitializing })
	case EventReady:
		c.setLocked(func(s *State) { s.Status = StatusReady })
	case EventWorking:
		c.setLocked(func(s *State) { s.Pending = false })
	case EventComplete:
		output := ev.Output
		c.setLocked(func(s *State) {
			s.Status = StatusReady
			s.Pending = false
			s.Response = &output
		})
	case EventError:
		msg := ev.Error
		c.logger.Error("worker reported error", "error", msg)
		c.setLocked(func(s *State) {
			s.Status = StatusError
			s.Pending = false
			s.Error = &msg
		})
	default:
		c.logger.Warn("unknown worker event", "status", ev.Status)
	}
	c.mu.Unlock()
	c.flush()
}

// setLocked applies fn and queues the new state for delivery if it
// changed. c.mu must be held.
func (c *Client) setLocked(fn func(*State)) {
	prev := c.state
	fn(&c.state)
	if sameState(prev, c.state) {
		return
	}
	c.seq++
	c.queue = append(c.queue, queuedState{seq: c.seq, state: c.state})
}

// flush delivers queued states in order. Whoever holds notifyMu drains the
// queue, so a subscriber that calls back into the client does not block.
func (c *Client) flush() {
	for {
		if !c.notifyMu.TryLock() {
			return
		}
		for {
			c.mu.Lock()
			s, fns, ok := c.nextDeliveryLocked()
			c.mu.Unlock()
			if !ok {
				break
			}

			for _, fn := range fns {
				fn(s)
			}
		}
		c.notifyMu.Unlock()

		c.mu.Lock()
		pending := c.pendingLocked()
		c.mu.Unlock()
		if !pending {
			return
		}
	}
}

// nextDeliveryLocked settles owed watcher states first, then the oldest
// queued change. c.mu must be held.
func (c *Client) nextDeliveryLocked() (State, []func(State), bool) {
	for _, sub := range c.subs {
		if sub.owed {
			sub.owed = false
			return sub.current, []func(State){sub.fn}, true
		}
	}

	if len(c.queue) == 0 {
		return State{}, nil, false
	}
	q := c.queue[0]
	c.queue = c.queue[1:]

	fns := make([]func(State), 0, len(c.subs))
	for _, sub := range c.subs {
		if q.seq > sub.since {
			fns = append(fns, sub.fn)
		}
	}
	return q.state, fns, true
}

func (c *Client) pendingLocked() bool {
	if len(c.queue) > 0 {
		return true
	}
	for _, sub := range c.subs {
		if sub.owed {
			return true
		}
	}
	return false
}

func sameState(a, b State) bool {
	return a.Status == b.Status && a.Pending == b.Pending && a.Response == b.Response && a.Error == b.Error
}
