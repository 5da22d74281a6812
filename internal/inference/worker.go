package inference

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

const eventBuffer = 8

// Worker hosts a single Pipeline in its own goroutine. Requests go in
// through Send, results come back on Events. At most one request is
// queued or running at a time.
type Worker struct {
	loader PipelineLoader
	logger *slog.Logger

	inbox  chan InferenceRequest
	events chan Event
	done   chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      WorkerState
	busy       bool
	started    bool
	terminated bool
}

func NewWorker(loader PipelineLoader, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		loader: loader,
		logger: logger.With("component", "inference-worker"),
		inbox:  make(chan InferenceRequest, 1),
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
		state:  WorkerUninitialized,
	}
}

func (w *Worker) Events() <-chan Event {
	return w.events
}

func (w *Worker) State() WorkerState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Start launches the worker goroutine, which loads the pipeline. The worker
// is terminated when ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.terminated {
		return ErrWorkerTerminated
	}
	if w.started {
		return nil
	}
	w.started = true

	stop := context.AfterFunc(ctx, w.cancel)
	go func() {
		defer stop()
		w.run()
	}()
	return nil
}

func (w *Worker) Send(req InferenceRequest) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.terminated {
		return ErrWorkerTerminated
	}
	switch w.state {
	case WorkerError:
		return ErrWorkerFailed
	case WorkerUninitialized, WorkerInitializing:
		return ErrWorkerNotReady
	}
	if w.busy {
		return ErrWorkerBusy
	}

	select {
	case w.inbox <- req:
		w.busy = true
		return nil
	default:
		return ErrWorkerBusy
	}
}

// Terminate stops the worker and waits for its goroutine to exit. Work in
// flight is abandoned without a completion event.
func (w *Worker) Terminate() {
	w.mu.Lock()
	if w.terminated {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.terminated = true
	started := w.started
	w.mu.Unlock()

	w.cancel()
	if !started {
		close(w.events)
		close(w.done)
		return
	}
	<-w.done
}

func (w *Worker) run() {
	defer close(w.done)
	defer close(w.events)

	pipeline, err := w.initialize()
	if err != nil {
		return
	}

	for {
		select {
		case <-w.ctx.Done():
			return
		case req := <-w.inbox:
			w.handle(pipeline, req)
		}
	}
}

func (w *Worker) initialize() (*Pipeline, error) {
	w.setState(WorkerInitializing)
	w.emit(Event{Status: EventInitializing})

	pipeline, err := w.load()
	if w.ctx.Err() != nil {
		return nil, w.ctx.Err()
	}
	if err != nil {
		w.logger.Error("failed to load pipeline", "error", err)
		w.setState(WorkerError)
		w.emit(Event{Status: EventError, Error: err.Error()})
		return nil, err
	}

	w.setState(WorkerReady)
	w.emit(Event{Status: EventReady})
	w.logger.Info("pipeline ready")
	return pipeline, nil
}

func (w *Worker) load() (p *Pipeline, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline load panicked: %v", r)
		}
	}()

	p, err = w.loader.Load(w.ctx)
	if err == nil && p == nil {
		err = fmt.Errorf("pipeline loader returned nothing")
	}
	return p, err
}

func (w *Worker) handle(pipeline *Pipeline, req InferenceRequest) {
	w.setState(WorkerWorking)
	w.emit(Event{Status: EventWorking})

	output, err := w.query(pipeline, req)
	if w.ctx.Err() != nil {
		return
	}

	w.mu.Lock()
	w.state = WorkerReady
	w.busy = false
	w.mu.Unlock()

	if err != nil {
		w.logger.Warn("inference failed", "error", err)
		w.emit(Event{Status: EventError, Error: err.Error()})
		return
	}
	w.emit(Event{Status: EventComplete, Output: output})
}

func (w *Worker) query(pipeline *Pipeline, req InferenceRequest) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("inference panicked: %v", r)
		}
	}()
	return pipeline.Run(w.ctx, req)
}

func (w *Worker) setState(s WorkerState) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

func (w *Worker) emit(ev Event) {
	select {
	case w.events <- ev:
	case <-w.ctx.Done():
	}
}
