package inference

import (
	"errors"
	"time"
)

var (
	ErrWorkerBusy       = errors.New("worker is busy")
	ErrWorkerNotReady   = errors.New("worker is not ready")
	ErrWorkerTerminated = errors.New("worker terminated")
	ErrWorkerFailed     = errors.New("worker failed to initialize")
	ErrNotReady         = errors.New("pipeline not ready")
)

type Config struct {
	OllamaURL     string
	Model         string
	Timeout       time.Duration
	Pull          bool
	MaxNewTokens  int
	ImageSize     int
	MaxImageBytes int64
}

type WorkerState string

const (
	WorkerUninitialized WorkerState = "uninitialized"
	WorkerInitializing  WorkerState = "initializing"
	WorkerReady         WorkerState = "ready"
	WorkerWorking       WorkerState = "working"
	WorkerError         WorkerState = "error"
)

type EventStatus string

const (
	EventInitializing EventStatus = "initializing"
	EventReady        EventStatus = "ready"
	EventWorking      EventStatus = "working"
	EventComplete     EventStatus = "complete"
	EventError        EventStatus = "error"
)

// Event is a message from the worker goroutine to its owner.
type Event struct {
	Status EventStatus `json:"status"`
	Output string      `json:"output,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// InferenceRequest asks the worker to answer a question about an image.
// Image is a data URL or an http(s) URL.
type InferenceRequest struct {
	Image  string `json:"image"`
	Prompt string `json:"prompt"`
}

type PipelineStatus string

const (
	StatusIdle         PipelineStatus = "idle"
	StatusInitializing PipelineStatus = "initializing"
	StatusReady        PipelineStatus = "ready"
	StatusError        PipelineStatus = "error"
	StatusWorking      PipelineStatus = "working"
)

// State is what a Client publishes to its subscribers. Response and Error
// are nil until the first answer or failure.
type State struct {
	Status   PipelineStatus `json:"status"`
	Pending  bool           `json:"pending"`
	Response *string        `json:"response"`
	Error    *string        `json:"error"`
}
