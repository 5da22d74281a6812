package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type fakeModel struct {
	mu     sync.Mutex
	answer string
	err    error
	panics bool
	block  chan struct{}
	inputs []GenerateInput
}

func (m *fakeModel) Generate(ctx context.Context, in GenerateInput) (string, error) {
	m.mu.Lock()
	m.inputs = append(m.inputs, in)
	block, answer, err, panics := m.block, m.answer, m.err, m.panics
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if panics {
		panic("backend exploded")
	}
	if err != nil {
		return "", err
	}
	return answer, nil
}

func (m *fakeModel) Inputs() []GenerateInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]GenerateInput(nil), m.inputs...)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPipeline(model Model) *Pipeline {
	return &Pipeline{
		Template:     PromptTemplate{Format: DefaultPromptTemplate},
		Processor:    NewImageProcessor(0, 0, nil),
		Model:        model,
		MaxNewTokens: DefaultMaxNewTokens,
	}
}

func staticLoader(model Model) PipelineLoader {
	return LoaderFunc(func(ctx context.Context) (*Pipeline, error) {
		return testPipeline(model), nil
	})
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func dataURL(t *testing.T, w, h int) string {
	t.Helper()
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t, w, h))
}

func nextEvent(t *testing.T, w *Worker) Event {
	t.Helper()
	select {
	case ev, ok := <-w.Events():
		if !ok {
			t.Fatal("event channel closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for worker event")
	}
	return Event{}
}

func waitReady(t *testing.T, w *Worker) {
	t.Helper()
	if ev := nextEvent(t, w); ev.Status != EventInitializing {
		t.Fatalf("expected initializing, got %+v", ev)
	}
	if ev := nextEvent(t, w); ev.Status != EventReady {
		t.Fatalf("expected ready, got %+v", ev)
	}
}

type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) record(s State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *stateRecorder) all() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func (r *stateRecorder) statuses() []PipelineStatus {
	var out []PipelineStatus
	for _, s := range r.all() {
		if len(out) == 0 || out[len(out)-1] != s.Status {
			out = append(out, s.Status)
		}
	}
	return out
}
