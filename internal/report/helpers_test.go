package report

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/png"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/eleven-am/civic311/internal/inference"
)

type fakeModel struct {
	mu     sync.Mutex
	answer string
	err    error
	block  chan struct{}
}

func (m *fakeModel) Generate(ctx context.Context, in inference.GenerateInput) (string, error) {
	m.mu.Lock()
	block, answer, err := m.block, m.answer, m.err
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return answer, nil
}

func loaderFor(model inference.Model) inference.PipelineLoader {
	return inference.LoaderFunc(func(ctx context.Context) (*inference.Pipeline, error) {
		return &inference.Pipeline{
			Template:  inference.PromptTemplate{Format: inference.DefaultPromptTemplate},
			Processor: inference.NewImageProcessor(0, 0, nil),
			Model:     model,
		}, nil
	})
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testImage(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}
