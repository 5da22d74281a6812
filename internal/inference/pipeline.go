package inference

import (
	"context"
	"fmt"
	"log/slog"
)

// Pipeline is everything the worker needs to answer a query: the prompt
// template, the image preprocessor and the loaded model.
type Pipeline struct {
	Template     PromptTemplate
	Processor    *ImageProcessor
	Model        Model
	MaxNewTokens int
}

func (p *Pipeline) Run(ctx context.Context, req InferenceRequest) (string, error) {
	prompt := p.Template.Render(req.Prompt)

	img, err := p.Processor.Process(ctx, req.Image)
	if err != nil {
		return "", err
	}

	completion, err := p.Model.Generate(ctx, GenerateInput{
		Prompt:       prompt,
		Images:       [][]byte{img},
		MaxNewTokens: p.MaxNewTokens,
	})
	if err != nil {
		return "", err
	}

	return p.Template.ExtractAnswer(prompt + completion), nil
}

type PipelineLoader interface {
	Load(ctx context.Context) (*Pipeline, error)
}

type LoaderFunc func(ctx context.Context) (*Pipeline, error)

func (f LoaderFunc) Load(ctx context.Context) (*Pipeline, error) {
	return f(ctx)
}

// OllamaLoader builds pipelines backed by an Ollama server.
type OllamaLoader struct {
	cfg    Config
	logger *slog.Logger
}

func NewOllamaLoader(cfg Config, logger *slog.Logger) *OllamaLoader {
	return &OllamaLoader{cfg: cfg, logger: logger}
}

func (l *OllamaLoader) Load(ctx context.Context) (*Pipeline, error) {
	model := NewOllamaModel(l.cfg, l.logger)
	if err := model.Load(ctx); err != nil {
		return nil, fmt.Errorf("load pipeline: %w", err)
	}

	maxTokens := l.cfg.MaxNewTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxNewTokens
	}

	return &Pipeline{
		Template:     PromptTemplate{Format: DefaultPromptTemplate},
		Processor:    NewImageProcessor(l.cfg.ImageSize, l.cfg.MaxImageBytes, nil),
		Model:        model,
		MaxNewTokens: maxTokens,
	}, nil
}

// Ping reports whether the backing Ollama server answers.
func (l *OllamaLoader) Ping(ctx context.Context) error {
	if !NewOllamaModel(l.cfg, l.logger).IsAvailable(ctx) {
		return fmt.Errorf("ollama at %s is unreachable", l.cfg.OllamaURL)
	}
	return nil
}
