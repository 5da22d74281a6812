package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

type Result struct {
	Analysis string
	Cached   bool
}

type Service struct {
	provider Provider
	cache    *Cache
	dataset  *Dataset
	logger   *slog.Logger
}

func NewService(provider Provider, cache *Cache, dataset *Dataset, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		provider: provider,
		cache:    cache,
		dataset:  dataset,
		logger:   logger.With("component", "analysis"),
	}
}

func (s *Service) Dataset() *Dataset {
	return s.dataset
}

func (s *Service) Model() string {
	if s.provider == nil {
		return ""
	}
	return s.provider.Model()
}

// AnalyzeFile reads a dataset image and asks the provider about it. A blank
// prompt falls back to the receipt itemisation prompt.
func (s *Service) AnalyzeFile(ctx context.Context, imagePath, prompt string) (*Result, error) {
	data, err := s.dataset.Read(imagePath)
	if err != nil {
		return nil, err
	}

	if s.provider == nil {
		return nil, ErrNotConfigured
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		prompt = ReceiptPrompt
	}

	key := CacheKey(s.provider.Model(), prompt, data)
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("analysis cache read failed", "error", err)
		} else if ok {
			s.logger.Debug("analysis cache hit", "image_path", imagePath)
			return &Result{Analysis: cached, Cached: true}, nil
		}
	}

	s.logger.Info("analyzing image", "image_path", imagePath, "model", s.provider.Model(), "bytes", len(data))
	text, err := s.provider.Analyze(ctx, Image{Data: data, MIMEType: DetectMIME(data)}, prompt)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", imagePath, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, text); err != nil {
			s.logger.Warn("analysis cache write failed", "error", err)
		}
	}

	return &Result{Analysis: text}, nil
}

func (s *Service) Ping(ctx context.Context) error {
	if s.provider == nil {
		return ErrNotConfigured
	}
	return s.provider.Ping(ctx)
}

// Check is the readiness variant of Ping. It never spends a generation.
func (s *Service) Check(ctx context.Context) error {
	if s.provider == nil {
		return ErrNotConfigured
	}
	return s.provider.Check(ctx)
}
