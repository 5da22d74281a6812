package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const DefaultMaxNewTokens = 64

type GenerateInput struct {
	Prompt       string
	Images       [][]byte
	MaxNewTokens int
}

// Model produces a completion for a prompt that references the given images.
type Model interface {
	Generate(ctx context.Context, in GenerateInput) (string, error)
}

// OllamaModel runs a vision-language model through the Ollama HTTP API.
type OllamaModel struct {
	httpClient *http.Client
	baseURL    string
	model      string
	pull       bool
	logger     *slog.Logger
}

func NewOllamaModel(cfg Config, logger *slog.Logger) *OllamaModel {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &OllamaModel{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.OllamaURL,
		model:      cfg.Model,
		pull:       cfg.Pull,
		logger:     logger.With("component", "ollama", "model", cfg.Model),
	}
}

func (m *OllamaModel) Name() string {
	return m.model
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	TopK        int     `json:"top_k"`
	Seed        int     `json:"seed"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Images  []string      `json:"images,omitempty"`
	Raw     bool          `json:"raw"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type ollamaModelRequest struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

// Load makes sure the model is present on the Ollama server, pulling it
// first when configured to.
func (m *OllamaModel) Load(ctx context.Context) error {
	if m.pull {
		m.logger.Info("pulling model")
		if err := m.post(ctx, "/api/pull", ollamaModelRequest{Model: m.model}, nil); err != nil {
			return fmt.Errorf("pull model %s: %w", m.model, err)
		}
	}

	if err := m.post(ctx, "/api/show", ollamaModelRequest{Model: m.model}, nil); err != nil {
		return fmt.Errorf("model %s not available: %w", m.model, err)
	}
	m.logger.Debug("model loaded")
	return nil
}

// Generate decodes greedily with a fixed seed so the same image and
// question always produce the same answer.
func (m *OllamaModel) Generate(ctx context.Context, in GenerateInput) (string, error) {
	maxTokens := in.MaxNewTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxNewTokens
	}

	images := make([]string, 0, len(in.Images))
	for _, img := range in.Images {
		images = append(images, base64.StdEncoding.EncodeToString(img))
	}

	req := ollamaGenerateRequest{
		Model:  m.model,
		Prompt: in.Prompt,
		Images: images,
		Raw:    true,
		Stream: false,
		Options: ollamaOptions{
			Temperature: 0,
			TopK:        1,
			Seed:        0,
			NumPredict:  maxTokens,
		},
	}

	var resp ollamaGenerateResponse
	if err := m.post(ctx, "/api/generate", req, &resp); err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return resp.Response, nil
}

func (m *OllamaModel) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

func (m *OllamaModel) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
