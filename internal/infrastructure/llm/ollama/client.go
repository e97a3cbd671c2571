package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/bookbot/internal/infrastructure/resilience"
)

// Client talks to one model on an Ollama server.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, model string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

func (c *Client) Model() string {
	return c.model
}

// generateJSON asks the model for a JSON answer at temperature 0 so the
// same review always yields the same guess.
func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	req := generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Format: "json",
	}
	var answer string
	call := func(ctx context.Context) error {
		resp, err := c.generate(ctx, req)
		if err != nil {
			return err
		}
		answer = resp.Response
		return nil
	}
	if err := c.executor.Execute(ctx, "ollama.generate."+c.model, call, classifyOllamaError); err != nil {
		return "", wrapInferenceError("ollama generate", err)
	}
	return strings.TrimSpace(answer), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
