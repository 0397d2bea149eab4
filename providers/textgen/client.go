// Package textgen implements gen.Client against the model-serving endpoint:
// POST <base>/generate with {"prompt": ...}, answering {"generated_text": ...}.
package textgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/puhovm04-code/BusinessGPT/gen"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	GeneratedText *string `json:"generated_text"`
}

func (c *Client) Generate(ctx context.Context, prompt string) (gen.Result, error) {
	if c.BaseURL == "" {
		return gen.Result{}, gen.ErrNotConfigured
	}
	start := time.Now()

	b, err := json.Marshal(generateRequest{Prompt: prompt})
	if err != nil {
		return gen.Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/generate", bytes.NewReader(b))
	if err != nil {
		return gen.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return gen.Result{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return gen.Result{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return gen.Result{}, fmt.Errorf("textgen http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	// The endpoint contract is a fixed schema; anything else is a failure,
	// not something to branch around.
	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return gen.Result{}, fmt.Errorf("textgen: invalid response body: %w", err)
	}
	if out.GeneratedText == nil {
		return gen.Result{}, fmt.Errorf("textgen: response missing generated_text")
	}

	return gen.Result{Text: *out.GeneratedText, Duration: time.Since(start)}, nil
}
