// Package embedding talks to the local GPU embedding service that runs
// alongside the whisper instances. The service exposes a small JSON
// contract: POST /embed {"texts": [...], "input_type": "document"} returns
// {"embeddings": [[...]], "model": ..., "dimensions": ...}.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"tutorgraph/pkg/httpclient"
)

// maxTextsPerRequest mirrors the service's request cap; larger inputs are
// chunked across requests.
const maxTextsPerRequest = 256

// Client produces embedding vectors for text fragments.
type Client struct {
	baseURL string
	http    *httpclient.HTTPClient
	dim     int
}

// NewClient builds a client against the service at baseURL.
func NewClient(baseURL string, dim int) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpclient.NewClient(httpclient.ServiceClient),
		dim:     dim,
	}
}

// Dim returns the configured vector width.
func (c *Client) Dim() int { return c.dim }

type embedRequest struct {
	Texts     []string `json:"texts"`
	InputType string   `json:"input_type"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Model      string      `json:"model"`
	Dimensions int         `json:"dimensions"`
}

// Embed returns one vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxTextsPerRequest {
		end := min(start+maxTextsPerRequest, len(texts))
		vectors, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Texts: texts, InputType: "document"})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call embedding service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding service: %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	var er embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(er.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d, got %d", len(texts), len(er.Embeddings))
	}
	if c.dim > 0 && er.Dimensions != 0 && er.Dimensions != c.dim {
		return nil, fmt.Errorf("embedding service produces %d-dim vectors, store expects %d", er.Dimensions, c.dim)
	}
	return er.Embeddings, nil
}
