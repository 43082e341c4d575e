package extraction

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements Provider on the OpenAI Batch API. Batches run
// asynchronously on the provider's side at half the synchronous token price,
// which is the whole reason the pipeline is shaped around them.
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider builds a provider. baseURL is optional and overrides the
// default endpoint, e.g. for a gateway.
func NewOpenAIProvider(apiKey, baseURL string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg)}
}

// NewChatClient returns a synchronous chat client with the same
// configuration, for the link classifier.
func NewChatClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// Submit uploads the requests as a JSONL input file and creates the batch in
// one call. The returned ID identifies the remote job.
func (p *OpenAIProvider) Submit(ctx context.Context, model string, requests []Request) (string, error) {
	lines := make([]openai.BatchLineItem, 0, len(requests))
	for _, r := range requests {
		lines = append(lines, openai.BatchChatCompletionRequest{
			CustomID: r.VideoID,
			Body: openai.ChatCompletionRequest{
				Model: model,
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleSystem, Content: r.System},
					{Role: openai.ChatMessageRoleUser, Content: r.User},
				},
				ResponseFormat: &openai.ChatCompletionResponseFormat{
					Type: openai.ChatCompletionResponseFormatTypeJSONObject,
				},
			},
			Method: "POST",
			URL:    openai.BatchEndpointChatCompletions,
		})
	}

	resp, err := p.client.CreateBatchWithUploadFile(ctx, openai.CreateBatchWithUploadFileRequest{
		Endpoint: openai.BatchEndpointChatCompletions,
		UploadBatchFileRequest: openai.UploadBatchFileRequest{
			FileName: "extraction.jsonl",
			Lines:    lines,
		},
	})
	if err != nil {
		return "", fmt.Errorf("create batch: %w", err)
	}
	return resp.ID, nil
}

// Poll maps the provider's batch status onto JobState.
func (p *OpenAIProvider) Poll(ctx context.Context, batchID string) (JobState, error) {
	resp, err := p.client.RetrieveBatch(ctx, batchID)
	if err != nil {
		return JobRunning, fmt.Errorf("retrieve batch %s: %w", batchID, err)
	}
	switch resp.Status {
	case "completed":
		return JobCompleted, nil
	case "failed":
		return JobFailed, nil
	case "expired":
		return JobExpired, nil
	case "cancelling", "cancelled":
		return JobCancelled, nil
	default:
		// validating, in_progress, finalizing
		return JobRunning, nil
	}
}

// batchOutputLine is one JSONL line of a batch output or error file.
type batchOutputLine struct {
	CustomID string `json:"custom_id"`
	Response *struct {
		StatusCode int `json:"status_code"`
		Body       struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		} `json:"body"`
	} `json:"response"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Results downloads and parses the output and error files of a completed
// batch. Per-item errors come back as ItemResults with ErrMessage set.
func (p *OpenAIProvider) Results(ctx context.Context, batchID string) ([]ItemResult, error) {
	batch, err := p.client.RetrieveBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("retrieve batch %s: %w", batchID, err)
	}

	var results []ItemResult
	if batch.OutputFileID != nil && *batch.OutputFileID != "" {
		out, err := p.readFile(ctx, *batch.OutputFileID)
		if err != nil {
			return nil, err
		}
		results = append(results, out...)
	}
	if batch.ErrorFileID != nil && *batch.ErrorFileID != "" {
		errs, err := p.readFile(ctx, *batch.ErrorFileID)
		if err != nil {
			return nil, err
		}
		results = append(results, errs...)
	}
	return results, nil
}

func (p *OpenAIProvider) readFile(ctx context.Context, fileID string) ([]ItemResult, error) {
	content, err := p.client.GetFileContent(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("download batch file %s: %w", fileID, err)
	}
	defer content.Close()

	var results []ItemResult
	scanner := bufio.NewScanner(content)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var parsed batchOutputLine
		if err := json.Unmarshal(line, &parsed); err != nil {
			return nil, fmt.Errorf("parse batch output line: %w", err)
		}
		results = append(results, parsed.toResult())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read batch file %s: %w", fileID, err)
	}
	return results, nil
}

func (l batchOutputLine) toResult() ItemResult {
	res := ItemResult{VideoID: l.CustomID}
	if l.Error != nil {
		res.ErrMessage = fmt.Sprintf("%s: %s", l.Error.Code, l.Error.Message)
		return res
	}
	if l.Response == nil {
		res.ErrMessage = "empty batch response"
		return res
	}
	if l.Response.StatusCode != 200 {
		res.ErrMessage = fmt.Sprintf("batch item status %d", l.Response.StatusCode)
		return res
	}
	if len(l.Response.Body.Choices) == 0 {
		res.ErrMessage = "batch response has no choices"
		return res
	}
	res.Content = l.Response.Body.Choices[0].Message.Content
	return res
}
