// Package llm wraps an OpenAI-compatible API for the two calls the pipeline
// makes: multimodal transcription of scanned sheets and assistant-thread
// evaluation with a strict JSON schema.
package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/gradeflow/gradeflow/internal/errdefs"
)

// runPollInterval is the delay between run status checks.
const runPollInterval = time.Second

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api         *openai.Client
	chatModel   string
	visionModel string
}

// New creates a new LLM client. baseURL may be empty for the default
// endpoint; visionModel falls back to chatModel when empty.
func New(baseURL, apiKey, chatModel, visionModel string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if visionModel == "" {
		visionModel = chatModel
	}
	return &Client{
		api:         openai.NewClientWithConfig(config),
		chatModel:   chatModel,
		visionModel: visionModel,
	}
}

// Ping verifies the endpoint and credentials are usable.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("LLM endpoint check: %w", err)
	}
	return nil
}

// VisionChat sends a text prompt together with PNG page images and returns
// the model's text response.
func (c *Client) VisionChat(ctx context.Context, prompt string, pngPages [][]byte) (string, error) {
	parts := make([]openai.ChatMessagePart, 0, len(pngPages)+1)
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: prompt,
	})
	for _, page := range pngPages {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(page),
			},
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.visionModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return "", errdefs.Providerf("vision API call: %v", err)
	}
	if len(resp.Choices) == 0 {
		return "", errdefs.Providerf("vision API returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// UploadFile stores a file with the provider and returns its file ID.
func (c *Client) UploadFile(ctx context.Context, name string, data []byte) (string, error) {
	file, err := c.api.CreateFileBytes(ctx, openai.FileBytesRequest{
		Name:    name,
		Bytes:   data,
		Purpose: openai.PurposeAssistants,
	})
	if err != nil {
		return "", errdefs.Providerf("upload file %s: %v", name, err)
	}
	return file.ID, nil
}

// CreateVectorStore creates a vector store holding the given files.
func (c *Client) CreateVectorStore(ctx context.Context, name string, fileIDs []string) (string, error) {
	vs, err := c.api.CreateVectorStore(ctx, openai.VectorStoreRequest{
		Name:    name,
		FileIDs: fileIDs,
	})
	if err != nil {
		return "", errdefs.Providerf("create vector store: %v", err)
	}
	return vs.ID, nil
}

// EnsureAssistant creates the evaluation assistant and returns its ID.
func (c *Client) EnsureAssistant(ctx context.Context, name, instructions string) (string, error) {
	assistant, err := c.api.CreateAssistant(ctx, openai.AssistantRequest{
		Model:        c.chatModel,
		Name:         &name,
		Instructions: &instructions,
	})
	if err != nil {
		return "", errdefs.Providerf("create assistant: %v", err)
	}
	return assistant.ID, nil
}

// RunThread creates a fresh thread with one user message, starts a run
// constrained to the given strict JSON schema, polls it to completion, and
// returns the assistant's response text.
func (c *Client) RunThread(ctx context.Context, assistantID, prompt, schemaName string, schema json.RawMessage) (string, error) {
	thread, err := c.api.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", errdefs.Providerf("create thread: %v", err)
	}

	if _, err := c.api.CreateMessage(ctx, thread.ID, openai.MessageRequest{
		Role:    string(openai.ThreadMessageRoleUser),
		Content: prompt,
	}); err != nil {
		return "", errdefs.Providerf("create message: %v", err)
	}

	temperature := float32(0.3)
	run, err := c.api.CreateRun(ctx, thread.ID, openai.RunRequest{
		AssistantID: assistantID,
		Temperature: &temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   schemaName,
				Schema: schema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return "", errdefs.Providerf("create run: %v", err)
	}

	run, err = c.pollRun(ctx, thread.ID, run.ID)
	if err != nil {
		return "", err
	}

	text, err := c.lastMessageText(ctx, thread.ID)
	if err != nil {
		return "", err
	}
	slog.Debug("assistant run completed", "thread_id", thread.ID, "run_id", run.ID, "response_bytes", len(text))
	return text, nil
}

// pollRun waits for the run to reach a terminal status.
func (c *Client) pollRun(ctx context.Context, threadID, runID string) (openai.Run, error) {
	ticker := time.NewTicker(runPollInterval)
	defer ticker.Stop()

	for {
		run, err := c.api.RetrieveRun(ctx, threadID, runID)
		if err != nil {
			return run, errdefs.Providerf("retrieve run %s: %v", runID, err)
		}
		switch run.Status {
		case openai.RunStatusCompleted:
			return run, nil
		case openai.RunStatusFailed, openai.RunStatusExpired, openai.RunStatusCancelled, openai.RunStatusIncomplete:
			detail := string(run.Status)
			if run.LastError != nil {
				detail = fmt.Sprintf("%s: %s", run.Status, run.LastError.Message)
			}
			return run, errdefs.Providerf("run %s ended %s", runID, detail)
		case openai.RunStatusRequiresAction:
			return run, errdefs.Providerf("run %s requires tool action, none are configured", runID)
		}

		select {
		case <-ctx.Done():
			return run, errdefs.Providerf("run %s: %v", runID, ctx.Err())
		case <-ticker.C:
		}
	}
}

// lastMessageText returns the text of the newest assistant message in the
// thread.
func (c *Client) lastMessageText(ctx context.Context, threadID string) (string, error) {
	limit := 1
	order := "desc"
	msgs, err := c.api.ListMessage(ctx, threadID, &limit, &order, nil, nil, nil)
	if err != nil {
		return "", errdefs.Providerf("list messages: %v", err)
	}
	if len(msgs.Messages) == 0 {
		return "", errdefs.Providerf("thread %s holds no messages", threadID)
	}
	for _, content := range msgs.Messages[0].Content {
		if content.Text != nil {
			return content.Text.Value, nil
		}
	}
	return "", errdefs.Providerf("thread %s response holds no text content", threadID)
}
