// Package gmi implements an eino chat model backed by the GMI Serving
// OpenAI-compatible chat completions endpoint.
package gmi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	DefaultEndpoint    = "https://api.gmi-serving.com/v1/chat/completions"
	DefaultModel       = "deepseek-ai/DeepSeek-R1-0528"
	DefaultTemperature = float32(0.7)
	DefaultMaxTokens   = 150
	defaultTimeout     = 60 * time.Second
)

var (
	ErrMissingCredential = errors.New("GMI_API_KEY not found in environment variables")
	ErrNoChoices         = errors.New("no response from GMI API")
	ErrToolsUnsupported  = errors.New("gmi chat model does not support tool binding")
)

// APIError is returned when the endpoint answers with a non-2xx status.
// Payload holds the upstream error field, or the raw body when none was sent.
type APIError struct {
	StatusCode int
	Payload    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("GMI API Error: status %d: %s", e.StatusCode, e.Payload)
}

// Config configures a ChatModel.
type Config struct {
	APIKey      string
	Endpoint    string
	Model       string
	// Temperature 为 nil 时使用 DefaultTemperature，0 是合法取值。
	Temperature *float32
	MaxTokens   int
	Timeout     time.Duration
	HTTPClient  *http.Client
	Logger      *log.Logger
}

// ChatModel sends non-streaming completion requests to GMI.
type ChatModel struct {
	httpClient  *http.Client
	apiKey      string
	endpoint    string
	model       string
	temperature float32
	maxTokens   int
	logger      *log.Logger
}

var _ model.ChatModel = (*ChatModel)(nil)

// NewChatModel validates cfg and returns a ready ChatModel.
func NewChatModel(cfg Config) (*ChatModel, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, ErrMissingCredential
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = DefaultModel
	}
	temperature := DefaultTemperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &ChatModel{
		httpClient:  httpClient,
		apiKey:      apiKey,
		endpoint:    endpoint,
		model:       modelName,
		temperature: temperature,
		maxTokens:   maxTokens,
		logger:      logger.WithPrefix("gmi"),
	}, nil
}

// Generate issues one completion request and returns the first choice verbatim.
func (c *ChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{
		Temperature: &c.temperature,
		MaxTokens:   &c.maxTokens,
		Model:       &c.model,
	}, opts...)

	reqBody := chatRequest{
		Model:       *options.Model,
		Messages:    make([]chatMessage, 0, len(input)),
		Temperature: *options.Temperature,
		MaxTokens:   *options.MaxTokens,
		Stream:      false,
	}
	for _, msg := range input {
		if msg == nil {
			continue
		}
		reqBody.Messages = append(reqBody.Messages, chatMessage{Role: string(msg.Role), Content: msg.Content})
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("gmi: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gmi: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gmi: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gmi: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Payload: errorPayload(respBody)}
		c.logger.Error("completion request failed", "status", resp.StatusCode, "payload", apiErr.Payload)
		return nil, apiErr
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("gmi: decode response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, ErrNoChoices
	}

	choice := chatResp.Choices[0]
	msg := schema.AssistantMessage(choice.Message.Content, nil)
	msg.ResponseMeta = &schema.ResponseMeta{FinishReason: choice.FinishReason}
	if chatResp.Usage != nil {
		msg.ResponseMeta.Usage = &schema.TokenUsage{
			PromptTokens:     chatResp.Usage.PromptTokens,
			CompletionTokens: chatResp.Usage.CompletionTokens,
			TotalTokens:      chatResp.Usage.TotalTokens,
		}
	}

	c.logger.Debug("completion received", "model", reqBody.Model, "elapsed", time.Since(started), "length", len(msg.Content))
	return msg, nil
}

// Stream wraps Generate; the endpoint is always called with streaming disabled.
func (c *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := c.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// BindTools is not supported by the debate endpoint.
func (c *ChatModel) BindTools(_ []*schema.ToolInfo) error {
	return ErrToolsUnsupported
}

// errorPayload extracts the upstream "error" field, accepting both the string
// and the {"message": ...} object forms.
func errorPayload(body []byte) string {
	var envelope chatResponse
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Error) == 0 {
		return strings.TrimSpace(string(body))
	}

	var text string
	if err := json.Unmarshal(envelope.Error, &text); err == nil {
		return text
	}

	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Error, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return string(envelope.Error)
}
