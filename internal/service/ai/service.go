package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/z-debate/backend/internal/config"
	"github.com/zhouzirui/z-debate/backend/internal/llm/gmi"
	"github.com/zhouzirui/z-debate/backend/internal/logging"
	"github.com/zhouzirui/z-debate/backend/internal/model/speaker"
	"github.com/zhouzirui/z-debate/backend/internal/model/topic"
)

var (
	// ErrMissingCredential 表示没有可用的模型凭证，服务无法创建。
	ErrMissingCredential = config.ErrMissingCredential
	// ErrUpstreamEmpty 表示上游返回成功但没有任何候选回复。
	ErrUpstreamEmpty = errors.New("upstream returned no completion")
)

// UpstreamError wraps a transport or HTTP failure of the completion endpoint.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Service turns a speaker, the debate so far and an optional user question into
// one in-character utterance. It keeps no per-debate state.
type Service struct {
	chatModel   model.BaseChatModel
	template    prompt.ChatTemplate
	temperature float64
	maxTokens   int
	logger      *log.Logger
}

// NewService creates the chat model described by cfg and wraps it.
func NewService(ctx context.Context, cfg config.AIConfig, logger *log.Logger) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(chatModel, cfg, logger)
}

// NewServiceWithModel wraps an existing chat model. A nil model means no
// credential was configured. cfg.Temperature is used as given, so an explicit
// 0 stays 0; config.Load fills in the default.
func NewServiceWithModel(chatModel model.BaseChatModel, cfg config.AIConfig, logger *log.Logger) (*Service, error) {
	if chatModel == nil {
		return nil, ErrMissingCredential
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		return nil, fmt.Errorf("temperature %v out of range [0, 2]", cfg.Temperature)
	}

	temperature := cfg.Temperature
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = gmi.DefaultMaxTokens
	}

	return &Service{
		chatModel: chatModel,
		template: prompt.FromMessages(
			schema.FString,
			schema.SystemMessage("{system}"),
			schema.UserMessage("{query}"),
		),
		temperature: temperature,
		maxTokens:   maxTokens,
		logger:      logging.OrDiscard(logger).WithPrefix("ai"),
	}, nil
}

// ChatModel 返回底层的聊天模型，供话题生成等服务复用。
func (s *Service) ChatModel() model.BaseChatModel {
	return s.chatModel
}

// GenerateSpeakerUtterance issues exactly one completion request. history is the
// rendered "Name: utterance" transcript, empty for an opening turn; question is
// empty on the implicit continue path.
func (s *Service) GenerateSpeakerUtterance(ctx context.Context, sp speaker.Speaker, history string, t topic.Topic, question string) (string, error) {
	messages, err := s.template.Format(ctx, map[string]any{
		"system": BuildSystemPrompt(sp, history, t, question),
		"query":  BuildUserPrompt(t, question),
	})
	if err != nil {
		return "", fmt.Errorf("format prompt: %w", err)
	}

	temperature := s.temperature
	if sp.Temperature != nil {
		temperature = *sp.Temperature
	}

	started := time.Now()
	resp, err := s.chatModel.Generate(ctx, messages,
		model.WithTemperature(float32(temperature)),
		model.WithMaxTokens(s.maxTokens),
	)
	if err != nil {
		if config.IsEmptyCompletion(err) {
			return "", ErrUpstreamEmpty
		}
		s.logger.Warn("completion failed", "speaker", sp.Name, "err", err)
		return "", &UpstreamError{Err: err}
	}
	if resp == nil {
		return "", ErrUpstreamEmpty
	}

	s.logger.Debug("utterance generated", "speaker", sp.Name, "elapsed", time.Since(started), "length", len(resp.Content))
	return resp.Content, nil
}
