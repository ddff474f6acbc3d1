package topic

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/z-debate/backend/internal/logging"
	topicmodel "github.com/zhouzirui/z-debate/backend/internal/model/topic"
)

const (
	generatorSystemPrompt = "Generate a debate topic (5-10 words max). Return ONLY the topic, nothing else."
	generatorTemperature  = float32(0.9)
	minTopicLength        = 6
)

// 用户提示词轮换使用，让生成的话题覆盖不同领域。
var generatorPrompts = []string{
	"Generate a debate topic about technology and society",
	"Create a debate topic about environmental challenges",
	"Suggest a debate topic about economic systems",
	"Propose a debate topic about human rights and freedoms",
	"Generate a debate topic about scientific advancement",
	"Create a debate topic about education and learning",
	"Suggest a debate topic about healthcare and medicine",
	"Propose a debate topic about space and exploration",
	"Generate a debate topic about privacy and security",
	"Create a debate topic about innovation and progress",
}

// Result is a generated topic and whether it came from the model.
type Result struct {
	Topic     topicmodel.Topic `json:"topic"`
	Generated bool             `json:"generated"`
}

// Service 使用大模型生成辩论话题，失败时回退到目录中的随机话题。
type Service struct {
	generator compose.Runnable[map[string]any, *schema.Message]
	topics    topicmodel.Store
	pick      func(n int) int
	logger    *log.Logger
}

// NewService 创建话题生成服务。chatModel 为空时只使用目录回退。
func NewService(ctx context.Context, chatModel model.BaseChatModel, topics topicmodel.Store, logger *log.Logger) (*Service, error) {
	svc := &Service{
		topics: topics,
		pick:   rand.IntN,
		logger: logging.OrDiscard(logger).WithPrefix("topic"),
	}
	if chatModel == nil {
		return svc, nil
	}

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(generatorSystemPrompt),
		schema.UserMessage("{request}"),
	))
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile topic generator chain: %w", err)
	}
	svc.generator = runnable
	return svc, nil
}

// Enabled reports whether a chat model backs the generator.
func (s *Service) Enabled() bool {
	return s != nil && s.generator != nil
}

// Generate asks the model for a fresh topic. It never fails: any error or
// unusable answer yields a random catalog topic instead.
func (s *Service) Generate(ctx context.Context) Result {
	if !s.Enabled() {
		return s.fallback()
	}

	msg, err := s.generator.Invoke(ctx,
		map[string]any{"request": generatorPrompts[s.pick(len(generatorPrompts))]},
		compose.WithChatModelOption(model.WithTemperature(generatorTemperature)),
	)
	if err != nil {
		s.logger.Warn("topic generation failed, use fallback", "err", err)
		return s.fallback()
	}
	if msg == nil {
		return s.fallback()
	}

	label := cleanTopic(msg.Content)
	if len(label) < minTopicLength || strings.EqualFold(label, "none") {
		s.logger.Debug("topic generation returned unusable content, use fallback", "content", msg.Content)
		return s.fallback()
	}
	return Result{Topic: topicmodel.Topic(label), Generated: true}
}

func (s *Service) fallback() Result {
	items := s.topics.List()
	if len(items) == 0 {
		items = topicmodel.Seed()
	}
	return Result{Topic: items[s.pick(len(items))]}
}

// cleanTopic keeps the last non-empty line and strips surrounding quotes.
func cleanTopic(content string) string {
	lines := strings.Split(strings.TrimSpace(content), "\n")
	label := strings.TrimSpace(lines[len(lines)-1])
	label = strings.Trim(label, `"'`)
	return strings.TrimSpace(label)
}
