package topic

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	topicmodel "github.com/zhouzirui/z-debate/backend/internal/model/topic"
)

type fakeChatModel struct {
	content     string
	err         error
	temperature *float32
	input       []*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.input = input
	f.temperature = model.GetCommonOptions(&model.Options{}, opts...).Temperature
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.content, nil), nil
}

func (f *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func newTestService(t *testing.T, chatModel model.BaseChatModel) *Service {
	t.Helper()
	store := topicmodel.NewMemoryStore([]topicmodel.Topic{"Alpha topic", "Beta topic"})
	svc, err := NewService(context.Background(), chatModel, store, nil)
	require.NoError(t, err)
	svc.pick = func(int) int { return 1 }
	return svc
}

func TestGenerateUsesModel(t *testing.T) {
	fake := &fakeChatModel{content: "  \"Should robots vote in elections?\"  "}
	svc := newTestService(t, fake)

	res := svc.Generate(context.Background())
	assert.True(t, res.Generated)
	assert.Equal(t, topicmodel.Topic("Should robots vote in elections?"), res.Topic)

	require.NotNil(t, fake.temperature)
	assert.InDelta(t, 0.9, *fake.temperature, 1e-6)
	require.Len(t, fake.input, 2)
	assert.Equal(t, generatorSystemPrompt, fake.input[0].Content)
	assert.Equal(t, generatorPrompts[1], fake.input[1].Content)
}

func TestGenerateFallsBack(t *testing.T) {
	cases := map[string]*fakeChatModel{
		"error":     {err: errors.New("boom")},
		"empty":     {content: "   "},
		"none":      {content: "None"},
		"too short": {content: "AI"},
	}

	for name, fake := range cases {
		t.Run(name, func(t *testing.T) {
			res := newTestService(t, fake).Generate(context.Background())
			assert.False(t, res.Generated)
			assert.Equal(t, topicmodel.Topic("Beta topic"), res.Topic)
		})
	}
}

func TestGenerateWithoutModel(t *testing.T) {
	svc := newTestService(t, nil)
	assert.False(t, svc.Enabled())

	res := svc.Generate(context.Background())
	assert.False(t, res.Generated)
	assert.Equal(t, topicmodel.Topic("Beta topic"), res.Topic)
}

func TestCleanTopicKeepsLastLine(t *testing.T) {
	assert.Equal(t, "Cities Without Cars", cleanTopic("Thinking...\n\n'Cities Without Cars'\n"))
}
