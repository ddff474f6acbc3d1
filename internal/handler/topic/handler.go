package topic

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-debate/backend/internal/model/topic"
	topicservice "github.com/zhouzirui/z-debate/backend/internal/service/topic"
	"github.com/zhouzirui/z-debate/backend/pkg/utils"
)

// Generator produces a fresh debate topic.
type Generator interface {
	Generate(ctx context.Context) topicservice.Result
}

// Handler 话题目录与话题生成的 HTTP 处理器
type Handler struct {
	topics    topic.Store
	generator Generator
}

// New 创建话题处理器，generator 可以为空。
func New(topics topic.Store, generator Generator) *Handler {
	return &Handler{topics: topics, generator: generator}
}

// RegisterRoutes 注册话题相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/topics", h.handleListTopics)
	r.Post("/topics/generate", h.handleGenerateTopic)
}

func (h *Handler) handleListTopics(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.topics.List())
}

func (h *Handler) handleGenerateTopic(w http.ResponseWriter, r *http.Request) {
	if h.generator == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "topic generation unavailable")
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.generator.Generate(r.Context()))
}
