package speaker

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-debate/backend/internal/model/speaker"
	"github.com/zhouzirui/z-debate/backend/pkg/utils"
)

// Handler 发言人目录的 HTTP 处理器
type Handler struct {
	speakers speaker.Store
}

// New 创建发言人处理器
func New(speakers speaker.Store) *Handler {
	return &Handler{speakers: speakers}
}

// RegisterRoutes 注册发言人相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/speakers", h.handleListSpeakers)
}

func (h *Handler) handleListSpeakers(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.speakers.List())
}
