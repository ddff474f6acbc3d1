package handler

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/z-debate/backend/internal/handler/debate"
	speakerhandler "github.com/zhouzirui/z-debate/backend/internal/handler/speaker"
	topichandler "github.com/zhouzirui/z-debate/backend/internal/handler/topic"
	"github.com/zhouzirui/z-debate/backend/internal/logging"
	middlewarePkg "github.com/zhouzirui/z-debate/backend/internal/middleware"
	"github.com/zhouzirui/z-debate/backend/internal/model/speaker"
	"github.com/zhouzirui/z-debate/backend/internal/model/topic"
	"github.com/zhouzirui/z-debate/backend/pkg/utils"
)

// SessionCounter reports how many debates are live.
type SessionCounter interface {
	ActiveSessions() int
}

// Orchestrator is what the router needs from the debate service.
type Orchestrator interface {
	debate.Orchestrator
	SessionCounter
}

// Dependencies 汇总路由所需的服务。TopicGenerator 可以为空。
type Dependencies struct {
	Speakers       speaker.Store
	Topics         topic.Store
	Debates        Orchestrator
	TopicGenerator debate.TopicGenerator
	AllowedOrigins []string
	Logger         *log.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	logger := logging.OrDiscard(deps.Logger)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.AllowedOrigins))

	r.Route("/api", func(api chi.Router) {
		speakerhandler.New(deps.Speakers).RegisterRoutes(api)

		topichandler.New(deps.Topics, deps.TopicGenerator).RegisterRoutes(api)

		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]any{
				"status":   "ok",
				"sessions": deps.Debates.ActiveSessions(),
			})
		})
	})

	debate.NewWebSocketHandler(deps.Debates, deps.TopicGenerator, deps.AllowedOrigins, logger).RegisterRoutes(r)

	return r
}
