package debate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/z-debate/backend/internal/logging"
	"github.com/zhouzirui/z-debate/backend/internal/middleware"
	debatemodel "github.com/zhouzirui/z-debate/backend/internal/model/debate"
	debateservice "github.com/zhouzirui/z-debate/backend/internal/service/debate"
	topicservice "github.com/zhouzirui/z-debate/backend/internal/service/topic"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 54 * time.Second
	queueSize    = 16
)

// 入站与出站事件类型。
const (
	TypeStartDebate    = "startDebate"
	TypeSendQuestion   = "sendQuestion"
	TypeContinueDebate = "continueDebate"
	TypeGenerateTopic  = "generateTopic"

	TypeConnected    = "connected"
	TypeTurnComplete = "turnComplete"
	TypeError        = "error"
	TypeTopic        = "topic"
)

// Orchestrator is the subset of debate.Orchestrator the transport drives.
type Orchestrator interface {
	StartDebate(ctx context.Context, connID, speaker1, speaker2, topic string, emitter debateservice.Emitter) error
	HandleUserQuestion(ctx context.Context, connID, question string, emitter debateservice.Emitter) error
	ContinueDebate(ctx context.Context, connID string, emitter debateservice.Emitter) error
	CleanupDebate(connID string)
}

// TopicGenerator produces a topic for the generateTopic event.
type TopicGenerator interface {
	Generate(ctx context.Context) topicservice.Result
}

// InboundMessage is a client event.
type InboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// OutboundMessage is a server event.
type OutboundMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// StartPayload is the data of a startDebate event.
type StartPayload struct {
	Speaker1 string `json:"speaker1"`
	Speaker2 string `json:"speaker2"`
	Topic    string `json:"topic"`
}

// QuestionPayload is the data of a sendQuestion event.
type QuestionPayload struct {
	Question string `json:"question"`
}

// ConnectedPayload is the data of the connected event.
type ConnectedPayload struct {
	ConnectionID string `json:"connectionId"`
}

// WebSocketHandler 把 WebSocket 事件转交给辩论编排器。
type WebSocketHandler struct {
	debates  Orchestrator
	topics   TopicGenerator
	upgrader websocket.Upgrader
	logger   *log.Logger
	newID    func() string
}

// NewWebSocketHandler 创建WebSocket处理器，topics 可以为空。
func NewWebSocketHandler(debates Orchestrator, topics TopicGenerator, allowedOrigins []string, logger *log.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		debates: debates,
		topics:  topics,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return middleware.OriginAllowed(allowedOrigins, r.Header.Get("Origin"))
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logging.OrDiscard(logger).WithPrefix("websocket"),
		newID:  uuid.NewString,
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

// connection implements debate.Emitter for one socket.
type connection struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  atomic.Bool
	logger  *log.Logger
}

func (c *connection) EmitTurn(sessionID string, event debatemodel.TurnComplete) {
	c.send(TypeTurnComplete, sessionID, event)
}

func (c *connection) EmitError(sessionID string, event debatemodel.ErrorEvent) {
	c.send(TypeError, sessionID, event)
}

func (c *connection) send(msgType, sessionID string, data any) {
	if c.closed.Load() {
		return
	}

	msg := OutboundMessage{
		Type:      msgType,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(msg); err != nil {
		c.logger.Debug("write failed", "conn", c.id, "type", msgType, "err", err)
	}
}

// handleWebSocket 处理WebSocket连接。读循环只负责入队，由单个 worker 顺序处理，
// 保证同一连接的事件按到达顺序执行完毕。
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", "err", err)
		return
	}

	c := &connection{id: h.newID(), conn: ws, logger: h.logger}
	h.logger.Info("client connected", "conn", c.id, "remote", r.RemoteAddr)

	// 断开连接不取消进行中的上游调用，其结果由编排器丢弃。
	workCtx := context.WithoutCancel(r.Context())
	pingCtx, stopPing := context.WithCancel(r.Context())

	queue := make(chan InboundMessage, queueSize)
	go h.worker(workCtx, c, queue)
	go h.pingLoop(pingCtx, c)

	defer func() {
		c.closed.Store(true)
		stopPing()
		h.debates.CleanupDebate(c.id)
		close(queue)
		_ = ws.Close()
		h.logger.Info("client disconnected", "conn", c.id)
	}()

	_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readTimeout))
	})

	c.send(TypeConnected, "", ConnectedPayload{ConnectionID: c.id})

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("read error", "conn", c.id, "err", err)
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(readTimeout))

		var msg InboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.EmitError("", debatemodel.ErrorEvent{Message: "invalid message"})
			continue
		}

		select {
		case queue <- msg:
		default:
			c.EmitError("", debatemodel.ErrorEvent{Message: "too many pending events"})
		}
	}
}

func (h *WebSocketHandler) worker(ctx context.Context, c *connection, queue <-chan InboundMessage) {
	// worker 退出时再清理一次，覆盖断开后才登记的会话。
	defer h.debates.CleanupDebate(c.id)

	for msg := range queue {
		if c.closed.Load() {
			continue
		}
		h.dispatch(ctx, c, msg)
	}
}

func (h *WebSocketHandler) dispatch(ctx context.Context, c *connection, msg InboundMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("panic while handling event", "conn", c.id, "type", msg.Type, "panic", rec)
			c.EmitError("", debatemodel.ErrorEvent{Message: "internal error"})
		}
	}()

	var err error
	switch msg.Type {
	case TypeStartDebate:
		var payload StartPayload
		if !decode(c, msg, &payload) {
			return
		}
		err = h.debates.StartDebate(ctx, c.id, payload.Speaker1, payload.Speaker2, payload.Topic, c)
	case TypeSendQuestion:
		var payload QuestionPayload
		if !decode(c, msg, &payload) {
			return
		}
		err = h.debates.HandleUserQuestion(ctx, c.id, payload.Question, c)
	case TypeContinueDebate:
		err = h.debates.ContinueDebate(ctx, c.id, c)
	case TypeGenerateTopic:
		if h.topics == nil {
			c.EmitError("", debatemodel.ErrorEvent{Message: "topic generation unavailable"})
			return
		}
		c.send(TypeTopic, "", h.topics.Generate(ctx))
	default:
		c.EmitError("", debatemodel.ErrorEvent{Message: "unsupported message type: " + msg.Type})
	}

	// 编排器已经向客户端发送过错误事件，这里只记录日志。
	if err != nil {
		h.logger.Debug("event failed", "conn", c.id, "type", msg.Type, "err", err)
	}
}

func decode(c *connection, msg InboundMessage, out any) bool {
	if len(msg.Data) == 0 {
		c.EmitError("", debatemodel.ErrorEvent{Message: fmt.Sprintf("%s requires data", msg.Type)})
		return false
	}
	if err := json.Unmarshal(msg.Data, out); err != nil {
		c.EmitError("", debatemodel.ErrorEvent{Message: fmt.Sprintf("invalid %s payload", msg.Type)})
		return false
	}
	return true
}

// pingLoop 定期发送ping消息
func (h *WebSocketHandler) pingLoop(ctx context.Context, c *connection) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
