package debate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/zhouzirui/z-debate/backend/internal/config"
	"github.com/zhouzirui/z-debate/backend/internal/logging"
	"github.com/zhouzirui/z-debate/backend/internal/model/debate"
	"github.com/zhouzirui/z-debate/backend/internal/model/speaker"
	"github.com/zhouzirui/z-debate/backend/internal/model/topic"
)

var (
	ErrUnknownEntity    = errors.New("unknown entity")
	ErrNoActiveSession  = errors.New("no active debate session")
	ErrTurnInProgress   = errors.New("a turn is already in progress")
	ErrAwaitingQuestion = errors.New("debate is waiting for a user question")
	ErrEmptyQuestion    = errors.New("question is required")
)

// Completer produces one utterance for a speaker. ai.Service implements it.
type Completer interface {
	GenerateSpeakerUtterance(ctx context.Context, sp speaker.Speaker, history string, t topic.Topic, question string) (string, error)
}

// Emitter delivers outbound events to the connection that triggered them.
// sessionID is empty when the failure happened before a session existed.
type Emitter interface {
	EmitTurn(sessionID string, event debate.TurnComplete)
	EmitError(sessionID string, event debate.ErrorEvent)
}

type session struct {
	state debate.Session
	busy  bool
}

type turnRequest struct {
	sessionID string
	speaker   speaker.Speaker
	history   string
	topic     topic.Topic
	question  string
	auto      bool
}

// Orchestrator owns every live debate, keyed by connection id.
type Orchestrator struct {
	completer Completer
	speakers  speaker.Store
	topics    topic.Store
	cfg       config.DebateConfig
	logger    *log.Logger
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// NewOrchestrator 创建会话编排器，目录数据只读注入。
func NewOrchestrator(completer Completer, speakers speaker.Store, topics topic.Store, cfg config.DebateConfig, logger *log.Logger) *Orchestrator {
	return &Orchestrator{
		completer: completer,
		speakers:  speakers,
		topics:    topics,
		cfg:       cfg,
		logger:    logging.OrDiscard(logger).WithPrefix("debate"),
		now:       func() time.Time { return time.Now().UTC() },
		sessions:  make(map[string]*session),
	}
}

// StartDebate replaces any session bound to connID and runs the opening turn
// for speaker1. Unknown speakers or topics leave existing state untouched.
func (o *Orchestrator) StartDebate(ctx context.Context, connID, speaker1, speaker2, topicLabel string, emitter Emitter) error {
	emitter = orNop(emitter)

	first, second, t, err := o.resolve(speaker1, speaker2, topicLabel)
	if err != nil {
		emitter.EmitError("", debate.ErrorEvent{Message: err.Error()})
		return err
	}

	s := &session{
		state: debate.Session{
			ID:        uuid.NewString(),
			Speakers:  [2]speaker.Speaker{first, second},
			Topic:     t,
			Status:    debate.StatusActive,
			CreatedAt: o.now(),
		},
		busy: true,
	}

	o.mu.Lock()
	if prev, ok := o.sessions[connID]; ok {
		terminate(prev)
	}
	o.sessions[connID] = s
	o.mu.Unlock()

	o.logger.Info("debate started", "conn", connID, "session", s.state.ID, "speakers", first.Name+" vs "+second.Name, "topic", t)

	return o.runTurn(ctx, connID, s, turnRequest{
		sessionID: s.state.ID,
		speaker:   first,
		topic:     t,
	}, emitter)
}

// HandleUserQuestion answers question with the speaker whose turn it is.
func (o *Orchestrator) HandleUserQuestion(ctx context.Context, connID, question string, emitter Emitter) error {
	emitter = orNop(emitter)

	s, req, err := o.begin(connID, strings.TrimSpace(question), false)
	if err != nil {
		emitter.EmitError(req.sessionID, debate.ErrorEvent{Message: err.Error()})
		return err
	}
	return o.runTurn(ctx, connID, s, req, emitter)
}

// ContinueDebate runs one turn without a user question. Once AutoTurnLimit
// consecutive continues have succeeded the session waits for a question.
func (o *Orchestrator) ContinueDebate(ctx context.Context, connID string, emitter Emitter) error {
	emitter = orNop(emitter)

	s, req, err := o.begin(connID, "", true)
	if err != nil {
		emitter.EmitError(req.sessionID, debate.ErrorEvent{Message: err.Error()})
		return err
	}
	return o.runTurn(ctx, connID, s, req, emitter)
}

// CleanupDebate terminates and forgets the session bound to connID. Safe to
// call repeatedly and for unknown connections.
func (o *Orchestrator) CleanupDebate(connID string) {
	o.mu.Lock()
	s, ok := o.sessions[connID]
	if ok {
		delete(o.sessions, connID)
		terminate(s)
	}
	o.mu.Unlock()

	if ok {
		o.logger.Info("debate cleaned up", "conn", connID)
	}
}

// Snapshot returns a copy of the session bound to connID.
func (o *Orchestrator) Snapshot(connID string) (debate.Session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, ok := o.sessions[connID]
	if !ok {
		return debate.Session{}, false
	}
	out := s.state
	out.Context = append([]debate.Entry(nil), s.state.Context...)
	return out, true
}

// ActiveSessions returns the number of live sessions.
func (o *Orchestrator) ActiveSessions() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sessions)
}

func (o *Orchestrator) resolve(speaker1, speaker2, topicLabel string) (speaker.Speaker, speaker.Speaker, topic.Topic, error) {
	first, ok := o.speakers.FindByName(strings.TrimSpace(speaker1))
	if !ok {
		return speaker.Speaker{}, speaker.Speaker{}, "", fmt.Errorf("%w: speaker %q", ErrUnknownEntity, speaker1)
	}
	second, ok := o.speakers.FindByName(strings.TrimSpace(speaker2))
	if !ok {
		return speaker.Speaker{}, speaker.Speaker{}, "", fmt.Errorf("%w: speaker %q", ErrUnknownEntity, speaker2)
	}

	label := strings.TrimSpace(topicLabel)
	if !o.topics.Contains(label) && (!o.cfg.AllowCustomTopics || label == "") {
		return speaker.Speaker{}, speaker.Speaker{}, "", fmt.Errorf("%w: topic %q", ErrUnknownEntity, topicLabel)
	}
	return first, second, topic.Topic(label), nil
}

// begin checks the session can take a turn, marks it busy and snapshots what
// the completion call needs.
func (o *Orchestrator) begin(connID, question string, auto bool) (*session, turnRequest, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, ok := o.sessions[connID]
	if !ok || s.state.Status == debate.StatusTerminated {
		return nil, turnRequest{}, ErrNoActiveSession
	}

	req := turnRequest{sessionID: s.state.ID}
	if !auto && question == "" {
		return nil, req, ErrEmptyQuestion
	}
	if s.busy {
		return nil, req, ErrTurnInProgress
	}
	if auto && s.state.Status == debate.StatusAwaitingUserQuestion {
		return nil, req, ErrAwaitingQuestion
	}

	if !auto {
		s.state.Status = debate.StatusActive
		s.state.AutoTurns = 0
		s.state.PendingQuestion = question
	}
	s.busy = true

	req.speaker = s.state.CurrentSpeaker()
	req.history = renderHistory(s.state.Context, o.cfg.ContextWindow)
	req.topic = s.state.Topic
	req.question = question
	req.auto = auto
	return s, req, nil
}

// runTurn performs the single await of a turn. Results for a session that was
// cleaned up or replaced meanwhile are dropped without any event.
func (o *Orchestrator) runTurn(ctx context.Context, connID string, s *session, req turnRequest, emitter Emitter) error {
	defer o.release(s)

	utterance, err := o.completer.GenerateSpeakerUtterance(ctx, req.speaker, req.history, req.topic, req.question)

	o.mu.Lock()
	if o.sessions[connID] != s || s.state.Status == debate.StatusTerminated {
		o.mu.Unlock()
		o.logger.Debug("discard late turn result", "conn", connID, "session", req.sessionID, "speaker", req.speaker.Name)
		return nil
	}

	s.state.PendingQuestion = ""
	if err != nil {
		turn := s.state.TurnIndex
		o.mu.Unlock()
		o.logger.Warn("turn failed", "conn", connID, "speaker", req.speaker.Name, "turn", turn, "err", err)
		emitter.EmitError(req.sessionID, debate.ErrorEvent{Message: err.Error()})
		return err
	}

	s.state.Context = append(s.state.Context, debate.Entry{
		Speaker:   req.speaker.Name,
		Utterance: utterance,
		CreatedAt: o.now(),
	})
	s.state.TurnIndex++
	if req.auto {
		s.state.AutoTurns++
		if o.cfg.AutoTurnLimit > 0 && s.state.AutoTurns >= o.cfg.AutoTurnLimit {
			s.state.Status = debate.StatusAwaitingUserQuestion
		}
	}
	turn := s.state.TurnIndex
	o.mu.Unlock()

	o.logger.Debug("turn complete", "conn", connID, "speaker", req.speaker.Name, "turn", turn)
	emitter.EmitTurn(req.sessionID, debate.TurnComplete{Speaker: req.speaker.Name, Message: utterance})
	return nil
}

func (o *Orchestrator) release(s *session) {
	o.mu.Lock()
	s.busy = false
	o.mu.Unlock()
}

// terminate marks s Terminated and drops everything it references.
func terminate(s *session) {
	s.state.Status = debate.StatusTerminated
	s.state.Context = nil
	s.state.Speakers = [2]speaker.Speaker{}
	s.state.Topic = ""
	s.state.PendingQuestion = ""
}

// renderHistory formats the last window entries as "Name: utterance" lines.
// A window of 0 keeps the whole transcript.
func renderHistory(entries []debate.Entry, window int) string {
	if window > 0 && len(entries) > window {
		entries = entries[len(entries)-window:]
	}

	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		lines = append(lines, entry.Speaker+": "+entry.Utterance)
	}
	return strings.Join(lines, "\n")
}

type nopEmitter struct{}

func (nopEmitter) EmitTurn(string, debate.TurnComplete) {}
func (nopEmitter) EmitError(string, debate.ErrorEvent) {}

func orNop(emitter Emitter) Emitter {
	if emitter == nil {
		return nopEmitter{}
	}
	return emitter
}
