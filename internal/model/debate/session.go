package debate

import (
	"time"

	"github.com/zhouzirui/z-debate/backend/internal/model/speaker"
	"github.com/zhouzirui/z-debate/backend/internal/model/topic"
)

// Status 描述辩论会话所处的阶段。
type Status string

const (
	StatusActive               Status = "active"
	StatusAwaitingUserQuestion Status = "awaiting_user_question"
	StatusTerminated           Status = "terminated"
)

// Entry is one accepted utterance in the debate transcript.
type Entry struct {
	Speaker   string    `json:"speaker"`
	Utterance string    `json:"utterance"`
	CreatedAt time.Time `json:"createdAt"`
}

// Session is a read-only view of a live debate bound to one connection.
type Session struct {
	ID              string             `json:"id"`
	Speakers        [2]speaker.Speaker `json:"speakers"`
	Topic           topic.Topic        `json:"topic"`
	TurnIndex       int                `json:"turnIndex"`
	Context         []Entry            `json:"context"`
	Status          Status             `json:"status"`
	PendingQuestion string             `json:"pendingQuestion,omitempty"`
	AutoTurns       int                `json:"autoTurns"`
	CreatedAt       time.Time          `json:"createdAt"`
}

// CurrentSpeaker returns the speaker whose turn is next.
func (s Session) CurrentSpeaker() speaker.Speaker {
	return s.Speakers[s.TurnIndex%2]
}
