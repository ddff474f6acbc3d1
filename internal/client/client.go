// Package client is a websocket client for the debate server.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	wsdebate "github.com/zhouzirui/z-debate/backend/internal/handler/debate"
	"github.com/zhouzirui/z-debate/backend/internal/model/debate"
	topicservice "github.com/zhouzirui/z-debate/backend/internal/service/topic"
)

// ErrClosed is returned when sending on a closed client.
var ErrClosed = errors.New("client closed")

// Event is one server event as received.
type Event struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// Turn decodes a turnComplete event.
func (e Event) Turn() (debate.TurnComplete, error) {
	var turn debate.TurnComplete
	err := e.decode(wsdebate.TypeTurnComplete, &turn)
	return turn, err
}

// Failure decodes an error event.
func (e Event) Failure() (debate.ErrorEvent, error) {
	var failure debate.ErrorEvent
	err := e.decode(wsdebate.TypeError, &failure)
	return failure, err
}

// Topic decodes a topic event.
func (e Event) Topic() (topicservice.Result, error) {
	var result topicservice.Result
	err := e.decode(wsdebate.TypeTopic, &result)
	return result, err
}

// ConnectionID decodes a connected event.
func (e Event) ConnectionID() (string, error) {
	var payload wsdebate.ConnectedPayload
	err := e.decode(wsdebate.TypeConnected, &payload)
	return payload.ConnectionID, err
}

func (e Event) decode(want string, out any) error {
	if e.Type != want {
		return fmt.Errorf("event type %q is not %q", e.Type, want)
	}
	return json.Unmarshal(e.Data, out)
}

// Client sends debate events and delivers server events on a channel.
type Client struct {
	conn    *websocket.Conn
	events  chan Event
	done    chan struct{}
	writeMu sync.Mutex

	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

// Dial connects to url, e.g. ws://localhost:5000/ws.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Client{conn: conn, events: make(chan Event, 32), done: make(chan struct{})}
	go c.readLoop()
	return c, nil
}

// Events is closed when the connection ends; Err then reports why.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Err returns the error that ended the read loop, if any.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// StartDebate asks the server to open a debate, replacing any current one.
func (c *Client) StartDebate(speaker1, speaker2, topic string) error {
	return c.send(wsdebate.TypeStartDebate, wsdebate.StartPayload{Speaker1: speaker1, Speaker2: speaker2, Topic: topic})
}

// SendQuestion puts a user question to the speaker whose turn it is.
func (c *Client) SendQuestion(question string) error {
	return c.send(wsdebate.TypeSendQuestion, wsdebate.QuestionPayload{Question: question})
}

// ContinueDebate asks for the next turn without a question.
func (c *Client) ContinueDebate() error {
	return c.send(wsdebate.TypeContinueDebate, nil)
}

// GenerateTopic asks the server for a topic suggestion.
func (c *Client) GenerateTopic() error {
	return c.send(wsdebate.TypeGenerateTopic, nil)
}

// Close sends a close frame and releases the connection. Events still
// buffered are dropped once Close returns.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *Client) send(msgType string, data any) error {
	msg := struct {
		Type string `json:"type"`
		Data any    `json:"data,omitempty"`
	}{Type: msgType, Data: data}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(msg); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return ErrClosed
		}
		return fmt.Errorf("send %s: %w", msgType, err)
	}
	return nil
}

func (c *Client) readLoop() {
	defer close(c.events)

	for {
		var ev Event
		if err := c.conn.ReadJSON(&ev); err != nil {
			if !c.closed() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.errMu.Lock()
				c.err = err
				c.errMu.Unlock()
			}
			return
		}
		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}

func (c *Client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
