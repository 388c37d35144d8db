package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

const (
	defaultStartCountdown = 3 * time.Second
	defaultAnswerGrace    = time.Second
)

// GatewayOptions tune the gateway's timers. Zero values fall back to the
// defaults: a 3s countdown before the first question and a 1s grace buffer
// past each question's limit so last-moment answers are not dropped.
type GatewayOptions struct {
	StartCountdown time.Duration
	AnswerGrace    time.Duration
}

// Gateway upgrades connections, maps them to rooms, and translates inbound
// intent events into session use cases. All failures are scoped to the
// originating connection via an error event; the room never goes down with
// one bad request.
type Gateway struct {
	service   *app.SessionService
	hub       *Hub
	upgrader  websocket.Upgrader
	countdown time.Duration
	grace     time.Duration
}

func NewGateway(service *app.SessionService, hub *Hub, opts GatewayOptions) *Gateway {
	countdown := opts.StartCountdown
	if countdown <= 0 {
		countdown = defaultStartCountdown
	}
	grace := opts.AnswerGrace
	if grace <= 0 {
		grace = defaultAnswerGrace
	}
	return &Gateway{
		service: service,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		countdown: countdown,
		grace:     grace,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type joinPayload struct {
	JoinCode string `json:"joinCode"`
	Name     string `json:"name"`
}

type hostConnectPayload struct {
	JoinCode string `json:"joinCode"`
}

type sessionPayload struct {
	SessionID string `json:"sessionId"`
}

type startQuestionPayload struct {
	SessionID     string `json:"sessionId"`
	QuestionIndex int    `json:"questionIndex"`
}

type submitAnswerPayload struct {
	SessionID         string   `json:"sessionId"`
	ParticipantID     string   `json:"participantId"`
	QuestionID        string   `json:"questionId"`
	SelectedOptionIDs []string `json:"selectedOptionIds"`
	TimeToAnswer      float64  `json:"timeToAnswer"`
}

type joinedPayload struct {
	SessionID     string       `json:"sessionId"`
	ParticipantID string       `json:"participantId,omitempty"`
	Quiz          *domain.Quiz `json:"quiz,omitempty"`
}

type participantView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

type participantListPayload struct {
	Participants []participantView `json:"participants"`
}

type quizStartedPayload struct {
	Countdown float64 `json:"countdown"` // seconds until the first question
}

type questionStartedPayload struct {
	QuestionIndex int `json:"questionIndex"`
	TimeLimit     int `json:"timeLimit"`
}

type newQuestionPayload struct {
	Question domain.QuestionView `json:"question"`
}

type questionEndedPayload struct {
	QuestionIndex    int      `json:"questionIndex"`
	CorrectOptionIDs []string `json:"correctOptionIds"`
}

type leaderboardPayload struct {
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and runs the connection's event loop.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}

	c := newConn(ws)
	go c.writePump()

	defer func() {
		g.hub.leave(c)
		c.close()
		ws.Close()
	}()

	for {
		var inbound inboundMessage
		if err := ws.ReadJSON(&inbound); err != nil {
			return
		}
		g.dispatch(r.Context(), c, inbound)
	}
}

// dispatch routes one inbound event. Timer-fired events re-enter through the
// same handler functions with explicit values, so user and timer mutations
// share a single path into the state machine.
func (g *Gateway) dispatch(ctx context.Context, c *conn, inbound inboundMessage) {
	switch inbound.Type {
	case "join":
		var p joinPayload
		if !g.decode(c, inbound.Payload, &p) {
			return
		}
		g.handleJoin(ctx, c, p)
	case "host-connect":
		var p hostConnectPayload
		if !g.decode(c, inbound.Payload, &p) {
			return
		}
		g.handleHostConnect(ctx, c, p)
	case "start-quiz":
		var p sessionPayload
		if !g.decode(c, inbound.Payload, &p) {
			return
		}
		g.handleStartQuiz(ctx, c, p.SessionID)
	case "start-question":
		var p startQuestionPayload
		if !g.decode(c, inbound.Payload, &p) {
			return
		}
		g.handleStartQuestion(ctx, c, c.currentRoom(), p.SessionID, p.QuestionIndex)
	case "submit-answer":
		var p submitAnswerPayload
		if !g.decode(c, inbound.Payload, &p) {
			return
		}
		g.handleSubmitAnswer(ctx, c, p)
	case "end-quiz":
		var p sessionPayload
		if !g.decode(c, inbound.Payload, &p) {
			return
		}
		g.handleEndQuiz(ctx, c, p.SessionID)
	default:
		c.emit("error", errorPayload{Message: "unsupported message type"})
	}
}

func (g *Gateway) handleJoin(ctx context.Context, c *conn, p joinPayload) {
	result, err := g.service.Join(ctx, p.JoinCode, p.Name)
	if err != nil {
		g.emitError(c, err)
		return
	}

	g.hub.join(p.JoinCode, c)
	c.setParticipant(result.ParticipantID)

	c.emit("joined", joinedPayload{
		SessionID:     result.SessionID,
		ParticipantID: result.ParticipantID,
	})
	g.hub.broadcast(p.JoinCode, "participant-list-updated", participantListPayload{
		Participants: participantViews(result.Participants),
	})
}

func (g *Gateway) handleHostConnect(ctx context.Context, c *conn, p hostConnectPayload) {
	view, err := g.service.HostConnect(ctx, p.JoinCode)
	if err != nil {
		g.emitError(c, err)
		return
	}

	g.hub.join(p.JoinCode, c)

	quiz := view.Quiz
	c.emit("joined", joinedPayload{SessionID: view.Session.ID, Quiz: &quiz})
	c.emit("participant-list-updated", participantListPayload{
		Participants: participantViews(view.Session.Participants),
	})
}

func (g *Gateway) handleStartQuiz(ctx context.Context, c *conn, sessionID string) {
	if err := g.service.StartQuiz(ctx, sessionID); err != nil {
		g.emitError(c, err)
		return
	}

	room := c.currentRoom()
	g.hub.broadcast(room, "quiz-started", quizStartedPayload{
		Countdown: g.countdown.Seconds(),
	})

	// First question opens after the countdown so clients can render the
	// starting transition. The timer re-enters the ordinary handler with
	// explicit values rather than closing over connection state.
	time.AfterFunc(g.countdown, func() {
		g.handleStartQuestion(context.Background(), c, room, sessionID, 0)
	})
}

func (g *Gateway) handleStartQuestion(ctx context.Context, c *conn, room, sessionID string, index int) {
	start, err := g.service.StartQuestion(ctx, sessionID, index, g.grace)
	if err != nil {
		g.emitError(c, err)
		return
	}

	// Host-only view first, then the answer-safe payload for the room.
	c.emit("question-started", questionStartedPayload{
		QuestionIndex: start.Index,
		TimeLimit:     start.Question.TimeLimit,
	})
	g.hub.broadcast(room, "new-question", newQuestionPayload{Question: start.Question})

	time.AfterFunc(start.Deadline, func() {
		g.fireQuestionTimeout(room, sessionID, index)
	})
}

// fireQuestionTimeout closes a question's answer window. It reads the
// session fresh; if the host already advanced, the timeout is stale and
// nothing is broadcast. A store failure only skips this cycle's broadcast.
func (g *Gateway) fireQuestionTimeout(room, sessionID string, index int) {
	end, ok, err := g.service.QuestionTimeout(context.Background(), sessionID, index)
	if err != nil {
		log.Printf("question timeout for session %s index %d: %v", sessionID, index, err)
		return
	}
	if !ok {
		return
	}

	g.hub.broadcast(room, "question-ended", questionEndedPayload{
		QuestionIndex:    end.Index,
		CorrectOptionIDs: end.CorrectOptionIDs,
	})
	g.hub.broadcast(room, "leaderboard-updated", leaderboardPayload{Leaderboard: end.Leaderboard})
}

func (g *Gateway) handleSubmitAnswer(ctx context.Context, c *conn, p submitAnswerPayload) {
	// Answers are scoped to the participant who joined on this connection;
	// a payload naming someone else's id is rejected, not trusted.
	own := c.participant()
	if own == "" {
		g.emitError(c, fmt.Errorf("%w: connection has not joined", domain.ErrValidation))
		return
	}
	if p.ParticipantID != "" && p.ParticipantID != own {
		g.emitError(c, fmt.Errorf("%w: participant mismatch", domain.ErrValidation))
		return
	}

	outcome, err := g.service.SubmitAnswer(ctx, p.SessionID, own, p.QuestionID, p.SelectedOptionIDs, p.TimeToAnswer)
	if err != nil {
		g.emitError(c, err)
		return
	}

	g.hub.broadcast(c.currentRoom(), "leaderboard-updated", leaderboardPayload{
		Leaderboard: outcome.Leaderboard,
	})
}

func (g *Gateway) handleEndQuiz(ctx context.Context, c *conn, sessionID string) {
	leaderboard, err := g.service.EndQuiz(ctx, sessionID)
	if err != nil {
		g.emitError(c, err)
		return
	}

	g.hub.broadcast(c.currentRoom(), "quiz-completed", leaderboardPayload{Leaderboard: leaderboard})
}

func (g *Gateway) decode(c *conn, raw json.RawMessage, into any) bool {
	if len(raw) == 0 || json.Unmarshal(raw, into) != nil {
		c.emit("error", errorPayload{Message: "invalid payload"})
		return false
	}
	return true
}

// emitError converts any failure into a scoped error event on the origin
// connection. Known domain errors surface their message; anything else
// (store unreachable and the like) gets a generic one.
func (g *Gateway) emitError(c *conn, err error) {
	known := []error{
		domain.ErrQuizNotFound,
		domain.ErrSessionNotFound,
		domain.ErrParticipantNotFound,
		domain.ErrQuestionNotFound,
		domain.ErrInvalidTransition,
		domain.ErrQuestionNotActive,
		domain.ErrDuplicateAnswer,
		domain.ErrValidation,
	}
	for _, sentinel := range known {
		if errors.Is(err, sentinel) {
			c.emit("error", errorPayload{Message: sentinel.Error()})
			return
		}
	}
	log.Printf("ws handler error: %v", err)
	c.emit("error", errorPayload{Message: "request failed"})
}

func participantViews(participants []domain.Participant) []participantView {
	views := make([]participantView, len(participants))
	for i, p := range participants {
		views[i] = participantView{ID: p.ID, Name: p.Name, Score: p.Score}
	}
	return views
}
