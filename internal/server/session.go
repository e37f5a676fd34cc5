package server

import (
	"context"
	"net/http"
	"strings"

	"tradeagent/internal/agent"
	"tradeagent/internal/conversation"
	"tradeagent/internal/logger"
	"tradeagent/internal/stream"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Commands accepted on the WebSocket
const (
	CommandStart   = "start"
	CommandMessage = "message"
	CommandAvatar  = "avatar"
)

// Command is the envelope of every client message
type Command struct {
	Command string `json:"command"`
	Message string `json:"message,omitempty"`
	Avatar  string `json:"avatar,omitempty"`
}

// avatarReply acknowledges a persona switch
type avatarReply struct {
	Type   string `json:"type"`
	Avatar string `json:"avatar"`
}

// session is one connected client: its own conversation, persona and sink.
// Commands are handled one at a time in arrival order.
type session struct {
	srv     *Server
	conn    *websocket.Conn
	sink    *stream.WebSocketSink
	state   *conversation.State
	log     *logger.Logger
	persona string
	loop    *agent.Loop
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed: %v", err)
		return
	}

	id := uuid.NewString()
	sess := &session{
		srv:     s,
		conn:    conn,
		sink:    stream.NewWebSocketSink(conn, s.cfg.WriteTimeout),
		state:   conversation.New(id, s.archive),
		log:     s.log.With("conversation", id),
		persona: s.cfg.DefaultPersona,
	}

	s.track(sess)
	defer s.untrack(sess)
	defer sess.close()

	sess.log.Info("client connected from %s", r.RemoteAddr)
	sess.serve(r.Context())
	sess.log.Info("client disconnected after %d turns", sess.state.Len())
}

func (sess *session) serve(ctx context.Context) {
	for {
		var cmd Command
		if err := sess.conn.ReadJSON(&cmd); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				sess.log.Debug("read command: %v", err)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		sess.handle(ctx, cmd)
	}
}

func (sess *session) handle(ctx context.Context, cmd Command) {
	switch strings.ToLower(strings.TrimSpace(cmd.Command)) {
	case CommandStart:
		sess.run(ctx, StartInstruction, nil, false)
	case CommandMessage:
		if strings.TrimSpace(cmd.Message) == "" {
			sess.reject("message cannot be empty")
			return
		}
		sess.run(ctx, cmd.Message, sess.state.Turns(), true)
	case CommandAvatar:
		sess.switchPersona(cmd.Avatar)
	default:
		sess.reject("unknown command: " + cmd.Command)
	}
}

// run streams one loop run to the client. A final answer is recorded in
// the conversation when remember is set.
func (sess *session) run(ctx context.Context, instruction string, history []conversation.Turn, remember bool) {
	loop, err := sess.currentLoop()
	if err != nil {
		sess.reject(err.Error())
		return
	}

	pub := stream.NewPublisher(sess.sink, sess.log)
	last := pub.Drain(loop.Run(ctx, instruction, history))
	if sent, dropped := pub.Stats(); dropped > 0 {
		sess.log.Warn("client missed %d of %d events", dropped, sent+dropped)
	}

	if remember && last.Kind == agent.EventFinalAnswer {
		if err := sess.state.Append(ctx, instruction, last.Text); err != nil {
			sess.log.Warn("archive turn: %v", err)
		}
	}
}

func (sess *session) currentLoop() (*agent.Loop, error) {
	if sess.loop != nil {
		return sess.loop, nil
	}
	loop, err := sess.srv.factory.CreateLoop(sess.persona)
	if err != nil {
		return nil, err
	}
	sess.loop = loop
	return loop, nil
}

func (sess *session) switchPersona(name string) {
	loop, err := sess.srv.factory.CreateLoop(name)
	if err != nil {
		sess.reject(err.Error())
		return
	}
	sess.persona = loop.Name()
	sess.loop = loop
	sess.log.Info("persona switched to %s", sess.persona)

	if err := sess.sink.WriteJSON(avatarReply{Type: CommandAvatar, Avatar: sess.persona}); err != nil {
		sess.log.Debug("avatar reply: %v", err)
	}
}

func (sess *session) reject(reason string) {
	if err := sess.sink.Send(stream.Frame{Type: stream.TypeError, Output: reason}); err != nil {
		sess.log.Debug("error reply: %v", err)
	}
}

func (sess *session) close() {
	_ = sess.sink.Close()
}
