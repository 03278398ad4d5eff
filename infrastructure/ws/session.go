package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/runtime"
	"chat-relay/services"

	"github.com/gorilla/websocket"
)

// Session drives one upgraded connection. The read pump decodes client
// frames and invokes the chat service; the write pump is the single writer
// on the socket, draining both core pushes (sink) and direct replies
// (outbound). Separating the two pumps avoids head-of-line blocking when a
// client is slow, and per-connection ordering follows arrival order since
// each pump is a single goroutine.
type Session struct {
	conn     *websocket.Conn
	sink     *Sink
	identity domain.Identity
	chat     services.IChatService
	gateway  *runtime.Gateway
	outbound chan ServerFrame
	log      *slog.Logger
}

func NewSession(conn *websocket.Conn, sink *Sink, identity domain.Identity,
	chat services.IChatService, gateway *runtime.Gateway, log *slog.Logger) *Session {
	return &Session{
		conn:     conn,
		sink:     sink,
		identity: identity,
		chat:     chat,
		gateway:  gateway,
		outbound: make(chan ServerFrame, cap(sink.events)),
		log:      log,
	}
}

// Run blocks until the connection goes away, then tears the session down.
func (s *Session) Run(ctx context.Context, initial ...ServerFrame) {
	defer func() {
		s.gateway.OnDisconnect(s.identity.UserID, s.sink)
		_ = s.sink.Close()
		_ = s.conn.Close()
	}()

	pumpCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.writePump(pumpCtx, initial)
	s.readPump(pumpCtx)
}

func (s *Session) readPump(ctx context.Context) {
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("Connection closed unexpectedly", "user_id", s.identity.UserID, "error", err)
			}
			return
		}

		var frame ClientFrame
		if err = json.Unmarshal(raw, &frame); err != nil {
			s.reply(ServerFrame{Event: eventError, Data: errorPayload{
				Code: "MALFORMED_FRAME", Message: "expected a JSON frame with an 'action' field",
			}})
			continue
		}

		s.dispatch(ctx, frame)
	}
}

// dispatch handles one client frame. Events of a single connection are
// processed here in arrival order; a sent message is acked with its
// assigned id so the client can reconcile an optimistic local copy.
func (s *Session) dispatch(ctx context.Context, frame ClientFrame) {
	switch frame.Action {
	case ActionSendMessage:
		message, err := s.chat.Send(ctx, s.identity.UserID, frame.ReceiverID,
			frame.Content, domain.ParseMessageType(frame.Type))
		if err != nil {
			s.reply(errorFrame(err))
			return
		}
		s.reply(ackFrame(message))

	case ActionTyping:
		s.chat.Typing(s.identity.UserID, frame.ReceiverID)

	case ActionStopTyping:
		s.chat.StopTyping(s.identity.UserID, frame.ReceiverID)

	default:
		s.reply(ServerFrame{Event: eventError, Data: errorPayload{
			Code: "UNKNOWN_ACTION", Message: "unknown action " + frame.Action,
		}})
	}
}

// reply queues a direct response for the write pump.
func (s *Session) reply(frame ServerFrame) {
	select {
	case s.outbound <- frame:
	default:
		s.log.Warn("Outbound queue full, dropping reply", "user_id", s.identity.UserID)
	}
}

func (s *Session) writePump(ctx context.Context, initial []ServerFrame) {
	for _, frame := range initial {
		if err := s.conn.WriteJSON(frame); err != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case <-s.sink.Done():
			// Replaced by a newer connection for the same user.
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation,
					errors.ErrSessionReplaced.Error()))
			_ = s.conn.Close()
			return
		case evt := <-s.sink.Events():
			if err := s.conn.WriteJSON(toServerFrame(evt)); err != nil {
				s.log.Debug("Write failed", "user_id", s.identity.UserID, "error", err)
				return
			}
		case frame := <-s.outbound:
			if err := s.conn.WriteJSON(frame); err != nil {
				s.log.Debug("Write failed", "user_id", s.identity.UserID, "error", err)
				return
			}
		}
	}
}
