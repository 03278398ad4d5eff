package ws

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/runtime"
	"chat-relay/services"

	"github.com/gorilla/websocket"
)

// Server exposes the JSON endpoints and the WebSocket upgrade path.
// Authentication happens before the upgrade: a bad credential is rejected
// with 401 and never creates a registry entry.
type Server struct {
	log            *slog.Logger
	authenticator  contract.Authenticator
	authService    services.IAuthService
	chatService    services.IChatService
	gateway        *runtime.Gateway
	presence       *runtime.PresenceTracker
	upgrader       websocket.Upgrader
	bufferSize     int
	allowedOrigins map[string]bool
}

func NewServer(log *slog.Logger, authenticator contract.Authenticator,
	authService services.IAuthService, chatService services.IChatService,
	gateway *runtime.Gateway, presence *runtime.PresenceTracker,
	bufferSize int, allowedOrigins []string) *Server {
	origins := make(map[string]bool)
	for _, o := range allowedOrigins {
		origins[o] = true
	}

	s := &Server{
		log:            log,
		authenticator:  authenticator,
		authService:    authService,
		chatService:    chatService,
		gateway:        gateway,
		presence:       presence,
		bufferSize:     bufferSize,
		allowedOrigins: origins,
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.allowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // allow non-browser clients
	}
	return s.allowedOrigins[origin]
}

// Handler wires every route onto a fresh mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /messages", s.handleHistory)
	mux.HandleFunc("GET /unread", s.handleUnread)
	mux.HandleFunc("GET /ws", s.handleWS)
	return mux
}

type credentialsBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenBody struct {
	Token string `json:"token"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	token, err := s.authService.Register(body.Username, body.Password)
	if err != nil {
		s.writeError(w, registerStatus(err), err)
		return
	}
	s.writeJSON(w, http.StatusCreated, tokenBody{Token: string(token)})
}

func registerStatus(err error) int {
	if stderrors.Is(err, errors.ErrUserAlreadyExists) {
		return http.StatusConflict
	}
	return http.StatusBadRequest
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	token, err := s.authService.Login(body.Username, body.Password)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tokenBody{Token: string(token)})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	identity, err := s.identity(r)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, err)
		return
	}

	peer := r.URL.Query().Get("peer")
	if peer == "" {
		s.writeError(w, http.StatusBadRequest, errors.ErrInvalidRecipient)
		return
	}

	var cursor *string
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		cursor = &raw
	}

	messages, nextCursor, err := s.chatService.History(identity.UserID, peer, cursor)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	payload := struct {
		Messages []messagePayload `json:"messages"`
		Cursor   *string          `json:"cursor,omitempty"`
	}{Cursor: nextCursor}
	for _, m := range messages {
		payload.Messages = append(payload.Messages, toMessagePayload(m))
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleUnread(w http.ResponseWriter, r *http.Request) {
	identity, err := s.identity(r)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, err)
		return
	}

	count, err := s.chatService.Unread(identity.UserID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		Count int `json:"count"`
	}{Count: count})
}

// handleWS authenticates, upgrades, registers the session and blocks until
// the connection ends.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	identity, err := s.identity(r)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	sink := NewSink(s.bufferSize)
	s.gateway.OnConnect(identity, sink)
	s.log.Info("Session connected", "user_id", identity.UserID, "username", identity.Username)

	session := NewSession(conn, sink, identity, s.chatService, s.gateway, s.log)
	session.Run(r.Context(), presenceStateFrame(s.presence.Snapshot()))
	s.log.Info("Session disconnected", "user_id", identity.UserID)
}

// identity resolves the bearer credential from the Authorization header or,
// for browser WebSocket clients that cannot set headers, the token query
// parameter.
func (s *Server) identity(r *http.Request) (domain.Identity, error) {
	credential := r.Header.Get("Authorization")
	if credential == "" {
		credential = r.URL.Query().Get("token")
	}
	return s.authenticator.Authenticate(credential)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Debug("Response write failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorPayload{
		Code:    errors.MapToWireCode(err),
		Message: err.Error(),
	})
}
