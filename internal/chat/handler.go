package chat

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/shinestar-cleaners/internal/chatbot"
	"github.com/wolfman30/shinestar-cleaners/pkg/logging"
	"golang.org/x/net/websocket"
)

const maxBodyBytes = 16 << 10

// Handler serves the chat widget over HTTP and WebSocket.
type Handler struct {
	registry *Registry
	logger   *logging.Logger
}

// InboundMessage is what the widget sends over the socket.
type InboundMessage struct {
	Type string `json:"type"` // "message", "ping", "close"
	Text string `json:"text"`
}

// OutboundMessage is what the widget receives over the socket.
type OutboundMessage struct {
	Type      string            `json:"type"` // "session", "history", "message", "pong", "error"
	SessionID string            `json:"session_id,omitempty"`
	Text      string            `json:"text,omitempty"`
	Message   *chatbot.Message  `json:"message,omitempty"`
	Messages  []chatbot.Message `json:"messages,omitempty"`
	Options   []string          `json:"options,omitempty"`
}

// StateResponse is the JSON shape of a session snapshot.
type StateResponse struct {
	SessionID string            `json:"session_id"`
	Messages  []chatbot.Message `json:"messages"`
	Options   []string          `json:"options"`
	Step      int               `json:"step"`
	Open      bool              `json:"open"`
	Ended     bool              `json:"ended"`
	Outcome   chatbot.Outcome   `json:"outcome,omitempty"`
}

// NewHandler creates a chat handler backed by registry.
func NewHandler(registry *Registry, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{registry: registry, logger: logger}
}

// Routes mounts the chat endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/sessions", h.OpenSession)
	r.Get("/sessions/{sessionID}", h.GetSession)
	r.Post("/sessions/{sessionID}/messages", h.PostMessage)
	r.Delete("/sessions/{sessionID}", h.CloseSession)
	r.Get("/ws", h.HandleWebSocket)
}

// OpenSession opens the panel for an existing or new session.
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s := h.registry.Open(req.SessionID)
	h.logger.Debug("chat: session opened", "session_id", s.ID)
	writeJSON(w, http.StatusOK, snapshot(s, ""))
}

// GetSession returns the current state of a session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.registry.Get(chi.URLParam(r, "sessionID"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, snapshot(s, ""))
}

// PostMessage submits a typed or clicked reply.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.registry.Get(chi.URLParam(r, "sessionID"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	outcome, err := s.Engine.Submit(r.Context(), req.Text)
	if errors.Is(err, chatbot.ErrNotOpen) {
		writeError(w, http.StatusConflict, "chat panel is closed")
		return
	}
	if err != nil {
		h.logger.Error("chat: submit failed", "session_id", s.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to process message")
		return
	}
	writeJSON(w, http.StatusOK, snapshot(s, outcome))
}

// CloseSession closes the panel and resets the conversation.
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if !h.registry.Close(chi.URLParam(r, "sessionID")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleWebSocket upgrades to WebSocket and streams the conversation.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	s := h.registry.Open(r.URL.Query().Get("session"))

	// Subscribe before reading history so nothing falls in between; the
	// widget drops duplicates by message id.
	updates, cancel := s.Subscribe()
	defer cancel()

	_ = websocket.JSON.Send(conn, OutboundMessage{Type: "session", SessionID: s.ID})
	_ = websocket.JSON.Send(conn, OutboundMessage{
		Type:     "history",
		Messages: s.Engine.Transcript(),
		Options:  s.Engine.Options(),
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case msg, ok := <-updates:
				if !ok {
					return
				}
				out := OutboundMessage{Type: "message", Message: &msg}
				if msg.IsBot() {
					out.Options = s.Engine.Options()
				}
				if err := websocket.JSON.Send(conn, out); err != nil {
					return
				}
			}
		}
	}()

	h.logger.Info("chat: connection opened", "session_id", s.ID)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("chat: connection closed", "session_id", s.ID, "error", err)
			return
		}
		// Any inbound frame counts as activity for the idle sweep.
		s.touch(h.registry.now())

		switch msg.Type {
		case "ping":
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "pong"})
		case "close":
			s.Engine.Reset()
		case "message":
			if strings.TrimSpace(msg.Text) == "" {
				continue
			}
			if _, err := s.Engine.Submit(r.Context(), msg.Text); err != nil {
				if errors.Is(err, chatbot.ErrNotOpen) {
					s.Engine.Open()
					_, err = s.Engine.Submit(r.Context(), msg.Text)
				}
				if err != nil {
					_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: "Sorry, something went wrong. Please try again."})
				}
			}
		}
	}
}

func snapshot(s *Session, outcome chatbot.Outcome) StateResponse {
	st := s.Engine.State()
	messages := st.Transcript
	if messages == nil {
		messages = []chatbot.Message{}
	}
	options := st.Options
	if options == nil {
		options = []string{}
	}
	return StateResponse{
		SessionID: s.ID,
		Messages:  messages,
		Options:   options,
		Step:      st.CurrentStep,
		Open:      st.Opened,
		Ended:     st.Terminal,
		Outcome:   outcome,
	}
}

// decodeOptional decodes a JSON body when one is present.
func decodeOptional(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
