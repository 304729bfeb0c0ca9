// Package httpapi is the thin REST/WebSocket transport binding over the
// orchestrator, persona store, and headline provider — a generalization
// of the teacher's single global-broadcast web server into one
// websocket connection per debate session.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/punkouter25/podebaterap/internal/domain"
	"github.com/punkouter25/podebaterap/internal/headlines"
	"github.com/punkouter25/podebaterap/internal/orchestrator"
	"github.com/punkouter25/podebaterap/internal/personastore"
)

// Server wires the orchestrator registry, persona store, and headline
// provider behind an http.Handler.
type Server struct {
	registry  *orchestrator.Registry
	store     personastore.Store
	headlines headlines.Provider
	logger    *zap.Logger

	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

// NewServer builds a ready-to-serve Server.
func NewServer(registry *orchestrator.Registry, store personastore.Store, headlineProvider headlines.Provider, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		registry:  registry,
		store:     store,
		headlines: headlineProvider,
		logger:    logger,
		// CheckOrigin allows all origins, mirroring the teacher's
		// upgrader — this transport carries no auth to protect anyway.
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/debates", s.handleStartDebate)
	s.mux.HandleFunc("GET /api/debates/{id}/events", s.handleEvents)
	s.mux.HandleFunc("POST /api/debates/{id}/ack", s.handleAck)
	s.mux.HandleFunc("POST /api/debates/{id}/cancel", s.handleCancel)
	s.mux.HandleFunc("GET /api/leaderboard", s.handleLeaderboard)
	s.mux.HandleFunc("GET /api/personas", s.handlePersonas)
	s.mux.HandleFunc("GET /api/headline", s.handleHeadline)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type startDebateRequest struct {
	Pro              string `json:"pro"`
	Con              string `json:"con"`
	TopicTitle       string `json:"topicTitle"`
	TopicDescription string `json:"topicDescription"`
}

type startDebateResponse struct {
	SessionID string `json:"sessionId"`
}

func (s *Server) handleStartDebate(w http.ResponseWriter, r *http.Request) {
	var req startDebateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	pro, err := s.store.Get(ctx, req.Pro)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown pro persona")
		return
	}
	con, err := s.store.Get(ctx, req.Con)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown con persona")
		return
	}
	topic := domain.Topic{Title: req.TopicTitle, Description: req.TopicDescription}

	id, _, err := s.registry.StartDebate(context.Background(), pro, con, topic)
	if err != nil {
		if domain.IsKind(err, domain.KindInvalidArgument) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("starting debate failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start debate")
		return
	}

	writeJSON(w, http.StatusCreated, startDebateResponse{SessionID: id})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	o, ok := s.registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err), zap.String("sessionId", id))
		return
	}
	defer conn.Close()

	for snap := range o.Events() {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(snap); err != nil {
			s.logger.Debug("websocket write failed, dropping subscriber", zap.Error(err), zap.String("sessionId", id))
			return
		}
	}
}

func (s *Server) handleAck(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.registry.AckAudio(id); err != nil {
		if domain.IsKind(err, domain.KindOutOfOrderAck) {
			s.logger.Warn("out-of-order ack ignored", zap.String("sessionId", id))
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.registry.Cancel(id); err != nil {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.Leaderboard(r.Context(), 10)
	if err != nil {
		s.logger.Error("leaderboard read failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handlePersonas(w http.ResponseWriter, r *http.Request) {
	personas, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("persona list read failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load personas")
		return
	}
	writeJSON(w, http.StatusOK, personas)
}

func (s *Server) handleHeadline(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"headline": s.headlines.TopHeadline(r.Context())})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
