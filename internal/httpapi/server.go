package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kc-vaultik/shapex-studio/internal/agent"
	"github.com/kc-vaultik/shapex-studio/internal/blueprint"
	"github.com/kc-vaultik/shapex-studio/internal/idea"
	"github.com/kc-vaultik/shapex-studio/internal/orchestrator"
	"github.com/kc-vaultik/shapex-studio/internal/protocol"
	"github.com/kc-vaultik/shapex-studio/internal/session"
	"github.com/kc-vaultik/shapex-studio/internal/stream"
)

const (
	maxWSCommandBytes int64 = 1 << 20
	defaultListLimit        = 50
	maxListLimit            = 500
)

type server struct {
	logger  *log.Logger
	studio  *orchestrator.Service
	gateway *stream.Gateway
}

func NewServer(logger *log.Logger, addr string, studio *orchestrator.Service, gateway *stream.Gateway) *http.Server {
	h := &server{
		logger:  logger,
		studio:  studio,
		gateway: gateway,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/studio/health", h.handleHealth)
	mux.HandleFunc("/api/studio/analytics", h.handleAnalytics)
	mux.HandleFunc("/api/studio/sessions/create", h.handleCreateSession)
	mux.HandleFunc("/api/studio/sessions", h.handleListSessions)
	mux.HandleFunc("/api/studio/sessions/", h.handleGetSession)
	mux.HandleFunc("/api/studio/blueprints/", h.handleGetBlueprint)
	mux.HandleFunc("/api/studio/ws/", h.handleSessionWS)
	mux.HandleFunc("/api/ideas/", h.handleGetIdea)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	roles := make([]string, 0, len(agent.Roles()))
	for _, role := range agent.Roles() {
		roles = append(roles, string(role))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"agents": roles,
	})
}

func (s *server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ideaID, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("idea_id")), 10, 64)
	if err != nil || ideaID <= 0 {
		http.Error(w, "idea_id must be a positive integer", http.StatusBadRequest)
		return
	}
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))

	rec, err := s.studio.CreateSession(r.Context(), ideaID, userID)
	if err != nil {
		if errors.Is(err, idea.ErrNotFound) {
			http.Error(w, fmt.Sprintf("idea %d not found", ideaID), http.StatusNotFound)
			return
		}
		s.logger.Printf("create session failed idea_id=%d err=%v", ideaID, err)
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":    rec.SessionID,
		"idea_id":       rec.IdeaID,
		"websocket_url": "/api/studio/ws/" + rec.SessionID,
	})
}

func (s *server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := session.Status(strings.TrimSpace(r.URL.Query().Get("status")))
	if status != "" && !session.ValidStatus(status) {
		http.Error(w, fmt.Sprintf("unsupported status %q", status), http.StatusBadRequest)
		return
	}

	limit := defaultListLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxListLimit {
			http.Error(w, fmt.Sprintf("limit must be in [1,%d]", maxListLimit), http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	records, err := s.studio.ListSessions(r.Context(), status, limit)
	if err != nil {
		s.logger.Printf("list sessions failed err=%v", err)
		http.Error(w, "failed to list sessions", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": records})
}

func (s *server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := strings.TrimPrefix(r.URL.Path, "/api/studio/sessions/")
	if sessionID == "" || strings.Contains(sessionID, "/") {
		http.Error(w, "session id is required", http.StatusBadRequest)
		return
	}

	rec, err := s.studio.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		s.logger.Printf("get session failed session_id=%s err=%v", sessionID, err)
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *server) handleGetBlueprint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	blueprintID := strings.TrimPrefix(r.URL.Path, "/api/studio/blueprints/")
	if blueprintID == "" || strings.Contains(blueprintID, "/") {
		http.Error(w, "blueprint id is required", http.StatusBadRequest)
		return
	}

	rec, err := s.studio.GetBlueprint(r.Context(), blueprintID)
	if err != nil {
		if errors.Is(err, blueprint.ErrNotFound) {
			http.Error(w, "blueprint not found", http.StatusNotFound)
			return
		}
		s.logger.Printf("get blueprint failed blueprint_id=%s err=%v", blueprintID, err)
		http.Error(w, "failed to load blueprint", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *server) handleGetIdea(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/api/ideas/")
	ideaID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ideaID <= 0 {
		http.Error(w, "idea id must be a positive integer", http.StatusBadRequest)
		return
	}

	rec, err := s.studio.GetIdea(r.Context(), ideaID)
	if err != nil {
		if errors.Is(err, idea.ErrNotFound) {
			http.Error(w, "idea not found", http.StatusNotFound)
			return
		}
		s.logger.Printf("get idea failed idea_id=%d err=%v", ideaID, err)
		http.Error(w, "failed to load idea", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	records, err := s.studio.ListSessions(r.Context(), "", 0)
	if err != nil {
		s.logger.Printf("analytics list failed err=%v", err)
		http.Error(w, "failed to compute analytics", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, computeAnalytics(records))
}

// handleSessionWS serves the per-session streaming channel. The client
// sends exactly one start_workflow command; everything after that is
// server-to-client. The workflow itself runs detached from this request:
// dropping the socket abandons the view, never the run.
func (s *server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := strings.TrimPrefix(r.URL.Path, "/api/studio/ws/")
	if sessionID == "" || strings.Contains(sessionID, "/") {
		http.Error(w, "session id is required", http.StatusBadRequest)
		return
	}
	if _, err := s.studio.GetSession(r.Context(), sessionID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		s.logger.Printf("ws session lookup failed session_id=%s err=%v", sessionID, err)
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		return
	}

	upgrader := websocket.Upgrader{CheckOrigin: isWebSocketOriginAllowed}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("ws upgrade failed session_id=%s err=%v", sessionID, err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxWSCommandBytes)

	channel, err := s.gateway.Attach(sessionID, conn)
	if err != nil {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "session stream already attached"), deadline)
		return
	}
	defer s.gateway.Detach(sessionID, channel)

	var cmd protocol.Command
	if err := conn.ReadJSON(&cmd); err != nil {
		s.logger.Printf("ws command read failed session_id=%s err=%v", sessionID, err)
		return
	}
	if cmd.Type != protocol.CommandStartWorkflow {
		_ = conn.WriteJSON(protocol.Event{
			Type:      protocol.EventTypeSessionError,
			SessionID: sessionID,
			Error:     fmt.Sprintf("unsupported command %q", cmd.Type),
		})
		return
	}

	go func() {
		// Detached from the request so client disconnects cannot
		// abort an accepted run.
		if err := s.studio.StartWorkflow(context.Background(), sessionID, cmd.IdeaID); err != nil {
			s.logger.Printf("workflow ended with error session_id=%s err=%v", sessionID, err)
		}
	}()

	// Drain the socket until the client drops or a terminal event closes
	// the channel. Further inbound messages are ignored.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func computeAnalytics(records []session.SessionRecord) map[string]any {
	byStatus := map[string]int{}
	var completed, terminal int
	var totalTokens int64
	var totalCost, totalDuration float64
	for _, rec := range records {
		byStatus[string(rec.Status)]++
		if rec.Status.Terminal() {
			terminal++
		}
		if rec.Status == session.StatusCompleted {
			completed++
			totalTokens += rec.TotalTokensUsed
			totalCost += rec.TotalCostUSD
			totalDuration += rec.DurationSeconds
		}
	}

	analytics := map[string]any{
		"total_sessions":     len(records),
		"sessions_by_status": byStatus,
		"success_rate":       0.0,
		"avg_tokens_used":    0.0,
		"avg_cost_usd":       0.0,
		"avg_duration_s":     0.0,
	}
	if terminal > 0 {
		analytics["success_rate"] = float64(completed) / float64(terminal)
	}
	if completed > 0 {
		analytics["avg_tokens_used"] = float64(totalTokens) / float64(completed)
		analytics["avg_cost_usd"] = totalCost / float64(completed)
		analytics["avg_duration_s"] = totalDuration / float64(completed)
	}
	return analytics
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func isWebSocketOriginAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	parsedOrigin, err := url.Parse(origin)
	if err != nil || strings.TrimSpace(parsedOrigin.Host) == "" {
		return false
	}
	return strings.EqualFold(parsedOrigin.Host, r.Host)
}
