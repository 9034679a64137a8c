package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/haasonsaas/agentexec/internal/apperrors"
	"github.com/haasonsaas/agentexec/internal/chat"
)

// chatRequest is the POST /sessions/{id}/chat body: a user message, any
// attachment paths to make visible to the sandbox, and an optional event
// id to resume streaming after instead of replaying full history.
type chatRequest struct {
	Message            string   `json:"message"`
	AttachmentPaths    []string `json:"attachment_paths,omitempty"`
	ResumeAfterEventID string   `json:"resume_after_event_id,omitempty"`
}

type chatHandler struct {
	orchestrator *chat.Orchestrator
	logger       *slog.Logger
}

func newChatHandler(o *chat.Orchestrator, logger *slog.Logger) http.Handler {
	return &chatHandler{orchestrator: o, logger: logger}
}

// ServeHTTP handles POST /sessions/{id}/chat, streaming each produced
// event as one Server-Sent Event. The session id is the path segment
// between "/sessions/" and "/chat".
func (h *chatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(r.URL.Path)
	if !ok || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req chatRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	events, err := h.orchestrator.Chat(r.Context(), chat.Request{
		SessionID:          sessionID,
		Message:            req.Message,
		AttachmentPaths:    req.AttachmentPaths,
		ResumeAfterEventID: req.ResumeAfterEventID,
	})
	if err != nil {
		h.logger.Error("chat", "session_id", sessionID, "error", err)
		http.Error(w, err.Error(), statusForKind(apperrors.KindOf(err)))
		return
	}

	flusher, canFlush := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	for ev := range events {
		w.Write([]byte("id: " + ev.ID + "\nevent: " + string(ev.Type) + "\ndata: "))
		_ = enc.Encode(ev)
		w.Write([]byte("\n"))
		if canFlush {
			flusher.Flush()
		}
	}
}

// statusForKind maps an apperrors.Kind to the HTTP status the handler
// writes, so it never has to inspect an error message to decide how to
// respond.
func statusForKind(k apperrors.Kind) int {
	switch k {
	case apperrors.KindBadRequest:
		return http.StatusBadRequest
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindValidation:
		return http.StatusUnprocessableEntity
	case apperrors.KindTooManyRequest:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func parseSessionID(path string) (string, bool) {
	const prefix, suffix = "/sessions/", "/chat"
	if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, suffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(path, prefix), suffix)
	if id == "" {
		return "", false
	}
	return id, true
}
