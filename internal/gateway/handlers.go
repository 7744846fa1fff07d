package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/praxislabs/praxis/internal/chat"
	"github.com/praxislabs/praxis/internal/scope"
	"github.com/praxislabs/praxis/internal/session"
	"github.com/praxislabs/praxis/pkg/provider/calendar"
	"github.com/praxislabs/praxis/pkg/types"
)

// chatRequest is the POST /api/chat body: a one-shot question with no
// standing session. History, when present, gives the model prior context the
// way a WebSocket reconnect would.
type chatRequest struct {
	StudentEmail string       `json:"student_email"`
	LMSKey       string       `json:"lmsKey,omitempty"`
	Message      string       `json:"message"`
	History      []types.Turn `json:"history,omitempty"`
}

// chatResponse is the POST /api/chat reply body.
type chatResponse struct {
	Text  string `json:"text"`
	Topic string `json:"topic,omitempty"`
}

// handleChat answers a single question without a WebSocket session. The
// session object lives only for this request and is never registered.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.StudentEmail == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "student_email and message are required")
		return
	}
	if s.cfg.LMSKey != "" && req.LMSKey != s.cfg.LMSKey {
		writeError(w, http.StatusUnauthorized, "authentication failed")
		return
	}

	ctx := r.Context()
	sc, err := s.cfg.Scopes.Resolve(ctx, req.StudentEmail)
	if err != nil {
		if errors.Is(err, scope.ErrNotEnrolled) {
			writeError(w, http.StatusForbidden, "no active enrollment for this account")
			return
		}
		slog.Error("scope resolution failed", "student", req.StudentEmail, "err", err)
		writeError(w, http.StatusBadGateway, "enrollment lookup failed")
		return
	}

	var opts []session.Option
	if s.cfg.HistoryLimit > 0 {
		opts = append(opts, session.WithHistoryLimit(s.cfg.HistoryLimit))
	}
	sess := session.New(req.StudentEmail, sc, opts...)
	if len(req.History) > 0 {
		sess.SeedHistory(req.History)
	}

	reply, err := s.cfg.Chat.Respond(ctx, chat.Request{Session: sess, Text: req.Message})
	if err != nil {
		slog.Error("one-shot turn failed", "student", req.StudentEmail, "err", err)
		writeError(w, http.StatusBadGateway, "the assistant could not answer")
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Text: reply.Text, Topic: reply.Topic})
}

// addStudentsRequest is the POST /add-students-to-event body.
type addStudentsRequest struct {
	EventID string   `json:"eventId"`
	Emails  []string `json:"emails"`
}

// removeEventRequest is the DELETE /remove-event body.
type removeEventRequest struct {
	EventID string `json:"eventId"`
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.cfg.Calendar.ListEvents(r.Context())
	if err != nil {
		slog.Error("calendar list failed", "err", err)
		writeError(w, http.StatusBadGateway, "calendar vendor unavailable")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleAddStudents(w http.ResponseWriter, r *http.Request) {
	var req addStudentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.EventID == "" || len(req.Emails) == 0 {
		writeError(w, http.StatusBadRequest, "eventId and emails are required")
		return
	}
	if err := s.cfg.Calendar.AddAttendees(r.Context(), req.EventID, req.Emails); err != nil {
		if errors.Is(err, calendar.ErrEventNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		slog.Error("calendar add attendees failed", "event_id", req.EventID, "err", err)
		writeError(w, http.StatusBadGateway, "calendar vendor unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveEvent(w http.ResponseWriter, r *http.Request) {
	eventID := r.URL.Query().Get("eventId")
	if eventID == "" {
		var req removeEventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			eventID = req.EventID
		}
	}
	if eventID == "" {
		writeError(w, http.StatusBadRequest, "eventId is required")
		return
	}
	if err := s.cfg.Calendar.DeleteEvent(r.Context(), eventID); err != nil {
		if errors.Is(err, calendar.ErrEventNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		slog.Error("calendar delete failed", "event_id", eventID, "err", err)
		writeError(w, http.StatusBadGateway, "calendar vendor unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("response encode failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
