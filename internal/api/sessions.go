package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Nit2312/NyaySarthi/internal/chat"
	"github.com/Nit2312/NyaySarthi/internal/domain"
	"github.com/Nit2312/NyaySarthi/internal/storage"
)

type openSessionRequest struct {
	// ID resumes a persisted log.
	ID          string            `json:"id"`
	PrecedentID string            `json:"precedent_id"`
	Precedent   *domain.Precedent `json:"precedent"`
}

type openSessionResponse struct {
	Session   chat.Session      `json:"session"`
	Precedent *domain.Precedent `json:"precedent,omitempty"`
}

type sendRequest struct {
	Content string `json:"content"`
	Wait    bool   `json:"wait"`
}

type sendResponse struct {
	Message domain.Message  `json:"message"`
	Reply   *domain.Message `json:"reply,omitempty"`
}

// decodeOptional decodes a JSON body into v, treating an empty body as {}.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func handleOpenSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req openSessionRequest
		if err := decodeOptional(w, r, &req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		if req.PrecedentID != "" || req.Precedent != nil {
			scoped, err := deps.Navigator.Open(r.Context(), req.PrecedentID, req.Precedent)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, openSessionResponse{Session: scoped.Session, Precedent: &scoped.Precedent})
			return
		}

		s, err := deps.Chat.Open(chat.OpenOptions{ID: req.ID})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, openSessionResponse{Session: s})
	}
}

func handleListSessions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Chat.Sessions())
	}
}

func handleSessionHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.History == nil {
			writeJSON(w, http.StatusOK, []storage.SessionRecord{})
			return
		}
		records, err := deps.History.RecentSessions(parseIntParam(r, "limit", 20, 100))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list sessions: %v", err)
			return
		}
		if records == nil {
			records = []storage.SessionRecord{}
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func handleGetSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := deps.Chat.Session(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func handleCloseSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Chat.Close(chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
	}
}

func handleListMessages(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msgs, err := deps.Chat.Messages(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

// handleSendMessage answers 202 with the recorded user message, or with
// wait=true blocks until the reply lands and answers 200 with both.
func handleSendMessage(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sendRequest
		if err := decodeOptional(w, r, &req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		id := chi.URLParam(r, "id")
		ex, err := deps.Chat.Send(id, req.Content)
		if err != nil {
			writeError(w, err)
			return
		}
		if !req.Wait {
			writeJSON(w, http.StatusAccepted, sendResponse{Message: ex.Request})
			return
		}

		reply, err := ex.Wait(r.Context())
		if err != nil {
			deps.Logger.Debug("exchange failed", zap.String("session_id", id), zap.Error(err))
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sendResponse{Message: ex.Request, Reply: &reply})
	}
}
