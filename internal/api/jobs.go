package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Nit2312/NyaySarthi/internal/domain"
	"github.com/Nit2312/NyaySarthi/internal/jobs"
)

// multipartOverhead is the slack allowed on top of the file size limit for
// multipart framing and form fields.
const multipartOverhead = 1 << 20

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Access is already gated by the bearer token.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleUpload accepts a multipart "file" part and submits it as a job. The
// content is buffered so the worker can read it after the request ends.
func handleUpload(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := deps.Pipeline.MaxFileSize()
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
		defer r.Body.Close()

		if err := r.ParseMultipartForm(multipartOverhead); err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				writeError(w, fmt.Errorf("upload exceeds %d bytes: %w", limit, domain.ErrFileTooLarge))
				return
			}
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid multipart body: %v", err)
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "file part is required")
			return
		}
		defer file.Close()

		meta := domain.FileMeta{
			Filename:  header.Filename,
			SizeBytes: header.Size,
			MimeType:  header.Header.Get("Content-Type"),
			ClientRef: r.FormValue("client_ref"),
		}
		content, err := io.ReadAll(file)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading file part: %v", err)
			return
		}

		job, err := deps.Pipeline.Submit(meta, jobs.FromBytes(content))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, job)
	}
}

func handleListJobs(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Pipeline.List())
	}
}

func handleJobStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Pipeline.Stats())
	}
}

func handleSelectedJob(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := deps.Pipeline.Selected()
		if !ok {
			httpError(w, http.StatusNotFound, string(domain.KindNotFound), "no job selected")
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

func handleGetJob(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := deps.Pipeline.Get(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

func handleSelectJob(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := deps.Pipeline.Select(id); err != nil {
			writeError(w, err)
			return
		}
		job, err := deps.Pipeline.Get(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

func handleRemoveJob(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Pipeline.Remove(chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
	}
}

// handleJobEvents streams one JSON frame per job event until the client
// goes away.
func handleJobEvents(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			deps.Logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		defer ws.Close()

		events, cancel := deps.Pipeline.Subscribe(64)
		defer cancel()

		// The read loop only exists to notice the client closing.
		closed := make(chan struct{})
		ws.SetReadDeadline(time.Now().Add(wsPongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		go func() {
			defer close(closed)
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(wsPingPeriod)
		defer ping.Stop()

		for {
			select {
			case <-closed:
				return
			case <-r.Context().Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := ws.WriteJSON(ev); err != nil {
					deps.Logger.Debug("websocket write failed", zap.Error(err))
					return
				}
			case <-ping.C:
				ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}
