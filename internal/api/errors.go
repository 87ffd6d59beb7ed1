package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Nit2312/NyaySarthi/internal/domain"
	"github.com/Nit2312/NyaySarthi/internal/jobs"
)

var kindStatus = map[domain.Kind]int{
	domain.KindEmptyInput:      http.StatusBadRequest,
	domain.KindInvalidQuery:    http.StatusBadRequest,
	domain.KindInvalidSession:  http.StatusNotFound,
	domain.KindNotFound:        http.StatusNotFound,
	domain.KindUnauthenticated: http.StatusUnauthorized,
	domain.KindSessionBusy:     http.StatusConflict,
	domain.KindFileTooLarge:    http.StatusRequestEntityTooLarge,
	domain.KindUnsupportedType: http.StatusUnsupportedMediaType,
	domain.KindTransport:       http.StatusBadGateway,
	domain.KindUnknown:         http.StatusInternalServerError,
}

// writeError maps err onto its taxonomy kind and writes the error envelope.
func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, jobs.ErrJobFinished) {
		httpError(w, http.StatusConflict, "job_finished", "%v", err)
		return
	}
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		httpError(w, http.StatusRequestEntityTooLarge, string(domain.KindFileTooLarge), "%v", err)
		return
	}
	kind := domain.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	httpError(w, status, string(kind), "%v", err)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
