package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Nit2312/NyaySarthi/internal/domain"
)

type searchRequest struct {
	Query    string `json:"query"`
	Court    string `json:"court"`
	YearFrom int    `json:"year_from"`
	YearTo   int    `json:"year_to"`
	Limit    int    `json:"limit"`
}

func handleSearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		filters := domain.SearchFilters{Court: req.Court, YearFrom: req.YearFrom, YearTo: req.YearTo}
		results, err := deps.Precedents.Search(r.Context(), req.Query, filters, req.Limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, results)
	}
}

func handleGetPrecedent(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Precedents.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// handleToggleFavorite fetches records the repository has not seen yet so a
// favorite can be set straight from a bookmarked id.
func handleToggleFavorite(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !deps.Precedents.Known(id) {
			if _, err := deps.Precedents.Get(r.Context(), id); err != nil {
				writeError(w, err)
				return
			}
		}
		p, err := deps.Precedents.ToggleFavorite(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleFavorites(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Precedents.Favorites())
	}
}

func handleCourts(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courts, err := deps.Precedents.Courts(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		if courts == nil {
			courts = []domain.Court{}
		}
		writeJSON(w, http.StatusOK, courts)
	}
}

func handleRecent(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cases, err := deps.Precedents.Recent(r.Context(), parseIntParam(r, "limit", 0, 50))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cases)
	}
}
