package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"telegram-link-gateway/internal/domain"
	"telegram-link-gateway/internal/domain/model"
	"telegram-link-gateway/internal/usecase"
)

// identityView is the admin API shape of an identity. The live token is never exposed.
type identityView struct {
	ID            int64      `json:"id"`
	DisplayName   string     `json:"display_name"`
	Handle        string     `json:"handle,omitempty"`
	Role          string     `json:"role"`
	VerifiedUntil time.Time  `json:"verified_until"`
	PremiumUntil  *time.Time `json:"premium_until,omitempty"`
	HasToken      bool       `json:"has_token"`
	CreatedAt     time.Time  `json:"created_at"`
	LastSeenAt    time.Time  `json:"last_seen_at"`
}

func toView(i *model.Identity) identityView {
	return identityView{
		ID:            i.ID,
		DisplayName:   i.DisplayName,
		Handle:        i.Handle,
		Role:          string(i.Role),
		VerifiedUntil: i.VerifiedUntil,
		PremiumUntil:  i.PremiumUntil,
		HasToken:      i.ActiveToken != "",
		CreatedAt:     i.CreatedAt,
		LastSeenAt:    i.LastSeenAt,
	}
}

func statsHandler(statsUC usecase.StatsUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := statsUC.Usage(r.Context())
		if err != nil {
			http.Error(w, "Failed to get stats", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Identities int   `json:"identities"`
			UsedBytes  int64 `json:"used_bytes"`
			FreeBytes  int64 `json:"free_bytes"`
			QuotaBytes int64 `json:"quota_bytes"`
		}{u.Identities, u.UsedBytes, u.FreeBytes, u.QuotaBytes})
	}
}

// identitiesListHandler serves one zero-based page (?page=N) of identities.
func identitiesListHandler(userUC usecase.UserUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := 0
		if p := r.URL.Query().Get("page"); p != "" {
			n, err := strconv.Atoi(p)
			if err != nil || n < 0 {
				http.Error(w, "Invalid page", http.StatusBadRequest)
				return
			}
			page = n
		}

		items, err := userUC.ListPage(r.Context(), page)
		if err != nil {
			http.Error(w, "Failed to list identities", http.StatusInternalServerError)
			return
		}
		total, err := userUC.Count(r.Context())
		if err != nil {
			http.Error(w, "Failed to count identities", http.StatusInternalServerError)
			return
		}

		views := make([]identityView, 0, len(items))
		for _, i := range items {
			views = append(views, toView(i))
		}
		writeJSON(w, http.StatusOK, struct {
			Page       int            `json:"page"`
			PageSize   int            `json:"page_size"`
			Total      int            `json:"total"`
			Identities []identityView `json:"identities"`
		}{page, usecase.ListPageSize, total, views})
	}
}

func identityGetHandler(userUC usecase.UserUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "Invalid id", http.StatusBadRequest)
			return
		}
		i, err := userUC.GetByTelegramID(r.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				http.Error(w, "Identity not found", http.StatusNotFound)
				return
			}
			http.Error(w, "Failed to get identity", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toView(i))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
