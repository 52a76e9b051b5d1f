// feeds.go — публикация фидов и обслуживание хранилища:
// POST /api/v1/feeds/me, POST /api/v1/files/{id}/feed,
// POST /api/v1/admin/feeds/all, POST /api/v1/admin/deduplicate.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/BogdanPhenda/Nova/internal/api/errors"
	"github.com/BogdanPhenda/Nova/internal/feed"
)

type feedResponse struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type deduplicateResponse struct {
	RowsDeleted int `json:"rows_deleted"`
}

// PublishMyFeed — фид всех объявлений вызывающего.
func (h *APIHandler) PublishMyFeed(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(r)
	if !ok {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	url, err := h.intake.PublishOwner(r.Context(), caller.OwnerID)
	if err != nil {
		h.handleServiceError(w, r, err, "Ошибка публикации фида владельца")
		return
	}
	writeJSON(w, http.StatusOK, feedResponse{Name: feed.OwnerFeedName(caller.OwnerID), URL: url})
}

// PublishFileFeed — фид объявлений одного файла.
func (h *APIHandler) PublishFileFeed(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(r)
	if !ok {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	fileID := chi.URLParam(r, "id")
	url, err := h.intake.PublishFile(r.Context(), caller, fileID)
	if err != nil {
		h.handleServiceError(w, r, err, "Ошибка публикации фида файла")
		return
	}
	writeJSON(w, http.StatusOK, feedResponse{Name: feed.FileFeedName(fileID), URL: url})
}

// PublishAllFeed — сводный фид по всем владельцам (администратор).
func (h *APIHandler) PublishAllFeed(w http.ResponseWriter, r *http.Request) {
	url, err := h.intake.PublishAll(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err, "Ошибка публикации сводного фида")
		return
	}
	writeJSON(w, http.StatusOK, feedResponse{Name: feed.AllFeedName, URL: url})
}

// Deduplicate — удаление повторов (owner_id, listing_id) в хранилище (администратор).
func (h *APIHandler) Deduplicate(w http.ResponseWriter, r *http.Request) {
	n, err := h.intake.Deduplicate(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err, "Ошибка удаления дубликатов")
		return
	}
	writeJSON(w, http.StatusOK, deduplicateResponse{RowsDeleted: n})
}
