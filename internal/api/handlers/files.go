// files.go — обработчики реестра файлов:
// GET /api/v1/files, GET /api/v1/files/{id}, DELETE /api/v1/files/{id}.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/BogdanPhenda/Nova/internal/api/errors"
)

type fileListResponse struct {
	Items []fileResponse `json:"items"`
	Total int            `json:"total"`
}

type deleteResponse struct {
	FileID      string   `json:"file_id"`
	RowsDeleted int      `json:"rows_deleted"`
	Warnings    []string `json:"warnings"`
	FeedURL     string   `json:"feed_url,omitempty"`
}

// ListFiles — файлы вызывающего, новые первыми. Фильтр ?object_type=.
func (h *APIHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(r)
	if !ok {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	var objectType *string
	if v := r.URL.Query().Get("object_type"); v != "" {
		objectType = &v
	}

	files, err := h.files.List(r.Context(), caller.OwnerID, objectType)
	if err != nil {
		h.handleServiceError(w, r, err, "Ошибка получения списка файлов")
		return
	}

	resp := fileListResponse{Items: make([]fileResponse, 0, len(files)), Total: len(files)}
	for _, f := range files {
		resp.Items = append(resp.Items, toFileResponse(f))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetFile — одна запись реестра (владелец или администратор).
func (h *APIHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(r)
	if !ok {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	f, err := h.files.Get(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err, "Ошибка получения файла")
		return
	}
	writeJSON(w, http.StatusOK, toFileResponse(f))
}

// DeleteFile — удаление строк файла из хранилища, записи реестра
// и перепубликация фида владельца.
func (h *APIHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(r)
	if !ok {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	fileID := chi.URLParam(r, "id")
	res, err := h.intake.DeleteFile(r.Context(), caller, fileID)
	if err != nil {
		h.handleServiceError(w, r, err, "Ошибка удаления файла")
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{
		FileID:      fileID,
		RowsDeleted: res.RowsDeleted,
		Warnings:    nonNil(res.Warnings),
		FeedURL:     res.FeedURL,
	})
}
