// uploads.go — обработчики POST /api/v1/uploads и POST /api/v1/validate.
// Файл передаётся в multipart-поле "file", при повторной загрузке
// указывается поле "file_id".
package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"slices"

	apierrors "github.com/BogdanPhenda/Nova/internal/api/errors"
	"github.com/BogdanPhenda/Nova/internal/api/middleware"
	"github.com/BogdanPhenda/Nova/internal/domain/model"
	"github.com/BogdanPhenda/Nova/internal/service"
	"github.com/BogdanPhenda/Nova/internal/upload"
)

// multipartMemory — порог, после которого части формы пишутся во временные файлы.
const multipartMemory = 8 << 20

type uploadResponse struct {
	FileID      string   `json:"file_id"`
	Format      string   `json:"format"`
	Status      string   `json:"status"`
	OK          bool     `json:"ok"`
	RowsWritten int      `json:"rows_written"`
	RowsDeleted int      `json:"rows_deleted"`
	Errors      []string `json:"errors"`
	Warnings    []string `json:"warnings"`
	FeedURL     string   `json:"feed_url,omitempty"`
}

type validateResponse struct {
	Format   string   `json:"format"`
	OK       bool     `json:"ok"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// readUpload разбирает multipart-форму и возвращает файл из поля "file".
// При ошибке ответ уже записан.
func (h *APIHandler) readUpload(w http.ResponseWriter, r *http.Request) (multipart.File, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apierrors.PayloadTooLarge(w, fmt.Sprintf("Размер файла превышает %d байт", h.maxUploadSize))
			return nil, "", false
		}
		apierrors.ValidationError(w, "Ожидается multipart/form-data с полем file")
		return nil, "", false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "Не передан файл в поле file")
		return nil, "", false
	}
	name := filepath.Base(header.Filename)
	if _, err := upload.DetectFormat(name); err != nil {
		_ = file.Close()
		apierrors.ValidationError(w, err.Error())
		return nil, "", false
	}
	return file, name, true
}

// UploadFile — POST /api/v1/uploads: полный цикл приёма.
// 201 — строки записаны, 422 — файл не прошёл проверку,
// 502 — ошибка табличного хранилища. Тело 422 и 502 содержит сообщения.
func (h *APIHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(r)
	if !ok {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}
	file, name, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	res, err := h.intake.Process(r.Context(), service.UploadRequest{
		OwnerID:  caller.OwnerID,
		FileID:   r.FormValue("file_id"),
		FileName: name,
		Body:     file,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, toUploadResponse(res))
	case res != nil && errors.Is(err, service.ErrValidationFailed):
		writeJSON(w, http.StatusUnprocessableEntity, toUploadResponse(res))
	case res != nil && errors.Is(err, service.ErrReconcileFailed):
		h.logger.Error("Ошибка сверки загрузки",
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			slog.String("file_id", res.FileID),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusBadGateway, toUploadResponse(res))
	default:
		h.handleServiceError(w, r, err, "Ошибка приёма загрузки")
	}
}

func toUploadResponse(res *service.UploadResult) uploadResponse {
	resp := uploadResponse{
		FileID:  res.FileID,
		Format:  res.Format,
		Status:  string(res.Status),
		FeedURL: res.FeedURL,
	}
	var errs, warns []string
	if v := res.Validation; v != nil {
		errs = append(errs, v.Errors...)
		warns = append(warns, v.Warnings...)
	}
	if rec := res.Reconcile; rec != nil {
		resp.RowsWritten = rec.RowsWritten
		resp.RowsDeleted = rec.RowsDeleted
		errs = append(errs, rec.Errors...)
		warns = append(warns, rec.Warnings...)
	}
	// Остальные сообщения (публикация фида) — предупреждения
	for _, m := range res.Messages {
		if !slices.Contains(errs, m) && !slices.Contains(warns, m) {
			warns = append(warns, m)
		}
	}
	resp.OK = len(errs) == 0 && res.Status == model.FileStatusProcessed
	resp.Errors = nonNil(errs)
	resp.Warnings = nonNil(warns)
	return resp
}

// ValidateFile — POST /api/v1/validate: только проверка, без записи.
func (h *APIHandler) ValidateFile(w http.ResponseWriter, r *http.Request) {
	file, name, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	vr, format, err := h.intake.Validate(name, file)
	if err != nil {
		h.handleServiceError(w, r, err, "Ошибка проверки файла")
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{
		Format:   format,
		OK:       vr.OK,
		Errors:   nonNil(vr.Errors),
		Warnings: nonNil(vr.Warnings),
	})
}
