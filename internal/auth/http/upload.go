package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
)

// multipartOverhead covers form boundaries and the folder field on top of the
// file itself.
const multipartOverhead = 1 << 20

type UploadHandler struct {
	UploadService *service.UploadService
}

// HandleUpload stores a multipart file.
//
//	@Summary		Upload a file
//	@Description	Multipart upload of the "file" field into an optional folder (default "uploads").
//	@Tags			Upload
//	@Security		BearerAuth
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"File to upload"
//	@Param			folder	formData	string	false	"Destination folder"
//	@Success		201		{object}	authsdk.UploadResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"Missing, oversized or disallowed file"
//	@Router			/upload [post].
func (h *UploadHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	limit := h.UploadService.SizeLimit()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	if err := r.ParseMultipartForm(limit + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.WriteError(w, r, http.StatusBadRequest, authsdk.ErrorCodeBadRequest,
				fmt.Sprintf("File size exceeds the limit of %dMB", limit/(1024*1024)))
			return
		}
		httpx.WriteError(w, r, http.StatusBadRequest, authsdk.ErrorCodeBadRequest, "No file provided")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var f service.File
	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		// Empty File is rejected by the service.
	case err != nil:
		httpx.WriteError(w, r, http.StatusBadRequest, authsdk.ErrorCodeBadRequest, "No file provided")
		return
	default:
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, limit+1))
		if err != nil {
			httpx.WriteInternalError(w, r, err)
			return
		}
		f = service.File{Name: header.Filename, ContentType: header.Header.Get("Content-Type"), Data: data}
		if f.ContentType == "" {
			f.ContentType = http.DetectContentType(data)
		}
	}

	stored, err := h.UploadService.Upload(r.Context(), f, r.FormValue("folder"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, authsdk.UploadResponse{
		Key:      stored.Key,
		URL:      stored.URL,
		Size:     stored.Size,
		MimeType: stored.ContentType,
	})
}

// HandlePresignUpload returns a URL the client can PUT the file to.
//
//	@Summary		Presigned upload URL
//	@Tags			Upload
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.PresignedUploadRequest	true	"File description"
//	@Success		200		{object}	authsdk.PresignedURLResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"Disallowed type or expiry"
//	@Router			/upload/presigned/upload [post].
func (h *UploadHandler) HandlePresignUpload(w http.ResponseWriter, r *http.Request) {
	var req authsdk.PresignedUploadRequest
	if !decodeValid(w, r, &req) {
		return
	}

	p, err := h.UploadService.PresignUpload(r.Context(), req.Filename, req.ContentType, req.Folder, req.ExpiresIn)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toPresignedResponse(p))
}

// HandlePresignDownload returns a URL the client can GET the object from.
//
//	@Summary		Presigned download URL
//	@Tags			Upload
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.PresignedDownloadRequest	true	"Object key"
//	@Success		200		{object}	authsdk.PresignedURLResponse
//	@Failure		400		{object}	authsdk.ErrorResponse
//	@Router			/upload/presigned/download [post].
func (h *UploadHandler) HandlePresignDownload(w http.ResponseWriter, r *http.Request) {
	var req authsdk.PresignedDownloadRequest
	if !decodeValid(w, r, &req) {
		return
	}

	p, err := h.UploadService.PresignDownload(r.Context(), req.Key, req.ExpiresIn)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toPresignedResponse(p))
}

// HandleDelete removes an object. The key may contain slashes.
//
//	@Summary		Delete a file
//	@Tags			Upload
//	@Security		BearerAuth
//	@Param			key	path	string	true	"Object key"
//	@Success		204
//	@Failure		404	{object}	authsdk.ErrorResponse	"NOT_FOUND"
//	@Router			/upload/{key} [delete].
func (h *UploadHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.UploadService.Delete(r.Context(), r.PathValue("key")); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toPresignedResponse(p service.PresignedURL) authsdk.PresignedURLResponse {
	return authsdk.PresignedURLResponse{
		URL:       p.URL,
		Key:       p.Key,
		ExpiresIn: p.ExpiresIn,
		ExpiresAt: p.ExpiresAt,
	}
}
