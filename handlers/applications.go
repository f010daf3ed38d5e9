package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"gcx-supplier-go/documents"
	"gcx-supplier-go/models"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// maxUploadBody caps a multipart completion request. Per-requirement size
// limits are enforced by the documents service.
const maxUploadBody = 32 << 20

// SubmitApplication is the public registration form.
func (h *Handlers) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitApplicationRequest
	if !decode(w, r, &req) {
		return
	}

	app, err := h.review.Submit(r.Context(), req, actor(r))
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusCreated, map[string]interface{}{
		"message":       "Application submitted successfully",
		"tracking_code": app.TrackingCode,
		"status":        app.Status,
	})
}

func (h *Handlers) ApplicationStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.review.PublicStatus(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, status)
}

// CompletionStatus shows the applicant what is still outstanding behind a
// completion link.
func (h *Handlers) CompletionStatus(w http.ResponseWriter, r *http.Request) {
	app, err := h.review.FindByCompletionToken(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	status, err := h.review.PublicStatus(r.Context(), app.TrackingCode)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"application":         status,
		"completion_deadline": app.CompletionDeadline,
	})
}

// CompleteUpload accepts one document through a completion link. The form
// carries requirement_code and file.
func (h *Handlers) CompleteUpload(w http.ResponseWriter, r *http.Request) {
	app, err := h.review.FindByCompletionToken(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxUploadBody); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid upload", err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	code := strings.TrimSpace(r.FormValue("requirement_code"))
	if code == "" {
		sendError(w, http.StatusBadRequest, "Validation failed", map[string]string{"requirement_code": "requirement_code is required"})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		sendError(w, http.StatusBadRequest, "Validation failed", map[string]string{"file": "file is required"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		sendError(w, http.StatusBadRequest, "Failed to read upload", err.Error())
		return
	}

	up, err := h.documents.Upload(r.Context(), documents.UploadInput{
		ApplicationID:   app.ID,
		RequirementCode: code,
		Filename:        header.Filename,
		Data:            data,
	}, actor(r))
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Document uploaded successfully",
		"upload":  up,
	})
}

// VerifyDocument checks the hash printed on a snapshot report. Unknown ids
// and forged hashes get the same answer.
func (h *Handlers) VerifyDocument(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id, _ := strconv.ParseUint(q.Get("id"), 10, 64)
	hash := strings.TrimSpace(q.Get("hash"))
	if id == 0 || hash == "" {
		sendError(w, http.StatusBadRequest, "id and hash are required", nil)
		return
	}

	ok, err := h.verifier.Verify(r.Context(), uint(id), hash)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	if !ok {
		h.logger.Info("document verification failed", zap.Uint64("application_id", id), zap.String("client_ip", clientIP(r)))
		sendJSON(w, http.StatusOK, map[string]interface{}{
			"valid":   false,
			"message": "This document could not be verified",
		})
		return
	}

	app, err := h.review.Get(r.Context(), uint(id))
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"valid":         true,
		"message":       "This document is authentic",
		"tracking_code": app.TrackingCode,
		"business_name": app.BusinessName,
		"status":        app.Status,
		"status_label":  app.Status.Label(),
		"submitted_at":  app.SubmittedAt,
	})
}
