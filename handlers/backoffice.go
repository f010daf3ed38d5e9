package handlers

import (
	"mime"
	"net/http"
	"strconv"

	"gcx-supplier-go/audit"
	"gcx-supplier-go/models"
	"gcx-supplier-go/review"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

func (h *Handlers) ListApplications(w http.ResponseWriter, r *http.Request) {
	f := review.ListFilter{
		Search: r.URL.Query().Get("search"),
		Page:   queryInt(r, "page"),
		Limit:  queryInt(r, "limit"),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status, err := models.ParseStatus(s)
		if err != nil {
			sendError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		f.Status = status
	}

	out, err := h.review.List(r.Context(), f)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, out)
}

// ApplicationDetail is the reviewer's view: the full aggregate plus the
// resolved document table.
func (h *Handlers) ApplicationDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		sendError(w, http.StatusBadRequest, "Invalid application id", nil)
		return
	}
	view, err := h.review.Review(r.Context(), id)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, view)
}

func (h *Handlers) OpenApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		sendError(w, http.StatusBadRequest, "Invalid application id", nil)
		return
	}
	app, err := h.review.OpenForReview(r.Context(), id, actor(r))
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, app)
}

func (h *Handlers) RequestDocuments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		sendError(w, http.StatusBadRequest, "Invalid application id", nil)
		return
	}
	var req models.RequestDocumentsRequest
	if !decode(w, r, &req) {
		return
	}

	out, err := h.review.RequestDocuments(r.Context(), id, review.DocumentRequest{
		RequirementCodes: req.RequirementCodes,
		Description:      req.Description,
		Message:          req.Message,
	}, actor(r))
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Document request sent",
		"request": out,
	})
}

func (h *Handlers) ApproveApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		sendError(w, http.StatusBadRequest, "Invalid application id", nil)
		return
	}
	var req models.ApproveRequest
	if !decode(w, r, &req) {
		return
	}

	out, err := h.review.Approve(r.Context(), id, review.ApproveInput{
		ActivateAccount: req.ActivateAccount,
		Notes:           req.Notes,
	}, actor(r))
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Application approved",
		"approval": out,
	})
}

func (h *Handlers) RejectApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		sendError(w, http.StatusBadRequest, "Invalid application id", nil)
		return
	}
	var req models.RejectRequest
	if !decode(w, r, &req) {
		return
	}

	decision, err := h.review.Reject(r.Context(), id, req.Reason, req.Notes, actor(r))
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Application rejected",
		"decision": decision,
	})
}

func (h *Handlers) OverdueApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.review.Overdue(r.Context())
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, apps)
}

func (h *Handlers) ApplicationTimeline(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		sendError(w, http.StatusBadRequest, "Invalid application id", nil)
		return
	}
	if _, err := h.review.Get(r.Context(), id); err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	entries, err := audit.Timeline(r.Context(), h.db, id)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, entries)
}

func (h *Handlers) GetAuditLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := audit.List(r.Context(), h.db, queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, entries)
}

func (h *Handlers) DashboardStats(w http.ResponseWriter, r *http.Request) {
	snap, err := h.dashboard.Snapshot(r.Context())
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, snap)
}

// UploadHistory lists every upload for one requirement on an application.
func (h *Handlers) UploadHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		sendError(w, http.StatusBadRequest, "Invalid application id", nil)
		return
	}
	uploads, err := h.documents.History(r.Context(), id, mux.Vars(r)["code"])
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, uploads)
}

func (h *Handlers) VerifyUpload(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "uploadID")
	if !ok {
		sendError(w, http.StatusBadRequest, "Invalid upload id", nil)
		return
	}
	var req models.VerifyUploadRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	up, err := h.documents.Verify(r.Context(), id, req.Note, actor(r))
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Document verified",
		"upload":  up,
	})
}

func (h *Handlers) RejectUpload(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "uploadID")
	if !ok {
		sendError(w, http.StatusBadRequest, "Invalid upload id", nil)
		return
	}
	var req models.RejectUploadRequest
	if !decode(w, r, &req) {
		return
	}
	up, err := h.documents.RejectUpload(r.Context(), id, req.Reason, actor(r))
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Document rejected",
		"upload":  up,
	})
}

// UploadContent streams a stored document back to staff.
func (h *Handlers) UploadContent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "uploadID")
	if !ok {
		sendError(w, http.StatusBadRequest, "Invalid upload id", nil)
		return
	}
	up, data, err := h.documents.Content(r.Context(), id)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", up.MimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": up.OriginalFilename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		h.logger.Debug("write document", zap.Uint("upload_id", id), zap.Error(err))
	}
}

// DownloadReport renders the snapshot report inline. POST additionally
// persists it.
func (h *Handlers) DownloadReport(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		sendError(w, http.StatusBadRequest, "Invalid application id", nil)
		return
	}
	persist := r.Method == http.MethodPost
	rep, err := h.reports.Generate(r.Context(), id, persist, actor(r))
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+rep.FileName+"\"")
	w.Header().Set("X-Document-Hash", rep.Hash)
	w.Header().Set("Content-Length", strconv.Itoa(len(rep.Bytes)))
	if persist {
		w.WriteHeader(http.StatusCreated)
	}
	if _, err := w.Write(rep.Bytes); err != nil {
		h.logger.Debug("write report", zap.Uint("application_id", id), zap.Error(err))
	}
}
