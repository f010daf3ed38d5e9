package handlers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"gcx-supplier-go/audit"
	"gcx-supplier-go/config"
	"gcx-supplier-go/dashboard"
	"gcx-supplier-go/database"
	"gcx-supplier-go/documents"
	"gcx-supplier-go/metrics"
	"gcx-supplier-go/middleware"
	"gcx-supplier-go/report"
	"gcx-supplier-go/review"
	"gcx-supplier-go/storage"
	"gcx-supplier-go/utils"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrorResponse represents a standardized error response
// Status: HTTP status code
// Error: Error message
// Details: Additional details about the error
// Timestamp: When the error occurred
type ErrorResponse struct {
	Status    int         `json:"status"`
	Error     string      `json:"error"`
	Details   interface{} `json:"details,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// SendError sends a standardized error response
func sendError(w http.ResponseWriter, status int, err string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Status:    status,
		Error:     err,
		Details:   details,
		Timestamp: time.Now(),
	})
}

func sendJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// Deps are the services the HTTP layer adapts.
type Deps struct {
	Review    *review.Manager
	Documents *documents.Service
	Reports   *report.Service
	Verifier  *report.Verifier
	Dashboard *dashboard.Hub
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

type Handlers struct {
	db        *gorm.DB
	config    *config.Config
	review    *review.Manager
	documents *documents.Service
	reports   *report.Service
	verifier  *report.Verifier
	dashboard *dashboard.Hub
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewHandlers(db *gorm.DB, cfg *config.Config, deps Deps) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		db:        db,
		config:    cfg,
		review:    deps.Review,
		documents: deps.Documents,
		reports:   deps.Reports,
		verifier:  deps.Verifier,
		dashboard: deps.Dashboard,
		metrics:   deps.Metrics,
		logger:    logger.Named("http"),
	}
}

func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(r.Context()) != nil {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	sendJSON(w, code, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now(),
		"service":   "gcx-supplier",
		"version":   "1.0.0",
	})
}

// actor builds the audit actor for a request. Staff claims are attached
// when present; public requests are recorded without a user.
func actor(r *http.Request) audit.Actor {
	a := audit.Actor{IPAddress: clientIP(r), UserAgent: r.UserAgent()}
	if claims := middleware.GetUserFromContext(r); claims != nil {
		id := claims.UserID
		a.UserID = &id
		a.Email = claims.Email
	}
	return a
}

// clientIP is the peer address. Forwarding headers are client supplied
// and are not trusted for audit records.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func pathID(r *http.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)[name], 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// decode reads a JSON body into dst and validates it. It writes the error
// response itself and reports whether the handler should continue.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return false
	}
	if err := utils.ValidateStruct(dst); err != nil {
		sendError(w, http.StatusBadRequest, "Validation failed", utils.FormatValidationError(err))
		return false
	}
	return true
}

// sendServiceError maps domain errors onto HTTP statuses.
func (h *Handlers) sendServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		invalid    *review.InvalidTransitionError
		incomplete *review.IncompleteDocumentsError
		unknown    *review.UnknownRequirementsError
		provision  *review.AccountProvisioningError
		reportData *report.IncompleteApplicationDataError
	)
	switch {
	case errors.As(err, &invalid):
		sendError(w, http.StatusConflict, invalid.Error(), map[string]interface{}{"status": invalid.From})
	case errors.As(err, &incomplete):
		sendError(w, http.StatusUnprocessableEntity, incomplete.Error(), map[string]interface{}{"missing": incomplete.Missing})
	case errors.As(err, &unknown):
		sendError(w, http.StatusBadRequest, unknown.Error(), map[string]interface{}{"codes": unknown.Codes})
	case errors.As(err, &provision):
		h.logger.Error("account provisioning failed", zap.String("path", r.URL.Path), zap.Error(err))
		sendError(w, http.StatusBadGateway, provision.Error(), nil)
	case errors.As(err, &reportData):
		sendError(w, http.StatusUnprocessableEntity, reportData.Error(), map[string]interface{}{"fields": reportData.Fields})
	case errors.Is(err, review.ErrConcurrencyConflict):
		sendError(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, database.ErrApplicationNotFound):
		sendError(w, http.StatusNotFound, "Application not found", nil)
	case errors.Is(err, documents.ErrUploadNotFound), errors.Is(err, storage.ErrNotFound):
		sendError(w, http.StatusNotFound, "Document not found", nil)
	case errors.Is(err, review.ErrDuplicateEmail), errors.Is(err, documents.ErrNotCurrent):
		sendError(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, documents.ErrFileTooLarge):
		sendError(w, http.StatusRequestEntityTooLarge, err.Error(), nil)
	case errors.Is(err, review.ErrReasonRequired),
		errors.Is(err, review.ErrEmptyRequest),
		errors.Is(err, review.ErrUnknownRegion),
		errors.Is(err, review.ErrUnknownCommodity),
		errors.Is(err, review.ErrAccountNameMismatch),
		errors.Is(err, documents.ErrUnknownRequirement),
		errors.Is(err, documents.ErrEmptyFile),
		errors.Is(err, documents.ErrFileType):
		sendError(w, http.StatusBadRequest, err.Error(), nil)
	default:
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		sendError(w, http.StatusInternalServerError, "Internal server error", nil)
	}
}
