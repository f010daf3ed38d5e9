package handlers

import (
	"net/http"

	"gcx-supplier-go/middleware"

	"github.com/gorilla/mux"
)

// Router builds the HTTP surface. limiter throttles the unauthenticated
// endpoints; metricsHandler may be nil.
func (h *Handlers) Router(limiter *middleware.RateLimiter, metricsHandler http.Handler) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.Recover(h.logger))
	r.Use(middleware.RequestLogger(h.logger, h.metrics))
	r.Use(middleware.CORS)

	r.HandleFunc("/api/health", h.HealthCheck).Methods("GET")
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler).Methods("GET")
	}

	// Public routes
	public := r.NewRoute().Subrouter()
	public.Use(limiter.Middleware)
	public.HandleFunc("/verify-document", h.VerifyDocument).Methods("GET")
	public.HandleFunc("/api/login", h.Login).Methods("POST")
	public.HandleFunc("/api/applications", h.SubmitApplication).Methods("POST")
	public.HandleFunc("/api/applications/status/{code}", h.ApplicationStatus).Methods("GET")
	public.HandleFunc("/api/applications/complete/{token}", h.CompletionStatus).Methods("GET")
	public.HandleFunc("/api/applications/complete/{token}/documents", h.CompleteUpload).Methods("POST")

	// Protected routes
	protected := r.PathPrefix("/api").Subrouter()
	protected.Use(middleware.JWTAuth(h.logger))
	protected.HandleFunc("/me", h.Me).Methods("GET")
	protected.HandleFunc("/me/password", h.ChangePassword).Methods("POST")

	// Backoffice routes
	staff := protected.PathPrefix("/backoffice").Subrouter()
	staff.Use(middleware.StaffAuth(h.logger))
	staff.HandleFunc("/applications", h.ListApplications).Methods("GET")
	staff.HandleFunc("/applications/overdue", h.OverdueApplications).Methods("GET")
	staff.HandleFunc("/applications/{id:[0-9]+}", h.ApplicationDetail).Methods("GET")
	staff.HandleFunc("/applications/{id:[0-9]+}/open", h.OpenApplication).Methods("POST")
	staff.HandleFunc("/applications/{id:[0-9]+}/request-documents", h.RequestDocuments).Methods("POST")
	staff.HandleFunc("/applications/{id:[0-9]+}/approve", h.ApproveApplication).Methods("POST")
	staff.HandleFunc("/applications/{id:[0-9]+}/reject", h.RejectApplication).Methods("POST")
	staff.HandleFunc("/applications/{id:[0-9]+}/timeline", h.ApplicationTimeline).Methods("GET")
	staff.HandleFunc("/applications/{id:[0-9]+}/report", h.DownloadReport).Methods("GET", "POST")
	staff.HandleFunc("/applications/{id:[0-9]+}/documents/{code}/history", h.UploadHistory).Methods("GET")
	staff.HandleFunc("/uploads/{uploadID:[0-9]+}", h.UploadContent).Methods("GET")
	staff.HandleFunc("/uploads/{uploadID:[0-9]+}/verify", h.VerifyUpload).Methods("POST")
	staff.HandleFunc("/uploads/{uploadID:[0-9]+}/reject", h.RejectUpload).Methods("POST")
	staff.HandleFunc("/audit-logs", h.GetAuditLogs).Methods("GET")
	staff.HandleFunc("/dashboard", h.DashboardStats).Methods("GET")
	staff.Handle("/dashboard/ws", h.dashboard).Methods("GET")

	return r
}
