package handlers

import (
	"errors"
	"net/http"
	"time"

	"gcx-supplier-go/accounts"
	"gcx-supplier-go/middleware"
	"gcx-supplier-go/models"
	"gcx-supplier-go/utils"

	"go.uber.org/zap"
)

// Login exchanges staff credentials for a bearer token.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := accounts.Authenticate(r.Context(), h.db, req.Email, req.Password)
	if errors.Is(err, accounts.ErrInvalidCredentials) {
		h.logger.Info("failed login", zap.String("email", req.Email), zap.String("client_ip", clientIP(r)))
		sendError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		h.logger.Error("generate token", zap.Uint("user_id", user.ID), zap.Error(err))
		sendError(w, http.StatusInternalServerError, "Failed to generate token", nil)
		return
	}

	now := time.Now().UTC()
	if err := h.db.WithContext(r.Context()).Model(user).Update("last_login_at", now).Error; err != nil {
		h.logger.Warn("record last login", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	user.LastLoginAt = &now

	h.logger.Info("user login", zap.Uint("user_id", user.ID), zap.String("role", user.Role))
	sendJSON(w, http.StatusOK, models.LoginResponse{Token: token, User: *user})
}

// Me returns the authenticated user.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		sendError(w, http.StatusUnauthorized, "Invalid or missing token", nil)
		return
	}
	var user models.User
	if err := h.db.WithContext(r.Context()).Limit(1).Find(&user, claims.UserID).Error; err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	if user.ID == 0 {
		sendError(w, http.StatusNotFound, "User not found", nil)
		return
	}
	sendJSON(w, http.StatusOK, user)
}

// ChangePassword lets the authenticated user replace their password. It
// clears must_change_password on the account.
func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		sendError(w, http.StatusUnauthorized, "Invalid or missing token", nil)
		return
	}
	var req models.ChangePasswordRequest
	if !decode(w, r, &req) {
		return
	}

	err := accounts.ChangePassword(r.Context(), h.db, claims.UserID, req.CurrentPassword, req.NewPassword)
	switch {
	case errors.Is(err, accounts.ErrInvalidCredentials):
		sendError(w, http.StatusBadRequest, "Current password is incorrect", nil)
		return
	case errors.Is(err, accounts.ErrPasswordReused):
		sendError(w, http.StatusBadRequest, err.Error(), nil)
		return
	case err != nil:
		h.sendServiceError(w, r, err)
		return
	}

	h.logger.Info("password changed", zap.Uint("user_id", claims.UserID))
	sendJSON(w, http.StatusOK, map[string]string{"message": "Password changed"})
}
