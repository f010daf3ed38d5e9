package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"gcx-supplier-go/models"
	"gcx-supplier-go/utils"

	"go.uber.org/zap"
)

type contextKey string

const UserContextKey contextKey = "user"

type errorBody struct {
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{Status: status, Error: msg, Timestamp: time.Now()})
}

// bearerToken reads the Authorization header. Browsers cannot set headers
// on a WebSocket handshake, so upgrade requests may pass ?token= instead.
func bearerToken(r *http.Request) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", false
		}
		return parts[1], true
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		if t := r.URL.Query().Get("token"); t != "" {
			return t, true
		}
	}
	return "", false
}

// JWTAuth rejects requests without a valid bearer token and stores the
// claims on the request context.
func JWTAuth(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				logger.Debug("missing or malformed authorization", zap.String("path", r.URL.Path))
				writeError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}

			claims, err := utils.ValidateToken(token)
			if err != nil {
				logger.Info("token validation failed", zap.String("path", r.URL.Path), zap.Error(err))
				writeError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// StaffAuth admits only staff tokens. It must run after JWTAuth.
func StaffAuth(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetUserFromContext(r)
			if claims == nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized - No user context")
				return
			}
			if claims.Role != models.RoleStaff {
				logger.Warn("non-staff user attempted backoffice access",
					zap.Uint("user_id", claims.UserID), zap.String("path", r.URL.Path))
				writeError(w, http.StatusForbidden, "Staff access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func GetUserFromContext(r *http.Request) *utils.Claims {
	if claims, ok := r.Context().Value(UserContextKey).(*utils.Claims); ok {
		return claims
	}
	return nil
}
