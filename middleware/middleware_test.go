package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"gcx-supplier-go/models"
	"gcx-supplier-go/utils"

	"go.uber.org/zap"
)

func init() {
	if err := utils.InitializeJWT("middleware-test-jwt-secret-32-characters"); err != nil {
		panic(err)
	}
}

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(h http.Handler, req *http.Request) int {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	h := rl.Middleware(ok)

	req := httptest.NewRequest("GET", "/verify-document", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	for i := 0; i < 2; i++ {
		if code := serve(h, req); code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, code)
		}
	}
	if code := serve(h, req); code != http.StatusTooManyRequests {
		t.Errorf("over burst: status %d", code)
	}

	other := httptest.NewRequest("GET", "/verify-document", nil)
	other.RemoteAddr = "10.0.0.2:5555"
	if code := serve(h, other); code != http.StatusOK {
		t.Errorf("second client limited: status %d", code)
	}
}

func TestJWTAuthAndStaff(t *testing.T) {
	logger := zap.NewNop()
	h := JWTAuth(logger)(StaffAuth(logger)(ok))

	staff, _ := utils.GenerateToken(1, "reviewer@gcx.com.gh", models.RoleStaff)
	supplier, _ := utils.GenerateToken(2, "supplier@example.com", models.RoleSupplier)

	tests := []struct {
		name   string
		header string
		query  string
		wsUp   bool
		want   int
	}{
		{name: "missing", want: http.StatusUnauthorized},
		{name: "malformed", header: "Token " + staff, want: http.StatusUnauthorized},
		{name: "staff", header: "Bearer " + staff, want: http.StatusOK},
		{name: "supplier", header: "Bearer " + supplier, want: http.StatusForbidden},
		{name: "query token on websocket", query: staff, wsUp: true, want: http.StatusOK},
		{name: "query token on plain request", query: staff, want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/api/backoffice/dashboard/ws"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest("GET", target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.wsUp {
				req.Header.Set("Upgrade", "websocket")
			}
			if code := serve(h, req); code != tt.want {
				t.Errorf("status = %d, want %d", code, tt.want)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	rec := httptest.NewRecorder()
	CORS(ok).ServeHTTP(rec, httptest.NewRequest("OPTIONS", "/api/applications", nil))
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight = %d %v", rec.Code, rec.Header())
	}
}

func TestRecover(t *testing.T) {
	h := Recover(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	if code := serve(h, httptest.NewRequest("GET", "/", nil)); code != http.StatusInternalServerError {
		t.Errorf("status = %d", code)
	}
}
