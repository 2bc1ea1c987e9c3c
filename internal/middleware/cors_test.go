package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func corsRequest(t *testing.T, origins []string, method, origin string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	reached := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(method, "/api/workspaces", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	CORS(origins)(next).ServeHTTP(w, req)
	return w, reached
}

func TestCORS_AllowsConfiguredOriginWithCredentials(t *testing.T) {
	w, reached := corsRequest(t, []string{"http://localhost:3000"}, http.MethodGet, "http://localhost:3000")

	if !reached {
		t.Error("Expected request to reach the handler")
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Expected origin to be echoed, got %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Expected credentials allowed for an explicit origin, got %q", got)
	}
	if got := w.Header().Get("Vary"); got != "Origin" {
		t.Errorf("Expected Vary: Origin, got %q", got)
	}
}

func TestCORS_WildcardGrantsWithoutCredentials(t *testing.T) {
	w, _ := corsRequest(t, []string{"*"}, http.MethodGet, "http://anywhere.example")

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://anywhere.example" {
		t.Errorf("Expected origin to be echoed under wildcard, got %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Errorf("Expected no credentials header for a wildcard match, got %q", got)
	}
}

func TestCORS_DeniesUnknownOrigin(t *testing.T) {
	w, reached := corsRequest(t, []string{"http://localhost:3000"}, http.MethodGet, "http://evil.example")

	if !reached {
		t.Error("Expected request to reach the handler regardless of origin")
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Expected no allow-origin header for unknown origin, got %q", got)
	}
	if got := w.Header().Get("Vary"); got != "Origin" {
		t.Errorf("Expected Vary: Origin even when denied, got %q", got)
	}
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	w, reached := corsRequest(t, []string{"http://localhost:3000"}, http.MethodOptions, "http://localhost:3000")

	if reached {
		t.Error("Expected preflight to stop at the middleware")
	}
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204 for preflight, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); got == "" {
		t.Error("Expected preflight to carry allowed methods")
	}
}
