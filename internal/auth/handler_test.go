package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ndelia/loom/internal/store"
)

func newAuthRouter(t *testing.T) (*chi.Mux, store.Repository) {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	issuer := NewTokenIssuer("test-secret", time.Hour)
	h := NewHandler(repo, issuer, false)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r, repo
}

func postJSON(t *testing.T, router http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSignupLoginMe(t *testing.T) {
	router, _ := newAuthRouter(t)

	w := postJSON(t, router, "/api/auth/signup",
		`{"email":"alice@example.com","password":"Sup3rSecret","name":"Alice"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == AuthCookieName {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == "" {
		t.Fatal("Expected auth cookie to be set on signup")
	}
	if !cookie.HttpOnly {
		t.Error("Expected auth cookie to be HttpOnly")
	}

	login := postJSON(t, router, "/api/auth/login",
		`{"email":"Alice@Example.com","password":"Sup3rSecret"}`)
	if login.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", login.Code, login.Body.String())
	}

	me := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	me.AddCookie(cookie)
	meW := httptest.NewRecorder()
	router.ServeHTTP(meW, me)
	if meW.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", meW.Code, meW.Body.String())
	}
	var resp struct {
		User struct {
			Email string `json:"email"`
			Name  string `json:"name"`
		} `json:"user"`
	}
	if err := json.NewDecoder(meW.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.User.Email != "alice@example.com" || resp.User.Name != "Alice" {
		t.Errorf("Unexpected user: %+v", resp.User)
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	router, _ := newAuthRouter(t)

	body := `{"email":"bob@example.com","password":"Sup3rSecret"}`
	if w := postJSON(t, router, "/api/auth/signup", body); w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", w.Code)
	}
	if w := postJSON(t, router, "/api/auth/signup", body); w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for duplicate signup, got %d", w.Code)
	}
}

func TestSignup_RejectsBadInput(t *testing.T) {
	router, _ := newAuthRouter(t)

	cases := []struct {
		name string
		body string
	}{
		{"bad email", `{"email":"not-an-email","password":"Sup3rSecret"}`},
		{"short password", `{"email":"a@example.com","password":"Ab1"}`},
		{"no uppercase", `{"email":"a@example.com","password":"lowercase1"}`},
		{"no digit", `{"email":"a@example.com","password":"NoDigitsHere"}`},
		{"malformed json", `{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := postJSON(t, router, "/api/auth/signup", tc.body); w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestLogin_UniformFailureMessage(t *testing.T) {
	router, _ := newAuthRouter(t)

	if w := postJSON(t, router, "/api/auth/signup",
		`{"email":"carol@example.com","password":"Sup3rSecret"}`); w.Code != http.StatusCreated {
		t.Fatalf("Signup failed: %d", w.Code)
	}

	wrongPassword := postJSON(t, router, "/api/auth/login",
		`{"email":"carol@example.com","password":"WrongPass1"}`)
	unknownUser := postJSON(t, router, "/api/auth/login",
		`{"email":"nobody@example.com","password":"WrongPass1"}`)

	if wrongPassword.Code != http.StatusUnauthorized || unknownUser.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 for both failures, got %d and %d", wrongPassword.Code, unknownUser.Code)
	}
	if wrongPassword.Body.String() != unknownUser.Body.String() {
		t.Errorf("Expected identical failure bodies, got %q vs %q",
			wrongPassword.Body.String(), unknownUser.Body.String())
	}
}

func TestMiddleware_RejectsMissingAndInvalidTokens(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	protected := Middleware(issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	noToken := httptest.NewRecorder()
	protected.ServeHTTP(noToken, httptest.NewRequest(http.MethodGet, "/", nil))
	if noToken.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", noToken.Code)
	}

	badToken := httptest.NewRequest(http.MethodGet, "/", nil)
	badToken.Header.Set("Authorization", "Bearer garbage")
	badW := httptest.NewRecorder()
	protected.ServeHTTP(badW, badToken)
	if badW.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with invalid token, got %d", badW.Code)
	}
}

func TestMiddleware_InjectsIdentity(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	token, err := issuer.Generate("user-9", "dora@example.com")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	var gotUserID, gotEmail string
	protected := Middleware(issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = UserIDFromContext(r.Context())
		gotEmail = EmailFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	protected.ServeHTTP(httptest.NewRecorder(), req)

	if gotUserID != "user-9" || gotEmail != "dora@example.com" {
		t.Errorf("Expected identity in context, got %q / %q", gotUserID, gotEmail)
	}
}

func TestValidatePassword(t *testing.T) {
	if msg := validatePassword("Sup3rSecret"); msg != "" {
		t.Errorf("Expected valid password, got %q", msg)
	}
	for _, bad := range []string{"short1A", "alllowercase1", "ALLUPPERCASE1", "NoDigitsAtAll"} {
		if msg := validatePassword(bad); msg == "" {
			t.Errorf("Expected rejection for %q", bad)
		}
	}
}
