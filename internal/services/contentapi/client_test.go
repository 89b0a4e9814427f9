package contentapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"repack/internal/config"
	"repack/internal/services"
	"repack/internal/services/contentapi"
	"repack/internal/testsupport"
)

func newClient(t *testing.T, server *httptest.Server, mutate func(*config.Config)) *contentapi.Client {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.API.LoginURL = server.URL + "/login"
	cfg.API.UploadURL = server.URL + "/upload"
	cfg.API.ArticleURL = server.URL + "/article"
	cfg.API.CategoryURL = server.URL + "/category"
	cfg.API.MaxRetries = 3
	cfg.API.BatchSize = 2
	if mutate != nil {
		mutate(cfg)
	}

	client, err := contentapi.New(cfg, nil, contentapi.WithRetryDelay(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestNewRequiresCredentialsWhenPublishing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.API.Account = ""
	cfg.API.Password = ""

	_, err := contentapi.New(cfg, nil)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}

	cfg.API.SkipLogin = true
	if _, err := contentapi.New(cfg, nil); err != nil {
		t.Fatalf("skip_login should not require credentials: %v", err)
	}
}

func TestLoginStoresToken(t *testing.T) {
	var loginCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		loginCalls.Add(1)
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.Header.Get("Device-Id") == "" {
			t.Error("missing Device-Id header")
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("missing User-Agent header")
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("login must not carry Authorization, got %q", r.Header.Get("Authorization"))
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode login body: %v", err)
		}
		if body["account"] != "test-account" || body["password"] != "test-password" {
			t.Errorf("credentials = %v", body)
		}
		writeJSON(t, w, http.StatusOK, map[string]any{
			"code": 0,
			"data": map[string]string{"token": "tok-1"},
		})
	})
	mux.HandleFunc("/category", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q, want Bearer tok-1", got)
		}
		writeJSON(t, w, http.StatusOK, map[string]any{"code": 0, "data": []any{}})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newClient(t, server, nil)
	if client.HasToken() {
		t.Fatal("token should start empty")
	}
	if err := client.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !client.HasToken() {
		t.Fatal("token should be cached after login")
	}
	if got := loginCalls.Load(); got != 1 {
		t.Fatalf("login calls = %d, want 1", got)
	}
	if _, err := client.FetchCategories(context.Background()); err != nil {
		t.Fatalf("FetchCategories: %v", err)
	}
}

func TestLoginRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(t, w, http.StatusOK, map[string]any{
			"code": 0,
			"data": map[string]string{"token": "tok-2"},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newClient(t, server, nil)
	if err := client.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("login calls = %d, want 3", got)
	}
}

func TestLoginExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(t, w, http.StatusOK, map[string]any{"code": 1, "message": "bad credentials"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newClient(t, server, func(cfg *config.Config) { cfg.API.MaxRetries = 2 })
	err := client.Login(context.Background())
	if err == nil {
		t.Fatal("expected login failure")
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("login calls = %d, want 2", got)
	}
}

func TestLoginRejectsMissingToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"code": 0, "data": map[string]string{}})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newClient(t, server, func(cfg *config.Config) { cfg.API.MaxRetries = 1 })
	if err := client.Login(context.Background()); err == nil {
		t.Fatal("expected error when response has no token")
	}
}

func TestEnsureLoginReusesCachedToken(t *testing.T) {
	var loginCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		loginCalls.Add(1)
		writeJSON(t, w, http.StatusOK, map[string]any{
			"code": 0,
			"data": map[string]string{"token": "tok-3"},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newClient(t, server, func(cfg *config.Config) { cfg.API.Token = "preseeded" })
	if err := client.EnsureLogin(context.Background()); err != nil {
		t.Fatalf("EnsureLogin: %v", err)
	}
	if got := loginCalls.Load(); got != 0 {
		t.Fatalf("login calls = %d, want 0 (token was cached)", got)
	}
}

func TestTestConnection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	server := httptest.NewServer(mux)

	client := newClient(t, server, nil)
	// 404 proves reachability.
	if err := client.TestConnection(context.Background()); err != nil {
		t.Fatalf("TestConnection: %v", err)
	}

	server.Close()
	if err := client.TestConnection(context.Background()); err == nil {
		t.Fatal("expected error once server is down")
	}
}

func TestTestConnectionRejectsServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newClient(t, server, nil)
	if err := client.TestConnection(context.Background()); err == nil {
		t.Fatal("expected error for HTTP 500")
	}
}
