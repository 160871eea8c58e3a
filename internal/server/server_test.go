package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"sharpms/dashboard/internal/apiclient"
	"sharpms/dashboard/internal/config"
	"sharpms/dashboard/internal/fetch"
	"sharpms/dashboard/internal/handlers"
	"sharpms/dashboard/internal/hub"
	"sharpms/dashboard/internal/security"
	"sharpms/dashboard/internal/session"
	"sharpms/dashboard/internal/storage"
	"sharpms/dashboard/internal/views"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// remoteAPI mimics the Sharp REST API: enveloped responses, bearer auth.
func remoteAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		if body.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"message":"Invalid credentials"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{"user":{"id":"u1","name":"Ada","email":"` + body.Email + `","roles":[{"name":"Manager"}],"onboarded":true},"accessToken":"access-1","refreshToken":"refresh-1"}}`))
	})
	mux.HandleFunc("/dashboard/stats", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"guests":12,"rooms":9}}`))
	})
	mux.HandleFunc("/branches", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"b1","name":"North"}]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDashboard_EndToEnd(t *testing.T) {
	remote := remoteAPI(t)

	cfg := &config.AppConfig{
		Environment: "test",
		API:         config.APIConfig{BaseURL: remote.URL, Timeout: 2 * time.Second},
		Session: config.SessionConfig{
			CookieName:   "sharp_device",
			CookieSecret: "cookie-secret",
			CookieTTL:    time.Hour,
		},
		Routes: config.RoutesConfig{Home: "/", Login: "/login", Dashboard: "/dashboard", Onboarding: "/onboarding"},
	}
	log := zerolog.Nop()

	api, err := apiclient.New(cfg.API, log)
	if err != nil {
		t.Fatalf("apiclient.New: %v", err)
	}
	sealer, err := security.NewSealer("storage-secret", "storage")
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	raw := storage.NewMemoryStorage()
	store := storage.NewSealed(raw, sealer)

	set := handlers.NewHandlerSet(handlers.Deps{
		Config:   cfg,
		Log:      log,
		Sessions: session.NewProvider(store, api, log),
		API:      api,
		Fetcher:  fetch.NewFetcher(fetch.NewMemoryCache(time.Now), time.Minute, time.Hour, log),
		Views:    views.NewRegistry(nil),
		Hub:      hub.New(),
	})
	app := httptest.NewServer(NewEngine(cfg, log, set))
	defer app.Close()

	jar, _ := cookiejar.New(nil)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Get(app.URL + "/dashboard")
	if err != nil {
		t.Fatalf("get dashboard: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/login" {
		t.Fatalf("expected redirect to login, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}

	resp, err = client.Post(app.URL+"/auth/login", "application/json", strings.NewReader(`{"email":"ada@sharp.test","password":"wrong"}`))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	resp, err = client.Post(app.URL+"/auth/login", "application/json", strings.NewReader(`{"email":"ada@sharp.test","password":"secret"}`))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	// Tokens are sealed at rest.
	if raw.Len() != 1 {
		t.Fatalf("expected one persisted device, got %d", raw.Len())
	}
	for _, c := range jar.Cookies(mustURL(t, app.URL)) {
		claims, err := security.ParseDeviceToken(c.Value, "cookie-secret")
		if err != nil {
			t.Fatalf("device cookie: %v", err)
		}
		values, _ := raw.Get(context.Background(), claims.DeviceID, storage.KeyAccessToken)
		if v := values[storage.KeyAccessToken]; v == "" || v == "access-1" {
			t.Fatalf("expected sealed token, got %q", v)
		}
	}

	resp, err = client.Get(app.URL + "/dashboard")
	if err != nil {
		t.Fatalf("get dashboard: %v", err)
	}
	var page struct {
		View string         `json:"view"`
		Data map[string]int `json:"data"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&page)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || page.View != "dashboard" || page.Data["guests"] != 12 {
		t.Fatalf("unexpected dashboard %d %+v", resp.StatusCode, page)
	}

	resp, err = client.Get(app.URL + "/branches")
	if err != nil {
		t.Fatalf("get branches: %v", err)
	}
	var branches struct {
		Data    []map[string]string `json:"data"`
		Actions []map[string]string `json:"actions"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&branches)
	resp.Body.Close()
	if len(branches.Data) != 1 || branches.Data[0]["name"] != "North" {
		t.Fatalf("unexpected branches %+v", branches)
	}
	// Managers may edit but not add branches.
	if len(branches.Actions) != 1 || branches.Actions[0]["label"] != "Edit Branch" {
		t.Fatalf("unexpected actions %+v", branches.Actions)
	}
}

func TestCORS_Preflight(t *testing.T) {
	cfg := &config.AppConfig{
		Session:          config.SessionConfig{CookieName: "d", CookieSecret: "s", CookieTTL: time.Hour},
		Routes:           config.RoutesConfig{Home: "/", Login: "/login", Dashboard: "/dashboard", Onboarding: "/onboarding"},
		AllowCORSOrigins: []string{"https://app.sharp.test"},
	}
	set := handlers.NewHandlerSet(handlers.Deps{
		Config:   cfg,
		Log:      zerolog.Nop(),
		Sessions: session.NewProvider(storage.NewMemoryStorage(), nil, zerolog.Nop()),
		Views:    views.NewRegistry(nil),
		Hub:      hub.New(),
	})
	engine := NewEngine(cfg, zerolog.Nop(), set)

	req := httptest.NewRequest(http.MethodOptions, "/auth/login", nil)
	req.Header.Set("Origin", "https://app.sharp.test")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "https://app.sharp.test" {
		t.Fatalf("expected origin echoed")
	}
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	return u
}
