package router

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	apiHandler "github.com/fastygo/qcconsole/api/handler"
	"github.com/fastygo/qcconsole/domain"
	"github.com/fastygo/qcconsole/internal/backend"
	"github.com/fastygo/qcconsole/internal/config"
	"github.com/fastygo/qcconsole/internal/guard"
	"github.com/fastygo/qcconsole/internal/infrastructure/monitor"
	"github.com/fastygo/qcconsole/internal/interceptor"
	"github.com/fastygo/qcconsole/internal/middleware"
	"github.com/fastygo/qcconsole/internal/notify"
	"github.com/fastygo/qcconsole/pkg/httpcontext"
	"github.com/fastygo/qcconsole/repository"
	boltrepo "github.com/fastygo/qcconsole/repository/bolt"
	authUC "github.com/fastygo/qcconsole/usecase/auth"
)

type console struct {
	handler     fasthttp.RequestHandler
	sessions    *authUC.Manager
	queue       *notify.Queue
	role        string
	lastBearer  string
	lastRequest string
}

func accessToken(t *testing.T) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("backend"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func newConsole(t *testing.T, role string) *console {
	t.Helper()
	c := &console{role: role}
	token := accessToken(t)

	fake := func(ctx *fasthttp.RequestCtx) {
		c.lastBearer = string(ctx.Request.Header.Peek("Authorization"))
		c.lastRequest = string(ctx.Method()) + " " + string(ctx.RequestURI())
		ctx.SetContentType("application/json")
		switch string(ctx.Path()) {
		case "/api/auth/login":
			var req struct{ Email, Password string }
			_ = json.Unmarshal(ctx.PostBody(), &req)
			if req.Password != "secret" {
				ctx.SetStatusCode(http.StatusUnauthorized)
				ctx.SetBodyString(`{"message":"Invalid email or password"}`)
				return
			}
			body, _ := json.Marshal(map[string]any{
				"user":         map[string]any{"_id": "u-1", "username": "qa", "email": req.Email, "role": map[string]any{"_id": "r-1", "name": c.role}},
				"accessToken":  token,
				"refreshToken": "refresh-1",
			})
			ctx.SetBody(body)
		case "/api/auth/logout":
			ctx.SetStatusCode(http.StatusOK)
		case "/api/machines":
			ctx.SetBodyString(`{"success":true,"data":[{"_id":"m-1"}]}`)
		case "/api/users":
			ctx.SetBodyString(`{"success":true,"data":[]}`)
		case "/api/qc-entries":
			ctx.SetStatusCode(http.StatusUnauthorized)
			ctx.SetBodyString(`{"message":"jwt expired"}`)
		default:
			ctx.SetStatusCode(http.StatusNotFound)
		}
	}
	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = fasthttp.Serve(ln, fake) }()
	t.Cleanup(func() { _ = ln.Close() })

	store, err := boltrepo.Open(filepath.Join(t.TempDir(), "session.db"), "http://console.test")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	bcfg := config.BackendConfig{
		BaseURL:     "http://backend.test/api",
		Timeout:     2 * time.Second,
		LoginPath:   "/auth/login",
		RefreshPath: "/auth/refresh-token",
		LogoutPath:  "/auth/logout",
		HealthPath:  "/health",
	}
	httpClient := backend.NewHTTPClient(bcfg, "test")
	httpClient.Dial = func(string) (net.Conn, error) { return ln.Dial() }

	c.queue = notify.NewQueue(10)
	var client *backend.Client
	c.sessions = authUC.New(repository.NewAuthStorage(store), backendFunc(func() *backend.Client { return client }), nil, authUC.Config{})
	ic := interceptor.New(httpClient, c.sessions, c.queue, nil, interceptor.Options{LoginPath: bcfg.LoginPath})
	client = backend.New(ic, httpClient, bcfg)

	adapter := httpcontext.NewAdapter(time.Second)
	authGuard := guard.NewAuthGuard(c.sessions, nil, "/auth/login", nil)
	adminGuard := guard.NewAdminGuard(c.sessions, nil, "/auth/login", nil)
	mon := monitor.New(time.Minute, nil, monitor.Check{Name: "storage", Critical: true, Probe: store.Ping})
	mon.Refresh()

	r := New(Handlers{
		Auth:          apiHandler.NewAuthHandler(c.sessions, adapter, nil),
		Proxy:         apiHandler.NewProxyHandler(client, APIPrefix, adapter, nil),
		Notifications: apiHandler.NewNotificationHandler(c.queue, adapter, nil),
		Health:        apiHandler.NewHealthHandler(mon, c.sessions, adapter, nil),
	}, Guards{
		Authenticated: middleware.Guard(authGuard, adapter, nil),
		Admin:         middleware.Guard(guard.Chain(authGuard, adminGuard), adapter, nil),
	})
	c.handler = r.Handler
	return c
}

// backendFunc resolves the client lazily; the client needs the manager and
// the manager needs the client.
type backendFunc func() *backend.Client

func (f backendFunc) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	return f().Login(ctx, email, password)
}
func (f backendFunc) Refresh(ctx context.Context, token string) (string, error) {
	return f().Refresh(ctx, token)
}
func (f backendFunc) Logout(ctx context.Context) error { return f().Logout(ctx) }

func (c *console) do(method, uri, body string) *fasthttp.Response {
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	if body != "" {
		ctx.Request.Header.SetContentType("application/json")
		ctx.Request.SetBodyString(body)
	}
	c.handler(&ctx)
	resp := &fasthttp.Response{}
	ctx.Response.CopyTo(resp)
	return resp
}

func (c *console) login(t *testing.T) {
	t.Helper()
	resp := c.do(http.MethodPost, "/auth/login", `{"email":"qa@plant.example","password":"secret"}`)
	if resp.StatusCode() != http.StatusOK {
		t.Fatalf("login status %d: %s", resp.StatusCode(), resp.Body())
	}
}

func TestProtectedRouteRedirectsWhenLoggedOut(t *testing.T) {
	c := newConsole(t, "inspector")
	resp := c.do(http.MethodGet, "/api/v1/machines", "")
	if resp.StatusCode() != http.StatusFound {
		t.Fatalf("expected 302, got %d", resp.StatusCode())
	}
	if loc := string(resp.Header.Peek("Location")); loc != "/auth/login?returnUrl=%2Fapi%2Fv1%2Fmachines" {
		t.Fatalf("unexpected Location %q", loc)
	}
}

func TestLoginValidationAndRejection(t *testing.T) {
	c := newConsole(t, "inspector")

	resp := c.do(http.MethodPost, "/auth/login", `{"email":""}`)
	if resp.StatusCode() != http.StatusUnprocessableEntity || !strings.Contains(string(resp.Body()), "fieldErrors") {
		t.Fatalf("expected 422 with field errors, got %d %s", resp.StatusCode(), resp.Body())
	}

	resp = c.do(http.MethodPost, "/auth/login", `{"email":"qa@plant.example","password":"wrong"}`)
	if resp.StatusCode() != http.StatusUnauthorized || !strings.Contains(string(resp.Body()), "INVALID_CREDENTIALS") {
		t.Fatalf("expected 401 INVALID_CREDENTIALS, got %d %s", resp.StatusCode(), resp.Body())
	}
	if c.queue.Len() != 0 {
		t.Fatalf("rejected login must not toast")
	}
}

func TestLoggedInForwardingAndSession(t *testing.T) {
	c := newConsole(t, "inspector")
	c.login(t)

	resp := c.do(http.MethodGet, "/api/v1/machines?page=1", "")
	if resp.StatusCode() != http.StatusOK || !strings.Contains(string(resp.Body()), "m-1") {
		t.Fatalf("forward failed: %d %s", resp.StatusCode(), resp.Body())
	}
	if c.lastRequest != "GET /api/machines?page=1" {
		t.Fatalf("backend saw %q", c.lastRequest)
	}
	if !strings.HasPrefix(c.lastBearer, "Bearer ") {
		t.Fatalf("bearer missing: %q", c.lastBearer)
	}

	resp = c.do(http.MethodGet, "/auth/session", "")
	var env struct {
		Data struct {
			State           string `json:"state"`
			Authenticated   bool   `json:"authenticated"`
			HasStoredTokens bool   `json:"hasStoredTokens"`
			Expiry          struct {
				IsExpired bool `json:"isExpired"`
			} `json:"expiry"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if env.Data.State != "logged_in" || !env.Data.Authenticated || !env.Data.HasStoredTokens || env.Data.Expiry.IsExpired {
		t.Fatalf("unexpected session view %+v", env.Data)
	}
}

func TestAdminRoutesRequireElevatedRole(t *testing.T) {
	c := newConsole(t, "inspector")
	c.login(t)
	resp := c.do(http.MethodGet, "/api/v1/users", "")
	if resp.StatusCode() != http.StatusFound || string(resp.Header.Peek("Location")) != "/auth/login?error=access_denied" {
		t.Fatalf("expected access_denied redirect, got %d %q", resp.StatusCode(), resp.Header.Peek("Location"))
	}

	m := newConsole(t, "Manager")
	m.login(t)
	if resp := m.do(http.MethodGet, "/api/v1/users", ""); resp.StatusCode() != http.StatusOK {
		t.Fatalf("manager should reach admin routes, got %d", resp.StatusCode())
	}
}

func TestBackend401ClearsSession(t *testing.T) {
	c := newConsole(t, "inspector")
	c.login(t)

	resp := c.do(http.MethodGet, "/api/v1/qc-entries", "")
	if resp.StatusCode() != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode())
	}
	if c.sessions.IsAuthenticated() {
		t.Fatalf("401 must clear the session")
	}

	resp = c.do(http.MethodGet, "/api/v1/notifications", "")
	if !strings.Contains(string(resp.Body()), "Session Expired") {
		t.Fatalf("expected session expired toast, got %s", resp.Body())
	}
	if c.queue.Len() != 0 {
		t.Fatalf("notifications must be drained")
	}

	resp = c.do(http.MethodGet, "/api/v1/machines", "")
	if resp.StatusCode() != http.StatusFound {
		t.Fatalf("next navigation should redirect, got %d", resp.StatusCode())
	}
}

func TestLogoutAndLandingPage(t *testing.T) {
	c := newConsole(t, "inspector")
	c.login(t)

	if resp := c.do(http.MethodPost, "/auth/logout", ""); resp.StatusCode() != http.StatusOK {
		t.Fatalf("logout status %d", resp.StatusCode())
	}
	if c.sessions.IsAuthenticated() || c.lastRequest != "POST /api/auth/logout" {
		t.Fatalf("logout did not reach backend or clear session")
	}

	resp := c.do(http.MethodGet, "/auth/login?returnUrl=%2Fapi%2Fv1%2Fmachines&expired=true", "")
	body := string(resp.Body())
	if !strings.Contains(body, `"returnUrl":"/api/v1/machines"`) || !strings.Contains(body, `"expired":true`) {
		t.Fatalf("unexpected landing %s", body)
	}
}

func TestHealth(t *testing.T) {
	c := newConsole(t, "inspector")
	resp := c.do(http.MethodGet, "/health", "")
	if resp.StatusCode() != http.StatusOK || !strings.Contains(string(resp.Body()), `"session":"logged_out"`) {
		t.Fatalf("unexpected health %d %s", resp.StatusCode(), resp.Body())
	}
}
