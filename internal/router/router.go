package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/qcconsole/api/handler"
)

// APIPrefix is stripped before console data calls are forwarded.
const APIPrefix = "/api/v1"

// Data routes open to any authenticated user.
var authenticatedResources = []string{"machines", "sales-orders", "qc-entries", "qc-approvals"}

// Administration routes, admin or manager only.
var adminResources = []string{"permissions", "roles", "users"}

type Handlers struct {
	Auth          *apiHandler.AuthHandler
	Proxy         *apiHandler.ProxyHandler
	Notifications *apiHandler.NotificationHandler
	Health        *apiHandler.HealthHandler
}

type Middleware func(fasthttp.RequestHandler) fasthttp.RequestHandler

// Guards wraps protected routes. Admin is applied on top of Authenticated
// by the caller if both are wanted.
type Guards struct {
	Authenticated Middleware
	Admin         Middleware
}

func New(handlers Handlers, guards Guards) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	r.GET("/auth/login", handlers.Auth.LoginPage)
	r.POST("/auth/login", handlers.Auth.Login)
	r.POST("/auth/refresh", handlers.Auth.Refresh)
	r.POST("/auth/logout", handlers.Auth.Logout)
	r.GET("/auth/session", handlers.Auth.Session)

	r.GET(APIPrefix+"/notifications", handlers.Notifications.Drain)

	for _, res := range authenticatedResources {
		mount(r, APIPrefix+"/"+res, guards.Authenticated(handlers.Proxy.Forward))
	}
	for _, res := range adminResources {
		mount(r, APIPrefix+"/"+res, guards.Admin(handlers.Proxy.Forward))
	}
	return r
}

func mount(r *router.Router, base string, h fasthttp.RequestHandler) {
	r.ANY(base, h)
	r.ANY(base+"/{rest:*}", h)
}
