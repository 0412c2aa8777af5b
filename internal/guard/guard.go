// Package guard decides whether a console route may be activated for the
// current session.
package guard

import (
	"context"
	"net/url"

	"go.uber.org/zap"

	"github.com/fastygo/qcconsole/domain"
	"github.com/fastygo/qcconsole/pkg/logger"
)

// Session is the part of the session manager the guards read.
type Session interface {
	IsAuthenticated() bool
	AccessToken(ctx context.Context) (string, error)
	RestoreAuthFromStorage(ctx context.Context) bool
	CurrentUser() *domain.UserProfile
	TokenExpiryInfo(ctx context.Context) domain.TokenExpiryInfo
	ClearAuthData(ctx context.Context) error
	Subscribe() (<-chan domain.Session, func())
}

// Navigator receives the redirect of every denied activation.
type Navigator interface {
	Navigate(ctx context.Context, target string)
}

// NavigatorFunc adapts a function to a Navigator.
type NavigatorFunc func(ctx context.Context, target string)

func (f NavigatorFunc) Navigate(ctx context.Context, target string) { f(ctx, target) }

// Decision is the outcome of a guard evaluation. Redirect is set only when
// Allowed is false.
type Decision struct {
	Allowed  bool
	Redirect string
}

// Guard is satisfied by AuthGuard and AdminGuard.
type Guard interface {
	CanActivate(ctx context.Context, target string) Decision
}

const (
	paramReturnURL = "returnUrl"
	paramExpired   = "expired"
	paramError     = "error"

	errAccessDenied = "access_denied"
)

type base struct {
	session    Session
	navigator  Navigator
	loginRoute string
	logger     *zap.Logger
}

func newBase(session Session, navigator Navigator, loginRoute string, log *zap.Logger) base {
	if loginRoute == "" {
		loginRoute = "/auth/login"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return base{session: session, navigator: navigator, loginRoute: loginRoute, logger: log}
}

func (b base) deny(ctx context.Context, params url.Values) Decision {
	target := b.loginRoute
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	if b.navigator != nil {
		b.navigator.Navigate(ctx, target)
	}
	return Decision{Redirect: target}
}

// AuthGuard admits any authenticated session holding a live access token.
type AuthGuard struct {
	base
}

func NewAuthGuard(session Session, navigator Navigator, loginRoute string, log *zap.Logger) *AuthGuard {
	return &AuthGuard{base: newBase(session, navigator, loginRoute, log)}
}

// CanActivate never fails; a storage error reads as a missing token.
func (g *AuthGuard) CanActivate(ctx context.Context, target string) Decision {
	log := logger.WithRequestID(ctx, g.logger).With(zap.String("target", target))

	authenticated := g.session.IsAuthenticated()
	token, err := g.session.AccessToken(ctx)
	if err != nil {
		log.Warn("guard: reading access token failed", zap.Error(err))
		token = ""
	}

	if token != "" && !authenticated {
		g.session.RestoreAuthFromStorage(ctx)
	}
	user := g.session.CurrentUser()

	returnTo := url.Values{paramReturnURL: {target}}
	if token == "" {
		log.Debug("guard: no access token")
		return g.deny(ctx, returnTo)
	}

	if g.session.TokenExpiryInfo(ctx).IsExpired {
		log.Info("guard: access token expired")
		g.clear(ctx, log)
		returnTo.Set(paramExpired, "true")
		return g.deny(ctx, returnTo)
	}

	if user == nil {
		log.Info("guard: token present without a resolvable user")
		g.clear(ctx, log)
		return g.deny(ctx, returnTo)
	}
	return Decision{Allowed: true}
}

func (g *AuthGuard) clear(ctx context.Context, log *zap.Logger) {
	if err := g.session.ClearAuthData(ctx); err != nil {
		log.Error("guard: clearing session failed", zap.Error(err))
	}
}

// AdminGuard admits users whose role is admin or manager.
type AdminGuard struct {
	base
}

func NewAdminGuard(session Session, navigator Navigator, loginRoute string, log *zap.Logger) *AdminGuard {
	return &AdminGuard{base: newBase(session, navigator, loginRoute, log)}
}

// CanActivate waits for the first session emission. A cancelled ctx denies.
func (g *AdminGuard) CanActivate(ctx context.Context, target string) Decision {
	log := logger.WithRequestID(ctx, g.logger).With(zap.String("target", target))

	updates, unsubscribe := g.session.Subscribe()
	defer unsubscribe()

	var current domain.Session
	select {
	case s, ok := <-updates:
		if ok {
			current = s
		}
	case <-ctx.Done():
		log.Warn("admin guard: no session emission before deadline", zap.Error(ctx.Err()))
	}

	user := domain.UserOf(current)
	if user == nil {
		return g.deny(ctx, nil)
	}
	if !user.HasElevatedRole() {
		log.Info("admin guard: role not permitted", zap.String("role", user.RoleName()))
		return g.deny(ctx, url.Values{paramError: {errAccessDenied}})
	}
	return Decision{Allowed: true}
}

// Chain evaluates guards in order and returns the first denial.
func Chain(guards ...Guard) Guard {
	return chain(guards)
}

type chain []Guard

func (c chain) CanActivate(ctx context.Context, target string) Decision {
	for _, g := range c {
		if d := g.CanActivate(ctx, target); !d.Allowed {
			return d
		}
	}
	return Decision{Allowed: true}
}
