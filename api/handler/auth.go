package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/qcconsole/api/transport"
	"github.com/fastygo/qcconsole/domain"
	"github.com/fastygo/qcconsole/pkg/httpcontext"
	"github.com/fastygo/qcconsole/pkg/logger"
	authUC "github.com/fastygo/qcconsole/usecase/auth"
)

type AuthHandler struct {
	baseHandler
	sessions *authUC.Manager
}

func NewAuthHandler(sessions *authUC.Manager, adapter *httpcontext.Adapter, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		sessions:    sessions,
	}
}

// @Summary Log in against the QC backend
// @Tags auth
// @Router /auth/login [post]
func (h *AuthHandler) Login(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	var req transport.LoginRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), domain.ErrInvalidPayload.Error(), nil))
		return
	}
	if fieldErrors := req.Validate(); fieldErrors != nil {
		h.respondError(ctx, stdCtx, &domain.ValidationError{Endpoint: "/auth/login", FieldErrors: fieldErrors})
		return
	}

	if _, err := h.sessions.Login(stdCtx, req.Email, req.Password); err != nil {
		logger.WithRequestID(stdCtx, h.logger).Info("login rejected", zap.String("email", req.Email), zap.Error(err))
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, h.view(stdCtx))
}

// @Summary Exchange the refresh token for a new access token
// @Tags auth
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if _, err := h.sessions.Refresh(stdCtx); err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, h.view(stdCtx))
}

// @Summary Log out and clear the stored session
// @Tags auth
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.sessions.Logout(stdCtx); err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, h.view(stdCtx))
}

// @Summary Current session state and token expiry
// @Tags auth
// @Router /auth/session [get]
func (h *AuthHandler) Session(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()
	h.respondSuccess(ctx, http.StatusOK, h.view(stdCtx))
}

// @Summary Login landing page target of guard redirects
// @Tags auth
// @Router /auth/login [get]
func (h *AuthHandler) LoginPage(ctx *fasthttp.RequestCtx) {
	args := ctx.QueryArgs()
	h.respondSuccess(ctx, http.StatusOK, transport.LoginLanding{
		ReturnURL: string(args.Peek("returnUrl")),
		Expired:   string(args.Peek("expired")) == "true",
		Error:     string(args.Peek("error")),
	})
}

func (h *AuthHandler) view(ctx context.Context) transport.SessionView {
	session := h.sessions.Session()
	view := transport.SessionView{
		State:         domain.State(session),
		Authenticated: domain.IsAuthenticated(session),
		User:          domain.UserOf(session),
	}
	token, err := h.sessions.AccessToken(ctx)
	if err == nil && token != "" {
		view.HasStoredTokens = true
		view.Expiry = transport.NewExpiryView(h.sessions.TokenExpiryInfo(ctx))
		view.ExpiringSoon = h.sessions.IsTokenExpiringSoon(ctx)
	}
	return view
}
