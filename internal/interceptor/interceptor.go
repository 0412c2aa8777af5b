// Package interceptor wraps every call the console makes to the backend. It
// injects the bearer token, runs pluggable request/response validators, and
// reduces failures to domain.APIError while emitting the matching toast.
package interceptor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/qcconsole/domain"
	"github.com/fastygo/qcconsole/internal/notify"
	"github.com/fastygo/qcconsole/pkg/logger"
)

// Doer is satisfied by *fasthttp.Client and *fasthttp.HostClient.
type Doer interface {
	DoDeadline(req *fasthttp.Request, resp *fasthttp.Response, deadline time.Time) error
}

// Session is the part of the session manager the interceptor needs.
type Session interface {
	AccessToken(ctx context.Context) (string, error)
	HandleTokenExpired(ctx context.Context) error
}

// HTTPError is returned untouched for responses the caller handles itself
// (a rejected login).
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("backend responded %d", e.StatusCode)
}

type Options struct {
	LoginPath          string
	Timeout            time.Duration
	RequestValidators  *Registry
	ResponseValidators *Registry
}

type Interceptor struct {
	doer      Doer
	session   Session
	notifier  notify.Notifier
	logger    *zap.Logger
	loginPath string
	timeout   time.Duration
	requests  *Registry
	responses *Registry
}

func New(doer Doer, session Session, notifier notify.Notifier, logger *zap.Logger, opts Options) *Interceptor {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.LoginPath == "" {
		opts.LoginPath = "/auth/login"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestValidators == nil {
		opts.RequestValidators = NewRegistry()
	}
	if opts.ResponseValidators == nil {
		opts.ResponseValidators = NewRegistry()
	}
	return &Interceptor{
		doer:      doer,
		session:   session,
		notifier:  notifier,
		logger:    logger,
		loginPath: opts.LoginPath,
		timeout:   opts.Timeout,
		requests:  opts.RequestValidators,
		responses: opts.ResponseValidators,
	}
}

// Do sends req and fills resp. A non-nil error is one of *domain.ValidationError
// (nothing was sent), *HTTPError (login rejected) or *domain.APIError.
func (i *Interceptor) Do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	method := string(req.Header.Method())
	urlPath := string(req.URI().Path())
	log := logger.WithRequestID(ctx, i.logger).With(zap.String("method", method), zap.String("path", urlPath))

	if v := i.requests.Lookup(method, urlPath); v != nil {
		if fieldErrors := v(req.Body()); len(fieldErrors) > 0 {
			log.Debug("request rejected by local validator", zap.Int("fields", len(fieldErrors)))
			return &domain.ValidationError{
				Endpoint:    method + " " + urlPath,
				Message:     "request body failed validation",
				FieldErrors: fieldErrors,
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return domain.WrapError(domain.ErrCodeUnavailable, "request cancelled", err)
	}

	i.authorize(ctx, req, log)
	if reqID := logger.RequestID(ctx); reqID != "" {
		req.Header.Set("X-Request-ID", reqID)
	}

	deadline := time.Now().Add(i.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := i.doer.DoDeadline(req, resp, deadline); err != nil {
		log.Warn("backend unreachable", zap.Error(err))
		apiErr := &domain.APIError{
			ErrorCode:  statusCode(0),
			Message:    "The server could not be reached.",
			StatusCode: 0,
		}
		notify.Error(i.notifier, "Error", "An unexpected error occurred.")
		return apiErr
	}

	status := resp.StatusCode()
	if status < fasthttp.StatusBadRequest {
		i.validateResponse(method, urlPath, resp.Body(), log)
		return nil
	}

	body := append([]byte(nil), resp.Body()...)
	if status == fasthttp.StatusUnauthorized && i.isLogin(urlPath) {
		return &HTTPError{StatusCode: status, Body: body}
	}

	out := classify(status, body)
	if out.expire {
		if i.session != nil {
			if err := i.session.HandleTokenExpired(ctx); err != nil {
				log.Error("clearing expired session failed", zap.Error(err))
			}
		}
		log.Info("backend rejected credentials")
	} else {
		log.Info("backend request failed", zap.Int("status", status), zap.String("error_code", out.err.ErrorCode))
	}
	i.notifier.Notify(out.toast)
	return out.err
}

func (i *Interceptor) authorize(ctx context.Context, req *fasthttp.Request, log *zap.Logger) {
	if i.session == nil || len(req.Header.Peek(fasthttp.HeaderAuthorization)) > 0 {
		return
	}
	token, err := i.session.AccessToken(ctx)
	if err != nil {
		log.Warn("reading access token failed", zap.Error(err))
		return
	}
	if token != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+token)
	}
}

// validateResponse never alters the response; failures are only logged.
func (i *Interceptor) validateResponse(method, urlPath string, body []byte, log *zap.Logger) {
	v := i.responses.Lookup(method, urlPath)
	if v == nil {
		return
	}
	if fieldErrors := v(body); len(fieldErrors) > 0 {
		log.Warn("response failed schema validation", zap.Any("fields", fieldErrors))
	}
}

func (i *Interceptor) isLogin(urlPath string) bool {
	return strings.Contains(urlPath, i.loginPath)
}
