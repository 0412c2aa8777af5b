package handler

import (
	"context"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/qcconsole/internal/backend"
	"github.com/fastygo/qcconsole/pkg/httpcontext"
)

// Forwarder relays a call to the backend.
type Forwarder interface {
	Forward(ctx context.Context, method, path string, query, body []byte) (*backend.Response, error)
}

// ProxyHandler forwards console data routes to the backend, stripping the
// console prefix. Errors come back already classified by the interceptor.
type ProxyHandler struct {
	baseHandler
	backend Forwarder
	prefix  string
}

func NewProxyHandler(fwd Forwarder, prefix string, adapter *httpcontext.Adapter, logger *zap.Logger) *ProxyHandler {
	return &ProxyHandler{
		baseHandler: newBaseHandler(adapter, logger),
		backend:     fwd,
		prefix:      strings.TrimRight(prefix, "/"),
	}
}

func (h *ProxyHandler) Forward(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	path := strings.TrimPrefix(string(ctx.Path()), h.prefix)
	if path == "" {
		path = "/"
	}
	resp, err := h.backend.Forward(stdCtx, string(ctx.Method()), path, ctx.QueryArgs().QueryString(), ctx.PostBody())
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}

	if resp.ContentType != "" {
		ctx.Response.Header.SetContentType(resp.ContentType)
	}
	ctx.SetStatusCode(resp.StatusCode)
	ctx.SetBody(resp.Body)
}
