package middleware

import (
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/qcconsole/internal/guard"
	"github.com/fastygo/qcconsole/pkg/httpcontext"
	"github.com/fastygo/qcconsole/pkg/logger"
)

// Guard gates a handler behind g. A denied request is answered with
// 302 Found pointing at the guard's redirect.
func Guard(g guard.Guard, adapter *httpcontext.Adapter, log *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if log == nil {
		log = zap.NewNop()
	}
	if adapter == nil {
		adapter = httpcontext.NewAdapter(0)
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			stdCtx, cancel := adapter.Attach(ctx)
			target := string(ctx.RequestURI())
			decision := g.CanActivate(stdCtx, target)
			cancel()

			if !decision.Allowed {
				logger.WithRequestID(stdCtx, log).Debug("route denied",
					zap.String("target", target),
					zap.String("redirect", decision.Redirect),
				)
				ctx.Response.Header.Set(fasthttp.HeaderLocation, decision.Redirect)
				ctx.SetStatusCode(fasthttp.StatusFound)
				return
			}
			next(ctx)
		}
	}
}
