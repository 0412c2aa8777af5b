package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/qcconsole/api/transport"
	"github.com/fastygo/qcconsole/domain"
	"github.com/fastygo/qcconsole/internal/infrastructure/monitor"
	"github.com/fastygo/qcconsole/pkg/httpcontext"
)

// StatusSource is satisfied by *monitor.Monitor.
type StatusSource interface {
	GetStatus() monitor.Status
	IsOnline() bool
}

// SessionSource reports the session state without touching storage.
type SessionSource interface {
	Session() domain.Session
}

type HealthHandler struct {
	baseHandler
	monitor  StatusSource
	sessions SessionSource
}

func NewHealthHandler(mon StatusSource, sessions SessionSource, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		monitor:     mon,
		sessions:    sessions,
	}
}

// @Summary Health check
// @Tags health
// @Router /health [get]
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	status := h.monitor.GetStatus()
	payload := map[string]interface{}{
		"timestamp":  time.Now().UTC(),
		"last_check": status.LastCheck,
		"services":   status.Components,
	}
	if h.sessions != nil {
		payload["session"] = domain.State(h.sessions.Session())
	}

	if h.monitor.IsOnline() {
		h.respondSuccess(ctx, http.StatusOK, payload)
		return
	}
	h.respondJSON(ctx, http.StatusServiceUnavailable, transport.NewError("DEGRADED", "dependencies unhealthy", payload))
}
