package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/qcconsole/internal/notify"
	"github.com/fastygo/qcconsole/pkg/httpcontext"
)

type NotificationHandler struct {
	baseHandler
	queue *notify.Queue
}

func NewNotificationHandler(queue *notify.Queue, adapter *httpcontext.Adapter, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		baseHandler: newBaseHandler(adapter, logger),
		queue:       queue,
	}
}

// @Summary Drain pending toasts
// @Tags notifications
// @Router /api/v1/notifications [get]
func (h *NotificationHandler) Drain(ctx *fasthttp.RequestCtx) {
	h.respondSuccess(ctx, http.StatusOK, h.queue.Drain())
}
