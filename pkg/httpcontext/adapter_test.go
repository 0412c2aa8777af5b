package httpcontext

import (
	"testing"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/fastygo/qcconsole/pkg/logger"
)

func TestAttachKeepsInboundRequestID(t *testing.T) {
	var rc fasthttp.RequestCtx
	rc.Request.SetRequestURI("/api/v1/machines")
	rc.Request.Header.Set(HeaderRequestID, "req-42")
	rc.Request.Header.SetUserAgent("qc-test")

	ctx, cancel := NewAdapter(time.Second).Attach(&rc)
	defer cancel()

	if got := logger.RequestID(ctx); got != "req-42" {
		t.Fatalf("request id = %q", got)
	}
	if got := string(rc.Response.Header.Peek(HeaderRequestID)); got != "req-42" {
		t.Fatalf("response header = %q", got)
	}
	if Route(ctx) != "/api/v1/machines" {
		t.Fatalf("route = %q", Route(ctx))
	}
	if ua, _ := ctx.Value(KeyUserAgent).(string); ua != "qc-test" {
		t.Fatalf("user agent = %q", ua)
	}
	if _, ok := ctx.Deadline(); !ok {
		t.Fatalf("expected a deadline")
	}
}

func TestAttachGeneratesStableRequestID(t *testing.T) {
	var rc fasthttp.RequestCtx
	rc.Request.SetRequestURI("/health")
	adapter := NewAdapter(0)

	first, cancel := adapter.Attach(&rc)
	cancel()
	second, cancel := adapter.Attach(&rc)
	cancel()

	id := logger.RequestID(first)
	if id == "" || id != logger.RequestID(second) {
		t.Fatalf("expected one id per request, got %q and %q", id, logger.RequestID(second))
	}
}
