package middlewares

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader     = "X-Request-Id"
	correlationIDHeader = "X-Correlation-Id"

	CtxRequestID     = "request_id"
	CtxCorrelationID = "correlation_id"
)

// RequestContext assigns a request id and correlation id, echoing inbound
// values when the caller supplied them, and reflects both on the response.

func RequestContext() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		requestID := ctx.GetHeader(requestIDHeader)

		if requestID == "" {
			requestID = uuid.NewString()
		}

		correlationID := ctx.GetHeader(correlationIDHeader)

		if correlationID == "" {
			correlationID = uuid.NewString()
		}

		ctx.Writer.Header().Set(requestIDHeader, requestID)
		ctx.Writer.Header().Set(correlationIDHeader, correlationID)

		ctx.Set(CtxRequestID, requestID)
		ctx.Set(CtxCorrelationID, correlationID)

		ctx.Next()
	}
}

func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		route := ctx.FullPath()
		if route == "" {
			route = ctx.Request.URL.Path // fallback (e.g. 404)
		}

		method := ctx.Request.Method

		ctx.Next()

		lat := time.Since(start)
		status := ctx.Writer.Status()

		reqID := ctx.GetString(CtxRequestID)
		corrID := ctx.GetString(CtxCorrelationID)

		log.InfoContext(ctx.Request.Context(), "http_request",
			"method", method,
			"route", route,
			"status", status,
			"latency_ms", lat.Milliseconds(),
			"request_id", reqID,
			"correlation_id", corrID,
		)
	}
}
