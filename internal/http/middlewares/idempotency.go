package middlewares

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/geocoder89/userhub/internal/idempotency"
	"github.com/geocoder89/userhub/internal/observability"
	"github.com/gin-gonic/gin"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyHitHeader = "X-Idempotency-Hit"
)

// bodyCapture tees the handler's response into a buffer while still writing
// it to the client, so the gate can cache exactly the bytes that were sent.
type bodyCapture struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyCapture) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyCapture) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency applies the dedup gate to POST requests carrying an
// Idempotency-Key header. Replays are served from the cache byte for byte
// with X-Idempotency-Hit set; a key reused with a different body is rejected
// with 422 before the handler runs.

func Idempotency(gate *idempotency.Gate, prom *observability.Prom) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method != http.MethodPost {
			ctx.Next()
			return
		}

		key := ctx.GetHeader(idempotencyKeyHeader)

		if key == "" {
			ctx.Next()
			return
		}

		body, err := io.ReadAll(ctx.Request.Body)

		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"code":    "invalid_request",
					"message": "Could not read request body",
				},
			})
			return
		}

		// restore the body for the handler chain
		ctx.Request.Body = io.NopCloser(bytes.NewReader(body))

		scope := ctx.FullPath()

		if scope == "" {
			scope = ctx.Request.URL.Path
		}

		res, err := gate.Execute(ctx.Request.Context(), key, scope, idempotency.Fingerprint(body), func(context.Context) (int, []byte, error) {
			capture := &bodyCapture{ResponseWriter: ctx.Writer}
			ctx.Writer = capture

			ctx.Next()

			ctx.Writer = capture.ResponseWriter

			return capture.Status(), capture.buf.Bytes(), nil
		})

		if err != nil {
			if errors.Is(err, idempotency.ErrKeyConflict) {
				ctx.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
					"error": gin.H{
						"code":    "idempotency_key_conflict",
						"message": "Same key used with different request body",
					},
				})
				return
			}

			ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": gin.H{
					"code":    "internal_error",
					"message": "Could not process request",
				},
			})
			return
		}

		if res.Replayed {
			if prom != nil {
				prom.IdempotencyHits.WithLabelValues(scope).Inc()
			}

			ctx.Header(idempotencyHitHeader, "true")
			ctx.Data(res.Status, "application/json", res.Body)
			ctx.Abort()
		}
	}
}
