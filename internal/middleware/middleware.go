package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

const requestIDHeader = "X-Request-ID"

// RequestID assigns each request an id, echoes it in the response, and logs
// start/completion with timing.
func RequestID(logger zerolog.Logger, next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()

		requestID := string(ctx.Request.Header.Peek(requestIDHeader))
		if requestID == "" {
			requestID = uuid.New().String()
		}
		ctx.Response.Header.Set(requestIDHeader, requestID)

		loggerWithID := logger.With().Str("request_id", requestID).Logger()
		loggerWithID.Info().
			Str("method", string(ctx.Method())).
			Str("path", string(ctx.Path())).
			Str("remote_addr", ctx.RemoteAddr().String()).
			Msg("request started")

		next(ctx)

		duration := time.Since(start)
		loggerWithID.Info().
			Str("method", string(ctx.Method())).
			Str("path", string(ctx.Path())).
			Int("status", ctx.Response.StatusCode()).
			Int64("duration_ms", duration.Milliseconds()).
			Dur("duration", duration).
			Msg("request completed")
	}
}
