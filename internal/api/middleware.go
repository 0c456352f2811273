package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type ctxKey int

const webhookOutcomeKey ctxKey = 0

// webhookOutcome is the per-request slot the webhook handler fills so
// the request log line can carry message_id/dup/result.
type webhookOutcome struct {
	result    string
	messageID string
	duplicate bool
}

func outcomeFromContext(ctx context.Context) *webhookOutcome {
	o, _ := ctx.Value(webhookOutcomeKey).(*webhookOutcome)
	return o
}

// outcomeMiddleware is the single accounting point of the server: it
// feeds the request counter and latency histogram and emits exactly
// one structured log line per request, whatever the outcome.
func (s *Server) outcomeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// One fresh correlation id per request.
		reqID := uuid.NewString()

		outcome := &webhookOutcome{}
		ctx := context.WithValue(r.Context(), webhookOutcomeKey, outcome)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		latencyMS := float64(time.Since(start).Microseconds()) / 1000.0

		s.recorder.ObserveRequest(r.URL.Path, status, latencyMS)

		args := []any{
			"request_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"latency_ms", latencyMS,
		}
		if outcome.result != "" {
			if outcome.messageID != "" {
				args = append(args, "message_id", outcome.messageID)
			}
			args = append(args, "dup", outcome.duplicate, "result", outcome.result)
		}
		s.logger.Info("request processed", args...)
	})
}
