package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/lyftr/webhookd/internal/message"
)

// handleWebhook handles POST /webhook. It reads the raw body and the
// X-Signature header and hands both to the ingestion pipeline; the
// pipeline's tagged result is forwarded as-is.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	limitedReader := io.LimitReader(r.Body, s.config.MaxBodySize+1)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to read request body")
		return
	}
	if int64(len(body)) > s.config.MaxBodySize {
		s.respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	res := s.pipeline.Process(r.Context(), body, r.Header.Get("X-Signature"))

	if o := outcomeFromContext(r.Context()); o != nil {
		o.result = res.Result
		o.messageID = res.MessageID
		o.duplicate = res.Duplicate
	}

	s.respondJSON(w, res.Status, res.Body)
}

// handleListMessages handles GET /messages.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	filter, limit, offset, err := parseListQuery(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, lerr := s.messages.List(r.Context(), filter, limit, offset)
	if lerr != nil {
		s.logger.Error("list messages failed", "error", lerr)
		s.respondError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}

	s.respondJSON(w, http.StatusOK, ListResponse{
		Data:   items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// parseListQuery translates external query parameters into store
// arguments. Non-integer limit/offset and negative offset are caller
// errors; an out-of-range integer limit is clamped into [1, 100].
func parseListQuery(r *http.Request) (message.Filter, int, int, error) {
	q := r.URL.Query()

	limit := message.DefaultLimit
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return message.Filter{}, 0, 0, fmt.Errorf("invalid parameter: limit must be an integer")
		}
		limit = v
		if limit < message.MinLimit {
			limit = message.MinLimit
		}
		if limit > message.MaxLimit {
			limit = message.MaxLimit
		}
	}

	offset := 0
	if raw := q.Get("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return message.Filter{}, 0, 0, fmt.Errorf("invalid parameter: offset must be an integer")
		}
		if v < 0 {
			return message.Filter{}, 0, 0, fmt.Errorf("invalid parameter: offset must be non-negative")
		}
		offset = v
	}

	filter := message.Filter{
		FromExact:    q.Get("from"),
		Since:        q.Get("since"),
		TextContains: q.Get("q"),
	}
	return filter, limit, offset, nil
}

// handleStats handles GET /stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.messages.Stats(r.Context())
	if err != nil {
		s.logger.Error("stats failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}

	s.respondJSON(w, http.StatusOK, StatsResponse{
		TotalMessages:     st.TotalMessages,
		SendersCount:      st.SendersCount,
		MessagesPerSender: st.PerSender,
		FirstMessageTS:    st.FirstMessageTS,
		LastMessageTS:     st.LastMessageTS,
	})
}

// handleHealthLive handles GET /health/live. Always OK while the
// process is up.
func (s *Server) handleHealthLive(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleHealthReady handles GET /health/ready. Ready requires a
// configured webhook secret and a reachable database.
func (s *Server) handleHealthReady(w http.ResponseWriter, r *http.Request) {
	if !s.config.SecretConfigured {
		s.respondError(w, http.StatusServiceUnavailable, "webhook secret not configured")
		return
	}
	if err := s.ping(r.Context()); err != nil {
		s.logger.Error("readiness probe failed", "error", err)
		s.respondError(w, http.StatusServiceUnavailable, "database not ready")
		return
	}
	s.respondJSON(w, http.StatusOK, HealthResponse{Status: "ready"})
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError sends a JSON error response.
func (s *Server) respondError(w http.ResponseWriter, status int, detail string) {
	s.respondJSON(w, status, ErrorResponse{Detail: detail})
}
