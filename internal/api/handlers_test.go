package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyftr/webhookd/internal/message"
	"github.com/lyftr/webhookd/internal/metrics"
	"github.com/lyftr/webhookd/internal/storage"
	"github.com/lyftr/webhookd/internal/webhook"
)

const testSecret = "test-secret"

// signBody derives the X-Signature value independently of the
// verifier under test.
func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

type testEnv struct {
	handler http.Handler
	secret  string
}

func newTestEnv(t *testing.T, secret string) *testEnv {
	t.Helper()

	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	store := message.NewStore(db)
	recorder := metrics.NewRecorder()
	pipeline := webhook.NewPipeline(secret, store, recorder, logger)

	server := New(
		Config{Listen: "127.0.0.1:0", SecretConfigured: secret != ""},
		pipeline,
		store,
		recorder,
		func(ctx context.Context) error { return storage.Ping(ctx, db) },
		logger,
	)

	return &testEnv{handler: server.setupRoutes(), secret: secret}
}

func (e *testEnv) do(method, target string, body []byte, sign bool) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if sign {
		req.Header.Set("X-Signature", signBody(e.secret, body))
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) postWebhook(t *testing.T, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(http.MethodPost, "/webhook", body, true)
}

func webhookBody(id, from, ts string) []byte {
	return []byte(fmt.Sprintf(`{"message_id":%q,"from":%q,"to":"+14155550100","ts":%q,"text":"Hello"}`, id, from, ts))
}

func TestWebhookCreatedThenDuplicate(t *testing.T) {
	env := newTestEnv(t, testSecret)
	body := webhookBody("m1", "+919876543210", "2025-01-15T10:00:00Z")

	for i := 0; i < 2; i++ {
		rec := env.postWebhook(t, body)
		require.Equal(t, http.StatusOK, rec.Code, "delivery %d", i+1)
		var resp webhook.StatusResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "ok", resp.Status)
	}

	rec := env.do(http.MethodGet, "/messages", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	var list ListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Equal(t, 1, list.Total, "duplicate delivery must not add a row")
}

func TestWebhookInvalidSignature(t *testing.T) {
	env := newTestEnv(t, testSecret)

	// A body that would also fail validation: 401 (not 422) proves the
	// signature is checked before any parsing.
	body := []byte(`{"message_id":"","from":"no-plus"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Signature", signBody("other-secret", body))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "invalid signature", resp.Detail)

	list := env.do(http.MethodGet, "/messages", nil, false)
	var lr ListResponse
	require.NoError(t, json.NewDecoder(list.Body).Decode(&lr))
	assert.Equal(t, 0, lr.Total, "store must be untouched")
}

func TestWebhookMissingSignatureHeader(t *testing.T) {
	env := newTestEnv(t, testSecret)
	rec := env.do(http.MethodPost, "/webhook", webhookBody("m1", "+1", "2025-01-15T10:00:00Z"), false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookValidationErrorListsFields(t *testing.T) {
	env := newTestEnv(t, testSecret)

	// from missing its + and ts missing its Z: both must be named.
	body := []byte(`{"message_id":"m1","from":"919876543210","to":"+14155550100","ts":"2025-01-15T10:00:00"}`)
	rec := env.postWebhook(t, body)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp webhook.ValidationErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	fields := make([]string, 0, len(resp.Detail))
	for _, f := range resp.Detail {
		fields = append(fields, f.Field)
	}
	assert.Contains(t, fields, "from")
	assert.Contains(t, fields, "ts")
}

func TestMessagesPagination(t *testing.T) {
	env := newTestEnv(t, testSecret)
	for i := 0; i < 5; i++ {
		body := webhookBody(fmt.Sprintf("m%d", i), "+1", fmt.Sprintf("2025-01-15T10:00:0%dZ", i))
		require.Equal(t, http.StatusOK, env.postWebhook(t, body).Code)
	}

	rec := env.do(http.MethodGet, "/messages?limit=2&offset=0", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)

	var list ListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Equal(t, 5, list.Total)
	assert.Equal(t, 2, list.Limit)
	assert.Equal(t, 0, list.Offset)
	require.Len(t, list.Data, 2)
	assert.Equal(t, "m0", list.Data[0].MessageID)
	assert.Equal(t, "m1", list.Data[1].MessageID)
}

func TestMessagesExternalFieldNames(t *testing.T) {
	env := newTestEnv(t, testSecret)
	require.Equal(t, http.StatusOK, env.postWebhook(t, webhookBody("m1", "+919876543210", "2025-01-15T10:00:00Z")).Code)

	rec := env.do(http.MethodGet, "/messages", nil, false)
	var raw struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
	require.Len(t, raw.Data, 1)
	assert.Equal(t, "+919876543210", raw.Data[0]["from"])
	assert.Equal(t, "+14155550100", raw.Data[0]["to"])
	assert.NotContains(t, raw.Data[0], "from_msisdn")
}

func TestMessagesParameterHandling(t *testing.T) {
	env := newTestEnv(t, testSecret)

	t.Run("limit clamped", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/messages?limit=1000", nil, false)
		require.Equal(t, http.StatusOK, rec.Code)
		var list ListResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
		assert.Equal(t, message.MaxLimit, list.Limit)
	})

	t.Run("non-integer limit", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/messages?limit=abc", nil, false)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("non-integer offset", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/messages?offset=1.5", nil, false)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("negative offset", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/messages?offset=-1", nil, false)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestMessagesFilters(t *testing.T) {
	env := newTestEnv(t, testSecret)
	require.Equal(t, http.StatusOK, env.postWebhook(t, webhookBody("m1", "+111", "2025-01-15T10:00:00Z")).Code)
	require.Equal(t, http.StatusOK, env.postWebhook(t, webhookBody("m2", "+222", "2025-01-16T10:00:00Z")).Code)

	rec := env.do(http.MethodGet, "/messages?from=%2B111", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	var list ListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "m1", list.Data[0].MessageID)

	rec = env.do(http.MethodGet, "/messages?q=HELLO", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Equal(t, 2, list.Total)
}

func TestStatsEmpty(t *testing.T) {
	env := newTestEnv(t, testSecret)

	rec := env.do(http.MethodGet, "/stats", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats StatsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, 0, stats.TotalMessages)
	assert.Equal(t, 0, stats.SendersCount)
	assert.Empty(t, stats.MessagesPerSender)
	assert.Nil(t, stats.FirstMessageTS)
	assert.Nil(t, stats.LastMessageTS)
}

func TestStatsPopulated(t *testing.T) {
	env := newTestEnv(t, testSecret)
	require.Equal(t, http.StatusOK, env.postWebhook(t, webhookBody("m1", "+111", "2025-01-15T10:00:00Z")).Code)
	require.Equal(t, http.StatusOK, env.postWebhook(t, webhookBody("m2", "+111", "2025-01-16T10:00:00Z")).Code)
	require.Equal(t, http.StatusOK, env.postWebhook(t, webhookBody("m3", "+222", "2025-01-17T10:00:00Z")).Code)

	rec := env.do(http.MethodGet, "/stats", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats StatsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, 3, stats.TotalMessages)
	assert.Equal(t, 2, stats.SendersCount)
	require.Len(t, stats.MessagesPerSender, 2)
	assert.Equal(t, message.SenderCount{From: "+111", Count: 2}, stats.MessagesPerSender[0])
	require.NotNil(t, stats.FirstMessageTS)
	assert.Equal(t, "2025-01-15T10:00:00Z", *stats.FirstMessageTS)
}

func TestHealthLive(t *testing.T) {
	env := newTestEnv(t, testSecret)
	rec := env.do(http.MethodGet, "/health/live", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestHealthReady(t *testing.T) {
	t.Run("ready with secret and database", func(t *testing.T) {
		env := newTestEnv(t, testSecret)
		rec := env.do(http.MethodGet, "/health/ready", nil, false)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp HealthResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "ready", resp.Status)
	})

	t.Run("not ready without secret", func(t *testing.T) {
		env := newTestEnv(t, "")
		rec := env.do(http.MethodGet, "/health/ready", nil, false)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestMetricsExposition(t *testing.T) {
	env := newTestEnv(t, testSecret)
	require.Equal(t, http.StatusOK, env.postWebhook(t, webhookBody("m1", "+1", "2025-01-15T10:00:00Z")).Code)

	rec := env.do(http.MethodGet, "/metrics", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `webhook_requests_total{result="created"} 1`), "exposition:\n%s", body)
	assert.Contains(t, body, "http_requests_total")
	assert.Contains(t, body, "request_latency_ms_bucket")
}

func TestWebhookPayloadTooLarge(t *testing.T) {
	env := newTestEnv(t, testSecret)
	body := bytes.Repeat([]byte("a"), int(DefaultMaxBodySize)+1)
	rec := env.do(http.MethodPost, "/webhook", body, true)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
