package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/techknowlogia/core/internal/pkg/cron"
	pkgmail "github.com/techknowlogia/core/internal/pkg/mail"
)

type fakeMailer struct {
	sent []pkgmail.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg pkgmail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func newRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterPublic(r)
	h.RegisterAdmin(r.Group("/api"), func(c *gin.Context) { c.Next() })
	return r
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := NewHandler("techknowlogia-core", nil, nil, nil)
	h.now = func() time.Time { return time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC) }
	h.AddCheck("store", func(context.Context) error { return nil })
	r := newRouter(h)

	rec := do(r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status    string          `json:"status"`
		Timestamp string          `json:"timestamp"`
		Service   string          `json:"service"`
		Checks    map[string]bool `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "2026-02-03T04:05:06Z", body.Timestamp)
	assert.Equal(t, "techknowlogia-core", body.Service)
	assert.Equal(t, map[string]bool{"store": true}, body.Checks)

	h.AddCheck("redis", func(context.Context) error { return errors.New("down") })
	rec = do(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"degraded"`)
}

func TestCronRoutes(t *testing.T) {
	sched := cron.New(nil)
	ran := make(chan struct{}, 1)
	require.NoError(t, sched.Register(cron.Job{
		Name:     "reload_content",
		Interval: time.Hour,
		Fn: func(context.Context) error {
			ran <- struct{}{}
			return nil
		},
	}))
	r := newRouter(NewHandler("svc", sched, nil, nil))

	rec := do(r, http.MethodGet, "/api/health/cron", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reload_content"`)

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/health/cron/run/reload_content", "").Code)
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("job was not triggered")
	}
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/api/health/cron/run/nope", "").Code)
}

func TestEmailTest(t *testing.T) {
	mailer := &fakeMailer{}
	r := newRouter(NewHandler("svc", nil, mailer, nil))

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/health/email/test", `{"to":"nope"}`).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/health/email/test", `{"to":"ops@example.com"}`).Code)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, []string{"ops@example.com"}, mailer.sent[0].To)

	mailer.err = errors.New("provider said no")
	rec := do(r, http.MethodPost, "/api/health/email/test", `{"to":"ops@example.com"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.NotContains(t, rec.Body.String(), "provider said no")

	r = newRouter(NewHandler("svc", nil, nil, nil))
	assert.Equal(t, http.StatusUnprocessableEntity, do(r, http.MethodPost, "/api/health/email/test", `{"to":"ops@example.com"}`).Code)
}
