package subscribe

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/techknowlogia/core/internal/models"
)

func allowAll(c *gin.Context) { c.Next() }

func newAdminRouter(t *testing.T) (*gin.Engine, *fixture) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := newFixture(t)
	h := NewAdminHandler(f.svc, nil)
	h.now = f.clock.Now
	r := gin.New()
	h.RegisterRoutes(r.Group("/api"), allowAll)
	return r, f
}

// seed creates one subscriber per status, a minute apart.
func seed(t *testing.T, f *fixture) {
	t.Helper()
	f.subscribe(t, "pending@example.com")
	f.clock.Advance(time.Minute)

	f.subscribe(t, "active@example.com")
	_, err := f.svc.ConfirmSubscription(context.Background(), f.notifier.lastConfirmToken(t))
	require.NoError(t, err)
	f.clock.Advance(time.Minute)

	gone := f.subscribe(t, "gone@example.com")
	tok, err := f.signer.Sign(gone.Subscriber.ID)
	require.NoError(t, err)
	_, err = f.svc.Unsubscribe(context.Background(), tok, testBaseURL)
	require.NoError(t, err)
}

type adminListBody struct {
	Data       []adminRow `json:"data"`
	Pagination struct {
		Total       int64 `json:"total"`
		TotalPage   int   `json:"total_page"`
		HasNextPage bool  `json:"has_next_page"`
	} `json:"pagination"`
	Counts Counts `json:"counts"`
}

func TestAdminList(t *testing.T) {
	r, f := newAdminRouter(t)
	seed(t, f)

	rec := doRequest(r, http.MethodGet, "/api/admin/subscribers", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body adminListBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 3)
	assert.Equal(t, "gone@example.com", body.Data[0].Email)
	assert.Equal(t, "pending@example.com", body.Data[2].Email)
	assert.Equal(t, Counts{Total: 3, Active: 1, Pending: 1, Unsubscribed: 1}, body.Counts)
	assert.NotContains(t, rec.Body.String(), "confirmTokenHash")

	rec = doRequest(r, http.MethodGet, "/api/admin/subscribers?status=active", "", nil)
	body = adminListBody{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, models.SubscriberActive, body.Data[0].Status)
	assert.NotNil(t, body.Data[0].ConfirmedAt)
	assert.Equal(t, int64(1), body.Pagination.Total)
	assert.Equal(t, int64(3), body.Counts.Total)

	rec = doRequest(r, http.MethodGet, "/api/admin/subscribers?status=bogus&size=2", "", nil)
	body = adminListBody{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Data, 2)
	assert.Equal(t, 2, body.Pagination.TotalPage)
	assert.True(t, body.Pagination.HasNextPage)
}

func TestAdminExportCSV(t *testing.T) {
	r, f := newAdminRouter(t)
	seed(t, f)

	rec := doRequest(r, http.MethodGet, "/api/admin/subscribers?format=csv", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="subscribers-2026-03-01.csv"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"))

	rows, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{"gone@example.com", models.SubscriberUnsubscribed, "2026-03-01T12:02:00.000Z", "", "2026-03-01T12:02:00.000Z"}, rows[1])
	assert.Equal(t, "2026-03-01T12:01:00.000Z", rows[2][3])
}

func TestAdminDelete(t *testing.T) {
	r, f := newAdminRouter(t)
	res := f.subscribe(t, "a@example.com")
	id := res.Subscriber.ID

	assert.Equal(t, http.StatusBadRequest, doRequest(r, http.MethodDelete, "/api/admin/subscribers", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, doRequest(r, http.MethodDelete, "/api/admin/subscribers/nope", "", nil).Code)
	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodDelete, "/api/admin/subscribers/"+id, "", nil).Code)
	assert.Equal(t, http.StatusNotFound, doRequest(r, http.MethodDelete, "/api/admin/subscribers?id="+id, "", nil).Code)

	_, err := f.store.FindByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdminRoutesRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)
	r := gin.New()
	NewAdminHandler(f.svc, nil).RegisterRoutes(r.Group("/api"), func(c *gin.Context) {
		c.AbortWithStatus(http.StatusUnauthorized)
	})
	assert.Equal(t, http.StatusUnauthorized, doRequest(r, http.MethodGet, "/api/admin/subscribers", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(r, http.MethodDelete, "/api/admin/subscribers/x", "", nil).Code)
}
