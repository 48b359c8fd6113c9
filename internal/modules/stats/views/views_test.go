package views

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHash struct {
	mu   sync.Mutex
	data map[string]map[string]int64
	err  error
}

func (f *fakeHash) HIncrBy(_ context.Context, key, field string, by int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	if f.data == nil {
		f.data = map[string]map[string]int64{}
	}
	if f.data[key] == nil {
		f.data[key] = map[string]int64{}
	}
	f.data[key][field] += by
	return f.data[key][field], nil
}

func (f *fakeHash) HGetAll(_ context.Context, key string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]string{}
	for k, v := range f.data[key] {
		out[k] = strconv.FormatInt(v, 10)
	}
	return out, nil
}

func newRouter(h *fakeHash) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(NewRedisCounter(h), nil, nil).RegisterRoutes(r.Group("/api"))
	return r
}

func post(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/views", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestTrackAndList(t *testing.T) {
	h := &fakeHash{}
	r := newRouter(h)

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, post(r, `{"slug":"go-generics"}`).Code)
	}
	rec := post(r, `{"slug":"design-systems"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var tracked struct {
		Slug    string `json:"slug"`
		Views   int64  `json:"views"`
		Success bool   `json:"success"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tracked))
	assert.Equal(t, "design-systems", tracked.Slug)
	assert.EqualValues(t, 1, tracked.Views)
	assert.True(t, tracked.Success)
	assert.EqualValues(t, 3, h.data[HashKey]["go-generics"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/views", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Views    []Entry `json:"views"`
		Total    int64   `json:"total"`
		Articles int     `json:"articles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Equal(t, []Entry{{Slug: "go-generics", Views: 3}, {Slug: "design-systems", Views: 1}}, listed.Views)
	assert.EqualValues(t, 4, listed.Total)
	assert.Equal(t, 2, listed.Articles)
}

func TestTrackRequiresSlug(t *testing.T) {
	r := newRouter(&fakeHash{})
	assert.Equal(t, http.StatusBadRequest, post(r, `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(r, `{"slug":"   "}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(r, `garbage`).Code)
}

func TestStoreFailure(t *testing.T) {
	r := newRouter(&fakeHash{err: errors.New("connection refused")})
	rec := post(r, `{"slug":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestRankTiesBySlug(t *testing.T) {
	entries, total := Rank(map[string]int64{"b": 2, "a": 2, "c": 5})
	assert.Equal(t, []Entry{{"c", 5}, {"a", 2}, {"b", 2}}, entries)
	assert.EqualValues(t, 9, total)
}
