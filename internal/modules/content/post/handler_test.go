package post

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	writeArticle(t, dir, "technology", "edge-caching.mdx", sampleArticle)
	writeArticle(t, dir, "blog", "hello.mdx", "---\ntitle: Hello\ndate: 2025-06-28\ntags: [Go]\nbreaking: true\n---\nHi")
	writeArticle(t, dir, "blog", "archive.mdx", "---\ntitle: Archive\ndate: 2023-01-01\n---\nOld")

	lib := NewLibrary(dir, nil)
	require.NoError(t, lib.Reload(context.Background()))

	h := NewHandler(lib)
	h.now = func() time.Time { return time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC) }

	r := gin.New()
	h.RegisterRoutes(r.Group("/api"))
	return r
}

type listBody struct {
	Data []summary `json:"data"`
}

func getJSON(t *testing.T, r http.Handler, target string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	if out != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec.Code
}

func TestListPosts(t *testing.T) {
	r := newTestRouter(t)

	var body listBody
	require.Equal(t, http.StatusOK, getJSON(t, r, "/api/posts", &body))
	require.Len(t, body.Data, 3)
	assert.Equal(t, "hello", body.Data[0].Slug)

	body = listBody{}
	require.Equal(t, http.StatusOK, getJSON(t, r, "/api/posts?category=blog", &body))
	assert.Len(t, body.Data, 2)

	body = listBody{}
	require.Equal(t, http.StatusOK, getJSON(t, r, "/api/posts?tag=go", &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "hello", body.Data[0].Slug)

	assert.Equal(t, http.StatusBadRequest, getJSON(t, r, "/api/posts?category=gossip", nil))
}

func TestTrendingPosts(t *testing.T) {
	r := newTestRouter(t)

	var body listBody
	require.Equal(t, http.StatusOK, getJSON(t, r, "/api/posts/trending?limit=2", &body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, "hello", body.Data[0].Slug)
	assert.Equal(t, "edge-caching", body.Data[1].Slug)

	body = listBody{}
	require.Equal(t, http.StatusOK, getJSON(t, r, "/api/posts/trending?limit=abc", &body))
	assert.Len(t, body.Data, 3)
}

func TestGetPost(t *testing.T) {
	r := newTestRouter(t)

	var body struct {
		Post    Post      `json:"post"`
		Related []summary `json:"related"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, r, "/api/posts/blog/hello", &body))
	assert.Equal(t, "Hello", body.Post.Title)
	assert.Contains(t, body.Post.Content, "<p>Hi</p>")
	require.Len(t, body.Related, 1)
	assert.Equal(t, "archive", body.Related[0].Slug)

	assert.Equal(t, http.StatusNotFound, getJSON(t, r, "/api/posts/blog/missing", nil))
}

func TestFeaturedAndTags(t *testing.T) {
	r := newTestRouter(t)

	var body listBody
	require.Equal(t, http.StatusOK, getJSON(t, r, "/api/posts/featured", &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "edge-caching", body.Data[0].Slug)

	var tags struct {
		Data []string `json:"data"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, r, "/api/posts/tags", &tags))
	assert.Equal(t, []string{"Go", "cdn", "performance"}, tags.Data)
}
