package post

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/techknowlogia/core/internal/pkg/response"
)

const (
	defaultFeaturedLimit = 3
	defaultRelatedLimit  = 3
	maxListLimit         = 50
)

// Handler serves the article library over HTTP.
type Handler struct {
	lib *Library
	now func() time.Time
}

func NewHandler(lib *Library) *Handler {
	return &Handler{lib: lib, now: time.Now}
}

// RegisterRoutes mounts post routes onto the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	posts := rg.Group("/posts")

	posts.GET("", h.list)
	posts.GET("/trending", h.trending)
	posts.GET("/featured", h.featured)
	posts.GET("/tags", h.tags)
	posts.GET("/:category/:slug", h.get)
}

// list GET /posts?category=&tag=
func (h *Handler) list(c *gin.Context) {
	category := strings.TrimSpace(c.Query("category"))
	tag := strings.TrimSpace(c.Query("tag"))

	var posts []Post
	if category != "" {
		if !IsCategory(category) {
			response.BadRequest(c, "Unknown category")
			return
		}
		posts = h.lib.ByCategory(category)
	} else {
		posts = h.lib.All()
	}

	if tag != "" {
		filtered := posts[:0:0]
		for _, p := range posts {
			if hasTag(p, tag) {
				filtered = append(filtered, p)
			}
		}
		posts = filtered
	}
	response.OK(c, toSummaries(posts))
}

// trending GET /posts/trending?limit=
func (h *Handler) trending(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), DefaultTrendingLimit)
	response.OK(c, toSummaries(Trending(h.lib.All(), h.now(), limit)))
}

// featured GET /posts/featured?limit=
func (h *Handler) featured(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), defaultFeaturedLimit)
	response.OK(c, toSummaries(h.lib.Featured(limit)))
}

// tags GET /posts/tags
func (h *Handler) tags(c *gin.Context) {
	response.OK(c, h.lib.Tags())
}

// get GET /posts/:category/:slug
func (h *Handler) get(c *gin.Context) {
	p, ok := h.lib.Get(c.Param("category"), c.Param("slug"))
	if !ok {
		response.NotFoundMsg(c, "Post not found")
		return
	}
	response.OK(c, gin.H{
		"post":    p,
		"related": toSummaries(h.lib.Related(p, defaultRelatedLimit)),
	})
}

func hasTag(p Post, tag string) bool {
	for _, t := range p.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// parseLimit reads a positive limit, capped at maxListLimit.
func parseLimit(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return def
	}
	return min(n, maxListLimit)
}
