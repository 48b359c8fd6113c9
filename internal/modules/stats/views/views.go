// Package views counts article page views in Redis, or in memory when
// Redis is not configured.
package views

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/techknowlogia/core/internal/pkg/metrics"
	"github.com/techknowlogia/core/internal/pkg/response"
	"go.uber.org/zap"
)

// HashKey is the Redis hash holding one field per article slug.
const HashKey = "site:views"

const maxSlugLength = 200

// Counter stores per-slug view counts.
type Counter interface {
	Incr(ctx context.Context, slug string) (int64, error)
	All(ctx context.Context) (map[string]int64, error)
}

// hashStore is the subset of the redis client RedisCounter needs.
type hashStore interface {
	HIncrBy(ctx context.Context, key, field string, by int64) (int64, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// RedisCounter keeps counts in a single Redis hash so they survive restarts
// and are shared by every instance.
type RedisCounter struct {
	rdb hashStore
	key string
}

func NewRedisCounter(rdb hashStore) *RedisCounter {
	return &RedisCounter{rdb: rdb, key: HashKey}
}

func (c *RedisCounter) Incr(ctx context.Context, slug string) (int64, error) {
	return c.rdb.HIncrBy(ctx, c.key, slug, 1)
}

func (c *RedisCounter) All(ctx context.Context) (map[string]int64, error) {
	raw, err := c.rdb.HGetAll(ctx, c.key)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(raw))
	for slug, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("views: bad count for %q: %w", slug, err)
		}
		out[slug] = n
	}
	return out, nil
}

// Entry is one article in the GET response, ordered by views descending.
type Entry struct {
	Slug  string `json:"slug"`
	Views int64  `json:"views"`
}

type viewDTO struct {
	Slug string `json:"slug"`
}

type Handler struct {
	counter Counter
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewHandler(counter Counter, m *metrics.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{counter: counter, metrics: m, logger: logger.Named("ViewsHandler")}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/views", h.track)
	rg.GET("/views", h.list)
}

func (h *Handler) track(c *gin.Context) {
	var dto viewDTO
	_ = c.ShouldBindJSON(&dto)
	slug := strings.TrimSpace(dto.Slug)
	if slug == "" {
		response.BadRequest(c, "Slug is required")
		return
	}
	if len(slug) > maxSlugLength {
		response.BadRequest(c, "Slug is too long")
		return
	}
	n, err := h.counter.Incr(c.Request.Context(), slug)
	if err != nil {
		h.logger.Error("track view failed", zap.String("slug", slug), zap.Error(err))
		response.InternalError(c)
		return
	}
	h.metrics.RecordView()
	response.OK(c, gin.H{"slug": slug, "views": n, "success": true})
}

func (h *Handler) list(c *gin.Context) {
	counts, err := h.counter.All(c.Request.Context())
	if err != nil {
		h.logger.Error("fetch views failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	entries, total := Rank(counts)
	response.OK(c, gin.H{"views": entries, "total": total, "articles": len(entries)})
}

// Rank orders counts by views descending, then slug, and sums them.
func Rank(counts map[string]int64) ([]Entry, int64) {
	entries := make([]Entry, 0, len(counts))
	var total int64
	for slug, n := range counts {
		entries = append(entries, Entry{Slug: slug, Views: n})
		total += n
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Views == entries[j].Views {
			return entries[i].Slug < entries[j].Slug
		}
		return entries[i].Views > entries[j].Views
	})
	return entries, total
}
