package subscribe

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/techknowlogia/core/internal/models"
	"github.com/techknowlogia/core/internal/pkg/metrics"
	"github.com/techknowlogia/core/internal/pkg/pagination"
	"github.com/techknowlogia/core/internal/pkg/response"
	"go.uber.org/zap"
)

var csvHeader = []string{"Email", "Status", "Subscribed At", "Confirmed At", "Unsubscribed At"}

// isoLayout matches JavaScript's Date.toISOString.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// Counts summarizes the subscriber base by status.
type Counts struct {
	Total        int64 `json:"total"`
	Active       int64 `json:"active"`
	Pending      int64 `json:"pending"`
	Unsubscribed int64 `json:"unsubscribed"`
}

// ListSubscribers returns one page of subscribers, newest first. An empty
// status lists everyone.
func (s *Service) ListSubscribers(ctx context.Context, filter ListFilter) ([]models.SubscriberModel, int64, error) {
	subs, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	total, err := s.store.Count(ctx, filter.Status)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return subs, total, nil
}

func (s *Service) Counts(ctx context.Context) (Counts, error) {
	var counts Counts
	for _, c := range []struct {
		status string
		dst    *int64
	}{
		{"", &counts.Total},
		{models.SubscriberActive, &counts.Active},
		{models.SubscriberPending, &counts.Pending},
		{models.SubscriberUnsubscribed, &counts.Unsubscribed},
	} {
		n, err := s.store.Count(ctx, c.status)
		if err != nil {
			return Counts{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		*c.dst = n
	}
	return counts, nil
}

// DeleteSubscriber physically removes a record. It is the only deletion path.
func (s *Service) DeleteSubscriber(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrMissingID
	}
	err := s.store.Delete(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return ErrSubscriberNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	s.metrics.RecordSubscribeEvent(metrics.EventAdminDeleted)
	s.logger.Info("subscriber deleted by admin", zap.String("id", id))
	return nil
}

// AdminHandler serves the subscriber dashboard API.
type AdminHandler struct {
	svc    *Service
	logger *zap.Logger
	now    func() time.Time
}

func NewAdminHandler(svc *Service, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{svc: svc, logger: logger.Named("SubscribeAdmin"), now: time.Now}
}

// RegisterRoutes mounts admin routes; every route requires authMW.
func (h *AdminHandler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/admin/subscribers", authMW)
	g.GET("", h.list)
	g.DELETE("", h.deleteByQuery) // DELETE /admin/subscribers?id=...
	g.DELETE("/:id", h.delete)
}

// list GET /admin/subscribers?status=&page=&size=&format=csv
func (h *AdminHandler) list(c *gin.Context) {
	ctx := c.Request.Context()
	status := statusFilter(c.Query("status"))

	if c.Query("format") == "csv" {
		h.exportCSV(c, status)
		return
	}

	q := pagination.FromContext(c)
	subs, total, err := h.svc.ListSubscribers(ctx, ListFilter{Status: status, Offset: q.Offset(), Limit: q.Size})
	if err != nil {
		h.logger.Error("list subscribers failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	counts, err := h.svc.Counts(ctx)
	if err != nil {
		h.logger.Error("count subscribers failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	response.Paged(c, toAdminRows(subs), q.Meta(total), counts)
}

func (h *AdminHandler) exportCSV(c *gin.Context, status string) {
	subs, _, err := h.svc.ListSubscribers(c.Request.Context(), ListFilter{Status: status})
	if err != nil {
		h.logger.Error("export subscribers failed", zap.Error(err))
		response.InternalError(c)
		return
	}

	filename := fmt.Sprintf("subscribers-%s.csv", h.now().UTC().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write(csvHeader)
	for _, sub := range subs {
		_ = w.Write([]string{
			sub.Email,
			sub.Status,
			isoTime(&sub.CreatedAt),
			isoTime(sub.ConfirmedAt),
			isoTime(sub.UnsubscribedAt),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		h.logger.Warn("write csv failed", zap.Error(err))
	}
}

// delete DELETE /admin/subscribers/:id
func (h *AdminHandler) delete(c *gin.Context) {
	h.deleteID(c, c.Param("id"))
}

func (h *AdminHandler) deleteByQuery(c *gin.Context) {
	h.deleteID(c, c.Query("id"))
}

func (h *AdminHandler) deleteID(c *gin.Context, id string) {
	err := h.svc.DeleteSubscriber(c.Request.Context(), id)
	switch {
	case err == nil:
		response.OK(c, gin.H{"message": "Subscriber deleted"})
	case errors.Is(err, ErrMissingID):
		response.BadRequest(c, "Missing subscriber id")
	case errors.Is(err, ErrSubscriberNotFound):
		response.NotFoundMsg(c, "Subscriber not found")
	default:
		h.logger.Error("delete subscriber failed", zap.String("id", id), zap.Error(err))
		response.InternalError(c)
	}
}

type adminRow struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Status         string     `json:"status"`
	Source         string     `json:"source"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	ConfirmedAt    *time.Time `json:"confirmedAt,omitempty"`
	UnsubscribedAt *time.Time `json:"unsubscribedAt,omitempty"`
}

func toAdminRows(subs []models.SubscriberModel) []adminRow {
	rows := make([]adminRow, len(subs))
	for i, s := range subs {
		rows[i] = adminRow{
			ID:             s.ID,
			Email:          s.Email,
			Status:         s.Status,
			Source:         s.Source,
			CreatedAt:      s.CreatedAt,
			UpdatedAt:      s.UpdatedAt,
			ConfirmedAt:    s.ConfirmedAt,
			UnsubscribedAt: s.UnsubscribedAt,
		}
	}
	return rows
}

// statusFilter ignores values other than the three lifecycle states.
func statusFilter(raw string) string {
	switch raw {
	case models.SubscriberActive, models.SubscriberPending, models.SubscriberUnsubscribed:
		return raw
	default:
		return ""
	}
}

func isoTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(isoLayout)
}
