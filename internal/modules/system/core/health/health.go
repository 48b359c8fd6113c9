package health

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/techknowlogia/core/internal/pkg/cron"
	pkgmail "github.com/techknowlogia/core/internal/pkg/mail"
	"github.com/techknowlogia/core/internal/pkg/response"
	"go.uber.org/zap"
)

const checkTimeout = 2 * time.Second

// PingFunc adapts a dependency probe.
type PingFunc func(ctx context.Context) error

// MailSender sends a raw message.
type MailSender interface {
	Send(ctx context.Context, msg pkgmail.Message) error
}

type Handler struct {
	service string
	checks  map[string]PingFunc
	sched   *cron.Scheduler
	mailer  MailSender
	logger  *zap.Logger
	now     func() time.Time
}

func NewHandler(service string, sched *cron.Scheduler, mailer MailSender, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service: service,
		checks:  map[string]PingFunc{},
		sched:   sched,
		mailer:  mailer,
		logger:  logger.Named("Health"),
		now:     time.Now,
	}
}

// AddCheck registers a dependency probed by GET /health.
func (h *Handler) AddCheck(name string, fn PingFunc) {
	if fn != nil {
		h.checks[name] = fn
	}
}

// RegisterPublic mounts GET /health.
func (h *Handler) RegisterPublic(rg gin.IRoutes) {
	rg.GET("/health", h.health)
}

// RegisterAdmin mounts the cron and mail diagnostics behind authMW.
func (h *Handler) RegisterAdmin(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	admin := rg.Group("/health", authMW)
	cronGroup := admin.Group("/cron")
	cronGroup.GET("", h.listJobs)
	cronGroup.POST("/run/:name", h.runJob)

	admin.POST("/email/test", h.testEmail)
}

func (h *Handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	code := http.StatusOK
	results := make(map[string]bool, len(names))
	for _, name := range names {
		err := h.checks[name](ctx)
		results[name] = err == nil
		if err != nil {
			h.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"service":   h.service,
		"checks":    results,
	})
}

func (h *Handler) listJobs(c *gin.Context) {
	if h.sched == nil {
		response.OK(c, []cron.ListItem{})
		return
	}
	response.OK(c, h.sched.List())
}

func (h *Handler) runJob(c *gin.Context) {
	if h.sched == nil {
		response.NotFoundMsg(c, "Job not found")
		return
	}
	if err := h.sched.Run(context.WithoutCancel(c.Request.Context()), c.Param("name")); err != nil {
		if errors.Is(err, cron.ErrJobNotFound) {
			response.NotFoundMsg(c, "Job not found")
			return
		}
		response.InternalError(c)
		return
	}
	response.OK(c, gin.H{"message": "job triggered"})
}

type testEmailDTO struct {
	To string `json:"to" binding:"required,email"`
}

func (h *Handler) testEmail(c *gin.Context) {
	var dto testEmailDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "A valid recipient is required")
		return
	}
	if h.mailer == nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "mail is not configured"})
		return
	}

	err := h.mailer.Send(c.Request.Context(), pkgmail.Message{
		To:      []string{strings.TrimSpace(dto.To)},
		Subject: h.service + " mail test",
		HTML:    "<h1>Mail is configured.</h1><p>If you received this message, transactional email works.</p>",
	})
	if err != nil {
		h.logger.Warn("test email failed", zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "Test email could not be sent"})
		return
	}
	response.OK(c, gin.H{"ok": true})
}
