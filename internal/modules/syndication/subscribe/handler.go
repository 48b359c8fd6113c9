package subscribe

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/techknowlogia/core/internal/pkg/response"
	"go.uber.org/zap"
)

const (
	flowConfirm = "confirm"
	flowManage  = "manage"

	actionUnsubscribe = "unsubscribe"
	fallbackBaseURL   = "http://localhost:3000"
)

type SubscribeDTO struct {
	Email  string `json:"email"`
	Source string `json:"source"`
}

type Handler struct {
	svc     *Service
	siteURL string
	logger  *zap.Logger
}

// NewHandler serves the subscription API. siteURL, when set, wins over request headers for links.
func NewHandler(svc *Service, siteURL string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, siteURL: strings.TrimRight(strings.TrimSpace(siteURL), "/"), logger: logger.Named("SubscribeHandler")}
}

// RegisterRoutes mounts the public endpoints. subscribeMW runs before POST /subscribe only.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, subscribeMW ...gin.HandlerFunc) {
	rg.POST("/subscribe", append(subscribeMW, h.subscribe)...)

	g := rg.Group("/subscribers")
	g.GET("/confirm", h.confirm)
	g.GET("/manage", h.manage)
	g.POST("/manage", h.manageAction)
}

func (h *Handler) subscribe(c *gin.Context) {
	var dto SubscribeDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, ErrInvalidEmail.Error())
		return
	}
	res, err := h.svc.Subscribe(c.Request.Context(), SubscribeRequest{
		Email:   dto.Email,
		Source:  dto.Source,
		BaseURL: h.baseURL(c),
	})
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("subscribe failed", zap.Error(err))
		}
		response.Error(c, status, publicMessage(err))
		return
	}
	response.OK(c, gin.H{
		"message": res.Message,
		"status":  res.Subscriber.Status,
		"outcome": res.Outcome,
	})
}

func (h *Handler) confirm(c *gin.Context) {
	res, err := h.svc.ConfirmSubscription(c.Request.Context(), c.Query("token"))
	if err != nil {
		h.renderError(c, err, flowConfirm)
		return
	}
	response.HTML(c, http.StatusOK, renderPage(confirmedPage(res.AlreadyConfirmed, h.homeURL(c))))
}

// manage shows the status page, or with action=unsubscribe a confirmation form.
// GET never mutates so link scanners cannot unsubscribe anyone.
func (h *Handler) manage(c *gin.Context) {
	tok := c.Query("token")
	sub, err := h.svc.ManageSubscription(c.Request.Context(), tok)
	if err != nil {
		h.renderError(c, err, flowManage)
		return
	}
	unsubscribeURL := h.unsubscribeURL(c, tok)
	switch c.Query("action") {
	case "":
		response.HTML(c, http.StatusOK, renderPage(managePage(sub, unsubscribeURL, h.homeURL(c))))
	case actionUnsubscribe:
		response.HTML(c, http.StatusOK, renderPage(confirmUnsubscribePage(sub, unsubscribeURL, h.homeURL(c))))
	default:
		response.HTML(c, http.StatusBadRequest, renderPage(invalidActionPage()))
	}
}

func (h *Handler) manageAction(c *gin.Context) {
	tok := c.Query("token")
	if _, err := h.svc.ManageSubscription(c.Request.Context(), tok); err != nil {
		h.renderError(c, err, flowManage)
		return
	}
	if c.Query("action") != actionUnsubscribe {
		response.HTML(c, http.StatusBadRequest, renderPage(invalidActionPage()))
		return
	}
	res, err := h.svc.Unsubscribe(c.Request.Context(), tok, h.baseURL(c))
	if err != nil {
		h.renderError(c, err, flowManage)
		return
	}
	response.HTML(c, http.StatusOK, renderPage(unsubscribedPage(res.AlreadyUnsubscribed, h.homeURL(c))))
}

func (h *Handler) renderError(c *gin.Context, err error, flow string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(flow+" failed", zap.Error(err))
	}
	response.HTML(c, status, renderPage(errorPage(status, flow)))
}

// baseURL is the public origin for links in emails and pages.
func (h *Handler) baseURL(c *gin.Context) string {
	if h.siteURL != "" {
		return h.siteURL
	}
	host := firstNonEmpty(c.GetHeader("X-Forwarded-Host"), c.Request.Host)
	if host == "" {
		return fallbackBaseURL
	}
	if i := strings.Index(host, ","); i >= 0 {
		host = strings.TrimSpace(host[:i])
	}
	proto := firstNonEmpty(c.GetHeader("X-Forwarded-Proto"), "https")
	if i := strings.Index(proto, ","); i >= 0 {
		proto = strings.TrimSpace(proto[:i])
	}
	return proto + "://" + host
}

func (h *Handler) homeURL(c *gin.Context) string {
	return h.baseURL(c) + "/"
}

func (h *Handler) unsubscribeURL(c *gin.Context, tok string) string {
	q := url.Values{}
	q.Set("token", tok)
	q.Set("action", actionUnsubscribe)
	return h.baseURL(c) + managePath + "?" + q.Encode()
}

// statusFor maps lifecycle errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrMissingToken):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidManageToken):
		return http.StatusForbidden
	case errors.Is(err, ErrTokenNotFound), errors.Is(err, ErrSubscriberNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTokenExpired):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage never carries driver or provider detail.
func publicMessage(err error) string {
	switch {
	case errors.Is(err, ErrInvalidEmail):
		return "Invalid email address"
	case errors.Is(err, ErrDeliveryFailed):
		return "Could not send the confirmation email. Please try again later."
	case statusFor(err) < http.StatusInternalServerError:
		return err.Error()
	default:
		return "Internal server error"
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
