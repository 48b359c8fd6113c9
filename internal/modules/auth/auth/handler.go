package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/techknowlogia/core/internal/middleware"
	"github.com/techknowlogia/core/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	a := rg.Group("/admin")

	a.POST("/login", h.login)
	a.POST("/logout", h.logout)
	a.GET("/session", authMW, h.session)
}

func (h *Handler) login(c *gin.Context) {
	var dto LoginDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "Password is required")
		return
	}
	token, err := h.svc.Login(c.Request.Context(), dto.Password, c.ClientIP())
	if err != nil {
		if errors.Is(err, errWrongPassword) {
			response.Error(c, http.StatusUnauthorized, "Invalid password")
			return
		}
		response.InternalError(c)
		return
	}
	ttl := h.svc.TokenTTL()
	setAuthTokenCookie(c, token, int(ttl.Seconds()))
	response.OK(c, loginResponse{Token: token, ExpiresIn: int64(ttl.Seconds())})
}

func (h *Handler) logout(c *gin.Context) {
	clearAuthTokenCookie(c)
	response.NoContent(c)
}

func (h *Handler) session(c *gin.Context) {
	response.OK(c, gin.H{"subject": middleware.CurrentSubject(c), "ok": 1})
}

func setAuthTokenCookie(c *gin.Context, token string, maxAge int) {
	secure := c.Request.TLS != nil
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.AuthCookieName, token, maxAge, "/", "", secure, true)
}

func clearAuthTokenCookie(c *gin.Context) {
	secure := c.Request.TLS != nil
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.AuthCookieName, "", -1, "/", "", secure, true)
}
