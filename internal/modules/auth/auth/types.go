package auth

import "errors"

var (
	errWrongPassword = errors.New("auth: wrong password")
	errNotConfigured = errors.New("auth: admin login is not configured")
)

// LoginDTO is the request body for POST /admin/login.
type LoginDTO struct {
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}
