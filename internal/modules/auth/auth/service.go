package auth

import (
	"context"
	"time"

	"github.com/techknowlogia/core/internal/pkg/jwt"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	adminSubject        = "admin"
	defaultFailureDelay = 3 * time.Second
)

// Service checks the admin password and issues admin tokens.
type Service struct {
	passwordHash []byte
	issuer       *jwt.Issuer
	failureDelay time.Duration
	logger       *zap.Logger
}

type Option func(*Service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithFailureDelay sets how long a wrong password stalls the response.
func WithFailureDelay(d time.Duration) Option {
	return func(s *Service) { s.failureDelay = d }
}

func NewService(passwordHash string, issuer *jwt.Issuer, opts ...Option) (*Service, error) {
	if passwordHash == "" || issuer == nil {
		return nil, errNotConfigured
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, err
	}
	s := &Service{
		passwordHash: []byte(passwordHash),
		issuer:       issuer,
		failureDelay: defaultFailureDelay,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("AuthService")
	return s, nil
}

// Login returns a signed admin token when password matches.
func (s *Service) Login(ctx context.Context, password, ip string) (string, error) {
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		s.logger.Warn("admin login failed", zap.String("ip", ip))
		s.stall(ctx)
		return "", errWrongPassword
	}
	s.logger.Info("admin login", zap.String("ip", ip))
	return s.issuer.Sign(adminSubject, jwt.RoleAdmin)
}

func (s *Service) TokenTTL() time.Duration { return s.issuer.TTL() }

func (s *Service) stall(ctx context.Context) {
	if s.failureDelay <= 0 {
		return
	}
	t := time.NewTimer(s.failureDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
