package subscribe

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/techknowlogia/core/internal/models"
	"github.com/techknowlogia/core/internal/pkg/metrics"
	"github.com/techknowlogia/core/internal/pkg/token"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	DefaultConfirmTTL = 48 * time.Hour
	DefaultCooldown   = 60 * time.Second
	// DefaultPurgeAfter keeps expired tokens around so stale links report
	// "expired" rather than "invalid".
	DefaultPurgeAfter = 30 * 24 * time.Hour

	confirmPath     = "/api/subscribers/confirm"
	managePath      = "/api/subscribers/manage"
	resubscribePath = "/newsletter"
)

// User-facing messages for Subscribe outcomes.
const (
	MessageConfirmationSent = "Please check your email to confirm your subscription."
	MessageAlreadyActive    = "Already subscribed!"
	MessageCooldown         = "Confirmation email already sent. Please check your inbox."
)

// Outcome names what Subscribe did.
type Outcome string

const (
	OutcomeConfirmationSent Outcome = "confirmation_sent"
	OutcomeAlreadyActive    Outcome = "already_subscribed"
	OutcomeCooldown         Outcome = "cooldown"
)

// SubscribeRequest is one signup attempt. BaseURL is the public origin used for links.
type SubscribeRequest struct {
	Email   string
	Source  string
	BaseURL string
}

type SubscribeResult struct {
	Outcome    Outcome
	Message    string
	Subscriber *models.SubscriberModel
}

type ConfirmResult struct {
	AlreadyConfirmed bool
	Subscriber       *models.SubscriberModel
}

type UnsubscribeResult struct {
	AlreadyUnsubscribed bool
	Subscriber          *models.SubscriberModel
}

// Service drives subscribers through pending, active and unsubscribed.
type Service struct {
	store      Store
	signer     *token.Signer
	notifier   Notifier
	logger     *zap.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	validate   *validator.Validate
	now        func() time.Time
	confirmTTL time.Duration
	cooldown   time.Duration
	purgeAfter time.Duration
}

type Option func(*Service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithConfirmTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.confirmTTL = ttl
		}
	}
}

func WithCooldown(cooldown time.Duration) Option {
	return func(s *Service) {
		if cooldown >= 0 {
			s.cooldown = cooldown
		}
	}
}

// WithPurgeAfter sets how long past its expiry a token survives the purge.
func WithPurgeAfter(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.purgeAfter = d
		}
	}
}

// NewService refuses to build without a signer so a missing secret fails at startup.
func NewService(store Store, signer *token.Signer, notifier Notifier, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("subscribe: store is required")
	}
	if signer == nil {
		return nil, token.ErrMissingSecret
	}
	if notifier == nil {
		return nil, errors.New("subscribe: notifier is required")
	}
	s := &Service{
		store:      store,
		signer:     signer,
		notifier:   notifier,
		logger:     zap.NewNop(),
		tracer:     otel.Tracer("subscribe-service"),
		validate:   validator.New(),
		now:        time.Now,
		confirmTTL: DefaultConfirmTTL,
		cooldown:   DefaultCooldown,
		purgeAfter: DefaultPurgeAfter,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("SubscribeService")
	return s, nil
}

// NormalizeEmail lowercases and trims email and rejects malformed addresses.
func (s *Service) NormalizeEmail(email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if err := s.validate.Var(normalized, "required,email,max=320"); err != nil {
		return "", ErrInvalidEmail
	}
	return normalized, nil
}

// Subscribe starts or restarts double opt-in for an address.
func (s *Service) Subscribe(ctx context.Context, req SubscribeRequest) (*SubscribeResult, error) {
	ctx, span := s.tracer.Start(ctx, "subscribe.service.subscribe")
	defer span.End()

	email, err := s.NormalizeEmail(req.Email)
	if err != nil {
		span.SetStatus(codes.Error, "invalid email")
		return nil, err
	}
	span.SetAttributes(attribute.String("subscriber.email_domain", emailDomain(email)))

	res, err := s.subscribeOnce(ctx, email, req)
	if errors.Is(err, ErrDuplicate) {
		// A concurrent request created the record first; decide again against it.
		s.metrics.RecordSubscribeEvent(metrics.EventDuplicateRetry)
		s.logger.Info("duplicate subscriber insert, retrying", zap.String("email", email))
		res, err = s.subscribeOnce(ctx, email, req)
		if errors.Is(err, ErrDuplicate) {
			err = fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("subscriber.id", res.Subscriber.ID),
		attribute.String("subscribe.outcome", string(res.Outcome)),
	)
	return res, nil
}

func (s *Service) subscribeOnce(ctx context.Context, email string, req SubscribeRequest) (*SubscribeResult, error) {
	now := s.now()
	sub, err := s.store.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrNotFound):
		sub = nil
	case err != nil:
		s.logger.Error("find subscriber by email failed", zap.String("email", email), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	created := sub == nil
	event := metrics.EventSubscribed
	if created {
		source := strings.TrimSpace(req.Source)
		if source == "" {
			source = models.DefaultSubscriberSource
		}
		sub = &models.SubscriberModel{Email: email, Status: models.SubscriberPending, Source: source}
		sub.EnsureID()
		sub.CreatedAt = now
	} else {
		switch sub.Status {
		case models.SubscriberActive:
			s.metrics.RecordSubscribeEvent(metrics.EventAlreadyActive)
			return &SubscribeResult{Outcome: OutcomeAlreadyActive, Message: MessageAlreadyActive, Subscriber: sub}, nil
		case models.SubscriberPending:
			if sub.LastConfirmationSentAt != nil && now.Sub(*sub.LastConfirmationSentAt) < s.cooldown {
				s.metrics.RecordSubscribeEvent(metrics.EventCooldown)
				return &SubscribeResult{Outcome: OutcomeCooldown, Message: MessageCooldown, Subscriber: sub}, nil
			}
		case models.SubscriberUnsubscribed:
			sub.Status = models.SubscriberPending
			sub.UnsubscribedAt = nil
			event = metrics.EventResubscribed
		default:
			s.logger.Warn("subscriber has unknown status, resetting to pending",
				zap.String("id", sub.ID), zap.String("status", sub.Status))
			sub.Status = models.SubscriberPending
		}
	}

	plain, hash, err := token.NewConfirmToken()
	if err != nil {
		return nil, err
	}
	expires := now.Add(s.confirmTTL)
	sentAt := now
	sub.ConfirmTokenHash = hash
	sub.ConfirmTokenExpiresAt = &expires
	sub.LastConfirmationSentAt = &sentAt
	sub.UpdatedAt = now

	if created {
		err = s.store.Create(ctx, sub)
	} else {
		err = s.store.Save(ctx, sub)
	}
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, err
		}
		s.logger.Error("persist subscriber failed", zap.String("email", email), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	links, err := s.confirmLinks(req.BaseURL, plain, sub.ID)
	if err != nil {
		return nil, err
	}
	if err := s.notifier.SendConfirmation(ctx, email, links); err != nil {
		s.logger.Error("send confirmation email failed", zap.String("id", sub.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	s.metrics.RecordSubscribeEvent(event)
	s.logger.Info("confirmation sent", zap.String("id", sub.ID), zap.Bool("created", created))
	return &SubscribeResult{Outcome: OutcomeConfirmationSent, Message: MessageConfirmationSent, Subscriber: sub}, nil
}

// ConfirmSubscription redeems a single-use confirmation token.
func (s *Service) ConfirmSubscription(ctx context.Context, plain string) (*ConfirmResult, error) {
	ctx, span := s.tracer.Start(ctx, "subscribe.service.confirm")
	defer span.End()

	plain = strings.TrimSpace(plain)
	if plain == "" {
		return nil, ErrMissingToken
	}

	sub, err := s.store.FindByConfirmTokenHash(ctx, token.Hash(plain))
	if errors.Is(err, ErrNotFound) {
		s.metrics.RecordSubscribeEvent(metrics.EventConfirmNotFound)
		return nil, ErrTokenNotFound
	}
	if err != nil {
		s.logger.Error("find subscriber by token failed", zap.Error(err))
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	span.SetAttributes(attribute.String("subscriber.id", sub.ID))

	now := s.now()
	if sub.ConfirmTokenExpiresAt != nil && now.After(*sub.ConfirmTokenExpiresAt) {
		s.metrics.RecordSubscribeEvent(metrics.EventConfirmExpired)
		return nil, ErrTokenExpired
	}
	if sub.Status == models.SubscriberActive {
		s.metrics.RecordSubscribeEvent(metrics.EventAlreadyConfirmed)
		return &ConfirmResult{AlreadyConfirmed: true, Subscriber: sub}, nil
	}

	confirmedAt := now
	sub.Status = models.SubscriberActive
	sub.ConfirmedAt = &confirmedAt
	sub.ClearConfirmToken()
	sub.UpdatedAt = now
	if err := s.store.Save(ctx, sub); err != nil {
		s.logger.Error("persist confirmation failed", zap.String("id", sub.ID), zap.Error(err))
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	s.metrics.RecordSubscribeEvent(metrics.EventConfirmed)
	s.logger.Info("subscription confirmed", zap.String("id", sub.ID))
	return &ConfirmResult{Subscriber: sub}, nil
}

// ManageSubscription resolves a management token to its subscriber without mutating it.
func (s *Service) ManageSubscription(ctx context.Context, manageToken string) (*models.SubscriberModel, error) {
	ctx, span := s.tracer.Start(ctx, "subscribe.service.manage")
	defer span.End()
	return s.resolve(ctx, manageToken)
}

// Unsubscribe stops mail to the subscriber behind manageToken. The acknowledgement
// email is best effort.
func (s *Service) Unsubscribe(ctx context.Context, manageToken, baseURL string) (*UnsubscribeResult, error) {
	ctx, span := s.tracer.Start(ctx, "subscribe.service.unsubscribe")
	defer span.End()

	sub, err := s.resolve(ctx, manageToken)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("subscriber.id", sub.ID))

	if sub.Status == models.SubscriberUnsubscribed {
		s.metrics.RecordSubscribeEvent(metrics.EventAlreadyUnsubbed)
		return &UnsubscribeResult{AlreadyUnsubscribed: true, Subscriber: sub}, nil
	}

	now := s.now()
	unsubscribedAt := now
	sub.Status = models.SubscriberUnsubscribed
	sub.UnsubscribedAt = &unsubscribedAt
	sub.ClearConfirmToken()
	sub.UpdatedAt = now
	if err := s.store.Save(ctx, sub); err != nil {
		s.logger.Error("persist unsubscribe failed", zap.String("id", sub.ID), zap.Error(err))
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	s.metrics.RecordSubscribeEvent(metrics.EventUnsubscribed)

	if err := s.notifier.SendUnsubscribed(ctx, sub.Email, joinURL(baseURL, resubscribePath, "")); err != nil {
		s.logger.Warn("send unsubscribe email failed", zap.String("id", sub.ID), zap.Error(err))
	}
	s.logger.Info("unsubscribed", zap.String("id", sub.ID))
	return &UnsubscribeResult{Subscriber: sub}, nil
}

// PurgeExpiredTokens clears tokens that expired more than purgeAfter ago.
// Affected records stay pending.
func (s *Service) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	n, err := s.store.PurgeExpiredTokens(ctx, s.now().Add(-s.purgeAfter))
	if err != nil {
		return 0, fmt.Errorf("purge expired confirmation tokens: %w", err)
	}
	if n > 0 {
		s.metrics.RecordSubscribeEvent(metrics.EventTokensPurged)
		s.logger.Info("purged expired confirmation tokens", zap.Int64("count", n))
	}
	return n, nil
}

// ManageURL builds the signed management link for a subscriber.
func (s *Service) ManageURL(baseURL, id string) (string, error) {
	tok, err := s.signer.Sign(id)
	if err != nil {
		return "", err
	}
	return joinURL(baseURL, managePath, tok), nil
}

func (s *Service) resolve(ctx context.Context, manageToken string) (*models.SubscriberModel, error) {
	manageToken = strings.TrimSpace(manageToken)
	if manageToken == "" {
		return nil, ErrMissingToken
	}
	id, err := s.signer.Verify(manageToken)
	if err != nil {
		if errors.Is(err, token.ErrMissingSecret) {
			return nil, err
		}
		s.metrics.RecordSubscribeEvent(metrics.EventManageForged)
		return nil, ErrInvalidManageToken
	}
	sub, err := s.store.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrSubscriberNotFound
	}
	if err != nil {
		s.logger.Error("find subscriber by id failed", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return sub, nil
}

func (s *Service) confirmLinks(baseURL, plain, id string) (ConfirmLinks, error) {
	manageURL, err := s.ManageURL(baseURL, id)
	if err != nil {
		return ConfirmLinks{}, err
	}
	return ConfirmLinks{
		ConfirmURL: joinURL(baseURL, confirmPath, plain),
		ManageURL:  manageURL,
		ExpiresIn:  s.confirmTTL,
	}, nil
}

func joinURL(baseURL, path, tok string) string {
	u := strings.TrimRight(baseURL, "/") + path
	if tok != "" {
		u += "?token=" + url.QueryEscape(tok)
	}
	return u
}

func emailDomain(email string) string {
	if at := strings.LastIndex(email, "@"); at >= 0 {
		return email[at+1:]
	}
	return ""
}
