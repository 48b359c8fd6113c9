package subscribe

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/techknowlogia/core/internal/models"
	"github.com/techknowlogia/core/internal/pkg/token"
)

const testBaseURL = "https://techknowlogia.example"

type sentConfirmation struct {
	To    string
	Links ConfirmLinks
}

type fakeNotifier struct {
	mu             sync.Mutex
	confirmations  []sentConfirmation
	unsubscribes   []string
	confirmErr     error
	unsubscribeErr error
}

func (f *fakeNotifier) SendConfirmation(_ context.Context, to string, links ConfirmLinks) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.confirmErr != nil {
		return f.confirmErr
	}
	f.confirmations = append(f.confirmations, sentConfirmation{To: to, Links: links})
	return nil
}

func (f *fakeNotifier) SendUnsubscribed(_ context.Context, to string, resubscribeURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unsubscribeErr != nil {
		return f.unsubscribeErr
	}
	f.unsubscribes = append(f.unsubscribes, to+" "+resubscribeURL)
	return nil
}

func (f *fakeNotifier) lastConfirmToken(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.confirmations)
	return tokenFromURL(t, f.confirmations[len(f.confirmations)-1].Links.ConfirmURL)
}

func (f *fakeNotifier) lastManageToken(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.confirmations)
	return tokenFromURL(t, f.confirmations[len(f.confirmations)-1].Links.ManageURL)
}

func tokenFromURL(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Query().Get("token")
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	svc      *Service
	store    *MemoryStore
	notifier *fakeNotifier
	clock    *fakeClock
	signer   *token.Signer
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	signer, err := token.NewSigner("test-secret")
	require.NoError(t, err)
	f := &fixture{
		store:    NewMemoryStore(),
		notifier: &fakeNotifier{},
		clock:    &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		signer:   signer,
	}
	opts = append([]Option{WithClock(f.clock.Now)}, opts...)
	f.svc, err = NewService(f.store, signer, f.notifier, opts...)
	require.NoError(t, err)
	return f
}

func (f *fixture) subscribe(t *testing.T, email string) *SubscribeResult {
	t.Helper()
	res, err := f.svc.Subscribe(context.Background(), SubscribeRequest{Email: email, BaseURL: testBaseURL})
	require.NoError(t, err)
	return res
}

func TestNewServiceRequiresSigner(t *testing.T) {
	_, err := NewService(NewMemoryStore(), nil, &fakeNotifier{})
	assert.ErrorIs(t, err, token.ErrMissingSecret)
}

func TestSubscribeCreatesPendingWithHashedToken(t *testing.T) {
	f := newFixture(t)

	res := f.subscribe(t, "  Reader@Example.COM ")
	assert.Equal(t, OutcomeConfirmationSent, res.Outcome)
	assert.Equal(t, MessageConfirmationSent, res.Message)

	sub, err := f.store.FindByEmail(context.Background(), "reader@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriberPending, sub.Status)
	assert.Equal(t, models.DefaultSubscriberSource, sub.Source)
	require.NotNil(t, sub.ConfirmTokenExpiresAt)
	assert.Equal(t, f.clock.now.Add(DefaultConfirmTTL), *sub.ConfirmTokenExpiresAt)
	require.NotNil(t, sub.LastConfirmationSentAt)

	plain := f.notifier.lastConfirmToken(t)
	assert.NotEqual(t, plain, sub.ConfirmTokenHash)
	assert.Equal(t, token.Hash(plain), sub.ConfirmTokenHash)

	links := f.notifier.confirmations[0].Links
	assert.True(t, strings.HasPrefix(links.ConfirmURL, testBaseURL+"/api/subscribers/confirm?token="))
	assert.True(t, strings.HasPrefix(links.ManageURL, testBaseURL+"/api/subscribers/manage?token="+sub.ID+"."))
}

func TestSubscribeRejectsMalformedEmail(t *testing.T) {
	f := newFixture(t)
	for _, email := range []string{"", "   ", "no-at-sign", "a@", "@b.com", "a b@c.com"} {
		_, err := f.svc.Subscribe(context.Background(), SubscribeRequest{Email: email, BaseURL: testBaseURL})
		assert.ErrorIs(t, err, ErrInvalidEmail, email)
	}
	assert.Empty(t, f.notifier.confirmations)
}

func TestSubscribeTwiceWithinCooldownIssuesOneToken(t *testing.T) {
	f := newFixture(t)

	f.subscribe(t, "b@example.com")
	first, err := f.store.FindByEmail(context.Background(), "b@example.com")
	require.NoError(t, err)

	f.clock.Advance(10 * time.Second)
	res := f.subscribe(t, "b@example.com")
	assert.Equal(t, OutcomeCooldown, res.Outcome)
	assert.Equal(t, MessageCooldown, res.Message)

	second, err := f.store.FindByEmail(context.Background(), "b@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ConfirmTokenHash, second.ConfirmTokenHash)
	assert.Len(t, f.notifier.confirmations, 1)
}

func TestSubscribeAfterCooldownIssuesFreshToken(t *testing.T) {
	f := newFixture(t)

	f.subscribe(t, "b@example.com")
	oldToken := f.notifier.lastConfirmToken(t)

	f.clock.Advance(DefaultCooldown)
	res := f.subscribe(t, "b@example.com")
	assert.Equal(t, OutcomeConfirmationSent, res.Outcome)
	require.Len(t, f.notifier.confirmations, 2)

	_, err := f.svc.ConfirmSubscription(context.Background(), oldToken)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	_, err = f.svc.ConfirmSubscription(context.Background(), f.notifier.lastConfirmToken(t))
	assert.NoError(t, err)
}

func TestConfirmScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.subscribe(t, "a@example.com")
	t1 := f.notifier.lastConfirmToken(t)

	f.clock.Advance(time.Hour)
	res, err := f.svc.ConfirmSubscription(ctx, t1)
	require.NoError(t, err)
	assert.False(t, res.AlreadyConfirmed)

	sub, err := f.store.FindByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriberActive, sub.Status)
	require.NotNil(t, sub.ConfirmedAt)
	assert.Equal(t, f.clock.now, *sub.ConfirmedAt)
	assert.Empty(t, sub.ConfirmTokenHash)
	assert.Nil(t, sub.ConfirmTokenExpiresAt)

	again := f.subscribe(t, "a@example.com")
	assert.Equal(t, OutcomeAlreadyActive, again.Outcome)
	assert.Equal(t, "Already subscribed!", again.Message)
	assert.Len(t, f.notifier.confirmations, 1)
}

func TestConfirmIsSingleUse(t *testing.T) {
	f := newFixture(t)
	f.subscribe(t, "a@example.com")
	tok := f.notifier.lastConfirmToken(t)

	_, err := f.svc.ConfirmSubscription(context.Background(), tok)
	require.NoError(t, err)

	_, err = f.svc.ConfirmSubscription(context.Background(), tok)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestConfirmExpired(t *testing.T) {
	f := newFixture(t)
	f.subscribe(t, "late@example.com")
	tok := f.notifier.lastConfirmToken(t)

	f.clock.Advance(DefaultConfirmTTL + time.Second)
	_, err := f.svc.ConfirmSubscription(context.Background(), tok)
	assert.ErrorIs(t, err, ErrTokenExpired)

	sub, err := f.store.FindByEmail(context.Background(), "late@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriberPending, sub.Status)
	assert.Equal(t, token.Hash(tok), sub.ConfirmTokenHash)
}

func TestConfirmMissingAndUnknownToken(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ConfirmSubscription(context.Background(), " ")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = f.svc.ConfirmSubscription(context.Background(), "never-issued")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestManageSubscription(t *testing.T) {
	f := newFixture(t)
	f.subscribe(t, "m@example.com")
	manage := f.notifier.lastManageToken(t)

	sub, err := f.svc.ManageSubscription(context.Background(), manage)
	require.NoError(t, err)
	assert.Equal(t, "m@example.com", sub.Email)
	assert.Equal(t, models.SubscriberPending, sub.Status)

	_, err = f.svc.ManageSubscription(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingToken)

	ghost, err := f.signer.Sign("00000000-0000-4000-8000-000000000000")
	require.NoError(t, err)
	_, err = f.svc.ManageSubscription(context.Background(), ghost)
	assert.ErrorIs(t, err, ErrSubscriberNotFound)
}

func TestForgedManageTokenRejected(t *testing.T) {
	f := newFixture(t)
	f.subscribe(t, "m@example.com")
	manage := f.notifier.lastManageToken(t)

	last := manage[len(manage)-1]
	flipped := byte('A')
	if last == 'A' {
		flipped = 'B'
	}
	forged := manage[:len(manage)-1] + string(flipped)

	_, err := f.svc.ManageSubscription(context.Background(), forged)
	assert.ErrorIs(t, err, ErrInvalidManageToken)
	_, err = f.svc.Unsubscribe(context.Background(), forged, testBaseURL)
	assert.ErrorIs(t, err, ErrInvalidManageToken)

	other, err := token.NewSigner("other-secret")
	require.NoError(t, err)
	sub, err := f.store.FindByEmail(context.Background(), "m@example.com")
	require.NoError(t, err)
	foreign, err := other.Sign(sub.ID)
	require.NoError(t, err)
	_, err = f.svc.ManageSubscription(context.Background(), foreign)
	assert.ErrorIs(t, err, ErrInvalidManageToken)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subscribe(t, "u@example.com")
	manage := f.notifier.lastManageToken(t)
	_, err := f.svc.ConfirmSubscription(ctx, f.notifier.lastConfirmToken(t))
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	first, err := f.svc.Unsubscribe(ctx, manage, testBaseURL)
	require.NoError(t, err)
	assert.False(t, first.AlreadyUnsubscribed)
	unsubscribedAt := *first.Subscriber.UnsubscribedAt

	f.clock.Advance(time.Minute)
	second, err := f.svc.Unsubscribe(ctx, manage, testBaseURL)
	require.NoError(t, err)
	assert.True(t, second.AlreadyUnsubscribed)

	sub, err := f.store.FindByEmail(ctx, "u@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriberUnsubscribed, sub.Status)
	assert.Equal(t, unsubscribedAt, *sub.UnsubscribedAt)
	assert.Equal(t, []string{"u@example.com " + testBaseURL + "/newsletter"}, f.notifier.unsubscribes)
}

func TestUnsubscribePendingClearsToken(t *testing.T) {
	f := newFixture(t)
	f.subscribe(t, "p@example.com")
	tok := f.notifier.lastConfirmToken(t)

	_, err := f.svc.Unsubscribe(context.Background(), f.notifier.lastManageToken(t), testBaseURL)
	require.NoError(t, err)

	_, err = f.svc.ConfirmSubscription(context.Background(), tok)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestUnsubscribeSwallowsDeliveryFailure(t *testing.T) {
	f := newFixture(t)
	f.subscribe(t, "u@example.com")
	f.notifier.unsubscribeErr = errors.New("provider down")

	res, err := f.svc.Unsubscribe(context.Background(), f.notifier.lastManageToken(t), testBaseURL)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriberUnsubscribed, res.Subscriber.Status)

	sub, err := f.store.FindByEmail(context.Background(), "u@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriberUnsubscribed, sub.Status)
}

func TestSubscribeDeliveryFailurePersistsFirst(t *testing.T) {
	f := newFixture(t)
	f.notifier.confirmErr = errors.New("provider down")

	_, err := f.svc.Subscribe(context.Background(), SubscribeRequest{Email: "d@example.com", BaseURL: testBaseURL})
	assert.ErrorIs(t, err, ErrDeliveryFailed)

	sub, err := f.store.FindByEmail(context.Background(), "d@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriberPending, sub.Status)
	assert.NotEmpty(t, sub.ConfirmTokenHash)
}

func TestRoundTripRequiresFreshToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.subscribe(t, "r@example.com")
	t1 := f.notifier.lastConfirmToken(t)
	manage := f.notifier.lastManageToken(t)
	_, err := f.svc.ConfirmSubscription(ctx, t1)
	require.NoError(t, err)

	_, err = f.svc.Unsubscribe(ctx, manage, testBaseURL)
	require.NoError(t, err)

	res := f.subscribe(t, "r@example.com")
	assert.Equal(t, OutcomeConfirmationSent, res.Outcome)
	assert.Equal(t, models.SubscriberPending, res.Subscriber.Status)
	assert.Nil(t, res.Subscriber.UnsubscribedAt)

	_, err = f.svc.ConfirmSubscription(ctx, t1)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	t2 := f.notifier.lastConfirmToken(t)
	assert.NotEqual(t, t1, t2)
	_, err = f.svc.ConfirmSubscription(ctx, t2)
	require.NoError(t, err)

	sub, err := f.store.FindByEmail(ctx, "r@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriberActive, sub.Status)
}

// racingStore makes the first FindByEmail miss even though another request already inserted the row.
type racingStore struct {
	*MemoryStore
	raced bool
}

func (r *racingStore) FindByEmail(ctx context.Context, email string) (*models.SubscriberModel, error) {
	if !r.raced {
		r.raced = true
		winner := &models.SubscriberModel{Email: email, Status: models.SubscriberActive}
		now := time.Now()
		winner.ConfirmedAt = &now
		if err := r.MemoryStore.Create(ctx, winner); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return r.MemoryStore.FindByEmail(ctx, email)
}

func TestSubscribeRetriesOnDuplicate(t *testing.T) {
	signer, err := token.NewSigner("test-secret")
	require.NoError(t, err)
	store := &racingStore{MemoryStore: NewMemoryStore()}
	notifier := &fakeNotifier{}
	svc, err := NewService(store, signer, notifier)
	require.NoError(t, err)

	res, err := svc.Subscribe(context.Background(), SubscribeRequest{Email: "race@example.com", BaseURL: testBaseURL})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyActive, res.Outcome)
	assert.Empty(t, notifier.confirmations)
}

func TestPurgeExpiredTokens(t *testing.T) {
	f := newFixture(t)
	f.subscribe(t, "old@example.com")
	tok := f.notifier.lastConfirmToken(t)

	n, err := f.svc.PurgeExpiredTokens(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Advance(DefaultConfirmTTL + time.Minute)
	n, err = f.svc.PurgeExpiredTokens(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "recently expired tokens are kept")
	_, err = f.svc.ConfirmSubscription(context.Background(), tok)
	assert.ErrorIs(t, err, ErrTokenExpired)

	f.clock.Advance(DefaultPurgeAfter)
	n, err = f.svc.PurgeExpiredTokens(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = f.svc.ConfirmSubscription(context.Background(), tok)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	sub, err := f.store.FindByEmail(context.Background(), "old@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriberPending, sub.Status)
}

func TestPurgeAfterZeroClearsOnExpiry(t *testing.T) {
	f := newFixture(t, WithPurgeAfter(0))
	f.subscribe(t, "z@example.com")

	f.clock.Advance(DefaultConfirmTTL + time.Second)
	n, err := f.svc.PurgeExpiredTokens(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestCustomTTLAndCooldown(t *testing.T) {
	f := newFixture(t, WithConfirmTTL(time.Hour), WithCooldown(0))
	f.subscribe(t, "c@example.com")
	res := f.subscribe(t, "c@example.com")
	assert.Equal(t, OutcomeConfirmationSent, res.Outcome)

	sub, err := f.store.FindByEmail(context.Background(), "c@example.com")
	require.NoError(t, err)
	assert.Equal(t, f.clock.now.Add(time.Hour), *sub.ConfirmTokenExpiresAt)
}
