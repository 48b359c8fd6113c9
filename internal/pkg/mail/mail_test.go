package mail

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResendSendsPayload(t *testing.T) {
	var got map[string]interface{}
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"email_1"}`))
	}))
	defer srv.Close()

	s := New(Config{Provider: ProviderResend, ResendKey: "re_test", From: "Tech <news@techknowlogia.example>", Endpoint: srv.URL})
	err := s.SendConfirmSubscription(context.Background(), "a@example.com", ConfirmSubscriptionData{
		SiteName:   "Tech-Knowlogia",
		ConfirmURL: "https://techknowlogia.example/api/subscribers/confirm?token=abc",
		ManageURL:  "https://techknowlogia.example/api/subscribers/manage?token=id.sig",
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer re_test", auth)
	assert.Equal(t, "Confirm your subscription", got["subject"])
	assert.Equal(t, []interface{}{"a@example.com"}, got["to"])
	assert.Contains(t, got["html"], "confirm?token=abc")
	assert.Contains(t, got["text"], "manage?token=id.sig")
}

func TestResendFailureIsDeliveryError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"domain not verified"}`))
	}))
	defer srv.Close()

	s := New(Config{Provider: ProviderResend, ResendKey: "re_test", From: "news@techknowlogia.example", Endpoint: srv.URL})
	err := s.SendUnsubscribed(context.Background(), "a@example.com", UnsubscribedData{ResubscribeURL: "https://techknowlogia.example/newsletter"})

	var de *DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, ProviderResend, de.Provider)
	assert.Equal(t, http.StatusUnprocessableEntity, de.StatusCode)
	assert.Equal(t, "domain not verified", de.Detail)
}

func TestSendGridUsesEndpoint(t *testing.T) {
	var auth string
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := New(Config{Provider: ProviderSendGrid, SendGridKey: "SG.test", From: "news@techknowlogia.example", Endpoint: srv.URL})
	require.NoError(t, s.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "hi", HTML: "<p>hi</p>", Text: "hi"}))

	assert.Equal(t, "Bearer SG.test", auth)
	assert.Equal(t, "hi", got["subject"])
}

func TestSendGridFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	s := New(Config{Provider: ProviderSendGrid, SendGridKey: "SG.bad", From: "news@techknowlogia.example", Endpoint: srv.URL})
	err := s.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "hi", HTML: "<p>hi</p>", Text: "hi"})

	var de *DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, http.StatusUnauthorized, de.StatusCode)
}

func TestMissingCredentials(t *testing.T) {
	ctx := context.Background()
	msg := Message{To: []string{"a@example.com"}, Subject: "x", HTML: "x"}

	assert.ErrorIs(t, New(Config{Provider: ProviderResend}).Send(ctx, msg), ErrNotConfigured)
	assert.ErrorIs(t, New(Config{Provider: ProviderSendGrid}).Send(ctx, msg), ErrNotConfigured)
	assert.ErrorIs(t, New(Config{Provider: ProviderSMTP}).Send(ctx, msg), ErrNotConfigured)
	assert.ErrorIs(t, New(Config{Provider: "carrier-pigeon"}).Send(ctx, msg), ErrNotConfigured)
	assert.NoError(t, New(Config{Provider: ProviderLog}).Send(ctx, msg))
	assert.Error(t, New(Config{Provider: ProviderLog}).Send(ctx, Message{}))
}

func TestAddressOnly(t *testing.T) {
	assert.Equal(t, "news@techknowlogia.example", addressOnly("Tech <news@techknowlogia.example>"))
	assert.Equal(t, "news@techknowlogia.example", addressOnly(" news@techknowlogia.example "))
}
