package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Providers understood by Sender.
const (
	ProviderResend   = "resend"
	ProviderSendGrid = "sendgrid"
	ProviderSMTP     = "smtp"
	ProviderLog      = "log"
)

const (
	defaultResendEndpoint = "https://api.resend.com/emails"
	defaultSMTPPort       = 587
	sendTimeout           = 15 * time.Second
)

// ErrNotConfigured is returned when the selected provider lacks credentials.
var ErrNotConfigured = errors.New("mail: provider is not configured")

// Config holds mail provider settings.
type Config struct {
	Provider    string
	From        string
	ReplyTo     string
	ResendKey   string
	SendGridKey string
	Host        string
	Port        int
	User        string
	Pass        string

	// Endpoint overrides the provider API URL (Resend, SendGrid). Empty means the public API.
	Endpoint string
}

// Message is a single email to send.
type Message struct {
	To      []string
	Subject string
	HTML    string
	Text    string
}

// DeliveryError reports a provider-side failure. Detail is for logs only.
type DeliveryError struct {
	Provider   string
	StatusCode int
	Detail     string
	Err        error
}

func (e *DeliveryError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("mail: %s delivery failed: %v", e.Provider, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("mail: %s delivery failed with status %d: %s", e.Provider, e.StatusCode, e.Detail)
	default:
		return fmt.Sprintf("mail: %s delivery failed: %s", e.Provider, e.Detail)
	}
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Sender sends emails through Resend, SendGrid, SMTP, or the log.
type Sender struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

type Option func(*Sender)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Sender) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(s *Sender) {
		if client != nil {
			s.client = client
		}
	}
}

func New(cfg Config, opts ...Option) *Sender {
	s := &Sender{
		cfg:    cfg,
		client: &http.Client{Timeout: sendTimeout},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("Mail")
	return s
}

// Provider returns the configured provider name.
func (s *Sender) Provider() string { return s.cfg.Provider }

// Send dispatches an email through the configured provider.
func (s *Sender) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return errors.New("mail: message has no recipients")
	}
	switch s.cfg.Provider {
	case ProviderResend:
		return s.sendResend(ctx, msg)
	case ProviderSendGrid:
		return s.sendSendGrid(ctx, msg)
	case ProviderSMTP:
		return s.sendSMTP(msg)
	case ProviderLog:
		s.logger.Info("mail not sent, log provider active",
			zap.Strings("to", msg.To),
			zap.String("subject", msg.Subject),
			zap.String("text", msg.Text),
		)
		return nil
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrNotConfigured, s.cfg.Provider)
	}
}

// sendSMTP sends via net/smtp.
func (s *Sender) sendSMTP(msg Message) error {
	if s.cfg.Host == "" {
		return fmt.Errorf("%w: smtp host", ErrNotConfigured)
	}
	port := s.cfg.Port
	if port == 0 {
		port = defaultSMTPPort
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, port)
	from := s.from()

	var body bytes.Buffer
	body.WriteString("MIME-Version: 1.0\r\n")
	body.WriteString(fmt.Sprintf("From: %s\r\n", from))
	body.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(msg.To, ", ")))
	body.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	body.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	if s.cfg.ReplyTo != "" {
		body.WriteString(fmt.Sprintf("Reply-To: %s\r\n", s.cfg.ReplyTo))
	}
	body.WriteString("\r\n")
	body.WriteString(msg.HTML)

	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, addressOnly(from), msg.To, body.Bytes()); err != nil {
		return &DeliveryError{Provider: ProviderSMTP, Err: err}
	}
	return nil
}

// sendResend sends via the Resend HTTP API.
func (s *Sender) sendResend(ctx context.Context, msg Message) error {
	if s.cfg.ResendKey == "" {
		return fmt.Errorf("%w: resend api key", ErrNotConfigured)
	}
	payload := map[string]interface{}{
		"from":    s.from(),
		"to":      msg.To,
		"subject": msg.Subject,
		"html":    msg.HTML,
	}
	if msg.Text != "" {
		payload["text"] = msg.Text
	}
	if s.cfg.ReplyTo != "" {
		payload["reply_to"] = s.cfg.ReplyTo
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	endpoint := s.cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultResendEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.ResendKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return &DeliveryError{Provider: ProviderResend, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var errResp struct {
			Message string `json:"message"`
		}
		detail := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &errResp) == nil && errResp.Message != "" {
			detail = errResp.Message
		}
		return &DeliveryError{Provider: ProviderResend, StatusCode: resp.StatusCode, Detail: detail}
	}
	return nil
}

// sendSendGrid sends via the SendGrid v3 API.
func (s *Sender) sendSendGrid(ctx context.Context, msg Message) error {
	if s.cfg.SendGridKey == "" {
		return fmt.Errorf("%w: sendgrid api key", ErrNotConfigured)
	}
	from := sgmail.NewEmail("", addressOnly(s.from()))
	to := sgmail.NewEmail("", msg.To[0])
	message := sgmail.NewSingleEmail(from, msg.Subject, to, msg.Text, msg.HTML)
	if len(msg.To) > 1 {
		for _, addr := range msg.To[1:] {
			message.Personalizations[0].AddTos(sgmail.NewEmail("", addr))
		}
	}
	if s.cfg.ReplyTo != "" {
		message.SetReplyTo(sgmail.NewEmail("", s.cfg.ReplyTo))
	}

	client := sendgrid.NewSendClient(s.cfg.SendGridKey)
	if s.cfg.Endpoint != "" {
		client.BaseURL = s.cfg.Endpoint
	}
	resp, err := client.SendWithContext(ctx, message)
	if err != nil {
		return &DeliveryError{Provider: ProviderSendGrid, Err: err}
	}
	if resp.StatusCode >= 400 {
		return &DeliveryError{Provider: ProviderSendGrid, StatusCode: resp.StatusCode, Detail: strings.TrimSpace(resp.Body)}
	}
	return nil
}

func (s *Sender) from() string {
	if s.cfg.From != "" {
		return s.cfg.From
	}
	return s.cfg.User
}

// addressOnly extracts "a@b" from "Name <a@b>".
func addressOnly(from string) string {
	if start := strings.LastIndex(from, "<"); start >= 0 {
		if end := strings.LastIndex(from, ">"); end > start {
			return strings.TrimSpace(from[start+1 : end])
		}
	}
	return strings.TrimSpace(from)
}
