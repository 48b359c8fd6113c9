package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"
)

// Template names, used as metric labels by callers.
const (
	TemplateConfirmSubscription = "confirm_subscription"
	TemplateUnsubscribed        = "unsubscribed"
)

const confirmSubscriptionTpl = `<!DOCTYPE html>
<html lang="en">
<body style="font-family:ui-sans-serif,system-ui,Segoe UI,Roboto,Helvetica,Arial;line-height:1.6;background:#f5f5f5;padding:20px">
<div style="max-width:600px;margin:0 auto;background:#fff;border-radius:8px;padding:24px">
  <h2 style="color:#111">Confirm your subscription</h2>
  <p>Please confirm your email to start receiving updates from {{.SiteName}}.</p>
  <p style="margin-top:24px">
    <a href="{{.ConfirmURL}}" style="background:#0070f3;color:#fff;padding:8px 16px;text-decoration:none;border-radius:4px">Confirm subscription</a>
  </p>
  <p style="color:#666;font-size:12px">This link expires in {{.ExpiresIn}}. If you did not request this, you can ignore this email.</p>
  <hr style="border:none;border-top:1px solid #eaeaea" />
  <p style="font-size:12px;color:#666">You can manage your subscription here: <a href="{{.ManageURL}}">{{.ManageURL}}</a></p>
  <p style="font-size:10px;color:#999;text-align:center">&copy;{{year}} {{.SiteName}}</p>
</div>
</body>
</html>`

const unsubscribedTpl = `<!DOCTYPE html>
<html lang="en">
<body style="font-family:ui-sans-serif,system-ui,Segoe UI,Roboto,Helvetica,Arial;line-height:1.6;background:#f5f5f5;padding:20px">
<div style="max-width:600px;margin:0 auto;background:#fff;border-radius:8px;padding:24px">
  <h2 style="color:#111">Unsubscribed</h2>
  <p>You have been unsubscribed from {{.SiteName}}. If this was a mistake, you can resubscribe:</p>
  <p><a href="{{.ResubscribeURL}}">Resubscribe</a></p>
  <p style="font-size:10px;color:#999;text-align:center">&copy;{{year}} {{.SiteName}}</p>
</div>
</body>
</html>`

// ConfirmSubscriptionData is the data for double opt-in emails.
type ConfirmSubscriptionData struct {
	SiteName   string
	ConfirmURL string
	ManageURL  string
	ExpiresIn  string
}

// UnsubscribedData is the data for unsubscribe acknowledgements.
type UnsubscribedData struct {
	SiteName       string
	ResubscribeURL string
}

func renderTemplate(tpl string, data interface{}) (string, error) {
	t, err := template.New("").Funcs(template.FuncMap{
		"year": func() int {
			return time.Now().Year()
		},
	}).Parse(tpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SendConfirmSubscription sends the confirmation request carrying both links.
func (s *Sender) SendConfirmSubscription(ctx context.Context, to string, data ConfirmSubscriptionData) error {
	if strings.TrimSpace(data.ExpiresIn) == "" {
		data.ExpiresIn = "48 hours"
	}
	html, err := renderTemplate(confirmSubscriptionTpl, data)
	if err != nil {
		return err
	}
	return s.Send(ctx, Message{
		To:      []string{to},
		Subject: "Confirm your subscription",
		HTML:    html,
		Text:    fmt.Sprintf("Confirm your subscription: %s\n\nManage subscription: %s", data.ConfirmURL, data.ManageURL),
	})
}

// SendUnsubscribed acknowledges an unsubscribe and offers a way back.
func (s *Sender) SendUnsubscribed(ctx context.Context, to string, data UnsubscribedData) error {
	html, err := renderTemplate(unsubscribedTpl, data)
	if err != nil {
		return err
	}
	return s.Send(ctx, Message{
		To:      []string{to},
		Subject: "You are unsubscribed",
		HTML:    html,
		Text:    fmt.Sprintf("You have been unsubscribed. Resubscribe: %s", data.ResubscribeURL),
	})
}
