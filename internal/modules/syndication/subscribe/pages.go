package subscribe

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/techknowlogia/core/internal/models"
)

// page is one small standalone HTML document.
type page struct {
	Title    string
	Heading  string
	Lines    []string
	Email    string
	Status   string
	FormURL  string
	FormText string
	HomeURL  string
}

var pageTpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8" /><meta name="robots" content="noindex" /><title>{{.Title}}</title></head>
<body style="font-family:ui-sans-serif,system-ui,Segoe UI,Roboto,Helvetica,Arial;max-width:600px;margin:2rem auto;padding:1rem;text-align:center">
  <h1>{{.Heading}}</h1>
  {{range .Lines}}<p>{{.}}</p>
  {{end}}{{if .Email}}<p><strong>Email:</strong> {{.Email}}</p>
  {{end}}{{if .Status}}<p><strong>Status:</strong> {{.Status}}</p>
  {{end}}{{if .FormURL}}<form method="POST" action="{{.FormURL}}" style="margin-top:2rem">
    <button type="submit" style="padding:0.5rem 1rem;background:#ef4444;color:white;border:none;border-radius:0.375rem;cursor:pointer">{{.FormText}}</button>
  </form>
  {{end}}{{if .HomeURL}}<p style="margin-top:2rem"><a href="{{.HomeURL}}" style="color:#0070f3">Go to homepage</a></p>
  {{end}}</body>
</html>`))

func renderPage(p page) string {
	var buf bytes.Buffer
	if err := pageTpl.Execute(&buf, p); err != nil {
		return "<!DOCTYPE html><html><body><h1>Something went wrong</h1></body></html>"
	}
	return buf.String()
}

func statusLabel(status string) string {
	switch status {
	case models.SubscriberActive:
		return "✅ Active"
	case models.SubscriberPending:
		return "⏳ Pending confirmation"
	default:
		return "❌ Unsubscribed"
	}
}

// errorPage picks the page for a lifecycle error. The flow decides wording for 400 and 404.
func errorPage(status int, flow string) page {
	switch {
	case status == http.StatusBadRequest && flow == flowConfirm:
		return page{Title: "Invalid Link", Heading: "Invalid confirmation link", Lines: []string{"This link is missing a token. Please use the link from your email."}}
	case status == http.StatusBadRequest:
		return page{Title: "Invalid Link", Heading: "Invalid link", Lines: []string{"This link is missing a token."}}
	case status == http.StatusNotFound && flow == flowConfirm:
		return page{Title: "Invalid Token", Heading: "Invalid or expired token", Lines: []string{"This confirmation link is not valid. Please request a new confirmation email."}}
	case status == http.StatusNotFound:
		return page{Title: "Not Found", Heading: "Subscriber not found"}
	case status == http.StatusGone:
		return page{Title: "Token Expired", Heading: "Confirmation link expired", Lines: []string{"This link has expired. Please request a new confirmation email."}}
	case status == http.StatusForbidden:
		return page{Title: "Invalid Token", Heading: "Invalid token", Lines: []string{"This link is not valid."}}
	default:
		return page{Title: "Error", Heading: "Something went wrong", Lines: []string{"Please try again later."}}
	}
}

func invalidActionPage() page {
	return page{Title: "Invalid Action", Heading: "Invalid action", Lines: []string{"This link does not point to a known action."}}
}

func confirmedPage(already bool, home string) page {
	if already {
		return page{Title: "Already Confirmed", Heading: "✅ Already subscribed", Lines: []string{"Your email is already confirmed. You're all set!"}, HomeURL: home}
	}
	return page{Title: "Subscription Confirmed", Heading: "✅ Subscription confirmed!", Lines: []string{"Thank you for subscribing. You'll now receive our updates."}, HomeURL: home}
}

func managePage(sub *models.SubscriberModel, unsubscribeURL, home string) page {
	p := page{
		Title:   "Manage Subscription",
		Heading: "Manage Subscription",
		Email:   sub.Email,
		Status:  statusLabel(sub.Status),
		HomeURL: home,
	}
	if sub.Status != models.SubscriberUnsubscribed {
		p.FormURL = unsubscribeURL
		p.FormText = "Unsubscribe"
	}
	return p
}

func confirmUnsubscribePage(sub *models.SubscriberModel, unsubscribeURL, home string) page {
	if sub.Status == models.SubscriberUnsubscribed {
		return unsubscribedPage(true, home)
	}
	return page{
		Title:    "Unsubscribe",
		Heading:  "Unsubscribe?",
		Lines:    []string{"You will stop receiving our updates. Press the button below to confirm."},
		Email:    sub.Email,
		FormURL:  unsubscribeURL,
		FormText: "Confirm unsubscribe",
		HomeURL:  home,
	}
}

func unsubscribedPage(already bool, home string) page {
	if already {
		return page{Title: "Unsubscribed", Heading: "Already unsubscribed", Lines: []string{"This address no longer receives our updates."}, HomeURL: home}
	}
	return page{Title: "Unsubscribed", Heading: "✅ Unsubscribed", Lines: []string{"You have been unsubscribed successfully."}, HomeURL: home}
}
