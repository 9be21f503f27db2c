// Package mail renders account emails and hands them to a Sender. Senders
// deliver directly (SES), publish to a queue for cmd/mailer, or just log.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/url"
)

// Kinds of message, carried on queued jobs for logging.
const (
	KindVerification  = "email_verification"
	KindPasswordReset = "password_reset"
)

// Message is one rendered email. It is also the JSON job format on the queue.
type Message struct {
	Kind    string `json:"kind"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

// Validate checks the fields every sender needs.
func (m Message) Validate() error {
	switch {
	case m.To == "":
		return errors.New("mail: message has no recipient")
	case m.Subject == "":
		return errors.New("mail: message has no subject")
	case m.HTML == "" && m.Text == "":
		return errors.New("mail: message has no body")
	}
	return nil
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Config holds the link targets embedded in emails.
type Config struct {
	VerificationURL  string
	PasswordResetURL string
}

// Mailer renders the account emails and sends them through a Sender.
type Mailer struct {
	sender Sender
	cfg    Config
}

// NewMailer returns a Mailer sending through s.
func NewMailer(s Sender, cfg Config) *Mailer {
	return &Mailer{sender: s, cfg: cfg}
}

var (
	verificationTmpl = template.Must(template.New("verify").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: sans-serif; line-height: 1.5;">
    <p>Hi {{.Name}},</p>
    <p>Thanks for signing up. Please confirm your email address by clicking the link below.</p>
    <p><a href="{{.Link}}">Verify email address</a></p>
    <p>This link expires in 24 hours. If you did not create an account you can ignore this email.</p>
  </body>
</html>`))

	resetTmpl = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: sans-serif; line-height: 1.5;">
    <p>Hi {{.Name}},</p>
    <p>We received a request to reset your password. Click the link below to choose a new one.</p>
    <p><a href="{{.Link}}">Reset password</a></p>
    <p>This link expires in 1 hour. If you did not request a reset you can ignore this email.</p>
  </body>
</html>`))
)

type templateData struct {
	Name string
	Link string
}

// SendVerification sends the email verification link for token.
func (m *Mailer) SendVerification(ctx context.Context, to, name, token string) error {
	link, err := withToken(m.cfg.VerificationURL, token)
	if err != nil {
		return err
	}

	html, err := render(verificationTmpl, templateData{Name: name, Link: link})
	if err != nil {
		return err
	}

	return m.sender.Send(ctx, Message{
		Kind:    KindVerification,
		To:      to,
		Subject: "Verify your email",
		HTML:    html,
		Text:    fmt.Sprintf("Hi %s,\n\nVerify your email address: %s\n\nThis link expires in 24 hours.\n", name, link),
	})
}

// SendPasswordReset sends the password reset link for token.
func (m *Mailer) SendPasswordReset(ctx context.Context, to, name, token string) error {
	link, err := withToken(m.cfg.PasswordResetURL, token)
	if err != nil {
		return err
	}

	html, err := render(resetTmpl, templateData{Name: name, Link: link})
	if err != nil {
		return err
	}

	return m.sender.Send(ctx, Message{
		Kind:    KindPasswordReset,
		To:      to,
		Subject: "Reset your password",
		HTML:    html,
		Text:    fmt.Sprintf("Hi %s,\n\nReset your password: %s\n\nThis link expires in 1 hour.\n", name, link),
	})
}

// withToken appends token as the "token" query parameter of base.
func withToken(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("mail: bad link url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func render(t *template.Template, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("mail: render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
