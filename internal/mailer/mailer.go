package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
	"text/template"
	"time"

	"github.com/camagru/camagru/internal/config"
	"github.com/camagru/camagru/pkg/models"
)

// ErrUnknownKind is returned for e-mail jobs with no template
var ErrUnknownKind = errors.New("unknown email kind")

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type message struct {
	subject string
	body    *template.Template
}

var messages = map[models.EmailKind]message{
	models.EmailVerification: {
		subject: "Verify your Camagru account",
		body: template.Must(template.New("verification").Parse(`Hello {{.Username}},

To activate your account, open the following link:
{{.Link}}

This link expires in 24 hours.
`)),
	},
	models.EmailPasswordReset: {
		subject: "Reset your Camagru password",
		body: template.Must(template.New("reset").Parse(`Hello {{.Username}},

You asked to reset your password. To choose a new one, open the following link:
{{.Link}}

This link expires in 1 hour.

If you did not ask for a reset, ignore this e-mail.
`)),
	},
	models.EmailCommentNotification: {
		subject: "New comment on your photo",
		body: template.Must(template.New("comment").Parse(`Hello {{.Username}},

{{.Actor}} commented on one of your photos:
{{.Link}}

You can turn these notifications off in your profile.
`)),
	},
}

// Mailer renders e-mail jobs and sends them over SMTP
type Mailer struct {
	cfg  config.MailConfig
	send sendFunc
	now  func() time.Time
}

// New creates a mailer
func New(cfg config.MailConfig) *Mailer {
	return &Mailer{cfg: cfg, send: smtp.SendMail, now: time.Now}
}

// Send renders and delivers one job
func (m *Mailer) Send(ctx context.Context, job *models.EmailJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := m.Render(job)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	if err := m.send(addr, auth, m.cfg.From, []string{job.To}, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// Render builds the full RFC 5322 message for a job
func (m *Mailer) Render(job *models.EmailJob) ([]byte, error) {
	tmpl, ok := messages[job.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, job.Kind)
	}
	if job.To == "" {
		return nil, fmt.Errorf("email job has no recipient")
	}

	var body bytes.Buffer
	err := tmpl.body.Execute(&body, struct {
		Username string
		Actor    string
		Link     string
	}{
		Username: job.Username,
		Actor:    job.Actor,
		Link:     m.link(job),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render email: %w", err)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: Camagru <%s>\r\n", m.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", job.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", tmpl.subject))
	fmt.Fprintf(&msg, "Date: %s\r\n", m.now().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(body.String(), "\n", "\r\n"))

	return msg.Bytes(), nil
}

func (m *Mailer) link(job *models.EmailJob) string {
	base := strings.TrimRight(m.cfg.BaseURL, "/")
	switch job.Kind {
	case models.EmailVerification:
		return base + "/api/auth/verify/" + job.Token
	case models.EmailPasswordReset:
		return base + "/api/auth/reset-password-redirect/" + job.Token
	default:
		return base + "/gallery"
	}
}
