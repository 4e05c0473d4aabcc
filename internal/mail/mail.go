package mail

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jekabolt/delivery-analytics/internal/dependency"
	"github.com/jekabolt/delivery-analytics/internal/entity"
	gerr "github.com/jekabolt/delivery-analytics/internal/errors"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/shopspring/decimal"
)

//go:embed templates/*.gohtml
var templatesFS embed.FS

const churnDigestTemplate = "churn_digest.gohtml"

type Config struct {
	APIKey         string         `mapstructure:"sendgrid_api_key"`
	FromEmail      string         `mapstructure:"from_email"`
	FromName       string         `mapstructure:"from_email_name"`
	ReplyTo        string         `mapstructure:"reply_to"`
	WorkerInterval time.Duration  `mapstructure:"worker_interval"`
	Digests        []DigestConfig `mapstructure:"digests"`
}

// Enabled reports whether an API key is configured.
func (c *Config) Enabled() bool {
	return c.APIKey != ""
}

type Mailer struct {
	cli       dependency.Sender
	from      *mail.Email
	c         *Config
	templates *template.Template
}

func New(c *Config) (*Mailer, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("incomplete config: sendgrid api key is empty")
	}
	return newMailer(c, sendgrid.NewSendClient(c.APIKey))
}

func newMailer(c *Config, cli dependency.Sender) (*Mailer, error) {
	if c.FromEmail == "" || c.FromName == "" {
		return nil, fmt.Errorf("incomplete config: from email and name are required")
	}
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
		"date":  func(t time.Time) string { return t.Format(entity.DateLayout) },
	}).ParseFS(templatesFS, "templates/*.gohtml")
	if err != nil {
		return nil, fmt.Errorf("error parsing templates: %w", err)
	}
	return &Mailer{
		cli:       cli,
		from:      mail.NewEmail(c.FromName, c.FromEmail),
		c:         c,
		templates: tmpl,
	}, nil
}

func digestSubject(d *entity.ChurnDigest) string {
	return fmt.Sprintf("%s: %d customers at risk (%d high)", d.Name, len(d.Entries), d.HighRiskCount())
}

func (m *Mailer) buildChurnDigest(d *entity.ChurnDigest) (*mail.SGMailV3, error) {
	if len(d.Recipients) == 0 {
		return nil, fmt.Errorf("digest %q has no recipients", d.Name)
	}

	body := &strings.Builder{}
	if err := m.templates.ExecuteTemplate(body, churnDigestTemplate, d); err != nil {
		return nil, fmt.Errorf("error executing template: %w", err)
	}

	msg := mail.NewV3Mail()
	msg.SetFrom(m.from)
	msg.Subject = digestSubject(d)
	if m.c.ReplyTo != "" {
		msg.SetReplyTo(mail.NewEmail(m.c.FromName, m.c.ReplyTo))
	}

	p := mail.NewPersonalization()
	for _, to := range d.Recipients {
		p.AddTos(mail.NewEmail("", to))
	}
	msg.AddPersonalizations(p)
	msg.AddContent(mail.NewContent("text/html", body.String()))
	return msg, nil
}

// SendChurnDigest renders the digest and mails it to every recipient in one message.
func (m *Mailer) SendChurnDigest(ctx context.Context, d *entity.ChurnDigest) error {
	msg, err := m.buildChurnDigest(d)
	if err != nil {
		return err
	}

	resp, err := m.cli.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("error sending email: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: sendgrid rate limit", gerr.ErrTooManyRequests)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("error sending email bad status code: %s, status code: %d", resp.Body, resp.StatusCode)
	}

	slog.Default().InfoContext(ctx, "churn digest sent",
		slog.String("digest", d.Name),
		slog.Int("recipients", len(d.Recipients)),
		slog.Int("entries", len(d.Entries)),
	)
	return nil
}
