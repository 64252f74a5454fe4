// Package email sends the daily capsule to subscribers as HTML mail.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"civicbriefs/internal/config"
	"civicbriefs/internal/core"
	"civicbriefs/internal/logger"
	"civicbriefs/internal/render"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// EmailTemplate represents an HTML email template configuration
type EmailTemplate struct {
	Name            string
	Subject         string
	HeaderColor     string
	BackgroundColor string
	TextColor       string
	LinkColor       string
	MaxWidth        string
	FontFamily      string
}

// EmailData contains all data needed for email rendering
type EmailData struct {
	Title string
	Date  string
	Body  template.HTML
}

// GetDefaultEmailTemplate returns the capsule email template
func GetDefaultEmailTemplate() *EmailTemplate {
	return &EmailTemplate{
		Name:            "default",
		Subject:         "Daily UPSC Capsule - {{.Date}}",
		HeaderColor:     "#2c5aa0",
		BackgroundColor: "#f8fafc", // Slate-50
		TextColor:       "#1e293b", // Slate-800
		LinkColor:       "#3b82f6", // Blue-500
		MaxWidth:        "800px",
		FontFamily:      "Arial, sans-serif",
	}
}

// getEmailCSS returns inline CSS for the email template
func getEmailCSS(tmpl *EmailTemplate) string {
	return fmt.Sprintf(`
<style type="text/css">
  body {
    margin: 0 !important;
    padding: 20px !important;
    background-color: %s;
    font-family: %s;
    color: %s;
    line-height: 1.6;
  }
  .container { max-width: %s; margin: 0 auto; background-color: #ffffff; padding: 20px; }
  h1 { color: %s; text-align: center; }
  a { color: %s; }
  .footer { text-align: center; color: #666; font-size: 12px; margin-top: 30px; }
</style>`, tmpl.BackgroundColor, tmpl.FontFamily, tmpl.TextColor, tmpl.MaxWidth, tmpl.HeaderColor, tmpl.LinkColor)
}

// MarkdownToHTML converts markdown to HTML with external links opening in a new tab.
func MarkdownToHTML(text string) template.HTML {
	if text == "" {
		return template.HTML("")
	}
	mdParser := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	return template.HTML(markdown.ToHTML([]byte(text), mdParser, renderer))
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Data.Title}}</title>
    {{.CSS}}
</head>
<body>
    <div class="container">
        <p>Dear UPSC Aspirant,</p>
        <p>Here's your daily dose of UPSC-relevant news with syllabus mapping and related previous year questions:</p>
        {{.Data.Body}}
        <div class="footer">
            <p>This is an automated email from CivicBriefs. Stay updated, stay prepared!</p>
        </div>
    </div>
</body>
</html>`

// RenderHTMLEmail renders email data into a full HTML document
func RenderHTMLEmail(data EmailData, emailTemplate *EmailTemplate) (string, error) {
	tmpl, err := template.New("email").Parse(htmlTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse email template: %w", err)
	}

	templateData := struct {
		Data EmailData
		CSS  template.HTML
	}{
		Data: data,
		CSS:  template.HTML(getEmailCSS(emailTemplate)),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, templateData); err != nil {
		return "", fmt.Errorf("failed to execute email template: %w", err)
	}
	return buf.String(), nil
}

// GenerateSubject generates email subject using template
func GenerateSubject(emailTemplate *EmailTemplate, title string, date string) (string, error) {
	tmpl, err := template.New("subject").Parse(emailTemplate.Subject)
	if err != nil {
		return "", fmt.Errorf("failed to parse subject template: %w", err)
	}

	data := struct {
		Title string
		Date  string
	}{
		Title: title,
		Date:  date,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute subject template: %w", err)
	}
	return buf.String(), nil
}

// Sender delivers one prepared message.
type Sender interface {
	Send(ctx context.Context, from, to string, msg []byte) error
}

type smtpSender struct {
	addr string
	auth smtp.Auth
}

// Send uses net/smtp, which upgrades to STARTTLS when the server offers it.
func (s smtpSender) Send(ctx context.Context, from, to string, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return smtp.SendMail(s.addr, s.auth, from, []string{to}, msg)
}

// Notifier mails capsules to subscribers.
type Notifier struct {
	from     string
	sender   Sender
	template *EmailTemplate
	log      *slog.Logger
}

// NewNotifier builds a notifier from config. It is unconfigured (every send
// fails without an error) unless host, port, username and password are set.
func NewNotifier(cfg config.Email) *Notifier {
	n := &Notifier{template: GetDefaultEmailTemplate(), log: logger.Get()}
	smtpCfg := cfg.SMTP
	if smtpCfg.Host == "" || smtpCfg.Port == 0 || smtpCfg.Username == "" || smtpCfg.Password == "" {
		return n
	}
	n.from = cfg.FromAddress
	if n.from == "" {
		n.from = smtpCfg.Username
	}
	n.sender = smtpSender{
		addr: net.JoinHostPort(smtpCfg.Host, strconv.Itoa(smtpCfg.Port)),
		auth: smtp.PlainAuth("", smtpCfg.Username, smtpCfg.Password, smtpCfg.Host),
	}
	return n
}

// NewNotifierWithSender creates a notifier that delivers through sender.
func NewNotifierWithSender(from string, sender Sender) *Notifier {
	return &Notifier{from: from, sender: sender, template: GetDefaultEmailTemplate(), log: logger.Get()}
}

// Configured reports whether mail can be sent.
func (n *Notifier) Configured() bool {
	return n.sender != nil
}

// SendCapsule mails the capsule to each recipient and counts deliveries.
// Failures are logged, never returned.
func (n *Notifier) SendCapsule(ctx context.Context, capsule *core.Capsule, recipients []string) (sent, failed int) {
	if !n.Configured() {
		n.log.Warn("SMTP not configured, skipping email", "recipients", len(recipients))
		return 0, len(recipients)
	}

	msg, err := n.compose(capsule)
	if err != nil {
		n.log.Error("Failed to compose capsule email", "error", err)
		return 0, len(recipients)
	}

	for _, to := range recipients {
		if err := n.sender.Send(ctx, n.from, to, msg.forRecipient(n.from, to)); err != nil {
			n.log.Warn("Failed to send capsule email", "to", to, "error", err)
			failed++
			continue
		}
		sent++
	}
	n.log.Info("Capsule emails sent", "date", capsule.Date, "sent", sent, "failed", failed)
	return sent, failed
}

type message struct {
	subject string
	html    string
}

func (n *Notifier) compose(capsule *core.Capsule) (*message, error) {
	subject, err := GenerateSubject(n.template, "", capsule.Date)
	if err != nil {
		return nil, err
	}
	body, err := RenderHTMLEmail(EmailData{
		Title: subject,
		Date:  capsule.Date,
		Body:  MarkdownToHTML(render.CapsuleMarkdown(capsule)),
	}, n.template)
	if err != nil {
		return nil, err
	}
	return &message{subject: subject, html: body}, nil
}

func (m *message) forRecipient(from, to string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", m.subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(m.html)
	return []byte(b.String())
}
