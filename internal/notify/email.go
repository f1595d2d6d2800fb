package notify

import (
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// SMTPConfig holds the SMTP connection settings, loaded from the environment.
// Token is an app password, not the account password.
type SMTPConfig struct {
	Server string `env:"SMTP_SERVER,required"`
	Port   int    `env:"SMTP_PORT,required"`
	Token  string `env:"SMTP_TOKEN,required"`
	From   string `env:"FROM_EMAIL,required"`
	To     string `env:"TO_EMAIL"`
}

// LoadSMTPConfig reads SMTP settings from envFile (and the environment).
func LoadSMTPConfig(envFile string) (SMTPConfig, error) {
	var cfg SMTPConfig
	if err := loadEnv(envFile, &cfg); err != nil {
		return SMTPConfig{}, err
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return SMTPConfig{}, fmt.Errorf("invalid SMTP port: %d", cfg.Port)
	}
	return cfg, nil
}

// EmailNotifier sends plain-text monitoring reports over SMTP with STARTTLS.
type EmailNotifier struct {
	cfg SMTPConfig
	log *logrus.Entry

	// sendFunc is swappable for tests; defaults to sendViaSMTP.
	sendFunc func(cfg SMTPConfig, recipients []string, msg []byte) error
}

// NewEmailNotifier creates a notifier for the given SMTP settings.
func NewEmailNotifier(cfg SMTPConfig, log *logrus.Entry) *EmailNotifier {
	return &EmailNotifier{cfg: cfg, log: log, sendFunc: sendViaSMTP}
}

// Send delivers a plain-text message to the given recipients. With an empty
// recipient list the config's default TO_EMAIL is used.
func (n *EmailNotifier) Send(to []string, subject, body string) error {
	recipients := n.prepareRecipients(to)
	if len(recipients) == 0 {
		return fmt.Errorf("no valid recipients")
	}

	msg := buildMessage(n.cfg.From, recipients, subject, body)
	if err := n.sendFunc(n.cfg, recipients, msg); err != nil {
		return fmt.Errorf("send email %q: %w", subject, err)
	}

	n.log.Infof("email sent to %d recipients: %s", len(recipients), subject)
	return nil
}

// prepareRecipients trims and filters addresses, falling back to the default
// recipient from the config. Obviously malformed addresses are dropped with a
// warning rather than failing the whole send.
func (n *EmailNotifier) prepareRecipients(to []string) []string {
	candidates := make([]string, 0, len(to))
	for _, addr := range to {
		if trimmed := strings.TrimSpace(addr); trimmed != "" {
			candidates = append(candidates, trimmed)
		}
	}
	if len(candidates) == 0 && n.cfg.To != "" {
		candidates = append(candidates, strings.TrimSpace(n.cfg.To))
	}

	valid := candidates[:0]
	for _, addr := range candidates {
		at := strings.LastIndex(addr, "@")
		if at > 0 && strings.Contains(addr[at:], ".") {
			valid = append(valid, addr)
		} else {
			n.log.Warnf("invalid email address skipped: %s", addr)
		}
	}
	return valid
}

// buildMessage assembles RFC 5322 headers and a plain-text body.
func buildMessage(from string, recipients []string, subject, body string) []byte {
	var b strings.Builder
	now := time.Now()
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Message-ID: <%d@backupwatch>\r\n", now.UnixNano())
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// sendViaSMTP connects, upgrades to TLS, authenticates, and submits the message.
func sendViaSMTP(cfg SMTPConfig, recipients []string, msg []byte) error {
	addr := fmt.Sprintf("%s:%d", cfg.Server, cfg.Port)

	c, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
	defer func() { _ = c.Close() }()

	if err := c.StartTLS(&tls.Config{ServerName: cfg.Server}); err != nil {
		return fmt.Errorf("starttls: %w", err)
	}
	if err := c.Auth(smtp.PlainAuth("", cfg.From, cfg.Token, cfg.Server)); err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	if err := c.Mail(cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range recipients {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close message: %w", err)
	}

	return c.Quit()
}
