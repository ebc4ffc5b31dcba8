package config

import (
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail/v2"
)

// Mailer sends HTML mail through the configured SMTP relay.
type Mailer struct {
	opts MailOptions
}

func NewMailer(opts MailOptions) *Mailer {
	return &Mailer{opts: opts}
}

// Enabled reports whether SMTP is configured and there is someone to notify.
func (m *Mailer) Enabled() bool {
	return m != nil && m.opts.Host != "" && m.opts.From != "" && len(m.opts.NotifyTo) > 0
}

// Recipients returns the default notification recipients.
func (m *Mailer) Recipients() []string {
	if m == nil {
		return nil
	}
	return m.opts.NotifyTo
}

func (m *Mailer) Send(to []string, subject, html string) error {
	if len(to) == 0 {
		return nil
	}
	if m.opts.Host == "" || m.opts.From == "" {
		return fmt.Errorf("smtp not configured (SMTP_HOST/SMTP_FROM)")
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.opts.From)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", html)

	d := mail.NewDialer(m.opts.Host, m.opts.Port, m.opts.User, m.opts.Pass)

	// STARTTLS is mandatory on 587 for the usual relays (Gmail/Office365).
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         m.opts.Host,
		InsecureSkipVerify: m.opts.SkipTLSVerify,
	}

	return d.DialAndSend(msg)
}
