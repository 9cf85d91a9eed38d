// Package notify envía el aviso de seguridad cuando una identidad externa
// se vincula a una cuenta local existente (merge).
package notify

import (
	"context"
	"fmt"

	mail "github.com/go-mail/mail"
)

// Notifier avisa al dueño de la cuenta que se vinculó un login externo.
type Notifier interface {
	ExternalAccountLinked(ctx context.Context, email, providerID string) error
}

// Noop descarta las notificaciones. Usado cuando SMTP no está configurado.
type Noop struct{}

func (Noop) ExternalAccountLinked(ctx context.Context, email, providerID string) error {
	return nil
}

// SMTPConfig configura el sender SMTP.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Mailer implementa Notifier sobre SMTP.
type Mailer struct {
	cfg SMTPConfig
}

func NewMailer(cfg SMTPConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

func (m *Mailer) ExternalAccountLinked(ctx context.Context, email, providerID string) error {
	msg := mail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", "A new sign-in method was added to your account")
	msg.SetBody("text/plain", fmt.Sprintf(
		"Your account can now be accessed with your %s login. If you did not do this, contact support.",
		providerID,
	))

	d := mail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Username, m.cfg.Password)
	return d.DialAndSend(msg)
}
