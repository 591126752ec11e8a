package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/google/uuid"
)

// SMTPTransport delivers mail over authenticated SMTP (Gmail-style).
type SMTPTransport struct {
	Host     string
	Port     string
	Email    string
	Password string

	// send is swappable for tests.
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPTransport(host, port, email, password string) *SMTPTransport {
	return &SMTPTransport{
		Host:     host,
		Port:     port,
		Email:    email,
		Password: password,
		send:     smtp.SendMail,
	}
}

func (t *SMTPTransport) Name() string { return "smtp" }

func (t *SMTPTransport) Send(ctx context.Context, msg Message) (*SendResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), t.Host)

	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\n", t.Email)
	fmt.Fprintf(&sb, "To: %s\r\n", msg.To)
	fmt.Fprintf(&sb, "Subject: %s\r\n", msg.Subject())
	fmt.Fprintf(&sb, "Message-ID: %s\r\n", messageID)
	sb.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	sb.WriteString(msg.Body())

	auth := smtp.PlainAuth("", t.Email, t.Password, t.Host)
	if err := t.send(t.Host+":"+t.Port, auth, t.Email, []string{msg.To}, []byte(sb.String())); err != nil {
		return &SendResult{
			Success:  false,
			Provider: t.Name(),
			Error:    err.Error(),
		}, nil
	}

	return &SendResult{
		Success:   true,
		Provider:  t.Name(),
		MessageID: messageID,
	}, nil
}
