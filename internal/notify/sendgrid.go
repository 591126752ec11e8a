package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const sendgridSendURL = "https://api.sendgrid.com/v3/mail/send"

// SendGridTransport delivers mail through the SendGrid v3 REST API.
type SendGridTransport struct {
	APIKey    string
	FromEmail string
	SendURL   string
	HTTP      *http.Client
}

func NewSendGridTransport(apiKey, fromEmail string) *SendGridTransport {
	return &SendGridTransport{
		APIKey:    apiKey,
		FromEmail: fromEmail,
		SendURL:   sendgridSendURL,
		HTTP:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *SendGridTransport) Name() string { return "sendgrid" }

type sgMail struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgAddress           `json:"from"`
	Subject          string              `json:"subject"`
	Content          []sgContent         `json:"content"`
}

type sgPersonalization struct {
	To []sgAddress `json:"to"`
}

type sgAddress struct {
	Email string `json:"email"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (t *SendGridTransport) Send(ctx context.Context, msg Message) (*SendResult, error) {
	payload := sgMail{
		Personalizations: []sgPersonalization{{To: []sgAddress{{Email: msg.To}}}},
		From:             sgAddress{Email: t.FromEmail},
		Subject:          msg.Subject(),
		Content:          []sgContent{{Type: "text/plain", Value: msg.Body()}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.SendURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+t.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sendgrid request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return &SendResult{
			Success:  false,
			Provider: t.Name(),
			Error:    fmt.Sprintf("sendgrid returned %d", resp.StatusCode),
		}, nil
	}

	return &SendResult{
		Success:   true,
		Provider:  t.Name(),
		MessageID: resp.Header.Get("X-Message-Id"),
	}, nil
}
