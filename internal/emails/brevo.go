package emails

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const brevoAPI = "https://api.brevo.com/v3/smtp/email"

// BrevoSendRequest matches Brevo API v3 send transactional email body.
type BrevoSendRequest struct {
	Sender      BrevoSender `json:"sender"`
	To          []BrevoTo   `json:"to"`
	Subject     string      `json:"subject"`
	HTMLContent string      `json:"htmlContent"`
}

type BrevoSender struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type BrevoTo struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Sender sends transactional emails. Empty API key = no-op.
type Sender interface {
	SendUnreadDigest(ctx context.Context, d UnreadDigest) error
}

// UnreadDigest is the payload for one unread-messages notification email:
// one conversation, one recipient, however many messages piled up.
type UnreadDigest struct {
	ToEmail      string
	ToName       string
	SenderName   string
	ListingTitle string
	Count        int
	Preview      string
}

// BrevoClient sends emails via the Brevo (Sendinblue) API.
type BrevoClient struct {
	APIKey   string
	MailFrom string
	Client   *http.Client
}

func (c *BrevoClient) from() string {
	if c.MailFrom != "" {
		return c.MailFrom
	}
	return "noreply@souq.app"
}

func (c *BrevoClient) send(ctx context.Context, toEmail, toName, subject, html string) error {
	if c.APIKey == "" {
		return nil
	}
	body := BrevoSendRequest{
		Sender:      BrevoSender{Email: c.from(), Name: "Souq"},
		To:          []BrevoTo{{Email: toEmail, Name: toName}},
		Subject:     subject,
		HTMLContent: html,
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, brevoAPI, bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("brevo send failed: status %d", resp.StatusCode)
	}
	return nil
}

// SendUnreadDigest notifies a user about unread messages in one conversation.
func (c *BrevoClient) SendUnreadDigest(ctx context.Context, d UnreadDigest) error {
	if c.APIKey == "" {
		return nil
	}
	subject := fmt.Sprintf("New message about \"%s\"", d.ListingTitle)
	if d.Count > 1 {
		subject = fmt.Sprintf("%d new messages about \"%s\"", d.Count, d.ListingTitle)
	}
	return c.send(ctx, d.ToEmail, d.ToName, subject, Layout(digestContent(d)))
}

func digestContent(d UnreadDigest) string {
	name := d.ToName
	if name == "" {
		name = "there"
	}
	plural := "message"
	if d.Count > 1 {
		plural = "messages"
	}
	return fmt.Sprintf(`
    <h1>You have unread %s</h1>
    <p>Hi %s,</p>
    <p><strong>%s</strong> sent you %d new %s about your listing <strong>%s</strong>:</p>
    <p style="background-color: #F9FAFB; border-radius: 6px; padding: 16px; color: #4B5563;">%s</p>
    <center>
      <a href="https://souq.app/chat" class="souq-button">Open Conversation</a>
    </center>
    <p style="margin-top: 20px; font-size: 14px; color: #666;">
      You receive this email because you have unread messages on Souq.
    </p>
`, plural, EscapeHTML(name), EscapeHTML(d.SenderName), d.Count, plural, EscapeHTML(d.ListingTitle), EscapeHTML(d.Preview))
}
