package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"time"

	"github.com/datachef-lab/taskify-backend/internal/config"
	"github.com/datachef-lab/taskify-backend/internal/shared/feishu"
	"github.com/datachef-lab/taskify-backend/internal/shared/sse"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Notification message to a set of users
type Notification struct {
	UserIDs    []string               `json:"user_ids"`
	Title      string                 `json:"title"`
	Body       string                 `json:"body"`
	EntityType string                 `json:"entity_type,omitempty"`
	EntityID   string                 `json:"entity_id,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// Recipient resolved user
type Recipient struct {
	ID    string
	Name  string
	Email string
}

// Directory resolves user ids to recipients; unknown ids are omitted
type Directory interface {
	Recipients(ctx context.Context, userIDs []string) ([]Recipient, error)
}

// Channel one delivery mechanism
type Channel interface {
	Name() string
	Send(ctx context.Context, to Recipient, n Notification) error
}

// Broadcaster is a Channel that delivers once for all recipients, such as a
// group chat. The dispatcher calls Broadcast instead of Send for it.
type Broadcaster interface {
	Channel
	Broadcast(ctx context.Context, to []Recipient, n Notification) error
}

// Dispatcher fans a notification out over every channel
type Dispatcher struct {
	directory Directory
	channels  []Channel
	logger    *zap.Logger
}

func NewDispatcher(directory Directory, logger *zap.Logger, channels ...Channel) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{directory: directory, channels: channels, logger: logger}
}

// Notify delivers n to each user on each channel. Unknown users and channel
// failures are collected into the returned error; delivery to the rest continues.
func (d *Dispatcher) Notify(ctx context.Context, n Notification) error {
	if len(n.UserIDs) == 0 {
		return nil
	}
	recipients, err := d.directory.Recipients(ctx, n.UserIDs)
	if err != nil {
		return fmt.Errorf("resolve recipients: %w", err)
	}

	var errs []error
	known := make(map[string]bool, len(recipients))
	for _, r := range recipients {
		known[r.ID] = true
	}
	for _, id := range n.UserIDs {
		if !known[id] {
			errs = append(errs, fmt.Errorf("recipient %s not found", id))
		}
	}

	for _, ch := range d.channels {
		b, ok := ch.(Broadcaster)
		if !ok || len(recipients) == 0 {
			continue
		}
		if err := b.Broadcast(ctx, recipients, n); err != nil {
			d.logger.Warn("notification broadcast failed",
				zap.String("channel", ch.Name()),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
		}
	}

	for _, r := range recipients {
		for _, ch := range d.channels {
			if _, ok := ch.(Broadcaster); ok {
				continue
			}
			if err := ch.Send(ctx, r, n); err != nil {
				d.logger.Warn("notification delivery failed",
					zap.String("channel", ch.Name()),
					zap.String("user_id", r.ID),
					zap.Error(err))
				errs = append(errs, fmt.Errorf("%s to %s: %w", ch.Name(), r.ID, err))
			}
		}
	}
	return errors.Join(errs...)
}

// SSEChannel in-app delivery through the event hub
type SSEChannel struct {
	hub *sse.Hub
}

func NewSSEChannel(hub *sse.Hub) *SSEChannel {
	return &SSEChannel{hub: hub}
}

func (c *SSEChannel) Name() string { return "sse" }

// Send pushes a notification event; an offline user is not an error
func (c *SSEChannel) Send(ctx context.Context, to Recipient, n Notification) error {
	payload, err := json.Marshal(map[string]interface{}{
		"title":       n.Title,
		"body":        n.Body,
		"entity_type": n.EntityType,
		"entity_id":   n.EntityID,
		"data":        n.Data,
		"sent_at":     time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	c.hub.SendToUser(to.ID, sse.Event{EventType: "notification", Data: string(payload)})
	return nil
}

// EmailChannel SMTP delivery
type EmailChannel struct {
	cfg    config.SMTPConfig
	dialer *gomail.Dialer
}

// NewEmailChannel returns nil when SMTP is not configured
func NewEmailChannel(cfg config.SMTPConfig) *EmailChannel {
	if cfg.Host == "" || cfg.FromEmail == "" {
		return nil
	}
	return &EmailChannel{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (c *EmailChannel) Name() string { return "email" }

// Send mails the notification; recipients without an address are skipped
func (c *EmailChannel) Send(ctx context.Context, to Recipient, n Notification) error {
	if to.Email == "" {
		return nil
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", msg.FormatAddress(c.cfg.FromEmail, c.cfg.FromName))
	msg.SetHeader("To", msg.FormatAddress(to.Email, to.Name))
	msg.SetHeader("Subject", n.Title)
	msg.SetBody("text/html", renderEmail(to, n))
	return c.dialer.DialAndSend(msg)
}

func renderEmail(to Recipient, n Notification) string {
	greeting := "Hello"
	if to.Name != "" {
		greeting += " " + html.EscapeString(to.Name)
	}
	body := fmt.Sprintf("<p>%s,</p><p>%s</p>", greeting, html.EscapeString(n.Body))
	if n.EntityType != "" && n.EntityID != "" {
		body += fmt.Sprintf("<p style='color:#666;font-size:12px'>%s %s</p>",
			html.EscapeString(n.EntityType), html.EscapeString(n.EntityID))
	}
	return body
}

// ChatChannel posts one card per notification to a group chat bot
type ChatChannel struct {
	bot *feishu.BotClient
}

// NewChatChannel returns nil when no bot webhook is configured
func NewChatChannel(cfg config.ChatConfig) *ChatChannel {
	if cfg.WebhookURL == "" {
		return nil
	}
	return &ChatChannel{bot: feishu.NewBotClient(cfg.WebhookURL, cfg.Secret)}
}

func (c *ChatChannel) Name() string { return "chat" }

// Send posts to a single recipient
func (c *ChatChannel) Send(ctx context.Context, to Recipient, n Notification) error {
	return c.Broadcast(ctx, []Recipient{to}, n)
}

func (c *ChatChannel) Broadcast(ctx context.Context, to []Recipient, n Notification) error {
	names := make([]string, 0, len(to))
	for _, r := range to {
		if r.Name != "" {
			names = append(names, r.Name)
		} else {
			names = append(names, r.ID)
		}
	}
	card := feishu.NewNotificationCard(n.Title, n.Body, []feishu.CardEntry{
		{Label: "Type", Value: n.EntityType},
		{Label: "ID", Value: n.EntityID},
	}, names)
	return c.bot.SendCard(ctx, card)
}
