package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"fleetd/internal/config"
	"fleetd/internal/domain"
)

// Compile-time check that EmailChannel satisfies Channel.
var _ Channel = (*EmailChannel)(nil)

// EmailChannel sends plain-text alert mail over SMTP. It targets an
// internal unauthenticated relay; authenticated submission belongs on
// the relay, not here.
type EmailChannel struct {
	addr string
	from string
	to   []string
}

// NewEmailChannel creates an email channel for the given relay address
// and recipients.
func NewEmailChannel(addr, from string, to []string) *EmailChannel {
	return &EmailChannel{addr: addr, from: from, to: to}
}

// RegisterEmail registers the email channel factory. The channel is
// enabled when a relay address, sender, and at least one recipient are
// configured.
func RegisterEmail() {
	Register(domain.ChannelEmail, func(cfg config.Channels) (Channel, bool) {
		if cfg.SMTPAddr == "" || cfg.EmailFrom == "" || len(cfg.EmailTo) == 0 {
			return nil, false
		}
		return NewEmailChannel(cfg.SMTPAddr, cfg.EmailFrom, cfg.EmailTo), true
	})
}

// Name returns the channel identifier recorded on notification rows.
func (c *EmailChannel) Name() string {
	return domain.ChannelEmail
}

// Send delivers the alert as a plain-text message.
func (c *EmailChannel) Send(ctx context.Context, a *domain.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", c.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(c.to, ", "))
	fmt.Fprintf(&b, "Subject: [%s] Fleet Alert: %s\r\n", strings.ToUpper(a.Severity), a.AlertType)
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "%s\r\n\r\n", a.Message)
	fmt.Fprintf(&b, "Resource Type: %s\r\n", a.ResourceType)
	fmt.Fprintf(&b, "Resource ID: %s\r\n", a.ResourceID)
	fmt.Fprintf(&b, "Severity: %s\r\n", a.Severity)
	fmt.Fprintf(&b, "Timestamp: %s\r\n", a.CreatedAt.Format(time.RFC3339))

	if err := smtp.SendMail(c.addr, nil, c.from, c.to, []byte(b.String())); err != nil {
		return fmt.Errorf("email: send failed: %w", err)
	}
	return nil
}
