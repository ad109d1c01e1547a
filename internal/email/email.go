package email

import (
	"context"
	"fmt"
	"html"
	"time"
)

type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

//go:generate mockgen -source=email.go -destination=../mock/email_mock.go -package=mock

// Sender delivers a message or reports why it could not.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// MagicLinkMessage builds the sign-in email for link, valid for ttl.
func MagicLinkMessage(to, link string, ttl time.Duration) Message {
	expiry := humanDuration(ttl)
	text := fmt.Sprintf("Sign in to NoteFlow\n\nFollow the link below to sign in:\n\n%s\n\nThis link expires in %s and can only be used once. If you did not request it, you can ignore this email.\n", link, expiry)
	htmlBody := fmt.Sprintf(
		`<p>Follow the link below to sign in to NoteFlow:</p><p><a href="%s">Sign in</a></p><p>This link expires in %s and can only be used once. If you did not request it, you can ignore this email.</p>`,
		html.EscapeString(link), expiry,
	)
	return Message{
		To:      to,
		Subject: "Sign in to NoteFlow",
		Text:    text,
		HTML:    htmlBody,
	}
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
