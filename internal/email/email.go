// Package email composes and sends customer notifications. Delivery is
// best-effort everywhere: callers log failures and move on.
package email

import "context"

// Message is an email to be sent.
type Message struct {
	To       string
	Subject  string
	TextBody string
}

// Sender delivers email messages. Implementations can use SMTP, Postmark,
// SES, etc.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}
