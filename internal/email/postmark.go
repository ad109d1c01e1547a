package email

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

const postmarkAPI = "https://api.postmarkapp.com"

// PostmarkSender delivers mail through the Postmark HTTP API.
type PostmarkSender struct {
	client      *resty.Client
	serverToken string
	from        string
}

type PostmarkOption func(*PostmarkSender)

// WithBaseURL points the sender at another API host.
func WithBaseURL(url string) PostmarkOption {
	return func(s *PostmarkSender) {
		s.client.SetBaseURL(url)
	}
}

func NewPostmarkSender(serverToken, from string, opts ...PostmarkOption) *PostmarkSender {
	s := &PostmarkSender{
		client: resty.New().
			SetBaseURL(postmarkAPI).
			SetHeader("Accept", "application/json"),
		serverToken: serverToken,
		from:        from,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Configured returns true if the server token is set.
func (s *PostmarkSender) Configured() bool {
	return s.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

type postmarkError struct {
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
}

func (s *PostmarkSender) Send(ctx context.Context, msg Message) error {
	if !s.Configured() {
		return fmt.Errorf("postmark sender not configured: missing server token")
	}

	var apiErr postmarkError
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("X-Postmark-Server-Token", s.serverToken).
		SetBody(postmarkEmail{
			From:     s.from,
			To:       msg.To,
			Subject:  msg.Subject,
			HtmlBody: msg.HTML,
			TextBody: msg.Text,
		}).
		SetError(&apiErr).
		Post("/email")
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	if resp.IsError() {
		if apiErr.Message != "" {
			return fmt.Errorf("postmark API error: status %d: %s", resp.StatusCode(), apiErr.Message)
		}
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode())
	}

	return nil
}
