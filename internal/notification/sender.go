package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/Papaai2/baladymall-sub000/pkg/httpclient"
)

// Sender delivers one message. A nil error means the message was accepted.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a sender for local development.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, to, subject, body string) error {
	s.logger.InfoContext(ctx, "notification",
		slog.String("recipient", to),
		slog.String("subject", subject),
		slog.Int("body_bytes", len(body)),
	)
	return nil
}

// poster is the part of *httpclient.CircuitBreakerClient used by HTTPSender.
type poster interface {
	Post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error)
}

type relayRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// HTTPSender posts messages as JSON to a mail relay.
type HTTPSender struct {
	client poster
	url    string
	from   string
}

// NewHTTPSender creates a relay sender. client is normally a circuit-breaking
// httpclient so a dead relay fails fast.
func NewHTTPSender(client poster, url, from string) *HTTPSender {
	return &HTTPSender{client: client, url: url, from: from}
}

func (s *HTTPSender) Send(ctx context.Context, to, subject, body string) error {
	payload, err := json.Marshal(relayRequest{From: s.from, To: to, Subject: subject, Text: body})
	if err != nil {
		return fmt.Errorf("marshal relay request: %w", err)
	}

	resp, err := s.client.Post(ctx, s.url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("post to mail relay: %w", err)
	}
	if resp.StatusCode >= 300 {
		return httpclient.ParseResponseError(resp, "mail-relay")
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return nil
}
