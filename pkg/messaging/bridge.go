package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ErrNotDelivered is returned when the bridge answers but reports that the
// message was not accepted.
var ErrNotDelivered = eris.New("messaging: message not delivered")

// Option configures a bridge client.
type Option func(*bridge)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(b *bridge) {
		b.http = hc
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(b *bridge) {
		if d > 0 {
			b.http = &http.Client{Timeout: d}
		}
	}
}

type bridge struct {
	baseURL string
	http    *http.Client
}

func newBridge(baseURL string, opts []Option) bridge {
	b := bridge{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(&b)
	}
	return b
}

func (b bridge) do(req *http.Request) ([]byte, error) {
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "messaging: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "messaging: read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, eris.Errorf("messaging: unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// SMSBridge sends SMS through the bridge's /send-sms endpoint.
type SMSBridge struct {
	bridge
}

// NewSMSBridge creates an SMS sender for the bridge at baseURL.
func NewSMSBridge(baseURL string, opts ...Option) *SMSBridge {
	return &SMSBridge{bridge: newBridge(baseURL, opts)}
}

type sendSMSRequest struct {
	PhoneNumber string `json:"phone_number"`
	Text        string `json:"text"`
}

type sendSMSResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// SendSMS implements SMSSender.
func (s *SMSBridge) SendSMS(ctx context.Context, to, text string) error {
	payload, err := json.Marshal(sendSMSRequest{PhoneNumber: to, Text: text})
	if err != nil {
		return eris.Wrap(err, "messaging: marshal sms")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/send-sms", bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "messaging: create sms request")
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := s.do(req)
	if err != nil {
		return err
	}
	var out sendSMSResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return eris.Wrap(err, "messaging: unmarshal sms response")
	}
	if !out.Success {
		return eris.Wrapf(ErrNotDelivered, "sms to %s: %s", to, out.Message)
	}
	return nil
}

// EmailBridge sends email through the bridge's /gmail/send endpoint on
// behalf of one mailbox.
type EmailBridge struct {
	bridge
	userID string
}

// NewEmailBridge creates an email sender for the bridge at baseURL.
func NewEmailBridge(baseURL, userID string, opts ...Option) *EmailBridge {
	return &EmailBridge{bridge: newBridge(baseURL, opts), userID: userID}
}

// SendEmail implements EmailSender.
func (e *EmailBridge) SendEmail(ctx context.Context, to, subject, body string) error {
	q := url.Values{}
	q.Set("user_id", e.userID)
	q.Set("to", to)
	q.Set("subject", subject)
	q.Set("body", body)
	q.Set("body_type", "plain")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/gmail/send?"+q.Encode(), nil)
	if err != nil {
		return eris.Wrap(err, "messaging: create email request")
	}
	if _, err := e.do(req); err != nil {
		return eris.Wrapf(err, "email to %s", to)
	}
	return nil
}
