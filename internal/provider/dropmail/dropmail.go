// Package dropmail implements provider.Provider against the dropmail.me
// GraphQL API.
package dropmail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"dropinbox/internal/domain"
)

// maxErrorBody caps how much of a failed response is kept for the error message.
const maxErrorBody = 4096

type Config struct {
	Endpoint string
	Timeout  time.Duration
}

type Client struct {
	endpoint   string
	httpClient *http.Client
	log        logrus.FieldLogger
}

func New(cfg Config, log logrus.FieldLogger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		endpoint:   cfg.Endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
	c.log = log.WithField("provider", c.Name())
	return c
}

func (c *Client) Name() string {
	return "dropmail"
}

// CreateMailbox runs the introduceSession mutation. The session id, the first
// address and the expiry must all be present or the call fails.
func (c *Client) CreateMailbox(ctx context.Context) (*domain.Session, error) {
	const op = "create mailbox"

	var data introduceSessionData
	if err := c.do(ctx, op, graphqlRequest{Query: introduceSessionMutation}, &data); err != nil {
		return nil, err
	}

	s := data.IntroduceSession
	if s == nil || s.ID == "" || s.ExpiresAt == "" || len(s.Addresses) == 0 || s.Addresses[0].Address == "" {
		return nil, domain.NewProviderError(op, domain.ErrMalformedResponse)
	}

	expiresAt, err := time.Parse(time.RFC3339, s.ExpiresAt)
	if err != nil {
		return nil, domain.NewProviderError(op, fmt.Errorf("%w: expiresAt %q", domain.ErrMalformedResponse, s.ExpiresAt))
	}

	return &domain.Session{
		SessionID: s.ID,
		Address:   s.Addresses[0].Address,
		ExpiresAt: expiresAt.UnixMilli(),
	}, nil
}

// ListMessages queries the mails of sessionID. A null session, or a
// response without data (the provider rejecting a stale or invalid id),
// yields no messages.
func (c *Client) ListMessages(ctx context.Context, sessionID string) ([]domain.Message, error) {
	const op = "list messages"

	req := graphqlRequest{
		Query:     sessionMailsQuery,
		Variables: map[string]any{"id": sessionID},
	}

	var data sessionData
	if err := c.do(ctx, op, req, &data); err != nil {
		var nd *noDataError
		if errors.As(err, &nd) {
			c.log.WithField("error", nd.Error()).Debug("provider reported no session")
			return []domain.Message{}, nil
		}
		return nil, err
	}
	if data.Session == nil {
		return []domain.Message{}, nil
	}

	msgs := make([]domain.Message, 0, len(data.Session.Mails))
	for _, m := range data.Session.Mails {
		msgs = append(msgs, c.toMessage(m))
	}
	return msgs, nil
}

func (c *Client) toMessage(m mailItem) domain.Message {
	msg := domain.Message{
		Sender:  m.FromAddr,
		Subject: m.HeaderSubject,
		Body:    m.Text,
		Size:    m.RawSize,
	}
	if msg.Body == "" && m.Raw != "" {
		body, err := extractBody(m.Raw)
		if err != nil {
			c.log.WithError(err).Debug("failed to parse raw mail body")
		}
		msg.Body = body
	}
	if m.ReceivedAt != "" {
		if t, err := time.Parse(time.RFC3339, m.ReceivedAt); err == nil {
			msg.ReceivedAt = &t
		}
	}
	return msg
}

// do posts one GraphQL operation and decodes its data member into out.
func (c *Client) do(ctx context.Context, op string, gql graphqlRequest, out any) error {
	body, err := json.Marshal(gql)
	if err != nil {
		return domain.NewProviderError(op, fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.NewProviderError(op, fmt.Errorf("failed to create request: %w", err))
	}
	requestID := ulid.Make().String()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	log := c.log.WithFields(logrus.Fields{"op": op, "request_id": requestID})
	started := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewProviderError(op, err)
	}
	defer resp.Body.Close()

	log.WithFields(logrus.Fields{
		"status":   resp.StatusCode,
		"duration": time.Since(started),
	}).Debug("provider responded")

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return domain.NewProviderError(op, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet)))
	}

	var envelope graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return domain.NewProviderError(op, fmt.Errorf("failed to decode response: %w", err))
	}

	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		nd := &noDataError{}
		if len(envelope.Errors) > 0 {
			nd.Message = envelope.Errors[0].Message
		}
		return domain.NewProviderError(op, fmt.Errorf("%w: %w", domain.ErrMalformedResponse, nd))
	}
	if len(envelope.Errors) > 0 {
		log.WithField("error", envelope.Errors[0].Message).Warn("provider returned partial errors")
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return domain.NewProviderError(op, fmt.Errorf("failed to decode data: %w", err))
	}
	return nil
}
