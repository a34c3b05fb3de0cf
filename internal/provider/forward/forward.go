// Package forward implements provider.Provider by calling the forwarding
// endpoints served by cmd/api.
package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dropinbox/internal/domain"
)

const (
	generatePath = "/api/generateEmail"
	fetchPath    = "/api/fetchEmails"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string {
	return "forward"
}

func (c *Client) CreateMailbox(ctx context.Context) (*domain.Session, error) {
	const op = "create mailbox"

	var resp domain.GenerateEmailResponse
	if err := c.post(ctx, op, generatePath, nil, &resp); err != nil {
		return nil, err
	}
	if resp.GeneratedEmail == "" || resp.GeneratedSessionID == "" || resp.Expiration == 0 {
		return nil, domain.NewProviderError(op, domain.ErrMalformedResponse)
	}

	return &domain.Session{
		SessionID: resp.GeneratedSessionID,
		Address:   resp.GeneratedEmail,
		ExpiresAt: resp.Expiration,
	}, nil
}

func (c *Client) ListMessages(ctx context.Context, sessionID string) ([]domain.Message, error) {
	const op = "list messages"

	var resp domain.FetchEmailsResponse
	if err := c.post(ctx, op, fetchPath, domain.FetchEmailsRequest{SessionID: sessionID}, &resp); err != nil {
		return nil, err
	}
	if resp.Mails == nil {
		return []domain.Message{}, nil
	}
	return resp.Mails, nil
}

func (c *Client) post(ctx context.Context, op, path string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return domain.NewProviderError(op, fmt.Errorf("failed to marshal request: %w", err))
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return domain.NewProviderError(op, fmt.Errorf("failed to create request: %w", err))
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewProviderError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr domain.ErrorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return domain.NewProviderError(op, fmt.Errorf("status %d: %s", resp.StatusCode, apiErr.Error))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewProviderError(op, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}
