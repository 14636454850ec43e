package snappy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PIO-VIA/Snapppy/internal/chats"
	"github.com/PIO-VIA/Snapppy/internal/lib/logger/sl"
	"github.com/PIO-VIA/Snapppy/internal/messages"
	userdomain "github.com/PIO-VIA/Snapppy/internal/users/domain"
)

const (
	defaultMaxRetries = 3
	maxErrorBody      = 4 << 10
)

type Client struct {
	baseURL    string
	token      string
	http       *http.Client
	log        *slog.Logger
	maxRetries int
	backoff    func(attempt int) time.Duration
}

func New(baseURL, token string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		http:       sharedHTTPClient(timeout),
		log:        log.With(slog.String("component", "snappy.client")),
		maxRetries: defaultMaxRetries,
		backoff:    jitteredBackoff,
	}
}

func sharedHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

func jitteredBackoff(attempt int) time.Duration {
	base := time.Duration(attempt*attempt) * 250 * time.Millisecond
	return base + time.Duration(rand.Int63n(int64(base/2+1)))
}

func (c *Client) CurrentUser(ctx context.Context) (*userdomain.User, error) {
	const op = "snappy.CurrentUser"

	var user *userdomain.User
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, &user, true); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (c *Client) ListUserChats(ctx context.Context, userID, projectID string) ([]chats.ChatResource, error) {
	const op = "snappy.ListUserChats"

	path := "/projects/" + url.PathEscape(projectID) + "/users/" + url.PathEscape(userID) + "/chats"

	var list []chats.ChatResource
	if err := c.do(ctx, http.MethodGet, path, nil, &list, true); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return list, nil
}

func (c *Client) GetChatDetails(ctx context.Context, req chats.GetChatDetailsRequest) (*chats.ChatDetails, error) {
	const op = "snappy.GetChatDetails"

	var details *chats.ChatDetails
	if err := c.do(ctx, http.MethodPost, "/chats/details", req, &details, true); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return details, nil
}

func (c *Client) FilterUsersByDisplayName(ctx context.Context, req userdomain.FilterRequest) ([]userdomain.User, error) {
	const op = "snappy.FilterUsersByDisplayName"

	var users []userdomain.User
	if err := c.do(ctx, http.MethodPost, "/users/filter", req, &users, true); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return users, nil
}

// SendMessage posts a message. The API answers with either one message or a list;
// both come back as a list. Sends are never retried.
func (c *Client) SendMessage(ctx context.Context, req messages.SendMessageRequest) ([]messages.Message, error) {
	const op = "snappy.SendMessage"

	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/messages", req, &raw, false); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sent, err := decodeMessages(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return sent, nil
}

func decodeMessages(raw json.RawMessage) ([]messages.Message, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var list []messages.Message
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decode message list: %w", err)
		}
		return list, nil
	}

	var single messages.Message
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return []messages.Message{single}, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, retry bool) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = b
	}

	attempts := 1
	if retry {
		attempts += c.maxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := c.backoff(attempt)
			c.log.Warn("retrying request",
				slog.String("path", path),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
				sl.Err(lastErr),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		err := c.roundTrip(ctx, method, path, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return err
		}

		if !retryable(err) {
			return err
		}
	}

	return lastErr
}

// retryable reports whether a failed round trip may succeed when repeated:
// transport errors, 5xx and 429.
func retryable(err error) bool {
	if errors.Is(err, ErrDecodeResponse) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.retryable()
	}

	return true
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return newAPIError(resp.StatusCode, strings.TrimSpace(string(b)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %w", ErrDecodeResponse, err)
	}

	return nil
}
