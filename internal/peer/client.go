package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/julianstephens/nextup/internal/constants"
	"github.com/julianstephens/nextup/internal/peersync"
)

// Client talks to one remote peer server.
type Client struct {
	baseURL  string
	http     *http.Client
	secret   []byte
	userID   string
	deviceID string
	now      func() time.Time
}

// NewClient returns a client for the peer at baseURL. A zero timeout uses
// the default request timeout.
func NewClient(baseURL string, secret []byte, userID, deviceID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = constants.PeerRequestTimeout
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		secret:   secret,
		userID:   userID,
		deviceID: deviceID,
		now:      time.Now,
	}
}

// BaseURL returns the peer address.
func (c *Client) BaseURL() string { return c.baseURL }

// FetchManifest downloads the peer's manifest.
func (c *Client) FetchManifest(ctx context.Context) (peersync.ManifestMessage, error) {
	var msg peersync.ManifestMessage
	err := c.do(ctx, http.MethodGet, "/v1/manifest", nil, &msg)
	return msg, err
}

// SendManifest posts our manifest and returns the peer's reply.
func (c *Client) SendManifest(ctx context.Context, msg peersync.ManifestMessage) (peersync.ManifestReply, error) {
	var reply peersync.ManifestReply
	err := c.do(ctx, http.MethodPost, "/v1/manifest", msg, &reply)
	return reply, err
}

// PushEvents delivers events to the peer.
func (c *Client) PushEvents(ctx context.Context, events []peersync.TaskEvent) (EventsResponse, error) {
	var resp EventsResponse
	if len(events) == 0 {
		return resp, nil
	}
	err := c.do(ctx, http.MethodPost, "/v1/events", events, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	token, err := IssueToken(c.secret, c.userID, c.deviceID, c.now())
	if err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, c.baseURL+path, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		var e errorResponse
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			return fmt.Errorf("%s %s: status %d: %s", method, path, res.StatusCode, e.Error)
		}
		return fmt.Errorf("%s %s: status %d: %s", method, path, res.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
