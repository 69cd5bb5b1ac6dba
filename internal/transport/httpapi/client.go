package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/colonyops/parley/internal/core/chat"
	"github.com/colonyops/parley/pkg/iojson"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
	Data    map[string]any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

// Client talks to a running parley server.
type Client struct {
	BaseURL  string
	Username string
	Password string
	HTTP     *http.Client
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		bits, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(bits)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.BaseURL, "/")+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Username != "" {
		req.SetBasicAuth(c.Username, c.Password)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkResponse(resp); err != nil {
		return err
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func checkResponse(resp *http.Response) error {
	if resp.StatusCode < 300 {
		return nil
	}
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var body iojson.Error
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Message != "" {
		apiErr.Message = body.Message
		apiErr.Data = body.Data
	}
	return apiErr
}

// Send posts a message to a room.
func (c *Client) Send(ctx context.Context, room string, in SendRequest) (chat.Message, error) {
	var msg chat.Message
	err := c.do(ctx, http.MethodPost, "/rooms/"+url.PathEscape(room)+"/messages", in, &msg)
	return msg, err
}

// History fetches a page of a room's messages.
func (c *Client) History(ctx context.Context, room string, offset, count int) ([]chat.Message, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("count", strconv.Itoa(count))

	var msgs []chat.Message
	err := c.do(ctx, http.MethodGet, "/rooms/"+url.PathEscape(room)+"/messages?"+q.Encode(), nil, &msgs)
	return msgs, err
}

// Stream follows a room's newline-delimited JSON stream, calling fn for
// every message until ctx is cancelled, the server ends the stream or fn
// returns an error.
func (c *Client) Stream(ctx context.Context, room string, fn func(chat.Message) error) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/rooms/"+url.PathEscape(room)+"/stream", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkResponse(resp); err != nil {
		return err
	}

	dec := json.NewDecoder(resp.Body)
	for {
		var msg chat.Message
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read stream: %w", err)
		}
		if err := fn(msg); err != nil {
			return err
		}
	}
}

// StreamWebsocket is Stream over the websocket endpoint. Cancelling ctx
// sends a cancel frame before closing.
func (c *Client) StreamWebsocket(ctx context.Context, room string, fn func(chat.Message) error) error {
	u, err := url.Parse(strings.TrimRight(c.BaseURL, "/") + "/rooms/" + url.PathEscape(room) + "/ws")
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	header := http.Header{}
	if c.Username != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.Password))
		header.Set("Authorization", "Basic "+creds)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			defer func() { _ = resp.Body.Close() }()
			if apiErr := checkResponse(resp); apiErr != nil {
				return apiErr
			}
		}
		return err
	}
	defer func() { _ = conn.Close() }()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteJSON(ControlFrame{Type: FrameCancel})
		_ = conn.Close()
	})
	defer stop()

	for {
		var msg chat.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read websocket: %w", err)
		}
		if err := fn(msg); err != nil {
			return err
		}
	}
}

// Upload stores r as media and returns its URL.
func (c *Client) Upload(ctx context.Context, r io.Reader) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.BaseURL, "/")+"/media", r)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if c.Username != "" {
		req.SetBasicAuth(c.Username, c.Password)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkResponse(resp); err != nil {
		return "", err
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	return out.URL, nil
}
