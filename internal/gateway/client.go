package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client talks to the chat gateway that actually delivers messages. The
// relay only needs four calls: availability, chat lookup, chat creation and
// text send.
type Client struct {
	address    string
	password   string
	httpClient *http.Client
}

func NewClient(address, password string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		address:  address,
		password: password,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// CheckIMessageAvailability reports whether the recipient can be reached
// over iMessage. Errors are treated as "not available" so the caller falls
// back to SMS instead of failing the send.
func (c *Client) CheckIMessageAvailability(ctx context.Context, address string) bool {
	params := url.Values{}
	params.Set("password", c.password)
	params.Set("address", address)

	var data struct {
		Available bool `json:"available"`
	}

	if err := c.get(ctx, "/api/v1/handle/availability/imessage", params, &data); err != nil {
		return false
	}

	return data.Available
}

// GetChat returns the gateway-side GUID for an existing chat, or empty when
// the chat does not exist.
func (c *Client) GetChat(ctx context.Context, chatGUID string) (string, error) {
	params := url.Values{}
	params.Set("password", c.password)

	var data struct {
		GUID string `json:"guid"`
	}

	if err := c.get(ctx, "/api/v1/chat/"+url.PathEscape(chatGUID), params, &data); err != nil {
		return "", err
	}

	return data.GUID, nil
}

// SendText sends a message into an existing chat and returns the message
// GUID assigned by the gateway.
func (c *Client) SendText(ctx context.Context, chatGUID, message string) (string, error) {
	body := map[string]interface{}{
		"chatGuid": chatGUID,
		"message":  message,
		"method":   "private-api",
	}

	var data struct {
		GUID string `json:"guid"`
	}

	if err := c.post(ctx, "/api/v1/message/text", body, &data); err != nil {
		return "", err
	}

	return data.GUID, nil
}

// CreateChat creates a chat with the recipient, delivering message as its
// first entry, and returns the message GUID.
func (c *Client) CreateChat(ctx context.Context, recipient, message string) (string, error) {
	body := map[string]interface{}{
		"addresses": []string{recipient},
		"message":   message,
	}

	var data struct {
		Messages []struct {
			GUID string `json:"guid"`
		} `json:"messages"`
	}

	if err := c.post(ctx, "/api/v1/chat/new", body, &data); err != nil {
		return "", err
	}

	if len(data.Messages) == 0 {
		return "", fmt.Errorf("gateway created chat without a message")
	}

	return data.Messages[0].GUID, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.address+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	params := url.Values{}
	params.Set("password", c.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.address+path+"?"+params.Encode(), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}

	if out != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode gateway response data: %w", err)
		}
	}

	return nil
}
