package smsgatehttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

type Client struct {
	baseURL string
	apiKey  string
	sender  string
	httpc   *http.Client
}

func New(baseURL, apiKey, sender string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:9100"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		sender:  sender,
		httpc: &http.Client{
			Timeout: timeout,
		},
	}
}

type sendReq struct {
	Sender  string   `json:"sender,omitempty"`
	To      []string `json:"to"`
	Message string   `json:"message"`
}

type sendResp struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (c *Client) Send(ctx context.Context, destinations []string, message string) error {
	if len(destinations) == 0 {
		return errors.New("no destinations")
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return errors.Wrap(err, "parse base url")
	}
	u.Path = "/v1/sms/send"

	body, err := json.Marshal(sendReq{Sender: c.sender, To: destinations, Message: message})
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("sms gateway http %d", resp.StatusCode)
	}

	var r sendResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return errors.Wrap(err, "decode")
	}
	if r.Status != "ok" {
		return fmt.Errorf("sms gateway status=%s detail=%s", r.Status, r.Detail)
	}
	return nil
}
