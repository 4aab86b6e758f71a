package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/opsdesk/vigia/internal/job"
)

const defaultAPIURL = "https://slack.com/api"

// Config holds Slack delivery settings. The token is a configuration input,
// normally supplied through the SLACK_TOKEN environment variable.
type Config struct {
	Token  string `toml:"token"`
	APIURL string `toml:"api_url"`
}

// Client delivers formatted messages through the Slack chat.postMessage API.
// One client is shared by all jobs; each delivery is a single bounded HTTP
// call with no queueing and no retry, per the delivery contract.
type Client struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// New creates a Slack client.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{},
		logger: logger,
	}
}

// postMessageResponse is the subset of the Slack API response we act on.
type postMessageResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// Deliver posts the message to its channel. A non-2xx status or an "ok":
// false body is a delivery error; the payload is not queued for retry.
func (c *Client) Deliver(ctx context.Context, msg job.Message) error {
	payload, err := json.Marshal(map[string]interface{}{
		"channel": msg.Channel,
		"text":    msg.Text,
		"mrkdwn":  true,
	})
	if err != nil {
		return err
	}

	url := strings.TrimRight(c.cfg.APIURL, "/") + "/chat.postMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack returned status %d: %s", resp.StatusCode, body)
	}

	var result postMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode slack response: %w", err)
	}

	if !result.OK {
		return fmt.Errorf("slack rejected message: %s", result.Error)
	}

	c.logger.Debug("message delivered", "channel", msg.Channel, "bytes", len(msg.Text))
	return nil
}
