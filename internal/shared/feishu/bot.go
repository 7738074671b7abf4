package feishu

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// BotClient posts messages to a group chat through a custom bot webhook
type BotClient struct {
	webhookURL string
	secret     string
	httpClient *http.Client
	now        func() time.Time
}

// NewBotClient secret may be empty when the bot has signature checks disabled
func NewBotClient(webhookURL, secret string) *BotClient {
	return &BotClient{
		webhookURL: webhookURL,
		secret:     secret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
}

type botResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Sign computes the webhook signature: base64(HMAC-SHA256(key=timestamp+"\n"+secret, "")).
func Sign(timestamp int64, secret string) string {
	key := strconv.FormatInt(timestamp, 10) + "\n" + secret
	mac := hmac.New(sha256.New, []byte(key))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// SendCard posts an interactive card
func (c *BotClient) SendCard(ctx context.Context, card InteractiveCard) error {
	body := map[string]interface{}{
		"msg_type": "interactive",
		"card":     card,
	}
	if c.secret != "" {
		ts := c.now().Unix()
		body["timestamp"] = strconv.FormatInt(ts, 10)
		body["sign"] = Sign(ts, c.secret)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode card: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("read webhook response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}

	var result botResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil {
			return fmt.Errorf("decode webhook response: %w", err)
		}
	}
	if result.Code != 0 {
		return fmt.Errorf("webhook error[%d]: %s", result.Code, result.Msg)
	}
	return nil
}
