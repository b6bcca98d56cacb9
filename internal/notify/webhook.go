package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/wonny/limitup/pkg/httputil"
	"github.com/wonny/limitup/pkg/logger"
)

// feishuText is the text message body of a bot webhook
type feishuText struct {
	MsgType string `json:"msg_type"`
	Content struct {
		Text string `json:"text"`
	} `json:"content"`
}

type feishuReply struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// WebhookNotifier posts messages to a chat bot webhook (Feishu style JSON)
type WebhookNotifier struct {
	client *httputil.Client
	url    string
	logger *logger.Logger
}

// NewWebhookNotifier creates a webhook notifier; retries are bounded by the client
func NewWebhookNotifier(client *httputil.Client, url string, log *logger.Logger) *WebhookNotifier {
	if log == nil {
		log = logger.Nop()
	}
	return &WebhookNotifier{client: client, url: url, logger: log.WithComponent("webhook")}
}

// Notify posts the message text
func (w *WebhookNotifier) Notify(ctx context.Context, msg Message) error {
	if w.url == "" {
		return nil
	}

	var body feishuText
	body.MsgType = "text"
	body.Content.Text = msg.String()

	resp, err := w.client.PostJSON(ctx, w.url, body)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("webhook read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook status %d: %s", resp.StatusCode, string(raw))
	}

	// 본문이 JSON이 아니면 상태 코드만으로 판단
	var reply feishuReply
	if err := json.Unmarshal(raw, &reply); err == nil && reply.Code != 0 {
		return fmt.Errorf("webhook rejected (code %d): %s", reply.Code, reply.Msg)
	}

	w.logger.WithFields(map[string]interface{}{
		"kind":  msg.Kind,
		"title": msg.Title,
	}).Debug("Webhook delivered")
	return nil
}
