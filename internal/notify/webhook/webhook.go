// Package webhook delivers reports to chat robot webhooks (WeCom, DingTalk,
// Feishu) and to generic JSON endpoints.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/JakeFAU/channel-liveness/internal/channel"
	"github.com/JakeFAU/channel-liveness/internal/clock/system"
)

// Kind selects the payload dialect of a webhook.
type Kind string

// Supported webhook kinds.
const (
	KindWeChat   Kind = "wechat"
	KindDingTalk Kind = "dingtalk"
	KindFeishu   Kind = "feishu"
	KindCustom   Kind = "custom"
)

// DefaultTimeout bounds a single delivery.
const DefaultTimeout = 10 * time.Second

const maxResponseBytes = 64 * 1024

// Config describes one webhook target.
type Config struct {
	Kind    Kind
	URL     string
	Timeout time.Duration
}

// Option customises a Notifier.
type Option func(*Notifier)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(n *Notifier) {
		if c != nil {
			n.client = c
		}
	}
}

// WithClock overrides the clock used for custom payload timestamps.
func WithClock(c channel.Clock) Option {
	return func(n *Notifier) {
		if c != nil {
			n.clock = c
		}
	}
}

// Notifier posts messages to a webhook.
type Notifier struct {
	kind   Kind
	url    string
	client *http.Client
	clock  channel.Clock
}

// New validates cfg and builds a Notifier.
func New(cfg Config, opts ...Option) (*Notifier, error) {
	switch cfg.Kind {
	case KindWeChat, KindDingTalk, KindFeishu, KindCustom:
	default:
		return nil, fmt.Errorf("unsupported webhook type %q", cfg.Kind)
	}
	if cfg.URL == "" {
		return nil, errors.New("webhook url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	n := &Notifier{
		kind:   cfg.Kind,
		url:    cfg.URL,
		client: &http.Client{Timeout: timeout},
		clock:  system.New(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Kind returns the payload dialect.
func (n *Notifier) Kind() Kind {
	return n.kind
}

type textPayload struct {
	MsgType string      `json:"msgtype"`
	Text    textContent `json:"text"`
}

type textContent struct {
	Content string `json:"content"`
}

type feishuPayload struct {
	MsgType string        `json:"msg_type"`
	Content feishuContent `json:"content"`
}

type feishuContent struct {
	Text string `json:"text"`
}

type customPayload struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
}

// robotResponse covers the WeCom/DingTalk (errcode) and Feishu (code) shapes.
type robotResponse struct {
	ErrCode *int   `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
	Code    *int   `json:"code"`
	Msg     string `json:"msg"`
}

// Notify posts message in the webhook's dialect and checks the response.
func (n *Notifier) Notify(ctx context.Context, message string) error {
	body, err := n.payload(message)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", n.kind, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", n.kind, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s webhook: %w", n.kind, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s webhook returned status %d", n.kind, resp.StatusCode)
	}
	if n.kind == KindCustom {
		return nil
	}

	var rr robotResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&rr); err != nil {
		return fmt.Errorf("decode %s response: %w", n.kind, err)
	}
	if n.kind == KindFeishu {
		if rr.Code == nil || *rr.Code != 0 {
			return fmt.Errorf("feishu error: %s", rr.Msg)
		}
		return nil
	}
	if rr.ErrCode == nil || *rr.ErrCode != 0 {
		return fmt.Errorf("%s error: %s", n.kind, rr.ErrMsg)
	}
	return nil
}

func (n *Notifier) payload(message string) ([]byte, error) {
	var v any
	switch n.kind {
	case KindWeChat, KindDingTalk:
		v = textPayload{MsgType: "text", Text: textContent{Content: message}}
	case KindFeishu:
		v = feishuPayload{MsgType: "text", Content: feishuContent{Text: message}}
	default:
		v = customPayload{Message: message, Timestamp: n.clock.Now(), Type: "channel_test_report"}
	}
	return json.Marshal(v)
}

// DisplayName is the human name of a webhook kind.
func DisplayName(kind Kind) string {
	switch kind {
	case KindWeChat:
		return "WeCom"
	case KindDingTalk:
		return "DingTalk"
	case KindFeishu:
		return "Feishu"
	case KindCustom:
		return "Custom"
	default:
		return string(kind)
	}
}

// TestMessage renders the message used to verify a webhook configuration.
func TestMessage(kind Kind, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf(
		"🔧 Webhook test message\n\nThis message verifies the %s webhook configuration.\n\nSent at: %s",
		DisplayName(kind),
		now.In(loc).Format("2006-01-02 15:04:05"),
	)
}
