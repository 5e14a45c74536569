package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/channel-liveness/internal/clock/system"
)

type captured struct {
	contentType string
	body        map[string]any
}

func newServer(t *testing.T, status int, response string, got *captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got != nil {
			got.contentType = r.Header.Get("Content-Type")
			data, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(data, &got.body)
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNotifyPayloads(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC)
	tests := []struct {
		kind     Kind
		response string
		check    func(t *testing.T, body map[string]any)
	}{
		{
			kind:     KindWeChat,
			response: `{"errcode":0,"errmsg":"ok"}`,
			check: func(t *testing.T, body map[string]any) {
				require.Equal(t, "text", body["msgtype"])
				require.Equal(t, map[string]any{"content": "hello"}, body["text"])
			},
		},
		{
			kind:     KindDingTalk,
			response: `{"errcode":0,"errmsg":"ok"}`,
			check: func(t *testing.T, body map[string]any) {
				require.Equal(t, "text", body["msgtype"])
				require.Equal(t, map[string]any{"content": "hello"}, body["text"])
			},
		},
		{
			kind:     KindFeishu,
			response: `{"code":0,"msg":"success"}`,
			check: func(t *testing.T, body map[string]any) {
				require.Equal(t, "text", body["msg_type"])
				require.Equal(t, map[string]any{"text": "hello"}, body["content"])
			},
		},
		{
			kind:     KindCustom,
			response: ``,
			check: func(t *testing.T, body map[string]any) {
				require.Equal(t, "hello", body["message"])
				require.Equal(t, "channel_test_report", body["type"])
				require.Equal(t, "2025-03-01T02:00:00Z", body["timestamp"])
			},
		},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			t.Parallel()
			var got captured
			srv := newServer(t, http.StatusOK, tt.response, &got)
			n, err := New(Config{Kind: tt.kind, URL: srv.URL}, WithClock(system.NewManual(now)))
			require.NoError(t, err)

			require.NoError(t, n.Notify(context.Background(), "hello"))
			require.Equal(t, "application/json", got.contentType)
			tt.check(t, got.body)
		})
	}
}

func TestNotifyErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		kind     Kind
		status   int
		response string
		want     string
	}{
		{name: "non 2xx", kind: KindCustom, status: http.StatusBadGateway, want: "status 502"},
		{name: "dingtalk errcode", kind: KindDingTalk, status: http.StatusOK, response: `{"errcode":310000,"errmsg":"keywords not in content"}`, want: "dingtalk error: keywords not in content"},
		{name: "wechat missing errcode", kind: KindWeChat, status: http.StatusOK, response: `{}`, want: "wechat error"},
		{name: "feishu code", kind: KindFeishu, status: http.StatusOK, response: `{"code":19021,"msg":"sign match fail"}`, want: "feishu error: sign match fail"},
		{name: "bad json", kind: KindFeishu, status: http.StatusOK, response: `<html>`, want: "decode feishu response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := newServer(t, tt.status, tt.response, nil)
			n, err := New(Config{Kind: tt.kind, URL: srv.URL})
			require.NoError(t, err)
			require.ErrorContains(t, n.Notify(context.Background(), "hello"), tt.want)
		})
	}
}

type trackedBody struct {
	io.Reader
	closed bool
}

func (b *trackedBody) Close() error {
	b.closed = true
	return nil
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestNotifyClosesResponseBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		kind    Kind
		status  int
		body    string
		wantErr bool
	}{
		{name: "custom ok", kind: KindCustom, status: http.StatusOK},
		{name: "non 2xx", kind: KindDingTalk, status: http.StatusInternalServerError, wantErr: true},
		{name: "robot error", kind: KindWeChat, status: http.StatusOK, body: `{"errcode":93000,"errmsg":"invalid webhook url"}`, wantErr: true},
		{name: "robot ok", kind: KindFeishu, status: http.StatusOK, body: `{"code":0,"msg":"success"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			body := &trackedBody{Reader: strings.NewReader(tt.body)}
			client := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
				return &http.Response{StatusCode: tt.status, Body: body, Header: http.Header{}}, nil
			})}
			n, err := New(Config{Kind: tt.kind, URL: "http://hooks.test/send"}, WithHTTPClient(client))
			require.NoError(t, err)
			err = n.Notify(context.Background(), "hello")
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.True(t, body.closed)
		})
	}
}

func TestNotifyTimeout(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-block
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(block) })

	n, err := New(Config{Kind: KindCustom, URL: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	require.ErrorContains(t, n.Notify(context.Background(), "hello"), "send custom webhook")
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Kind: "slack", URL: "http://x"})
	require.ErrorContains(t, err, `unsupported webhook type "slack"`)
	_, err = New(Config{Kind: KindFeishu})
	require.ErrorContains(t, err, "url is required")

	n, err := New(Config{Kind: KindWeChat, URL: "http://x"})
	require.NoError(t, err)
	require.Equal(t, KindWeChat, n.Kind())
}

func TestTestMessage(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC)
	msg := TestMessage(KindDingTalk, now, time.FixedZone("CST", 8*3600))
	require.Contains(t, msg, "DingTalk webhook")
	require.Contains(t, msg, "Sent at: 2025-03-01 10:00:00")
	require.Equal(t, "Feishu", DisplayName(KindFeishu))
	require.Equal(t, "other", DisplayName("other"))
}
