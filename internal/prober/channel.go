package prober

import (
	"context"
	"strings"

	"github.com/JakeFAU/channel-liveness/internal/channel"
	"github.com/JakeFAU/channel-liveness/internal/metrics"
)

// ProbeChannel probes ch.URL and turns the outcome into a ChannelTestResult.
// The response time is measured with clock and recorded only for online results.
func ProbeChannel(ctx context.Context, p channel.Prober, clock channel.Clock, ch channel.Channel) channel.ChannelTestResult {
	start := clock.Now()
	out := p.Probe(ctx, ch.URL)
	end := clock.Now()
	if out.Success {
		metrics.ObserveProbe(string(channel.StatusOnline), "", end.Sub(start))
		return channel.NewOnlineResult(ch, end.Sub(start), end)
	}
	reason := out.Error
	if reason == "" {
		reason = MsgProbeFailed
	}
	metrics.ObserveProbe(string(channel.StatusOffline), ReasonLabel(reason), end.Sub(start))
	return channel.NewOfflineResult(ch, reason, end)
}

var reasonLabels = map[string]string{
	MsgInvalidURL:        "invalid_url",
	MsgTooManyRedirects:  "too_many_redirects",
	MsgReadTimeout:       "read_timeout",
	MsgNoData:            "no_data",
	MsgConnectTimeout:    "connection_timeout",
	MsgConnectionRefused: "connection_refused",
	MsgDNSFailure:        "dns_failure",
	MsgConnectionReset:   "connection_reset",
	MsgCancelled:         "cancelled",
	MsgProbeFailed:       "probe_failed",
}

// ReasonLabel maps a failure message to a bounded metric label.
func ReasonLabel(reason string) string {
	if label, ok := reasonLabels[reason]; ok {
		return label
	}
	if strings.HasPrefix(reason, "HTTP status ") {
		return "http_status"
	}
	if strings.HasPrefix(reason, MsgRequestFailed) {
		return "request_failed"
	}
	return "other"
}
