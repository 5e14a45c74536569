package prober

import (
	"context"
	"errors"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// Failure messages reported in ProbeOutcome.Error.
const (
	MsgInvalidURL        = "invalid URL"
	MsgTooManyRedirects  = "too many redirects"
	MsgReadTimeout       = "read timeout"
	MsgNoData            = "no data"
	MsgConnectTimeout    = "connection timeout"
	MsgConnectionRefused = "connection refused"
	MsgDNSFailure        = "DNS resolution failed"
	MsgConnectionReset   = "connection reset"
	MsgCancelled         = "probe cancelled"
	MsgProbeFailed       = "probe failed"
	MsgRequestFailed     = "request failed"
)

// maxDetailLen bounds the transport detail appended to MsgRequestFailed.
const maxDetailLen = 120

// Classify maps a transport error to a user-facing failure message. The
// caller's context is consulted first so aborted probes report MsgCancelled.
func Classify(ctx context.Context, err error) string {
	if ctx != nil && ctx.Err() != nil {
		return MsgCancelled
	}
	if err == nil {
		return MsgProbeFailed
	}
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &dnsErr):
		return MsgDNSFailure
	case errors.Is(err, syscall.ECONNREFUSED):
		return MsgConnectionRefused
	case errors.Is(err, syscall.ECONNRESET):
		return MsgConnectionReset
	case isTimeout(err):
		return MsgConnectTimeout
	case errors.Is(err, context.Canceled):
		return MsgCancelled
	}
	detail := err.Error()
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		detail = urlErr.Err.Error()
	}
	return requestFailed(detail)
}

// requestFailed prefixes an unclassified error with MsgRequestFailed and caps
// its length.
func requestFailed(detail string) string {
	detail = strings.TrimSpace(detail)
	if detail == "" {
		return MsgRequestFailed
	}
	if len(detail) > maxDetailLen {
		detail = strings.ToValidUTF8(detail[:maxDetailLen], "") + "..."
	}
	return MsgRequestFailed + ": " + detail
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
