package prober

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/channel-liveness/internal/channel"
)

// Config controls the time and size budget of a single probe.
type Config struct {
	ConnectTimeout     time.Duration
	ReadTimeout        time.Duration
	MaxBytes           int64
	MaxRedirects       int
	UserAgent          string
	InsecureSkipVerify bool
}

// Defaults applied by New when a field is left zero.
const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultReadTimeout    = 15 * time.Second
	DefaultMaxBytes       = 64 * 1024
	DefaultMaxRedirects   = 5
	DefaultUserAgent      = "Mozilla/5.0 (compatible; TVList-Checker/1.0)"
)

// DefaultConfig returns the standard probe budget.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: DefaultConnectTimeout,
		ReadTimeout:    DefaultReadTimeout,
		MaxBytes:       DefaultMaxBytes,
		MaxRedirects:   DefaultMaxRedirects,
		UserAgent:      DefaultUserAgent,
	}
}

// Limiter paces outbound probes per host.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Prober implements channel.Prober over HTTP(S). It is stateless across
// calls and safe for concurrent use.
type Prober struct {
	cfg     Config
	client  *http.Client
	limiter Limiter
	logger  *zap.Logger
}

// Option customizes a Prober.
type Option func(*Prober)

// WithLimiter paces probes through l before each request, redirect hops included.
func WithLimiter(l Limiter) Option {
	return func(p *Prober) {
		p.limiter = l
	}
}

// WithLogger attaches a logger for debug output.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Prober) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithTransport swaps the round tripper used for requests.
func WithTransport(rt http.RoundTripper) Option {
	return func(p *Prober) {
		if rt != nil {
			p.client.Transport = rt
		}
	}
}

var errReadTimeout = errors.New("read timeout")

// New builds a Prober, filling zero config fields with defaults.
func New(cfg Config, opts ...Option) *Prober {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.MaxRedirects < 0 {
		cfg.MaxRedirects = 0
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	p := &Prober{
		cfg: cfg,
		client: &http.Client{
			Transport: newTransport(cfg),
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func newTransport(cfg Config) *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ConnectTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		DisableKeepAlives:     true,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // opt-in for self-signed stream hosts
			MinVersion:         tls.VersionTLS12,
		},
	}
}

// Config returns the effective probe budget.
func (p *Prober) Config() Config {
	return p.cfg
}

// Probe checks rawURL and returns a definite outcome; it never panics.
func (p *Prober) Probe(ctx context.Context, rawURL string) (out channel.ProbeOutcome) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("probe panicked", zap.String("url", rawURL), zap.Any("panic", rec))
			out = failure(MsgProbeFailed)
		}
	}()
	target, ok := parseTarget(rawURL)
	if !ok {
		return failure(MsgInvalidURL)
	}
	for hops := 0; ; hops++ {
		if hops > p.cfg.MaxRedirects {
			return failure(MsgTooManyRedirects)
		}
		next, outcome := p.attempt(ctx, target)
		if next == nil {
			p.logger.Debug("probe finished",
				zap.String("url", rawURL),
				zap.Int("redirects", hops),
				zap.Bool("success", outcome.Success),
				zap.String("error", outcome.Error),
			)
			return outcome
		}
		target = next
	}
}

// attempt performs one hop. A non-nil URL means the response redirected there.
func (p *Prober) attempt(ctx context.Context, target *url.URL) (*url.URL, channel.ProbeOutcome) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx, target.String()); err != nil {
			return nil, failure(Classify(ctx, err))
		}
	}
	reqCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, failure(MsgInvalidURL)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, failure(Classify(ctx, err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if isRedirect(resp.StatusCode) {
		if loc := resp.Header.Get("Location"); loc != "" {
			next, err := target.Parse(loc)
			if err != nil || !validTarget(next) {
				return nil, failure(MsgInvalidURL)
			}
			return next, channel.ProbeOutcome{}
		}
	}
	if resp.StatusCode == 0 || resp.StatusCode >= http.StatusBadRequest {
		return nil, failure(fmt.Sprintf("HTTP status %d", resp.StatusCode))
	}

	timer := time.AfterFunc(p.cfg.ReadTimeout, func() { cancel(errReadTimeout) })
	defer timer.Stop()
	return nil, p.readBody(ctx, reqCtx, resp.Body)
}

func (p *Prober) readBody(ctx, reqCtx context.Context, body io.Reader) channel.ProbeOutcome {
	n, err := io.CopyN(io.Discard, body, p.cfg.MaxBytes)
	switch {
	case err == nil:
		return channel.ProbeOutcome{Success: true}
	case errors.Is(err, io.EOF):
		if n > 0 {
			return channel.ProbeOutcome{Success: true}
		}
		return failure(MsgNoData)
	case ctx.Err() != nil:
		return failure(MsgCancelled)
	case errors.Is(context.Cause(reqCtx), errReadTimeout):
		if n > 0 {
			return channel.ProbeOutcome{Success: true}
		}
		return failure(MsgReadTimeout)
	case n > 0:
		return channel.ProbeOutcome{Success: true}
	default:
		return failure(Classify(ctx, err))
	}
}

func parseTarget(rawURL string) (*url.URL, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || !validTarget(u) {
		return nil, false
	}
	return u, true
}

func validTarget(u *url.URL) bool {
	if u == nil || u.Hostname() == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func isRedirect(code int) bool {
	return code >= http.StatusMultipleChoices && code < http.StatusBadRequest
}

func failure(msg string) channel.ProbeOutcome {
	return channel.ProbeOutcome{Success: false, Error: msg}
}
