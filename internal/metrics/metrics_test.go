package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeHost(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/live.m3u8", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeHost(tc.input); got != tc.expected {
				t.Errorf("SanitizeHost(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if httpRequestsTotal == nil || probeChecksTotal == nil ||
		rateLimitDelaysSeconds == nil || notificationDeliveriesTotal == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObservers(t *testing.T) {
	ObserveProbe("offline", "dns_failure", 20*time.Millisecond)
	if val := testutil.ToFloat64(probeChecksTotal.WithLabelValues("offline", "dns_failure")); val != 1 {
		t.Errorf("Expected probe checks to be 1, got %f", val)
	}

	ObserveNotification("webhook", nil)
	ObserveNotification("webhook", errors.New("boom"))
	if val := testutil.ToFloat64(notificationDeliveriesTotal.WithLabelValues("webhook", "error")); val != 1 {
		t.Errorf("Expected failed deliveries to be 1, got %f", val)
	}

	ObserveScheduledTrigger("skipped")
	if val := testutil.ToFloat64(scheduledTriggersTotal.WithLabelValues("skipped")); val != 1 {
		t.Errorf("Expected skipped triggers to be 1, got %f", val)
	}
}

// Fuzz test for SanitizeHost.
func FuzzSanitizeHost(f *testing.F) {
	testcases := []string{"http://example.com", "https://cdn.example.org/live", "rtmp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeHost(orig) == "" {
			t.Errorf("SanitizeHost(%q) returned an empty string", orig)
		}
	})
}
