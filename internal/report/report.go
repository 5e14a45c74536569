// Package report renders liveness runs into a plain-text summary suitable for
// chat webhooks and archives.
package report

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/JakeFAU/channel-liveness/internal/channel"
)

const (
	separator  = "━━━━━━━━━━━━━━━━━━"
	timeLayout = "2006-01-02 15:04:05"
)

// Summary aggregates the results of a run.
type Summary struct {
	Total             int   `json:"total"`
	Online            int   `json:"online"`
	Offline           int   `json:"offline"`
	AvgResponseTimeMs int64 `json:"avgResponseTime"`
}

// Summarize counts results by status against the run total. The average
// covers only results carrying a response time, rounded to the nearest
// millisecond.
func Summarize(p channel.TestProgress) Summary {
	s := Summary{Total: p.Total}
	var sum int64
	var timed int
	for _, r := range p.Results {
		if r.Online() {
			s.Online++
		} else {
			s.Offline++
		}
		if r.ResponseTimeMs != nil {
			sum += *r.ResponseTimeMs
			timed++
		}
	}
	if timed > 0 {
		s.AvgResponseTimeMs = int64(math.Round(float64(sum) / float64(timed)))
	}
	return s
}

// OnlineRate returns the rounded percentage of online channels, 0 when the run
// has no channels.
func OnlineRate(s Summary) int {
	if s.Total == 0 {
		return 0
	}
	return int(math.Round(float64(s.Online) * 100 / float64(s.Total)))
}

// Formatter renders reports with timestamps in a fixed location.
type Formatter struct {
	loc *time.Location
}

// NewFormatter returns a Formatter for loc. A nil loc means UTC.
func NewFormatter(loc *time.Location) *Formatter {
	if loc == nil {
		loc = time.UTC
	}
	return &Formatter{loc: loc}
}

// Format renders p with UTC timestamps.
func Format(p channel.TestProgress) string {
	return NewFormatter(time.UTC).Format(p)
}

// Format renders p. The output depends only on p and the formatter location.
func (f *Formatter) Format(p channel.TestProgress) string {
	s := Summarize(p)
	var b strings.Builder
	b.WriteString("📺 Channel Status Report\n")
	b.WriteString(separator + "\n")
	fmt.Fprintf(&b, "Checked at: %s\n", p.StartedAt.In(f.loc).Format(timeLayout))
	fmt.Fprintf(&b, "Status: %s\n", statusLabel(p.Status))
	b.WriteString(separator + "\n")
	b.WriteString("📊 Summary:\n")
	fmt.Fprintf(&b, "  • Total channels: %d\n", s.Total)
	fmt.Fprintf(&b, "  • Online: %d ✅\n", s.Online)
	fmt.Fprintf(&b, "  • Offline: %d ❌\n", s.Offline)
	fmt.Fprintf(&b, "  • Online rate: %d%%\n", OnlineRate(s))
	fmt.Fprintf(&b, "  • Average response time: %dms\n", s.AvgResponseTimeMs)

	if s.Offline > 0 {
		b.WriteString("\n⚠️ Offline channels:\n")
		n := 0
		for _, r := range p.Results {
			if r.Online() {
				continue
			}
			n++
			fmt.Fprintf(&b, "  %d. %s\n", n, r.ChannelName)
			if r.ErrorMessage != "" {
				fmt.Fprintf(&b, "     Reason: %s\n", r.ErrorMessage)
			}
		}
	}
	return b.String()
}

func statusLabel(s channel.RunStatus) string {
	switch s {
	case channel.RunCompleted:
		return "✅ completed"
	case channel.RunCancelled:
		return "❌ cancelled"
	case channel.RunRunning:
		return "🔄 running"
	default:
		return string(s)
	}
}
