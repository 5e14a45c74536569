package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/channel-liveness/internal/storage"
)

// ReportArchive stores rendered reports in-memory and returns pseudo URIs.
type ReportArchive struct {
	mu      sync.RWMutex
	reports map[string]string
}

// NewReportArchive creates a new in-memory report archive.
func NewReportArchive() *ReportArchive {
	return &ReportArchive{reports: make(map[string]string)}
}

// PutReport keeps report under the run's object name.
func (a *ReportArchive) PutReport(_ context.Context, runID string, report string) (string, error) {
	name, err := storage.ReportObjectName("reports", runID)
	if err != nil {
		return "", err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reports[name] = report
	return fmt.Sprintf("memory://%s", name), nil
}

// Report returns the stored report for runID.
func (a *ReportArchive) Report(runID string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	r, ok := a.reports["reports/"+runID+".txt"]
	return r, ok
}
