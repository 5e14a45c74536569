package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/channel-liveness/internal/app"
	"github.com/JakeFAU/channel-liveness/internal/channel"
	"github.com/JakeFAU/channel-liveness/internal/controller"
	"github.com/JakeFAU/channel-liveness/internal/report"
	"github.com/JakeFAU/channel-liveness/internal/storage"
)

type startRunResponse struct {
	RunID  string            `json:"run_id"`
	Status channel.RunStatus `json:"status"`
	Total  int               `json:"total"`
}

type progressResponse struct {
	channel.TestProgress
	Summary report.Summary `json:"summary"`
}

type idleResponse struct {
	Status    channel.RunStatus           `json:"status"`
	Total     int                         `json:"total"`
	Completed int                         `json:"completed"`
	Results   []channel.ChannelTestResult `json:"results"`
}

type channelsResponse struct {
	Channels []storage.ChannelState `json:"channels"`
}

// startRun handles POST /v1/runs. It returns 202 with the run id, 409 while
// another run is active, and 400 when there is nothing to probe.
func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	if _, err := s.svc.Trigger(r.Context()); err != nil {
		switch {
		case errors.Is(err, controller.ErrRunActive):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, controller.ErrNoChannels):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.logger.Error("start run failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	resp := startRunResponse{Status: channel.RunRunning}
	if p := s.runs.GetProgress(); p != nil {
		resp.RunID = p.RunID
		resp.Total = p.Total
		resp.Status = p.Status
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) currentRun(w http.ResponseWriter, _ *http.Request) {
	p := s.runs.GetProgress()
	if p == nil {
		writeJSON(w, http.StatusOK, idleResponse{
			Status:  channel.RunIdle,
			Results: []channel.ChannelTestResult{},
		})
		return
	}
	writeJSON(w, http.StatusOK, progressResponse{TestProgress: *p, Summary: report.Summarize(*p)})
}

func (s *Server) cancelRun(w http.ResponseWriter, _ *http.Request) {
	if !s.runs.CancelRun() {
		writeError(w, http.StatusBadRequest, "no run in progress")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

func (s *Server) currentReport(w http.ResponseWriter, _ *http.Request) {
	p := s.runs.GetProgress()
	if p == nil {
		writeError(w, http.StatusNotFound, "no run has been started")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(s.svc.RenderReport(*p)))
}

func (s *Server) listChannels(w http.ResponseWriter, _ *http.Request) {
	if s.states == nil {
		writeError(w, http.StatusServiceUnavailable, "channel status unavailable")
		return
	}
	writeJSON(w, http.StatusOK, channelsResponse{Channels: s.states.States()})
}

func (s *Server) testWebhook(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.svc.TestWebhook(r.Context(), name); err != nil {
		if errors.Is(err, app.ErrUnknownWebhook) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Warn("webhook test failed", zap.String("webhook", name), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"sent": true})
}
