package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/banshee-data/eps.report/internal/eps"
	"github.com/banshee-data/eps.report/internal/evaluator"
	"github.com/banshee-data/eps.report/internal/httputil"
	"github.com/banshee-data/eps.report/internal/serialmux"
	"github.com/banshee-data/eps.report/internal/version"
)

// showSignals returns the buffered channels, spike-filtered with ?refined=1.
func (s *Server) showSignals(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	refined, _, err := httputil.QueryBool(r, "refined")
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	proc := s.eval.Processor()
	if refined {
		httputil.WriteJSONOK(w, proc.RefinedSignal())
		return
	}
	httputil.WriteJSONOK(w, proc.RawSignal())
}

func (s *Server) showLinearity(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	res, err := s.eval.Latest()
	if errors.Is(err, evaluator.ErrNoResult) {
		httputil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, res)
}

func (s *Server) showCurrent(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	stats, err := s.eval.Processor().CurrentConsumption()
	switch {
	case errors.Is(err, eps.ErrEmptyInput):
		httputil.NotFound(w, "no current samples buffered")
	case err != nil:
		httputil.InternalServerError(w, err.Error())
	default:
		httputil.WriteJSONOK(w, stats)
	}
}

type statusResponse struct {
	SessionID   string           `json:"session_id,omitempty"`
	Format      string           `json:"telegram_format"`
	Threshold   int              `json:"threshold"`
	Buffered    int              `json:"buffered"`
	Evaluating  bool             `json:"evaluating"`
	SourceStats *serialmux.Stats `json:"source,omitempty"`
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	proc := s.eval.Processor()
	resp := statusResponse{
		SessionID:  s.sessionID,
		Format:     proc.Format().String(),
		Threshold:  proc.Threshold(),
		Buffered:   proc.Len(),
		Evaluating: s.eval.Enabled(),
	}
	if s.source != nil {
		stats := s.source.Stats()
		resp.SourceStats = &stats
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodPost) {
		return
	}
	s.eval.Reset()
	httputil.WriteJSONOK(w, map[string]string{"status": "reset"})
}

// evaluate reports the evaluation toggle; POST ?enabled=false pauses it.
func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	if r.Method == http.MethodPost {
		enabled, present, err := httputil.QueryBool(r, "enabled")
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		if !present {
			httputil.BadRequest(w, "missing enabled parameter")
			return
		}
		s.eval.SetEnabled(enabled)
	}
	httputil.WriteJSONOK(w, map[string]bool{"enabled": s.eval.Enabled()})
}

// exportTelegrams streams the archived telegrams of the current session as
// a replayable capture file.
func (s *Server) exportTelegrams(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	if s.archive == nil || s.sessionID == "" {
		httputil.NotFound(w, "telegram archive disabled")
		return
	}
	telegrams, err := s.archive.SessionTelegrams(s.sessionID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to read archive: %v", err))
		return
	}

	var b strings.Builder
	for _, t := range telegrams {
		b.WriteString(t.Raw)
		b.WriteByte('\n')
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=eps-%s.txt", s.sessionID))
	_, _ = w.Write([]byte(b.String()))
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	httputil.WriteJSONOK(w, version.Get())
}
