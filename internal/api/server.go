// Package api serves the live EPS engine state over HTTP: raw and refined
// signals, the latest linearity evaluation, current consumption, session
// export and chart views.
package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/eps.report/internal/db"
	"github.com/banshee-data/eps.report/internal/evaluator"
	"github.com/banshee-data/eps.report/internal/serialmux"
)

// ANSI escape codes for status colouring in the request log
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// Archive is the read side of the telegram store.
type Archive interface {
	SessionTelegrams(sessionID string) ([]db.ArchivedTelegram, error)
}

type Server struct {
	eval      *evaluator.Evaluator
	source    serialmux.SerialMuxInterface
	archive   Archive
	sessionID string
}

// NewServer wires the handlers to the evaluator. source and archive may be
// nil; the endpoints depending on them then report 404.
func NewServer(eval *evaluator.Evaluator, source serialmux.SerialMuxInterface, archive Archive, sessionID string) *Server {
	return &Server{
		eval:      eval,
		source:    source,
		archive:   archive,
		sessionID: sessionID,
	}
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/signals", s.showSignals)
	mux.HandleFunc("/api/linearity", s.showLinearity)
	mux.HandleFunc("/api/current", s.showCurrent)
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/reset", s.reset)
	mux.HandleFunc("/api/evaluate", s.evaluate)
	mux.HandleFunc("/api/telegrams/export", s.exportTelegrams)
	mux.HandleFunc("/api/version", s.showVersion)
	mux.HandleFunc("/charts/linearity", s.linearityChart)
	mux.HandleFunc("/charts/linearity.png", s.linearityPNG)
	return mux
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	code := strconv.Itoa(statusCode)
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + code + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + code + colorReset
	case statusCode >= 400:
		return colorBoldRed + code + colorReset
	default:
		return code
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}
