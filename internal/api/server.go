// Package api exposes calibration runs, gamma fits, and inverse lookup
// tables over HTTP, plus a debugging chart endpoint.
package api

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/luminance.report/internal/caldb"
	"github.com/banshee-data/luminance.report/internal/photometer"
	"github.com/banshee-data/luminance.report/internal/units"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// CalibrateFunc runs a full measurement-and-fit cycle and returns the
// stored run's ID.
type CalibrateFunc func(ctx context.Context) (string, error)

type Server struct {
	m         photometer.Muxer
	db        *caldb.DB
	device    string
	units     string
	calibrate CalibrateFunc
}

func NewServer(m photometer.Muxer, db *caldb.DB, device, lumUnits string) *Server {
	if !units.IsValid(lumUnits) {
		lumUnits = units.CDM2
	}
	return &Server{
		m:      m,
		db:     db,
		device: device,
		units:  lumUnits,
	}
}

// SetCalibrateFunc attaches the session trigger used by the
// /api/calibrate endpoint. Without one the endpoint reports the service
// as measurement-disabled.
func (s *Server) SetCalibrateFunc(f CalibrateFunc) {
	s.calibrate = f
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
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
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

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/run", s.showRun)
	mux.HandleFunc("/api/run/table.csv", s.downloadTable)
	mux.HandleFunc("/api/fit", s.fitSamples)
	mux.HandleFunc("/api/calibrate", s.startCalibration)
	mux.HandleFunc("/api/command", s.sendCommandHandler)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/debug/charts/fit", s.fitChart)
	return mux
}
