package api

import (
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"

	"github.com/banshee-data/luminance.report/internal/caldb"
	"github.com/banshee-data/luminance.report/internal/gamma"
	"github.com/banshee-data/luminance.report/internal/photometer"
	"github.com/banshee-data/luminance.report/internal/units"
	"github.com/banshee-data/luminance.report/internal/version"
)

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	runs, err := s.db.ListRuns(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve runs: %v", err))
		return
	}

	if err := json.NewEncoder(w).Encode(runs); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write runs")
		return
	}
}

// runDetail is the full record for one calibration run: metadata, raw
// samples, and (when the fit has been stored) per channel parameters.
// Missing readings come back from storage as NaN, which encoding/json
// cannot represent, so the sample matrix is serialised with null holes.
type runDetail struct {
	Run       caldb.Run    `json:"run"`
	Units     string       `json:"units"`
	GunValues []float64    `json:"gun_values"`
	Luminance [][]*float64 `json:"luminance"`
	Fits      []caldb.Fit  `json:"fits,omitempty"`
}

// nullableMatrix converts the stored cd/m² readings to the server's
// configured units, with nil for missing entries.
func (s *Server) nullableMatrix(lum [][]float64) [][]*float64 {
	out := make([][]*float64, len(lum))
	for i, row := range lum {
		out[i] = make([]*float64, len(row))
		for j := range row {
			if gamma.IsMissing(row[j]) {
				continue
			}
			v := units.ConvertLuminance(row[j], s.units)
			out[i][j] = &v
		}
	}
	return out
}

func (s *Server) showRun(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'run_id' parameter")
		return
	}

	run, err := s.db.GetRun(runID)
	if errors.Is(err, sql.ErrNoRows) {
		s.writeJSONError(w, http.StatusNotFound, "Run not found")
		return
	} else if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve run: %v", err))
		return
	}

	gun, lum, err := s.db.GetSamples(runID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve samples: %v", err))
		return
	}

	fits, err := s.db.GetFits(runID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve fits: %v", err))
		return
	}

	detail := runDetail{Run: run, Units: s.units, GunValues: gun, Luminance: s.nullableMatrix(lum), Fits: fits}
	if err := json.NewEncoder(w).Encode(detail); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write run")
		return
	}
}

func (s *Server) downloadTable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		http.Error(w, "Missing 'run_id' parameter", http.StatusBadRequest)
		return
	}

	table, err := s.db.GetTable(runID)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "No table stored for run", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, fmt.Sprintf("Failed to retrieve table: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", runID+"-table.csv"))

	cw := csv.NewWriter(w)
	header := []string{"level"}
	if len(table[0]) == 3 {
		header = append(header, "red", "green", "blue")
	} else {
		header = append(header, "luminance")
	}
	cw.Write(header)

	for i, row := range table {
		record := make([]string, 0, len(row)+1)
		record = append(record, strconv.Itoa(i))
		for _, v := range row {
			record = append(record, strconv.FormatFloat(v, 'f', 6, 64))
		}
		cw.Write(record)
	}
	cw.Flush()
}

// fitRequest is the payload for the stateless fit endpoint. Missing
// readings are passed as JSON null.
type fitRequest struct {
	GunValues []float64    `json:"gun_values"`
	Luminance [][]*float64 `json:"luminance"`
	Method    int          `json:"method"`
}

type fitResponse struct {
	Method       int         `json:"method"`
	Gamma        []float64   `json:"gamma"`
	LowAsymptote []float64   `json:"low_asymptote,omitempty"`
	Table        [][]float64 `json:"table"`
}

func (s *Server) fitSamples(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req fitRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	method := gamma.Method(req.Method)
	if req.Method == 0 {
		method = gamma.DefaultMethod
	}

	lum := make([][]float64, len(req.Luminance))
	for i, row := range req.Luminance {
		lum[i] = make([]float64, len(row))
		for j, v := range row {
			if v == nil {
				lum[i][j] = gamma.Missing
			} else {
				lum[i][j] = *v
			}
		}
	}

	res, err := gamma.Calibrate(req.GunValues, lum, method)
	switch {
	case errors.Is(err, gamma.ErrInvalidInput):
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, gamma.ErrNumerical), errors.Is(err, gamma.ErrFitConvergence):
		s.writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := fitResponse{
		Method: int(res.Method),
		Gamma:  res.Gamma,
		Table:  res.Table,
	}
	if len(res.LowAsymptote) > 0 {
		resp.LowAsymptote = res.LowAsymptote
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write fit result")
		return
	}
}

// startCalibration triggers a measurement session against the attached
// photometer and display, blocking until the run is fitted and stored.
// Calibration runs take real time on hardware (settle delays per level),
// so the caller's context governs cancellation.
func (s *Server) startCalibration(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if s.calibrate == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "No measurement hardware attached")
		return
	}

	runID, err := s.calibrate(r.Context())
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Calibration failed: %v", err))
		return
	}

	if err := json.NewEncoder(w).Encode(map[string]string{"run_id": runID}); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write run ID")
		return
	}
}

func (s *Server) sendCommandHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.m == nil {
		http.Error(w, "No photometer attached", http.StatusServiceUnavailable)
		return
	}

	command := r.FormValue("command")
	if !slices.Contains(photometer.AllowedCommands, command) {
		http.Error(w, "Command not allowed", http.StatusBadRequest)
		return
	}

	if err := s.m.SendCommand(command); err != nil {
		http.Error(w, "Failed to send command", http.StatusInternalServerError)
		return
	}
	io.WriteString(w, "Command sent successfully")
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	config := map[string]interface{}{
		"device":  s.device,
		"units":   s.units,
		"version": version.Version,
	}

	if err := json.NewEncoder(w).Encode(config); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write config")
		return
	}
}
