package api

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/luminance.report/internal/gamma"
)

// curvePoints is the sampling density of the fitted curve overlay.
const curvePoints = 64

var chartChannelNames = []string{"red", "green", "blue"}

func channelSeriesName(channels, c int) string {
	if channels == 1 {
		return "luminance"
	}
	return chartChannelNames[c]
}

// fitChart renders a quick HTML chart of the normalised samples for a run
// with the fitted response curve overlaid. Debugging-only endpoint (no
// auth) for eyeballing fit quality without pulling the PNG plots.
// Query params:
//   - run_id (required)
func (s *Server) fitChart(w http.ResponseWriter, r *http.Request) {
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
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get run: %v", err))
		return
	}

	gun, lum, err := s.db.GetSamples(runID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get samples: %v", err))
		return
	}
	if len(gun) == 0 {
		s.writeJSONError(w, http.StatusNotFound, "no samples stored for run")
		return
	}

	fits, err := s.db.GetFits(runID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get fits: %v", err))
		return
	}

	method := gamma.Method(run.Method)
	channels := len(lum[0])

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Calibration Fit", Theme: "dark", Width: "900px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Normalised Response", Subtitle: fmt.Sprintf("run=%s method=%s channels=%d", runID, method, channels)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Min: 0, Max: 1, Name: "normalised gun", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "normalised luminance", NameLocation: "middle", NameGap: 30}),
	)

	line := charts.NewLine()

	for c := 0; c < channels; c++ {
		channelLum := make([]float64, len(lum))
		for i := range lum {
			channelLum[i] = lum[i][c]
		}

		in, out, err := gamma.Normalize(gun, channelLum, method)
		if err != nil {
			s.writeJSONError(w, http.StatusUnprocessableEntity,
				fmt.Sprintf("channel %d: %v", c, err))
			return
		}

		pts := make([]opts.ScatterData, 0, len(in))
		for i := range in {
			pts = append(pts, opts.ScatterData{Value: []interface{}{in[i], out[i]}})
		}
		scatter.AddSeries(channelSeriesName(channels, c)+" samples", pts,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))

		// Overlay the stored fit when one exists for this channel.
		for _, fit := range fits {
			if fit.Channel != c {
				continue
			}
			asymptote := 0.0
			if fit.LowAsymptote != nil {
				asymptote = *fit.LowAsymptote
			}
			curve := make([]opts.LineData, 0, curvePoints+1)
			for i := 0; i <= curvePoints; i++ {
				x := float64(i) / curvePoints
				y := asymptote + math.Pow(x, fit.Gamma)
				curve = append(curve, opts.LineData{Value: []interface{}{x, y}})
			}
			line.AddSeries(fmt.Sprintf("%s fit γ=%.3f", channelSeriesName(channels, c), fit.Gamma), curve,
				charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true), ShowSymbol: opts.Bool(false)}))
		}
	}

	scatter.Overlap(line)

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
