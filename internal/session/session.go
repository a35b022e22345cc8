// Package session drives a calibration measurement run: it steps the
// display through a sequence of gun values, collects photometer readings
// at each level, and assembles the gun-value vector and luminance matrix
// consumed by the gamma fitter.
//
// A session is deliberately non-interactive: levels advance on a settle
// timer, not on keypresses, and the whole run is cancellable through its
// context.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/luminance.report/internal/gamma"
	"github.com/banshee-data/luminance.report/internal/monitoring"
	"github.com/banshee-data/luminance.report/internal/photometer"
	"github.com/banshee-data/luminance.report/internal/timeutil"
)

// DisplayDriver sets the gun value shown by the display under
// calibration. Implementations are expected to present a full-field patch
// at the given intensity on all guns.
type DisplayDriver interface {
	SetLevel(level int) error
}

// ChannelDisplayDriver extends DisplayDriver for RGB displays that can
// drive one gun at a time. Required for three-channel runs.
type ChannelDisplayDriver interface {
	DisplayDriver
	SetChannelLevel(channel, level int) error
}

// Options configures a measurement run.
type Options struct {
	Steps       int           // number of gun levels, endpoints always included
	Repeats     int           // photometer readings averaged per level
	Settle      time.Duration // wait between setting a level and measuring
	ReadTimeout time.Duration // per-reading wait before giving up
	Channels    int           // 1 (grayscale) or 3 (RGB)
	Clock       timeutil.Clock
}

// Result is the raw material for a gamma fit: S gun values and an S by C
// matrix of averaged luminance readings, with gamma.Missing marking
// levels where no repeat produced a valid reading.
type Result struct {
	GunValues []float64
	Luminance [][]float64
}

func (o Options) withDefaults() Options {
	if o.Steps == 0 {
		o.Steps = 9
	}
	if o.Repeats == 0 {
		o.Repeats = 3
	}
	if o.ReadTimeout == 0 {
		o.ReadTimeout = 2 * time.Second
	}
	if o.Channels == 0 {
		o.Channels = 1
	}
	if o.Clock == nil {
		o.Clock = timeutil.RealClock{}
	}
	return o
}

// Run executes a measurement session against the given photometer mux
// and display. The mux's Monitor loop must already be running.
func Run(ctx context.Context, mux photometer.Muxer, display DisplayDriver, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	if opts.Steps < 2 {
		return nil, fmt.Errorf("need at least 2 steps, got %d", opts.Steps)
	}
	if opts.Channels != 1 && opts.Channels != 3 {
		return nil, fmt.Errorf("unsupported channel count %d, want 1 or 3", opts.Channels)
	}

	var chanDisplay ChannelDisplayDriver
	if opts.Channels == 3 {
		var ok bool
		if chanDisplay, ok = display.(ChannelDisplayDriver); !ok {
			return nil, fmt.Errorf("display driver cannot address individual guns; needed for 3-channel runs")
		}
	}

	id, lines := mux.Subscribe()
	defer mux.Unsubscribe(id)

	gun := gamma.GunLevels(opts.Steps)
	lum := make([][]float64, opts.Steps)
	for i := range lum {
		lum[i] = make([]float64, opts.Channels)
	}

	for c := 0; c < opts.Channels; c++ {
		for i, level := range gun {
			var err error
			if opts.Channels == 3 {
				err = chanDisplay.SetChannelLevel(c, int(level))
			} else {
				err = display.SetLevel(int(level))
			}
			if err != nil {
				return nil, fmt.Errorf("step %d channel %d: set level %d: %w", i, c, int(level), err)
			}

			if err := sleepCtx(ctx, opts.Clock, opts.Settle); err != nil {
				return nil, err
			}

			avg, valid, err := measureLevel(ctx, mux, lines, opts)
			if err != nil {
				return nil, fmt.Errorf("step %d channel %d: %w", i, c, err)
			}
			if valid == 0 {
				monitoring.Logf("step %d channel %d: no valid reading at level %d, marking missing", i, c, int(level))
				lum[i][c] = gamma.Missing
			} else {
				lum[i][c] = avg
			}
		}
	}

	return &Result{GunValues: gun, Luminance: lum}, nil
}

// measureLevel takes opts.Repeats readings at the current level and
// returns their mean and the count of valid readings.
func measureLevel(ctx context.Context, mux photometer.Muxer, lines chan string, opts Options) (avg float64, valid int, err error) {
	sum := 0.0
	for r := 0; r < opts.Repeats; r++ {
		if err := mux.SendCommand("M1"); err != nil {
			return 0, 0, fmt.Errorf("measurement command: %w", err)
		}

		reading, err := awaitReading(ctx, lines, opts.ReadTimeout, opts.Clock)
		if err != nil {
			return 0, 0, err
		}
		if !reading.Valid {
			monitoring.Logf("photometer reported ERR,%s, skipping repeat %d", reading.ErrCode, r)
			continue
		}
		sum += reading.Luminance
		valid++
	}
	if valid == 0 {
		return 0, 0, nil
	}
	return sum / float64(valid), valid, nil
}

// awaitReading waits for the next parseable reading line, skipping
// command acks and banner noise.
func awaitReading(ctx context.Context, lines chan string, timeout time.Duration, clock timeutil.Clock) (photometer.Reading, error) {
	deadline := clock.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return photometer.Reading{}, ctx.Err()
		case <-deadline.C():
			return photometer.Reading{}, fmt.Errorf("timed out waiting for photometer reading after %v", timeout)
		case line, ok := <-lines:
			if !ok {
				return photometer.Reading{}, fmt.Errorf("photometer stream closed")
			}
			if !photometer.IsReadingLine(line) {
				continue
			}
			reading, err := photometer.ParseReading(line)
			if err != nil {
				monitoring.Logf("discarding malformed reading line %q: %v", line, err)
				continue
			}
			return reading, nil
		}
	}
}

func sleepCtx(ctx context.Context, clock timeutil.Clock, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C():
		return nil
	}
}
