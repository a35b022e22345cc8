package photometer

import (
	"fmt"
	"strconv"
	"strings"
)

// Reading is one parsed photometer line. A failed measurement (the
// device reporting an ERR line) yields Valid=false; callers translate
// that into a missing sample rather than a zero.
type Reading struct {
	Luminance float64 // cd/m^2
	Valid     bool
	ErrCode   string
}

// Line prefixes emitted by the device in CSV output mode.
const (
	prefixLuminance = "LUM,"
	prefixError     = "ERR,"
)

// IsReadingLine reports whether a line carries a measurement (or a
// measurement failure) as opposed to a command ack or banner text.
func IsReadingLine(line string) bool {
	return strings.HasPrefix(line, prefixLuminance) || strings.HasPrefix(line, prefixError)
}

// ParseReading parses a `LUM,<value>` or `ERR,<code>` line.
func ParseReading(line string) (Reading, error) {
	line = strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(line, prefixLuminance):
		v, err := strconv.ParseFloat(strings.TrimSpace(line[len(prefixLuminance):]), 64)
		if err != nil {
			return Reading{}, fmt.Errorf("failed to parse luminance %q: %v", line, err)
		}
		if v < 0 {
			return Reading{}, fmt.Errorf("negative luminance %q", line)
		}
		return Reading{Luminance: v, Valid: true}, nil

	case strings.HasPrefix(line, prefixError):
		return Reading{Valid: false, ErrCode: strings.TrimSpace(line[len(prefixError):])}, nil

	default:
		return Reading{}, fmt.Errorf("unrecognised reading line %q", line)
	}
}

// AllowedCommands is the allow list of two character photometer commands
// that may be passed through the API command endpoint.
var AllowedCommands = []string{
	"??", // Query overall device information
	"?S", // Read serial number
	"?V", // Read firmware version
	"?B", // Read battery / supply status
	"?T", // Read sensor temperature

	// Units
	"U?", // Query current luminance units
	"UC", // Set units to candela per square metre
	"UF", // Set units to foot-lamberts

	// Output format
	"O?", // Query output format
	"OV", // CSV output (LUM,<value> per reading)
	"OJ", // JSON output

	// Measurement control
	"M1", // Take a single measurement
	"MC", // Start continuous measurement
	"MS", // Stop continuous measurement

	// Integration window
	"I1", // Short integration (fast, noisy)
	"I2", // Medium integration
	"I3", // Long integration (slow, stable)

	// Calibration
	"Z0", // Dark-reading zero calibration
	"ZR", // Restore factory zero
}
