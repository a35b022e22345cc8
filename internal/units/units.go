// Package units provides shared constants and validation for luminance units
package units

// Unit constants
const (
	CDM2 = "cdm2"
	NIT  = "nit"
	FL   = "fl"
	ASB  = "asb"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{CDM2, NIT, FL, ASB}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "cdm2, nit, fl, asb"
}

// ConvertLuminance converts a luminance from candela per square metre to
// the target units. The photometer reports and the database stores cd/m².
func ConvertLuminance(lumCDM2 float64, targetUnits string) float64 {
	switch targetUnits {
	case FL:
		return lumCDM2 * 0.291864 // cd/m² to foot-lamberts
	case ASB:
		return lumCDM2 * 3.14159265 // cd/m² to apostilbs
	case CDM2, NIT:
		return lumCDM2 // nit is an alias for cd/m²
	default:
		return lumCDM2 // default to cd/m² if unknown unit
	}
}
