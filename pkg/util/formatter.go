package util

import (
	"fmt"
	"math"
)

var siPrefixes = []struct {
	scale  float64
	prefix string
}{
	{1e9, "G"}, {1e6, "M"}, {1e3, "k"}, {1, ""},
	{1e-3, "m"}, {1e-6, "u"}, {1e-9, "n"}, {1e-12, "p"}, {1e-15, "f"},
}

// FormatValueFactor prints value with the SI prefix that keeps the mantissa in [1, 1000).
func FormatValueFactor(value float64, unit string) string {
	abs := math.Abs(value)
	for _, p := range siPrefixes {
		if abs >= p.scale {
			return fmt.Sprintf("%.3f %s%s", value/p.scale, p.prefix, unit)
		}
	}
	return fmt.Sprintf("%.3e %s", value, unit)
}

// FormatFrequency is fixed width, up to GHz.
func FormatFrequency(freq float64) string {
	for _, p := range siPrefixes[:3] {
		if freq >= p.scale {
			return fmt.Sprintf("%7.3f %sHz", freq/p.scale, p.prefix)
		}
	}
	return fmt.Sprintf("%7.3f Hz ", freq)
}

// FormatMagnitudePhase renders a phasor as name=mag<phasedeg.
func FormatMagnitudePhase(name string, value, phase float64) string {
	return fmt.Sprintf("%s=%s<%sdeg", name, FormatMagnitude(value), FormatPhase(phase))
}

// FormatMagnitude switches to exponent form outside [1e-3, 1e3).
func FormatMagnitude(value float64) string {
	if value >= 1000 || (value < 0.001 && value != 0) {
		return fmt.Sprintf("%8.2e", value)
	}
	return fmt.Sprintf("%8.3g", value)
}

func FormatPhase(value float64) string {
	return fmt.Sprintf("%6.1f", value)
}
