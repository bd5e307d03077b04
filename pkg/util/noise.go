package util

import "math"

const (
	noiseMinLog    = 1e-38
	intFlatThresh  = 1e-10 // |slope| below this integrates as a flat density
	intUnityThresh = 1e-10 // |slope+1| below this integrates as 1/f
)

// NoiseLog is ln(x) guarded against zero densities.
func NoiseLog(x float64) float64 {
	return math.Log(math.Max(x, noiseMinLog))
}

// LogLogIntegrate integrates a spectral density between lastFreq and freq assuming it is a
// straight line on log-log axes between the two sample points.
func LogLogIntegrate(density, lastDensity, freq, lastFreq float64) float64 {
	if freq <= lastFreq || lastFreq <= 0 {
		return 0
	}

	lnFreq := math.Log(freq)
	lnLastFreq := math.Log(lastFreq)
	delLnFreq := lnFreq - lnLastFreq

	lnDens := NoiseLog(density)
	exponent := (lnDens - NoiseLog(lastDensity)) / delLnFreq
	if math.Abs(exponent) < intFlatThresh {
		return density * (freq - lastFreq)
	}

	a := math.Exp(lnDens - exponent*lnFreq)
	exponent += 1.0
	if math.Abs(exponent) < intUnityThresh {
		return a * delLnFreq
	}
	return a * (math.Exp(exponent*lnFreq) - math.Exp(exponent*lnLastFreq)) / exponent
}
