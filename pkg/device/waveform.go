package device

import "math"

// Waveform is the time function shared by independent sources.
type Waveform struct {
	Type SourceType
	// DC, SIN offset
	DC float64
	// SIN params
	Amplitude float64
	Freq      float64
	Phase     float64 // deg
	// PULSE params
	V1, V2 float64
	Delay  float64
	Rise   float64
	Fall   float64
	PWidth float64
	Period float64
	// PWL params
	Times  []float64
	Values []float64
	// AC params
	ACMag   float64
	ACPhase float64 // deg
}

func DCWave(value float64) Waveform { return Waveform{Type: DC, DC: value} }

func SinWave(offset, amplitude, freq, phase float64) Waveform {
	return Waveform{Type: SIN, DC: offset, Amplitude: amplitude, Freq: freq, Phase: phase}
}

func PulseWave(v1, v2, delay, rise, fall, pWidth, period float64) Waveform {
	return Waveform{Type: PULSE, V1: v1, V2: v2, Delay: delay, Rise: rise, Fall: fall, PWidth: pWidth, Period: period}
}

func PWLWave(times, values []float64) Waveform {
	return Waveform{Type: PWL, Times: times, Values: values}
}

// DCValue is the value seen by operating point and sweep analyses.
func (w *Waveform) DCValue() float64 {
	switch w.Type {
	case PULSE:
		return w.V1
	case PWL:
		if len(w.Values) == 0 {
			return 0
		}
		return w.Values[0]
	default:
		return w.DC
	}
}

func (w *Waveform) At(t float64) float64 {
	switch w.Type {
	case SIN:
		phaseRad := w.Phase * math.Pi / 180.0
		return w.DC + w.Amplitude*math.Sin(2.0*math.Pi*w.Freq*t+phaseRad)
	case PULSE:
		return w.pulse(t)
	case PWL:
		return w.pwl(t)
	default:
		return w.DC
	}
}

// Phasor is the AC excitation.
func (w *Waveform) Phasor() (re, im float64) {
	phaseRad := w.ACPhase * math.Pi / 180.0
	return w.ACMag * math.Cos(phaseRad), w.ACMag * math.Sin(phaseRad)
}

func (w *Waveform) pulse(t float64) float64 {
	if t < w.Delay {
		return w.V1
	}

	t -= w.Delay
	if w.Period > 0 {
		t = math.Mod(t, w.Period)
	}

	if t < w.Rise {
		return w.V1 + (w.V2-w.V1)*t/w.Rise
	}
	if t < w.Rise+w.PWidth {
		return w.V2
	}

	fallStart := w.Rise + w.PWidth
	if t < fallStart+w.Fall {
		return w.V2 - (w.V2-w.V1)*(t-fallStart)/w.Fall
	}
	return w.V1
}

func (w *Waveform) pwl(t float64) float64 {
	n := len(w.Times)
	if n == 0 {
		return 0
	}
	if t <= w.Times[0] {
		return w.Values[0]
	}
	if t >= w.Times[n-1] {
		return w.Values[n-1]
	}

	for i := 1; i < n; i++ {
		if t <= w.Times[i] {
			t1, t2 := w.Times[i-1], w.Times[i]
			v1, v2 := w.Values[i-1], w.Values[i]
			return v1 + (v2-v1)*(t-t1)/(t2-t1)
		}
	}
	return w.Values[n-1]
}

// Breakpoints lists the corners of the waveform up to stop, the points a transient step
// should land on.
func (w *Waveform) Breakpoints(stop float64) []float64 {
	var bps []float64
	switch w.Type {
	case PULSE:
		edges := []float64{0, w.Rise, w.Rise + w.PWidth, w.Rise + w.PWidth + w.Fall}
		for base := w.Delay; base < stop; base += w.Period {
			for _, e := range edges {
				if t := base + e; t > 0 && t < stop {
					bps = append(bps, t)
				}
			}
			if w.Period <= 0 {
				break
			}
		}
	case PWL:
		for _, t := range w.Times {
			if t > 0 && t < stop {
				bps = append(bps, t)
			}
		}
	}
	return bps
}
