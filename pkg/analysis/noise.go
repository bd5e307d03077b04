package analysis

import (
	"fmt"
	"maps"
	"math"
	"math/cmplx"

	"github.com/edp1096/toy-bsim/pkg/circuit"
	"github.com/edp1096/toy-bsim/pkg/device"
	"github.com/edp1096/toy-bsim/pkg/util"
)

// Noise sums the output noise of every noisy device at V(output) - V(reference) and refers it
// to the input source.
type Noise struct {
	BaseAnalysis
	op          *OperatingPoint
	output      string
	reference   string
	input       string
	startFreq   float64
	stopFreq    float64
	numPoints   int
	pointsType  string
	frequencies []float64

	outIdx, refIdx int
	wave           *device.Waveform

	totalOutput  float64            // V^2
	totalInput   float64            // Input units squared
	sourceTotals map[string]float64 // V^2 per device source
}

func NewNoise(output, reference, input string, fStart, fStop float64, nPoints int, pType string) *Noise {
	return &Noise{
		BaseAnalysis: *NewBaseAnalysis(),
		op:           NewOP(),
		output:       output,
		reference:    reference,
		input:        input,
		startFreq:    fStart,
		stopFreq:     fStop,
		numPoints:    nPoints,
		pointsType:   pType,
	}
}

func (n *Noise) Setup(ckt *circuit.Circuit) error {
	n.Circuit = ckt

	var ok bool
	if n.outIdx, ok = ckt.NodeIndex(n.output); !ok {
		return fmt.Errorf("output node %s not found", n.output)
	}
	if n.refIdx, ok = ckt.NodeIndex(n.reference); !ok {
		return fmt.Errorf("reference node %s not found", n.reference)
	}

	dev, ok := ckt.Device(n.input)
	if !ok {
		return fmt.Errorf("input source %s not found", n.input)
	}
	switch src := dev.(type) {
	case *device.VoltageSource:
		n.wave = &src.Wave
	case *device.CurrentSource:
		n.wave = &src.Wave
	default:
		return fmt.Errorf("device %s is not an independent source", n.input)
	}
	if re, im := n.wave.Phasor(); re == 0 && im == 0 {
		return fmt.Errorf("input source %s has no AC excitation", n.input)
	}

	freqs, err := frequencyPoints(n.startFreq, n.stopFreq, n.numPoints, n.pointsType)
	if err != nil {
		return err
	}
	n.frequencies = freqs

	n.op.Tol = n.Tol
	n.op.Counter = n.Counter
	if err := n.op.Setup(ckt); err != nil {
		return fmt.Errorf("operating point setup error: %w", err)
	}
	if err := n.op.Execute(); err != nil {
		return fmt.Errorf("operating point analysis error: %w", err)
	}
	return nil
}

// noiseContext hands devices the adjoint transfer of one frequency point.
type noiseContext struct {
	freq    float64
	adjoint []complex128
	total   float64
	sources map[string]float64
}

func (c *noiseContext) Frequency() float64 { return c.freq }

func (c *noiseContext) Transfer(pos, neg int) complex128 {
	at := func(i int) complex128 {
		if i <= 0 || i >= len(c.adjoint) {
			return 0
		}
		return c.adjoint[i]
	}
	return at(pos) - at(neg)
}

func (c *noiseContext) Record(dev, source string, density float64) {
	c.total += density
	c.sources[dev+"."+source] += density
}

func (n *Noise) Execute() error {
	if n.Circuit == nil {
		return ErrNoCircuit
	}
	ckt := n.Circuit
	mat := ckt.GetACMatrix()
	status := n.status(device.NoiseAnalysis)
	status.Init = device.InitSmallSignal

	size := ckt.Size()
	unitRe := make([]float64, size+1)
	unitIm := make([]float64, size+1)
	if n.outIdx > 0 {
		unitRe[n.outIdx] = 1
	}
	if n.refIdx > 0 {
		unitRe[n.refIdx] = -1
	}

	n.totalOutput, n.totalInput = 0, 0
	n.sourceTotals = make(map[string]float64)

	var lastFreq, lastOut, lastIn float64
	var lastSources map[string]float64
	for k, freq := range n.frequencies {
		status.Frequency = freq

		mat.Clear()
		if err := ckt.StampAC(status); err != nil {
			return fmt.Errorf("stamping error at f=%g: %w", freq, err)
		}
		if err := mat.Solve(); err != nil {
			return fmt.Errorf("matrix solve error at f=%g: %w", freq, err)
		}
		re, im := n.wave.Phasor()
		vout := mat.ComplexSolution(n.outIdx) - mat.ComplexSolution(n.refIdx)
		gain := vout / complex(re, im)
		gain2 := real(gain)*real(gain) + imag(gain)*imag(gain)

		adjRe, adjIm, err := mat.SolveTransposed(unitRe, unitIm)
		if err != nil {
			return fmt.Errorf("adjoint solve error at f=%g: %w", freq, err)
		}
		ctx := &noiseContext{
			freq:    freq,
			adjoint: make([]complex128, size+1),
			sources: make(map[string]float64),
		}
		for i := 1; i <= size && i < len(adjRe); i++ {
			ctx.adjoint[i] = complex(adjRe[i], adjIm[i])
		}

		for _, dev := range ckt.GetDevices() {
			if noisy, ok := dev.(device.Noisy); ok {
				noisy.Noise(ctx, status)
			}
		}

		inDensity := 0.0
		if gain2 > 0 {
			inDensity = ctx.total / gain2
		}

		n.appendResult("FREQ", freq)
		n.appendResult("ONOISE", math.Sqrt(ctx.total))
		n.appendResult("INOISE", math.Sqrt(inDensity))
		n.appendResult("GAIN", cmplx.Abs(gain))
		for name, d := range ctx.sources {
			n.appendResult(name, d)
		}

		if k > 0 {
			n.totalOutput += util.LogLogIntegrate(ctx.total, lastOut, freq, lastFreq)
			n.totalInput += util.LogLogIntegrate(inDensity, lastIn, freq, lastFreq)
			for name, d := range ctx.sources {
				n.sourceTotals[name] += util.LogLogIntegrate(d, lastSources[name], freq, lastFreq)
			}
		}
		lastFreq, lastOut, lastIn, lastSources = freq, ctx.total, inDensity, ctx.sources
	}
	return nil
}

// TotalOutput is the rms output noise integrated over the swept band.
func (n *Noise) TotalOutput() float64 { return math.Sqrt(n.totalOutput) }

// TotalInput is the rms input referred noise over the swept band.
func (n *Noise) TotalInput() float64 { return math.Sqrt(n.totalInput) }

// SourceTotals is the output noise power of each device source integrated over the band,
// keyed like the per point densities.
func (n *Noise) SourceTotals() map[string]float64 { return maps.Clone(n.sourceTotals) }
