package analysis

import (
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edp1096/toy-bsim/internal/consts"
	"github.com/edp1096/toy-bsim/pkg/circuit"
	"github.com/edp1096/toy-bsim/pkg/device"
	"github.com/edp1096/toy-bsim/pkg/device/bsim"
	"github.com/edp1096/toy-bsim/pkg/metrics"
)

func divider(t *testing.T, wave device.Waveform) *circuit.Circuit {
	t.Helper()
	ckt := circuit.New("divider").MustAdd(
		device.NewVoltageSource("V1", []string{"in", "0"}, wave),
		device.NewResistor("R1", []string{"in", "out"}, 1e3),
		device.NewResistor("R2", []string{"out", "0"}, 1e3),
	)
	require.NoError(t, ckt.Setup(consts.REFTMP))
	t.Cleanup(ckt.Destroy)
	return ckt
}

func last(v []float64) float64 { return v[len(v)-1] }

func TestOperatingPointDivider(t *testing.T) {
	ckt := divider(t, device.DCWave(10))
	op := NewOP()
	require.NoError(t, op.Setup(ckt))
	require.NoError(t, op.Execute())

	res := op.GetResults()
	assert.InDelta(t, 10, res["V(in)"][0], 1e-9)
	assert.InDelta(t, 5, res["V(out)"][0], 1e-9)
	assert.InDelta(t, -5e-3, res["I(V1)"][0], 1e-12)
	assert.InDelta(t, 5e-3, res["I(R2)"][0], 1e-12)
}

func TestSweepPoints(t *testing.T) {
	pts := sweepPoints(0, 1, 0.1)
	require.Len(t, pts, 11)
	assert.InDelta(t, 1, last(pts), 1e-12)
	assert.Equal(t, []float64{2}, sweepPoints(2, 1, 0.1))
}

func TestFrequencyPoints(t *testing.T) {
	f, err := frequencyPoints(1, 1000, 4, "DEC")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 10, 100, 1000}, f, 1e-9)

	f, err = frequencyPoints(1, 4, 4, "LIN")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4}, f)

	_, err = frequencyPoints(0, 10, 3, "DEC")
	assert.Error(t, err)
	_, err = frequencyPoints(1, 10, 3, "XYZ")
	assert.Error(t, err)
}

func TestDCSweepDivider(t *testing.T) {
	ckt := divider(t, device.DCWave(0))
	dc := NewDCSweep([]string{"V1"}, []float64{0}, []float64{2}, []float64{0.5})
	require.NoError(t, dc.Setup(ckt))
	require.NoError(t, dc.Execute())

	res := dc.GetResults()
	require.Len(t, res["SWEEP1"], 5)
	for i, v := range res["SWEEP1"] {
		assert.InDelta(t, v/2, res["V(out)"][i], 1e-9)
	}

	// The source is restored after the sweep
	dev, _ := ckt.Device("V1")
	assert.Zero(t, dev.(*device.VoltageSource).GetValue())
}

func TestDCSweepUnknownSource(t *testing.T) {
	ckt := divider(t, device.DCWave(0))
	dc := NewDCSweep([]string{"V9"}, []float64{0}, []float64{1}, []float64{1})
	assert.Error(t, dc.Setup(ckt))

	dc = NewDCSweep([]string{"R1"}, []float64{0}, []float64{1}, []float64{1})
	assert.Error(t, dc.Setup(ckt))
}

func rcLowPass(t *testing.T, wave device.Waveform) *circuit.Circuit {
	t.Helper()
	ckt := circuit.New("rc").MustAdd(
		device.NewVoltageSource("V1", []string{"in", "0"}, wave),
		device.NewResistor("R1", []string{"in", "out"}, 1e3),
		device.NewCapacitor("C1", []string{"out", "0"}, 1e-6),
	)
	require.NoError(t, ckt.Setup(consts.REFTMP))
	t.Cleanup(ckt.Destroy)
	return ckt
}

func TestACLowPassCorner(t *testing.T) {
	w := device.DCWave(0)
	w.ACMag = 1
	ckt := rcLowPass(t, w)

	fc := 1 / (2 * math.Pi * 1e3 * 1e-6)
	ac := NewAC(fc, fc, 1, "DEC")
	require.NoError(t, ac.Setup(ckt))
	require.NoError(t, ac.Execute())

	res := ac.GetResults()
	assert.InDelta(t, 1/math.Sqrt2, res["V(out)_MAG"][0], 1e-6)
	assert.InDelta(t, -45, res["V(out)_PHASE"][0], 1e-4)
}

func TestTransientRCStep(t *testing.T) {
	ckt := rcLowPass(t, device.PulseWave(0, 1, 0, 1e-9, 1e-9, 1, 0))
	tr := NewTransient(0, 5e-3, 50e-6, 0, false)
	require.NoError(t, tr.Setup(ckt))
	require.NoError(t, tr.Execute())

	res := tr.GetResults()
	times, out := res["TIME"], res["V(out)"]
	require.Equal(t, len(times), len(out))
	assert.InDelta(t, 5e-3, last(times), 1e-12)
	assert.InDelta(t, 1-math.Exp(-5), last(out), 5e-3)

	for i := 1; i < len(times); i++ {
		assert.Greater(t, times[i], times[i-1])
		assert.GreaterOrEqual(t, out[i], out[i-1]-1e-9)
		want := 1 - math.Exp(-(times[i]-1e-9)/1e-3)
		assert.InDelta(t, math.Max(want, 0), out[i], 2e-2, "t=%g", times[i])
	}

	accepted, _ := tr.Steps()
	assert.GreaterOrEqual(t, accepted, len(times)-1)
}

func TestNoiseOfDivider(t *testing.T) {
	w := device.DCWave(1)
	w.ACMag = 1
	ckt := divider(t, w)

	nz := NewNoise("out", "0", "V1", 10, 1e4, 4, "DEC")
	require.NoError(t, nz.Setup(ckt))
	require.NoError(t, nz.Execute())

	// Each resistor sees the other in parallel: 4kT/R * (R/2)^2 = kTR
	r := 1e3
	density := 2 * consts.BOLTZMANN * consts.REFTMP * r
	res := nz.GetResults()
	for i := range res["FREQ"] {
		assert.InEpsilon(t, math.Sqrt(density), res["ONOISE"][i], 1e-6)
		assert.InEpsilon(t, 0.5, res["GAIN"][i], 1e-9)
		assert.InEpsilon(t, math.Sqrt(density)/0.5, res["INOISE"][i], 1e-6)
		assert.InEpsilon(t, density/2, res["R1.thermal"][i], 1e-6)
	}
	assert.InEpsilon(t, math.Sqrt(density*(1e4-10)), nz.TotalOutput(), 1e-6)

	totals := nz.SourceTotals()
	require.Len(t, totals, 2)
	for _, name := range []string{"R1.thermal", "R2.thermal"} {
		assert.InEpsilon(t, density/2*(1e4-10), totals[name], 1e-6, name)
	}
}

func TestNoiseNeedsACInput(t *testing.T) {
	ckt := divider(t, device.DCWave(1))
	nz := NewNoise("out", "0", "V1", 10, 1e4, 4, "DEC")
	assert.Error(t, nz.Setup(ckt))
}

func cmosModels(t *testing.T) (*bsim.Model, *bsim.Model) {
	t.Helper()
	n := bsim.NewModel("nch", bsim.NMOS)
	p := bsim.NewModel("pch", bsim.PMOS)
	n.Diagnostics = &bsim.DiagnosticList{}
	p.Diagnostics = &bsim.DiagnosticList{}
	return n, p
}

// inverter builds a CMOS inverter on a 1.8 V supply driven by vin.
func inverter(t *testing.T, vin device.Waveform) *circuit.Circuit {
	t.Helper()
	nm, pm := cmosModels(t)
	mn := bsim.NewInstance("MN", []string{"out", "in", "0", "0"}, nm)
	require.NoError(t, mn.SetParams(map[string]float64{"l": 1e-6, "w": 2e-6}))
	mp := bsim.NewInstance("MP", []string{"out", "in", "vdd", "vdd"}, pm)
	require.NoError(t, mp.SetParams(map[string]float64{"l": 1e-6, "w": 4e-6}))

	ckt := circuit.New("inverter").MustAdd(
		device.NewDCVoltageSource("VDD", []string{"vdd", "0"}, 1.8),
		device.NewVoltageSource("VIN", []string{"in", "0"}, vin),
		mn, mp,
		device.NewCapacitor("CL", []string{"out", "0"}, 10e-15),
	)
	require.NoError(t, ckt.Setup(consts.REFTMP))
	t.Cleanup(ckt.Destroy)
	return ckt
}

func TestInverterOperatingPoint(t *testing.T) {
	for _, tt := range []struct {
		vin      float64
		low, top float64
	}{
		{0, 1.7, 1.8 + 1e-3},
		{1.8, -1e-3, 0.1},
	} {
		ckt := inverter(t, device.DCWave(tt.vin))
		op := NewOP()
		reg := prometheus.NewRegistry()
		op.Counter = metrics.NewPromCounter(reg)
		require.NoError(t, op.Setup(ckt))
		require.NoError(t, op.Execute())

		out := op.GetResults()["V(out)"][0]
		assert.Greater(t, out, tt.low, "vin=%g", tt.vin)
		assert.Less(t, out, tt.top, "vin=%g", tt.vin)
	}
}

func TestInverterTransferCurve(t *testing.T) {
	ckt := inverter(t, device.DCWave(0))
	dc := NewDCSweep([]string{"VIN"}, []float64{0}, []float64{1.8}, []float64{0.1})
	require.NoError(t, dc.Setup(ckt))
	require.NoError(t, dc.Execute())

	out := dc.GetResults()["V(out)"]
	require.Len(t, out, 19)
	assert.Greater(t, out[0], 1.7)
	assert.Less(t, last(out), 0.1)
	for i := 1; i < len(out); i++ {
		assert.LessOrEqual(t, out[i], out[i-1]+1e-6, "point %d", i)
	}
}

func TestInverterTransient(t *testing.T) {
	ckt := inverter(t, device.PulseWave(0, 1.8, 1e-9, 0.1e-9, 0.1e-9, 4e-9, 0))
	tr := NewTransient(0, 10e-9, 0.05e-9, 0, false)
	require.NoError(t, tr.Setup(ckt))
	require.NoError(t, tr.Execute())

	res := tr.GetResults()
	times, out := res["TIME"], res["V(out)"]
	assert.InDelta(t, 10e-9, last(times), 1e-15)
	assert.Greater(t, out[0], 1.7)

	lowest := math.Inf(1)
	for i, tm := range times {
		if tm > 3e-9 && tm < 5e-9 {
			lowest = math.Min(lowest, out[i])
		}
	}
	assert.Less(t, lowest, 0.1)
	assert.Greater(t, last(out), 1.7)
}

func TestInverterNoise(t *testing.T) {
	w := device.DCWave(0.9)
	w.ACMag = 1
	ckt := inverter(t, w)

	nz := NewNoise("out", "0", "VIN", 1e3, 1e9, 7, "DEC")
	require.NoError(t, nz.Setup(ckt))
	require.NoError(t, nz.Execute())

	res := nz.GetResults()
	require.Len(t, res["FREQ"], 7)
	for i := range res["FREQ"] {
		assert.Positive(t, res["ONOISE"][i])
		assert.GreaterOrEqual(t, res["MN.id"][i], 0.0)
	}
	assert.Positive(t, nz.TotalOutput())

	power := nz.TotalOutput() * nz.TotalOutput()
	totals := nz.SourceTotals()
	assert.Positive(t, totals["MN.id"])
	assert.Positive(t, totals["MP.id"])
	for name, v := range totals {
		assert.LessOrEqual(t, v, power*(1+1e-9), name)
	}
}
