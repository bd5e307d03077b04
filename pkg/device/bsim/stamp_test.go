package bsim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edp1096/toy-bsim/internal/consts"
	"github.com/edp1096/toy-bsim/pkg/device"
	"github.com/edp1096/toy-bsim/pkg/util"
)

// residual is row n of the recorded system applied to x, minus its RHS.
func (m *recMatrix) residual(n int, x []float64) float64 {
	sum := -m.rhs[n]
	for k, c := range m.cells {
		if k[0] == n {
			sum += c.re * x[k[1]]
		}
	}
	return sum
}

func TestStampNeedsTemperatureAndBind(t *testing.T) {
	m := newModel(t, NMOS, nil)
	inst := NewInstance("M1", []string{"d", "g", "s", "b"}, m)
	inst.SetNodes([]int{1, 2, 3, 4})
	require.NoError(t, inst.Setup(&allocator{next: firstInternal}))
	assert.ErrorIs(t, inst.Stamp(newRecMatrix(), dcStatus()), ErrNotReady)

	require.NoError(t, inst.Temperature(consts.REFTMP))
	assert.ErrorIs(t, inst.Stamp(newRecMatrix(), dcStatus()), ErrNotBound)
	assert.ErrorIs(t, inst.StampAC(newRecMatrix(), dcStatus()), ErrNotBound)
}

func TestSetupCollapsesUnusedInternalNodes(t *testing.T) {
	tests := []struct {
		card     map[string]float64
		internal int
	}{
		{nil, 0},
		{map[string]float64{"rgatemod": 1}, 1},
		{map[string]float64{"rgatemod": 3}, 2},
		{map[string]float64{"rdsmod": 1}, 2},
		{map[string]float64{"rbodymod": 1}, 3},
	}
	for _, tt := range tests {
		inst := newDevice(t, tt.card)
		assert.Len(t, inst.InternalNodes(), tt.internal, "%v", tt.card)
	}
}

func TestStampedSystemReproducesCurrents(t *testing.T) {
	for _, name := range []string{"default", "rdsmod1", "rgatemod3", "rbodymod1", "leakage"} {
		t.Run(name, func(t *testing.T) {
			inst := newDevice(t, cards[name])
			rec := newRecMatrix()
			inst.Bind(rec)

			status := dcStatus()
			status.Solution = solutionAt(inst, bias(inst, 1, 1.2, 0, -0.1))
			require.NoError(t, inst.Stamp(rec, status))

			for r := 0; r < nTerm; r++ {
				if inst.rep[r] != r {
					continue
				}
				i := inst.op.lin.I[r]
				assert.InDelta(t, i, rec.residual(inst.node[r], status.Solution), 1e-9*math.Abs(i)+1e-15, "terminal %d", r)
			}
		})
	}
}

func TestACTopologyMatchesDC(t *testing.T) {
	inst := newDevice(t, cards["rgatemod3"])
	dc, ac := newRecMatrix(), newRecMatrix()
	inst.Bind(dc)
	inst.Bind(ac)

	status := dcStatus()
	status.Solution = solutionAt(inst, bias(inst, 1, 1.2, 0, 0))
	require.NoError(t, inst.Stamp(dc, status))

	status.Mode = device.ACAnalysis
	status.Frequency = 1e6
	require.NoError(t, inst.StampAC(ac, status))

	require.Equal(t, len(dc.cells), len(ac.cells))
	reactive := 0
	for k, c := range ac.cells {
		d, ok := dc.cells[k]
		require.True(t, ok, "cell %v", k)
		assert.InDelta(t, d.re, c.re, 1e-12*math.Abs(d.re))
		if c.im != 0 {
			reactive++
		}
	}
	assert.Positive(t, reactive)

	pz := newRecMatrix()
	inst.Bind(pz)
	require.NoError(t, inst.StampPZ(pz, complex(0, 2*math.Pi*1e6)))
	for k, c := range pz.cells {
		assert.InDelta(t, ac.cells[k].im, c.im, 1e-12*math.Abs(c.im))
	}
}

func TestBypassReusesOperatingPoint(t *testing.T) {
	inst := newDevice(t, nil)
	rec := newRecMatrix()
	inst.Bind(rec)

	status := dcStatus()
	v := bias(inst, 1, 1.2, 0, 0)
	status.Solution = solutionAt(inst, v)
	require.NoError(t, inst.Stamp(rec, status))
	stored := inst.op.v

	status.Solution[inst.node[tGp]] += 1e-9
	rec.clear()
	require.NoError(t, inst.Stamp(rec, status))
	assert.Equal(t, stored, inst.op.v)

	status.Tol.Bypass = false
	rec.clear()
	require.NoError(t, inst.Stamp(rec, status))
	assert.NotEqual(t, stored[tGp], inst.op.v[tGp])
}

func TestLimiterReportsClampedIterate(t *testing.T) {
	inst := newDevice(t, nil)
	rec := newRecMatrix()
	inst.Bind(rec)

	counter := &recCounter{}
	status := dcStatus()
	status.Counter = counter
	status.Solution = solutionAt(inst, bias(inst, 1, 1.0, 0, 0))
	require.NoError(t, inst.Stamp(rec, status))
	assert.Zero(t, counter.Count())

	status.Solution = solutionAt(inst, bias(inst, 1, 8, 0, 0))
	require.NoError(t, inst.Stamp(rec, status))
	assert.Contains(t, counter.sources, "limiter")
	assert.Less(t, inst.op.ctl.vgs, 8.0)
}

func TestConvTest(t *testing.T) {
	inst := newDevice(t, nil)
	rec := newRecMatrix()
	inst.Bind(rec)

	counter := &recCounter{}
	status := dcStatus()
	status.Counter = counter
	status.Solution = solutionAt(inst, bias(inst, 1, 1.2, 0, 0))
	require.NoError(t, inst.Stamp(rec, status))

	inst.ConvTest(status)
	assert.Zero(t, counter.Count())

	status.Solution = solutionAt(inst, bias(inst, 1, 1.5, 0, 0))
	inst.ConvTest(status)
	assert.Equal(t, []string{"convtest"}, counter.sources)
}

func TestInitJunctionStartsAtThreshold(t *testing.T) {
	inst := newDevice(t, nil)
	rec := newRecMatrix()
	inst.Bind(rec)

	status := dcStatus()
	status.Init = device.InitJunction
	status.Solution = solutionAt(inst, bias(inst, 3, 3, 0, 0))
	require.NoError(t, inst.Stamp(rec, status))
	assert.InDelta(t, 0.1, inst.op.ctl.vds, 1e-12)
	assert.InDelta(t, inst.p.vth0+0.1, inst.op.ctl.vgs, 1e-12)

	off := newInstance(t, newModel(t, NMOS, nil), map[string]float64{"off": 1})
	off.Bind(rec)
	require.NoError(t, off.Stamp(rec, status))
	assert.Zero(t, off.op.ctl.vgs)
	assert.Zero(t, off.op.ctl.vds)
}

func TestGetICFillsMissingConditions(t *testing.T) {
	inst := newInstance(t, newModel(t, NMOS, nil), map[string]float64{"icvgs": 2})
	inst.GetIC([]float64{0, 1.5, 1.0, 0.2, -0.3})
	assert.InDelta(t, 1.3, inst.IcVDS, 1e-12)
	assert.Equal(t, 2.0, inst.IcVGS)
	assert.InDelta(t, -0.5, inst.IcVBS, 1e-12)
}

func TestCheckpointRoundTrip(t *testing.T) {
	inst := newDevice(t, nil)
	rec := newRecMatrix()
	inst.Bind(rec)

	assert.ErrorIs(t, inst.RestoreCheckpoint(), ErrNoCheckpoint)

	status := dcStatus()
	status.Solution = solutionAt(inst, bias(inst, 1, 1.2, 0, 0))
	require.NoError(t, inst.Stamp(rec, status))
	inst.SaveCheckpoint()
	saved := inst.op

	status.Solution = solutionAt(inst, bias(inst, 0.2, 0.9, 0, 0))
	require.NoError(t, inst.Stamp(rec, status))
	require.NotEqual(t, saved.ids, inst.op.ids)

	require.NoError(t, inst.RestoreCheckpoint())
	assert.Equal(t, saved, inst.op)
	assert.True(t, inst.HasCheckpoint())
	require.NoError(t, inst.RestoreCheckpoint())

	inst.DiscardCheckpoint()
	assert.False(t, inst.HasCheckpoint())
}

// transientPair stamps a first transient point at vg0 and a second one a step later at vg1.
func transientPair(t *testing.T, inst *Instance, vg0, vg1, dt float64) *device.CircuitStatus {
	t.Helper()
	rec := newRecMatrix()
	inst.Bind(rec)

	status := dcStatus()
	status.Mode = device.TransientAnalysis
	status.Integrator = util.NewIntegrator(util.GearMethod, 1, dt)
	status.TimeStep = dt
	status.Init = device.InitTransient
	status.Solution = solutionAt(inst, bias(inst, 1, vg0, 0, 0))
	require.NoError(t, inst.Stamp(rec, status))
	inst.UpdateState(status)

	status.Time = dt
	status.Init = device.InitFloat
	status.Solution = solutionAt(inst, bias(inst, 1, vg1, 0, 0))
	rec.clear()
	require.NoError(t, inst.Stamp(rec, status))
	return status
}

func TestTransientChargeDeficit(t *testing.T) {
	slow := newDevice(t, map[string]float64{"trnqsmod": 1})
	transientPair(t, slow, 1.0, 1.2, 1e-10)
	fast := newDevice(t, map[string]float64{"trnqsmod": 1, "xrcrg1": 1e6})
	transientPair(t, fast, 1.0, 1.2, 1e-10)
	qs := newDevice(t, nil)
	transientPair(t, qs, 1.0, 1.2, 1e-10)

	assert.NotZero(t, slow.op.qdef)
	assert.Less(t, math.Abs(fast.op.qdef), 1e-3*math.Abs(slow.op.qdef))
	assert.Zero(t, qs.op.qdef)

	// The deficit only moves charge between gate and channel
	for _, inst := range []*Instance{slow, fast} {
		sum := 0.0
		for _, q := range inst.op.lin.Q {
			sum += q
		}
		assert.InDelta(t, 0, sum, 1e-6*math.Abs(inst.op.qg))
	}
	assert.InDelta(t, qs.op.qg, fast.op.qg, 1e-3*math.Abs(qs.op.qg))
	assert.InDelta(t, qs.op.qd, fast.op.qd, 1e-3*math.Abs(qs.op.qd))
}

func TestDeficitIsZeroOutsideTransient(t *testing.T) {
	inst := newDevice(t, map[string]float64{"trnqsmod": 1})
	op := inst.evalAt(1, 1.2, 0, 0)
	assert.Zero(t, op.qdef)
}

func TestTruncateNeverGrowsStep(t *testing.T) {
	for _, card := range []map[string]float64{nil, {"trnqsmod": 1}, {"rbodymod": 1}} {
		inst := newDevice(t, card)
		status := transientPair(t, inst, 0.5, 1.5, 1e-10)

		step := 1e-10
		inst.Truncate(status, &step)
		assert.Positive(t, step)
		assert.LessOrEqual(t, step, 1e-10)

		tiny := 1e-20
		inst.Truncate(status, &tiny)
		assert.Equal(t, 1e-20, tiny)
	}
}

func TestPredictionFollowsAcceptedHistory(t *testing.T) {
	const dt = 1e-10
	inst := newDevice(t, nil)
	rec := newRecMatrix()
	inst.Bind(rec)

	counter := &recCounter{}
	status := dcStatus()
	status.Counter = counter
	status.Mode = device.TransientAnalysis
	status.Integrator = util.NewIntegrator(util.GearMethod, 1, dt)
	status.TimeStep = dt
	status.Init = device.InitTransient
	status.Solution = solutionAt(inst, bias(inst, 1, 1.2, 0, 0))
	require.NoError(t, inst.Stamp(rec, status))
	inst.UpdateState(status)

	// A static bias predicts itself, whatever the step ratio
	status.Time = dt
	status.TimeStep = 2 * dt
	status.Integrator = util.NewIntegrator(util.GearMethod, 1, 2*dt)
	status.Init = device.InitPredict
	rec.clear()
	require.NoError(t, inst.Stamp(rec, status))
	assert.InDelta(t, 1.2, inst.op.ctl.vgs, 1e-12)
	assert.InDelta(t, 1.0, inst.op.ctl.vds, 1e-12)
	assert.Empty(t, counter.sources)

	// Two accepted points on a ramp extrapolate linearly
	ramp := newDevice(t, nil)
	ramp.Bind(rec)
	status = transientPair(t, ramp, 1.0, 1.1, dt)
	ramp.UpdateState(status)
	status.Time = 2 * dt
	status.Init = device.InitPredict
	rec.clear()
	require.NoError(t, ramp.Stamp(rec, status))
	assert.InDelta(t, 1.2, ramp.op.ctl.vgs, 1e-9)
}

func TestAdjointPinCurrents(t *testing.T) {
	for _, name := range []string{"default", "rdsmod1", "rgatemod3", "rbodymod1", "leakage"} {
		t.Run(name, func(t *testing.T) {
			inst := newDevice(t, cards[name])
			_, err := inst.Adjoint()
			require.Error(t, err)

			inst.op = inst.evalAt(1, 1.2, 0, -0.1)
			tc, err := inst.Adjoint()
			require.NoError(t, err)
			assert.InDelta(t, 0, tc.Sum(), 1e-9*math.Abs(tc.D)+1e-18)
			assert.Greater(t, tc.D, 0.0)
			assert.Less(t, tc.S, 0.0)
		})
	}

	inst := newDevice(t, nil)
	inst.op = inst.evalAt(1, 1.2, 0, 0)
	tc, err := inst.Adjoint()
	require.NoError(t, err)
	assert.InDelta(t, inst.op.lin.I[inst.rep[tD]], tc.D, 1e-9*math.Abs(tc.D))
}
