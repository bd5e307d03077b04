package bsim

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/edp1096/toy-bsim/internal/consts"
)

func TestModelParamLookup(t *testing.T) {
	id, err := ModelParamID("LVTH0")
	require.NoError(t, err)
	assert.Equal(t, "lvth0", ModelParamName(id))

	_, err = ModelParamID("nosuch")
	assert.ErrorIs(t, err, ErrBadParameter)
	assert.Empty(t, ModelParamName(-1))

	m := NewModel("nch", NMOS)
	require.NoError(t, m.SetParam(id, 2e-8))
	got, err := m.Param(id)
	require.NoError(t, err)
	assert.Equal(t, 2e-8, got)
	assert.True(t, m.isGiven("lvth0"))
	assert.False(t, m.isGiven("vth0"))

	_, err = m.Param(ParamID(1 << 20))
	assert.ErrorIs(t, err, ErrBadParameter)
	assert.ErrorIs(t, m.SetModelParameters(map[string]float64{"bogus": 1}), ErrBadParameter)
}

func TestSelectorParamsAreIntegers(t *testing.T) {
	m := newModel(t, NMOS, map[string]float64{"capmod": 2, "rgatemod": 3})
	assert.Equal(t, 2, m.CAPMOD)
	assert.Equal(t, 3, m.RGATEMOD)

	id, err := ModelParamID("capmod")
	require.NoError(t, err)
	v, err := m.Param(id)
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)
}

func TestInstanceParams(t *testing.T) {
	inst := NewInstance("M1", []string{"d", "g", "s", "b"}, NewModel("nch", NMOS))
	require.NoError(t, inst.SetParams(map[string]float64{"L": 2e-6, "nf": 4}))
	assert.Equal(t, 2e-6, inst.L)
	assert.Equal(t, 4.0, inst.NF)
	assert.True(t, inst.isGiven(InstL))
	assert.False(t, inst.isGiven(InstW))

	v, err := inst.Param(InstNF)
	require.NoError(t, err)
	assert.Equal(t, 4.0, v)

	assert.ErrorIs(t, inst.SetParams(map[string]float64{"xyz": 1}), ErrBadParameter)
	_, err = inst.Param(numInstParams)
	assert.ErrorIs(t, err, ErrBadParameter)
}

func TestNewInstanceRejectsBadNodeCount(t *testing.T) {
	assert.Panics(t, func() { NewInstance("M1", []string{"d", "g", "s"}, NewModel("nch", NMOS)) })
	assert.Panics(t, func() { NewInstance("M1", []string{"d", "g", "s", "b"}, nil) })
}

func TestPMOSDefaults(t *testing.T) {
	n, p := NewModel("n", NMOS), NewModel("p", PMOS)
	assert.Equal(t, 0.7, n.VTH0.V)
	assert.Equal(t, -0.7, p.VTH0.V)
	assert.Equal(t, PMOS, p.Type)
}

func TestFatalParameterStopsTemperature(t *testing.T) {
	m := newModel(t, NMOS, map[string]float64{"toxe": 0})
	inst := NewInstance("M1", []string{"d", "g", "s", "b"}, m)
	inst.SetNodes([]int{1, 2, 3, 4})
	require.NoError(t, inst.Setup(&allocator{next: firstInternal}))

	err := inst.Temperature(consts.REFTMP)
	assert.ErrorIs(t, err, ErrFatalParameter)
	diags := *m.Diagnostics.(*DiagnosticList)
	assert.True(t, diags.Has(Fatal, "toxe"))
}

func TestValidatorIsDeterministic(t *testing.T) {
	card := map[string]float64{"a2": 0.001, "prwg": -1, "nfactor": -0.5, "moin": 50, "pclm": 0}
	run := func() DiagnosticList {
		m := newModel(t, NMOS, card)
		inst := NewInstance("M1", []string{"d", "g", "s", "b"}, m)
		inst.SetNodes([]int{1, 2, 3, 4})
		require.NoError(t, inst.Setup(&allocator{next: firstInternal}))
		_ = inst.Temperature(consts.REFTMP)
		return *m.Diagnostics.(*DiagnosticList)
	}

	first := run()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, run())
	}
	assert.True(t, first.Has(Warning, "a2"))
	assert.True(t, first.Has(Warning, "prwg"))
	assert.True(t, first.Has(Warning, "nfactor"))
	assert.True(t, first.Has(Warning, "moin"))
	assert.True(t, first.Has(Fatal, "pclm"))
}

func TestValidatorCorrectsValues(t *testing.T) {
	inst := newDevice(t, map[string]float64{"a2": 0.001, "prwg": -1, "moin": 50, "noff": 10})
	p := inst.SizeDependent()
	assert.Equal(t, 0.01, p.a2)
	assert.Zero(t, p.prwg)
	assert.Equal(t, 25.0, p.moin)
	assert.Equal(t, 4.0, p.noff)

	diags := *inst.Model().Diagnostics.(*DiagnosticList)
	for _, d := range diags {
		assert.Equal(t, Warning, d.Severity, d.String())
	}

	inst = newDevice(t, map[string]float64{"voffcv": -2, "ckappas": 0.001, "acde": 5})
	p = inst.SizeDependent()
	assert.Equal(t, -0.5, p.voffcv)
	assert.Equal(t, 0.02, p.ckappas)
	assert.InEpsilon(t, 1.6*p.acdeScale(), p.acde, 1e-12)
	diags = *inst.Model().Diagnostics.(*DiagnosticList)
	for _, name := range []string{"voffcv", "ckappas", "acde"} {
		assert.True(t, diags.Has(Warning, name), name)
	}
	assert.False(t, diags.Has(Warning, "noff"))
}

func TestInvalidSelectorFallsBackToDefault(t *testing.T) {
	inst := newDevice(t, map[string]float64{"capmod": 7, "mobmod": -1})
	m := inst.Model()
	assert.Equal(t, 3, m.CAPMOD)
	assert.Equal(t, 0, m.MOBMOD)
	op := inst.evalAt(1, 1.2, 0, 0)
	assert.Greater(t, op.ids, 0.0)
}

func TestSizeDependentRecordsAreShared(t *testing.T) {
	m := newModel(t, NMOS, nil)
	geom := map[string]float64{"l": 1e-6, "w": 10e-6}
	a := newInstance(t, m, geom)
	b := newInstance(t, m, geom)
	assert.Same(t, a.SizeDependent(), b.SizeDependent())
	assert.Equal(t, 1, m.SizeDependentCount())

	c := newInstance(t, m, map[string]float64{"l": 2e-6, "w": 10e-6})
	assert.NotSame(t, a.SizeDependent(), c.SizeDependent())
	assert.Equal(t, 2, m.SizeDependentCount())

	require.NoError(t, a.Temperature(consts.REFTMP+50))
	assert.NotSame(t, a.SizeDependent(), b.SizeDependent())
	assert.Equal(t, 3, m.SizeDependentCount())

	id, err := ModelParamID("u0")
	require.NoError(t, err)
	require.NoError(t, m.SetParam(id, 0.05))
	assert.Zero(t, m.SizeDependentCount())
}

func TestGateElectrodeResistance(t *testing.T) {
	m := newModel(t, NMOS, map[string]float64{"rgatemod": 1, "rshg": 10})
	inst := newInstance(t, m, map[string]float64{"l": 1e-6, "w": 10e-6, "nf": 2})
	p := inst.SizeDependent()

	r := m.RSHG * (m.XGW + p.WeffCJ/3/m.NGCON) / (m.NGCON * 2 * (1e-6 - m.XGL))
	require.Greater(t, r, 1e-3)
	assert.InEpsilon(t, 1/r, p.grgeltd, 1e-12)

	// Without a gate resistance model the record carries none
	assert.Zero(t, newDevice(t, nil).SizeDependent().grgeltd)
}

func TestInstancesEvaluateConcurrently(t *testing.T) {
	m := newModel(t, NMOS, nil)
	const n = 16
	ids := make([]float64, n)

	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			inst := NewInstance(fmt.Sprintf("M%d", i), []string{"d", "g", "s", "b"}, m)
			if err := inst.SetParams(map[string]float64{"l": float64(1+i%2) * 1e-6, "w": 10e-6}); err != nil {
				return err
			}
			inst.SetNodes([]int{1, 2, 3, 4})
			if err := inst.Setup(&allocator{next: firstInternal}); err != nil {
				return err
			}
			if err := inst.Temperature(consts.REFTMP); err != nil {
				return err
			}
			ids[i] = inst.evalAt(1, 1.2, 0, 0).ids
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 2, m.SizeDependentCount())
	for i := 2; i < n; i++ {
		assert.Equal(t, ids[i%2], ids[i])
	}
	assert.Greater(t, ids[0], ids[1])
}

func TestBinningFollowsGeometry(t *testing.T) {
	m := newModel(t, NMOS, map[string]float64{"vth0": 0.4, "lvth0": 1e-8})
	short := newInstance(t, m, map[string]float64{"l": 0.5e-6, "w": 10e-6})
	long := newInstance(t, m, map[string]float64{"l": 5e-6, "w": 10e-6})
	assert.Greater(t, short.SizeDependent().vth0, long.SizeDependent().vth0)
	assert.InDelta(t, 0.4, long.SizeDependent().vth0, 0.01)
}

func TestTemperatureLowersMobility(t *testing.T) {
	m := newModel(t, NMOS, nil)
	inst := newInstance(t, m, map[string]float64{"l": 1e-6, "w": 10e-6})
	cold := inst.evalAt(1, 1.5, 0, 0).ids

	require.NoError(t, inst.Temperature(consts.REFTMP+100))
	hot := inst.evalAt(1, 1.5, 0, 0).ids
	assert.Less(t, hot, cold)
}

func TestInstanceTemperatureOverride(t *testing.T) {
	m := newModel(t, NMOS, nil)
	inst := newInstance(t, m, map[string]float64{"temp": 85})
	assert.InDelta(t, 85+consts.KELVIN, inst.temp, 1e-9)
}
