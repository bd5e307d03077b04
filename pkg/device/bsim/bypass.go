package bsim

import (
	"github.com/edp1096/toy-bsim/internal/mathx"
	"github.com/edp1096/toy-bsim/pkg/config"
	"github.com/edp1096/toy-bsim/pkg/device"
)

// checkedRows are the terminals whose predicted currents gate bypass and convergence.
var checkedRows = [...]int{tDp, tBp, tDb, tSb, tGp}

func (inst *Instance) solutionVoltages(status *device.CircuitStatus) [nTerm]float64 {
	var v [nTerm]float64
	for t := range v {
		v[t] = status.Voltage(inst.node[inst.rep[t]])
	}
	return v
}

func (inst *Instance) controlsOf(v *[nTerm]float64) controls {
	typ := float64(inst.model.Type)
	return controls{
		vgs:  typ * (v[tGp] - v[tSp]),
		vds:  typ * (v[tDp] - v[tSp]),
		vbs:  typ * (v[tBp] - v[tSp]),
		vdbd: typ * (v[tDb] - v[tDp]),
		vsbs: typ * (v[tSb] - v[tSp]),
	}
}

// applyControls rebuilds the internal terminal voltages from ctl around the source node of v.
func (inst *Instance) applyControls(v [nTerm]float64, ctl controls) [nTerm]float64 {
	typ := float64(inst.model.Type)
	base := v[tSp]
	v[tGp] = base + typ*ctl.vgs
	v[tDp] = base + typ*ctl.vds
	v[tBp] = base + typ*ctl.vbs
	if inst.model.RBODYMOD == 1 {
		v[tDb] = v[tDp] + typ*ctl.vdbd
		v[tSb] = base + typ*ctl.vsbs
	}
	for t := range v {
		v[t] = v[inst.rep[t]]
	}
	return v
}

// selectVoltages picks the point to evaluate at. It returns true when the stored operating
// point is close enough to be reused without evaluation.
func (inst *Instance) selectVoltages(status *device.CircuitStatus) ([nTerm]float64, bool) {
	typ := float64(inst.model.Type)
	v := inst.solutionVoltages(status)

	switch status.Init {
	case device.InitSmallSignal:
		if inst.op.valid {
			return inst.op.v, false
		}
		return v, false

	case device.InitTransient:
		if status.UseIC {
			return inst.applyControls(v, controls{
				vds: typ * inst.IcVDS,
				vgs: typ * inst.IcVGS,
				vbs: typ * inst.IcVBS,
			}), false
		}
		if inst.op.valid {
			return inst.op.v, false
		}
		return v, false

	case device.InitJunction:
		if inst.Off() {
			return inst.applyControls(v, controls{}), false
		}
		return inst.applyControls(v, controls{vds: 0.1, vgs: typ*inst.p.vth0 + 0.1}), false

	case device.InitFix:
		if inst.Off() {
			return inst.applyControls(v, controls{}), false
		}

	case device.InitPredict:
		if inst.lastStep > 0 {
			xf := status.TimeStep / inst.lastStep
			extrapolate := func(a, b float64) float64 { return (1+xf)*a - xf*b }
			a0, a1 := inst.acc[0], inst.acc[1]
			ctl := controls{
				vgs:  extrapolate(a0.vgs, a1.vgs),
				vds:  extrapolate(a0.vds, a1.vds),
				vbs:  extrapolate(a0.vbs, a1.vbs),
				vdbd: extrapolate(a0.vdbd, a1.vdbd),
				vsbs: extrapolate(a0.vsbs, a1.vsbs),
			}
			return inst.applyControls(v, inst.limitControls(ctl, inst.op.ctl, status)), false
		}
	}

	if !inst.op.valid {
		return v, false
	}
	if status.Init == device.InitFloat && status.Tol.Bypass && inst.canBypass(&v, status.Tol) {
		return inst.op.v, true
	}
	return inst.applyControls(v, inst.limitControls(inst.controlsOf(&v), inst.op.ctl, status)), false
}

// limitControls limits ctl against the previous iterate old and reports any clamp.
func (inst *Instance) limitControls(ctl, old controls, status *device.CircuitStatus) controls {
	p := inst.p
	hit := false
	note := func(v float64, clamped bool) float64 {
		hit = hit || clamped
		return v
	}
	von := inst.op.von

	if old.vds >= 0 {
		vgd := ctl.vgd()
		ctl.vgs = note(LimitFET(ctl.vgs, old.vgs, von))
		ctl.vds = note(LimitVds(ctl.vgs-vgd, old.vds))
	} else {
		vgd := note(LimitFET(ctl.vgd(), old.vgd(), von))
		ctl.vds = -note(LimitVds(vgd-ctl.vgs, -old.vds))
		ctl.vgs = vgd + ctl.vds
	}

	if ctl.vds >= 0 {
		ctl.vbs = note(LimitJunction(ctl.vbs, old.vbs, p.vtm, inst.vcrit))
	} else {
		vbd := note(LimitJunction(ctl.vbd(), old.vbd(), p.vtm, inst.vcrit))
		ctl.vbs = vbd + ctl.vds
	}

	if inst.model.RBODYMOD == 1 {
		crit := func(j *junction) float64 {
			if j.vcrit > 0 {
				return j.vcrit
			}
			return inst.vcrit
		}
		ctl.vdbd = note(LimitJunction(ctl.vdbd, old.vdbd, p.vtm, crit(&inst.jctD)))
		ctl.vsbs = note(LimitJunction(ctl.vsbs, old.vsbs, p.vtm, crit(&inst.jctS)))
	}

	if hit && status.Counter != nil {
		status.Counter.NonConverged("limiter")
	}
	return ctl
}

func (inst *Instance) canBypass(v *[nTerm]float64, tol config.Tolerances) bool {
	for t := range v {
		if inst.rep[t] != t {
			continue
		}
		if !mathx.Within(v[t], inst.op.v[t], tol.Reltol, tol.Vntol) {
			return false
		}
	}
	return inst.currentsSettled(v, tol)
}

// currentsSettled reports whether the currents the stored linearization predicts at v agree
// with the stored currents.
func (inst *Instance) currentsSettled(v *[nTerm]float64, tol config.Tolerances) bool {
	op := &inst.op
	var seen [nTerm]bool
	for _, t := range checkedRows {
		r := inst.rep[t]
		if seen[r] {
			continue
		}
		seen[r] = true

		pred := op.lin.I[r]
		for c := range v {
			pred += op.lin.G[r][c] * (v[c] - op.v[c])
		}
		if !mathx.Within(pred, op.lin.I[r], tol.Reltol, tol.Abstol) {
			return false
		}
	}
	return true
}
