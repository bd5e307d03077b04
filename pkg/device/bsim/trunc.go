package bsim

import "github.com/edp1096/toy-bsim/pkg/device"

// Truncate tightens timeStep to what the local truncation error of every stored charge allows.
// It never increases timeStep.
func (inst *Instance) Truncate(status *device.CircuitStatus, timeStep *float64) {
	if !status.IsTransient() || inst.model.CAPMOD == 0 {
		return
	}
	integ := status.Integrator
	for r := range inst.qs {
		if inst.rep[r] == r {
			integ.TruncationStep(&inst.qs[r], timeStep)
		}
	}
	if inst.nqs() && inst.model.CAPMOD >= 2 {
		integ.TruncationStep(&inst.qdef, timeStep)
	}
}

// UpdateState commits the present point as the last accepted one.
func (inst *Instance) UpdateState(status *device.CircuitStatus) {
	if !inst.op.valid {
		return
	}
	inst.acc[1] = inst.acc[0]
	inst.acc[0] = inst.op.ctl

	if !status.IsTransient() {
		return
	}
	inst.lastStep = status.TimeStep
	for r := range inst.qs {
		inst.qs[r].Shift()
	}
	inst.qdef.Shift()
	inst.qcheq.Shift()
}
