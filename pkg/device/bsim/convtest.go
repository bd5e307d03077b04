package bsim

import "github.com/edp1096/toy-bsim/pkg/device"

// ConvTest re-checks the last linearization against the proposed solution without evaluating
// the model, and reports disagreement to the counter.
func (inst *Instance) ConvTest(status *device.CircuitStatus) {
	if !inst.op.valid || status.Counter == nil {
		return
	}
	if inst.Off() && status.Init == device.InitFix {
		return
	}

	v := inst.solutionVoltages(status)
	if !inst.currentsSettled(&v, status.Tol) {
		status.Counter.NonConverged("convtest")
	}
}
