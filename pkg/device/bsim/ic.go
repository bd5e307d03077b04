package bsim

// GetIC fills the initial conditions that were not given from the present solution.
func (inst *Instance) GetIC(solution []float64) {
	at := func(t int) float64 {
		n := inst.Nodes[t]
		if n <= 0 || n >= len(solution) {
			return 0
		}
		return solution[n]
	}

	vs := at(tS)
	if !inst.isGiven(InstICVDS) {
		inst.IcVDS = at(tD) - vs
	}
	if !inst.isGiven(InstICVGS) {
		inst.IcVGS = at(tG) - vs
	}
	if !inst.isGiven(InstICVBS) {
		inst.IcVBS = at(tB) - vs
	}
}
