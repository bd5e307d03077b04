package bsim

import (
	"github.com/edp1096/toy-bsim/internal/consts"
)

// current is the diode current from body into the diffusion at junction voltage v (n-frame),
// including the gmin shunt.
func (j *junction) current(v dual, dioMod int, gmin float64) dual {
	shunt := v.scale(gmin)
	if j.isat <= 0 {
		return shunt
	}

	var fwd dual
	if dioMod != 0 && j.ijthFwd > 0 && v.v >= j.vjsmFwd {
		// Linear above the forward current limit
		fwd = v.addc(-j.vjsmFwd).scale(j.ivjsmFwd / j.nvtm).addc(j.ivjsmFwd)
	} else {
		x := v.scale(1 / j.nvtm)
		if x.v < -consts.EXP_THRESHOLD {
			fwd = cnst(consts.MIN_EXP)
		} else {
			fwd = x.expLim()
		}
		fwd = fwd.scale(j.isat)
	}
	i := fwd.addc(-j.isat)

	if dioMod != 0 && j.xjbv > 0 && j.bv > 0 {
		// Reverse breakdown
		brk := v.addc(j.bv).scale(-1 / j.nvtm).expLim()
		brk = brk.addc(-expConst(-j.bv / j.nvtm)).scale(j.isat * j.xjbv)
		i = i.sub(brk)
	}

	return i.add(shunt)
}

// charge is the stored depletion charge of the junction at v (n-frame).
func (j *junction) charge(v dual) dual {
	return depletionCharge(v, j.czb, j.pb, j.mj).
		add(depletionCharge(v, j.czbsw, j.pbsw, j.mjsw)).
		add(depletionCharge(v, j.czbswg, j.pbswg, j.mjswg))
}

// depletionCharge integrates cz/(1 - v/pb)^mj in reverse bias and continues it with the
// linearized capacitance cz*(1 + mj*v/pb) in forward bias.
func depletionCharge(v dual, cz, pb, mj float64) dual {
	if cz <= 0 {
		return dual{}
	}
	if v.v >= 0 {
		return v.mul(v.scale(0.5 * mj / pb).addc(1)).scale(cz)
	}
	arg := v.scale(-1 / pb).addc(1)
	if mj == 1 {
		return arg.log().scale(-cz * pb)
	}
	sarg := arg.log().scale(-mj).exp()
	return arg.mul(sarg).neg().addc(1).scale(cz * pb / (1 - mj))
}

func expConst(x float64) float64 {
	return cnst(x).expLim().v
}
