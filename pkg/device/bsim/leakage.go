package bsim

import (
	"math"

	"github.com/edp1096/toy-bsim/internal/consts"
)

// leakage holds the tunneling and GIDL currents of one bias, n-frame, per finger.
// igcs/igcd are in the canonical frame, the others in external orientation.
type leakage struct {
	igcs, igcd     dual
	igs, igd       dual
	igbacc, igbinv dual
	igidl, igisl   dual
}

// tunnelExp is exp(x) clamped to [MIN_EXP, MAX_EXP].
func tunnelExp(x dual) dual {
	switch {
	case x.v > consts.EXP_THRESHOLD:
		return cnst(consts.MAX_EXP)
	case x.v < -consts.EXP_THRESHOLD:
		return cnst(consts.MIN_EXP)
	}
	return x.exp()
}

// softPlus is t0*log(1 + exp(x/t0)) with the usual exponent guards.
func softPlus(x dual, t0 float64) dual {
	xn := x.scale(1 / t0)
	switch {
	case xn.v > consts.EXP_THRESHOLD:
		return x
	case xn.v < -consts.EXP_THRESHOLD:
		return cnst(t0 * math.Log(1+consts.MIN_EXP))
	}
	return xn.exp().addc(1).log().scale(t0)
}

// tunnelFactor is exp(b*(a + (a*c - bb)*vox - bb*c*vox²)), the oxide field dependence shared by
// every gate tunneling component.
func tunnelFactor(scale, a, bb, c float64, vox dual) dual {
	t3 := a*c - bb
	t4 := bb * c
	return tunnelExp(vox.scale(t3).sub(vox.sq().scale(t4)).addc(a).scale(scale))
}

func (inst *Instance) leakage(c *channelState, ext controlsDual) leakage {
	m, p := inst.model, inst.p
	typ := float64(m.Type)
	var lk leakage

	if m.IGCMOD != 0 {
		// Gate to channel, split between source and drain ends
		vaux := softPlus(c.vgsEff.addc(-typ*p.vth0), p.vtm*p.nigc)
		igc := c.vgsEff.mul(vaux).
			mul(tunnelFactor(p.bechvb, p.aigc, p.bigc, p.cigc, c.voxdepinv)).
			scale(p.aechvb)

		x := c.vdseff.scale(p.pigcd)
		ex := x.neg().exp()
		den := x.sq().addc(2e-4)
		lk.igcs = igc.mul(x.add(ex).addc(-1 + 1e-4)).div(den)
		lk.igcd = igc.mul(x.addc(1).mul(ex).neg().addc(1 + 1e-4)).div(den)

		// Gate to source/drain overlap
		lk.igs = inst.edgeTunneling(ext.vgs)
		lk.igd = inst.edgeTunneling(ext.vgd)
	}

	if m.IGBMOD != 0 {
		vgb := c.vgsEff.sub(c.vbseff)

		vaux := softPlus(c.vgsEff.neg().add(c.vbseff).addc(p.vfbzb), p.vtm*p.nigbacc)
		lk.igbacc = vgb.mul(vaux).
			mul(tunnelFactor(p.bigb, p.aigbacc, p.bigbacc, p.cigbacc, c.voxacc)).
			scale(p.aigb)

		vaux = softPlus(c.voxdepinv.addc(-p.eigbinv), p.vtm*p.nigbinv)
		lk.igbinv = vgb.mul(vaux).
			mul(tunnelFactor(p.bigb*1.31724, p.aigbinv, p.bigbinv, p.cigbinv, c.voxdepinv)).
			scale(p.aigb * 0.75610)
	}

	lk.igidl = inst.gidl(ext.vds, ext.vgs, ext.vbd, p.agidl, p.bgidl, p.cgidl, p.egidl)
	lk.igisl = inst.gidl(ext.vds.neg(), ext.vgd, ext.vbs, p.agisl, p.bgisl, p.cgisl, p.egisl)

	return lk
}

// edgeTunneling is the gate current into one source/drain overlap at gate-to-diffusion voltage v.
func (inst *Instance) edgeTunneling(v dual) dual {
	p := inst.p
	vEff := v.addc(-p.vfbsd).sq().addc(1e-4).sqrt()
	return v.mul(vEff).
		mul(tunnelFactor(p.bechvbEdge, p.aigsd, p.bigsd, p.cigsd, vEff)).
		scale(p.aechvbEdge)
}

// gidl is the gate induced drain leakage flowing from the diffusion into the body.
// vds, vgs, vbd are seen from the side the current leaves.
func (inst *Instance) gidl(vds, vgs, vbd dual, a, b, cg, e float64) dual {
	if a <= 0 || b <= 0 || cg <= 0 || vbd.v > 0 {
		return dual{}
	}
	m, p := inst.model, inst.p
	t1 := vds.sub(vgs).addc(-e).scale(1 / (3 * m.TOXE))
	if t1.v <= 0 {
		return dual{}
	}

	var i dual
	if t2 := b / t1.v; t2 < 100 {
		i = t1.mul(t1.recip().scale(-b).exp()).scale(a * p.WeffCJ)
	} else {
		i = t1.scale(a * p.WeffCJ * 3.720075976e-44)
	}
	t5 := vbd.sq().mul(vbd).neg()
	return i.mul(t5.div(t5.addc(cg)))
}
