package bsim

import (
	"math"

	"github.com/edp1096/toy-bsim/internal/consts"
)

// channelState is the intrinsic transistor at one bias in the canonical frame
// (n-type, vds >= 0). Currents are per finger.
type channelState struct {
	vbseff, sqrtPhis, xdep dual
	vth, n, vgsEff         dual
	vgsteff, vgst2Vtm      dual
	weff, rds              dual
	abulk0, abulk          dual
	ueff, esatL, lambda    dual
	vdsat, vdseff, diffVds dual
	idl, ids, isub         dual

	vfbeff, voxacc, voxdepinv dual
}

// dvtFactor is 1 + x, smoothly floored for x < -0.5.
func dvtFactor(x dual) dual {
	if x.v >= -0.5 {
		return x.addc(1)
	}
	t4 := x.scale(8).addc(3).recip()
	return x.scale(3).addc(1).mul(t4)
}

// floorAbulk keeps a bulk charge factor above 0.1 smoothly.
func floorAbulk(a dual) dual {
	if a.v >= 0.1 {
		return a
	}
	t9 := a.scale(-20).addc(3).recip()
	return a.neg().addc(0.2).mul(t9)
}

// onePlus is 1 + x, smoothly floored for x < -0.9.
func onePlus(x dual) dual {
	if x.v >= -0.9 {
		return x.addc(1)
	}
	t4 := x.scale(20).addc(17).recip()
	return x.addc(0.8).mul(t4)
}

func polyDepletion(phi, ngate, coxe float64, vgs dual) dual {
	if ngate <= 1e18 || ngate >= 1e25 || vgs.v <= phi {
		return vgs
	}
	t1 := 1e6 * consts.CHARGE * consts.EPSSI * ngate / (coxe * coxe)
	t8 := vgs.addc(-phi)
	t4 := t8.scale(2 / t1).addc(1).sqrt()
	t2 := t8.scale(2).div(t4.addc(1))
	t3 := t2.sq().scale(0.5 / t1)
	t7 := t3.neg().addc(1.12 - 0.05)
	t6 := t7.sq().addc(0.224).sqrt()
	t5 := t7.add(t6).scale(-0.5).addc(1.12)
	return vgs.sub(t5)
}

// channel evaluates the drain current chain. vgs, vds, vbs are canonical n-frame voltages.
func (inst *Instance) channel(vgs, vds, vbs dual) channelState {
	m, p := inst.model, inst.p
	typ := float64(m.Type)
	vtm := p.vtm
	leff := p.Leff
	var c channelState

	// Effective body bias, kept below 0.95 phi
	t0 := vbs.addc(-p.vbsc - 0.001)
	t1 := t0.sq().addc(-0.004 * p.vbsc).sqrt()
	var vbseff dual
	if t0.v >= 0 {
		vbseff = t0.add(t1).scale(0.5).addc(p.vbsc)
	} else {
		t2 := t1.sub(t0).recip().scale(-0.002)
		vbseff = t2.addc(1).scale(p.vbsc)
	}
	phiCap := 0.95 * p.phi
	t0 = vbseff.neg().addc(phiCap - 0.001)
	t1 = t0.sq().addc(0.004 * phiCap).sqrt()
	vbseff = t0.add(t1).scale(-0.5).addc(phiCap)
	c.vbseff = vbseff

	phis := vbseff.neg().addc(p.phi)
	sqrtPhis := phis.sqrt()
	xdep := sqrtPhis.scale(p.xdep0 / p.sqrtPhi)
	c.sqrtPhis, c.xdep = sqrtPhis, xdep

	// Threshold voltage
	v0 := p.vbi - p.phi
	t3 := xdep.sqrt()
	lt1 := t3.mul(dvtFactor(vbseff.scale(p.dvt2))).scale(p.factor1)
	ltw := t3.mul(dvtFactor(vbseff.scale(p.dvt2w))).scale(p.factor1)
	theta0 := scTheta(lt1.recip().scale(p.dvt1 * leff))
	deltVth := theta0.scale(p.dvt0 * v0)
	narrowSC := scTheta(ltw.recip().scale(p.dvt1w * p.Weff * leff)).scale(p.dvt0w * v0)

	lpe := math.Sqrt(1 + p.lpe0/leff)
	tempShift := vbseff.scale(p.kt2).addc(p.kt1 + p.kt1l/leff).scale(p.tRatio - 1).
		addc(p.k1ox * (lpe - 1) * p.sqrtPhi)
	vthNarrowW := m.TOXE * p.phi / (p.Weff + p.w0)

	eta := vbseff.scale(p.etab).addc(p.eta0)
	if eta.v < 1e-4 {
		t9 := eta.scale(-2e4).addc(3).recip()
		eta = eta.neg().addc(2e-4).mul(t9)
	}
	diblSft := eta.mul(vds).scale(p.theta0vb0)

	lpeVb := math.Sqrt(1 + p.lpeb/leff)
	vth := sqrtPhis.scale(p.k1ox).addc(-p.k1 * p.sqrtPhi).scale(lpeVb).
		sub(vbseff.scale(p.k2ox)).
		sub(deltVth).
		sub(narrowSC).
		add(vbseff.scale(p.k3b).addc(p.k3).scale(vthNarrowW)).
		add(tempShift).
		sub(diblSft).
		addc(typ * p.vth0)
	c.vth = vth

	// Subthreshold swing
	tmp2 := xdep.recip().scale(consts.EPSSI * p.nfactor)
	tmp3 := vbseff.scale(p.cdscb).add(vds.scale(p.cdscd)).addc(p.cdsc)
	tmp4 := tmp2.add(tmp3.mul(theta0)).addc(p.cit).scale(1 / p.coxe)
	var n dual
	if tmp4.v >= -0.5 {
		n = tmp4.addc(1)
	} else {
		t9 := tmp4.scale(8).addc(3).recip()
		n = tmp4.scale(3).addc(1).mul(t9)
	}
	c.n = n

	vgsEff := polyDepletion(p.vfb+p.phi, p.ngate, p.coxe, vgs)
	c.vgsEff = vgsEff

	// Effective gate overdrive
	vgst := vgsEff.sub(vth)
	nvt := n.scale(vtm)
	vgstNVt := vgst.scale(p.mstar).div(nvt)
	expArg := vgst.scale(p.mstar - 1).addc(p.voffcbn).div(nvt)
	var vgsteff dual
	switch {
	case vgstNVt.v > consts.EXP_THRESHOLD:
		vgsteff = vgst
	case expArg.v > consts.EXP_THRESHOLD:
		vgsteff = vgst.addc(-p.voffcbn).div(nvt).exp().scale(vtm * p.cdep0 / p.coxe)
	default:
		num := vgstNVt.exp().addc(1).log().mul(nvt)
		den := n.mul(expArg.exp()).scale(p.coxe / p.cdep0).addc(p.mstar)
		vgsteff = num.div(den)
	}
	c.vgsteff = vgsteff

	// Bias dependent width and source/drain resistance
	dSqrtPhis := sqrtPhis.addc(-p.sqrtPhi)
	weff := vgsteff.scale(p.dwg).add(dSqrtPhis.scale(p.dwb)).scale(-2).addc(p.Weff)
	if weff.v < 2e-8 {
		t0 := weff.scale(-2).addc(6e-8).recip()
		weff = weff.neg().addc(4e-8).mul(t0).scale(2e-8)
	}
	c.weff = weff

	var rds dual
	if m.RDSMOD == 0 && p.rds0 > 0 {
		t2 := vgsteff.scale(p.prwg).addc(1).recip().add(dSqrtPhis.scale(p.prwb))
		rds = t2.add(t2.sq().addc(0.01).sqrt()).scale(0.5 * p.rds0)
	}
	c.rds = rds

	// Bulk charge factor
	t1 = sqrtPhis.recip().scale(0.5 * p.k1ox * lpeVb).addc(p.k2ox - p.k3b*vthNarrowW)
	t9 := xdep.scale(p.xj).sqrt()
	t5 := t9.scale(2).addc(leff).recip().scale(leff)
	t2 := t5.scale(p.a0).addc(p.b0 / (p.Weff + p.b1))
	t7 := t5.mul(t5).mul(t5)
	abulk0 := t1.mul(t2).addc(1)
	dAbulkdVg := t1.mul(t7).scale(-p.ags * p.a0)
	abulk := abulk0.add(dAbulkdVg.mul(vgsteff))
	abulk0 = floorAbulk(abulk0)
	abulk = floorAbulk(abulk)
	ketaF := onePlus(vbseff.scale(p.keta)).recip()
	abulk = abulk.mul(ketaF)
	abulk0 = abulk0.mul(ketaF)
	c.abulk, c.abulk0 = abulk, abulk0

	// Mobility
	var degr dual
	switch m.MOBMOD {
	case 1:
		t3 := vgsteff.add(vth.scale(2)).scale(1 / m.TOXE)
		degr = t3.mul(t3.scale(p.ub).addc(p.ua)).mul(vbseff.scale(p.uc).addc(1))
	case 2:
		t0 := vgsteff.addc(p.vtfbphi1).scale(1 / m.TOXE)
		if t0.v < 1e-20 {
			t0 = cnst(1e-20)
		}
		degr = t0.pow(p.eu).mul(vbseff.scale(p.uc).addc(p.ua))
	default:
		t3 := vgsteff.add(vth.scale(2)).scale(1 / m.TOXE)
		degr = t3.mul(vbseff.scale(p.uc).addc(p.ua).add(t3.scale(p.ub)))
	}
	var denomi dual
	if degr.v >= -0.8 {
		denomi = degr.addc(1)
	} else {
		t9 := degr.scale(10).addc(7).recip()
		denomi = degr.addc(0.6).mul(t9)
	}
	ueff := denomi.recip().scale(p.u0temp)
	c.ueff = ueff

	// Saturation
	wvcoxRds := weff.scale(p.vsattemp * p.coxe).mul(rds)
	esatL := ueff.recip().scale(2 * p.vsattemp * leff)
	c.esatL = esatL

	var lambda dual
	switch {
	case p.a1 == 0:
		lambda = cnst(p.a2)
	case p.a1 > 0:
		t0 := 1 - p.a2
		t1 := vgsteff.scale(-p.a1).addc(t0 - 0.0001)
		t2 := t1.sq().addc(0.0004 * t0).sqrt()
		lambda = t1.add(t2).scale(-0.5).addc(p.a2 + t0)
	default:
		t1 := vgsteff.scale(p.a1).addc(p.a2 - 0.0001)
		t2 := t1.sq().addc(0.0004 * p.a2).sqrt()
		lambda = t1.add(t2).scale(0.5)
	}
	c.lambda = lambda

	vgst2Vtm := vgsteff.addc(2 * vtm)
	c.vgst2Vtm = vgst2Vtm

	var vdsat dual
	if rds.v == 0 && lambda.v == 1 {
		vdsat = esatL.mul(vgst2Vtm).div(abulk.mul(esatL).add(vgst2Vtm))
	} else {
		t9 := abulk.mul(wvcoxRds)
		t7 := vgst2Vtm.mul(t9)
		t6 := vgst2Vtm.mul(wvcoxRds)
		invLambda := lambda.recip()
		t0 := abulk.mul(t9.addc(-1).add(invLambda)).scale(2)
		t1 := vgst2Vtm.mul(invLambda.scale(2).addc(-1)).add(abulk.mul(esatL)).add(t7.scale(3))
		t2 := vgst2Vtm.mul(esatL.add(t6.scale(2)))
		t3 := t1.sq().sub(t0.mul(t2).scale(2)).sqrt()
		vdsat = t1.sub(t3).div(t0)
	}
	c.vdsat = vdsat

	// Smooth Vdseff, exactly 0 at vds = 0 and never above vds
	t1 = vdsat.sub(vds).addc(-p.delta)
	t2 = t1.sq().add(vdsat.scale(4 * p.delta)).sqrt()
	var vdseff dual
	if t1.v >= 0 {
		vdseff = vdsat.sub(t1.add(t2).scale(0.5))
	} else {
		t4 := t2.sub(t1).recip().scale(2 * p.delta)
		vdseff = vdsat.mul(t4.neg().addc(1))
	}
	if vds.v == 0 {
		vdseff.v = 0
	}
	if vdseff.v > vds.v {
		vdseff = vds
	}
	diffVds := vds.sub(vdseff)
	c.vdseff, c.diffVds = vdseff, diffVds

	// Early voltages
	tmp := abulk.mul(vdsat).div(vgst2Vtm).scale(-0.5).addc(1)
	t0 = esatL.add(vdsat).add(wvcoxRds.mul(vgsteff).mul(tmp).scale(2))
	t1 = lambda.recip().scale(2).addc(-1).add(wvcoxRds.mul(abulk))
	vasat := t0.div(t1)

	pvagTerm := cnst(1)
	if p.pvag != 0 {
		t9 := vgsteff.div(esatL).scale(p.pvag)
		if t9.v > -0.9 {
			pvagTerm = t9.addc(1)
		} else {
			t4 := t9.scale(20).addc(17).recip()
			pvagTerm = t9.addc(0.8).mul(t4)
		}
	}

	fp := cnst(1)
	if p.fprout > 0 {
		fp = vgst2Vtm.recip().scale(p.fprout * math.Sqrt(leff)).addc(1).recip()
	}

	vaclm := cnst(consts.MAX_EXP)
	if p.pclm > consts.MIN_EXP && diffVds.v > 1e-10 {
		t0 := abulk.scale(p.pclm * p.litl).recip()
		vaclm = abulk.mul(esatL).add(vgst2Vtm).mul(t0).mul(diffVds)
	}

	vadibl := cnst(consts.MAX_EXP)
	if p.thetaRout > consts.MIN_EXP {
		t8 := abulk.mul(vdsat)
		vadibl = vgst2Vtm.sub(vgst2Vtm.mul(t8).div(vgst2Vtm.add(t8))).scale(1 / p.thetaRout)
		vadibl = vadibl.div(onePlus(vbseff.scale(p.pdiblcb)))
		vadibl = vadibl.mul(pvagTerm)
	}
	va := vasat.add(vaclm.mul(vadibl).div(vaclm.add(vadibl)))

	vadits := cnst(consts.MAX_EXP)
	if p.pdits > consts.MIN_EXP {
		t1 := vds.scale(p.pditsd).expLim()
		vadits = t1.scale(1 + p.pditsl*leff).addc(1).mul(fp).scale(1 / p.pdits)
	}

	vascbe := cnst(consts.MAX_EXP)
	if p.pscbe2 > 0 {
		if diffVds.v > p.pscbe1*p.litl/consts.EXP_THRESHOLD {
			vascbe = diffVds.recip().scale(p.pscbe1 * p.litl).exp().scale(leff / p.pscbe2)
		} else {
			vascbe = cnst(consts.MAX_EXP * leff / p.pscbe2)
		}
	}

	// Drain current
	beta := ueff.mul(weff).scale(p.coxe / leff)
	fgche1 := vgsteff.mul(abulk.div(vgst2Vtm).mul(vdseff).scale(-0.5).addc(1))
	fgche2 := vdseff.div(esatL).addc(1)
	gche := beta.mul(fgche1).div(fgche2)
	idl := gche.mul(vdseff).div(gche.mul(rds).addc(1))
	c.idl = idl

	c.ids = idl.
		mul(diffVds.div(va).addc(1)).
		mul(diffVds.div(vadits).addc(1)).
		mul(diffVds.div(vascbe).addc(1))

	// Substrate current
	if k := p.alpha0 + p.alpha1*leff; k > 0 && p.beta0 > 0 {
		var t1 dual
		if diffVds.v > p.beta0/consts.EXP_THRESHOLD {
			t1 = diffVds.recip().scale(-p.beta0).exp().scale(k / leff)
		} else {
			t1 = cnst(k / leff * consts.MIN_EXP)
		}
		c.isub = t1.mul(diffVds).mul(idl)
	}

	// Oxide voltages shared by gate tunneling and the charge thickness model
	vfbzb := p.vfbzb
	v3 := vgsEff.neg().add(vbseff).addc(vfbzb - consts.DELTA_3)
	var sq dual
	if vfbzb <= 0 {
		sq = v3.sq().addc(-4 * consts.DELTA_3 * vfbzb).sqrt()
	} else {
		sq = v3.sq().addc(4 * consts.DELTA_3 * vfbzb).sqrt()
	}
	c.vfbeff = v3.add(sq).scale(-0.5).addc(vfbzb)
	c.voxacc = c.vfbeff.neg().addc(vfbzb)
	if c.voxacc.v < 0 {
		c.voxacc = cnst(0)
	}
	if p.k1ox != 0 {
		t3 := vgsEff.sub(c.vfbeff).sub(vbseff).sub(vgsteff)
		if t3.v >= 0 {
			k := 0.5 * p.k1ox
			c.voxdepinv = t3.addc(k * k).sqrt().addc(-k).scale(p.k1ox)
		}
	}
	c.voxdepinv = c.voxdepinv.add(vgsteff)

	return c
}
