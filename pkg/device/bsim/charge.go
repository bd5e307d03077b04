package bsim

import (
	"math"

	"github.com/edp1096/toy-bsim/internal/consts"
)

// intrinsicCharge is the quasi-static terminal charge set of the channel, canonical frame, per finger.
type intrinsicCharge struct {
	qgate, qbulk, qdrn, qsrc dual
	qinv                     dual // Inversion charge magnitude
	coxWL                    float64
}

// cvOverdrive is the C-V flavour of Vgsteff with its own offset and swing.
func (inst *Instance) cvOverdrive(c *channelState) dual {
	p := inst.p
	t0 := c.n.scale(p.noff * p.vtm)
	x := c.vgsEff.sub(c.vth).addc(-p.voffcv)
	xn := x.div(t0)
	switch {
	case xn.v > consts.EXP_THRESHOLD:
		return x
	case xn.v < -consts.EXP_THRESHOLD:
		return t0.scale(math.Log(1 + consts.MIN_EXP))
	}
	return xn.exp().addc(1).log().mul(t0)
}

// depletionCharges is the accumulation and depletion charge below inversion for an effective
// oxide capacitance coxWL.
func (inst *Instance) depletionCharges(c *channelState, vgsteff dual, coxWL dual) (qac0, qsub0 dual) {
	p := inst.p
	qac0 = coxWL.mul(c.vfbeff.addc(-p.vfbzb))

	if p.k1ox == 0 {
		return qac0, dual{}
	}
	k := 0.5 * p.k1ox
	t3 := c.vgsEff.sub(c.vfbeff).sub(c.vbseff).sub(vgsteff)
	var t1 dual
	if t3.v < 0 {
		t1 = t3.scale(1 / p.k1ox).addc(k)
	} else {
		t1 = t3.addc(k * k).sqrt()
	}
	qsub0 = coxWL.mul(t1.addc(-k)).scale(p.k1ox)
	return qac0, qsub0
}

// smoothVdseffCV clips vds at vdsatCV with DELTA_4 smoothing.
func smoothVdseffCV(vdsatCV, vds dual) dual {
	t0 := vdsatCV.sub(vds).addc(-consts.DELTA_4)
	t1 := t0.sq().add(vdsatCV.scale(4 * consts.DELTA_4)).sqrt()
	var r dual
	if t0.v >= 0 {
		r = vdsatCV.sub(t0.add(t1).scale(0.5))
	} else {
		t3 := t1.sub(t0).recip().scale(2 * consts.DELTA_4)
		r = vdsatCV.mul(t3.neg().addc(1))
	}
	if vds.v == 0 {
		r = dual{}
	}
	return r
}

func (inst *Instance) intrinsicCharge(c *channelState, vds dual) intrinsicCharge {
	m, p := inst.model, inst.p
	coxWL := p.coxe * p.WeffCV * p.LeffCV
	vgsteff := inst.cvOverdrive(c)
	abulkCV := c.abulk0.scale(p.abulkCVfactor)

	if m.CAPMOD == 3 {
		return inst.ctmCharge(c, vgsteff, abulkCV, vds, coxWL)
	}

	var q intrinsicCharge
	q.coxWL = coxWL
	vdsatCV := vgsteff.div(abulkCV)
	vdseffCV := smoothVdseffCV(vdsatCV, vds)

	t0 := abulkCV.mul(vdseffCV)
	t1 := vgsteff.sub(t0.scale(0.5)).addc(1e-20).scale(12)
	t2 := vdseffCV.div(t1)
	t3 := t0.mul(t2)
	q.qgate = vgsteff.sub(vdseffCV.scale(0.5)).add(t3).scale(coxWL)
	q.qbulk = abulkCV.neg().addc(1).mul(vdseffCV.scale(0.5).sub(t3)).scale(coxWL)

	switch {
	case m.XPART > 0.5:
		// 0/100
		q.qsrc = vgsteff.scale(0.5).add(t0.scale(0.25)).sub(t0.sq().div(t1.scale(2))).scale(-coxWL)
	case m.XPART < 0.5:
		// 40/60
		t1 := t1.scale(1.0 / 12)
		t2 := t1.sq().recip().scale(0.5 * coxWL)
		t3 := vgsteff.mul(t0.sq().scale(2.0 / 3).add(vgsteff.mul(vgsteff.sub(t0.scale(4.0 / 3))))).
			sub(t0.sq().mul(t0).scale(2.0 / 15))
		q.qsrc = t2.mul(t3).neg()
	default:
		q.qsrc = q.qgate.add(q.qbulk).scale(-0.5)
	}
	q.qinv = q.qgate.add(q.qbulk)

	qac0, qsub0 := inst.depletionCharges(c, vgsteff, cnst(coxWL))
	q.qgate = q.qgate.add(qac0).add(qsub0)
	q.qbulk = q.qbulk.sub(qac0.add(qsub0))
	q.qdrn = q.qgate.add(q.qbulk).add(q.qsrc).neg()
	return q
}

// ctmCharge accounts for the finite charge centroid in accumulation, depletion and inversion.
func (inst *Instance) ctmCharge(c *channelState, vgsteff, abulkCV, vds dual, coxWL float64) intrinsicCharge {
	m, p := inst.model, inst.p
	var q intrinsicCharge
	q.coxWL = coxWL

	centroid := func(tcen dual) dual {
		ccen := tcen.recip().scale(consts.EPSSI)
		coxeff := ccen.mul(ccen.addc(p.coxp).recip()).scale(p.coxp)
		return coxeff.scale(coxWL / p.coxe)
	}

	// Accumulation and depletion
	tox := 1e8 * m.TOXP
	arg := c.vgsEff.sub(c.vbseff).addc(-p.vfbzb).scale(p.acde / tox)
	var tcen dual
	switch {
	case arg.v >= consts.EXP_THRESHOLD:
		tcen = cnst(p.ldeb * consts.MAX_EXP)
	case arg.v <= -consts.EXP_THRESHOLD:
		tcen = cnst(p.ldeb * consts.MIN_EXP)
	default:
		tcen = arg.exp().scale(p.ldeb)
	}
	link := 1e-3 * m.TOXP
	v3 := tcen.neg().addc(p.ldeb - link)
	v4 := v3.sq().addc(4 * link * p.ldeb).sqrt()
	tcen = v3.add(v4).scale(-0.5).addc(p.ldeb)
	qac0, qsub0 := inst.depletionCharges(c, vgsteff, centroid(tcen))

	// Inversion
	var denomi, t0 float64
	if p.k1ox <= 0 {
		denomi = 0.25 * p.moin * p.vtm
		t0 = 0.5 * p.sqrtPhi
	} else {
		denomi = p.moin * p.vtm * p.k1ox * p.k1ox
		t0 = p.k1ox * p.sqrtPhi
	}
	deltaPhi := vgsteff.addc(2 * t0).mul(vgsteff).scale(1 / denomi).addc(1).log().scale(p.vtm)

	tox *= 2
	t3 := c.vth.addc(-p.vfbzb - p.phi).scale(4)
	var tn dual
	if t3.v >= 0 {
		tn = vgsteff.add(t3).scale(1 / tox)
	} else {
		tn = vgsteff.addc(1e-20).scale(1 / tox)
	}
	tcen = tn.pow(0.7).addc(1).recip().scale(1.9e-9)
	coxWLcen := centroid(tcen)

	vdsatCV := vgsteff.sub(deltaPhi).div(abulkCV)
	vdseffCV := smoothVdseffCV(vdsatCV, vds)

	ta := abulkCV.mul(vdseffCV)
	t1 := vgsteff.sub(deltaPhi)
	t2 := t1.sub(ta.scale(0.5)).addc(1e-20).scale(12)
	tr := ta.div(t2)
	q.qgate = coxWLcen.mul(t1.sub(ta.mul(tr.neg().addc(0.5))))
	q.qbulk = coxWLcen.mul(abulkCV.neg().addc(1)).mul(vdseffCV.scale(0.5).sub(ta.mul(vdseffCV).div(t2)))

	switch {
	case m.XPART > 0.5:
		q.qsrc = coxWLcen.mul(t1.scale(0.5).add(ta.scale(0.25)).sub(ta.sq().div(t2).scale(0.5))).neg()
	case m.XPART < 0.5:
		t2 := t2.scale(1.0 / 12)
		t3 := coxWLcen.div(t2.sq()).scale(0.5)
		t4 := t1.mul(ta.sq().scale(2.0 / 3).add(t1.mul(t1.sub(ta.scale(4.0 / 3))))).
			sub(ta.sq().mul(ta).scale(2.0 / 15))
		q.qsrc = t3.mul(t4).neg()
	default:
		q.qsrc = q.qgate.scale(-0.5)
	}
	q.qinv = q.qgate

	q.qgate = q.qgate.add(qac0).add(qsub0).sub(q.qbulk)
	q.qbulk = q.qbulk.sub(qac0.add(qsub0))
	q.qdrn = q.qgate.add(q.qbulk).add(q.qsrc).neg()
	return q
}

// overlap is the bias dependent gate overlap charge towards one diffusion, per finger.
func overlap(v dual, cgo, weffCV, cgl, ckappa float64) dual {
	t0 := v.addc(consts.DELTA_1)
	t1 := t0.sq().addc(4 * consts.DELTA_1).sqrt()
	t2 := t0.sub(t1).scale(0.5)
	t3 := weffCV * cgl
	if t3 == 0 {
		return v.scale(cgo)
	}
	t4 := t2.scale(-4 / ckappa).addc(1).sqrt()
	return v.scale(cgo + t3).sub(t2.add(t4.addc(-1).scale(0.5 * ckappa)).scale(t3))
}

func (inst *Instance) overlapCharges(vgd, vgs, vgb dual) (qgdo, qgso, qgbo dual) {
	p := inst.p
	qgdo = overlap(vgd, p.cgdo, p.WeffCV, p.cgdl, p.ckappad)
	qgso = overlap(vgs, p.cgso, p.WeffCV, p.cgsl, p.ckappas)
	qgbo = vgb.scale(p.cgbo)
	return qgdo, qgso, qgbo
}
