package bsim

import (
	"fmt"
	"math"

	"github.com/edp1096/toy-bsim/pkg/device"
	"github.com/edp1096/toy-bsim/pkg/matrix"
	"github.com/edp1096/toy-bsim/pkg/util"
)

// lin is the linearization of the device at one point. I holds the current flowing into each
// terminal, Q the charge stored on it, G and C their derivatives over the terminal voltages.
// Only representative terminals carry entries.
type lin struct {
	I [nTerm]float64
	G [nTerm][nTerm]float64
	Q [nTerm]float64
	C [nTerm][nTerm]float64
}

func (l *lin) flow(f dual, a, b int) {
	if a == b {
		return
	}
	l.I[a] += f.v
	l.I[b] -= f.v
	for c, d := range f.d {
		if d != 0 {
			l.G[a][c] += d
			l.G[b][c] -= d
		}
	}
}

func (l *lin) store(q dual, t int) {
	l.Q[t] += q.v
	for c, d := range q.d {
		l.C[t][c] += d
	}
}

// loader writes n-frame quantities into a lin, mapping terminals onto their representatives.
type loader struct {
	lin
	rep *[nTerm]int
	typ float64
}

// branch adds an n-frame current f flowing through the device from a to b.
func (ld *loader) branch(f dual, a, b int) {
	ld.flow(f.scale(ld.typ), ld.rep[a], ld.rep[b])
}

// direct adds a current that is already in actual polarity.
func (ld *loader) direct(f dual, a, b int) {
	ld.flow(f, ld.rep[a], ld.rep[b])
}

// charge adds n-frame charge q on terminal t.
func (ld *loader) charge(q dual, t int) {
	ld.store(q.scale(ld.typ), ld.rep[t])
}

// pair stores +q on a and -q on b.
func (ld *loader) pair(q dual, a, b int) {
	ld.charge(q, a)
	ld.charge(q.neg(), b)
}

func (ld *loader) resistor(g float64, a, b int, v *[nTerm]float64) {
	a, b = ld.rep[a], ld.rep[b]
	if g == 0 || a == b {
		return
	}
	i := g * (v[a] - v[b])
	ld.I[a] += i
	ld.I[b] -= i
	ld.G[a][a] += g
	ld.G[a][b] -= g
	ld.G[b][b] += g
	ld.G[b][a] -= g
}

// controlsDual are the external n-frame branch voltages as duals.
type controlsDual struct {
	vgs, vds, vbs dual
	vgd, vbd      dual
}

// opState is everything one evaluation produces. It holds arrays only so that it copies by value.
type opState struct {
	valid bool
	v     [nTerm]float64 // Terminal voltages the linearization is taken at
	ctl   controls
	mode  int // +1 forward, -1 drain and source swapped

	lin lin // Static currents and charges

	von, vdsat            float64
	ids, gm, gds, gmbs    float64
	isub, igidl, igisl    float64
	igcs, igcd, igs, igd  float64
	igbacc, igbinv        float64
	ibs, ibd              float64
	qg, qd, qs, qb, qdef  float64
	cgg                   float64
	gcrg                  float64
	ueff, vgsteff, vdseff float64
	abulk, rds, esatL     float64
	vds                   float64 // Canonical drain source voltage
	qinv                  float64 // Inversion charge magnitude, all fingers
}

// igc is the total gate to channel current.
func (o *opState) igc() float64 { return o.igcs + o.igcd }

// igb is the total gate to bulk current.
func (o *opState) igb() float64 { return o.igbacc + o.igbinv }

func dxpart(xpart float64) float64 {
	switch {
	case xpart < 0.5:
		return 0.4
	case xpart > 0.5:
		return 0.0
	}
	return 0.5
}

func (inst *Instance) nqs() bool { return inst.model.TRNQSMOD == 1 }

// evaluate runs the DC and charge chains at v.
func (inst *Instance) evaluate(v [nTerm]float64, status *device.CircuitStatus) opState {
	m, p := inst.model, inst.p
	typ := float64(m.Type)
	nf := inst.NF
	ld := loader{rep: &inst.rep, typ: typ}

	var x [nTerm]dual
	for t := range x {
		r := inst.rep[t]
		x[t] = variable(v[r], r)
	}
	diff := func(a, b int) dual { return x[a].sub(x[b]).scale(typ) }

	ext := controlsDual{vgs: diff(tGp, tSp), vds: diff(tDp, tSp), vbs: diff(tBp, tSp)}
	ext.vgd = ext.vgs.sub(ext.vds)
	ext.vbd = ext.vbs.sub(ext.vds)
	vsbj := diff(tSb, tSp)
	vdbj := diff(tDb, tDp)

	var op opState
	op.valid = true
	op.v = v
	op.ctl = controls{vgs: ext.vgs.v, vds: ext.vds.v, vbs: ext.vbs.v, vdbd: vdbj.v, vsbs: vsbj.v}

	dl, sl := tDp, tSp
	vgs, vds, vbs := ext.vgs, ext.vds, ext.vbs
	op.mode = 1
	if ext.vds.v < 0 {
		op.mode = -1
		dl, sl = tSp, tDp
		vgs, vds, vbs = ext.vgd, ext.vds.neg(), ext.vbd
	}

	c := inst.channel(vgs, vds, vbs)
	lk := inst.leakage(&c, ext)

	ids := c.ids.scale(nf)
	ld.branch(ids, dl, sl)
	ld.branch(c.isub.scale(nf), dl, tBp)
	ld.branch(lk.igcs.scale(nf), tGp, sl)
	ld.branch(lk.igcd.scale(nf), tGp, dl)
	ld.branch(lk.igs.scale(nf), tGp, tSp)
	ld.branch(lk.igd.scale(nf), tGp, tDp)
	ld.branch(lk.igbacc.add(lk.igbinv).scale(nf), tGp, tBp)
	ld.branch(lk.igidl.scale(nf), tDp, tBp)
	ld.branch(lk.igisl.scale(nf), tSp, tBp)

	ibs := inst.jctS.current(vsbj, m.DIOMOD, status.Gmin)
	ibd := inst.jctD.current(vdbj, m.DIOMOD, status.Gmin)
	ld.branch(ibs, tSb, tSp)
	ld.branch(ibd, tDb, tDp)

	ld.resistor(inst.gdrain, tD, tDp, &v)
	ld.resistor(inst.gsource, tS, tSp, &v)

	var gcrg dual
	if m.RGATEMOD > 1 || inst.nqs() {
		beta := c.ueff.mul(c.weff).scale(p.coxe / p.Leff)
		gcrg = c.vgsteff.addc(p.xrcrg2 * p.vtm).mul(beta).scale(p.xrcrg1 * nf)
	}
	switch m.RGATEMOD {
	case 1:
		ld.resistor(p.grgeltd, tG, tGp, &v)
	case 2:
		g := gcrg.mul(gcrg.addc(p.grgeltd).recip()).scale(p.grgeltd)
		ld.direct(g.mul(x[tG].sub(x[tGp])), tG, tGp)
	case 3:
		ld.resistor(p.grgeltd, tG, tGm, &v)
		ld.direct(gcrg.mul(x[tGm].sub(x[tGp])), tGm, tGp)
	}

	if m.RBODYMOD == 1 {
		ld.resistor(inst.grbpd, tBp, tDb, &v)
		ld.resistor(inst.grbps, tBp, tSb, &v)
		ld.resistor(inst.grbpb, tBp, tB, &v)
		ld.resistor(inst.grbdb, tDb, tB, &v)
		ld.resistor(inst.grbsb, tSb, tB, &v)
	}

	// Charges
	q := inst.intrinsicCharge(&c, vds)
	var qjs, qjd, qgdo, qgso, qgbo, qdef dual
	if m.CAPMOD >= 1 {
		qjs = inst.jctS.charge(vsbj)
		qjd = inst.jctD.charge(vdbj)
		ld.pair(qjs, tSb, tSp)
		ld.pair(qjd, tDb, tDp)

		qgdo, qgso, qgbo = inst.overlapCharges(diff(tGm, tDp), diff(tGm, tSp), diff(tGm, tBp))
		qgdo, qgso, qgbo = qgdo.scale(nf), qgso.scale(nf), qgbo.scale(nf)
		ld.pair(qgdo, tGm, tDp)
		ld.pair(qgso, tGm, tSp)
		ld.pair(qgbo, tGm, tBp)
	}

	qg, qb := q.qgate.scale(nf), q.qbulk.scale(nf)
	qd, qs := q.qdrn.scale(nf), q.qsrc.scale(nf)
	if m.CAPMOD >= 2 {
		if inst.nqs() {
			qdef = inst.deficit(qd.add(qs), gcrg, q.coxWL*nf, status)
			dx := dxpart(m.XPART)
			qd = qd.sub(qdef.scale(dx))
			qs = qs.sub(qdef.scale(1 - dx))
			qg = qg.add(qdef)
		}
		ld.charge(qg, tGp)
		ld.charge(qb, tBp)
		ld.charge(qd, dl)
		ld.charge(qs, sl)
	} else {
		qg, qb, qd, qs = dual{}, dual{}, dual{}, dual{}
	}
	op.lin = ld.lin

	// Reported values, n-frame, external orientation
	op.von = c.vth.v
	op.vdsat = c.vdsat.v
	op.ids = ids.v
	op.gm = typ * ids.d[tGp]
	op.gds = typ * ids.d[dl]
	op.gmbs = typ * ids.d[tBp]
	op.isub = c.isub.v * nf
	op.igidl = lk.igidl.v * nf
	op.igisl = lk.igisl.v * nf
	op.igcs = lk.igcs.v * nf
	op.igcd = lk.igcd.v * nf
	op.igs = lk.igs.v * nf
	op.igd = lk.igd.v * nf
	op.igbacc = lk.igbacc.v * nf
	op.igbinv = lk.igbinv.v * nf
	op.ibs = ibs.v
	op.ibd = ibd.v
	if op.mode < 0 {
		qd, qs = qs, qd
		op.igcs, op.igcd = op.igcd, op.igcs
	}
	op.qg = qg.v + qgdo.v + qgso.v + qgbo.v
	op.qd = qd.v - qgdo.v - qjd.v
	op.qs = qs.v - qgso.v - qjs.v
	op.qb = qb.v - qgbo.v + qjd.v + qjs.v
	op.qdef = qdef.v
	op.cgg = typ * qg.d[tGp]
	op.gcrg = gcrg.v

	op.ueff = c.ueff.v
	op.vgsteff = c.vgsteff.v
	op.vdseff = c.vdseff.v
	op.abulk = c.abulk.v
	op.rds = c.rds.v
	op.esatL = c.esatL.v
	op.vds = vds.v
	op.qinv = math.Abs(q.qinv.v) * nf

	return op
}

// deficit advances the non-quasi-static charge deficit one implicit step.
func (inst *Instance) deficit(qcheq, gcrg dual, coxWL float64, status *device.CircuitStatus) dual {
	inst.qcheq.Q[0] = qcheq.v
	if !status.IsTransient() || status.Init == device.InitTransient {
		inst.qdef.Q[0] = 0
		return dual{}
	}

	integ := status.Integrator
	ag0 := integ.Coefficient()
	hist := integ.History(&inst.qcheq) - integ.History(&inst.qdef)
	invTau := gcrg.scale(1 / coxWL)
	qdef := qcheq.scale(ag0).addc(hist).div(invTau.addc(ag0))
	inst.qdef.Q[0] = qdef.v
	return qdef
}

// Stamp evaluates the transistor at the present iterate and adds its linearization to m.
func (inst *Instance) Stamp(m matrix.DeviceMatrix, status *device.CircuitStatus) error {
	if inst.p == nil {
		return fmt.Errorf("bsim %s: %w", inst.Name, ErrNotReady)
	}
	if _, ok := inst.cells[m]; !ok {
		return fmt.Errorf("bsim %s: %w", inst.Name, ErrNotBound)
	}

	v, bypass := inst.selectVoltages(status)
	if !bypass {
		inst.op = inst.evaluate(v, status)
	}

	return inst.finalizeAndStamp(m, status)
}

// finalizeAndStamp adds the charge companions to the stored linearization and emits it.
// Both the evaluated and the bypassed paths end here.
func (inst *Instance) finalizeAndStamp(m matrix.DeviceMatrix, status *device.CircuitStatus) error {
	cells, ok := inst.cells[m]
	if !ok {
		return fmt.Errorf("bsim %s: %w", inst.Name, ErrNotBound)
	}

	total := inst.op.lin
	if !status.IsTransient() {
		for r := range inst.qs {
			inst.qs[r].Q[0] = total.Q[r]
		}
		inst.emit(m, cells, &inst.node, &total.G, &total.I)
		return nil
	}

	integ := status.Integrator
	ag0 := integ.Coefficient()
	first := status.Init == device.InitTransient
	if first {
		// The first point fills both history slots
		inst.acc = [2]controls{inst.op.ctl, inst.op.ctl}
		inst.lastStep = 0
	}
	for r := range inst.qs {
		if inst.rep[r] != r || inst.model.CAPMOD == 0 {
			continue
		}
		s := &inst.qs[r]
		s.Q[0] = total.Q[r]
		if first {
			s.CQ[0] = 0
			s.Seed()
		}
		integ.Integrate(s, 0)
		total.I[r] += s.CQ[0]
		for c := range total.G[r] {
			total.G[r][c] += ag0 * total.C[r][c]
		}
	}
	if inst.nqs() && inst.model.CAPMOD >= 2 {
		for _, s := range []*util.ChargeState{&inst.qdef, &inst.qcheq} {
			if first {
				s.CQ[0] = 0
				s.Seed()
			}
			integ.Integrate(s, 0)
		}
	}

	inst.emit(m, cells, &inst.node, &total.G, &total.I)
	return nil
}
