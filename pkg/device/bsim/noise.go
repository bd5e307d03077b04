package bsim

import (
	"math"

	"github.com/edp1096/toy-bsim/internal/consts"
	"github.com/edp1096/toy-bsim/pkg/device"
)

// Correlation between induced gate noise and channel thermal noise.
const gateNoiseCorrelation = 0.395

// Noise records the output noise densities of every source at ctx.Frequency, using the stored
// operating point.
func (inst *Instance) Noise(ctx device.NoiseContext, status *device.CircuitStatus) {
	if !inst.op.valid || inst.p == nil {
		return
	}
	m, p, op := inst.model, inst.p, &inst.op
	f := ctx.Frequency()
	kT4 := 4 * consts.BOLTZMANN * inst.temp

	record := func(source string, a, b int, density float64) {
		if inst.rep[a] == inst.rep[b] {
			return
		}
		g := device.NoiseGain(ctx, inst.node[a], inst.node[b])
		ctx.Record(inst.Name, source, math.Max(density*g, 0))
	}

	// Parasitic resistors
	record("rd", tD, tDp, kT4*inst.gdrain)
	record("rs", tS, tSp, kT4*inst.gsource)
	switch m.RGATEMOD {
	case 1:
		record("rg", tG, tGp, kT4*p.grgeltd)
	case 2:
		g := p.grgeltd * op.gcrg / (p.grgeltd + op.gcrg)
		record("rg", tG, tGp, kT4*g)
	case 3:
		record("rg", tG, tGm, kT4*p.grgeltd)
	}
	if m.RBODYMOD == 1 {
		record("rbpd", tBp, tDb, kT4*inst.grbpd)
		record("rbps", tBp, tSb, kT4*inst.grbps)
		record("rbpb", tBp, tB, kT4*inst.grbpb)
		record("rbdb", tDb, tB, kT4*inst.grbdb)
		record("rbsb", tSb, tB, kT4*inst.grbsb)
	}

	// Channel thermal noise
	gch := inst.channelNoiseConductance()
	switch m.TNOIMOD {
	case 1:
		t0 := op.vgsteff / op.esatL
		beta := m.RNOIA * (1 + m.TNOIA*p.Leff*t0*t0)
		record("id", tDp, tSp, kT4*beta*math.Abs(op.gm+op.gds+op.gmbs))
	case 2:
		sd := kT4 * gch
		ctx.Record(inst.Name, "id", inst.correlatedGateNoise(ctx, sd, kT4, f, gch))
	default:
		record("id", tDp, tSp, kT4*gch)
	}

	// Flicker noise
	if f > 0 {
		record("flicker", tDp, tSp, inst.flickerNoise(f))
	}

	// Shot noise of the tunneling currents
	shot := func(i float64) float64 { return 2 * consts.CHARGE * math.Abs(i) }
	if m.IGCMOD != 0 {
		record("igs", tGp, tSp, shot(op.igs))
		record("igd", tGp, tDp, shot(op.igd))
		record("igcs", tGp, tSp, shot(op.igcs))
		record("igcd", tGp, tDp, shot(op.igcd))
	}
	if m.IGBMOD != 0 {
		record("igb", tGp, tBp, shot(op.igb()))
	}
}

// channelNoiseConductance is the charge based channel conductance of all fingers.
func (inst *Instance) channelNoiseConductance() float64 {
	m, p, op := inst.model, inst.p, &inst.op
	t0 := op.ueff * op.qinv
	den := p.Leff*p.Leff + t0*op.rds/inst.NF
	if den <= 0 {
		return 0
	}
	return m.NTNOI * t0 / den
}

// correlatedGateNoise combines the channel thermal noise sd with the induced gate noise into one
// output density.
func (inst *Instance) correlatedGateNoise(ctx device.NoiseContext, sd, kT4, f, gch float64) float64 {
	op := &inst.op
	hd := ctx.Transfer(inst.node[tDp], inst.node[tSp])
	out := sd * (real(hd)*real(hd) + imag(hd)*imag(hd))
	if gch <= 0 || inst.rep[tGp] == inst.rep[tSp] {
		return math.Max(out, 0)
	}

	omega := 2 * math.Pi * f
	cgs := 2.0 / 3.0 * op.cgg
	sg := kT4 * (4.0 / 3.0) / 5.0 * omega * omega * cgs * cgs / gch
	hg := ctx.Transfer(inst.node[tGp], inst.node[tSp])
	out += sg * (real(hg)*real(hg) + imag(hg)*imag(hg))

	// Cross term with a purely imaginary correlation coefficient
	cross := hd * complex(real(hg), -imag(hg))
	out += -2 * gateNoiseCorrelation * math.Sqrt(sd*sg) * imag(cross)
	return math.Max(out, 0)
}

// flickerNoise is the 1/f density between drain and source at f.
func (inst *Instance) flickerNoise(f float64) float64 {
	m, p, op := inst.model, inst.p, &inst.op
	cd := math.Abs(op.ids)
	if cd == 0 {
		return 0
	}
	effFreq := math.Pow(f, m.EF)

	if m.FNOIMOD == 0 {
		return m.KF * math.Pow(cd, m.AF) / (p.coxe * p.Leff * p.Leff * effFreq)
	}

	kT := consts.BOLTZMANN * inst.temp
	leff := p.Leff - 2*m.LINTNOI
	leffsq := leff * leff
	weff := p.Weff * inst.NF

	delClm := 0.0
	if m.EM > 0 {
		esat := 2 * p.vsattemp / op.ueff
		t0 := ((op.vds-op.vdseff)/p.litl + m.EM) / esat
		delClm = p.litl * math.Log(math.Max(t0, consts.MIN_LOG))
	}

	vgst2Vtm := op.vgsteff + 2*p.vtm
	n0 := p.coxe * op.vgsteff / consts.CHARGE
	nl := p.coxe * op.vgsteff * (1 - op.abulk*op.vdseff/vgst2Vtm) / consts.CHARGE
	nstar := p.nstar

	t1 := consts.CHARGE * consts.CHARGE * kT * cd * op.ueff
	t2 := 1e10 * effFreq * op.abulk * p.coxe * leffsq
	t3 := m.NOIA * math.Log(math.Max((n0+nstar)/(nl+nstar), consts.MIN_LOG))
	t4 := m.NOIB * (n0 - nl)
	t5 := 0.5 * m.NOIC * (n0*n0 - nl*nl)
	t6 := kT * cd * cd
	t7 := 1e10 * leffsq * weff * effFreq
	t8 := m.NOIA + m.NOIB*nl + m.NOIC*nl*nl
	t9 := (nl + nstar) * (nl + nstar)
	ssi := t1/t2*(t3+t4+t5) + t6/t7*delClm*t8/t9

	swi := m.NOIA * kT / (weff * leff * effFreq * 1e10) * cd * cd / t9

	if sum := ssi + swi; sum > 0 {
		return ssi * swi / sum
	}
	return 0
}
