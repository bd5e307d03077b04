package bsim

import (
	"math"

	"github.com/edp1096/toy-bsim/internal/consts"
)

// deriveSizeDependent bins the model at one geometry and applies the temperature.
func (m *Model) deriveSizeDependent(key sizeKey) *SizeDependentParameters {
	p := &SizeDependentParameters{key: key}

	// Effective geometry
	lDrn := key.L
	wDrn := key.W / key.NF

	t0 := math.Pow(lDrn, m.LLN)
	t1 := math.Pow(wDrn, m.LWN)
	dl := m.LINT + m.LL/t0 + m.LW/t1 + m.LWL/(t0*t1)

	t2 := math.Pow(lDrn, m.WLN)
	t3 := math.Pow(wDrn, m.WWN)
	dw := m.WINT + m.WL/t2 + m.WW/t3 + m.WWL/(t2*t3)

	p.Leff = lDrn*m.LMLT + m.XL - 2*dl
	p.Weff = wDrn*m.WMLT + m.XW - 2*dw
	p.LeffCV = lDrn*m.LMLT + m.XL - 2*m.DLC
	p.WeffCV = wDrn*m.WMLT + m.XW - 2*m.DWC
	p.WeffCJ = wDrn*m.WMLT + m.XW - 2*m.DWJ

	invL := 1e-6 / p.Leff
	invW := 1e-6 / p.Weff
	invLW := 1e-12 / (p.Leff * p.Weff)

	for _, b := range []struct {
		src *Binned
		dst *float64
	}{
		{&m.VTH0, &p.vth0}, {&m.K1, &p.k1}, {&m.K2, &p.k2}, {&m.K3, &p.k3}, {&m.K3B, &p.k3b},
		{&m.W0, &p.w0}, {&m.LPE0, &p.lpe0}, {&m.LPEB, &p.lpeb},
		{&m.DVT0, &p.dvt0}, {&m.DVT1, &p.dvt1}, {&m.DVT2, &p.dvt2},
		{&m.DVT0W, &p.dvt0w}, {&m.DVT1W, &p.dvt1w}, {&m.DVT2W, &p.dvt2w},
		{&m.DSUB, &p.dsub}, {&m.ETA0, &p.eta0}, {&m.ETAB, &p.etab}, {&m.NFACTOR, &p.nfactor},
		{&m.CDSC, &p.cdsc}, {&m.CDSCB, &p.cdscb}, {&m.CDSCD, &p.cdscd}, {&m.CIT, &p.cit},
		{&m.VOFF, &p.voff}, {&m.MINV, &p.minv}, {&m.NDEP, &p.ndep}, {&m.NSUB, &p.nsub},
		{&m.NGATE, &p.ngate}, {&m.NSD, &p.nsd}, {&m.XJ, &p.xj}, {&m.VBM, &p.vbm},
		{&m.XT, &p.xt}, {&m.PHIN, &p.phin},
		{&m.U0, &p.u0}, {&m.UA, &p.ua}, {&m.UB, &p.ub}, {&m.UC, &p.uc}, {&m.EU, &p.eu},
		{&m.UTE, &p.ute}, {&m.UA1, &p.ua1}, {&m.UB1, &p.ub1}, {&m.UC1, &p.uc1},
		{&m.VSAT, &p.vsat}, {&m.AT, &p.at}, {&m.A0, &p.a0}, {&m.AGS, &p.ags},
		{&m.A1, &p.a1}, {&m.A2, &p.a2}, {&m.B0, &p.b0}, {&m.B1, &p.b1}, {&m.KETA, &p.keta},
		{&m.RDSW, &p.rdsw}, {&m.PRWG, &p.prwg}, {&m.PRWB, &p.prwb}, {&m.WR, &p.wr},
		{&m.PRT, &p.prt}, {&m.DWG, &p.dwg}, {&m.DWB, &p.dwb},
		{&m.PCLM, &p.pclm}, {&m.PDIBLC1, &p.pdiblc1}, {&m.PDIBLC2, &p.pdiblc2},
		{&m.PDIBLCB, &p.pdiblcb}, {&m.DROUT, &p.drout}, {&m.PVAG, &p.pvag},
		{&m.DELTA, &p.delta}, {&m.FPROUT, &p.fprout},
		{&m.PDITS, &p.pdits}, {&m.PDITSD, &p.pditsd}, {&m.PDITSL, &p.pditsl},
		{&m.PSCBE1, &p.pscbe1}, {&m.PSCBE2, &p.pscbe2},
		{&m.ALPHA0, &p.alpha0}, {&m.ALPHA1, &p.alpha1}, {&m.BETA0, &p.beta0},
		{&m.AGIDL, &p.agidl}, {&m.BGIDL, &p.bgidl}, {&m.CGIDL, &p.cgidl}, {&m.EGIDL, &p.egidl},
		{&m.AGISL, &p.agisl}, {&m.BGISL, &p.bgisl}, {&m.CGISL, &p.cgisl}, {&m.EGISL, &p.egisl},
		{&m.AIGC, &p.aigc}, {&m.BIGC, &p.bigc}, {&m.CIGC, &p.cigc},
		{&m.AIGSD, &p.aigsd}, {&m.BIGSD, &p.bigsd}, {&m.CIGSD, &p.cigsd},
		{&m.AIGBACC, &p.aigbacc}, {&m.BIGBACC, &p.bigbacc}, {&m.CIGBACC, &p.cigbacc},
		{&m.AIGBINV, &p.aigbinv}, {&m.BIGBINV, &p.bigbinv}, {&m.CIGBINV, &p.cigbinv},
		{&m.NIGC, &p.nigc}, {&m.NIGBACC, &p.nigbacc}, {&m.NIGBINV, &p.nigbinv},
		{&m.EIGBINV, &p.eigbinv}, {&m.PIGCD, &p.pigcd}, {&m.POXEDGE, &p.poxedge},
		{&m.VFBSD, &p.vfbsd}, {&m.KT1, &p.kt1}, {&m.KT1L, &p.kt1l}, {&m.KT2, &p.kt2},
		{&m.XRCRG1, &p.xrcrg1}, {&m.XRCRG2, &p.xrcrg2},
		{&m.CGSL, &p.cgsl}, {&m.CGDL, &p.cgdl}, {&m.CKAPPAS, &p.ckappas}, {&m.CKAPPAD, &p.ckappad},
		{&m.CF, &p.cf}, {&m.CLC, &p.clc}, {&m.CLE, &p.cle}, {&m.VFBCV, &p.vfbcv},
		{&m.VOFFCV, &p.voffcv}, {&m.NOFF, &p.noff}, {&m.ACDE, &p.acde}, {&m.MOIN, &p.moin},
		{&m.VFB, &p.vfb},
	} {
		*b.dst = b.src.at(invL, invW, invLW)
	}

	m.applyTemperature(p, key.Temp)

	return p
}

func (m *Model) applyTemperature(p *SizeDependentParameters, temp float64) {
	tnom := m.TNOM + consts.KELVIN

	p.temp = temp
	p.vtm0 = consts.KBOQ * tnom
	p.eg0 = 1.16 - 7.02e-4*tnom*tnom/(tnom+1108.0)
	p.ni = consts.NI0 * math.Pow(tnom/consts.REFTMP, 1.5) * math.Exp(21.5565981-p.eg0/(2.0*p.vtm0))
	p.vtm = consts.KBOQ * temp
	p.eg = 1.16 - 7.02e-4*temp*temp/(temp+1108.0)
	p.tRatio = temp / tnom
	delT := temp - tnom
	tr1 := p.tRatio - 1.0

	p.ua += p.ua1 * tr1
	p.ub += p.ub1 * tr1
	p.uc += p.uc1 * tr1
	p.u0temp = p.u0 * math.Pow(p.tRatio, p.ute)
	p.vsattemp = p.vsat - p.at*tr1
	p.rds0 = math.Max((p.rdsw+p.prt*tr1)/math.Pow(p.Weff*1e6, p.wr), 0)

	p.coxe = m.coxe()
	p.coxp = m.coxp()

	p.mstar = 0.5 + math.Atan(p.minv)/math.Pi
	p.voffcbn = p.voff + m.VOFFL/p.Leff

	p.phi = p.vtm0*math.Log(p.ndep/p.ni) + p.phin + 0.4
	p.sqrtPhi = math.Sqrt(p.phi)
	p.xdep0 = math.Sqrt(2.0*consts.EPSSI/(consts.CHARGE*p.ndep*1e6)) * p.sqrtPhi
	p.litl = math.Sqrt(3.0 * 3.9 / m.EPSROX * p.xj * m.TOXE)
	p.vbi = p.vtm0 * math.Log(p.nsd*p.ndep/(p.ni*p.ni))
	p.cdep0 = math.Sqrt(consts.CHARGE * consts.EPSSI * p.ndep * 1e6 / 2.0 / p.phi)
	p.ldeb = math.Sqrt(consts.EPSSI*p.vtm0/(consts.CHARGE*p.ndep*1e6)) / 3.0
	p.acde *= ndepScale(p.ndep)

	p.k1ox = p.k1 * m.TOXE / m.TOXM
	p.k2ox = p.k2 * m.TOXE / m.TOXM

	if p.k2 < 0 {
		t := 0.5 * p.k1 / p.k2
		p.vbsc = 0.9 * (p.phi - t*t)
		p.vbsc = math.Min(math.Max(p.vbsc, -30.0), -3.0)
	} else {
		p.vbsc = -30.0
	}
	p.vbsc = math.Min(p.vbsc, p.vbm)

	p.factor1 = math.Sqrt(consts.EPSSI / (m.EPSROX * consts.EPS0) * m.TOXE)
	tmp := math.Sqrt(consts.EPSSI / (m.EPSROX * consts.EPS0) * m.TOXE * p.xdep0)
	p.theta0vb0 = scTheta(cnst(p.dsub * p.Leff / tmp)).v
	p.thetaRout = p.pdiblc1*scTheta(cnst(p.drout*p.Leff/tmp)).v + p.pdiblc2

	// Flat band voltage at zero body bias, including the short channel terms
	tmp2 := p.factor1 * math.Sqrt(p.xdep0)
	v0 := p.vbi - p.phi
	t8 := p.dvt0w * scTheta(cnst(p.dvt1w*p.Weff*p.Leff/tmp2)).v * v0
	t9 := p.dvt0 * scTheta(cnst(p.dvt1*p.Leff/tmp2)).v * v0
	t4 := m.TOXE * p.phi / (p.Weff + p.w0)
	t5 := p.k1ox*(math.Sqrt(1.0+p.lpe0/p.Leff)-1.0)*p.sqrtPhi + (p.kt1+p.kt1l/p.Leff)*tr1
	vth0 := float64(m.Type)*p.vth0 - t8 - t9 + p.k3*t4 + t5
	p.vfbzb = vth0 - p.phi - p.k1*p.sqrtPhi

	if !m.isGiven("vfb") {
		p.vfb = float64(m.Type)*p.vth0 - p.phi - p.k1*p.sqrtPhi
	}
	p.vtfbphi1 = math.Max(float64(m.Type)*p.vth0-p.vfbzb-p.phi, 0)
	p.vtfbphi2 = 4.0 * p.vtfbphi1

	p.abulkCVfactor = 1.0 + math.Pow(p.clc/p.LeffCV, p.cle)

	p.cgdo = (m.CGDO + p.cf) * p.WeffCV
	p.cgso = (m.CGSO + p.cf) * p.WeffCV
	p.cgbo = m.CGBO * p.LeffCV

	// Gate tunneling prefactors
	p.toxRatio = math.Exp(m.NTOX*math.Log(m.TOXREF/m.TOXE)) / m.TOXE / m.TOXE
	p.toxRatioEdge = math.Exp(m.NTOX*math.Log(m.TOXREF/(m.TOXE*p.poxedge))) /
		m.TOXE / m.TOXE / p.poxedge / p.poxedge
	aech, bech := 4.97232e-7, 7.45669e11
	if m.Type == PMOS {
		aech, bech = 3.42537e-7, 1.16645e12
	}
	p.aechvb = aech * p.Weff * p.Leff * p.toxRatio
	p.bechvb = -bech * m.TOXE
	p.aechvbEdge = aech * p.Weff * m.DLCIG * p.toxRatioEdge
	p.bechvbEdge = -bech * m.TOXE * p.poxedge
	p.aigb = 4.97232e-7 * p.Weff * p.Leff * p.toxRatio
	p.bigb = -7.45669e11 * m.TOXE

	p.nstar = p.vtm / consts.CHARGE * (p.coxe + p.cdep0 + p.cit)

	// Gate electrode resistance
	if m.RGATEMOD > 0 {
		r := m.RSHG * (m.XGW + p.WeffCJ/3.0/m.NGCON) / (m.NGCON * p.key.NF * (p.key.L - m.XGL))
		if r < 1e-3 {
			p.grgeltd = 1e3
		} else {
			p.grgeltd = 1.0 / r
		}
	}

	// Junctions
	t0 := p.eg0/p.vtm0 - p.eg/p.vtm
	lnT := math.Log(p.tRatio)
	satScale := func(n, xti float64) float64 {
		return math.Exp((t0 + xti*lnT) / n)
	}
	ss := satScale(m.NJS, m.XTIS)
	p.jss = m.JSS * ss
	p.jsws = m.JSWS * ss
	p.jswgs = m.JSWGS * ss
	sd := satScale(m.NJD, m.XTID)
	p.jsd = m.JSD * sd
	p.jswd = m.JSWD * sd
	p.jswgd = m.JSWGD * sd

	p.cjs = m.CJS * (1.0 + m.TCJ*delT)
	p.cjsws = m.CJSWS * (1.0 + m.TCJSW*delT)
	p.cjswgs = m.CJSWGS * (1.0 + m.TCJSWG*delT)
	p.cjd = m.CJD * (1.0 + m.TCJ*delT)
	p.cjswd = m.CJSWD * (1.0 + m.TCJSW*delT)
	p.cjswgd = m.CJSWGD * (1.0 + m.TCJSWG*delT)

	p.pbs = math.Max(m.PBS-m.TPB*delT, 0.01)
	p.pbsws = math.Max(m.PBSWS-m.TPBSW*delT, 0.01)
	p.pbswgs = math.Max(m.PBSWGS-m.TPBSWG*delT, 0.01)
	p.pbd = math.Max(m.PBD-m.TPB*delT, 0.01)
	p.pbswd = math.Max(m.PBSWD-m.TPBSW*delT, 0.01)
	p.pbswgd = math.Max(m.PBSWGD-m.TPBSWG*delT, 0.01)
}

func ndepScale(ndep float64) float64 {
	return math.Pow(ndep/2.0e16, -0.25)
}
