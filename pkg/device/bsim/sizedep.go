package bsim

// sizeKey identifies one resolved geometry at one temperature.
type sizeKey struct {
	L, W, NF float64
	Temp     float64 // K
}

// SizeDependentParameters is derived once per distinct geometry and temperature and shared
// read-only by every instance with that key. Only the validator writes to it, before the
// record is published.
type SizeDependentParameters struct {
	key sizeKey

	Leff, Weff     float64 // Effective channel length and width per finger (m)
	LeffCV, WeffCV float64
	WeffCJ         float64

	// Binned values at this geometry
	vth0, k1, k2, k3, k3b, w0, lpe0, lpeb            float64
	dvt0, dvt1, dvt2, dvt0w, dvt1w, dvt2w, dsub      float64
	eta0, etab, nfactor, cdsc, cdscb, cdscd, cit     float64
	voff, minv, ndep, nsub, ngate, nsd, xj, vbm      float64
	xt, phin                                         float64
	u0, ua, ub, uc, eu, ute, ua1, ub1, uc1           float64
	vsat, at, a0, ags, a1, a2, b0, b1, keta          float64
	rdsw, prwg, prwb, wr, prt, dwg, dwb              float64
	pclm, pdiblc1, pdiblc2, pdiblcb, drout, pvag     float64
	delta, fprout, pdits, pditsd, pditsl             float64
	pscbe1, pscbe2, alpha0, alpha1, beta0            float64
	agidl, bgidl, cgidl, egidl                       float64
	agisl, bgisl, cgisl, egisl                       float64
	aigc, bigc, cigc, aigsd, bigsd, cigsd            float64
	aigbacc, bigbacc, cigbacc                        float64
	aigbinv, bigbinv, cigbinv                        float64
	nigc, nigbacc, nigbinv, eigbinv, pigcd, poxedge  float64
	vfbsd, kt1, kt1l, kt2, xrcrg1, xrcrg2            float64
	cgsl, cgdl, ckappas, ckappad, cf, clc, cle       float64
	vfbcv, voffcv, noff, acde, moin, vfb             float64

	// Temperature
	temp, vtm, vtm0, tRatio, eg0, eg, ni float64
	u0temp, vsattemp, rds0               float64

	// Derived constants
	mstar, voffcbn                 float64
	phi, sqrtPhi, xdep0, litl, vbi float64
	cdep0, ldeb, k1ox, k2ox, vbsc  float64
	factor1, theta0vb0, thetaRout  float64
	vfbzb, vtfbphi1, vtfbphi2      float64
	abulkCVfactor                  float64
	cgdo, cgso, cgbo               float64 // Overlap capacitances per finger (F)
	coxe, coxp                     float64
	toxRatio, toxRatioEdge         float64
	aechvb, bechvb                 float64 // Igc prefactors
	aechvbEdge, bechvbEdge         float64 // Igs/Igd prefactors
	aigb, bigb                     float64 // Igb prefactors
	nstar                          float64
	grgeltd                        float64 // Gate electrode conductance (S)

	// Temperature-adjusted junction densities
	jss, jsws, jswgs, jsd, jswd, jswgd float64
	cjs, cjsws, cjswgs, cjd, cjswd, cjswgd float64
	pbs, pbsws, pbswgs, pbd, pbswd, pbswgd float64

	fatal bool
}

// sizeDependent returns the shared record for key, deriving and validating it on first use.
// inst supplies the instance-level values the validator looks at.
func (m *Model) sizeDependent(key sizeKey, inst *Instance) *SizeDependentParameters {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.sizeDep[key]; ok {
		return p
	}

	if !m.resolved {
		m.resolveDefaults()
		m.resolved = true
	}

	p := m.deriveSizeDependent(key)
	inst.p = p
	p.fatal = m.Check(inst, m.Diagnostics)
	m.sizeDep[key] = p

	return p
}

// SizeDependentCount is the number of distinct records in the registry.
func (m *Model) SizeDependentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sizeDep)
}
