package bsim

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/edp1096/toy-bsim/internal/mathx"
)

type Severity int

const (
	Warning Severity = iota
	Fatal
)

func (s Severity) String() string {
	if s == Fatal {
		return "fatal"
	}
	return "warning"
}

// Diagnostic is one validator finding.
type Diagnostic struct {
	Severity Severity
	Model    string
	Param    string
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: model %s: %s: %s", d.Severity, d.Model, d.Param, d.Message)
}

// Diagnostics receives validator findings in the order the rules run.
type Diagnostics interface {
	Report(d Diagnostic)
}

// SlogDiagnostics forwards findings to the default slog logger.
type SlogDiagnostics struct{}

func (SlogDiagnostics) Report(d Diagnostic) {
	attrs := []any{
		slog.String("model", d.Model),
		slog.String("param", d.Param),
	}
	if d.Severity == Fatal {
		slog.Error(d.Message, attrs...)
		return
	}
	slog.Warn(d.Message, attrs...)
}

// DiagnosticList collects findings.
type DiagnosticList []Diagnostic

func (l *DiagnosticList) Report(d Diagnostic) {
	*l = append(*l, d)
}

// Has reports whether a finding of severity sev names param.
func (l DiagnosticList) Has(sev Severity, param string) bool {
	for _, d := range l {
		if d.Severity == sev && d.Param == param {
			return true
		}
	}
	return false
}

type checker struct {
	model string
	sink  Diagnostics
	fatal bool
}

func (c *checker) fatalIf(cond bool, param, format string, args ...any) {
	if !cond {
		return
	}
	c.fatal = true
	c.sink.Report(Diagnostic{Fatal, c.model, param, fmt.Sprintf(format, args...)})
}

func (c *checker) warnIf(cond bool, param, format string, args ...any) bool {
	if cond {
		c.sink.Report(Diagnostic{Warning, c.model, param, fmt.Sprintf(format, args...)})
	}
	return cond
}

// clamp pulls *v into [lo, hi] and reports the correction.
func (c *checker) clamp(param string, v *float64, lo, hi float64) bool {
	fixed := mathx.Clamp(*v, lo, hi)
	if fixed == *v {
		return false
	}
	bound := "small"
	if *v > hi {
		bound = "large"
	}
	c.warnIf(true, param, "%s = %g is too %s, set to %g", param, *v, bound, fixed)
	*v = fixed
	return true
}

// Check runs every rule against the model, the instance and the instance's size-dependent
// record. Warnings with a documented correction rewrite the offending value. The result is
// true when any fatal rule fired.
func (m *Model) Check(inst *Instance, sink Diagnostics) bool {
	if sink == nil {
		sink = SlogDiagnostics{}
	}
	c := &checker{model: m.Name, sink: sink}
	p := inst.p

	m.checkSelectors(c)

	// Oxide
	c.fatalIf(m.TOXE <= 0, "toxe", "toxe = %g is not positive", m.TOXE)
	c.fatalIf(m.TOXP <= 0, "toxp", "toxp = %g is not positive", m.TOXP)
	c.fatalIf(m.TOXM <= 0, "toxm", "toxm = %g is not positive", m.TOXM)
	c.fatalIf(m.EPSROX <= 0, "epsrox", "epsrox = %g is not positive", m.EPSROX)
	c.warnIf(m.TOXE > 0 && m.TOXE < 1e-10, "toxe", "toxe = %g is less than 1A", m.TOXE)

	// Process
	c.fatalIf(p.xj <= 0, "xj", "xj = %g is not positive", p.xj)
	c.fatalIf(p.ndep <= 0, "ndep", "ndep = %g is not positive", p.ndep)
	c.fatalIf(p.nsub <= 0, "nsub", "nsub = %g is not positive", p.nsub)
	c.fatalIf(p.ngate < 0 || p.ngate > 1e25, "ngate", "ngate = %g is outside [0, 1e25]", p.ngate)
	c.fatalIf(p.dvt1 < 0, "dvt1", "dvt1 = %g is negative", p.dvt1)
	c.fatalIf(p.dvt1w < 0, "dvt1w", "dvt1w = %g is negative", p.dvt1w)
	c.fatalIf(p.w0 == -p.Weff, "w0", "w0 = -Weff gives a zero narrow width denominator")
	c.fatalIf(p.dsub < 0, "dsub", "dsub = %g is negative", p.dsub)
	c.fatalIf(p.b1 == -p.Weff, "b1", "b1 = -Weff gives a zero Abulk denominator")
	c.fatalIf(p.u0temp <= 0, "u0", "mobility at temperature %g is not positive", p.u0temp)
	c.fatalIf(p.delta < 0, "delta", "delta = %g is negative", p.delta)
	c.fatalIf(p.vsattemp <= 0, "vsat", "saturation velocity at temperature %g is not positive", p.vsattemp)
	c.fatalIf(p.pclm <= 0, "pclm", "pclm = %g is not positive", p.pclm)
	c.fatalIf(p.drout < 0, "drout", "drout = %g is negative", p.drout)
	c.fatalIf(p.fprout < 0, "fprout", "fprout = %g is negative", p.fprout)
	c.fatalIf(p.pdits < 0, "pdits", "pdits = %g is negative", p.pdits)
	c.fatalIf(p.pditsl < 0, "pditsl", "pditsl = %g is negative", p.pditsl)

	// Geometry
	c.fatalIf(p.Leff <= 0, "l", "effective channel length %g is not positive", p.Leff)
	c.fatalIf(p.LeffCV <= 0, "l", "effective CV channel length %g is not positive", p.LeffCV)
	c.fatalIf(p.Weff <= 0, "w", "effective channel width %g is not positive", p.Weff)
	c.fatalIf(p.WeffCV <= 0, "w", "effective CV channel width %g is not positive", p.WeffCV)
	c.fatalIf(inst.NF < 1, "nf", "number of fingers %g is less than 1", inst.NF)
	c.warnIf(p.Leff > 0 && p.Leff <= 1e-9, "l", "effective channel length %g is at most 1nm", p.Leff)
	c.warnIf(p.LeffCV > 0 && p.LeffCV <= 1e-9, "l", "effective CV channel length %g is at most 1nm", p.LeffCV)
	c.warnIf(p.Weff > 0 && p.Weff <= 1e-9, "w", "effective channel width %g is at most 1nm", p.Weff)
	c.warnIf(p.WeffCV > 0 && p.WeffCV <= 1e-9, "w", "effective CV channel width %g is at most 1nm", p.WeffCV)

	// Junctions
	for _, j := range []struct {
		name string
		v    float64
	}{
		{"pbs", m.PBS}, {"pbsws", m.PBSWS}, {"pbswgs", m.PBSWGS},
		{"pbd", m.PBD}, {"pbswd", m.PBSWD}, {"pbswgd", m.PBSWGD},
	} {
		c.fatalIf(j.v <= 0, j.name, "built-in potential %g is not positive", j.v)
	}
	for _, j := range []struct {
		name string
		v    float64
	}{
		{"mjs", m.MJS}, {"mjsws", m.MJSWS}, {"mjswgs", m.MJSWGS},
		{"mjd", m.MJD}, {"mjswd", m.MJSWD}, {"mjswgd", m.MJSWGD},
	} {
		c.fatalIf(j.v < 0 || j.v >= 1, j.name, "grading coefficient %g is outside [0, 1)", j.v)
	}
	c.fatalIf(m.NJS <= 0, "njs", "njs = %g is not positive", m.NJS)
	c.fatalIf(m.NJD <= 0, "njd", "njd = %g is not positive", m.NJD)

	// Gate tunneling
	c.fatalIf(p.nigc <= 0, "nigc", "nigc = %g is not positive", p.nigc)
	c.fatalIf(p.nigbacc <= 0, "nigbacc", "nigbacc = %g is not positive", p.nigbacc)
	c.fatalIf(p.nigbinv <= 0, "nigbinv", "nigbinv = %g is not positive", p.nigbinv)
	c.fatalIf(p.poxedge <= 0, "poxedge", "poxedge = %g is not positive", p.poxedge)

	// Warnings
	c.warnIf(p.nfactor < 0, "nfactor", "nfactor = %g is negative", p.nfactor)
	c.warnIf(p.cdsc < 0, "cdsc", "cdsc = %g is negative", p.cdsc)
	c.warnIf(p.cdscd < 0, "cdscd", "cdscd = %g is negative", p.cdscd)
	c.warnIf(p.eta0 < 0, "eta0", "eta0 = %g is negative", p.eta0)
	c.warnIf(p.vsattemp > 0 && p.vsattemp < 1e3, "vsat", "saturation velocity %g at temperature may be too small", p.vsattemp)
	c.warnIf(p.pdiblc1 < 0, "pdiblc1", "pdiblc1 = %g is negative", p.pdiblc1)
	c.warnIf(p.pdiblc2 < 0, "pdiblc2", "pdiblc2 = %g is negative", p.pdiblc2)
	c.warnIf(p.pscbe2 <= 0, "pscbe2", "pscbe2 = %g is not positive", p.pscbe2)

	if c.warnIf(p.a2 < 0.01, "a2", "a2 = %g is too small, set to 0.01", p.a2) {
		p.a2 = 0.01
	} else if c.warnIf(p.a2 > 1, "a2", "a2 = %g is larger than 1, a2 set to 1 and a1 set to 0", p.a2) {
		p.a2 = 1
		p.a1 = 0
	}
	if c.warnIf(p.prwg < 0, "prwg", "prwg = %g is negative, set to 0", p.prwg) {
		p.prwg = 0
	}
	c.clamp("ckappas", &p.ckappas, 0.02, math.Inf(1))
	c.clamp("ckappad", &p.ckappad, 0.02, math.Inf(1))

	if m.CAPMOD >= 2 {
		c.clamp("noff", &p.noff, 0.1, 4)
		c.clamp("voffcv", &p.voffcv, -0.5, 0.5)
	}
	if m.CAPMOD == 3 {
		c.clamp("moin", &p.moin, 5, 25)
		acde := p.acde / p.acdeScale()
		if c.clamp("acde", &acde, 0.1, 1.6) {
			p.acde = acde * p.acdeScale()
		}
	}

	if m.TRNQSMOD == 1 || m.RGATEMOD > 1 {
		if c.warnIf(p.xrcrg1 <= 0, "xrcrg1", "xrcrg1 = %g is not positive, set to 12", p.xrcrg1) {
			p.xrcrg1 = 12
		}
	}

	return c.fatal
}

// acdeScale is the doping factor applied to acde during the temperature pass.
func (p *SizeDependentParameters) acdeScale() float64 {
	return ndepScale(p.ndep)
}

func (m *Model) checkSelectors(c *checker) {
	for _, s := range []struct {
		name    string
		v       *int
		max, df int
	}{
		{"mobmod", &m.MOBMOD, 2, 0},
		{"capmod", &m.CAPMOD, 3, 3},
		{"rdsmod", &m.RDSMOD, 1, 0},
		{"rgatemod", &m.RGATEMOD, 3, 0},
		{"rbodymod", &m.RBODYMOD, 1, 0},
		{"igcmod", &m.IGCMOD, 1, 0},
		{"igbmod", &m.IGBMOD, 1, 0},
		{"trnqsmod", &m.TRNQSMOD, 1, 0},
		{"fnoimod", &m.FNOIMOD, 1, 1},
		{"tnoimod", &m.TNOIMOD, 2, 0},
		{"diomod", &m.DIOMOD, 1, 1},
	} {
		if c.warnIf(*s.v < 0 || *s.v > s.max, s.name, "%s = %d is not a valid selector, set to %d", s.name, *s.v, s.df) {
			*s.v = s.df
		}
	}
}

// normalizeSelectors resets invalid mode selectors before node allocation looks at them.
func (m *Model) normalizeSelectors() {
	m.mu.Lock()
	defer m.mu.Unlock()

	sink := m.Diagnostics
	if sink == nil {
		sink = SlogDiagnostics{}
	}
	m.checkSelectors(&checker{model: m.Name, sink: sink})
}
