// Package bsim implements a BSIM4-class compact MOSFET model: DC currents, gate and
// junction leakage, terminal charges, noise, and their stamps into an MNA matrix.
package bsim

import (
	"math"
	"sync"

	"github.com/edp1096/toy-bsim/internal/consts"
)

const (
	NMOS = 1
	PMOS = -1
)

// Binned is a parameter with length, width and area binning coefficients.
// The effective value is V + L/Leff + W/Weff + P/(Leff*Weff) with lengths in microns.
type Binned struct {
	V, L, W, P float64
}

func (b Binned) at(invL, invW, invLW float64) float64 {
	return b.V + b.L*invL + b.W*invW + b.P*invLW
}

// Model is one model card. It is shared by every instance that references it.
type Model struct {
	Name string
	Type int // NMOS or PMOS

	// Mode selectors
	MOBMOD   int     // Mobility model 0, 1, 2
	CAPMOD   int     // 0 none, 1 depletion only, 2 smooth, 3 charge thickness
	XPART    float64 // Charge partition: <0.5 40/60, 0.5 50/50, >0.5 0/100
	RDSMOD   int     // 0 internal Rds, 1 external rd/rs
	RGATEMOD int     // Gate resistance 0 none, 1 fixed, 2 bias dependent, 3 two nodes
	RBODYMOD int     // Substrate resistance network 0 off, 1 on
	IGCMOD   int     // Gate to channel tunneling
	IGBMOD   int     // Gate to bulk tunneling
	TRNQSMOD int     // Transient non-quasi-static charge deficit
	FNOIMOD  int     // Flicker noise 0 simple, 1 unified
	TNOIMOD  int     // Thermal noise 0 charge based, 1 holistic, 2 correlated gate noise
	DIOMOD   int     // Junction diode 0 ideal, 1 breakdown with forward linearization

	// Process
	TOXE   float64 // Electrical gate oxide thickness (m)
	TOXP   float64 // Physical gate oxide thickness (m)
	TOXM   float64 // Oxide thickness at which parameters are extracted (m)
	TOXREF float64 // Reference oxide thickness for tunneling (m)
	DTOX   float64 // TOXE - TOXP (m)
	EPSROX float64 // Gate dielectric constant relative to vacuum
	TNOM   float64 // Parameter measurement temperature (degC)

	// Geometry
	LINT  float64 // Length offset (m)
	LL    float64 // Length dependence of LINT
	LLN   float64
	LW    float64 // Width dependence of LINT
	LWN   float64
	LWL   float64
	WINT  float64 // Width offset (m)
	WL    float64
	WLN   float64
	WW    float64
	WWN   float64
	WWL   float64
	DLC   float64 // Length offset for CV (m)
	DWC   float64 // Width offset for CV (m)
	DWJ   float64 // Width offset for junction (m)
	DLCIG float64 // Source/drain overlap length for Igs/Igd (m)
	XL    float64
	XW    float64
	LMLT  float64
	WMLT  float64
	VOFFL float64 // Length dependence of VOFF (V*m)

	// Parasitic resistance
	RDW    float64 // Drain resistance per width, rdsMod 1 (Ohm*um)
	RSW    float64 // Source resistance per width, rdsMod 1 (Ohm*um)
	RDWMIN float64
	RSWMIN float64
	RSH    float64 // Source/drain sheet resistance (Ohm/sq)
	RSHG   float64 // Gate sheet resistance (Ohm/sq)
	XGW    float64 // Gate contact offset (m)
	XGL    float64 // Gate length offset for resistance (m)
	NGCON  float64 // Number of gate contacts
	RBPB   float64 // Substrate resistances (Ohm)
	RBPD   float64
	RBPS   float64
	RBDB   float64
	RBSB   float64
	GBMIN  float64 // Conductance in parallel with each substrate resistor (S)

	// Junction diodes
	JSS      float64 // Source bottom saturation current density (A/m²)
	JSWS     float64 // Source sidewall saturation current density (A/m)
	JSWGS    float64 // Source gate-edge saturation current density (A/m)
	NJS      float64 // Source emission coefficient
	XTIS     float64 // Source saturation current temperature exponent
	IJTHSFWD float64 // Forward current above which the source diode is linearized (A)
	BVS      float64 // Source breakdown voltage (V)
	XJBVS    float64 // Source breakdown fitting factor
	JSD      float64
	JSWD     float64
	JSWGD    float64
	NJD      float64
	XTID     float64
	IJTHDFWD float64
	BVD      float64
	XJBVD    float64

	CJS    float64 // Source bottom junction capacitance (F/m²)
	MJS    float64
	PBS    float64
	CJSWS  float64 // Source sidewall capacitance (F/m)
	MJSWS  float64
	PBSWS  float64
	CJSWGS float64 // Source gate-edge capacitance (F/m)
	MJSWGS float64
	PBSWGS float64
	CJD    float64
	MJD    float64
	PBD    float64
	CJSWD  float64
	MJSWD  float64
	PBSWD  float64
	CJSWGD float64
	MJSWGD float64
	PBSWGD float64
	TCJ    float64 // Temperature coefficients of junction capacitances and potentials
	TPB    float64
	TCJSW  float64
	TPBSW  float64
	TCJSWG float64
	TPBSWG float64

	// Overlap
	CGSO float64 // Gate-source overlap capacitance per width (F/m)
	CGDO float64 // Gate-drain overlap capacitance per width (F/m)
	CGBO float64 // Gate-bulk overlap capacitance per length (F/m)

	// Tunneling
	NTOX float64 // Oxide thickness exponent for tunneling

	// Noise
	KF      float64 // Flicker noise coefficient
	AF      float64 // Flicker noise current exponent
	EF      float64 // Flicker noise frequency exponent
	NOIA    float64 // Unified flicker noise coefficients
	NOIB    float64
	NOIC    float64
	EM      float64 // Saturation field (V/m)
	LINTNOI float64 // Length reduction for flicker noise (m)
	NTNOI   float64 // Thermal noise coefficient
	RNOIA   float64 // Holistic thermal noise coefficients
	RNOIB   float64
	TNOIA   float64
	TNOIB   float64

	// Binned physics parameters
	VTH0    Binned // Threshold voltage at zero body bias for long wide devices (V)
	K1      Binned // First-order body effect coefficient (V^0.5)
	K2      Binned // Second-order body effect coefficient
	K3      Binned // Narrow width coefficient
	K3B     Binned // Body effect of narrow width coefficient (1/V)
	W0      Binned // Narrow width parameter (m)
	LPE0    Binned // Lateral non-uniform doping at zero bias (m)
	LPEB    Binned // Lateral non-uniform doping body effect (m)
	DVT0    Binned // Short channel effect coefficients
	DVT1    Binned
	DVT2    Binned // (1/V)
	DVT0W   Binned // Narrow width short channel coefficients
	DVT1W   Binned // (1/m)
	DVT2W   Binned // (1/V)
	DSUB    Binned // DIBL exponent coefficient in subthreshold
	ETA0    Binned // DIBL coefficient in subthreshold
	ETAB    Binned // Body bias coefficient of ETA0 (1/V)
	NFACTOR Binned // Subthreshold swing factor
	CDSC    Binned // Drain/source to channel coupling capacitance (F/m²)
	CDSCB   Binned // Body bias sensitivity of CDSC (F/Vm²)
	CDSCD   Binned // Drain bias sensitivity of CDSC (F/Vm²)
	CIT     Binned // Interface trap capacitance (F/m²)
	VOFF    Binned // Offset voltage in subthreshold (V)
	MINV    Binned // Vgsteff fitting parameter for moderate inversion
	NDEP    Binned // Channel doping at depletion edge (1/cm³)
	NSUB    Binned // Substrate doping (1/cm³)
	NGATE   Binned // Poly gate doping (1/cm³)
	NSD     Binned // Source/drain doping (1/cm³)
	XJ      Binned // Junction depth (m)
	VBM     Binned // Maximum applied body bias for VTH0 (V)
	XT      Binned // Doping depth (m)
	PHIN    Binned // Non-uniform vertical doping effect on surface potential (V)
	U0      Binned // Low-field mobility (m²/Vs)
	UA      Binned // First-order mobility degradation (m/V)
	UB      Binned // Second-order mobility degradation (m/V)²
	UC      Binned // Body effect of mobility degradation
	EU      Binned // Exponent for mobility degradation of mobMod 2
	UTE     Binned // Mobility temperature exponent
	UA1     Binned // Temperature coefficients of UA, UB, UC
	UB1     Binned
	UC1     Binned
	VSAT    Binned // Saturation velocity (m/s)
	AT      Binned // Temperature coefficient of VSAT (m/s)
	A0      Binned // Bulk charge effect
	AGS     Binned // Gate bias coefficient of Abulk (1/V)
	A1      Binned // First non-saturation factor (1/V)
	A2      Binned // Second non-saturation factor
	B0      Binned // Abulk narrow width parameter (m)
	B1      Binned // Abulk narrow width parameter (m)
	KETA    Binned // Body bias coefficient of Abulk (1/V)
	RDSW    Binned // Zero-bias LDD resistance per unit width, rdsMod 0 (Ohm*um^WR)
	PRWG    Binned // Gate bias dependence of LDD resistance (1/V)
	PRWB    Binned // Body bias dependence of LDD resistance (1/V^0.5)
	WR      Binned // Width offset of LDD resistance
	PRT     Binned // Temperature coefficient of RDSW (Ohm*um)
	DWG     Binned // Gate bias dependence of Weff (m/V)
	DWB     Binned // Body bias dependence of Weff (m/V^0.5)
	PCLM    Binned // Channel length modulation
	PDIBLC1 Binned // DIBL output resistance coefficients
	PDIBLC2 Binned
	PDIBLCB Binned // (1/V)
	DROUT   Binned // Channel length dependence of DIBL output resistance
	PVAG    Binned // Gate bias dependence of Early voltage
	DELTA   Binned // Vdseff smoothing (V)
	FPROUT  Binned // Pocket implant output resistance degradation (V/m^0.5)
	PDITS   Binned // Drain induced threshold shift (1/V)
	PDITSD  Binned // Vds dependence of DITS (1/V)
	PDITSL  Binned // Length dependence of DITS (1/m)
	PSCBE1  Binned // Substrate current body effect (V/m)
	PSCBE2  Binned // (m/V)
	ALPHA0  Binned // Impact ionization (A*m/V)
	ALPHA1  Binned // (A/V)
	BETA0   Binned // (V)
	AGIDL   Binned // GIDL pre-exponential (1/Ohm)
	BGIDL   Binned // GIDL exponential (V/m)
	CGIDL   Binned // GIDL body bias (V³)
	EGIDL   Binned // GIDL band bending (V)
	AGISL   Binned
	BGISL   Binned
	CGISL   Binned
	EGISL   Binned
	AIGC    Binned // Igc coefficients
	BIGC    Binned
	CIGC    Binned
	AIGSD   Binned // Igs/Igd coefficients
	BIGSD   Binned
	CIGSD   Binned
	AIGBACC Binned // Igb accumulation coefficients
	BIGBACC Binned
	CIGBACC Binned
	AIGBINV Binned // Igb inversion coefficients
	BIGBINV Binned
	CIGBINV Binned
	NIGC    Binned // Igc slope
	NIGBACC Binned // Igbacc slope
	NIGBINV Binned // Igbinv slope
	EIGBINV Binned // Igbinv band gap (V)
	PIGCD   Binned // Igc partition Vds dependence
	POXEDGE Binned // Oxide thickness factor at the edge
	VFBSD   Binned // Flat band voltage between gate and source/drain (V)
	KT1     Binned // Temperature coefficient of Vth (V)
	KT1L    Binned // (V*m)
	KT2     Binned
	XRCRG1  Binned // Gate resistance and NQS fitting
	XRCRG2  Binned
	CGSL    Binned // Bias dependent gate-source overlap (F/m)
	CGDL    Binned // Bias dependent gate-drain overlap (F/m)
	CKAPPAS Binned // Overlap fringing coefficients (V)
	CKAPPAD Binned
	CF      Binned // Fringing field capacitance (F/m)
	CLC     Binned // Abulk CV length coefficient (m)
	CLE     Binned // Abulk CV exponent
	VFBCV   Binned // Flat band voltage for capMod 0 (V)
	VOFFCV  Binned // C-V offset (V)
	NOFF    Binned // C-V subthreshold swing factor
	ACDE    Binned // Exponential coefficient for charge thickness (m/V)
	MOIN    Binned // Surface potential coefficient for charge thickness
	VFB     Binned // Flat band voltage (V)

	given []bool

	Diagnostics Diagnostics

	mu       sync.Mutex
	resolved bool
	sizeDep  map[sizeKey]*SizeDependentParameters
}

func NewModel(name string, typ int) *Model {
	m := &Model{
		Name:        name,
		Type:        NMOS,
		given:       make([]bool, len(modelParams)),
		Diagnostics: SlogDiagnostics{},
		sizeDep:     make(map[sizeKey]*SizeDependentParameters),
	}
	if typ == PMOS {
		m.Type = PMOS
	}
	m.setDefaultParameters()

	return m
}

func (m *Model) setDefaultParameters() {
	pmos := m.Type == PMOS

	m.MOBMOD = 0
	m.CAPMOD = 3
	m.XPART = 0
	m.RDSMOD = 0
	m.RGATEMOD = 0
	m.RBODYMOD = 0
	m.IGCMOD = 0
	m.IGBMOD = 0
	m.TRNQSMOD = 0
	m.FNOIMOD = 1
	m.TNOIMOD = 0
	m.DIOMOD = 1

	m.TOXE = 3e-9
	m.TOXREF = 3e-9
	m.EPSROX = 3.9
	m.TNOM = 27.0
	m.LLN, m.LWN, m.WLN, m.WWN = 1, 1, 1, 1
	m.LMLT, m.WMLT = 1, 1

	m.RDW, m.RSW = 100, 100
	m.RSHG = 0.1
	m.NGCON = 1
	m.RBPB, m.RBPD, m.RBPS, m.RBDB, m.RBSB = 50, 50, 50, 50, 50
	m.GBMIN = 1e-12

	m.JSS = 1e-4
	m.NJS = 1
	m.XTIS = 3
	m.IJTHSFWD = 0.1
	m.BVS = 10
	m.XJBVS = 1
	m.CJS = 5e-4
	m.MJS = 0.5
	m.PBS = 1
	m.CJSWS = 5e-10
	m.MJSWS = 0.33
	m.PBSWS = 1

	m.NTOX = 1

	m.AF = 1
	m.EF = 1
	m.EM = 4.1e7
	m.NTNOI = 1
	m.RNOIA = 0.577
	m.RNOIB = 0.5164
	m.TNOIA = 1.5
	m.TNOIB = 3.5
	if pmos {
		m.NOIA, m.NOIB, m.NOIC = 6.188e40, 1.5e25, 8.75
	} else {
		m.NOIA, m.NOIB, m.NOIC = 6.25e41, 3.125e26, 8.75
	}

	m.VTH0.V = 0.7
	if pmos {
		m.VTH0.V = -0.7
	}
	m.K1.V = 0.53
	m.K2.V = -0.0186
	m.K3.V = 80
	m.W0.V = 2.5e-6
	m.LPE0.V = 1.74e-7
	m.DVT0.V = 2.2
	m.DVT1.V = 0.53
	m.DVT2.V = -0.032
	m.DVT1W.V = 5.3e6
	m.DVT2W.V = -0.032
	m.ETA0.V = 0.08
	m.ETAB.V = -0.07
	m.NFACTOR.V = 1
	m.CDSC.V = 2.4e-4
	m.VOFF.V = -0.08
	m.NDEP.V = 1.7e17
	m.NSUB.V = 6e16
	m.NSD.V = 1e20
	m.XJ.V = 1.5e-7
	m.VBM.V = -3
	m.XT.V = 1.55e-7
	if pmos {
		m.U0.V = 0.025
		m.EU.V = 1.0
	} else {
		m.U0.V = 0.067
		m.EU.V = 1.67
	}
	m.UB.V = 1e-19
	m.UTE.V = -1.5
	m.UB1.V = -1e-18
	m.VSAT.V = 8e4
	m.AT.V = 3.3e4
	m.A0.V = 1
	m.A2.V = 1
	m.KETA.V = -0.047
	m.RDSW.V = 200
	m.PRWG.V = 1
	m.WR.V = 1
	m.PCLM.V = 1.3
	m.PDIBLC1.V = 0.39
	m.PDIBLC2.V = 0.0086
	m.DROUT.V = 0.56
	m.DELTA.V = 0.01
	m.PSCBE1.V = 4.24e8
	m.PSCBE2.V = 1e-5
	m.BETA0.V = 30
	m.BGIDL.V = 2.3e9
	m.CGIDL.V = 0.5
	m.EGIDL.V = 0.8
	if pmos {
		m.AIGC.V, m.BIGC.V, m.CIGC.V = 9.8e-3, 7.59e-4, 0.03
		m.AIGSD.V, m.BIGSD.V, m.CIGSD.V = 9.8e-3, 7.59e-4, 0.03
	} else {
		m.AIGC.V, m.BIGC.V, m.CIGC.V = 1.36e-2, 1.71e-3, 0.075
		m.AIGSD.V, m.BIGSD.V, m.CIGSD.V = 1.36e-2, 1.71e-3, 0.075
	}
	m.AIGBACC.V, m.BIGBACC.V, m.CIGBACC.V = 1.36e-2, 1.71e-3, 0.075
	m.AIGBINV.V, m.BIGBINV.V, m.CIGBINV.V = 1.11e-2, 9.49e-4, 6.0e-3
	m.NIGC.V = 1
	m.NIGBACC.V = 1
	m.NIGBINV.V = 3
	m.EIGBINV.V = 1.1
	m.PIGCD.V = 1
	m.POXEDGE.V = 1
	m.KT1.V = -0.11
	m.KT2.V = 0.022
	m.XRCRG1.V = 12
	m.XRCRG2.V = 1
	m.CKAPPAS.V = 0.6
	m.CLC.V = 1e-7
	m.CLE.V = 0.6
	m.VFBCV.V = -1
	m.NOFF.V = 1
	m.ACDE.V = 1
	m.MOIN.V = 15
	m.VFB.V = -1
}

// resolveDefaults fills parameters whose defaults depend on other parameters.
// It runs before any size-dependent record is derived.
func (m *Model) resolveDefaults() {
	if !m.isGiven("toxp") {
		m.TOXP = m.TOXE - m.DTOX
	}
	if !m.isGiven("toxm") {
		m.TOXM = m.TOXE
	}
	if !m.isGiven("dlc") {
		m.DLC = m.LINT
	}
	if !m.isGiven("dwc") {
		m.DWC = m.WINT
	}
	if !m.isGiven("dwj") {
		m.DWJ = m.DWC
	}
	if !m.isGiven("dlcig") {
		m.DLCIG = m.LINT
	}

	if !m.isGiven("ua") {
		m.UA.V = 1e-9
		if m.MOBMOD == 2 {
			m.UA.V = 1e-15
		}
	}
	if !m.isGiven("uc") {
		m.UC.V = -0.0465e-9
		if m.MOBMOD == 1 {
			m.UC.V = -0.0465
		}
	}
	if !m.isGiven("uc1") {
		m.UC1.V = -0.056e-9
		if m.MOBMOD == 1 {
			m.UC1.V = -0.056
		}
	}
	if !m.isGiven("ua1") {
		m.UA1.V = 1e-9
	}
	// Mobility given in cm²/Vs
	if m.U0.V > 1 {
		m.U0.V *= 1e-4
	}

	if !m.isGiven("dsub") {
		m.DSUB = m.DROUT
	}
	if !m.isGiven("agisl") {
		m.AGISL = m.AGIDL
	}
	if !m.isGiven("bgisl") {
		m.BGISL = m.BGIDL
	}
	if !m.isGiven("cgisl") {
		m.CGISL = m.CGIDL
	}
	if !m.isGiven("egisl") {
		m.EGISL = m.EGIDL
	}
	if !m.isGiven("ckappad") {
		m.CKAPPAD = m.CKAPPAS
	}
	if !m.isGiven("cgdo") {
		m.CGDO = 0.6 * m.XJ.V * m.coxe()
		if m.DLC > 0 {
			m.CGDO = math.Max(m.DLC*m.coxe()-m.CGDL.V, 0)
		}
	}
	if !m.isGiven("cgso") {
		m.CGSO = 0.6 * m.XJ.V * m.coxe()
		if m.DLC > 0 {
			m.CGSO = math.Max(m.DLC*m.coxe()-m.CGSL.V, 0)
		}
	}
	if !m.isGiven("cgbo") {
		m.CGBO = 2 * m.DWC * m.coxe()
	}
	if !m.isGiven("cf") {
		m.CF.V = 2 * m.EPSROX * consts.EPS0 / math.Pi * math.Log(1+0.4e-6/m.TOXE)
	}

	if !m.isGiven("jsd") {
		m.JSD = m.JSS
	}
	if !m.isGiven("jswd") {
		m.JSWD = m.JSWS
	}
	if !m.isGiven("jswgd") {
		m.JSWGD = m.JSWGS
	}
	if !m.isGiven("njd") {
		m.NJD = m.NJS
	}
	if !m.isGiven("xtid") {
		m.XTID = m.XTIS
	}
	if !m.isGiven("ijthdfwd") {
		m.IJTHDFWD = m.IJTHSFWD
	}
	if !m.isGiven("bvd") {
		m.BVD = m.BVS
	}
	if !m.isGiven("xjbvd") {
		m.XJBVD = m.XJBVS
	}
	if !m.isGiven("cjswgs") {
		m.CJSWGS = m.CJSWS
	}
	if !m.isGiven("mjswgs") {
		m.MJSWGS = m.MJSWS
	}
	if !m.isGiven("pbswgs") {
		m.PBSWGS = m.PBSWS
	}
	if !m.isGiven("cjd") {
		m.CJD = m.CJS
	}
	if !m.isGiven("mjd") {
		m.MJD = m.MJS
	}
	if !m.isGiven("pbd") {
		m.PBD = m.PBS
	}
	if !m.isGiven("cjswd") {
		m.CJSWD = m.CJSWS
	}
	if !m.isGiven("mjswd") {
		m.MJSWD = m.MJSWS
	}
	if !m.isGiven("pbswd") {
		m.PBSWD = m.PBSWS
	}
	if !m.isGiven("cjswgd") {
		m.CJSWGD = m.CJSWGS
	}
	if !m.isGiven("mjswgd") {
		m.MJSWGD = m.MJSWGS
	}
	if !m.isGiven("pbswgd") {
		m.PBSWGD = m.PBSWGS
	}
}

func (m *Model) coxe() float64 {
	return m.EPSROX * consts.EPS0 / m.TOXE
}

func (m *Model) coxp() float64 {
	return m.EPSROX * consts.EPS0 / m.TOXP
}
