package bsim

import (
	"fmt"
	"strings"
)

// ParamID is the stable integer key of a model or instance parameter.
type ParamID int

type paramDef struct {
	name string
	f    func(m *Model) *float64
	i    func(m *Model) *int
}

var (
	modelParams     = buildModelParams()
	modelParamIndex = indexParams(modelParams)
)

func indexParams(defs []paramDef) map[string]ParamID {
	idx := make(map[string]ParamID, len(defs))
	for i, d := range defs {
		idx[d.name] = ParamID(i)
	}
	return idx
}

func buildModelParams() []paramDef {
	var defs []paramDef

	flt := func(name string, f func(m *Model) *float64) {
		defs = append(defs, paramDef{name: name, f: f})
	}
	sel := func(name string, i func(m *Model) *int) {
		defs = append(defs, paramDef{name: name, i: i})
	}
	bin := func(name string, b func(m *Model) *Binned) {
		flt(name, func(m *Model) *float64 { return &b(m).V })
		flt("l"+name, func(m *Model) *float64 { return &b(m).L })
		flt("w"+name, func(m *Model) *float64 { return &b(m).W })
		flt("p"+name, func(m *Model) *float64 { return &b(m).P })
	}

	sel("mobmod", func(m *Model) *int { return &m.MOBMOD })
	sel("capmod", func(m *Model) *int { return &m.CAPMOD })
	flt("xpart", func(m *Model) *float64 { return &m.XPART })
	sel("rdsmod", func(m *Model) *int { return &m.RDSMOD })
	sel("rgatemod", func(m *Model) *int { return &m.RGATEMOD })
	sel("rbodymod", func(m *Model) *int { return &m.RBODYMOD })
	sel("igcmod", func(m *Model) *int { return &m.IGCMOD })
	sel("igbmod", func(m *Model) *int { return &m.IGBMOD })
	sel("trnqsmod", func(m *Model) *int { return &m.TRNQSMOD })
	sel("fnoimod", func(m *Model) *int { return &m.FNOIMOD })
	sel("tnoimod", func(m *Model) *int { return &m.TNOIMOD })
	sel("diomod", func(m *Model) *int { return &m.DIOMOD })

	flt("toxe", func(m *Model) *float64 { return &m.TOXE })
	flt("toxp", func(m *Model) *float64 { return &m.TOXP })
	flt("toxm", func(m *Model) *float64 { return &m.TOXM })
	flt("toxref", func(m *Model) *float64 { return &m.TOXREF })
	flt("dtox", func(m *Model) *float64 { return &m.DTOX })
	flt("epsrox", func(m *Model) *float64 { return &m.EPSROX })
	flt("tnom", func(m *Model) *float64 { return &m.TNOM })

	flt("lint", func(m *Model) *float64 { return &m.LINT })
	flt("ll", func(m *Model) *float64 { return &m.LL })
	flt("lln", func(m *Model) *float64 { return &m.LLN })
	flt("lw", func(m *Model) *float64 { return &m.LW })
	flt("lwn", func(m *Model) *float64 { return &m.LWN })
	flt("lwl", func(m *Model) *float64 { return &m.LWL })
	flt("wint", func(m *Model) *float64 { return &m.WINT })
	flt("wl", func(m *Model) *float64 { return &m.WL })
	flt("wln", func(m *Model) *float64 { return &m.WLN })
	flt("ww", func(m *Model) *float64 { return &m.WW })
	flt("wwn", func(m *Model) *float64 { return &m.WWN })
	flt("wwl", func(m *Model) *float64 { return &m.WWL })
	flt("dlc", func(m *Model) *float64 { return &m.DLC })
	flt("dwc", func(m *Model) *float64 { return &m.DWC })
	flt("dwj", func(m *Model) *float64 { return &m.DWJ })
	flt("dlcig", func(m *Model) *float64 { return &m.DLCIG })
	flt("xl", func(m *Model) *float64 { return &m.XL })
	flt("xw", func(m *Model) *float64 { return &m.XW })
	flt("lmlt", func(m *Model) *float64 { return &m.LMLT })
	flt("wmlt", func(m *Model) *float64 { return &m.WMLT })
	flt("voffl", func(m *Model) *float64 { return &m.VOFFL })

	flt("rdw", func(m *Model) *float64 { return &m.RDW })
	flt("rsw", func(m *Model) *float64 { return &m.RSW })
	flt("rdwmin", func(m *Model) *float64 { return &m.RDWMIN })
	flt("rswmin", func(m *Model) *float64 { return &m.RSWMIN })
	flt("rsh", func(m *Model) *float64 { return &m.RSH })
	flt("rshg", func(m *Model) *float64 { return &m.RSHG })
	flt("xgw", func(m *Model) *float64 { return &m.XGW })
	flt("xgl", func(m *Model) *float64 { return &m.XGL })
	flt("ngcon", func(m *Model) *float64 { return &m.NGCON })
	flt("rbpb", func(m *Model) *float64 { return &m.RBPB })
	flt("rbpd", func(m *Model) *float64 { return &m.RBPD })
	flt("rbps", func(m *Model) *float64 { return &m.RBPS })
	flt("rbdb", func(m *Model) *float64 { return &m.RBDB })
	flt("rbsb", func(m *Model) *float64 { return &m.RBSB })
	flt("gbmin", func(m *Model) *float64 { return &m.GBMIN })

	flt("jss", func(m *Model) *float64 { return &m.JSS })
	flt("jsws", func(m *Model) *float64 { return &m.JSWS })
	flt("jswgs", func(m *Model) *float64 { return &m.JSWGS })
	flt("njs", func(m *Model) *float64 { return &m.NJS })
	flt("xtis", func(m *Model) *float64 { return &m.XTIS })
	flt("ijthsfwd", func(m *Model) *float64 { return &m.IJTHSFWD })
	flt("bvs", func(m *Model) *float64 { return &m.BVS })
	flt("xjbvs", func(m *Model) *float64 { return &m.XJBVS })
	flt("jsd", func(m *Model) *float64 { return &m.JSD })
	flt("jswd", func(m *Model) *float64 { return &m.JSWD })
	flt("jswgd", func(m *Model) *float64 { return &m.JSWGD })
	flt("njd", func(m *Model) *float64 { return &m.NJD })
	flt("xtid", func(m *Model) *float64 { return &m.XTID })
	flt("ijthdfwd", func(m *Model) *float64 { return &m.IJTHDFWD })
	flt("bvd", func(m *Model) *float64 { return &m.BVD })
	flt("xjbvd", func(m *Model) *float64 { return &m.XJBVD })

	flt("cjs", func(m *Model) *float64 { return &m.CJS })
	flt("mjs", func(m *Model) *float64 { return &m.MJS })
	flt("pbs", func(m *Model) *float64 { return &m.PBS })
	flt("cjsws", func(m *Model) *float64 { return &m.CJSWS })
	flt("mjsws", func(m *Model) *float64 { return &m.MJSWS })
	flt("pbsws", func(m *Model) *float64 { return &m.PBSWS })
	flt("cjswgs", func(m *Model) *float64 { return &m.CJSWGS })
	flt("mjswgs", func(m *Model) *float64 { return &m.MJSWGS })
	flt("pbswgs", func(m *Model) *float64 { return &m.PBSWGS })
	flt("cjd", func(m *Model) *float64 { return &m.CJD })
	flt("mjd", func(m *Model) *float64 { return &m.MJD })
	flt("pbd", func(m *Model) *float64 { return &m.PBD })
	flt("cjswd", func(m *Model) *float64 { return &m.CJSWD })
	flt("mjswd", func(m *Model) *float64 { return &m.MJSWD })
	flt("pbswd", func(m *Model) *float64 { return &m.PBSWD })
	flt("cjswgd", func(m *Model) *float64 { return &m.CJSWGD })
	flt("mjswgd", func(m *Model) *float64 { return &m.MJSWGD })
	flt("pbswgd", func(m *Model) *float64 { return &m.PBSWGD })
	flt("tcj", func(m *Model) *float64 { return &m.TCJ })
	flt("tpb", func(m *Model) *float64 { return &m.TPB })
	flt("tcjsw", func(m *Model) *float64 { return &m.TCJSW })
	flt("tpbsw", func(m *Model) *float64 { return &m.TPBSW })
	flt("tcjswg", func(m *Model) *float64 { return &m.TCJSWG })
	flt("tpbswg", func(m *Model) *float64 { return &m.TPBSWG })

	flt("cgso", func(m *Model) *float64 { return &m.CGSO })
	flt("cgdo", func(m *Model) *float64 { return &m.CGDO })
	flt("cgbo", func(m *Model) *float64 { return &m.CGBO })
	flt("ntox", func(m *Model) *float64 { return &m.NTOX })

	flt("kf", func(m *Model) *float64 { return &m.KF })
	flt("af", func(m *Model) *float64 { return &m.AF })
	flt("ef", func(m *Model) *float64 { return &m.EF })
	flt("noia", func(m *Model) *float64 { return &m.NOIA })
	flt("noib", func(m *Model) *float64 { return &m.NOIB })
	flt("noic", func(m *Model) *float64 { return &m.NOIC })
	flt("em", func(m *Model) *float64 { return &m.EM })
	flt("lintnoi", func(m *Model) *float64 { return &m.LINTNOI })
	flt("ntnoi", func(m *Model) *float64 { return &m.NTNOI })
	flt("rnoia", func(m *Model) *float64 { return &m.RNOIA })
	flt("rnoib", func(m *Model) *float64 { return &m.RNOIB })
	flt("tnoia", func(m *Model) *float64 { return &m.TNOIA })
	flt("tnoib", func(m *Model) *float64 { return &m.TNOIB })

	bin("vth0", func(m *Model) *Binned { return &m.VTH0 })
	bin("k1", func(m *Model) *Binned { return &m.K1 })
	bin("k2", func(m *Model) *Binned { return &m.K2 })
	bin("k3", func(m *Model) *Binned { return &m.K3 })
	bin("k3b", func(m *Model) *Binned { return &m.K3B })
	bin("w0", func(m *Model) *Binned { return &m.W0 })
	bin("lpe0", func(m *Model) *Binned { return &m.LPE0 })
	bin("lpeb", func(m *Model) *Binned { return &m.LPEB })
	bin("dvt0", func(m *Model) *Binned { return &m.DVT0 })
	bin("dvt1", func(m *Model) *Binned { return &m.DVT1 })
	bin("dvt2", func(m *Model) *Binned { return &m.DVT2 })
	bin("dvt0w", func(m *Model) *Binned { return &m.DVT0W })
	bin("dvt1w", func(m *Model) *Binned { return &m.DVT1W })
	bin("dvt2w", func(m *Model) *Binned { return &m.DVT2W })
	bin("dsub", func(m *Model) *Binned { return &m.DSUB })
	bin("eta0", func(m *Model) *Binned { return &m.ETA0 })
	bin("etab", func(m *Model) *Binned { return &m.ETAB })
	bin("nfactor", func(m *Model) *Binned { return &m.NFACTOR })
	bin("cdsc", func(m *Model) *Binned { return &m.CDSC })
	bin("cdscb", func(m *Model) *Binned { return &m.CDSCB })
	bin("cdscd", func(m *Model) *Binned { return &m.CDSCD })
	bin("cit", func(m *Model) *Binned { return &m.CIT })
	bin("voff", func(m *Model) *Binned { return &m.VOFF })
	bin("minv", func(m *Model) *Binned { return &m.MINV })
	bin("ndep", func(m *Model) *Binned { return &m.NDEP })
	bin("nsub", func(m *Model) *Binned { return &m.NSUB })
	bin("ngate", func(m *Model) *Binned { return &m.NGATE })
	bin("nsd", func(m *Model) *Binned { return &m.NSD })
	bin("xj", func(m *Model) *Binned { return &m.XJ })
	bin("vbm", func(m *Model) *Binned { return &m.VBM })
	bin("xt", func(m *Model) *Binned { return &m.XT })
	bin("phin", func(m *Model) *Binned { return &m.PHIN })
	bin("u0", func(m *Model) *Binned { return &m.U0 })
	bin("ua", func(m *Model) *Binned { return &m.UA })
	bin("ub", func(m *Model) *Binned { return &m.UB })
	bin("uc", func(m *Model) *Binned { return &m.UC })
	bin("eu", func(m *Model) *Binned { return &m.EU })
	bin("ute", func(m *Model) *Binned { return &m.UTE })
	bin("ua1", func(m *Model) *Binned { return &m.UA1 })
	bin("ub1", func(m *Model) *Binned { return &m.UB1 })
	bin("uc1", func(m *Model) *Binned { return &m.UC1 })
	bin("vsat", func(m *Model) *Binned { return &m.VSAT })
	bin("at", func(m *Model) *Binned { return &m.AT })
	bin("a0", func(m *Model) *Binned { return &m.A0 })
	bin("ags", func(m *Model) *Binned { return &m.AGS })
	bin("a1", func(m *Model) *Binned { return &m.A1 })
	bin("a2", func(m *Model) *Binned { return &m.A2 })
	bin("b0", func(m *Model) *Binned { return &m.B0 })
	bin("b1", func(m *Model) *Binned { return &m.B1 })
	bin("keta", func(m *Model) *Binned { return &m.KETA })
	bin("rdsw", func(m *Model) *Binned { return &m.RDSW })
	bin("prwg", func(m *Model) *Binned { return &m.PRWG })
	bin("prwb", func(m *Model) *Binned { return &m.PRWB })
	bin("wr", func(m *Model) *Binned { return &m.WR })
	bin("prt", func(m *Model) *Binned { return &m.PRT })
	bin("dwg", func(m *Model) *Binned { return &m.DWG })
	bin("dwb", func(m *Model) *Binned { return &m.DWB })
	bin("pclm", func(m *Model) *Binned { return &m.PCLM })
	bin("pdiblc1", func(m *Model) *Binned { return &m.PDIBLC1 })
	bin("pdiblc2", func(m *Model) *Binned { return &m.PDIBLC2 })
	bin("pdiblcb", func(m *Model) *Binned { return &m.PDIBLCB })
	bin("drout", func(m *Model) *Binned { return &m.DROUT })
	bin("pvag", func(m *Model) *Binned { return &m.PVAG })
	bin("delta", func(m *Model) *Binned { return &m.DELTA })
	bin("fprout", func(m *Model) *Binned { return &m.FPROUT })
	bin("pdits", func(m *Model) *Binned { return &m.PDITS })
	bin("pditsd", func(m *Model) *Binned { return &m.PDITSD })
	bin("pditsl", func(m *Model) *Binned { return &m.PDITSL })
	bin("pscbe1", func(m *Model) *Binned { return &m.PSCBE1 })
	bin("pscbe2", func(m *Model) *Binned { return &m.PSCBE2 })
	bin("alpha0", func(m *Model) *Binned { return &m.ALPHA0 })
	bin("alpha1", func(m *Model) *Binned { return &m.ALPHA1 })
	bin("beta0", func(m *Model) *Binned { return &m.BETA0 })
	bin("agidl", func(m *Model) *Binned { return &m.AGIDL })
	bin("bgidl", func(m *Model) *Binned { return &m.BGIDL })
	bin("cgidl", func(m *Model) *Binned { return &m.CGIDL })
	bin("egidl", func(m *Model) *Binned { return &m.EGIDL })
	bin("agisl", func(m *Model) *Binned { return &m.AGISL })
	bin("bgisl", func(m *Model) *Binned { return &m.BGISL })
	bin("cgisl", func(m *Model) *Binned { return &m.CGISL })
	bin("egisl", func(m *Model) *Binned { return &m.EGISL })
	bin("aigc", func(m *Model) *Binned { return &m.AIGC })
	bin("bigc", func(m *Model) *Binned { return &m.BIGC })
	bin("cigc", func(m *Model) *Binned { return &m.CIGC })
	bin("aigsd", func(m *Model) *Binned { return &m.AIGSD })
	bin("bigsd", func(m *Model) *Binned { return &m.BIGSD })
	bin("cigsd", func(m *Model) *Binned { return &m.CIGSD })
	bin("aigbacc", func(m *Model) *Binned { return &m.AIGBACC })
	bin("bigbacc", func(m *Model) *Binned { return &m.BIGBACC })
	bin("cigbacc", func(m *Model) *Binned { return &m.CIGBACC })
	bin("aigbinv", func(m *Model) *Binned { return &m.AIGBINV })
	bin("bigbinv", func(m *Model) *Binned { return &m.BIGBINV })
	bin("cigbinv", func(m *Model) *Binned { return &m.CIGBINV })
	bin("nigc", func(m *Model) *Binned { return &m.NIGC })
	bin("nigbacc", func(m *Model) *Binned { return &m.NIGBACC })
	bin("nigbinv", func(m *Model) *Binned { return &m.NIGBINV })
	bin("eigbinv", func(m *Model) *Binned { return &m.EIGBINV })
	bin("pigcd", func(m *Model) *Binned { return &m.PIGCD })
	bin("poxedge", func(m *Model) *Binned { return &m.POXEDGE })
	bin("vfbsd", func(m *Model) *Binned { return &m.VFBSD })
	bin("kt1", func(m *Model) *Binned { return &m.KT1 })
	bin("kt1l", func(m *Model) *Binned { return &m.KT1L })
	bin("kt2", func(m *Model) *Binned { return &m.KT2 })
	bin("xrcrg1", func(m *Model) *Binned { return &m.XRCRG1 })
	bin("xrcrg2", func(m *Model) *Binned { return &m.XRCRG2 })
	bin("cgsl", func(m *Model) *Binned { return &m.CGSL })
	bin("cgdl", func(m *Model) *Binned { return &m.CGDL })
	bin("ckappas", func(m *Model) *Binned { return &m.CKAPPAS })
	bin("ckappad", func(m *Model) *Binned { return &m.CKAPPAD })
	bin("cf", func(m *Model) *Binned { return &m.CF })
	bin("clc", func(m *Model) *Binned { return &m.CLC })
	bin("cle", func(m *Model) *Binned { return &m.CLE })
	bin("vfbcv", func(m *Model) *Binned { return &m.VFBCV })
	bin("voffcv", func(m *Model) *Binned { return &m.VOFFCV })
	bin("noff", func(m *Model) *Binned { return &m.NOFF })
	bin("acde", func(m *Model) *Binned { return &m.ACDE })
	bin("moin", func(m *Model) *Binned { return &m.MOIN })
	bin("vfb", func(m *Model) *Binned { return &m.VFB })

	return defs
}

// ModelParamID resolves a netlist parameter name to its id.
func ModelParamID(name string) (ParamID, error) {
	id, ok := modelParamIndex[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrBadParameter, name)
	}
	return id, nil
}

// ModelParamName is the netlist name of id, or "" for an unknown id.
func ModelParamName(id ParamID) string {
	if id < 0 || int(id) >= len(modelParams) {
		return ""
	}
	return modelParams[id].name
}

func (m *Model) Param(id ParamID) (float64, error) {
	if id < 0 || int(id) >= len(modelParams) {
		return 0, fmt.Errorf("%w: model id %d", ErrBadParameter, id)
	}
	d := modelParams[id]
	if d.i != nil {
		return float64(*d.i(m)), nil
	}
	return *d.f(m), nil
}

// SetParam sets one parameter and marks it given. It must be called before the instances
// using the model are set up.
func (m *Model) SetParam(id ParamID, value float64) error {
	if id < 0 || int(id) >= len(modelParams) {
		return fmt.Errorf("%w: model id %d", ErrBadParameter, id)
	}
	d := modelParams[id]
	if d.i != nil {
		*d.i(m) = int(value)
	} else {
		*d.f(m) = value
	}
	m.given[id] = true

	m.mu.Lock()
	clear(m.sizeDep)
	m.resolved = false
	m.mu.Unlock()

	return nil
}

func (m *Model) SetModelParameters(params map[string]float64) error {
	for name, value := range params {
		id, err := ModelParamID(name)
		if err != nil {
			return fmt.Errorf("model %s: %w", m.Name, err)
		}
		if err := m.SetParam(id, value); err != nil {
			return err
		}
	}
	return nil
}

func (m *Model) isGiven(name string) bool {
	id, ok := modelParamIndex[name]
	return ok && m.given[id]
}

// Instance parameters

type instDef struct {
	name string
	f    func(inst *Instance) *float64
}

const (
	InstL ParamID = iota
	InstW
	InstNF
	InstAD
	InstAS
	InstPD
	InstPS
	InstNRD
	InstNRS
	InstRBDB
	InstRBSB
	InstRBPB
	InstRBPS
	InstRBPD
	InstICVDS
	InstICVGS
	InstICVBS
	InstOff
	InstTemp
	numInstParams
)

var instParams = [numInstParams]instDef{
	InstL:     {"l", func(i *Instance) *float64 { return &i.L }},
	InstW:     {"w", func(i *Instance) *float64 { return &i.W }},
	InstNF:    {"nf", func(i *Instance) *float64 { return &i.NF }},
	InstAD:    {"ad", func(i *Instance) *float64 { return &i.AD }},
	InstAS:    {"as", func(i *Instance) *float64 { return &i.AS }},
	InstPD:    {"pd", func(i *Instance) *float64 { return &i.PD }},
	InstPS:    {"ps", func(i *Instance) *float64 { return &i.PS }},
	InstNRD:   {"nrd", func(i *Instance) *float64 { return &i.NRD }},
	InstNRS:   {"nrs", func(i *Instance) *float64 { return &i.NRS }},
	InstRBDB:  {"rbdb", func(i *Instance) *float64 { return &i.RBDB }},
	InstRBSB:  {"rbsb", func(i *Instance) *float64 { return &i.RBSB }},
	InstRBPB:  {"rbpb", func(i *Instance) *float64 { return &i.RBPB }},
	InstRBPS:  {"rbps", func(i *Instance) *float64 { return &i.RBPS }},
	InstRBPD:  {"rbpd", func(i *Instance) *float64 { return &i.RBPD }},
	InstICVDS: {"icvds", func(i *Instance) *float64 { return &i.IcVDS }},
	InstICVGS: {"icvgs", func(i *Instance) *float64 { return &i.IcVGS }},
	InstICVBS: {"icvbs", func(i *Instance) *float64 { return &i.IcVBS }},
	InstOff:   {"off", func(i *Instance) *float64 { return &i.off }},
	InstTemp:  {"temp", func(i *Instance) *float64 { return &i.Temp }},
}

func InstanceParamID(name string) (ParamID, error) {
	name = strings.ToLower(name)
	for id, d := range instParams {
		if d.name == name {
			return ParamID(id), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrBadParameter, name)
}

func (inst *Instance) Param(id ParamID) (float64, error) {
	if id < 0 || id >= numInstParams {
		return 0, fmt.Errorf("%w: instance id %d", ErrBadParameter, id)
	}
	return *instParams[id].f(inst), nil
}

func (inst *Instance) SetParam(id ParamID, value float64) error {
	if id < 0 || id >= numInstParams {
		return fmt.Errorf("%w: instance id %d", ErrBadParameter, id)
	}
	*instParams[id].f(inst) = value
	inst.given[id] = true
	return nil
}

func (inst *Instance) SetParams(params map[string]float64) error {
	for name, value := range params {
		id, err := InstanceParamID(name)
		if err != nil {
			return fmt.Errorf("instance %s: %w", inst.Name, err)
		}
		if err := inst.SetParam(id, value); err != nil {
			return err
		}
	}
	return nil
}

func (inst *Instance) isGiven(id ParamID) bool {
	return inst.given[id]
}
