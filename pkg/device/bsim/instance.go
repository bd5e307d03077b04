package bsim

import (
	"fmt"
	"math"

	"github.com/edp1096/toy-bsim/internal/consts"
	"github.com/edp1096/toy-bsim/pkg/device"
	"github.com/edp1096/toy-bsim/pkg/matrix"
	"github.com/edp1096/toy-bsim/pkg/util"
)

// Local terminals. The first four are the external pins.
const (
	tD  = iota // Drain
	tG         // Gate
	tS         // Source
	tB         // Bulk
	tDp        // Drain behind rd
	tGp        // Gate behind the gate resistance
	tGm        // Gate midpoint, rgateMod 3
	tSp        // Source behind rs
	tBp        // Body behind the substrate network
	tDb        // Drain side body, rbodyMod 1
	tSb        // Source side body, rbodyMod 1
	nTerm
)

var termNames = [nTerm]string{"d", "g", "s", "b", "dprime", "gprime", "gmid", "sprime", "bprime", "dbody", "sbody"}

// controls are the n-frame branch voltages the limiters work on, in external orientation.
type controls struct {
	vgs, vds, vbs float64
	vdbd, vsbs    float64 // Drain and source junctions behind the substrate network
}

func (c controls) vbd() float64 { return c.vbs - c.vds }
func (c controls) vgd() float64 { return c.vgs - c.vds }

// junction holds the temperature-adjusted diode of one side.
type junction struct {
	isat     float64 // Saturation current (A)
	nvtm     float64 // Emission coefficient times thermal voltage
	vcrit    float64
	ijthFwd  float64
	vjsmFwd  float64 // Forward voltage above which the diode is linearized
	ivjsmFwd float64
	bv       float64 // Breakdown voltage (V)
	xjbv     float64

	czb, czbsw, czbswg float64 // Zero bias capacitances (F)
	mj, mjsw, mjswg    float64
	pb, pbsw, pbswg    float64
}

// Instance is one placed transistor.
type Instance struct {
	device.BaseDevice
	model *Model
	p     *SizeDependentParameters

	L   float64 // Drawn channel length (m)
	W   float64 // Drawn channel width (m)
	NF  float64 // Number of fingers
	AD  float64 // Drain area (m²)
	AS  float64 // Source area (m²)
	PD  float64 // Drain perimeter (m)
	PS  float64 // Source perimeter (m)
	NRD float64 // Drain squares
	NRS float64 // Source squares

	RBDB, RBSB, RBPB, RBPS, RBPD float64 // Substrate resistances, default from the model (Ohm)

	IcVDS, IcVGS, IcVBS float64 // Initial conditions (V)

	off  float64
	Temp float64 // Instance temperature override (degC)

	given [numInstParams]bool

	node [nTerm]int // Global node of each local terminal
	rep  [nTerm]int // Terminal whose voltage a collapsed terminal shares

	cells map[matrix.DeviceMatrix][]stampEntry

	temp       float64 // K
	gdrain     float64 // Drain resistance conductance (S)
	gsource    float64
	grbpd      float64
	grbps      float64
	grbpb      float64
	grbdb      float64
	grbsb      float64
	jctS, jctD junction
	vcrit      float64

	op       opState
	qs       [nTerm]util.ChargeState // Terminal charges, indexed by representative terminal
	qdef     util.ChargeState        // Channel charge deficit, trnqsMod 1
	qcheq    util.ChargeState        // Quasi-static channel charge feeding qdef
	acc      [2]controls             // Last two accepted control sets for prediction
	lastStep float64                 // Step that produced acc[0]

	ckpt *checkpoint
}

func NewInstance(name string, nodeNames []string, model *Model) *Instance {
	if len(nodeNames) != 4 {
		panic(fmt.Sprintf("bsim %s: requires exactly 4 nodes (drain, gate, source, bulk)", name))
	}
	if model == nil {
		panic(fmt.Sprintf("bsim %s: nil model", name))
	}

	inst := &Instance{
		BaseDevice: *device.NewBaseDevice(name, 0, nodeNames),
		model:      model,
		L:          5e-6,
		W:          5e-6,
		NF:         1,
		cells:      make(map[matrix.DeviceMatrix][]stampEntry),
	}
	for t := range inst.rep {
		inst.rep[t] = t
	}

	return inst
}

func (inst *Instance) GetType() string { return "M" }

func (inst *Instance) Model() *Model { return inst.model }

// SizeDependent is the shared record the instance evaluates with, nil before Temperature.
func (inst *Instance) SizeDependent() *SizeDependentParameters { return inst.p }

func (inst *Instance) Off() bool { return inst.off != 0 }

func (inst *Instance) hasDrainResistance() bool {
	m := inst.model
	return m.RSH*inst.NRD > 0 || (m.RDSMOD == 1 && m.RDW > 0)
}

func (inst *Instance) hasSourceResistance() bool {
	m := inst.model
	return m.RSH*inst.NRS > 0 || (m.RDSMOD == 1 && m.RSW > 0)
}

// Setup maps the local terminals onto global nodes, allocating the internal nodes the
// parasitics need and collapsing the others onto their external pins.
func (inst *Instance) Setup(alloc device.NodeAllocator) error {
	if len(inst.Nodes) != 4 {
		return fmt.Errorf("bsim %s: requires exactly 4 nodes", inst.Name)
	}
	m := inst.model
	m.normalizeSelectors()

	for t := range inst.rep {
		inst.rep[t] = t
	}
	for t := tD; t <= tB; t++ {
		inst.node[t] = inst.Nodes[t]
	}

	newNode := func(t int) {
		inst.node[t] = alloc.NewNode(inst.Name + "#" + termNames[t])
	}
	collapse := func(ext, internal int) {
		inst.node[internal] = inst.node[ext]
		inst.rep[ext] = internal
	}

	if inst.hasDrainResistance() {
		newNode(tDp)
	} else {
		collapse(tD, tDp)
	}
	if inst.hasSourceResistance() {
		newNode(tSp)
	} else {
		collapse(tS, tSp)
	}

	if m.RGATEMOD > 0 {
		newNode(tGp)
	} else {
		collapse(tG, tGp)
	}
	if m.RGATEMOD == 3 {
		newNode(tGm)
	} else {
		inst.node[tGm] = inst.node[tGp]
		inst.rep[tGm] = tGp
	}

	if m.RBODYMOD == 1 {
		newNode(tBp)
		newNode(tDb)
		newNode(tSb)
	} else {
		collapse(tB, tBp)
		inst.node[tDb] = inst.node[tBp]
		inst.node[tSb] = inst.node[tBp]
		inst.rep[tDb] = tBp
		inst.rep[tSb] = tBp
	}

	return nil
}

// Temperature resolves the shared size-dependent record at temp (K) and derives the
// per-instance junction and resistance values.
func (inst *Instance) Temperature(temp float64) error {
	if inst.isGiven(InstTemp) {
		temp = inst.Temp + consts.KELVIN
	}
	inst.temp = temp

	p := inst.model.sizeDependent(sizeKey{L: inst.L, W: inst.W, NF: inst.NF, Temp: temp}, inst)
	inst.p = p
	if p.fatal {
		return fmt.Errorf("bsim %s: model %s: %w", inst.Name, inst.model.Name, ErrFatalParameter)
	}

	inst.deriveResistances()
	inst.deriveJunctions()

	if inst.op.von == 0 {
		inst.op.von = float64(inst.model.Type) * p.vth0
	}

	return nil
}

func (inst *Instance) deriveResistances() {
	m := inst.model
	p := inst.p

	series := func(rsh, nrs, rw float64) float64 {
		r := rsh * nrs
		if m.RDSMOD == 1 {
			r += rw / math.Pow(p.WeffCJ*1e6, p.wr) / inst.NF
		}
		if r <= 0 {
			return 0
		}
		return 1.0 / r
	}
	inst.gdrain = series(m.RSH, inst.NRD, m.RDW)
	inst.gsource = series(m.RSH, inst.NRS, m.RSW)

	bodyG := func(id ParamID, instR, modelR float64) float64 {
		r := modelR
		if inst.isGiven(id) {
			r = instR
		}
		if r < 1e-3 {
			return 1e3
		}
		return 1.0/r + m.GBMIN
	}
	inst.grbpd = bodyG(InstRBPD, inst.RBPD, m.RBPD)
	inst.grbps = bodyG(InstRBPS, inst.RBPS, m.RBPS)
	inst.grbpb = bodyG(InstRBPB, inst.RBPB, m.RBPB)
	inst.grbdb = bodyG(InstRBDB, inst.RBDB, m.RBDB)
	inst.grbsb = bodyG(InstRBSB, inst.RBSB, m.RBSB)
}

func (inst *Instance) deriveJunctions() {
	m := inst.model
	p := inst.p

	gateEdge := p.WeffCJ * inst.NF
	perimeter := func(perim float64) float64 {
		return math.Max(perim-gateEdge, 0)
	}

	side := func(area, perim, js, jsw, jswg, n, ijth, bv, xjbv float64) junction {
		j := junction{
			isat:    area*js + perimeter(perim)*jsw + gateEdge*jswg,
			nvtm:    p.vtm * n,
			ijthFwd: ijth,
			bv:      bv,
			xjbv:    xjbv,
		}
		if j.isat > 0 {
			j.vcrit = criticalVoltage(j.nvtm, j.isat)
			if ijth > 0 {
				j.vjsmFwd = j.nvtm * math.Log(ijth/j.isat+1)
				j.ivjsmFwd = j.isat * math.Exp(j.vjsmFwd/j.nvtm)
			}
		}
		return j
	}

	inst.jctS = side(inst.AS, inst.PS, p.jss, p.jsws, p.jswgs, m.NJS, m.IJTHSFWD, m.BVS, m.XJBVS)
	inst.jctS.czb, inst.jctS.czbsw, inst.jctS.czbswg = p.cjs*inst.AS, p.cjsws*perimeter(inst.PS), p.cjswgs*gateEdge
	inst.jctS.mj, inst.jctS.mjsw, inst.jctS.mjswg = m.MJS, m.MJSWS, m.MJSWGS
	inst.jctS.pb, inst.jctS.pbsw, inst.jctS.pbswg = p.pbs, p.pbsws, p.pbswgs

	inst.jctD = side(inst.AD, inst.PD, p.jsd, p.jswd, p.jswgd, m.NJD, m.IJTHDFWD, m.BVD, m.XJBVD)
	inst.jctD.czb, inst.jctD.czbsw, inst.jctD.czbswg = p.cjd*inst.AD, p.cjswd*perimeter(inst.PD), p.cjswgd*gateEdge
	inst.jctD.mj, inst.jctD.mjsw, inst.jctD.mjswg = m.MJD, m.MJSWD, m.MJSWGD
	inst.jctD.pb, inst.jctD.pbsw, inst.jctD.pbswg = p.pbd, p.pbswd, p.pbswgd

	inst.vcrit = criticalVoltage(p.vtm0, 1e-14)
}

// InternalNodes lists the distinct internal nodes allocated at setup.
func (inst *Instance) InternalNodes() []int {
	var nodes []int
	seen := map[int]bool{}
	for _, n := range inst.Nodes {
		seen[n] = true
	}
	for t := tDp; t < nTerm; t++ {
		if n := inst.node[t]; !seen[n] {
			seen[n] = true
			nodes = append(nodes, n)
		}
	}
	return nodes
}
