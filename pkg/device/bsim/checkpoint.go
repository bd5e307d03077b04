package bsim

import (
	"fmt"

	"github.com/edp1096/toy-bsim/pkg/util"
)

// checkpoint is a value copy of everything an iteration mutates.
type checkpoint struct {
	op       opState
	qs       [nTerm]util.ChargeState
	qdef     util.ChargeState
	qcheq    util.ChargeState
	acc      [2]controls
	lastStep float64
}

// SaveCheckpoint snapshots the mutable state, replacing any earlier snapshot.
func (inst *Instance) SaveCheckpoint() {
	inst.ckpt = &checkpoint{
		op:       inst.op,
		qs:       inst.qs,
		qdef:     inst.qdef,
		qcheq:    inst.qcheq,
		acc:      inst.acc,
		lastStep: inst.lastStep,
	}
}

// RestoreCheckpoint rolls the instance back to the snapshot. The snapshot is kept so that a
// recovery strategy may restore more than once.
func (inst *Instance) RestoreCheckpoint() error {
	ck := inst.ckpt
	if ck == nil {
		return fmt.Errorf("bsim %s: %w", inst.Name, ErrNoCheckpoint)
	}
	inst.op = ck.op
	inst.qs = ck.qs
	inst.qdef = ck.qdef
	inst.qcheq = ck.qcheq
	inst.acc = ck.acc
	inst.lastStep = ck.lastStep
	return nil
}

func (inst *Instance) DiscardCheckpoint() { inst.ckpt = nil }

func (inst *Instance) HasCheckpoint() bool { return inst.ckpt != nil }
