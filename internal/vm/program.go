package vm

import (
	"fmt"

	"github.com/metanucleus/metanucleus/internal/node"
)

// Program is the compiled form of a Φ-plan (§3.5, §4.9): a flat
// instruction stream plus the constant pool PUSH_* instructions index into.
type Program struct {
	Instructions []Instruction
	Constants    []*node.Node
}

// Verify checks Program against §4.9's verifier rules: unknown opcodes,
// out-of-range operands (register > 7, const index >= len(Constants)), and
// unreachable instructions after HALT.
func (p *Program) Verify() error {
	halted := false
	for i, ins := range p.Instructions {
		if halted {
			return fmt.Errorf("vm: unreachable instruction at %d after HALT", i)
		}
		if !ins.Op.Valid() {
			return fmt.Errorf("vm: unknown opcode %d at %d", ins.Op, i)
		}
		switch ins.Op {
		case OpPushConst, OpPushText, OpPushKey, OpPushNumber, OpPushBool:
			if int(ins.Operand) >= len(p.Constants) {
				return fmt.Errorf("vm: const index %d out of range at %d", ins.Operand, i)
			}
		case OpLoadReg, OpStoreReg:
			if ins.Operand > 7 {
				return fmt.Errorf("vm: register %d out of range at %d", ins.Operand, i)
			}
		case OpJmp, OpCall:
			if int(ins.Operand) >= len(p.Instructions) {
				return fmt.Errorf("vm: jump target %d out of range at %d", ins.Operand, i)
			}
		case OpHalt:
			halted = true
		}
	}
	return nil
}

// FindConstIndexBeforeStoreAnswer returns the constant-pool index pushed by
// the PUSH_CONST immediately preceding a STORE_ANSWER instruction, if any.
// The Meta-Summary assembler uses this to substitute the cross-check
// constant with the scheduler's real final answer (see internal/summary).
func (p *Program) FindConstIndexBeforeStoreAnswer() (int, bool) {
	for i := 1; i < len(p.Instructions); i++ {
		if p.Instructions[i].Op == OpStoreAnswer && p.Instructions[i-1].Op == OpPushConst {
			return int(p.Instructions[i-1].Operand), true
		}
	}
	return 0, false
}

// Len returns the instruction count (used for phi_plan_program_len).
func (p *Program) Len() int { return len(p.Instructions) }

// ConstLen returns the constant-pool size (used for phi_plan_const_len).
func (p *Program) ConstLen() int { return len(p.Constants) }

// Clone returns a shallow copy of p with an independent Constants slice, so
// callers can substitute one constant without mutating the shared plan.
func (p *Program) Clone() *Program {
	out := &Program{
		Instructions: append([]Instruction(nil), p.Instructions...),
		Constants:    append([]*node.Node(nil), p.Constants...),
	}
	return out
}
