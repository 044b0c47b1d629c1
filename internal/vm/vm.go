package vm

import (
	"fmt"

	"github.com/metanucleus/metanucleus/internal/atomtable"
	"github.com/metanucleus/metanucleus/internal/errs"
	"github.com/metanucleus/metanucleus/internal/isr"
	"github.com/metanucleus/metanucleus/internal/node"
	"github.com/metanucleus/metanucleus/internal/phi"
)

// VM executes a Program against a bound ISR (§4.9). It exists to
// cross-check the Scheduler's symbolic execution: running the same plan as
// bytecode must reach the same final answer.
type VM struct {
	Table *atomtable.Table
	Arena *node.Arena
	Deps  phi.Deps

	ISR *isr.ISR

	stack []*node.Node
	regs  [8]*node.Node
	pc    int
}

// nodeOrKey holds either a field key (TEXT) or a value popped while
// building a STRUCT between BEGIN_STRUCT and BUILD_STRUCT.
type nodeOrKey struct {
	key   string
	value *node.Node
	isKey bool
}

// New creates a VM bound to state, ready to Run a Program.
func New(table *atomtable.Table, arena *node.Arena, deps phi.Deps, state *isr.ISR) *VM {
	return &VM{Table: table, Arena: arena, Deps: deps, ISR: state}
}

// Run executes prog to completion (a HALT instruction) or until a runtime
// error occurs. It returns the final ISR.Answer node.
func (m *VM) Run(prog *Program) (*node.Node, error) {
	if err := prog.Verify(); err != nil {
		return nil, fmt.Errorf("vm: %w: %v", errs.ErrInvalidBytecode, err)
	}
	m.pc = 0
	var structStack [][]nodeOrKey

	for m.pc < len(prog.Instructions) {
		ins := prog.Instructions[m.pc]
		switch ins.Op {
		case OpNoop:
			// no-op
		case OpPushText, OpPushConst, OpPushKey, OpPushNumber, OpPushBool:
			idx := int(ins.Operand)
			if idx >= len(prog.Constants) {
				return nil, fmt.Errorf("vm: %w: const index %d", errs.ErrStackUnderflow, idx)
			}
			m.push(prog.Constants[idx])
		case OpBeginStruct:
			structStack = append(structStack, nil)
		case OpBuildStruct:
			if len(structStack) == 0 {
				return nil, fmt.Errorf("vm: BUILD_STRUCT without BEGIN_STRUCT")
			}
			count := int(ins.Operand)
			fields := make(map[string]*node.Node, count)
			for i := 0; i < count; i++ {
				val, err := m.pop()
				if err != nil {
					return nil, err
				}
				key, err := m.pop()
				if err != nil {
					return nil, err
				}
				if key.Kind != node.KindText {
					return nil, fmt.Errorf("vm: %w: STRUCT key must be TEXT", errs.ErrTypeMismatch)
				}
				fields[key.Text] = val
			}
			structStack = structStack[:len(structStack)-1]
			s, err := node.NewStruct(fields)
			if err != nil {
				return nil, err
			}
			m.push(m.Arena.Canonical(s))
		case OpNewList:
			count := int(ins.Operand)
			items := make([]*node.Node, count)
			for i := count - 1; i >= 0; i-- {
				v, err := m.pop()
				if err != nil {
					return nil, err
				}
				items[i] = v
			}
			m.push(m.Arena.Canonical(node.NewList(items...)))
		case OpNewRel, OpNewOp:
			count := int(ins.Operand)
			args := make([]*node.Node, count)
			for i := count - 1; i >= 0; i-- {
				v, err := m.pop()
				if err != nil {
					return nil, err
				}
				args[i] = v
			}
			labelNode, err := m.pop()
			if err != nil {
				return nil, err
			}
			if labelNode.Kind != node.KindText {
				return nil, fmt.Errorf("vm: %w: REL/OP label must be TEXT", errs.ErrTypeMismatch)
			}
			var n *node.Node
			if ins.Op == OpNewRel {
				n, err = node.NewRel(m.Table, labelNode.Text, args...)
			} else {
				n, err = node.NewOp(m.Table, labelNode.Text, args...)
			}
			if err != nil {
				return nil, err
			}
			m.push(m.Arena.Canonical(n))
		case OpLoadReg:
			if ins.Operand > 7 {
				return nil, fmt.Errorf("vm: register %d out of range", ins.Operand)
			}
			m.push(m.regs[ins.Operand])
		case OpStoreReg:
			if ins.Operand > 7 {
				return nil, fmt.Errorf("vm: register %d out of range", ins.Operand)
			}
			v, err := m.pop()
			if err != nil {
				return nil, err
			}
			m.regs[ins.Operand] = v
		case OpStoreAnswer:
			v, err := m.pop()
			if err != nil {
				return nil, err
			}
			m.ISR.Answer = v
		case OpJmp:
			m.pc = int(ins.Operand)
			continue
		case OpCall:
			m.pc = int(ins.Operand)
			continue
		case OpHalt:
			return m.ISR.Answer, nil
		case OpTrap:
			return nil, fmt.Errorf("vm: TRAP %d", ins.Operand)
		case OpPhiNormalize:
			if _, err := phi.Apply(m.ISR, mustOp(m.Table, "NORMALIZE"), m.Deps); err != nil {
				return nil, err
			}
		case OpPhiInfer:
			if _, err := phi.Apply(m.ISR, mustOp(m.Table, "INFER"), m.Deps); err != nil {
				return nil, err
			}
		case OpPhiSummarize:
			if _, err := phi.Apply(m.ISR, mustOp(m.Table, "SUMMARIZE"), m.Deps); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("vm: %w: opcode %s", errs.ErrInvalidBytecode, ins.Op)
		}
		m.pc++
	}
	return m.ISR.Answer, nil
}

func mustOp(table *atomtable.Table, label string) *node.Node {
	n, err := node.NewOp(table, label)
	if err != nil {
		panic(err)
	}
	return n
}

// Registers returns the VM's final register file, for snapshotting.
func (m *VM) Registers() [8]*node.Node { return m.regs }

func (m *VM) push(n *node.Node) { m.stack = append(m.stack, n) }

func (m *VM) pop() (*node.Node, error) {
	if len(m.stack) == 0 {
		return nil, errs.ErrStackUnderflow
	}
	n := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return n, nil
}
