// Package vm implements the ΣVM (§4.9): a small auditable stack machine that
// re-executes a Φ-plan as bytecode so the symbolic (Scheduler/Φ-operator)
// and operational (VM) views of a turn can be cross-checked. Grounded on
// opal-lang-opal/core/planfmt (plan.go/writer.go/reader.go: a
// varint-length-prefixed binary container with a stable magic/version
// header and a content hash) for the bytecode shape, and
// nmxmxh-inos_v1/kernel/core/mesh/attestation.go for the Ed25519
// sign/verify pattern used by snapshots.
package vm

// Opcode identifies a single ΣVM instruction (§4.9).
type Opcode uint8

const (
	OpNoop Opcode = iota
	OpPushText
	OpPushConst
	OpPushKey
	OpPushNumber
	OpPushBool
	OpBeginStruct
	OpBuildStruct
	OpNewList
	OpNewRel
	OpNewOp
	OpLoadReg
	OpStoreReg
	OpStoreAnswer
	OpJmp
	OpCall
	OpHalt
	OpTrap
	OpPhiNormalize
	OpPhiInfer
	OpPhiSummarize
)

var opcodeNames = map[Opcode]string{
	OpNoop:         "NOOP",
	OpPushText:     "PUSH_TEXT",
	OpPushConst:    "PUSH_CONST",
	OpPushKey:      "PUSH_KEY",
	OpPushNumber:   "PUSH_NUMBER",
	OpPushBool:     "PUSH_BOOL",
	OpBeginStruct:  "BEGIN_STRUCT",
	OpBuildStruct:  "BUILD_STRUCT",
	OpNewList:      "NEW_LIST",
	OpNewRel:       "NEW_REL",
	OpNewOp:        "NEW_OP",
	OpLoadReg:      "LOAD_REG",
	OpStoreReg:     "STORE_REG",
	OpStoreAnswer:  "STORE_ANSWER",
	OpJmp:          "JMP",
	OpCall:         "CALL",
	OpHalt:         "HALT",
	OpTrap:         "TRAP",
	OpPhiNormalize: "PHI_NORMALIZE",
	OpPhiInfer:     "PHI_INFER",
	OpPhiSummarize: "PHI_SUMMARIZE",
}

func (o Opcode) String() string {
	if s, ok := opcodeNames[o]; ok {
		return s
	}
	return "UNKNOWN"
}

// Valid reports whether o is a recognized opcode (used by the bytecode
// verifier, §4.9: "Verifier rejects: unknown opcodes").
func (o Opcode) Valid() bool {
	_, ok := opcodeNames[o]
	return ok
}

// Instruction is one (opcode, operand) pair. Operand meaning depends on
// the opcode: a constant-pool index, a register number 0..7, a jump
// target, or unused (0) for zero-operand opcodes.
type Instruction struct {
	Op      Opcode
	Operand uint32
}
