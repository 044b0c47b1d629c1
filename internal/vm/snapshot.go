package vm

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/metanucleus/metanucleus/internal/atomtable"
	"github.com/metanucleus/metanucleus/internal/errs"
	"github.com/metanucleus/metanucleus/internal/isr"
	"github.com/metanucleus/metanucleus/internal/node"
	"github.com/metanucleus/metanucleus/internal/serialize"
)

// SnapshotVersion is the only version this reader accepts (§6.3: "the
// reader must accept svms/1 and reject unknown major versions").
const SnapshotVersion = "svms/1"

// Snapshot is the self-describing JSON bundle of §4.9/§6.3: program +
// ISR/VM state + a content digest, optionally Ed25519-signed. Grounded on
// opal-lang-opal/core/planfmt's PlanHeader + content-hash pattern, adapted
// from a binary header to a JSON envelope since §6.3 mandates UTF-8 JSON.
type Snapshot struct {
	Version   string            `json:"version"`
	Digest    string            `json:"digest"`
	Program   SnapshotProgram   `json:"program"`
	State     SnapshotState     `json:"state"`
	Signature *SnapshotSignature `json:"signature,omitempty"`
}

// SnapshotProgram carries the bytecode (base64 of the .svmb encoding) and
// the JSON-rendered constant pool.
type SnapshotProgram struct {
	BytecodeBase64 string            `json:"bytecode_base64"`
	Constants      []json.RawMessage `json:"constants"`
}

// SnapshotState carries the ISR and VM register state at snapshot time.
type SnapshotState struct {
	ISR json.RawMessage `json:"isr"`
	VM  json.RawMessage `json:"vm"`
}

// SnapshotSignature records an Ed25519 signature over the canonical
// pre-signature payload (§4.9: "algorithm, base64 public key, base64
// signature"), the way nmxmxh-inos_v1/kernel/core/mesh/attestation.go
// signs gossip messages.
type SnapshotSignature struct {
	Algorithm string `json:"algorithm"`
	PublicKey string `json:"public_key"`
	Signature string `json:"signature"`
}

type isrSnapshot struct {
	Ontology  []json.RawMessage `json:"ontology"`
	Relations []string          `json:"relations"`
	Context   []json.RawMessage `json:"context"`
	Goals     []json.RawMessage `json:"goals"`
	Answer    json.RawMessage   `json:"answer"`
	Quality   float64           `json:"quality"`
}

type vmSnapshot struct {
	Registers []json.RawMessage `json:"registers"`
}

// BuildSnapshot assembles an unsigned Snapshot from a program and the ISR
// it was executed against, plus the VM's final register file.
func BuildSnapshot(prog *Program, state *isr.ISR, regs [8]*node.Node) (*Snapshot, error) {
	var bc bytes.Buffer
	if err := WriteBytecode(&bc, prog); err != nil {
		return nil, fmt.Errorf("vm: snapshot bytecode: %w", err)
	}

	constants := make([]json.RawMessage, len(prog.Constants))
	for i, c := range prog.Constants {
		j, err := serialize.ToJSON(c)
		if err != nil {
			return nil, err
		}
		constants[i] = j
	}

	isrJSON, err := marshalISR(state)
	if err != nil {
		return nil, err
	}
	vmJSON, err := marshalVM(regs)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Version: SnapshotVersion,
		Program: SnapshotProgram{
			BytecodeBase64: base64.StdEncoding.EncodeToString(bc.Bytes()),
			Constants:      constants,
		},
		State: SnapshotState{ISR: isrJSON, VM: vmJSON},
	}
	digest, err := snap.computeDigest()
	if err != nil {
		return nil, err
	}
	snap.Digest = digest
	return snap, nil
}

func marshalISR(state *isr.ISR) (json.RawMessage, error) {
	ontology := make([]json.RawMessage, len(state.Ontology))
	for i, n := range state.Ontology {
		j, err := serialize.ToJSON(n)
		if err != nil {
			return nil, err
		}
		ontology[i] = j
	}
	relations := make([]string, len(state.Relations))
	for i, r := range state.Relations {
		relations[i] = r.Label
	}
	context := make([]json.RawMessage, len(state.Context))
	for i, n := range state.Context {
		j, err := serialize.ToJSON(n)
		if err != nil {
			return nil, err
		}
		context[i] = j
	}
	goals := make([]json.RawMessage, len(state.Goals))
	for i, n := range state.Goals {
		j, err := serialize.ToJSON(n)
		if err != nil {
			return nil, err
		}
		goals[i] = j
	}
	answer, err := serialize.ToJSON(state.Answer)
	if err != nil {
		return nil, err
	}
	return json.Marshal(isrSnapshot{
		Ontology:  ontology,
		Relations: relations,
		Context:   context,
		Goals:     goals,
		Answer:    answer,
		Quality:   state.Quality,
	})
}

func marshalVM(regs [8]*node.Node) (json.RawMessage, error) {
	out := make([]json.RawMessage, 8)
	for i, r := range regs {
		if r == nil {
			r = node.Nil
		}
		j, err := serialize.ToJSON(r)
		if err != nil {
			return nil, err
		}
		out[i] = j
	}
	return json.Marshal(vmSnapshot{Registers: out})
}

// computeDigest hashes the canonical JSON of every field except Digest and
// Signature (§4.9: Blake2b-256 over the canonical JSON serialization).
func (s *Snapshot) computeDigest() (string, error) {
	payload := *s
	payload.Digest = ""
	payload.Signature = nil
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Sign computes an Ed25519 signature over the canonical pre-signature
// payload and attaches it to the snapshot.
func (s *Snapshot) Sign(priv ed25519.PrivateKey) error {
	payload := *s
	payload.Signature = nil
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	sig := ed25519.Sign(priv, data)
	pub := priv.Public().(ed25519.PublicKey)
	s.Signature = &SnapshotSignature{
		Algorithm: "ed25519",
		PublicKey: base64.StdEncoding.EncodeToString(pub),
		Signature: base64.StdEncoding.EncodeToString(sig),
	}
	return nil
}

// VerifySignature checks s.Signature against the canonical pre-signature
// payload. Returns false, nil when no signature is present.
func (s *Snapshot) VerifySignature() (bool, error) {
	if s.Signature == nil {
		return false, nil
	}
	if s.Signature.Algorithm != "ed25519" {
		return false, fmt.Errorf("vm: unsupported signature algorithm %q", s.Signature.Algorithm)
	}
	pub, err := base64.StdEncoding.DecodeString(s.Signature.PublicKey)
	if err != nil {
		return false, fmt.Errorf("vm: decode public key: %w", err)
	}
	sig, err := base64.StdEncoding.DecodeString(s.Signature.Signature)
	if err != nil {
		return false, fmt.Errorf("vm: decode signature: %w", err)
	}
	payload := *s
	payload.Signature = nil
	data, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(ed25519.PublicKey(pub), data, sig), nil
}

// VerifyDigest recomputes the digest over the current payload and compares
// it against s.Digest (§6.3: "Re-encoding a snapshot must yield a
// byte-identical digest").
func (s *Snapshot) VerifyDigest() (bool, error) {
	want, err := s.computeDigest()
	if err != nil {
		return false, err
	}
	return want == s.Digest, nil
}

// Save marshals snap as indented JSON (the .svms file contents, §6.3).
func Save(snap *Snapshot) ([]byte, error) {
	return json.MarshalIndent(snap, "", "  ")
}

// Load parses an .svms document, rejecting unknown major versions.
func Load(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errs.NewParseError(string(data), err)
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("vm: %w: unsupported snapshot version %q", errs.ErrInvalidBytecode, snap.Version)
	}
	return &snap, nil
}

// toProgram decodes the embedded bytecode back into a *Program, restoring the
// constant pool from JSON by interning labels through table.
func (s *Snapshot) toProgram(table *atomtable.Table) (*Program, error) {
	raw, err := base64.StdEncoding.DecodeString(s.Program.BytecodeBase64)
	if err != nil {
		return nil, fmt.Errorf("vm: decode bytecode: %w", err)
	}
	prog, err := ReadBytecode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	constants := make([]*node.Node, len(s.Program.Constants))
	for i, c := range s.Program.Constants {
		n, err := serialize.FromJSON(table, c)
		if err != nil {
			return nil, err
		}
		constants[i] = n
	}
	prog.Constants = constants
	return prog, nil
}

// ToProgram is the exported form of toProgram, used by callers restoring a
// runnable Program from a loaded snapshot.
func (s *Snapshot) ToProgram(table *atomtable.Table) (*Program, error) {
	return s.toProgram(table)
}
