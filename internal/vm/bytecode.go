package vm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/metanucleus/metanucleus/internal/errs"
)

// Bytecode magic and version, per §6.4: ASCII "SVMB" then varint
// major/minor and a varint body length, mirroring the teacher-adjacent
// opal-lang-opal/core/planfmt bytecode container (magic + version +
// length-prefixed body), generalized from opal's fixed binary header to a
// varint-encoded one since ΣVM programs carry no secrets/salts to align.
const bytecodeMagic = "SVMB"

// BytecodeVersionMajor/Minor are the current format version.
const (
	BytecodeVersionMajor = 1
	BytecodeVersionMinor = 0
)

// WriteBytecode encodes prog's instruction stream (NOT its constant pool —
// constants travel in the .svms snapshot, §6.3) as an .svmb binary stream:
// magic, varint major, varint minor, varint body length, then
// (opcode:u8, operand:varint) pairs.
func WriteBytecode(w io.Writer, prog *Program) error {
	var body bytes.Buffer
	for _, ins := range prog.Instructions {
		body.WriteByte(byte(ins.Op))
		writeUvarint(&body, uint64(ins.Operand))
	}

	if _, err := w.Write([]byte(bytecodeMagic)); err != nil {
		return err
	}
	writeUvarint(w, BytecodeVersionMajor)
	writeUvarint(w, BytecodeVersionMinor)
	writeUvarint(w, uint64(body.Len()))
	_, err := w.Write(body.Bytes())
	return err
}

// ReadBytecode decodes an .svmb stream produced by WriteBytecode, verifying
// the magic and rejecting an unknown major version.
func ReadBytecode(r io.Reader) (*Program, error) {
	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("vm: read magic: %w", err)
	}
	if string(magic) != bytecodeMagic {
		return nil, fmt.Errorf("vm: %w: bad magic %q", errs.ErrInvalidBytecode, magic)
	}
	br := newByteReader(r)

	major, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, fmt.Errorf("vm: read major version: %w", err)
	}
	if major != BytecodeVersionMajor {
		return nil, fmt.Errorf("vm: %w: unsupported major version %d", errs.ErrInvalidBytecode, major)
	}
	if _, err := binary.ReadUvarint(br); err != nil { // minor, forward-compatible
		return nil, fmt.Errorf("vm: read minor version: %w", err)
	}
	bodyLen, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, fmt.Errorf("vm: read body length: %w", err)
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(br, body); err != nil {
		return nil, fmt.Errorf("vm: read body: %w", err)
	}

	bodyR := newByteReader(bytes.NewReader(body))
	var instructions []Instruction
	for {
		opByte, err := bodyR.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("vm: read opcode: %w", err)
		}
		operand, err := binary.ReadUvarint(bodyR)
		if err != nil {
			return nil, fmt.Errorf("vm: read operand: %w", err)
		}
		op := Opcode(opByte)
		if !op.Valid() {
			return nil, fmt.Errorf("vm: %w: unknown opcode %d", errs.ErrInvalidBytecode, opByte)
		}
		instructions = append(instructions, Instruction{Op: op, Operand: uint32(operand)})
	}
	return &Program{Instructions: instructions}, nil
}

func writeUvarint(w io.Writer, v uint64) {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	w.Write(buf[:n])
}

// byteReader adapts an io.Reader to io.ByteReader, as binary.ReadUvarint requires.
type byteReader struct {
	r   io.Reader
	buf [1]byte
}

func newByteReader(r io.Reader) *byteReader { return &byteReader{r: r} }

func (b *byteReader) ReadByte() (byte, error) {
	if _, err := io.ReadFull(b.r, b.buf[:]); err != nil {
		return 0, err
	}
	return b.buf[0], nil
}

func (b *byteReader) Read(p []byte) (int, error) { return b.r.Read(p) }
