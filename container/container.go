// Package container serializes a compiled Program to, and loads it
// back from, a deterministic little-endian binary `.pvm` file: a
// fixed header, a constant pool, a symbol table and an instruction
// stream.
//
// The layout is a precise wire format fixed by the toolchain, not a
// general object graph, so it's written with encoding/binary rather
// than a general-purpose serializer.
package container

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/skx/pyvm/instructions"
)

// MagicNumber identifies a `.pvm` file. It is written little-endian,
// so a file's first four bytes are the ASCII "VMYP".
const MagicNumber uint32 = 0x50594D56

// Version is the container format version this package reads and writes.
const Version uint16 = 0x0001

// headerSize is the fixed size, in bytes, of a container's header.
const headerSize = 20

// Error is returned for anything that makes a `.pvm` file
// unreadable: bad magic, unsupported version, or a truncated stream.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("container error: %s", e.Message)
}

// Program mirrors compiler.Program, so this package doesn't need to
// import the compiler package just to describe what it serializes.
type Program struct {
	Constants    []instructions.Constant
	Symbols      []instructions.Symbol
	Instructions []instructions.Instruction
}

// Save writes prog to path as a `.pvm` file.
func Save(path string, prog *Program) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return Write(f, prog)
}

// Write serializes prog to w.
func Write(w io.Writer, prog *Program) error {
	if err := writeHeader(w, prog); err != nil {
		return err
	}
	if err := writeConstants(w, prog.Constants); err != nil {
		return err
	}
	if err := writeSymbols(w, prog.Symbols); err != nil {
		return err
	}
	return writeInstructions(w, prog.Instructions)
}

// Load reads a `.pvm` file from path.
func Load(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Read(f)
}

// Read deserializes a Program from r.
func Read(r io.Reader) (*Program, error) {
	header, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	constants, err := readConstants(r, header.constCount)
	if err != nil {
		return nil, err
	}

	symbols, err := readSymbols(r, header.symbolCount)
	if err != nil {
		return nil, err
	}

	insts, err := readInstructions(r, header.codeSize)
	if err != nil {
		return nil, err
	}

	return &Program{Constants: constants, Symbols: symbols, Instructions: insts}, nil
}

type header struct {
	version     uint16
	flags       uint16
	constCount  uint32
	symbolCount uint32
	codeSize    uint32
}

func writeHeader(w io.Writer, prog *Program) error {
	codeSize := uint32(len(prog.Instructions)) * 2

	fields := []any{
		MagicNumber,
		Version,
		uint16(0),
		uint32(len(prog.Constants)),
		uint32(len(prog.Symbols)),
		codeSize,
	}
	for _, field := range fields {
		if err := binary.Write(w, binary.LittleEndian, field); err != nil {
			return err
		}
	}
	return nil
}

func readHeader(r io.Reader) (*header, error) {
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, &Error{Message: "truncated header"}
	}

	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic != MagicNumber {
		return nil, &Error{Message: "invalid magic"}
	}

	version := binary.LittleEndian.Uint16(buf[4:6])
	if version != Version {
		return nil, &Error{Message: "unsupported version"}
	}

	return &header{
		version:     version,
		flags:       binary.LittleEndian.Uint16(buf[6:8]),
		constCount:  binary.LittleEndian.Uint32(buf[8:12]),
		symbolCount: binary.LittleEndian.Uint32(buf[12:16]),
		codeSize:    binary.LittleEndian.Uint32(buf[16:20]),
	}, nil
}

func writeConstants(w io.Writer, constants []instructions.Constant) error {
	for _, c := range constants {
		if err := binary.Write(w, binary.LittleEndian, byte(c.Type)); err != nil {
			return err
		}

		switch c.Type {
		case instructions.TypeInt:
			if err := binary.Write(w, binary.LittleEndian, uint32(4)); err != nil {
				return err
			}
			if err := binary.Write(w, binary.LittleEndian, int32(c.IntValue)); err != nil {
				return err
			}
		case instructions.TypeFloat:
			if err := binary.Write(w, binary.LittleEndian, uint32(8)); err != nil {
				return err
			}
			if err := binary.Write(w, binary.LittleEndian, c.FloatValue); err != nil {
				return err
			}
		case instructions.TypeString:
			data := append([]byte(c.StringValue), 0)
			if err := binary.Write(w, binary.LittleEndian, uint32(len(data))); err != nil {
				return err
			}
			if _, err := w.Write(data); err != nil {
				return err
			}
		case instructions.TypeBool:
			if err := binary.Write(w, binary.LittleEndian, uint32(1)); err != nil {
				return err
			}
			var b byte
			if c.BoolValue {
				b = 1
			}
			if err := binary.Write(w, binary.LittleEndian, b); err != nil {
				return err
			}
		default:
			return &Error{Message: fmt.Sprintf("unknown constant type %d", c.Type)}
		}
	}
	return nil
}

func readConstants(r io.Reader, count uint32) ([]instructions.Constant, error) {
	out := make([]instructions.Constant, 0, count)

	for i := uint32(0); i < count; i++ {
		var typeByte byte
		if err := binary.Read(r, binary.LittleEndian, &typeByte); err != nil {
			return nil, &Error{Message: "truncated constant pool"}
		}

		var size uint32
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return nil, &Error{Message: "truncated constant pool"}
		}

		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, &Error{Message: "truncated constant pool"}
		}

		c, err := decodeConstant(instructions.DataType(typeByte), payload)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func decodeConstant(t instructions.DataType, payload []byte) (instructions.Constant, error) {
	switch t {
	case instructions.TypeInt:
		var v int32
		if err := binary.Read(bytes.NewReader(payload), binary.LittleEndian, &v); err != nil {
			return instructions.Constant{}, err
		}
		return instructions.Constant{Type: instructions.TypeInt, IntValue: int64(v)}, nil
	case instructions.TypeFloat:
		var v float64
		if err := binary.Read(bytes.NewReader(payload), binary.LittleEndian, &v); err != nil {
			return instructions.Constant{}, err
		}
		return instructions.Constant{Type: instructions.TypeFloat, FloatValue: v}, nil
	case instructions.TypeString:
		if len(payload) == 0 {
			return instructions.Constant{}, &Error{Message: "empty string constant payload"}
		}
		return instructions.Constant{Type: instructions.TypeString, StringValue: string(payload[:len(payload)-1])}, nil
	case instructions.TypeBool:
		if len(payload) != 1 {
			return instructions.Constant{}, &Error{Message: "malformed bool constant payload"}
		}
		return instructions.Constant{Type: instructions.TypeBool, BoolValue: payload[0] != 0}, nil
	default:
		return instructions.Constant{}, &Error{Message: fmt.Sprintf("unknown constant type %d", t)}
	}
}

func writeSymbols(w io.Writer, symbols []instructions.Symbol) error {
	for _, s := range symbols {
		if err := binary.Write(w, binary.LittleEndian, byte(s.Type)); err != nil {
			return err
		}

		data := append([]byte(s.Name), 0)
		if len(data) > 255 {
			return &Error{Message: fmt.Sprintf("symbol name %q too long to encode", s.Name)}
		}
		if err := binary.Write(w, binary.LittleEndian, byte(len(data))); err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}

		if err := binary.Write(w, binary.LittleEndian, s.Index); err != nil {
			return err
		}
	}
	return nil
}

func readSymbols(r io.Reader, count uint32) ([]instructions.Symbol, error) {
	out := make([]instructions.Symbol, 0, count)

	for i := uint32(0); i < count; i++ {
		var typeByte byte
		if err := binary.Read(r, binary.LittleEndian, &typeByte); err != nil {
			return nil, &Error{Message: "truncated symbol table"}
		}

		var nameLen byte
		if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return nil, &Error{Message: "truncated symbol table"}
		}

		nameData := make([]byte, nameLen)
		if _, err := io.ReadFull(r, nameData); err != nil {
			return nil, &Error{Message: "truncated symbol table"}
		}
		if nameLen == 0 {
			return nil, &Error{Message: "malformed symbol name"}
		}

		var index uint32
		if err := binary.Read(r, binary.LittleEndian, &index); err != nil {
			return nil, &Error{Message: "truncated symbol table"}
		}

		out = append(out, instructions.Symbol{
			Name:  string(nameData[:len(nameData)-1]),
			Type:  instructions.SymbolType(typeByte),
			Index: index,
		})
	}
	return out, nil
}

func writeInstructions(w io.Writer, insts []instructions.Instruction) error {
	for _, inst := range insts {
		if err := binary.Write(w, binary.LittleEndian, byte(inst.Op)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, inst.Operand); err != nil {
			return err
		}
	}
	return nil
}

func readInstructions(r io.Reader, codeSize uint32) ([]instructions.Instruction, error) {
	count := codeSize / 2
	out := make([]instructions.Instruction, 0, count)

	for i := uint32(0); i < count; i++ {
		buf := make([]byte, 2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, &Error{Message: "truncated instruction stream"}
		}

		op := instructions.OpCode(buf[0])
		inst := instructions.Instruction{Op: op}
		if instructions.HasOperand(op) {
			inst.Operand = buf[1]
		}
		out = append(out, inst)
	}
	return out, nil
}

// FileInfo is the shape returned by Info, describing a `.pvm` file
// without fully loading its constant pool, symbol table or code.
type FileInfo struct {
	Path        string
	FileSize    int64
	Version     uint16
	ConstCount  uint32
	SymbolCount uint32
	CodeSize    uint32
	HeaderSize  int
}

// Info reads just the header of a `.pvm` file at path, and reports
// the file's size alongside it - used by the `--info` CLI flag to
// inspect a compiled program without running it.
func Info(path string) (*FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	h, err := readHeader(f)
	if err != nil {
		return nil, err
	}

	return &FileInfo{
		Path:        path,
		FileSize:    stat.Size(),
		Version:     h.version,
		ConstCount:  h.constCount,
		SymbolCount: h.symbolCount,
		CodeSize:    h.codeSize,
		HeaderSize:  headerSize,
	}, nil
}
