package container

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skx/pyvm/instructions"
)

func sampleProgram() *Program {
	return &Program{
		Constants: []instructions.Constant{
			{Type: instructions.TypeInt, IntValue: 42},
			{Type: instructions.TypeFloat, FloatValue: 3.5},
			{Type: instructions.TypeString, StringValue: "hi"},
			{Type: instructions.TypeBool, BoolValue: true},
		},
		Symbols: []instructions.Symbol{
			{Name: "x", Type: instructions.SymbolVar, Index: 0},
		},
		Instructions: []instructions.Instruction{
			{Op: instructions.LOAD_CONST, Operand: 0},
			{Op: instructions.STORE_VAR, Operand: 0},
			{Op: instructions.HALT},
		},
	}
}

// TestRoundTrip: writing then reading back a program yields an
// identical one.
func TestRoundTrip(t *testing.T) {
	prog := sampleProgram()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, prog))

	got, err := Read(&buf)
	require.NoError(t, err)

	require.Len(t, got.Constants, len(prog.Constants))
	assert.Equal(t, "hi", got.Constants[2].StringValue)
	assert.Equal(t, 3.5, got.Constants[1].FloatValue)
	require.Len(t, got.Symbols, 1)
	assert.Equal(t, "x", got.Symbols[0].Name)
	require.Len(t, got.Instructions, 3)
	assert.Equal(t, instructions.HALT, got.Instructions[2].Op)
}

// TestSaveLoadFile: the file-based wrapper round-trips through disk too.
func TestSaveLoadFile(t *testing.T) {
	prog := sampleProgram()
	path := filepath.Join(t.TempDir(), "test.pvm")

	require.NoError(t, Save(path, prog))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, got.Instructions, len(prog.Instructions))
}

// TestInvalidMagic: a file with the wrong magic number is rejected.
func TestInvalidMagic(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0})          // bogus magic
	buf.Write(make([]byte, headerSize-4)) // pad out the rest of the header

	_, err := Read(&buf)
	assert.Error(t, err)
}

// TestUnsupportedVersion: a file with a future version number is rejected.
func TestUnsupportedVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeHeader(&buf, sampleProgram()))
	raw := buf.Bytes()
	raw[4] = 0xFF // corrupt the version field

	_, err := Read(bytes.NewReader(raw))
	assert.Error(t, err)
}

// TestTruncatedFile: a file cut off mid-header is rejected, not panicked on.
func TestTruncatedFile(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte{0x56, 0x4D}))
	assert.Error(t, err)
}

// TestInfo: Info reports the same counts the header carries, without
// needing the full constant pool or instruction stream decoded.
func TestInfo(t *testing.T) {
	prog := sampleProgram()
	path := filepath.Join(t.TempDir(), "test.pvm")
	require.NoError(t, Save(path, prog))

	info, err := Info(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(len(prog.Constants)), info.ConstCount)
	assert.Equal(t, uint32(len(prog.Instructions))*2, info.CodeSize)
}

// TestInfoMissingFile: looking up a nonexistent file fails cleanly.
func TestInfoMissingFile(t *testing.T) {
	_, err := Info(filepath.Join(t.TempDir(), "missing.pvm"))
	assert.Error(t, err)
}
