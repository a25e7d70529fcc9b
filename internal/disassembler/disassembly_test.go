package disassembler

import (
	"os"
	"path"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_easm(t *testing.T) {
	const (
		InputDir         = "testdata/inputs"
		OuputExpectedDir = "testdata/outputs_expected"
	)
	files, err := os.ReadDir(InputDir)
	require.Nil(t, err)

	for _, f := range files {
		var (
			inputFile          = path.Join(InputDir, f.Name())
			outputExpectedFile = path.Join(OuputExpectedDir, f.Name()+".easm")
		)
		inputCode, err := os.ReadFile(inputFile)
		require.Nil(t, err)

		disassembly, err := NewDisassembly(string(inputCode))
		require.Nil(t, err, inputFile)

		outputExpectedCode, err := os.ReadFile(outputExpectedFile)
		require.Nil(t, err)
		assert.Equal(t, string(outputExpectedCode), disassembly.GetEASM(), "%s != %s", inputFile, outputExpectedFile)
	}
}

func TestDisassemble(t *testing.T) {
	testCases := []struct {
		name          string
		code          []byte
		wantOPCodes   []string
		wantAddresses []int
		wantTruncated bool
	}{
		{
			name:          "PushOperandNotDecoded",
			code:          []byte{0x61, 0x56, 0x56, 0x56},
			wantOPCodes:   []string{"PUSH2", "JUMP"},
			wantAddresses: []int{0, 3},
		},
		{
			name:          "UndefinedByte",
			code:          []byte{0x0c, 0x00},
			wantOPCodes:   []string{"INVALID", "STOP"},
			wantAddresses: []int{0, 1},
		},
		{
			name:          "TruncatedPush",
			code:          []byte{0x5b, 0x63, 0xff, 0xff},
			wantOPCodes:   []string{"JUMPDEST"},
			wantAddresses: []int{0},
			wantTruncated: true,
		},
		{
			name:          "PUSH32",
			code:          append(append([]byte{0x7f}, make([]byte, 32)...), 0xf1),
			wantOPCodes:   []string{"PUSH32", "CALL"},
			wantAddresses: []int{0, 33},
		},
		{
			name: "Empty",
			code: nil,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			instructions, truncated := Disassemble(tc.code)
			assert.Equal(t, tc.wantTruncated, truncated)
			assert.Equal(t, len(tc.wantOPCodes), len(instructions))
			for i := range instructions {
				assert.Equal(t, tc.wantOPCodes[i], instructions[i].OPCode)
				assert.Equal(t, tc.wantAddresses[i], instructions[i].Address)
			}
		})
	}
}

func TestNewDisassembly(t *testing.T) {
	_, err := NewDisassembly("0xzz")
	assert.True(t, errors.Is(err, ErrMalformedBytecode))

	d, err := NewDisassembly("5b63ffff")
	assert.Nil(t, err)
	assert.True(t, d.Truncated())
	assert.Equal(t, 1, len(d.GetInstructions()))
}

func TestStripMetadata(t *testing.T) {
	code := []byte{0x5b, 0x00}
	// a1 65 "bzzr0" 58 20 <32 bytes> 00 29
	trailer := append([]byte{0xa1, 0x65}, []byte("bzzr0")...)
	trailer = append(trailer, 0x58, 0x20)
	trailer = append(trailer, make([]byte, 32)...)
	withMetadata := append(append([]byte{}, code...), trailer...)
	withMetadata = append(withMetadata, 0x00, byte(len(trailer)))

	assert.Equal(t, code, stripMetadata(withMetadata))
	assert.Equal(t, code, stripMetadata(code))
	// 长度字段合法但不是CBOR map
	notMetadata := []byte{0x60, 0x01, 0x00, 0x02}
	assert.Equal(t, notMetadata, stripMetadata(notMetadata))
}

func TestJumpTable(t *testing.T) {
	instructions, _ := Disassemble([]byte{0x61, 0x00, 0x10, 0x56})
	table := NewJumpTable(instructions)

	index, err := table.Index(0)
	assert.Nil(t, err)
	assert.Equal(t, 0, index)
	index, err = table.Index(3)
	assert.Nil(t, err)
	assert.Equal(t, 1, index)

	// 立即数内部的偏移不是合法键
	for _, offset := range []int{1, 2, 4} {
		_, err = table.Index(offset)
		assert.True(t, errors.Is(err, ErrInvalidJumpTarget), "offset %d", offset)
	}
}

func TestJumpTableMonotonic(t *testing.T) {
	code := []byte{0x60, 0x80, 0x60, 0x40, 0x52, 0x7c}
	code = append(code, make([]byte, 29)...)
	code = append(code, 0x63, 0xff, 0xff, 0xff, 0xff, 0x5b, 0x00)
	instructions, truncated := Disassemble(code)
	assert.False(t, truncated)
	table := NewJumpTable(instructions)
	assert.Equal(t, len(instructions), len(table))
	for i, ins := range instructions {
		index, err := table.Index(ins.Address)
		assert.Nil(t, err)
		assert.Equal(t, i, index)
	}
}

func TestFindOPCodeSequence(t *testing.T) {
	instructions, _ := Disassemble([]byte{0x61, 0x00, 0x01, 0x61, 0x00, 0x02, 0x56, 0x61, 0x00, 0x03, 0x61, 0x00, 0x04, 0x57})
	patterns := [][]string{{"PUSH2"}, {"PUSH2"}, {"JUMP", "JUMPI"}}
	assert.Equal(t, []int{0, 3}, FindOPCodeSequence(patterns, instructions))
	assert.Equal(t, 3, FindOPCodeSequenceFrom(patterns, instructions, 1))
	assert.Equal(t, -1, FindOPCodeSequenceFrom(patterns, instructions, 4))
}

func TestArgumentInt(t *testing.T) {
	ins := EvmInstruction{OPCode: "PUSH2", Argument: []byte{0x01, 0x1c}}
	assert.Equal(t, 0x11c, ins.ArgumentInt())
	assert.Equal(t, 3, ins.Size())
	assert.Equal(t, "0 PUSH2 0x011c", ins.String())
}
