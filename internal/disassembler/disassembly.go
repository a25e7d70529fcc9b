package disassembler

import (
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

var ErrMalformedBytecode = errors.New("malformed bytecode")

// Disassembly 汇编信息管理
type Disassembly struct {
	bytecode     string
	instructions []EvmInstruction
	jumpTable    JumpTable
	truncated    bool
}

func NewDisassembly(bytecode string) (*Disassembly, error) {
	d := &Disassembly{}
	if err := d.AssignBytecode(bytecode); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Disassembly) AssignBytecode(bytecode string) error {
	code, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(bytecode), "0x"))
	if err != nil {
		return errors.Wrap(ErrMalformedBytecode, err.Error())
	}
	d.instructions, d.truncated = Disassemble(stripMetadata(code))
	d.jumpTable = NewJumpTable(d.instructions)
	d.bytecode = bytecode
	return nil
}

func (d *Disassembly) GetBytecode() string {
	return d.bytecode
}

func (d *Disassembly) GetEASM() string {
	return instructionListToEASM(d.instructions)
}

func (d *Disassembly) GetInstructions() []EvmInstruction {
	return d.instructions
}

func (d *Disassembly) JumpTable() JumpTable {
	return d.jumpTable
}

// Truncated 字节码末尾有不完整的PUSH指令
func (d *Disassembly) Truncated() bool {
	return d.truncated
}
