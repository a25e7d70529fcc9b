package disassembler

import (
	"github.com/pkg/errors"
)

var ErrInvalidJumpTarget = errors.New("offset is not an instruction start")

// JumpTable 字节偏移 -> 指令下标
// PUSH指令宽度不固定，跳转目标和分发器里的偏移只能通过这张表换算成下标
type JumpTable map[int]int

func NewJumpTable(instructions []EvmInstruction) JumpTable {
	table := make(JumpTable, len(instructions))
	if len(instructions) == 0 {
		return table
	}
	offset := instructions[0].Address
	for index := range instructions {
		table[offset] = index
		offset += instructions[index].Size()
	}
	return table
}

func (jt JumpTable) Index(offset int) (int, error) {
	index, ok := jt[offset]
	if !ok {
		return -1, errors.Wrapf(ErrInvalidJumpTarget, "offset %#x", offset)
	}
	return index, nil
}
