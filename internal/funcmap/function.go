package funcmap

import (
	"github.com/pkg/errors"

	"gfuzz/internal/disassembler"
	"gfuzz/internal/opcode"
	"gfuzz/internal/selector"
)

// 分发器分支跳到的是编译器生成的跳板：PUSH2 <ret>, PUSH2 <body>, JUMP|JUMPI
var trampoline = [][]string{
	{opcode.PUSH2.String()},
	{opcode.PUSH2.String()},
	{opcode.JUMP.String(), opcode.JUMPI.String()},
}

// ResolveFunctionStart 从分发器跳转偏移出发，返回函数体起始偏移
func ResolveFunctionStart(target int, jumpTable disassembler.JumpTable, instructions []disassembler.EvmInstruction) (int, error) {
	index, err := jumpTable.Index(target)
	if err != nil {
		return -1, errors.Wrap(err, "dispatch target")
	}
	found := disassembler.FindOPCodeSequenceFrom(trampoline, instructions, index)
	if found < 0 {
		return -1, errors.Wrapf(ErrFunctionStartNotFound, "target %#x", target)
	}
	return instructions[found+1].ArgumentInt(), nil
}

// ExtractFunctionBody 返回从start开始到第一个JUMP（包含）的指令
// 函数内部以JUMPI结束的分支不会被当成边界，这里只是近似的函数范围
func ExtractFunctionBody(start int, jumpTable disassembler.JumpTable, instructions []disassembler.EvmInstruction) ([]disassembler.EvmInstruction, error) {
	index, err := jumpTable.Index(start)
	if err != nil {
		return nil, errors.Wrap(err, "function start")
	}
	for end := index + 1; end < len(instructions); end++ {
		if instructions[end].OPCode == opcode.JUMP.String() {
			return instructions[index : end+1], nil
		}
	}
	return nil, errors.Wrapf(ErrFunctionEndNotFound, "start %#x", start)
}

// ExtractInnerCalls 函数体中有CALL时，把除掩码外的所有PUSH4常量当作可能调用的选择器
// 会把无关的4字节常量也算进来
func ExtractInnerCalls(body []disassembler.EvmInstruction) selector.Set {
	var (
		hasCall    bool
		candidates = selector.NewSet()
	)
	for i := range body {
		switch body[i].OPCode {
		case opcode.CALL.String():
			hasCall = true
		case opcode.PUSH4.String():
			sel, err := selector.FromBytes(body[i].Argument)
			if err != nil || sel == selector.Mask {
				continue
			}
			candidates.Add(sel)
		}
	}
	if !hasCall {
		return selector.NewSet()
	}
	return candidates
}
