package funcmap

import (
	"bytes"

	"github.com/pkg/errors"

	"gfuzz/internal/disassembler"
	"gfuzz/internal/opcode"
	"gfuzz/internal/selector"
)

// 分发器入口前面的 calldata 长度检查和 free memory pointer 初始化
const dispatcherPrologue = 8

// Entry 分发器中的一项：选择器和匹配后跳转的偏移
type Entry struct {
	Selector selector.Selector
	Target   int
}

// LocateDispatcher 查找 PUSH4 0xffffffff 紧跟 PUSH29 的选择器提取序列，
// 返回从它之前8条指令开始的指令序列
func LocateDispatcher(instructions []disassembler.EvmInstruction) ([]disassembler.EvmInstruction, error) {
	patterns := [][]string{{opcode.PUSH4.String()}, {opcode.PUSH29.String()}}
	for _, index := range disassembler.FindOPCodeSequence(patterns, instructions) {
		if !bytes.Equal(instructions[index].Argument, selector.Mask[:]) {
			continue
		}
		start := index - dispatcherPrologue
		if start < 0 {
			start = 0
		}
		return instructions[start:], nil
	}
	return nil, errors.WithStack(ErrDispatcherNotFound)
}

// ExtractEntries 在分发器中提取 (选择器, 跳转偏移)，遇到STOP结束
// 支持两种比较形式：
//
//	PUSH4 sel, DUPn, EQ, PUSHk target
//	PUSH4 sel, EQ, PUSHk target
func ExtractEntries(dispatcher []disassembler.EvmInstruction) []Entry {
	var entries []Entry
	for i := 0; i < len(dispatcher); i++ {
		if dispatcher[i].OPCode == opcode.STOP.String() {
			break
		}
		if dispatcher[i].OPCode != opcode.PUSH4.String() {
			continue
		}
		targetIndex := -1
		switch {
		case at(dispatcher, i+1, opcode.IsDup) && at(dispatcher, i+2, isEQ):
			targetIndex = i + 3
		case at(dispatcher, i+1, isEQ):
			targetIndex = i + 2
		}
		if !at(dispatcher, targetIndex, opcode.IsPush) {
			continue
		}
		sel, _ := selector.FromBytes(dispatcher[i].Argument)
		entries = append(entries, Entry{
			Selector: sel,
			Target:   dispatcher[targetIndex].ArgumentInt(),
		})
	}
	return entries
}

func at(instructions []disassembler.EvmInstruction, index int, match func(string) bool) bool {
	if index < 0 || index >= len(instructions) {
		return false
	}
	return match(instructions[index].OPCode)
}

func isEQ(op string) bool {
	return op == opcode.EQ.String()
}
