// Package funcmap 从合约运行时字节码中恢复 外部函数选择器 -> 内部可能调用的函数选择器
//
// 只识别solc生成的常见分发器形式，属于启发式分析：
//  1. 找到分发器入口（PUSH4 0xffffffff, PUSH29 ...）
//  2. 提取分发表中的 (选择器, 跳转偏移)
//  3. 通过跳板找到函数体起点，截取到第一个JUMP
//  4. 函数体中有CALL时收集PUSH4常量
package funcmap

import (
	"github.com/pkg/errors"

	"gfuzz/internal/disassembler"
	"gfuzz/internal/selector"
)

// Map 选择器 -> 该函数可能调用的选择器
type Map map[selector.Selector]selector.Set

// Merge 按键做并集
func (m Map) Merge(other Map) {
	for sel, callees := range other {
		existing, ok := m[sel]
		if !ok {
			existing = selector.NewSet()
			m[sel] = existing
		}
		existing.Union(callees)
	}
}

// SkippedSelector 分析失败被跳过的选择器
type SkippedSelector struct {
	Entry Entry
	Err   error
}

// Analyze 分析一个合约
// 找不到分发器时返回错误；单个选择器失败只跳过该选择器，记录在skipped中
func Analyze(d *disassembler.Disassembly) (result Map, skipped []SkippedSelector, err error) {
	instructions := d.GetInstructions()
	dispatcher, err := LocateDispatcher(instructions)
	if err != nil {
		return nil, nil, err
	}
	var (
		jumpTable = d.JumpTable()
		entries   = ExtractEntries(dispatcher)
	)
	result = make(Map, len(entries))
	for _, entry := range entries {
		callees, err := analyzeEntry(entry, jumpTable, instructions)
		if err != nil {
			skipped = append(skipped, SkippedSelector{
				Entry: entry,
				Err:   errors.Wrapf(err, "selector %s", entry.Selector),
			})
			continue
		}
		if existing, ok := result[entry.Selector]; ok {
			existing.Union(callees)
			continue
		}
		result[entry.Selector] = callees
	}
	return result, skipped, nil
}

func analyzeEntry(entry Entry, jumpTable disassembler.JumpTable, instructions []disassembler.EvmInstruction) (selector.Set, error) {
	start, err := ResolveFunctionStart(entry.Target, jumpTable, instructions)
	if err != nil {
		return nil, err
	}
	body, err := ExtractFunctionBody(start, jumpTable, instructions)
	if err != nil {
		return nil, err
	}
	return ExtractInnerCalls(body), nil
}
