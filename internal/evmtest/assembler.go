// Package evmtest 测试用的字节码构造工具和样例合约
package evmtest

import (
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"

	"gfuzz/internal/opcode"
	"gfuzz/internal/selector"
)

// Assembler 按助记符拼字节码，PushLabel写入占位符，Bytes时回填标签偏移
type Assembler struct {
	code   []byte
	labels map[string]int
	fixups map[int]string
	err    error
}

func NewAssembler() *Assembler {
	return &Assembler{
		labels: make(map[string]int),
		fixups: make(map[int]string),
	}
}

// Op 追加不带立即数的指令
func (a *Assembler) Op(names ...string) *Assembler {
	for _, name := range names {
		info, ok := opcode.GetOPCodeInfoByOperation(opcode.Operation(name))
		if !ok {
			a.setErr(errors.Errorf("unknown opcode %s", name))
			continue
		}
		if info.ImmediateSize > 0 {
			a.setErr(errors.Errorf("%s needs an argument, use Push", name))
			continue
		}
		a.code = append(a.code, info.Byte)
	}
	return a
}

// Push 追加PUSHn，n为value的长度
func (a *Assembler) Push(value []byte) *Assembler {
	if len(value) == 0 || len(value) > 32 {
		a.setErr(errors.Errorf("push width %d out of range", len(value)))
		return a
	}
	info, _ := opcode.GetOPCodeInfoByOperation(opcode.Push(len(value)))
	a.code = append(a.code, info.Byte)
	a.code = append(a.code, value...)
	return a
}

func (a *Assembler) PushHex(value string) *Assembler {
	b, err := hex.DecodeString(strings.TrimPrefix(value, "0x"))
	if err != nil {
		a.setErr(err)
		return a
	}
	return a.Push(b)
}

func (a *Assembler) PushSelector(s selector.Selector) *Assembler {
	return a.Push(s[:])
}

// PushLabel 追加 PUSH2 <label>
func (a *Assembler) PushLabel(name string) *Assembler {
	info, _ := opcode.GetOPCodeInfoByOperation(opcode.PUSH2)
	a.code = append(a.code, info.Byte)
	a.fixups[len(a.code)] = name
	a.code = append(a.code, 0, 0)
	return a
}

// Label 在当前位置放置JUMPDEST并记录标签
func (a *Assembler) Label(name string) *Assembler {
	if _, ok := a.labels[name]; ok {
		a.setErr(errors.Errorf("duplicate label %s", name))
		return a
	}
	a.labels[name] = len(a.code)
	return a.Op(opcode.JUMPDEST.String())
}

// Raw 原样追加字节
func (a *Assembler) Raw(b ...byte) *Assembler {
	a.code = append(a.code, b...)
	return a
}

// Offset 返回标签的字节偏移，不存在时返回-1
func (a *Assembler) Offset(name string) int {
	offset, ok := a.labels[name]
	if !ok {
		return -1
	}
	return offset
}

func (a *Assembler) Bytes() ([]byte, error) {
	if a.err != nil {
		return nil, a.err
	}
	code := make([]byte, len(a.code))
	copy(code, a.code)
	for pos, name := range a.fixups {
		offset, ok := a.labels[name]
		if !ok {
			return nil, errors.Errorf("undefined label %s", name)
		}
		if offset > 0xffff {
			return nil, errors.Errorf("label %s offset %#x exceeds PUSH2", name, offset)
		}
		code[pos] = byte(offset >> 8)
		code[pos+1] = byte(offset)
	}
	return code, nil
}

// Hex 返回0x开头的十六进制字节码，构造出错时panic
func (a *Assembler) Hex() string {
	code, err := a.Bytes()
	if err != nil {
		panic(err)
	}
	return "0x" + hex.EncodeToString(code)
}

func (a *Assembler) setErr(err error) {
	if a.err == nil {
		a.err = err
	}
}
