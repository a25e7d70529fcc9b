package disassembler

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"strings"

	"gfuzz/internal/opcode"
)

type EvmInstruction struct {
	Address  int    // 字节偏移
	OPCode   string // 助记符
	Argument []byte // PUSH指令的立即数
}

func (ei *EvmInstruction) String() string {
	var builder strings.Builder
	builder.WriteString(strconv.Itoa(ei.Address))
	builder.WriteString(" ")
	builder.WriteString(ei.OPCode)
	if len(ei.Argument) > 0 {
		builder.WriteString(" ")
		builder.WriteString("0x" + hex.EncodeToString(ei.Argument))
	}
	return builder.String()
}

// Size 指令在字节码中占用的字节数
func (ei *EvmInstruction) Size() int {
	return 1 + opcode.PushWidth(ei.OPCode)
}

// ArgumentInt 把立即数按大端解释为整数，超过8字节时只取低8字节
func (ei *EvmInstruction) ArgumentInt() int {
	arg := ei.Argument
	if len(arg) > 8 {
		arg = arg[len(arg)-8:]
	}
	var n uint64
	for _, b := range arg {
		n = n<<8 | uint64(b)
	}
	return int(n)
}

func instructionListToEASM(instructions []EvmInstruction) string {
	var builder strings.Builder
	for i := range instructions {
		builder.WriteString(instructions[i].String())
		builder.WriteString("\n")
	}
	return builder.String()
}

// patterns从0开始，instructions从index开始，依次匹配
func isSequenceMatch(patterns [][]string, instructions []EvmInstruction, index int) bool {
	for i, pattern := range patterns {
		if index+i >= len(instructions) {
			return false
		}
		var foundOPCode bool
		for _, p := range pattern {
			if instructions[index+i].OPCode == p {
				foundOPCode = true
				break
			}
		}
		if !foundOPCode {
			return false
		}
	}
	return true
}

func FindOPCodeSequence(patterns [][]string, instructions []EvmInstruction) []int {
	result := make([]int, 0)
	for i := 0; i < len(instructions)-len(patterns)+1; i++ {
		if isSequenceMatch(patterns, instructions, i) {
			result = append(result, i)
		}
	}
	return result
}

// FindOPCodeSequenceFrom 返回从start开始第一个匹配的下标，没有则返回-1
func FindOPCodeSequenceFrom(patterns [][]string, instructions []EvmInstruction, start int) int {
	if start < 0 {
		start = 0
	}
	for i := start; i < len(instructions)-len(patterns)+1; i++ {
		if isSequenceMatch(patterns, instructions, i) {
			return i
		}
	}
	return -1
}

// Disassemble 解码字节码为EvmInstruction
// 末尾立即数不完整的PUSH指令会被丢弃，truncated为true
func Disassemble(bytecode []byte) (instructions []EvmInstruction, truncated bool) {
	var (
		length  = len(bytecode)
		address int
	)
	for address < length {
		info, ok := opcode.GetOPCodeInfoByByte(bytecode[address])
		if !ok {
			instructions = append(instructions, EvmInstruction{
				Address: address,
				OPCode:  opcode.INVALID.String(),
			})
			address++
			continue
		}
		current := EvmInstruction{
			Address: address,
			OPCode:  info.OPCode.String(),
		}
		if n := info.ImmediateSize; n > 0 {
			if address+1+n > length {
				return instructions, true
			}
			current.Argument = make([]byte, n)
			copy(current.Argument, bytecode[address+1:address+1+n])
		}
		instructions = append(instructions, current)
		address += 1 + info.ImmediateSize
	}
	return instructions, false
}

// solc在运行时代码末尾追加的CBOR元数据中会出现的键
var metadataKeys = [][]byte{[]byte("bzzr0"), []byte("bzzr1"), []byte("ipfs"), []byte("solc")}

// stripMetadata 去掉末尾的元数据，最后两个字节是元数据的长度
func stripMetadata(bytecode []byte) []byte {
	if len(bytecode) < 2 {
		return bytecode
	}
	n := int(binary.BigEndian.Uint16(bytecode[len(bytecode)-2:]))
	if n == 0 || n+2 > len(bytecode) {
		return bytecode
	}
	trailer := bytecode[len(bytecode)-2-n : len(bytecode)-2]
	// CBOR map头 0xa1 ~ 0xa5
	if trailer[0] < 0xa1 || trailer[0] > 0xa5 {
		return bytecode
	}
	for _, key := range metadataKeys {
		if bytes.Contains(trailer, key) {
			return bytecode[:len(bytecode)-2-n]
		}
	}
	return bytecode
}
