package opcode

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/core/vm"
)

// Operation EVM操作码助记符
// https://ethereum.org/en/developers/docs/evm/opcodes
type Operation string

func (op Operation) String() string {
	return string(op)
}

// 分析中直接引用的操作码，其余的由init从go-ethereum的操作码表生成
const (
	STOP         Operation = "STOP"
	EQ           Operation = "EQ"
	AND          Operation = "AND"
	CALLDATALOAD Operation = "CALLDATALOAD"
	JUMP         Operation = "JUMP"
	JUMPI        Operation = "JUMPI"
	JUMPDEST     Operation = "JUMPDEST"
	CALL         Operation = "CALL"
	CALLCODE     Operation = "CALLCODE"
	DELEGATECALL Operation = "DELEGATECALL"
	STATICCALL   Operation = "STATICCALL"
	INVALID      Operation = "INVALID"
	PUSH2        Operation = "PUSH2"
	PUSH4        Operation = "PUSH4"
	PUSH29       Operation = "PUSH29"
	// PUSH{1~32}
	// SWAP{1~16}
	// DUP{1~16}
)

type OPCodeInfo struct {
	OPCode        Operation
	Byte          byte
	ImmediateSize int // PUSHn的立即数字节数，其余为0
}

var (
	opCodeInfos = make(map[Operation]OPCodeInfo)
	opCodes     = make(map[byte]OPCodeInfo)
)

func init() {
	for i := 0; i < 256; i++ {
		op := vm.OpCode(i)
		name := op.String()
		if strings.Contains(name, "not defined") {
			continue
		}
		info := OPCodeInfo{
			OPCode: Operation(name),
			Byte:   byte(i),
		}
		if op >= vm.PUSH1 && op <= vm.PUSH32 {
			info.ImmediateSize = int(op-vm.PUSH1) + 1
		}
		opCodes[info.Byte] = info
		opCodeInfos[info.OPCode] = info
	}
}

func GetOPCodeInfoByByte(b byte) (OPCodeInfo, bool) {
	info, ok := opCodes[b]
	return info, ok
}

func GetOPCodeInfoByOperation(key Operation) (OPCodeInfo, bool) {
	info, ok := opCodeInfos[key]
	return info, ok
}

// PushWidth 返回PUSHn的n，非PUSH指令返回0
func PushWidth(op string) int {
	info, ok := opCodeInfos[Operation(op)]
	if !ok {
		return 0
	}
	return info.ImmediateSize
}

func IsPush(op string) bool {
	return PushWidth(op) > 0
}

func IsDup(op string) bool {
	return strings.HasPrefix(op, "DUP")
}

// Push 返回PUSHn的助记符
func Push(n int) Operation {
	return Operation(fmt.Sprintf("PUSH%d", n))
}
