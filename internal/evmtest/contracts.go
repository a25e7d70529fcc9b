package evmtest

import (
	"encoding/json"
	"fmt"
	"strings"

	"gfuzz/internal/selector"
)

// Function 样例合约中的一个外部函数，Body写入函数体JUMPDEST与返回JUMP之间的指令
type Function struct {
	Signature string
	Body      func(a *Assembler)
}

// Contract 样例合约
type Contract struct {
	Name      string
	Functions []Function

	// 选择器比较写成 PUSH4 sel, DUP2, EQ；否则写成 DUP1, PUSH4 sel, EQ
	DupCompare bool
}

// Assemble 按solc 0.4.x的运行时代码布局生成字节码：
// 前导检查、PUSH4 0xffffffff / PUSH29 取选择器、逐个比较跳转、fallback、
// 每个函数的跳板（PUSH2 ret, PUSH2 body, JUMP）和函数体
func (c *Contract) Assemble() *Assembler {
	a := NewAssembler()
	a.PushHex("60").PushHex("40").Op("MSTORE")
	a.PushHex("04").Op("CALLDATASIZE", "LT").PushLabel("fallback").Op("JUMPI")
	a.PushHex("ffffffff")
	a.Push(append([]byte{0x01}, make([]byte, 28)...))
	a.PushHex("00").Op("CALLDATALOAD", "DIV", "AND")
	for i, f := range c.Functions {
		if c.DupCompare {
			a.PushSelector(selector.FromSignature(f.Signature)).Op("DUP2", "EQ")
		} else {
			a.Op("DUP1").PushSelector(selector.FromSignature(f.Signature)).Op("EQ")
		}
		a.PushLabel(wrapperLabel(i)).Op("JUMPI")
	}
	a.Label("fallback").PushHex("00").Op("DUP1", "REVERT")
	for i, f := range c.Functions {
		a.Label(wrapperLabel(i))
		a.PushLabel(returnLabel(i)).PushLabel(BodyLabel(i)).Op("JUMP")
		a.Label(returnLabel(i)).Op("STOP")
		a.Label(BodyLabel(i))
		if f.Body != nil {
			f.Body(a)
		}
		a.Op("JUMP")
	}
	return a
}

func (c *Contract) Hex() string {
	return c.Assemble().Hex()
}

func (c *Contract) Signatures() []string {
	result := make([]string, 0, len(c.Functions))
	for _, f := range c.Functions {
		result = append(result, f.Signature)
	}
	return result
}

func (c *Contract) Selectors() []selector.Selector {
	result := make([]selector.Selector, 0, len(c.Functions))
	for _, f := range c.Functions {
		result = append(result, selector.FromSignature(f.Signature))
	}
	return result
}

// ABI 只包含函数条目的ABI JSON
func (c *Contract) ABI() string {
	type argument struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	type entry struct {
		Type            string     `json:"type"`
		Name            string     `json:"name"`
		Inputs          []argument `json:"inputs"`
		Outputs         []argument `json:"outputs"`
		StateMutability string     `json:"stateMutability"`
	}
	entries := make([]entry, 0, len(c.Functions))
	for _, f := range c.Functions {
		open := strings.Index(f.Signature, "(")
		e := entry{
			Type:            "function",
			Name:            f.Signature[:open],
			Inputs:          []argument{},
			Outputs:         []argument{},
			StateMutability: "nonpayable",
		}
		params := strings.TrimSuffix(f.Signature[open+1:], ")")
		if params != "" {
			for i, typ := range strings.Split(params, ",") {
				e.Inputs = append(e.Inputs, argument{Name: fmt.Sprintf("arg%d", i), Type: typ})
			}
		}
		entries = append(entries, e)
	}
	data, _ := json.Marshal(entries)
	return string(data)
}

func wrapperLabel(i int) string { return fmt.Sprintf("wrapper_%d", i) }
func returnLabel(i int) string  { return fmt.Sprintf("return_%d", i) }

// BodyLabel 第i个函数体的标签
func BodyLabel(i int) string { return fmt.Sprintf("body_%d", i) }

// callWith 以sel为调用数据发起CALL
func callWith(sel selector.Selector) func(a *Assembler) {
	return func(a *Assembler) {
		a.PushSelector(sel).PushHex("ffffffff").Op("AND")
		a.PushHex("00").Op("MSTORE")
		a.PushHex("00").PushHex("00").PushHex("04").PushHex("1c")
		a.PushHex("00").Op("CALLER", "GAS", "CALL", "POP")
	}
}

// Bank 存取款合约，withdraw通过CALL把钱转给调用者并回调receiveFunds()
func Bank() *Contract {
	return &Contract{
		Name:       "Bank",
		DupCompare: true,
		Functions: []Function{
			{
				Signature: "deposit()",
				Body: func(a *Assembler) {
					// 没有CALL，这个常量不算内部调用
					a.PushHex("aaaaaaaa").Op("POP")
					a.Op("CALLVALUE", "CALLER", "SSTORE")
				},
			},
			{
				Signature: "withdraw(uint256)",
				Body:      callWith(selector.FromSignature("receiveFunds()")),
			},
		},
	}
}

// Attacker 调用Bank.withdraw并在receiveFunds中再次进入withdraw
func Attacker() *Contract {
	withdraw := selector.FromSignature("withdraw(uint256)")
	return &Contract{
		Name: "Attacker",
		Functions: []Function{
			{Signature: "attack()", Body: callWith(withdraw)},
			{Signature: "receiveFunds()", Body: callWith(withdraw)},
			{
				Signature: "owner()",
				Body: func(a *Assembler) {
					a.PushHex("00").Op("SLOAD")
				},
			},
		},
	}
}
