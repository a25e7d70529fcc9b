package solidity

import (
	"bytes"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"gfuzz/internal/disassembler"
	"gfuzz/internal/selector"
	"gfuzz/internal/util"
)

const (
	ContractAddressPattern = `(_{2}.{38})`
)

var regCode *regexp.Regexp

func init() {
	regCode, _ = regexp.Compile(ContractAddressPattern)
}

type EVMContract struct {
	Name    string
	Address common.Address

	Code        string
	Disassembly *disassembler.Disassembly

	CreationCode        string
	CreationDisassembly *disassembler.Disassembly

	ABI *abi.ABI
	// MethodIdentifiers 函数签名 -> 选择器，来自solc的evm.methodIdentifiers
	MethodIdentifiers map[string]string
}

// NewEVMContract 未链接的库地址占位符替换成固定地址后再反汇编
func NewEVMContract(name, code, creationCode string) (*EVMContract, error) {
	c := &EVMContract{
		Name:         name,
		Code:         replaceAddress(strings.TrimSpace(code)),
		CreationCode: replaceAddress(strings.TrimSpace(creationCode)),
	}
	var err error
	c.Disassembly, err = disassembler.NewDisassembly(c.Code)
	if err != nil {
		return nil, errors.Wrapf(err, "contract %s runtime code", name)
	}
	c.CreationDisassembly, err = disassembler.NewDisassembly(c.CreationCode)
	if err != nil {
		return nil, errors.Wrapf(err, "contract %s creation code", name)
	}
	return c, nil
}

// SetABI 空ABI不报错
func (c *EVMContract) SetABI(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	parsed, err := abi.JSON(bytes.NewReader(data))
	if err != nil {
		return errors.Wrapf(err, "contract %s abi", c.Name)
	}
	c.ABI = &parsed
	return nil
}

func (c *EVMContract) GetName() string {
	return c.Name
}

func (c *EVMContract) GetAddress() common.Address {
	return c.Address
}

func (c *EVMContract) GetDisassembly() *disassembler.Disassembly {
	return c.Disassembly
}

func (c *EVMContract) GetABI() *abi.ABI {
	return c.ABI
}

// InterfaceSelectors methodIdentifiers和ABI中声明的选择器
func (c *EVMContract) InterfaceSelectors() selector.Set {
	set := selector.NewSet()
	for _, id := range c.MethodIdentifiers {
		sel, err := selector.Parse(id)
		if err != nil {
			continue
		}
		set.Add(sel)
	}
	if c.ABI != nil {
		for _, method := range c.ABI.Methods {
			sel, err := selector.FromBytes(method.ID)
			if err != nil {
				continue
			}
			set.Add(sel)
		}
	}
	return set
}

func (c *EVMContract) BytecodeHash() (string, error) {
	codeStr, _, err := util.GetCodeHash(c.Code)
	return codeStr, err
}

func (c *EVMContract) CreationCodeHash() (string, error) {
	codeStr, _, err := util.GetCodeHash(c.CreationCode)
	return codeStr, err
}

func (c *EVMContract) GetEASM() string {
	return c.Disassembly.GetEASM()
}

func (c *EVMContract) GetCreationEASM() string {
	return c.CreationDisassembly.GetEASM()
}

// PlaceholderAddress 没有部署地址的合约按加载顺序分配地址，从1开始
func PlaceholderAddress(index int) common.Address {
	return common.BigToAddress(big.NewInt(int64(index) + 1))
}

func replaceAddress(code string) string {
	return regCode.ReplaceAllString(code, strings.Repeat("aa", 20))
}
