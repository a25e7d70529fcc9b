package project

import (
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"gfuzz/internal/disassembler"
	"gfuzz/internal/selector"
)

// ContractIdentity 标识选择器属于哪个合约
type ContractIdentity struct {
	Name    string         `json:"name"`
	Address common.Address `json:"address"`
}

func (id ContractIdentity) String() string {
	return id.Name + "@" + id.Address.Hex()
}

// Contract 参与分析的合约
type Contract interface {
	GetName() string
	GetAddress() common.Address
	GetDisassembly() *disassembler.Disassembly
	// GetABI 没有ABI时返回nil
	GetABI() *abi.ABI
	// InterfaceSelectors 合约接口中声明的全部选择器
	InterfaceSelectors() selector.Set
	BytecodeHash() (string, error)
}

func identityOf(c Contract) ContractIdentity {
	return ContractIdentity{Name: c.GetName(), Address: c.GetAddress()}
}

// 按合约名排序，同名按地址
func identityLess(a, b ContractIdentity) bool {
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.Address.Hex() < b.Address.Hex()
}

func sortIdentities(ids []ContractIdentity) {
	sort.Slice(ids, func(i, j int) bool {
		return identityLess(ids[i], ids[j])
	})
}

// SelectorIndex 选择器 -> 声明了该选择器的合约
type SelectorIndex map[selector.Selector][]ContractIdentity

func NewSelectorIndex(contracts []Contract) SelectorIndex {
	index := make(SelectorIndex)
	for _, c := range contracts {
		id := identityOf(c)
		for sel := range c.InterfaceSelectors() {
			if containsIdentity(index[sel], id) {
				continue
			}
			index[sel] = append(index[sel], id)
		}
	}
	for sel := range index {
		sortIdentities(index[sel])
	}
	return index
}

// Owners 没有合约声明时返回nil
func (index SelectorIndex) Owners(sel selector.Selector) []ContractIdentity {
	return index[sel]
}

func containsIdentity(ids []ContractIdentity, id ContractIdentity) bool {
	for i := range ids {
		if ids[i] == id {
			return true
		}
	}
	return false
}
