package project

import (
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/pkg/errors"

	"gfuzz/internal/selector"
)

// Descriptor 一个可调用的外部函数：所属合约和ABI方法
type Descriptor struct {
	Contract ContractIdentity
	Method   abi.Method
}

func (d Descriptor) Selector() selector.Selector {
	sel, _ := selector.FromBytes(d.Method.ID)
	return sel
}

// Calldata 选择器 + ABI编码的参数
func (d Descriptor) Calldata(args ...interface{}) ([]byte, error) {
	packed, err := d.Method.Inputs.Pack(args...)
	if err != nil {
		return nil, errors.Wrapf(err, "pack %s", d.Method.Sig)
	}
	return append(append([]byte{}, d.Method.ID...), packed...), nil
}

// Registry 选择器 -> 调用描述，从ABI一次性构建
type Registry struct {
	bySelector map[selector.Selector][]Descriptor
	byName     map[string]map[string]Descriptor
}

func NewRegistry(contracts []Contract) *Registry {
	r := &Registry{
		bySelector: make(map[selector.Selector][]Descriptor),
		byName:     make(map[string]map[string]Descriptor),
	}
	for _, c := range contracts {
		contractABI := c.GetABI()
		if contractABI == nil {
			continue
		}
		id := identityOf(c)
		methods := make(map[string]Descriptor, len(contractABI.Methods))
		for name, method := range contractABI.Methods {
			d := Descriptor{Contract: id, Method: method}
			methods[name] = d
			r.bySelector[d.Selector()] = append(r.bySelector[d.Selector()], d)
		}
		r.byName[id.Name] = methods
	}
	for sel := range r.bySelector {
		sortDescriptors(r.bySelector[sel])
	}
	return r
}

// Lookup 同一个选择器可能由多个合约实现
func (r *Registry) Lookup(sel selector.Selector) []Descriptor {
	return r.bySelector[sel]
}

// LookupMethod 按合约名和ABI方法名查找，重载方法使用go-ethereum的命名（transfer0等）
func (r *Registry) LookupMethod(contract, method string) (Descriptor, bool) {
	d, ok := r.byName[contract][method]
	return d, ok
}

func (r *Registry) Len() int {
	return len(r.bySelector)
}

func sortDescriptors(descriptors []Descriptor) {
	sort.Slice(descriptors, func(i, j int) bool {
		return identityLess(descriptors[i].Contract, descriptors[j].Contract)
	})
}
