// Package selector 函数选择器：函数签名keccak256哈希的前4个字节
package selector

import (
	"encoding/hex"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// Mask 分发器中用于截取选择器的掩码，不是任何函数的选择器
var Mask = Selector{0xff, 0xff, 0xff, 0xff}

type Selector [4]byte

// FromSignature 例如 withdraw(uint256) -> 0x2e1a7d4d
func FromSignature(signature string) Selector {
	var s Selector
	copy(s[:], crypto.Keccak256([]byte(signature))[:4])
	return s
}

func FromBytes(b []byte) (Selector, error) {
	var s Selector
	if len(b) != 4 {
		return s, errors.Errorf("selector must be 4 bytes, got %d", len(b))
	}
	copy(s[:], b)
	return s, nil
}

// Parse 解析 0x6289d385 或 6289d385
func Parse(str string) (Selector, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(str), "0x"))
	if err != nil {
		return Selector{}, errors.Wrapf(err, "parse selector %q", str)
	}
	return FromBytes(b)
}

func (s Selector) String() string {
	return "0x" + hex.EncodeToString(s[:])
}

func (s Selector) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Selector) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Set 选择器集合
type Set map[Selector]struct{}

func NewSet(selectors ...Selector) Set {
	set := make(Set, len(selectors))
	for _, s := range selectors {
		set[s] = struct{}{}
	}
	return set
}

func (set Set) Add(s Selector) {
	set[s] = struct{}{}
}

func (set Set) Contains(s Selector) bool {
	_, ok := set[s]
	return ok
}

// Union 把other合并进set
func (set Set) Union(other Set) {
	for s := range other {
		set[s] = struct{}{}
	}
}

// Sorted 按字节序排列，便于输出和比较
func (set Set) Sorted() []Selector {
	result := make([]Selector, 0, len(set))
	for s := range set {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool {
		return Less(result[i], result[j])
	})
	return result
}

func Less(a, b Selector) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
