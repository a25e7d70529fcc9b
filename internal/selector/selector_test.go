package selector

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromSignature(t *testing.T) {
	var testCases = []struct {
		Signature string
		Expected  string
	}{
		{"transfer(address,uint256)", "0xa9059cbb"},
		{"balanceOf(address)", "0x70a08231"},
		{"withdraw(uint256)", "0x2e1a7d4d"},
		{"name()", "0x06fdde03"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.Expected, FromSignature(tc.Signature).String(), tc.Signature)
	}
}

func TestParse(t *testing.T) {
	s, err := Parse("0x06FDDE03")
	assert.Nil(t, err)
	assert.Equal(t, FromSignature("name()"), s)

	_, err = Parse("0x1234")
	assert.NotNil(t, err)
	_, err = Parse("xyz")
	assert.NotNil(t, err)
}

func TestSet(t *testing.T) {
	a, _ := Parse("0xaaaaaaaa")
	b, _ := Parse("0xbbbbbbbb")
	set := NewSet(b)
	set.Union(NewSet(a, b))
	assert.Equal(t, []Selector{a, b}, set.Sorted())
	assert.True(t, set.Contains(a))
	assert.False(t, set.Contains(Mask))
}

func TestSelectorJSON(t *testing.T) {
	m := map[Selector][]Selector{Mask: {FromSignature("name()")}}
	data, err := json.Marshal(m)
	assert.Nil(t, err)
	assert.Equal(t, `{"0xffffffff":["0x06fdde03"]}`, string(data))

	var decoded map[Selector][]Selector
	assert.Nil(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, m, decoded)
}
