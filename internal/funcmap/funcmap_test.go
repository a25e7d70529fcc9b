package funcmap

import (
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gfuzz/internal/disassembler"
	"gfuzz/internal/evmtest"
	"gfuzz/internal/selector"
)

// writePrologue 写入solc 0.4.x的分发器前导，fallback标签由调用方定义
func writePrologue(a *evmtest.Assembler) {
	a.PushHex("60").PushHex("40").Op("MSTORE")
	a.PushHex("04").Op("CALLDATASIZE", "LT").PushLabel("fallback").Op("JUMPI")
	a.PushHex("ffffffff").Push(append([]byte{0x01}, make([]byte, 28)...))
	a.PushHex("00").Op("CALLDATALOAD", "DIV", "AND")
}

func disassemble(t *testing.T, code string) *disassembler.Disassembly {
	d, err := disassembler.NewDisassembly(code)
	require.Nil(t, err)
	return d
}

func sel(t *testing.T, s string) selector.Selector {
	result, err := selector.Parse(s)
	require.Nil(t, err)
	return result
}

func TestExtractEntriesMatchesSignatureHashes(t *testing.T) {
	for _, dup := range []bool{true, false} {
		c := evmtest.Attacker()
		c.DupCompare = dup
		d := disassemble(t, c.Hex())

		dispatcher, err := LocateDispatcher(d.GetInstructions())
		require.Nil(t, err)
		entries := ExtractEntries(dispatcher)

		var got []selector.Selector
		for _, e := range entries {
			got = append(got, e.Selector)
		}
		assert.Equal(t, c.Selectors(), got, "dup compare %v", dup)
		for _, e := range entries {
			_, err := d.JumpTable().Index(e.Target)
			assert.Nil(t, err)
		}
	}
}

func TestAnalyzeBank(t *testing.T) {
	d := disassemble(t, evmtest.Bank().Hex())
	result, skipped, err := Analyze(d)
	assert.Nil(t, err)
	assert.Empty(t, skipped)
	assert.Equal(t, Map{
		selector.FromSignature("deposit()"):         selector.NewSet(),
		selector.FromSignature("withdraw(uint256)"): selector.NewSet(selector.FromSignature("receiveFunds()")),
	}, result)
}

func TestAnalyzeAttacker(t *testing.T) {
	withdraw := selector.FromSignature("withdraw(uint256)")
	d := disassemble(t, evmtest.Attacker().Hex())
	result, skipped, err := Analyze(d)
	assert.Nil(t, err)
	assert.Empty(t, skipped)
	assert.Equal(t, Map{
		selector.FromSignature("attack()"):       selector.NewSet(withdraw),
		selector.FromSignature("receiveFunds()"): selector.NewSet(withdraw),
		selector.FromSignature("owner()"):        selector.NewSet(),
	}, result)
}

func TestLocateDispatcher(t *testing.T) {
	testCases := []struct {
		name      string
		build     func(a *evmtest.Assembler)
		wantErr   bool
		wantFirst string
	}{
		{
			name: "AtStreamStart",
			build: func(a *evmtest.Assembler) {
				a.PushHex("ffffffff").Push(make([]byte, 29)).Op("STOP")
			},
			wantFirst: "PUSH4",
		},
		{
			name: "WrongMask",
			build: func(a *evmtest.Assembler) {
				a.PushHex("fffffffe").Push(make([]byte, 29)).Op("STOP")
			},
			wantErr: true,
		},
		{
			name: "MaskWithoutShift",
			build: func(a *evmtest.Assembler) {
				a.PushHex("ffffffff").PushHex("e0").Op("SHR", "STOP")
			},
			wantErr: true,
		},
		{
			name: "Prologue",
			build: func(a *evmtest.Assembler) {
				writePrologue(a)
				a.Label("fallback").Op("STOP")
			},
			wantFirst: "PUSH1",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := evmtest.NewAssembler()
			tc.build(a)
			d := disassemble(t, a.Hex())
			dispatcher, err := LocateDispatcher(d.GetInstructions())
			if tc.wantErr {
				assert.True(t, errors.Is(err, ErrDispatcherNotFound))
				return
			}
			require.Nil(t, err)
			assert.Equal(t, tc.wantFirst, dispatcher[0].OPCode)
			assert.Equal(t, 0, dispatcher[0].Address)
		})
	}
}

func TestAnalyzeNoDispatcher(t *testing.T) {
	d := disassemble(t, "0x6080604052348015600f57600080fd5b50")
	_, _, err := Analyze(d)
	assert.True(t, errors.Is(err, ErrDispatcherNotFound))
}

func TestExtractEntriesStopsAtSTOP(t *testing.T) {
	a := evmtest.NewAssembler()
	writePrologue(a)
	a.PushHex("11111111").Op("DUP2", "EQ").PushHex("0050").Op("JUMPI")
	a.Op("DUP1").PushHex("22222222").Op("EQ").PushHex("60").Op("JUMPI")
	// 不是比较形式
	a.PushHex("33333333").Op("DUP2", "LT").PushHex("0070").Op("JUMPI")
	// EQ之后不是PUSH
	a.PushHex("44444444").Op("EQ", "JUMPI")
	a.Label("fallback").Op("STOP")
	a.PushHex("55555555").Op("DUP2", "EQ").PushHex("0090").Op("JUMPI")

	instructions, _ := disassembler.Disassemble(mustBytes(t, a))
	entries := ExtractEntries(instructions)
	assert.Equal(t, []Entry{
		{Selector: sel(t, "0x11111111"), Target: 0x50},
		{Selector: sel(t, "0x22222222"), Target: 0x60},
	}, entries)
}

func TestExtractEntriesKeepsDuplicates(t *testing.T) {
	a := evmtest.NewAssembler()
	a.PushHex("11111111").Op("EQ").PushHex("0050").Op("JUMPI")
	a.PushHex("11111111").Op("EQ").PushHex("0060").Op("JUMPI")
	instructions, _ := disassembler.Disassemble(mustBytes(t, a))
	assert.Equal(t, 2, len(ExtractEntries(instructions)))
}

func TestAnalyzeSkipsBrokenSelectors(t *testing.T) {
	good := selector.FromSignature("good()")
	testCases := []struct {
		name    string
		broken  func(a *evmtest.Assembler)
		tail    func(a *evmtest.Assembler)
		wantErr error
	}{
		{
			name: "FunctionStartNotFound",
			broken: func(a *evmtest.Assembler) {
				a.PushHex("bad00001").Op("DUP2", "EQ").PushLabel("broken").Op("JUMPI")
			},
			tail: func(a *evmtest.Assembler) {
				a.Label("broken").Op("CALLER", "STOP")
			},
			wantErr: ErrFunctionStartNotFound,
		},
		{
			name: "TargetInsidePushOperand",
			broken: func(a *evmtest.Assembler) {
				a.PushHex("bad00001").Op("DUP2", "EQ").PushHex("0001").Op("JUMPI")
			},
			tail:    func(a *evmtest.Assembler) {},
			wantErr: disassembler.ErrInvalidJumpTarget,
		},
		{
			name: "FunctionEndNotFound",
			broken: func(a *evmtest.Assembler) {
				a.PushHex("bad00001").Op("DUP2", "EQ").PushLabel("broken").Op("JUMPI")
			},
			tail: func(a *evmtest.Assembler) {
				a.Label("broken").PushLabel("broken_ret").PushLabel("broken_body").Op("JUMP")
				a.Label("broken_ret").Op("STOP")
				a.Label("broken_body").Op("CALLER", "POP")
			},
			wantErr: ErrFunctionEndNotFound,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := evmtest.NewAssembler()
			writePrologue(a)
			a.PushSelector(good).Op("DUP2", "EQ").PushLabel("good").Op("JUMPI")
			tc.broken(a)
			a.Label("fallback").PushHex("00").Op("DUP1", "REVERT")
			a.Label("good").PushLabel("good_ret").PushLabel("good_body").Op("JUMP")
			a.Label("good_ret").Op("STOP")
			a.Label("good_body").PushHex("aaaaaaaa").Op("GAS", "CALL", "POP", "JUMP")
			tc.tail(a)

			result, skipped, err := Analyze(disassemble(t, a.Hex()))
			require.Nil(t, err)
			assert.Equal(t, Map{good: selector.NewSet(sel(t, "0xaaaaaaaa"))}, result)
			require.Equal(t, 1, len(skipped))
			assert.Equal(t, sel(t, "0xbad00001"), skipped[0].Entry.Selector)
			assert.True(t, errors.Is(skipped[0].Err, tc.wantErr), "%v", skipped[0].Err)
		})
	}
}

func TestExtractInnerCalls(t *testing.T) {
	testCases := []struct {
		name string
		body func(a *evmtest.Assembler)
		want selector.Set
	}{
		{
			name: "NoCall",
			body: func(a *evmtest.Assembler) {
				a.PushHex("aaaaaaaa").PushHex("bbbbbbbb").Op("DELEGATECALL", "JUMP")
			},
			want: selector.NewSet(),
		},
		{
			name: "CallExcludesMask",
			body: func(a *evmtest.Assembler) {
				a.PushHex("aaaaaaaa").PushHex("ffffffff").PushHex("bbbbbbbb").Op("CALL", "JUMP")
			},
			want: selector.NewSet(sel(t, "0xaaaaaaaa"), sel(t, "0xbbbbbbbb")),
		},
		{
			name: "CallAfterLiterals",
			body: func(a *evmtest.Assembler) {
				a.Op("CALL").PushHex("cccccccc").PushHex("dddd").Op("JUMP")
			},
			want: selector.NewSet(sel(t, "0xcccccccc")),
		},
		{
			name: "CallWithoutLiterals",
			body: func(a *evmtest.Assembler) {
				a.Op("GAS", "CALL", "JUMP")
			},
			want: selector.NewSet(),
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := evmtest.NewAssembler()
			tc.body(a)
			body, _ := disassembler.Disassemble(mustBytes(t, a))
			assert.Equal(t, tc.want, ExtractInnerCalls(body))
		})
	}
}

func TestExtractFunctionBody(t *testing.T) {
	a := evmtest.NewAssembler()
	a.Label("start").Op("CALLER").PushHex("0010").Op("JUMPI", "POP", "JUMP", "STOP")
	instructions, _ := disassembler.Disassemble(mustBytes(t, a))
	body, err := ExtractFunctionBody(0, disassembler.NewJumpTable(instructions), instructions)
	require.Nil(t, err)
	var ops []string
	for _, ins := range body {
		ops = append(ops, ins.OPCode)
	}
	assert.Equal(t, []string{"JUMPDEST", "CALLER", "PUSH2", "JUMPI", "POP", "JUMP"}, ops)
}

func TestMapMerge(t *testing.T) {
	s1, s2, s3 := sel(t, "0x00000001"), sel(t, "0x00000002"), sel(t, "0x00000003")
	m := Map{s1: selector.NewSet(s2)}
	m.Merge(Map{s1: selector.NewSet(s3), s2: selector.NewSet()})
	assert.Equal(t, Map{s1: selector.NewSet(s2, s3), s2: selector.NewSet()}, m)
}

func mustBytes(t *testing.T, a *evmtest.Assembler) []byte {
	code, err := a.Bytes()
	require.Nil(t, err)
	return code
}

// testdata/wbnb_runtime.hex 为链上WBNB合约的运行时字节码（solc 0.4.x编译）
func TestCompiledSelectorTable(t *testing.T) {
	data, err := os.ReadFile("testdata/wbnb_runtime.hex")
	require.Nil(t, err)
	d := disassemble(t, string(data))
	assert.False(t, d.Truncated())

	instructions := d.GetInstructions()
	jumpTable := d.JumpTable()
	for index, ins := range instructions {
		got, err := jumpTable.Index(ins.Address)
		require.Nil(t, err)
		require.Equal(t, index, got)
	}

	testCases := []struct {
		signature string
		target    int
	}{
		{"name()", 0xb9},
		{"approve(address,uint256)", 0x147},
		{"totalSupply()", 0x1a1},
		{"transferFrom(address,address,uint256)", 0x1ca},
		{"withdraw(uint256)", 0x243},
		{"decimals()", 0x266},
		{"balanceOf(address)", 0x295},
		{"symbol()", 0x2e2},
		{"transfer(address,uint256)", 0x370},
		{"deposit()", 0x3ca},
		{"allowance(address,address)", 0x3d4},
	}
	entries := ExtractEntries(instructions)
	require.Equal(t, len(testCases), len(entries))
	for i, tc := range testCases {
		assert.Equal(t, selector.FromSignature(tc.signature), entries[i].Selector, tc.signature)
		assert.Equal(t, tc.target, entries[i].Target, tc.signature)
	}

	// 这个编译器版本先 PUSH29 再 PUSH4 0xffffffff，不是定位器识别的形式
	_, err = LocateDispatcher(instructions)
	assert.True(t, errors.Is(err, ErrDispatcherNotFound))
	_, _, err = Analyze(d)
	assert.True(t, errors.Is(err, ErrDispatcherNotFound))
}
