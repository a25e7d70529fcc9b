package solidity

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gfuzz/internal/evmtest"
	"gfuzz/internal/selector"
)

func TestExtractVersionFromData(t *testing.T) {
	var testCases = []struct {
		Data     string
		Expected string
		Error    bool
	}{
		{"pragma solidity ^0.4.24;\ncontract A {}", "^0.4.24", false},
		{"// SPDX-License-Identifier: MIT\n  pragma solidity 0.8.17;\r\n", "0.8.17", false},
		{"pragma solidity >=0.4.22 <0.6.0;", ">=0.4.22 <0.6.0", false},
		{"contract A {}", "", true},
	}
	for _, tc := range testCases {
		version, err := ExtractVersionFromData([]byte(tc.Data))
		assert.Equal(t, tc.Expected, version)
		assert.Equal(t, tc.Error, err != nil)
	}
}

func TestNormalizeVersion(t *testing.T) {
	assert.Equal(t, "0.4.24", NormalizeVersion("^0.4.24"))
	assert.Equal(t, "0.4.22", NormalizeVersion(">=0.4.22 <0.6.0"))
	assert.Equal(t, "0.8.17", NormalizeVersion("0.8.17"))
	assert.Equal(t, "", NormalizeVersion(""))
}

func TestContractsFromStandardJSON(t *testing.T) {
	bank := evmtest.Bank()
	data := fmt.Sprintf(`{
		"errors": [{"severity": "warning", "formattedMessage": "unused variable"}],
		"contracts": {
			"bank.sol": {
				"Bank": {
					"abi": %s,
					"evm": {
						"bytecode": {"object": "60806040"},
						"deployedBytecode": {"object": "%s"},
						"methodIdentifiers": {"deposit()": "d0e30db0", "withdraw(uint256)": "2e1a7d4d"}
					}
				},
				"Abstract": {"abi": [], "evm": {"bytecode": {"object": ""}, "deployedBytecode": {"object": ""}}}
			}
		}
	}`, bank.ABI(), bank.Hex()[2:])
	contracts, err := ContractsFromStandardJSON([]byte(data))
	require.Nil(t, err)
	require.Equal(t, 2, len(contracts))
	assert.Equal(t, "Abstract", contracts[0].Name)
	assert.Empty(t, contracts[0].Disassembly.GetInstructions())
	assert.Equal(t, "Bank", contracts[1].Name)
	assert.Equal(t, selector.NewSet(bank.Selectors()...), contracts[1].InterfaceSelectors())
	assert.Equal(t, 2, len(contracts[1].CreationDisassembly.GetInstructions()))

	_, err = ContractsFromStandardJSON([]byte(`{"errors":[{"severity":"error","formattedMessage":"ParserError: Expected ';'"}]}`))
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "ParserError")
}

func TestGetSolcBinary(t *testing.T) {
	var requests []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.Path)
		switch r.URL.Path {
		case "/list.json":
			fmt.Fprint(w, `{"builds":[
				{"path":"soljson-v0.4.24-nightly.2018.5.16+commit.7f965c86.js","version":"0.4.24"},
				{"path":"soljson-v0.4.24+commit.e67f0147.js","version":"0.4.24"},
				{"path":"soljson-v0.4.2+commit.af6afb04.js","version":"0.4.2"}
			]}`)
		case "/soljson-v0.4.24+commit.e67f0147.js":
			fmt.Fprint(w, "// solc")
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	cfg := SolcConfig{BinaryDir: filepath.Join(t.TempDir(), "solc"), Endpoint: server.URL + "/"}
	ctx := context.Background()

	file, err := PrepareSolcBinary(ctx, cfg, "^0.4.24")
	require.Nil(t, err)
	assert.Equal(t, filepath.Join(cfg.BinaryDir, "soljson-v0.4.24+commit.e67f0147.js"), file)
	data, err := os.ReadFile(file)
	assert.Nil(t, err)
	assert.Equal(t, "// solc", string(data))

	// 第二次使用本地文件
	_, err = PrepareSolcBinary(ctx, cfg, "0.4.24")
	assert.Nil(t, err)
	assert.Equal(t, []string{"/list.json", "/soljson-v0.4.24+commit.e67f0147.js"}, requests)

	_, err = PrepareSolcBinary(ctx, cfg, "0.9.0")
	assert.NotNil(t, err)
}
