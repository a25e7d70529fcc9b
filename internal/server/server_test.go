package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gfuzz/internal/config"
	"gfuzz/internal/evmtest"
	"gfuzz/internal/gfuzz"
	"gfuzz/internal/selector"
)

func newTestServer(t *testing.T) *httptest.Server {
	s, err := New(config.Default())
	require.Nil(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url string, body interface{}) *http.Response {
	data, err := json.Marshal(body)
	require.Nil(t, err)
	resp, err := http.Post(url, "application/json", strings.NewReader(string(data)))
	require.Nil(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func contractInput(c *evmtest.Contract) ContractInput {
	return ContractInput{Name: c.Name, Bytecode: c.Hex(), ABI: json.RawMessage(c.ABI())}
}

func TestSelectors(t *testing.T) {
	ts := newTestServer(t)
	resp := post(t, ts.URL+"/selectors", SelectorsRequest{
		Contracts: []ContractInput{contractInput(evmtest.Bank()), contractInput(evmtest.Attacker())},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var report gfuzz.SelectorReport
	require.Nil(t, json.NewDecoder(resp.Body).Decode(&report))
	withdraw := selector.FromSignature("withdraw(uint256)")
	receive := selector.FromSignature("receiveFunds()")
	assert.Equal(t, []selector.Selector{receive}, report.Graph[withdraw])
	require.Equal(t, 1, len(report.Contracts[withdraw]))
	assert.Equal(t, "Attacker", report.Contracts[withdraw][0].Name)
}

func TestSelectorsBadRequests(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		name string
		body interface{}
	}{
		{"NoContracts", SelectorsRequest{}},
		{"BadBytecode", SelectorsRequest{Contracts: []ContractInput{{Name: "X", Bytecode: "0xzz"}}}},
		{"BadAddress", SelectorsRequest{Contracts: []ContractInput{{Name: "X", Bytecode: "00", Address: "0x12"}}}},
		{"BadArtifact", SelectorsRequest{Artifacts: []json.RawMessage{json.RawMessage(`{}`)}}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			resp := post(t, ts.URL+"/selectors", test.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	resp, err := http.Post(ts.URL+"/selectors", "application/json", strings.NewReader("{"))
	require.Nil(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/selectors", "/reentrancy"} {
		resp, err := http.Get(ts.URL + path)
		require.Nil(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, path)
	}
}

func TestReentrancy(t *testing.T) {
	ts := newTestServer(t)
	resp := post(t, ts.URL+"/reentrancy", gfuzz.TraceInput{
		Contract: "Bank",
		Text:     "Agent.attack\n├── Bank.withdraw\n│   └── Agent.receiveFunds\n│       └── Bank.withdraw\n",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report gfuzz.TraceReport
	require.Nil(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.True(t, report.Reentrancy.Found)
	assert.Equal(t, "Agent.attack-Bank.withdraw-Agent.receiveFunds-Bank.withdraw", report.Reentrancy.Path)
	assert.Equal(t, 1, len(report.Issues))

	resp = post(t, ts.URL+"/reentrancy", gfuzz.TraceInput{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetrics(t *testing.T) {
	ts := newTestServer(t)
	post(t, ts.URL+"/reentrancy", gfuzz.TraceInput{Text: "A.run\n├── B.call\n"})

	resp, err := http.Get(ts.URL + "/metrics")
	require.Nil(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.Nil(t, err)
	assert.Contains(t, string(body), "gfuzz_traces_parsed_total 1")
}

func TestSelectorsFunctionTarget(t *testing.T) {
	ts := newTestServer(t)
	contracts := []ContractInput{contractInput(evmtest.Bank()), contractInput(evmtest.Attacker())}

	resp := post(t, ts.URL+"/selectors", SelectorsRequest{Contracts: contracts, Function: "Attacker.attack"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report gfuzz.SelectorReport
	require.Nil(t, json.NewDecoder(resp.Body).Decode(&report))
	require.Equal(t, 1, len(report.Targets))
	assert.Equal(t, "attack()", report.Targets[0].Function)
	assert.Equal(t, selector.FromSignature("attack()").String(), report.Targets[0].Calldata)
	require.Equal(t, 1, len(report.Targets[0].Callees))
	assert.Equal(t, "Bank", report.Targets[0].Callees[0].Name)

	resp = post(t, ts.URL+"/selectors", SelectorsRequest{Contracts: contracts, Function: "Bank.attack"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
