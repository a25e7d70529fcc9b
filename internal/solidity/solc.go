package solidity

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"strings"

	"github.com/Notation/solc-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// for older version, compiler wrapper is not standard
// less than version 0.5.0, use compileJSON
// greater or equal 0.5.0 and less than 0.6.0, use solidity_compile('string', 'number')
// greater or equal 0.6.0, use solidity_compile('string', 'number', 'number')

// solc compiler input & output docs:
// https://docs.soliditylang.org/en/v0.5.0/using-the-compiler.html#compiler-input-and-output-json-description

const (
	DefaultSolcBinaryDir      = "solc_binary"
	DefaultSolcBinaryEndpoint = "https://raw.githubusercontent.com/ethereum/solc-bin/gh-pages/wasm/"
	SolcBinaryMetaFile        = "list.json"
)

type SolcConfig struct {
	BinaryDir string
	Endpoint  string
}

func PrepareSolcBinary(ctx context.Context, cfg SolcConfig, version string) (string, error) {
	solcMeta, err := NewSolcBinaryMeta(ctx, cfg)
	if err != nil {
		return "", errors.Wrap(err, "NewSolcBinaryMeta")
	}
	solcFile, err := solcMeta.GetSolcBinary(ctx, version)
	if err != nil {
		return "", errors.Wrap(err, "GetSolcBinary")
	}
	return solcFile, nil
}

func GetSolcJson(ctx context.Context, cfg SolcConfig, file string) (*solc.Output, error) {
	fileData, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, "ReadFile")
	}
	pragma, err := ExtractVersionFromData(fileData)
	if err != nil {
		return nil, errors.Wrap(err, "ExtractVersionFromData")
	}
	version := NormalizeVersion(pragma)
	solcFile, err := PrepareSolcBinary(ctx, cfg, version)
	if err != nil {
		return nil, errors.Wrap(err, "PrepareSolcBinary")
	}
	log.Infof("compiling %s with solc %s", file, version)
	compiler, err := solc.NewFromFile(solcFile, version)
	if err != nil {
		return nil, errors.Wrap(err, "NewFromFile")
	}
	input := &solc.Input{
		Language: "Solidity",
		Sources: map[string]solc.SourceIn{
			file: {Content: string(fileData)},
		},
		Settings: solc.Settings{
			Optimizer: solc.Optimizer{
				Enabled: false,
			},
			OutputSelection: map[string]map[string][]string{
				"*": {
					"*": []string{
						"abi",
						"metadata",
						"evm.bytecode",
						"evm.deployedBytecode",
						"evm.methodIdentifiers",
					},
					"": []string{
						"ast",
					},
				},
			},
		},
	}
	return compiler.Compile(input)
}

// GetContractsFromFile 编译solidity文件，返回其中所有合约
func GetContractsFromFile(ctx context.Context, cfg SolcConfig, file string) ([]*EVMContract, error) {
	output, err := GetSolcJson(ctx, cfg, file)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(output)
	if err != nil {
		return nil, errors.Wrap(err, "Marshal")
	}
	return ContractsFromStandardJSON(data)
}

type standardOutput struct {
	Errors []struct {
		Severity         string `json:"severity"`
		FormattedMessage string `json:"formattedMessage"`
		Message          string `json:"message"`
	} `json:"errors"`
	Contracts map[string]map[string]struct {
		ABI json.RawMessage `json:"abi"`
		EVM struct {
			Bytecode struct {
				Object string `json:"object"`
			} `json:"bytecode"`
			DeployedBytecode struct {
				Object string `json:"object"`
			} `json:"deployedBytecode"`
			MethodIdentifiers map[string]string `json:"methodIdentifiers"`
		} `json:"evm"`
	} `json:"contracts"`
}

// ContractsFromStandardJSON 解析solc standard json输出，按文件名、合约名排序
func ContractsFromStandardJSON(data []byte) ([]*EVMContract, error) {
	var output standardOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, errors.Wrap(err, "Unmarshal")
	}
	var messages []string
	for _, e := range output.Errors {
		if e.Severity != "error" {
			log.Warnf("solc: %s", strings.TrimSpace(e.FormattedMessage))
			continue
		}
		message := e.FormattedMessage
		if message == "" {
			message = e.Message
		}
		messages = append(messages, strings.TrimSpace(message))
	}
	if len(messages) > 0 {
		return nil, errors.Errorf("compile failed: %s", strings.Join(messages, "; "))
	}

	files := make([]string, 0, len(output.Contracts))
	for file := range output.Contracts {
		files = append(files, file)
	}
	sort.Strings(files)
	var contracts []*EVMContract
	for _, file := range files {
		names := make([]string, 0, len(output.Contracts[file]))
		for name := range output.Contracts[file] {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			compiled := output.Contracts[file][name]
			c, err := NewEVMContract(name, compiled.EVM.DeployedBytecode.Object, compiled.EVM.Bytecode.Object)
			if err != nil {
				return nil, err
			}
			if err := c.SetABI(compiled.ABI); err != nil {
				return nil, err
			}
			c.MethodIdentifiers = compiled.EVM.MethodIdentifiers
			contracts = append(contracts, c)
		}
	}
	return contracts, nil
}

const PragmaSolidity = "pragma solidity "

// ExtractVersionFromData 提取版本号
func ExtractVersionFromData(fileData []byte) (string, error) {
	lines := strings.Split(string(fileData), "\n")
	for i := range lines {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, PragmaSolidity) {
			pre := strings.TrimPrefix(line, PragmaSolidity)
			return strings.TrimSpace(strings.TrimRight(pre, ";")), nil
		}
	}
	return "", errors.New("pragma solidity not found")
}

// NormalizeVersion ^0.4.24 -> 0.4.24，范围约束取第一个版本
func NormalizeVersion(pragma string) string {
	fields := strings.Fields(pragma)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimLeft(fields[0], "^~>=<")
}
