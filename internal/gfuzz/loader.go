package gfuzz

import (
	"context"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"

	"gfuzz/internal/project"
	"gfuzz/internal/solidity"
)

// Loader 加载待分析的合约：solidity源文件、编译产物或十六进制字节码
type Loader struct {
	solc      solidity.SolcConfig
	contracts []*solidity.EVMContract
}

func NewLoader(solc solidity.SolcConfig) *Loader {
	return &Loader{solc: solc}
}

func (l *Loader) GetContracts() []*solidity.EVMContract {
	return l.contracts
}

// Contracts 转换成项目分析的输入
func (l *Loader) Contracts() []project.Contract {
	result := make([]project.Contract, len(l.contracts))
	for i, c := range l.contracts {
		result[i] = c
	}
	return result
}

// Load .sol文件编译，其他文件或目录按编译产物读取
func (l *Loader) Load(ctx context.Context, paths []string) error {
	var (
		sources   []string
		artifacts []string
	)
	for _, p := range paths {
		if filepath.Ext(p) == ".sol" {
			sources = append(sources, p)
		} else {
			artifacts = append(artifacts, p)
		}
	}
	if err := l.LoadFromSolidity(ctx, sources); err != nil {
		return err
	}
	return l.LoadFromArtifacts(artifacts)
}

func (l *Loader) LoadFromSolidity(ctx context.Context, solidityFiles []string) error {
	for _, file := range solidityFiles {
		contracts, err := solidity.GetContractsFromFile(ctx, l.solc, file)
		if err != nil {
			return err
		}
		l.add(contracts...)
	}
	return nil
}

func (l *Loader) LoadFromArtifacts(paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	contracts, err := solidity.LoadArtifacts(paths)
	if err != nil {
		return err
	}
	l.add(contracts...)
	return nil
}

// LoadFromBytecode 只有运行时字节码，没有ABI
func (l *Loader) LoadFromBytecode(name, code string) error {
	c, err := solidity.NewEVMContract(name, code, "")
	if err != nil {
		return err
	}
	l.add(c)
	return nil
}

// add 没有地址的合约按加载顺序分配占位地址
func (l *Loader) add(contracts ...*solidity.EVMContract) {
	for _, c := range contracts {
		if c.Address == (common.Address{}) {
			c.Address = solidity.PlaceholderAddress(len(l.contracts))
		}
		l.contracts = append(l.contracts, c)
	}
}
