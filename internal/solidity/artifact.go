package solidity

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var ErrNotArtifact = errors.New("not a contract artifact")

// bytecodeObject brownie/hardhat 为字符串，foundry 为 {"object": "..."}
type bytecodeObject string

func (b *bytecodeObject) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*b = bytecodeObject(str)
		return nil
	}
	var obj struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*b = bytecodeObject(obj.Object)
	return nil
}

type artifact struct {
	ContractName      string            `json:"contractName"`
	ABI               json.RawMessage   `json:"abi"`
	Bytecode          bytecodeObject    `json:"bytecode"`
	DeployedBytecode  bytecodeObject    `json:"deployedBytecode"`
	MethodIdentifiers map[string]string `json:"methodIdentifiers"`
	Address           string            `json:"address"`
}

// LoadArtifactData 解析编译产物，没有contractName时使用defaultName
func LoadArtifactData(data []byte, defaultName string) (*EVMContract, error) {
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, errors.Wrap(ErrNotArtifact, err.Error())
	}
	if a.ABI == nil && a.DeployedBytecode == "" {
		return nil, errors.Wrap(ErrNotArtifact, "no abi or deployedBytecode")
	}
	name := a.ContractName
	if name == "" {
		name = defaultName
	}
	c, err := NewEVMContract(name, string(a.DeployedBytecode), string(a.Bytecode))
	if err != nil {
		return nil, err
	}
	if err := c.SetABI(a.ABI); err != nil {
		return nil, err
	}
	c.MethodIdentifiers = a.MethodIdentifiers
	if common.IsHexAddress(a.Address) {
		c.Address = common.HexToAddress(a.Address)
	}
	return c, nil
}

func LoadArtifact(file string) (*EVMContract, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, "ReadFile")
	}
	name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	c, err := LoadArtifactData(data, name)
	if err != nil {
		return nil, errors.Wrapf(err, "artifact %s", file)
	}
	return c, nil
}

// LoadArtifacts 参数可以是文件或目录；目录中不是编译产物的json文件会被跳过
func LoadArtifacts(paths []string) ([]*EVMContract, error) {
	var contracts []*EVMContract
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, errors.Wrap(err, "Stat")
		}
		if !info.IsDir() {
			c, err := LoadArtifact(p)
			if err != nil {
				return nil, err
			}
			contracts = append(contracts, c)
			continue
		}
		var files []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && filepath.Ext(path) == ".json" {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "walk %s", p)
		}
		sort.Strings(files)
		for _, file := range files {
			c, err := LoadArtifact(file)
			if errors.Is(err, ErrNotArtifact) {
				log.Debugf("skip %s: %v", file, err)
				continue
			}
			if err != nil {
				return nil, err
			}
			contracts = append(contracts, c)
		}
	}
	return contracts, nil
}
