package solidity

import (
	"context"
	"encoding/json"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"

	"gfuzz/internal/util"
)

// https://github.com/ethereum/solc-bin/tree/gh-pages/bin
type SolcBinaryVersionInfo struct {
	Path       string   `json:"path"`
	Version    string   `json:"version"`
	Build      string   `json:"build"`
	LogVersion string   `json:"longVersion"`
	Keccak256  string   `json:"keccak256"`
	Sha256     string   `json:"sha256"`
	URLs       []string `json:"urls"`
}

type SolcBinaryMeta struct {
	Builds []SolcBinaryVersionInfo `json:"builds"`

	cfg SolcConfig
}

func NewSolcBinaryMeta(ctx context.Context, cfg SolcConfig) (*SolcBinaryMeta, error) {
	if err := os.MkdirAll(cfg.BinaryDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "MkdirAll")
	}
	localMetaFilePath := path.Join(cfg.BinaryDir, SolcBinaryMetaFile)
	metaFileExists, err := util.FileExists(localMetaFilePath)
	if err != nil {
		return nil, errors.Wrap(err, "FileExists")
	}
	if !metaFileExists {
		err := util.DownloadFile(ctx, localMetaFilePath, cfg.Endpoint+SolcBinaryMetaFile)
		if err != nil {
			return nil, errors.Wrap(err, "DownloadFile")
		}
	}
	meta, err := readSolcMeta(localMetaFilePath)
	if err != nil {
		return nil, err
	}
	meta.cfg = cfg
	return meta, nil
}

// GetSolcBinary 从版本列表中取对应的版本，本地没有时下载
func (sbm *SolcBinaryMeta) GetSolcBinary(ctx context.Context, version string) (string, error) {
	version = NormalizeVersion(version)
	var solcBinaryPath string
	for i := range sbm.Builds {
		if sbm.Builds[i].Version != version || sbm.Builds[i].Prerelease() {
			continue
		}
		solcBinaryPath = sbm.Builds[i].Path
		break
	}
	if solcBinaryPath == "" {
		return "", errors.Errorf("no version matches %s", version)
	}
	localSolcBinaryPath := path.Join(sbm.cfg.BinaryDir, solcBinaryPath)
	binaryFileExists, err := util.FileExists(localSolcBinaryPath)
	if err != nil {
		return "", errors.Wrap(err, "FileExists")
	}
	if binaryFileExists {
		return localSolcBinaryPath, nil
	}
	err = util.DownloadFile(ctx, localSolcBinaryPath, sbm.cfg.Endpoint+solcBinaryPath)
	if err != nil {
		return "", errors.Wrap(err, "DownloadFile")
	}
	return localSolcBinaryPath, nil
}

func (info *SolcBinaryVersionInfo) Prerelease() bool {
	return strings.Contains(info.Path, "nightly")
}

func readSolcMeta(filePath string) (*SolcBinaryMeta, error) {
	fileData, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "ReadFile")
	}
	var solcMeta SolcBinaryMeta
	err = json.Unmarshal(fileData, &solcMeta)
	if err != nil {
		return nil, errors.Wrap(err, "Unmarshal")
	}
	return &solcMeta, nil
}
