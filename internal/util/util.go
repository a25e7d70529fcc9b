package util

import (
	"encoding/hex"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

func GetCodeHash(code string) (string, []byte, error) {
	data, err := hex.DecodeString(strings.TrimPrefix(code, "0x"))
	if err != nil {
		return "", nil, err
	}
	result := crypto.Keccak256(data)
	return hex.EncodeToString(result), result, nil
}

func FileExists(filePath string) (bool, error) {
	_, err := os.Stat(filePath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
