// Package config 读取YAML配置，未设置的项使用默认值
package config

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"gfuzz/internal/calltrace"
	"gfuzz/internal/solidity"
)

type Config struct {
	LogLevel string `yaml:"log_level"`
	Workers  int    `yaml:"workers"`

	// IndentWidth 文本调用树每层缩进的列数
	IndentWidth int          `yaml:"indent_width"`
	Solc        SolcConfig   `yaml:"solc"`
	Server      ServerConfig `yaml:"server"`
}

type SolcConfig struct {
	BinaryDir string `yaml:"binary_dir"`
	Endpoint  string `yaml:"endpoint"`
}

type ServerConfig struct {
	Addr         string `yaml:"addr"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
}

func Default() *Config {
	return &Config{
		LogLevel:    "info",
		Workers:     1,
		IndentWidth: calltrace.DefaultIndentWidth,
		Solc: SolcConfig{
			BinaryDir: solidity.DefaultSolcBinaryDir,
			Endpoint:  solidity.DefaultSolcBinaryEndpoint,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			MaxBodyBytes: 8 << 20,
		},
	}
}

// Load path为空时只使用默认值
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "config open")
	}
	defer func() { _ = f.Close() }()
	if err := cfg.decode(f); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Parse 从内存中的YAML读取
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) decode(r io.Reader) error {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && err != io.EOF {
		return errors.Wrap(err, "config decode")
	}
	return nil
}

func (cfg *Config) Validate() error {
	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		return errors.Errorf("invalid log_level: %s", cfg.LogLevel)
	}
	if cfg.Workers < 1 {
		return errors.Errorf("workers must be positive, got %d", cfg.Workers)
	}
	if cfg.IndentWidth < 1 {
		return errors.Errorf("indent_width must be positive, got %d", cfg.IndentWidth)
	}
	if cfg.Solc.BinaryDir == "" {
		return errors.New("solc.binary_dir required")
	}
	if cfg.Solc.Endpoint == "" {
		return errors.New("solc.endpoint required")
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		return errors.Errorf("server.max_body_bytes must be positive, got %d", cfg.Server.MaxBodyBytes)
	}
	return nil
}

// ApplyLogLevel 设置logrus的全局日志级别
func (cfg *Config) ApplyLogLevel() error {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return errors.Wrap(err, "ParseLevel")
	}
	log.SetLevel(level)
	return nil
}

func (cfg *Config) SolcConfig() solidity.SolcConfig {
	return solidity.SolcConfig{
		BinaryDir: cfg.Solc.BinaryDir,
		Endpoint:  cfg.Solc.Endpoint,
	}
}
