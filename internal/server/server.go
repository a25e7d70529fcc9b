// Package server 以HTTP接口提供选择器分析和重入检测
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"gfuzz/internal/config"
	"gfuzz/internal/gfuzz"
	"gfuzz/internal/metrics"
	"gfuzz/internal/project"
	"gfuzz/internal/solidity"
)

const shutdownTimeout = 10 * time.Second

// ContractInput 请求中的一个合约，ABI可省略
type ContractInput struct {
	Name     string          `json:"name"`
	Address  string          `json:"address,omitempty"`
	Bytecode string          `json:"bytecode"`
	ABI      json.RawMessage `json:"abi,omitempty"`
}

type SelectorsRequest struct {
	Contracts []ContractInput `json:"contracts"`

	// Artifacts 原样的编译产物
	Artifacts []json.RawMessage `json:"artifacts,omitempty"`

	// Function 合约名.方法名，只返回这个函数的待测信息
	Function string `json:"function,omitempty"`
}

type Server struct {
	cfg      *config.Config
	analyzer *gfuzz.Analyzer
	registry *prometheus.Registry
	mux      *http.ServeMux
}

func New(cfg *config.Config) (*Server, error) {
	m := metrics.NewAnalyzerMetrics()
	registry, err := metrics.NewRegistry(m)
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:      cfg,
		analyzer: gfuzz.NewAnalyzer(cfg, m),
		registry: registry,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("/selectors", s.handleSelectors)
	s.mux.HandleFunc("/reentrancy", s.handleReentrancy)
	s.mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe ctx结束时优雅关闭
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", s.cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return errors.Wrap(err, "ListenAndServe")
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "Shutdown")
	}
	return nil
}

func (s *Server) handleSelectors(w http.ResponseWriter, r *http.Request) {
	var req SelectorsRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	contracts, err := req.load()
	if err != nil {
		http.Error(w, "Invalid contract: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(contracts) == 0 {
		http.Error(w, "No contracts", http.StatusBadRequest)
		return
	}
	report, pc := s.analyzer.AnalyzeSelectors(contracts)
	if req.Function != "" {
		target, err := s.analyzer.Target(pc, req.Function)
		if err != nil {
			http.Error(w, "Invalid function: "+err.Error(), http.StatusBadRequest)
			return
		}
		report.Targets = []gfuzz.FuzzTarget{target}
	}
	writeJSON(w, report)
}

func (s *Server) handleReentrancy(w http.ResponseWriter, r *http.Request) {
	var input gfuzz.TraceInput
	if !s.readJSON(w, r, &input) {
		return
	}
	report, err := s.analyzer.AnalyzeTrace(input)
	if err != nil {
		http.Error(w, "Invalid trace: "+err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, report)
}

func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodyBytes))
	if err != nil {
		http.Error(w, "Failed to read body: "+err.Error(), http.StatusRequestEntityTooLarge)
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		http.Error(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("write response: %v", err)
	}
}

// load 没有地址的合约按请求中的顺序分配占位地址
func (req *SelectorsRequest) load() ([]project.Contract, error) {
	var contracts []*solidity.EVMContract
	for i, data := range req.Artifacts {
		c, err := solidity.LoadArtifactData(data, "")
		if err != nil {
			return nil, errors.Wrapf(err, "artifact %d", i)
		}
		contracts = append(contracts, c)
	}
	for _, in := range req.Contracts {
		c, err := solidity.NewEVMContract(in.Name, in.Bytecode, "")
		if err != nil {
			return nil, err
		}
		if err := c.SetABI(in.ABI); err != nil {
			return nil, err
		}
		if in.Address != "" {
			if !common.IsHexAddress(in.Address) {
				return nil, errors.Errorf("contract %s: invalid address %q", in.Name, in.Address)
			}
			c.Address = common.HexToAddress(in.Address)
		}
		contracts = append(contracts, c)
	}
	result := make([]project.Contract, len(contracts))
	for i, c := range contracts {
		if c.Address == (common.Address{}) {
			c.Address = solidity.PlaceholderAddress(i)
		}
		result[i] = c
	}
	return result, nil
}
