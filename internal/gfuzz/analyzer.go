// Package gfuzz 把静态选择器分析和调用树重入检测组合成一次运行
package gfuzz

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"gfuzz/internal/calltrace"
	"gfuzz/internal/config"
	"gfuzz/internal/issue"
	"gfuzz/internal/metrics"
	"gfuzz/internal/module"
	"gfuzz/internal/project"
	"gfuzz/internal/selector"
)

var (
	ErrEmptyTrace      = errors.New("empty call trace")
	ErrUnknownFunction = errors.New("unknown function")
)

type Analyzer struct {
	cfg     *config.Config
	metrics *metrics.AnalyzerMetrics
}

func NewAnalyzer(cfg *config.Config, m *metrics.AnalyzerMetrics) *Analyzer {
	if m == nil {
		m = metrics.NewAnalyzerMetrics()
	}
	return &Analyzer{cfg: cfg, metrics: m}
}

// SelectorReport 项目的选择器调用图
type SelectorReport struct {
	// Functions 选择器 -> 合约名.函数签名，没有ABI时缺省
	Functions map[selector.Selector][]string `json:"functions"`

	// Graph 选择器 -> 可能调用的选择器
	Graph map[selector.Selector][]selector.Selector `json:"graph"`

	// Contracts 选择器 -> 可能调用到的合约
	Contracts map[selector.Selector][]project.ContractIdentity `json:"contracts"`

	// Targets 有ABI的函数，按选择器排序
	Targets []FuzzTarget      `json:"targets"`
	Skipped []SkippedContract `json:"skipped,omitempty"`
}

// FuzzTarget 一个待测函数，Callees为它会调用的合约，可以作为address参数传入
type FuzzTarget struct {
	Contract project.ContractIdentity `json:"contract"`
	Function string                   `json:"function"`
	Selector selector.Selector        `json:"selector"`

	// Calldata 无参数函数的完整调用数据
	Calldata string                     `json:"calldata,omitempty"`
	Callees  []project.ContractIdentity `json:"callees"`
}

type SkippedContract struct {
	Contract project.ContractIdentity `json:"contract"`
	Error    string                   `json:"error"`
}

// AnalyzeSelectors 每次调用使用新的项目上下文
func (a *Analyzer) AnalyzeSelectors(contracts []project.Contract) (*SelectorReport, *project.Context) {
	pc := project.NewContext(project.Options{Workers: a.cfg.Workers}, a.metrics)
	skipped := pc.Build(contracts)

	report := &SelectorReport{
		Functions: make(map[selector.Selector][]string),
		Graph:     make(map[selector.Selector][]selector.Selector),
		Contracts: pc.Resolve(),
	}
	for sel, callees := range pc.Graph().Snapshot() {
		report.Graph[sel] = callees.Sorted()
		for _, d := range pc.Registry().Lookup(sel) {
			report.Functions[sel] = append(report.Functions[sel], d.Contract.Name+"."+d.Method.Sig)
		}
	}
	for _, sel := range sortedSelectors(report.Graph) {
		for _, d := range pc.Registry().Lookup(sel) {
			report.Targets = append(report.Targets, newFuzzTarget(pc, d))
		}
	}
	for _, s := range skipped {
		report.Skipped = append(report.Skipped, SkippedContract{Contract: s.Contract, Error: s.Err.Error()})
	}
	return report, pc
}

// Target 按 合约名.ABI方法名 取一个待测函数，例如 Bank.withdraw
func (a *Analyzer) Target(pc *project.Context, function string) (FuzzTarget, error) {
	dot := strings.LastIndex(function, ".")
	if dot <= 0 {
		return FuzzTarget{}, errors.Wrapf(ErrUnknownFunction, "%q is not Contract.method", function)
	}
	d, ok := pc.Registry().LookupMethod(function[:dot], function[dot+1:])
	if !ok {
		return FuzzTarget{}, errors.Wrap(ErrUnknownFunction, function)
	}
	return newFuzzTarget(pc, d), nil
}

func newFuzzTarget(pc *project.Context, d project.Descriptor) FuzzTarget {
	target := FuzzTarget{
		Contract: d.Contract,
		Function: d.Method.Sig,
		Selector: d.Selector(),
		Callees:  pc.CalleeContracts(d.Selector()),
	}
	if target.Callees == nil {
		target.Callees = []project.ContractIdentity{}
	}
	if len(d.Method.Inputs) == 0 {
		if data, err := d.Calldata(); err == nil {
			target.Calldata = hexutil.Encode(data)
		}
	}
	return target
}

func sortedSelectors(graph map[selector.Selector][]selector.Selector) []selector.Selector {
	keys := make([]selector.Selector, 0, len(graph))
	for sel := range graph {
		keys = append(keys, sel)
	}
	sort.Slice(keys, func(i, j int) bool {
		return selector.Less(keys[i], keys[j])
	})
	return keys
}

// WriteText 按选择器排序输出
func (r *SelectorReport) WriteText(w io.Writer) error {
	for _, sel := range sortedSelectors(r.Graph) {
		name := strings.Join(r.Functions[sel], ", ")
		if name == "" {
			name = "unknown"
		}
		callees := make([]string, 0, len(r.Graph[sel]))
		for _, callee := range r.Graph[sel] {
			callees = append(callees, callee.String())
		}
		owners := make([]string, 0, len(r.Contracts[sel]))
		for _, id := range r.Contracts[sel] {
			owners = append(owners, id.String())
		}
		_, err := fmt.Fprintf(w, "%s %s\n    calls: [%s]\n    contracts: [%s]\n",
			sel, name, strings.Join(callees, " "), strings.Join(owners, " "))
		if err != nil {
			return err
		}
	}
	for _, target := range r.Targets {
		callees := make([]string, 0, len(target.Callees))
		for _, id := range target.Callees {
			callees = append(callees, id.String())
		}
		_, err := fmt.Fprintf(w, "target %s %s calldata=%s callees: [%s]\n",
			target.Contract, target.Function, target.Calldata, strings.Join(callees, " "))
		if err != nil {
			return err
		}
	}
	for _, s := range r.Skipped {
		if _, err := fmt.Fprintf(w, "skipped %s: %s\n", s.Contract, s.Error); err != nil {
			return err
		}
	}
	return nil
}

// TraceInput Text和Nested二选一，Nested优先
type TraceInput struct {
	Contract string          `json:"contract"`
	Function string          `json:"function"`
	Text     string          `json:"text,omitempty"`
	Nested   json.RawMessage `json:"nested,omitempty"`
}

type TraceReport struct {
	Reentrancy module.ReentrancyResult `json:"reentrancy"`
	Nodes      int                     `json:"nodes"`
	Skipped    []calltrace.SkippedLine `json:"skipped,omitempty"`
	Issues     []*issue.Issue          `json:"issues,omitempty"`
}

// AnalyzeTrace 解析一次交易的调用树并检测重入
func (a *Analyzer) AnalyzeTrace(input TraceInput) (*TraceReport, error) {
	var (
		g       *calltrace.Graph
		skipped []calltrace.SkippedLine
		tree    string
	)
	switch {
	case len(input.Nested) > 0:
		roots, err := calltrace.ParseNested(input.Nested)
		if err != nil {
			return nil, err
		}
		g, skipped = calltrace.Build(calltrace.Flatten(roots))
		tree = calltrace.BuildTree(roots)
	case strings.TrimSpace(input.Text) != "":
		g, skipped = calltrace.FromText(input.Text, a.cfg.IndentWidth)
		tree = calltrace.StripColor(input.Text)
	default:
		return nil, errors.WithStack(ErrEmptyTrace)
	}
	a.metrics.TracesParsed.Inc()

	logger := log.WithFields(log.Fields{"contract": input.Contract, "function": input.Function})
	for _, s := range skipped {
		a.metrics.TraceLinesSkipped.WithLabelValues(s.Reason).Inc()
		if s.Reason == calltrace.ReasonBlank {
			continue
		}
		logger.Warnf("skip trace line %d (%s): %q", s.Line, s.Reason, s.Text)
	}
	if g.Len() == 0 {
		return nil, errors.WithStack(ErrEmptyTrace)
	}

	reentrancy := module.NewReentrancy()
	mm := module.NewModuleManager()
	mm.AddModule(reentrancy)
	issues, err := mm.Execute(&module.Target{
		Contract: input.Contract,
		Function: input.Function,
		Graph:    g,
		Trace:    tree,
	})
	if err != nil {
		return nil, err
	}
	report := &TraceReport{
		Reentrancy: reentrancy.Result(),
		Nodes:      g.Len(),
		Skipped:    skipped,
		Issues:     issues,
	}
	if report.Reentrancy.Found {
		a.metrics.ReentrancyDetected.Inc()
	}
	return report, nil
}
