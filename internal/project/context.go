// Package project 汇总项目中所有合约的静态分析结果
//
// Context 在一次运行开始时创建，Build之后只读：
//   - 每个合约的 选择器 -> 内部调用选择器 合并成 Graph
//   - 合约ABI构建 SelectorIndex 和 Registry
//   - Resolve 把内部调用选择器换成声明它的合约
package project

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"gfuzz/internal/disassembler"
	"gfuzz/internal/funcmap"
	"gfuzz/internal/metrics"
	"gfuzz/internal/selector"
)

var ErrNoBytecode = errors.New("contract has no runtime bytecode")

type Options struct {
	Workers int
}

// SkippedContract 静态分析失败，不参与合并的合约
type SkippedContract struct {
	Contract ContractIdentity
	Err      error
}

type Context struct {
	opts    Options
	metrics *metrics.AnalyzerMetrics

	graph    *Graph
	index    SelectorIndex
	registry *Registry
	cache    *analysisCache

	mu      sync.Mutex
	skipped []SkippedContract
}

// NewContext m为nil时使用不注册的指标
func NewContext(opts Options, m *metrics.AnalyzerMetrics) *Context {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if m == nil {
		m = metrics.NewAnalyzerMetrics()
	}
	return &Context{
		opts:     opts,
		metrics:  m,
		graph:    NewGraph(),
		index:    make(SelectorIndex),
		registry: NewRegistry(nil),
		cache:    newAnalysisCache(),
	}
}

// Build 分析所有合约并合并结果，单个合约失败只跳过该合约
func (pc *Context) Build(contracts []Contract) []SkippedContract {
	pc.index = NewSelectorIndex(contracts)
	pc.registry = NewRegistry(contracts)
	pc.metrics.RegisteredSelectors.Set(float64(pc.registry.Len()))

	startTime := time.Now()
	jobs := make(chan Contract)
	var wg sync.WaitGroup
	for i := 0; i < pc.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				pc.analyzeContract(c)
			}
		}()
	}
	for _, c := range contracts {
		jobs <- c
	}
	close(jobs)
	wg.Wait()

	sort.Slice(pc.skipped, func(i, j int) bool {
		return identityLess(pc.skipped[i].Contract, pc.skipped[j].Contract)
	})
	log.Infof("analyzed %d contracts, %d skipped, %d selectors, time used %v",
		len(contracts), len(pc.skipped), pc.graph.Len(), time.Since(startTime))
	return pc.skipped
}

func (pc *Context) analyzeContract(c Contract) {
	var (
		id     = identityOf(c)
		logger = log.WithFields(log.Fields{"contract": id.Name, "address": id.Address.Hex()})
		d      = c.GetDisassembly()
	)
	if d == nil || len(d.GetInstructions()) == 0 {
		pc.skip(logger, id, errors.WithStack(ErrNoBytecode))
		return
	}
	if d.Truncated() {
		logger.Warn("bytecode ends inside a push operand, trailing push dropped")
		pc.metrics.TruncatedBytecode.Inc()
	}

	entry := pc.cache.entry(c)
	computed := false
	entry.once.Do(func() {
		computed = true
		startTime := time.Now()
		entry.result, entry.skipped, entry.err = funcmap.Analyze(d)
		pc.metrics.AnalysisDuration.Observe(time.Since(startTime).Seconds())
	})
	if !computed {
		pc.metrics.CacheHits.Inc()
	}
	if entry.err != nil {
		pc.skip(logger, id, entry.err)
		return
	}
	for _, s := range entry.skipped {
		logger.WithField("selector", s.Entry.Selector.String()).Debugf("skip selector: %v", s.Err)
		pc.metrics.SelectorsSkipped.WithLabelValues(skipReason(s.Err)).Inc()
	}
	pc.metrics.SelectorsFound.Add(float64(len(entry.result)))
	pc.metrics.ContractsAnalyzed.Inc()
	pc.graph.Merge(entry.result)
}

func (pc *Context) skip(logger *log.Entry, id ContractIdentity, err error) {
	logger.Warnf("skip contract: %v", err)
	pc.metrics.ContractsSkipped.WithLabelValues(skipReason(err)).Inc()
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.skipped = append(pc.skipped, SkippedContract{Contract: id, Err: err})
}

// Resolve 选择器 -> 它可能调用的函数所属的合约，没有合约声明的选择器被丢弃
func (pc *Context) Resolve() map[selector.Selector][]ContractIdentity {
	snapshot := pc.graph.Snapshot()
	result := make(map[selector.Selector][]ContractIdentity, len(snapshot))
	for sel, callees := range snapshot {
		result[sel] = pc.resolveCallees(callees)
	}
	return result
}

// CalleeContracts 选择器对应函数会调用哪些合约，用于选择address类型参数
func (pc *Context) CalleeContracts(sel selector.Selector) []ContractIdentity {
	callees, ok := pc.graph.Callees(sel)
	if !ok {
		return nil
	}
	return pc.resolveCallees(callees)
}

func (pc *Context) resolveCallees(callees selector.Set) []ContractIdentity {
	owners := make([]ContractIdentity, 0)
	for callee := range callees {
		for _, id := range pc.index.Owners(callee) {
			if !containsIdentity(owners, id) {
				owners = append(owners, id)
			}
		}
	}
	sortIdentities(owners)
	return owners
}

func (pc *Context) Graph() *Graph {
	return pc.graph
}

func (pc *Context) Index() SelectorIndex {
	return pc.index
}

func (pc *Context) Registry() *Registry {
	return pc.registry
}

func (pc *Context) Skipped() []SkippedContract {
	return pc.skipped
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, ErrNoBytecode):
		return "no_bytecode"
	case errors.Is(err, funcmap.ErrDispatcherNotFound):
		return "dispatcher_not_found"
	case errors.Is(err, funcmap.ErrFunctionStartNotFound):
		return "function_start_not_found"
	case errors.Is(err, funcmap.ErrFunctionEndNotFound):
		return "function_end_not_found"
	case errors.Is(err, disassembler.ErrInvalidJumpTarget):
		return "invalid_jump_target"
	}
	return "other"
}
