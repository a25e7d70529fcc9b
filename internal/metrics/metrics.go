package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type AnalyzerMetrics struct {
	ContractsAnalyzed   prometheus.Counter
	ContractsSkipped    *prometheus.CounterVec
	SelectorsFound      prometheus.Counter
	SelectorsSkipped    *prometheus.CounterVec
	CacheHits           prometheus.Counter
	AnalysisDuration    prometheus.Histogram
	TracesParsed        prometheus.Counter
	TraceLinesSkipped   *prometheus.CounterVec
	ReentrancyDetected  prometheus.Counter
	TruncatedBytecode   prometheus.Counter
	RegisteredSelectors prometheus.Gauge
}

func NewAnalyzerMetrics() *AnalyzerMetrics {
	return &AnalyzerMetrics{
		ContractsAnalyzed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gfuzz_contracts_analyzed_total",
			Help: "Total number of contracts whose selector map was recovered",
		}),
		ContractsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gfuzz_contracts_skipped_total",
			Help: "Total number of contracts skipped by static analysis",
		}, []string{"reason"}),
		SelectorsFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gfuzz_selectors_found_total",
			Help: "Total number of dispatcher selectors analyzed",
		}),
		SelectorsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gfuzz_selectors_skipped_total",
			Help: "Total number of dispatcher selectors skipped",
		}, []string{"reason"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gfuzz_analysis_cache_hits_total",
			Help: "Total number of contracts served from the code hash cache",
		}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gfuzz_contract_analysis_duration_seconds",
			Help:    "Time taken to analyze contract bytecode in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		TracesParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gfuzz_traces_parsed_total",
			Help: "Total number of call traces parsed",
		}),
		TraceLinesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gfuzz_trace_lines_skipped_total",
			Help: "Total number of call trace lines that could not be parsed",
		}, []string{"reason"}),
		ReentrancyDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gfuzz_reentrancy_detected_total",
			Help: "Total number of traces with a reentrant call path",
		}),
		TruncatedBytecode: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gfuzz_truncated_bytecode_total",
			Help: "Total number of contracts whose bytecode ends inside a push operand",
		}),
		RegisteredSelectors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gfuzz_registered_selectors",
			Help: "Number of selectors in the invocation registry of the current run",
		}),
	}
}

// Register 注册到指定的registry，每次运行使用独立的registry
func (m *AnalyzerMetrics) Register(registerer prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.ContractsAnalyzed, m.ContractsSkipped, m.SelectorsFound, m.SelectorsSkipped,
		m.CacheHits, m.AnalysisDuration, m.TracesParsed, m.TraceLinesSkipped,
		m.ReentrancyDetected, m.TruncatedBytecode, m.RegisteredSelectors,
	} {
		if err := registerer.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry 创建registry并注册全部指标，附带go运行时和进程指标
func NewRegistry(m *AnalyzerMetrics) (*prometheus.Registry, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	if err := m.Register(registry); err != nil {
		return nil, err
	}
	return registry, nil
}
