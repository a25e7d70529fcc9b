// Package calltrace 把交易执行的调用树转换成有向图
//
// 输入有两种：
//   - 文本形式，每层缩进4列，非根节点以 ├── 或 └── 开头，名字可能带ANSI颜色
//   - 嵌套列表形式 [key, child, ...]，child是字符串或同样的列表
//
// 两种输入都先变成按出现顺序排列的 Frame，再由 Build 建图
package calltrace

// 解析时跳过一行的原因
const (
	ReasonBlank       = "blank"
	ReasonNoConnector = "no_connector"
	ReasonMisaligned  = "misaligned"
	ReasonEmptyName   = "empty_name"
	ReasonOrphan      = "orphan"
)

// Frame 调用树中的一次调用，根的Depth为0
type Frame struct {
	Depth int
	Name  string

	// Line 文本输入中的行号，从1开始；结构化输入为0
	Line int
}

// SkippedLine 无法解析而被跳过的行或帧
type SkippedLine struct {
	Line   int    `json:"line"`
	Text   string `json:"text"`
	Reason string `json:"reason"`
}
