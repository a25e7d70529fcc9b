package module

import (
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/graph/path"

	"gfuzz/internal/calltrace"
	"gfuzz/internal/issue"
)

// ReentrancyResult Path为重复出现名字的调用路径，用-连接；没有重入时为空
type ReentrancyResult struct {
	Found bool     `json:"found"`
	Path  string   `json:"path"`
	Names []string `json:"names,omitempty"`
}

// DetectReentrancy 按创建顺序检查每个非根节点，根到该节点的路径上有名字重复即为重入
// 只返回第一个找到的路径
func DetectReentrancy(g *calltrace.Graph) ReentrancyResult {
	root, ok := g.Root()
	if !ok {
		return ReentrancyResult{}
	}
	shortest := path.DijkstraFrom(root, g.Directed())
	for _, node := range g.Nodes()[1:] {
		nodes, _ := shortest.To(node.ID())
		var (
			names    = make([]string, 0, len(nodes))
			seen     = make(map[string]struct{}, len(nodes))
			repeated bool
		)
		for _, n := range nodes {
			name := n.(calltrace.CallNode).Name
			if _, ok := seen[name]; ok {
				repeated = true
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
		if repeated {
			return ReentrancyResult{Found: true, Path: strings.Join(names, "-"), Names: names}
		}
	}
	return ReentrancyResult{}
}

type Reentrancy struct {
	*BaseModule

	// result 最近一次Execute的检测结果
	result ReentrancyResult
}

func NewReentrancy() *Reentrancy {
	return &Reentrancy{
		BaseModule: &BaseModule{
			swcData: SWCDataMap["107"],
			Issues:  make([]*issue.Issue, 0),
		},
	}
}

func (reentrancy *Reentrancy) Execute(target *Target) (issues []*issue.Issue, err error) {
	if target == nil || target.Graph == nil {
		return nil, errors.New("empty call graph")
	}
	defer func() {
		reentrancy.Issues = append(reentrancy.Issues, issues...)
	}()

	result := DetectReentrancy(target.Graph)
	reentrancy.result = result
	if !result.Found {
		return nil, nil
	}
	log.WithField("contract", target.Contract).Warnf("reentrancy: %s", result.Path)
	is := reentrancy.newIssue(target)
	is.CallChain = result.Path
	return []*issue.Issue{is}, nil
}

func (reentrancy *Reentrancy) Result() ReentrancyResult {
	return reentrancy.result
}
