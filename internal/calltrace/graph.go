package calltrace

import (
	"strconv"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
)

// RootID 根节点（交易入口）的ID
const RootID int64 = 1

// CallNode 调用图中的节点，ID从1开始按创建顺序递增
type CallNode struct {
	id   int64
	Name string
}

func (n CallNode) ID() int64 {
	return n.id
}

func (n CallNode) String() string {
	return n.Name + "#" + strconv.FormatInt(n.id, 10)
}

// Graph 调用者 -> 被调用者，每个节点最多一个父节点，所以是一棵树
type Graph struct {
	directed *simple.DirectedGraph
	nodes    []CallNode
}

// Build 按顺序建图，depth -> 该深度最近创建的节点；找不到 depth-1 父节点的帧被跳过
func Build(frames []Frame) (*Graph, []SkippedLine) {
	var (
		g       = &Graph{directed: simple.NewDirectedGraph()}
		latest  = make(map[int]int64)
		skipped []SkippedLine
	)
	for _, frame := range frames {
		if len(g.nodes) == 0 {
			if frame.Depth != 0 {
				skipped = append(skipped, SkippedLine{Line: frame.Line, Text: frame.Name, Reason: ReasonOrphan})
				continue
			}
			g.addNode(frame.Name)
			latest[0] = RootID
			continue
		}
		if frame.Name == "" {
			skipped = append(skipped, SkippedLine{Line: frame.Line, Text: frame.Name, Reason: ReasonEmptyName})
			continue
		}
		parent, ok := latest[frame.Depth-1]
		if frame.Depth < 1 || !ok {
			skipped = append(skipped, SkippedLine{Line: frame.Line, Text: frame.Name, Reason: ReasonOrphan})
			continue
		}
		node := g.addNode(frame.Name)
		g.directed.SetEdge(g.directed.NewEdge(g.directed.Node(parent), node))
		latest[frame.Depth] = node.id
	}
	return g, skipped
}

func (g *Graph) addNode(name string) CallNode {
	node := CallNode{id: int64(len(g.nodes)) + RootID, Name: name}
	g.directed.AddNode(node)
	g.nodes = append(g.nodes, node)
	return node
}

// Nodes 按创建顺序，第一个是根
func (g *Graph) Nodes() []CallNode {
	return g.nodes
}

func (g *Graph) Len() int {
	return len(g.nodes)
}

func (g *Graph) Root() (CallNode, bool) {
	if len(g.nodes) == 0 {
		return CallNode{}, false
	}
	return g.nodes[0], true
}

func (g *Graph) Node(id int64) (CallNode, bool) {
	if id < RootID || id > int64(len(g.nodes)) {
		return CallNode{}, false
	}
	return g.nodes[id-RootID], true
}

// Directed 供gonum的图算法使用
func (g *Graph) Directed() graph.Directed {
	return g.directed
}

// Parent 根节点没有父节点
func (g *Graph) Parent(id int64) (CallNode, bool) {
	parents := g.directed.To(id)
	if !parents.Next() {
		return CallNode{}, false
	}
	return parents.Node().(CallNode), true
}

// Children 按创建顺序
func (g *Graph) Children(id int64) []CallNode {
	var children []CallNode
	for _, node := range g.nodes {
		if parent, ok := g.Parent(node.id); ok && parent.id == id {
			children = append(children, node)
		}
	}
	return children
}

// NamePath 从根到该节点的名字序列
func (g *Graph) NamePath(id int64) ([]string, error) {
	node, ok := g.Node(id)
	if !ok {
		return nil, errors.Errorf("node %d not found", id)
	}
	path := []string{node.Name}
	for {
		parent, ok := g.Parent(node.id)
		if !ok {
			break
		}
		path = append([]string{parent.Name}, path...)
		node = parent
	}
	return path, nil
}

// FromText 解析文本调用树并建图
func FromText(text string, indentWidth int) (*Graph, []SkippedLine) {
	frames, skipped := NewParser(indentWidth).Parse(text)
	g, orphans := Build(frames)
	return g, append(skipped, orphans...)
}

// FromNested 解析嵌套列表JSON并建图
func FromNested(data []byte) (*Graph, []SkippedLine, error) {
	roots, err := ParseNested(data)
	if err != nil {
		return nil, nil, err
	}
	g, skipped := Build(Flatten(roots))
	return g, skipped, nil
}
