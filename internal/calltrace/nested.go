package calltrace

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

var ErrMalformedTrace = errors.New("malformed call trace")

// TreeNode 嵌套调用树的一个节点，Key可能有多行，第一行第一个词是调用名
type TreeNode struct {
	Key      string
	Children []*TreeNode
}

// ParseNested 解析 [[key, child, ...], ...] 形式的JSON，child为字符串或同样的列表
func ParseNested(data []byte) ([]*TreeNode, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, errors.Wrap(ErrMalformedTrace, err.Error())
	}
	return parseRows(rows)
}

func parseRows(rows []json.RawMessage) ([]*TreeNode, error) {
	nodes := make([]*TreeNode, 0, len(rows))
	for _, row := range rows {
		node, err := parseRow(row)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func parseRow(row json.RawMessage) (*TreeNode, error) {
	var key string
	if err := json.Unmarshal(row, &key); err == nil {
		return &TreeNode{Key: key}, nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(row, &list); err != nil {
		return nil, errors.Wrapf(ErrMalformedTrace, "row %s is neither string nor list", string(row))
	}
	if len(list) == 0 {
		return nil, errors.Wrap(ErrMalformedTrace, "empty list")
	}
	if err := json.Unmarshal(list[0], &key); err != nil {
		return nil, errors.Wrapf(ErrMalformedTrace, "key %s is not a string", string(list[0]))
	}
	children, err := parseRows(list[1:])
	if err != nil {
		return nil, err
	}
	return &TreeNode{Key: key, Children: children}, nil
}

// Flatten 先序遍历得到Frame，不经过文本渲染
func Flatten(roots []*TreeNode) []Frame {
	var frames []Frame
	var walk func(nodes []*TreeNode, depth int)
	walk = func(nodes []*TreeNode, depth int) {
		for _, node := range nodes {
			frames = append(frames, Frame{Depth: depth, Name: keyName(node.Key)})
			walk(node.Children, depth+1)
		}
	}
	walk(roots, 0)
	return frames
}

func keyName(key string) string {
	fields := strings.Fields(StripColor(key))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// BuildTree 把嵌套调用树渲染成文本，多行的key后续行缩进显示并前后留一行空白
func BuildTree(roots []*TreeNode) string {
	var b strings.Builder
	writeTree(&b, roots, nil)
	return b.String()
}

// hasNext 记录每一层祖先之后是否还有兄弟节点
func writeTree(b *strings.Builder, nodes []*TreeNode, hasNext []bool) {
	wasPadded := false
	for i, node := range nodes {
		more := i < len(nodes)-1

		indent := ""
		if len(hasNext) > 0 {
			for _, v := range hasNext[1:] {
				if v {
					indent += "│   "
				} else {
					indent += "    "
				}
			}
			if more {
				indent += "├── "
			} else {
				indent += "└── "
			}
		}
		prefix := dropLastRunes(indent, 4)

		lines := splitNonEmpty(node.Key)
		if len(lines) > 1 && !wasPadded {
			b.WriteString(prefix + "│   \n")
		}
		b.WriteString(indent + lines[0] + "\n")
		wasPadded = false

		if len(lines) > 1 {
			symbol, symbol2 := " ", " "
			if more {
				symbol = "│"
			}
			if len(node.Children) > 0 {
				symbol2 = "│"
			}
			continuation := prefix + symbol + "   " + symbol2 + "   "
			for _, line := range append(lines[1:], "") {
				b.WriteString(continuation + line + "\n")
			}
			wasPadded = true
		}

		if len(node.Children) > 0 {
			next := make([]bool, len(hasNext), len(hasNext)+1)
			copy(next, hasNext)
			writeTree(b, node.Children, append(next, more))
		}
	}
}

func splitNonEmpty(key string) []string {
	var lines []string
	for _, line := range strings.Split(key, "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}

func dropLastRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return ""
	}
	return string(runes[:len(runes)-n])
}
