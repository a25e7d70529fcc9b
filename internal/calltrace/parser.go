package calltrace

import (
	"regexp"
	"strings"
	"unicode"
)

const DefaultIndentWidth = 4

var colorPattern = regexp.MustCompile("\x1b[^m]*m")

// StripColor 去掉ANSI颜色
func StripColor(s string) string {
	return colorPattern.ReplaceAllString(s, "")
}

type Parser struct {
	IndentWidth int
}

func NewParser(indentWidth int) *Parser {
	if indentWidth <= 0 {
		indentWidth = DefaultIndentWidth
	}
	return &Parser{IndentWidth: indentWidth}
}

// ParseTree 使用默认缩进解析文本调用树
func ParseTree(text string) ([]Frame, []SkippedLine) {
	return NewParser(DefaultIndentWidth).Parse(text)
}

// Parse 第一个非空行的第一个词是根；之后每行的深度为连接符所在列除以缩进宽度再加1
func (p *Parser) Parse(text string) ([]Frame, []SkippedLine) {
	var (
		frames  []Frame
		skipped []SkippedLine
	)
	for i, raw := range strings.Split(strings.TrimRight(text, "\r\n"), "\n") {
		line := StripColor(strings.TrimRight(raw, "\r"))
		lineNum := i + 1
		if isPadding(line) {
			skipped = append(skipped, SkippedLine{Line: lineNum, Text: raw, Reason: ReasonBlank})
			continue
		}
		if len(frames) == 0 {
			frames = append(frames, Frame{Depth: 0, Name: strings.Fields(line)[0], Line: lineNum})
			continue
		}
		frame, reason := p.parseLine(line)
		if reason != "" {
			skipped = append(skipped, SkippedLine{Line: lineNum, Text: raw, Reason: reason})
			continue
		}
		frame.Line = lineNum
		frames = append(frames, frame)
	}
	return frames, skipped
}

func (p *Parser) parseLine(line string) (Frame, string) {
	runes := []rune(line)
	pos := -1
	for i, r := range runes {
		if r == '├' || r == '└' {
			pos = i
			break
		}
	}
	if pos < 0 {
		return Frame{}, ReasonNoConnector
	}
	if pos%p.IndentWidth != 0 {
		return Frame{}, ReasonMisaligned
	}
	name := ""
	for _, field := range strings.Fields(string(runes[pos:])) {
		if isBoxGlyph([]rune(field)[0]) {
			continue
		}
		name = field
		break
	}
	if name == "" {
		return Frame{}, ReasonEmptyName
	}
	return Frame{Depth: pos/p.IndentWidth + 1, Name: name}, ""
}

func isBoxGlyph(r rune) bool {
	switch r {
	case '│', '├', '└', '─':
		return true
	}
	return false
}

// isPadding 空行或只有竖线的填充行
func isPadding(line string) bool {
	for _, r := range line {
		if !unicode.IsSpace(r) && !isBoxGlyph(r) {
			return false
		}
	}
	return true
}
