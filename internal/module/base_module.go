package module

import (
	"gfuzz/internal/calltrace"
	"gfuzz/internal/issue"
)

// Target 一次交易执行的分析对象
type Target struct {
	Contract string
	Function string
	Graph    *calltrace.Graph

	// Trace 渲染后的调用树，只用于报告
	Trace string
}

type BaseModule struct {
	swcData *SWCData // SWC信息
	Issues  []*issue.Issue
}

func (bm *BaseModule) Execute(target *Target) ([]*issue.Issue, error) {
	return nil, nil
}

func (bm *BaseModule) GetSWCData() *SWCData {
	return bm.swcData
}

func (bm *BaseModule) GetIssues() []*issue.Issue {
	return bm.Issues
}

func (bm *BaseModule) newIssue(target *Target) *issue.Issue {
	return &issue.Issue{
		ID:          bm.swcData.ID,
		Title:       bm.swcData.Title,
		Description: bm.swcData.Description,
		Contract:    target.Contract,
		Function:    target.Function,
		Trace:       target.Trace,
	}
}

type DetectionModule interface {
	Execute(*Target) ([]*issue.Issue, error)
	GetSWCData() *SWCData
	GetIssues() []*issue.Issue
}
