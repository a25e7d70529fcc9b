package module

import (
	"github.com/pkg/errors"

	"gfuzz/internal/issue"
)

type ModuleManager struct {
	Modules []DetectionModule
}

func NewModuleManager() *ModuleManager {
	return &ModuleManager{
		Modules: make([]DetectionModule, 0),
	}
}

func (mm *ModuleManager) AddModule(dm DetectionModule) {
	mm.Modules = append(mm.Modules, dm)
}

// Execute 依次执行所有模块，返回本次发现的issue
func (mm *ModuleManager) Execute(target *Target) ([]*issue.Issue, error) {
	var result []*issue.Issue
	for _, dm := range mm.Modules {
		issues, err := dm.Execute(target)
		if err != nil {
			return result, errors.Wrapf(err, "module SWC-%s", dm.GetSWCData().ID)
		}
		result = append(result, issues...)
	}
	return result, nil
}

// RetrieveIssues 所有模块累计发现的issue
func (mm *ModuleManager) RetrieveIssues() []*issue.Issue {
	var result []*issue.Issue
	for _, dm := range mm.Modules {
		result = append(result, dm.GetIssues()...)
	}
	return result
}
