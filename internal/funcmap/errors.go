package funcmap

import "github.com/pkg/errors"

// 结构未找到类错误，只影响当前合约或当前选择器
var (
	ErrDispatcherNotFound    = errors.New("dispatcher not found")
	ErrFunctionStartNotFound = errors.New("function start not found")
	ErrFunctionEndNotFound   = errors.New("function end not found")
)
