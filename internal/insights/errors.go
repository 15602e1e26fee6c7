package insights

import (
	"errors"
	"fmt"
)

// ErrInvalidFilter 调用方传入了已归档的显式 id 或互相矛盾的 id
// 向调用方直接暴露，不返回部分结果
var ErrInvalidFilter = errors.New("invalid filter")

// ErrMalformedAnalysis 日报分析树非空节点缺失必填字段（isApplicable / implemented）
var ErrMalformedAnalysis = errors.New("malformed analysis")

func invalidFilterf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidFilter, fmt.Sprintf(format, args...))
}

func malformedf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedAnalysis, fmt.Sprintf(format, args...))
}
