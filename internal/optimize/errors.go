package optimize

import "fmt"

// Stage 标识变换流水线中出错的环节，会出现在 500 响应与日志字段里。
type Stage string

const (
	StageOriginFetch Stage = "origin_fetch"
	StageDecode      Stage = "decode"
	StageEncode      Stage = "encode"
)

// TransformError 统一包装流水线各环节的失败。对单个请求总是致命的，
// 不会重试，也不会产生缓存条目。
type TransformError struct {
	Stage Stage
	Err   error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

func transformErrorf(stage Stage, format string, args ...interface{}) error {
	return &TransformError{Stage: stage, Err: fmt.Errorf(format, args...)}
}
