package analyze

import (
	"errors"
	"fmt"
)

// Kind 处理失败的类别，只在服务端日志中可见
type Kind int

const (
	KindUnknown Kind = iota
	// InvalidUpload 类型或大小不合法，在传输层被拒绝
	InvalidUpload
	// MissingImage 表单中没有image文件
	MissingImage
	// ImageProcessingFailure 缩放或重新编码失败
	ImageProcessingFailure
	// InferenceFailure 模型调用失败或返回异常
	InferenceFailure
)

func (k Kind) String() string {
	switch k {
	case InvalidUpload:
		return "InvalidUpload"
	case MissingImage:
		return "MissingImage"
	case ImageProcessingFailure:
		return "ImageProcessingFailure"
	case InferenceFailure:
		return "InferenceFailure"
	default:
		return "Unknown"
	}
}

// PipelineError 带类别的处理错误
type PipelineError struct {
	Kind Kind
	Err  error
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func newPipelineError(kind Kind, err error) *PipelineError {
	return &PipelineError{Kind: kind, Err: err}
}

// KindOf 取出错误的类别
func KindOf(err error) Kind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}
