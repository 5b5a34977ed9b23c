package analyze

import (
	"parking-sign-server-go/src/core/prompt"
)

const (
	// AnalyzePath 唯一的分析接口
	AnalyzePath = "/analyze-sign"

	// 表单字段
	FieldImage     = "image"
	FieldDayOfWeek = "dayOfWeek"
	FieldDate      = "date"
	FieldTime      = "time"

	// GenericErrorMessage 所有处理失败都返回这一条消息
	GenericErrorMessage = "Error processing image"

	// InvalidTypeMessage 类型不在白名单时的415消息
	InvalidTypeMessage = "Invalid file type, only JPEG and PNG is allowed!"

	// BodyTooLargeMessage 请求体超限但不是图片造成时的413消息
	BodyTooLargeMessage = "Request body too large"
)

// CaptureRequest 从multipart表单解析出的请求
type CaptureRequest struct {
	Image       []byte
	Filename    string
	ContentType string
	DayOfWeek   string
	Date        string
	Time        string
}

// TimeContext 返回提示词所需的时间上下文
func (r *CaptureRequest) TimeContext() prompt.TimeContext {
	return prompt.TimeContext{
		DayOfWeek: r.DayOfWeek,
		Date:      r.Date,
		Time:      r.Time,
	}
}

// AnalysisResponse 成功响应
type AnalysisResponse struct {
	Analysis string `json:"analysis"`
}

// ErrorResponse 失败响应
type ErrorResponse struct {
	Error string `json:"error"`
}
