package image

// ImageData 发送给视觉模型的图片数据
type ImageData struct {
	Data   string `json:"data,omitempty"`   // base64编码的图片数据
	Format string `json:"format,omitempty"` // 图片格式：png, jpeg
	Raw    []byte `json:"-"`                // 原始字节，供需要二进制的provider使用
}

// MIMEType 返回图片的MIME类型
func (d ImageData) MIMEType() string {
	if d.Format == "" {
		return "image/png"
	}
	return "image/" + d.Format
}

// DataURL 返回内联的data URL
func (d ImageData) DataURL() string {
	return "data:" + d.MIMEType() + ";base64," + d.Data
}

// ValidationResult 图片验证结果
type ValidationResult struct {
	IsValid      bool   // 是否有效
	Format       string // 实际格式
	Width        int    // 图片宽度
	Height       int    // 图片高度
	FileSize     int64  // 文件大小
	Error        error  // 错误信息
	SecurityRisk string // 安全风险描述
}

// Normalized 归一化后的图片
type Normalized struct {
	PNG          []byte
	Base64       string
	Width        int
	Height       int
	SourceWidth  int
	SourceHeight int
	SourceFormat string
	Resized      bool
}

// ImageData 转换为模型请求使用的图片数据
func (n *Normalized) ImageData() ImageData {
	return ImageData{
		Data:   n.Base64,
		Format: "png",
		Raw:    n.PNG,
	}
}

// ImageMetrics 图片处理统计信息
type ImageMetrics struct {
	TotalProcessed    int64 // 总处理数量
	Resized           int64 // 实际缩放的数量
	FailedValidations int64 // 验证失败次数
	FailedEncodings   int64 // 解码或编码失败次数
}
