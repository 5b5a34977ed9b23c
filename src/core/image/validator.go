package image

import (
	"bytes"
	"fmt"
	"image"
	"mime"
	"strings"

	"parking-sign-server-go/src/configs"
	"parking-sign-server-go/src/core/utils"

	_ "image/jpeg" // 注册JPEG解码器
	_ "image/png"  // 注册PNG解码器
)

// ImageSecurityValidator 图片安全验证器
type ImageSecurityValidator struct {
	config *configs.UploadConfig
	logger *utils.Logger
}

// NewImageSecurityValidator 创建新的图片安全验证器
func NewImageSecurityValidator(config *configs.UploadConfig, logger *utils.Logger) *ImageSecurityValidator {
	return &ImageSecurityValidator{
		config: config,
		logger: logger,
	}
}

// 图片格式魔数签名
var imageSignatures = map[string][]byte{
	"jpeg": {0xFF, 0xD8},
	"png":  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
}

// IsAllowedContentType 检查声明的Content-Type是否在白名单内
func (v *ImageSecurityValidator) IsAllowedContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	for _, allowed := range v.config.AllowedTypes {
		if strings.EqualFold(allowed, mediaType) {
			return true
		}
	}
	return false
}

// MaxFileSize 单个图片允许的最大字节数
func (v *ImageSecurityValidator) MaxFileSize() int64 {
	return v.config.MaxFileSize
}

// ValidateImage 验证上传的图片字节
func (v *ImageSecurityValidator) ValidateImage(data []byte) ValidationResult {
	result := ValidationResult{IsValid: false}

	if len(data) == 0 {
		result.Error = fmt.Errorf("图片数据为空")
		return result
	}

	// 1. 基础大小检查
	if int64(len(data)) > v.config.MaxFileSize {
		result.Error = fmt.Errorf("文件大小超限: %d bytes，最大允许: %d bytes", len(data), v.config.MaxFileSize)
		result.SecurityRisk = "文件过大"
		return result
	}

	// 2. 文件头检查
	format := v.detectFormat(data)
	if format == "" {
		result.Error = fmt.Errorf("不支持的文件格式，只允许JPEG和PNG")
		result.SecurityRisk = "文件头与允许的格式不匹配"
		v.logger.Warn("文件头验证失败", map[string]interface{}{
			"actual_header": fmt.Sprintf("%x", data[:min(len(data), 16)]),
		})
		return result
	}

	// 3. 解码配置获取尺寸
	return v.validateImageDecoding(data, format)
}

// detectFormat 根据魔数检测图片格式
func (v *ImageSecurityValidator) detectFormat(data []byte) string {
	for format, signature := range imageSignatures {
		if bytes.HasPrefix(data, signature) {
			return format
		}
	}
	return ""
}

// validateImageDecoding 验证图片解码
func (v *ImageSecurityValidator) validateImageDecoding(data []byte, format string) ValidationResult {
	result := ValidationResult{Format: format}

	config, actualFormat, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		result.Error = fmt.Errorf("图片解码失败: %v", err)
		result.SecurityRisk = "损坏的图片数据"
		return result
	}
	if actualFormat != "" {
		result.Format = actualFormat
	}

	// 检查像素总数，防止解码炸弹
	totalPixels := int64(config.Width) * int64(config.Height)
	if totalPixels > v.config.MaxPixels {
		result.Error = fmt.Errorf("像素总数超限: %d，最大允许: %d", totalPixels, v.config.MaxPixels)
		result.SecurityRisk = "像素过多，可能导致内存耗尽"
		return result
	}

	result.IsValid = true
	result.Width = config.Width
	result.Height = config.Height
	result.FileSize = int64(len(data))

	v.logger.Debug("图片验证成功", map[string]interface{}{
		"format": result.Format,
		"width":  result.Width,
		"height": result.Height,
		"size":   result.FileSize,
	})

	return result
}
