package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"sync/atomic"

	"parking-sign-server-go/src/configs"
	"parking-sign-server-go/src/core/utils"
)

// ImageProcessor 图片处理器：验证、等比缩放到上限内、重新编码为PNG并转base64
type ImageProcessor struct {
	config    *configs.ImageConfig
	validator *ImageSecurityValidator
	logger    *utils.Logger
	metrics   *ImageMetrics
}

// NewImageProcessor 创建新的图片处理器
func NewImageProcessor(config *configs.Config, logger *utils.Logger) *ImageProcessor {
	return &ImageProcessor{
		config:    &config.Image,
		validator: NewImageSecurityValidator(&config.Upload, logger),
		logger:    logger,
		metrics:   &ImageMetrics{},
	}
}

// Validator 返回上传验证器，供传输层过滤使用
func (p *ImageProcessor) Validator() *ImageSecurityValidator {
	return p.validator
}

// Normalize 处理上传的图片字节。客户端是否已经缩小过图片都要重新处理。
func (p *ImageProcessor) Normalize(ctx context.Context, data []byte) (*Normalized, error) {
	atomic.AddInt64(&p.metrics.TotalProcessed, 1)

	validationResult := p.validator.ValidateImage(data)
	if !validationResult.IsValid {
		atomic.AddInt64(&p.metrics.FailedValidations, 1)
		if validationResult.SecurityRisk != "" {
			p.logger.Warn("图片验证未通过", map[string]interface{}{
				"error":         validationResult.Error.Error(),
				"security_risk": validationResult.SecurityRisk,
			})
		}
		return nil, fmt.Errorf("图片验证失败: %w", validationResult.Error)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		atomic.AddInt64(&p.metrics.FailedEncodings, 1)
		return nil, fmt.Errorf("图片解码失败: %w", err)
	}

	bounds := src.Bounds()
	width, height := FitWithin(bounds.Dx(), bounds.Dy(), p.config.MaxWidth, p.config.MaxHeight)
	resized := width != bounds.Dx() || height != bounds.Dy()

	out := src
	if resized {
		out = Resize(src, width, height)
		atomic.AddInt64(&p.metrics.Resized, 1)
	}

	pngData, err := EncodePNG(out)
	if err != nil {
		atomic.AddInt64(&p.metrics.FailedEncodings, 1)
		return nil, err
	}

	normalized := &Normalized{
		PNG:          pngData,
		Base64:       base64.StdEncoding.EncodeToString(pngData),
		Width:        width,
		Height:       height,
		SourceWidth:  bounds.Dx(),
		SourceHeight: bounds.Dy(),
		SourceFormat: format,
		Resized:      resized,
	}

	p.logger.Debug("图片处理完成", map[string]interface{}{
		"source_format": format,
		"source_size":   fmt.Sprintf("%dx%d", normalized.SourceWidth, normalized.SourceHeight),
		"output_size":   fmt.Sprintf("%dx%d", width, height),
		"png_bytes":     len(pngData),
		"base64_bytes":  len(normalized.Base64),
	})

	return normalized, nil
}

// GetMetrics 获取处理统计信息
func (p *ImageProcessor) GetMetrics() ImageMetrics {
	return ImageMetrics{
		TotalProcessed:    atomic.LoadInt64(&p.metrics.TotalProcessed),
		Resized:           atomic.LoadInt64(&p.metrics.Resized),
		FailedValidations: atomic.LoadInt64(&p.metrics.FailedValidations),
		FailedEncodings:   atomic.LoadInt64(&p.metrics.FailedEncodings),
	}
}
