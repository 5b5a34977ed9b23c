package analyze

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	// 除图片外，其余表单字段与multipart边界允许的额外字节
	multipartOverhead = 1 << 20
	// 解析multipart时保存在内存中的上限，超出部分落盘
	multipartMemory = 8 << 20
)

var errBodyTooLarge = errors.New("request body too large")

// limitedBody 限制请求体大小并记录是否超限
type limitedBody struct {
	io.ReadCloser
	remaining int64
	exceeded  bool
}

func (b *limitedBody) Read(p []byte) (int, error) {
	if b.remaining <= 0 {
		b.exceeded = true
		return 0, errBodyTooLarge
	}
	if int64(len(p)) > b.remaining {
		p = p[:b.remaining]
	}
	n, err := b.ReadCloser.Read(p)
	b.remaining -= int64(n)
	return n, err
}

func tooLargeMessage(maxSize int64) string {
	return fmt.Sprintf("Image exceeds %dMB limit", maxSize/1024/1024)
}

// oversizeMessage 请求体超限时找出造成超限的part：
// image本身超过限制才报告图片过大，否则报告请求体过大
func oversizeMessage(raw []byte, boundary string, maxSize int64) string {
	if boundary == "" {
		return BodyTooLargeMessage
	}
	reader := multipart.NewReader(bytes.NewReader(raw), boundary)
	for {
		part, err := reader.NextPart()
		if err != nil {
			return BodyTooLargeMessage
		}
		n, copyErr := io.Copy(io.Discard, part)
		if part.FormName() == FieldImage && n > maxSize {
			return tooLargeMessage(maxSize)
		}
		if copyErr != nil {
			// 截断发生在这个part
			return BodyTooLargeMessage
		}
	}
}

// uploadGuard 传输层过滤，在handler之前执行：
// image超过大小限制返回413，其他字段撑大请求体也返回413但消息不同，
// 声明的类型不是JPEG/PNG返回415。
// 非multipart或格式错误的请求体放行，由handler报告MissingImage。
func (s *DefaultAnalyzeService) uploadGuard() gin.HandlerFunc {
	validator := s.processor.Validator()
	maxSize := validator.MaxFileSize()

	return func(c *gin.Context) {
		mediaType, params, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
		if err != nil || mediaType != "multipart/form-data" {
			c.Next()
			return
		}

		body := &limitedBody{ReadCloser: c.Request.Body, remaining: maxSize + multipartOverhead + 1}
		raw, err := io.ReadAll(body)
		if body.exceeded {
			s.reject(c, http.StatusRequestEntityTooLarge, oversizeMessage(raw, params["boundary"], maxSize), err)
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(raw))
		if err != nil {
			s.logger.Debug("读取请求体失败，交给handler处理", map[string]interface{}{
				"error": err.Error(),
			})
			c.Next()
			return
		}

		if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
			s.logger.Debug("multipart表单解析失败，交给handler处理", map[string]interface{}{
				"error": err.Error(),
			})
			c.Next()
			return
		}

		for _, fh := range c.Request.MultipartForm.File[FieldImage] {
			if fh.Size > maxSize {
				s.reject(c, http.StatusRequestEntityTooLarge, tooLargeMessage(maxSize),
					fmt.Errorf("图片大小%d超过限制%d", fh.Size, maxSize))
				return
			}
			if contentType := fh.Header.Get("Content-Type"); !validator.IsAllowedContentType(contentType) {
				s.reject(c, http.StatusUnsupportedMediaType, InvalidTypeMessage,
					fmt.Errorf("不支持的Content-Type: %q", contentType))
				return
			}
		}

		c.Next()
	}
}

// reject 传输层拒绝，记录InvalidUpload
func (s *DefaultAnalyzeService) reject(c *gin.Context, status int, message string, cause error) {
	s.metrics.rejected.Add(1)
	s.logger.Warn("上传被传输层拒绝", map[string]interface{}{
		"kind":   InvalidUpload.String(),
		"status": status,
		"error":  cause.Error(),
		"ip":     c.ClientIP(),
	})
	c.AbortWithStatusJSON(status, ErrorResponse{Error: message})
}
