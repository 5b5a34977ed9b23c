package analyze

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"parking-sign-server-go/src/configs"
	"parking-sign-server-go/src/core/auth"
	"parking-sign-server-go/src/core/health"
	"parking-sign-server-go/src/core/image"
	"parking-sign-server-go/src/core/prompt"
	"parking-sign-server-go/src/core/providers/vlllm"
	"parking-sign-server-go/src/core/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type relayMetrics struct {
	received  atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
}

// DefaultAnalyzeService 停车标志分析服务：接收图片，归一化后交给视觉模型
type DefaultAnalyzeService struct {
	logger    *utils.Logger
	config    *configs.Config
	provider  vlllm.Provider
	processor *image.ImageProcessor
	checker   *health.HealthChecker
	authToken *auth.AuthToken
	metrics   relayMetrics
}

// NewDefaultAnalyzeService 构造函数，provider由调用方创建并注入
func NewDefaultAnalyzeService(
	config *configs.Config,
	logger *utils.Logger,
	provider vlllm.Provider,
	processor *image.ImageProcessor,
	checker *health.HealthChecker,
) (*DefaultAnalyzeService, error) {
	if provider == nil {
		return nil, fmt.Errorf("VLLLM provider不能为空")
	}
	if processor == nil {
		processor = image.NewImageProcessor(config, logger)
	}

	service := &DefaultAnalyzeService{
		logger:    logger,
		config:    config,
		provider:  provider,
		processor: processor,
		checker:   checker,
	}

	if config.Server.Auth.Enabled {
		token, err := auth.NewAuthToken(config.Server.Auth.Secret, 0)
		if err != nil {
			return nil, fmt.Errorf("初始化认证失败: %v", err)
		}
		service.authToken = token
	}

	return service, nil
}

// Start 实现 AnalyzeService 接口，注册分析路由
func (s *DefaultAnalyzeService) Start(ctx context.Context, router gin.IRouter) error {
	handlers := []gin.HandlerFunc{}
	if s.authToken != nil {
		handlers = append(handlers, auth.Middleware(s.authToken, s.logger))
	}
	handlers = append(handlers, s.uploadGuard(), s.handlePost)

	router.POST(AnalyzePath, handlers...)
	router.GET(AnalyzePath, s.handleGet)

	s.logger.Info("停车标志分析路由注册完成", map[string]interface{}{
		"path":     AnalyzePath,
		"provider": s.provider.Describe(),
		"auth":     s.authToken != nil,
	})
	return nil
}

// handleGet 状态检查
func (s *DefaultAnalyzeService) handleGet(c *gin.Context) {
	imageMetrics := s.processor.GetMetrics()

	var b strings.Builder
	fmt.Fprintf(&b, "Parking sign analysis is running with %s\n", s.provider.Describe())
	fmt.Fprintf(&b, "requests: %d received, %d succeeded, %d failed, %d rejected\n",
		s.metrics.received.Load(), s.metrics.succeeded.Load(),
		s.metrics.failed.Load(), s.metrics.rejected.Load())
	fmt.Fprintf(&b, "images: %d processed, %d resized\n",
		imageMetrics.TotalProcessed, imageMetrics.Resized)
	if s.checker != nil {
		b.WriteString(s.checker.Report())
		b.WriteString("\n")
	}

	c.String(http.StatusOK, b.String())
}

// handlePost 分析一张停车标志照片
func (s *DefaultAnalyzeService) handlePost(c *gin.Context) {
	requestID := uuid.NewString()
	start := time.Now()
	s.metrics.received.Add(1)

	analysis, err := s.analyze(c, requestID)
	if err != nil {
		s.metrics.failed.Add(1)
		kind := KindOf(err)
		fields := map[string]interface{}{
			"request_id": requestID,
			"kind":       kind.String(),
			"error":      err.Error(),
			"duration":   time.Since(start).String(),
		}
		if kind == MissingImage {
			s.logger.Warn("分析请求失败", fields)
		} else {
			s.logger.Error("分析请求失败", fields)
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: GenericErrorMessage})
		return
	}

	s.metrics.succeeded.Add(1)
	s.logger.Info("分析完成", map[string]interface{}{
		"request_id": requestID,
		"length":     len(analysis),
		"duration":   time.Since(start).String(),
	})
	c.JSON(http.StatusOK, AnalysisResponse{Analysis: analysis})
}

func (s *DefaultAnalyzeService) analyze(c *gin.Context, requestID string) (string, error) {
	req, err := s.parseCaptureRequest(c)
	if err != nil {
		return "", err
	}

	s.logger.Debug("收到分析请求", map[string]interface{}{
		"request_id":   requestID,
		"filename":     req.Filename,
		"content_type": req.ContentType,
		"image_size":   len(req.Image),
		"day_of_week":  req.DayOfWeek,
		"date":         req.Date,
		"time":         req.Time,
	})

	ctx := c.Request.Context()
	normalized, err := s.processor.Normalize(ctx, req.Image)
	if err != nil {
		return "", newPipelineError(ImageProcessingFailure, err)
	}

	promptText := prompt.Build(req.TimeContext())

	// 模型调用不随客户端断开而取消
	analysis, err := s.provider.Analyze(context.WithoutCancel(ctx), promptText, normalized.ImageData())
	if err != nil {
		return "", newPipelineError(InferenceFailure, err)
	}
	return analysis, nil
}

// parseCaptureRequest 从multipart表单中读取图片和时间字段
func (s *DefaultAnalyzeService) parseCaptureRequest(c *gin.Context) (*CaptureRequest, error) {
	header, err := c.FormFile(FieldImage)
	if err != nil {
		return nil, newPipelineError(MissingImage, fmt.Errorf("缺少图片文件: %v", err))
	}

	file, err := header.Open()
	if err != nil {
		return nil, newPipelineError(MissingImage, fmt.Errorf("打开图片文件失败: %v", err))
	}
	defer file.Close()

	maxSize := s.processor.Validator().MaxFileSize()
	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		return nil, newPipelineError(MissingImage, fmt.Errorf("读取图片数据失败: %v", err))
	}
	if len(data) == 0 {
		return nil, newPipelineError(MissingImage, fmt.Errorf("图片数据为空"))
	}

	return &CaptureRequest{
		Image:       data,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		DayOfWeek:   strings.TrimSpace(c.PostForm(FieldDayOfWeek)),
		Date:        strings.TrimSpace(c.PostForm(FieldDate)),
		Time:        strings.TrimSpace(c.PostForm(FieldTime)),
	}, nil
}
