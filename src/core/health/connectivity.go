package health

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"parking-sign-server-go/src/configs"
	"parking-sign-server-go/src/core/image"
	"parking-sign-server-go/src/core/providers/vlllm"
	"parking-sign-server-go/src/core/utils"
)

// CheckMode 检查模式
type CheckMode int

const (
	// BasicCheck 基础连通性检查（Ping provider，不生成内容）
	BasicCheck CheckMode = iota
	// FunctionalCheck 功能性检查（执行一次实际的模型调用）
	FunctionalCheck
)

func (m CheckMode) String() string {
	if m == FunctionalCheck {
		return "功能性"
	}
	return "基础连通性"
}

// CheckResult 检查结果
type CheckResult struct {
	Provider  string                 `json:"provider"`
	Success   bool                   `json:"success"`
	Error     error                  `json:"-"`
	Details   map[string]interface{} `json:"details"`
	Duration  time.Duration          `json:"duration"`
	Timestamp time.Time              `json:"timestamp"`
	CheckMode CheckMode              `json:"check_mode"`
}

// ConnectivityConfig 连通性检查配置
type ConnectivityConfig struct {
	Enabled       bool
	Functional    bool
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	TestPrompt    string
}

// ConfigFromYAML 从YAML配置创建连通性检查配置
func ConfigFromYAML(yamlConfig *configs.ConnectivityCheckConfig) *ConnectivityConfig {
	config := DefaultConnectivityConfig()
	if yamlConfig == nil {
		return config
	}

	config.Enabled = yamlConfig.Enabled
	config.Functional = yamlConfig.Functional
	if t, err := time.ParseDuration(yamlConfig.Timeout); err == nil && t > 0 {
		config.Timeout = t
	}
	if t, err := time.ParseDuration(yamlConfig.RetryDelay); err == nil && t >= 0 {
		config.RetryDelay = t
	}
	if yamlConfig.RetryAttempts > 0 {
		config.RetryAttempts = yamlConfig.RetryAttempts
	}
	if yamlConfig.TestPrompt != "" {
		config.TestPrompt = yamlConfig.TestPrompt
	}
	return config
}

// DefaultConnectivityConfig 默认连通性检查配置
func DefaultConnectivityConfig() *ConnectivityConfig {
	return &ConnectivityConfig{
		Enabled:       true,
		Timeout:       30 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    5 * time.Second,
		TestPrompt:    "Describe this image in one word.",
	}
}

// 1x1像素的PNG图片
const testImageBase64 = `iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg==`

// HealthChecker 视觉模型健康检查器
type HealthChecker struct {
	provider   vlllm.Provider
	connConfig *ConnectivityConfig
	logger     *utils.Logger

	mu   sync.RWMutex
	last *CheckResult
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(provider vlllm.Provider, connConfig *ConnectivityConfig, logger *utils.Logger) *HealthChecker {
	if connConfig == nil {
		connConfig = DefaultConnectivityConfig()
	}
	return &HealthChecker{
		provider:   provider,
		connConfig: connConfig,
		logger:     logger,
	}
}

// Check 执行检查并记录结果。两种模式都先Ping，每一步失败都按配置重试
func (hc *HealthChecker) Check(ctx context.Context, mode CheckMode) (*CheckResult, error) {
	if !hc.connConfig.Enabled {
		hc.logger.Info("连通性检查已禁用，跳过检查")
		return nil, nil
	}

	start := time.Now()
	result := &CheckResult{
		Provider:  hc.provider.Describe(),
		Timestamp: start,
		CheckMode: mode,
		Details:   make(map[string]interface{}),
	}

	attempts, err := hc.withRetry(ctx, "连通性", hc.provider.Ping)
	result.Details["ping_attempts"] = attempts
	if err != nil {
		result.Error = err
	} else if mode == FunctionalCheck {
		response, attempts, err := hc.functionalCheckWithRetry(ctx)
		result.Details["attempts"] = attempts
		if err != nil {
			result.Error = err
		} else {
			result.Details["test_response_length"] = len(response)
		}
	}

	result.Success = result.Error == nil
	result.Duration = time.Since(start)

	hc.mu.Lock()
	hc.last = result
	hc.mu.Unlock()

	if result.Error != nil {
		hc.logger.Error(fmt.Sprintf("VLLLM%s检查失败", mode), map[string]interface{}{
			"provider": result.Provider,
			"error":    result.Error.Error(),
		})
		return result, result.Error
	}

	hc.logger.Info(fmt.Sprintf("VLLLM%s检查通过", mode), map[string]interface{}{
		"provider": result.Provider,
		"duration": result.Duration.String(),
	})
	return result, nil
}

func (hc *HealthChecker) functionalCheckWithRetry(ctx context.Context) (string, int, error) {
	raw, err := base64.StdEncoding.DecodeString(testImageBase64)
	if err != nil {
		return "", 0, fmt.Errorf("解码测试图片数据失败: %v", err)
	}
	img := image.ImageData{Data: testImageBase64, Format: "png", Raw: raw}

	var response string
	attempts, err := hc.withRetry(ctx, "功能性", func(testCtx context.Context) error {
		resp, err := hc.provider.Analyze(testCtx, hc.connConfig.TestPrompt, img)
		if err != nil {
			return err
		}
		if !validResponse(resp) {
			return fmt.Errorf("响应长度不合理: %d", len(resp))
		}
		response = resp
		return nil
	})
	return response, attempts, err
}

// withRetry 每次尝试使用独立的超时，失败后按RetryDelay等待再试
func (hc *HealthChecker) withRetry(ctx context.Context, name string, fn func(context.Context) error) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= hc.connConfig.RetryAttempts; attempt++ {
		testCtx, cancel := context.WithTimeout(ctx, hc.connConfig.Timeout)
		err := fn(testCtx)
		cancel()
		if err == nil {
			return attempt, nil
		}
		lastErr = err

		hc.logger.Warn(fmt.Sprintf("VLLLM%s测试失败", name), map[string]interface{}{
			"attempt": attempt,
			"error":   err.Error(),
		})

		if attempt < hc.connConfig.RetryAttempts {
			select {
			case <-ctx.Done():
				return attempt, ctx.Err()
			case <-time.After(hc.connConfig.RetryDelay):
			}
		}
	}
	return hc.connConfig.RetryAttempts, fmt.Errorf("重试%d次后仍失败: %w", hc.connConfig.RetryAttempts, lastErr)
}

// validResponse 验证VLLLM响应是否合理
func validResponse(response string) bool {
	return len(response) > 0 && len(response) <= 10000
}

// LastResult 返回最近一次检查结果
func (hc *HealthChecker) LastResult() *CheckResult {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.last
}

// Report 生成纯文本报告
func (hc *HealthChecker) Report() string {
	last := hc.LastResult()
	if last == nil {
		return fmt.Sprintf("provider %s: not checked", hc.provider.Describe())
	}

	var b strings.Builder
	status := "ok"
	if !last.Success {
		status = "failed"
	}
	fmt.Fprintf(&b, "provider %s: %s (%s check at %s, %v)",
		last.Provider, status, checkModeName(last.CheckMode),
		last.Timestamp.Format(time.RFC3339), last.Duration.Round(time.Millisecond))
	if last.Error != nil {
		fmt.Fprintf(&b, ": %v", last.Error)
	}
	return b.String()
}

func checkModeName(m CheckMode) string {
	if m == FunctionalCheck {
		return "functional"
	}
	return "basic"
}
